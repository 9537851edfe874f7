//go:build !unix

// File: internal/sockets/sockets_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockets

import (
	"errors"
	"time"
)

var (
	errUnsupported = errors.New("sockets: platform not supported")

	// ErrWriteTimeout mirrors the unix definition.
	ErrWriteTimeout = errors.New("sockets: write timed out")
)

func Listen(port, backlog int, reuseAddr bool) (int, error)     { return -1, errUnsupported }
func LocalPort(fd int) (int, error)                             { return 0, errUnsupported }
func Accept(fd int) (int, string, error)                        { return -1, "", errUnsupported }
func SetNoDelay(fd int) error                                   { return errUnsupported }
func Read(fd int, buf []byte) (int, error)                      { return 0, errUnsupported }
func WriteAll(fd int, data []byte, timeout time.Duration) error { return errUnsupported }
func Close(fd int) error                                        { return errUnsupported }
func IsWouldBlock(err error) bool                               { return false }
func IsInterrupted(err error) bool                              { return false }
func IsTemporaryAccept(err error) bool                          { return false }
