//go:build !unix

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

func newDefault() (EventSource, error) { return nil, ErrNotSupported }

func newEpoll() (EventSource, error) { return nil, ErrNotSupported }

func newPoll() (EventSource, error) { return nil, ErrNotSupported }
