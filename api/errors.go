// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for sockethub.

package api

import (
	"errors"
	"fmt"
)

// Common errors used across the library.
var (
	ErrConfiguration   = errors.New("configuration error")
	ErrResource        = errors.New("resource error")
	ErrInvalidPort     = errors.New("invalid port")
	ErrNilHandler      = errors.New("nil handler")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrClientNotFound  = errors.New("client not found")
	ErrNotSupported    = errors.New("operation not supported")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeConfiguration
	ErrCodeResource
	ErrCodeNotFound
	ErrCodeInternal
)

func (c ErrorCode) String() string {
	switch c {
	case ErrCodeOK:
		return "ok"
	case ErrCodeConfiguration:
		return "configuration"
	case ErrCodeResource:
		return "resource"
	case ErrCodeNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) == 0 {
		return msg
	}
	return fmt.Sprintf("%s (context: %+v)", msg, e.Context)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the class sentinel matching e.Code.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Code == ErrCodeConfiguration
	case ErrResource:
		return e.Code == ErrCodeResource
	}
	return false
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// NewConfigurationError reports bad caller input. cause is usually one of the
// sentinels above so callers can test with errors.Is.
func NewConfigurationError(message string, cause error) *Error {
	e := NewError(ErrCodeConfiguration, message)
	e.Err = cause
	return e
}

// NewResourceError reports a failed OS-level operation such as bind or
// epoll_create.
func NewResourceError(op string, cause error) *Error {
	e := NewError(ErrCodeResource, op+" failed")
	e.Err = cause
	return e.WithContext("op", op)
}

// NewClientNotFoundError reports an operation on an unknown client id.
func NewClientNotFoundError(id uint64) *Error {
	e := NewError(ErrCodeNotFound, "client not found")
	e.Err = ErrClientNotFound
	return e.WithContext("client_id", id)
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// IsConfigurationError reports whether err is a ConfigurationError.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsResourceError reports whether err is a ResourceError.
func IsResourceError(err error) bool {
	return errors.Is(err, ErrResource)
}
