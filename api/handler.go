// File: api/handler.go
// Package api defines the hub callback contracts.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

// MessageHandler receives a raw chunk read from a client. data aliases a
// pooled buffer and is only valid until the handler returns.
type MessageHandler func(clientID uint64, data []byte)

// ConnectHandler is invoked once per accepted connection.
type ConnectHandler func(clientID uint64, address string)

// DisconnectHandler is invoked once per connection when it leaves the hub.
type DisconnectHandler func(clientID uint64, address string)

// ErrorHandler receives per-connection I/O errors that led to a disconnect.
type ErrorHandler func(clientID uint64, err error)

// Publisher forwards lifecycle events to an external sink.
type Publisher interface {
	Publish(ev Event) error
}
