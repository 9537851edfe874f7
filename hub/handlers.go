// File: hub/handlers.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Single-slot user callbacks. The last registration of a kind wins.

package hub

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/momentics/sockethub/api"
	"github.com/momentics/sockethub/internal/logger"
)

// HandlerRegistry holds at most one callback per event kind.
type HandlerRegistry struct {
	mu           sync.RWMutex
	onMessage    api.MessageHandler
	onConnect    api.ConnectHandler
	onDisconnect api.DisconnectHandler
	onError      api.ErrorHandler

	log    *logger.Logger
	panics atomic.Uint64
}

// NewHandlerRegistry creates an empty registry logging callback panics to log.
func NewHandlerRegistry(log *logger.Logger) *HandlerRegistry {
	if log == nil {
		log = logger.Nop()
	}
	return &HandlerRegistry{log: log}
}

func nilHandler(kind string) error {
	return api.NewConfigurationError(kind+" handler must not be nil", api.ErrNilHandler).
		WithContext("kind", kind)
}

// SetMessage replaces the message handler.
func (r *HandlerRegistry) SetMessage(fn api.MessageHandler) error {
	if fn == nil {
		return nilHandler("message")
	}
	r.mu.Lock()
	r.onMessage = fn
	r.mu.Unlock()
	return nil
}

// SetConnect replaces the connect handler.
func (r *HandlerRegistry) SetConnect(fn api.ConnectHandler) error {
	if fn == nil {
		return nilHandler("connect")
	}
	r.mu.Lock()
	r.onConnect = fn
	r.mu.Unlock()
	return nil
}

// SetDisconnect replaces the disconnect handler.
func (r *HandlerRegistry) SetDisconnect(fn api.DisconnectHandler) error {
	if fn == nil {
		return nilHandler("disconnect")
	}
	r.mu.Lock()
	r.onDisconnect = fn
	r.mu.Unlock()
	return nil
}

// SetError replaces the error handler.
func (r *HandlerRegistry) SetError(fn api.ErrorHandler) error {
	if fn == nil {
		return nilHandler("error")
	}
	r.mu.Lock()
	r.onError = fn
	r.mu.Unlock()
	return nil
}

// Panics returns how many callback invocations panicked.
func (r *HandlerRegistry) Panics() uint64 {
	return r.panics.Load()
}

func (r *HandlerRegistry) fireMessage(id uint64, data []byte) {
	r.mu.RLock()
	fn := r.onMessage
	r.mu.RUnlock()
	if fn != nil {
		r.safeCall("message", id, func() { fn(id, data) })
	}
}

func (r *HandlerRegistry) fireConnect(id uint64, addr string) {
	r.mu.RLock()
	fn := r.onConnect
	r.mu.RUnlock()
	if fn != nil {
		r.safeCall("connect", id, func() { fn(id, addr) })
	}
}

func (r *HandlerRegistry) fireDisconnect(id uint64, addr string) {
	r.mu.RLock()
	fn := r.onDisconnect
	r.mu.RUnlock()
	if fn != nil {
		r.safeCall("disconnect", id, func() { fn(id, addr) })
	}
}

func (r *HandlerRegistry) fireError(id uint64, err error) {
	r.mu.RLock()
	fn := r.onError
	r.mu.RUnlock()
	if fn != nil {
		r.safeCall("error", id, func() { fn(id, err) })
	}
}

// safeCall runs fn and contains any panic so it cannot reach the event loop
// or the sweeper.
func (r *HandlerRegistry) safeCall(kind string, id uint64, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.panics.Add(1)
			r.log.Zerolog().Error().
				Str("handler", kind).
				Uint64("client_id", id).
				Str("panic", fmt.Sprint(rec)).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
		}
	}()
	fn()
}
