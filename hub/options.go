// File: hub/options.go
// Package hub defines functional options for the Hub facade.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hub

import (
	"github.com/momentics/sockethub/api"
	"github.com/momentics/sockethub/internal/logger"
)

// Option customizes hub construction.
type Option func(*Hub)

// WithConfig replaces the default configuration.
func WithConfig(cfg Config) Option {
	return func(h *Hub) {
		h.cfg = cfg
	}
}

// WithLogger sets the parent logger; components derive tagged children.
func WithLogger(l *logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.log = l
		}
	}
}

// WithPublisher forwards connect/disconnect events to p.
func WithPublisher(p api.Publisher) Option {
	return func(h *Hub) {
		h.publisher = p
	}
}
