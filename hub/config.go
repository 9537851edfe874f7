// File: hub/config.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hub

import (
	"fmt"
	"time"

	"github.com/momentics/sockethub/api"
	"github.com/momentics/sockethub/pool"
	"github.com/momentics/sockethub/reactor"
)

// Config holds all hub-side configuration parameters. It is fixed for the
// lifetime of one running instance; only the idle timeout can change while
// running (see Hub.SetClientTimeout).
type Config struct {
	Port                 int           // default port for Restart and tooling; Start takes its own
	MaxConnections       int           // active connections before new ones are rejected
	BufferSize           int           // receive buffer size, the largest chunk a handler sees
	IdleTimeout          time.Duration // 0 disables idle eviction
	Backlog              int           // listen(2) backlog
	SweepInterval        time.Duration // idle sweeper period
	PollTimeout          time.Duration // bound on one readiness wait
	AcceptBatch          int           // accepts per wake-up, 0 drains until would-block
	MaxEvents            int           // readiness events fetched per wait
	PoolCapacity         int           // idle receive buffers retained
	WriteTimeout         time.Duration // per-send bound when the peer's window is full, 0 waits forever
	Reactor              reactor.Kind  // readiness backend
	LoopCPU              int           // CPU to pin the event loop thread to, -1 = no pinning
	MaxConnectionsPerIP  int           // 0 = unlimited
	MaxMessagesPerMinute int           // per remote IP, 0 = unlimited
	ReuseAddr            bool          // SO_REUSEADDR on the listener
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:           9000,
		MaxConnections: 64,
		BufferSize:     pool.DefaultBufferSize,
		IdleTimeout:    60 * time.Second,
		Backlog:        128,
		SweepInterval:  time.Second,
		PollTimeout:    100 * time.Millisecond,
		AcceptBatch:    32,
		MaxEvents:      128,
		PoolCapacity:   pool.DefaultCapacity,
		WriteTimeout:   5 * time.Second,
		Reactor:        reactor.KindAuto,
		LoopCPU:        -1,
		ReuseAddr:      true,
	}
}

// ValidatePort rejects ports outside 1..65535.
func ValidatePort(port int) error {
	if port <= 0 || port > 65535 {
		return api.NewConfigurationError(fmt.Sprintf("port %d out of range 1-65535", port), api.ErrInvalidPort).
			WithContext("port", port)
	}
	return nil
}

// Validate checks every field except Port.
func (c Config) Validate() error {
	bad := func(field string, v any) error {
		return api.NewConfigurationError("invalid "+field, api.ErrInvalidArgument).WithContext(field, v)
	}
	switch {
	case c.MaxConnections <= 0:
		return bad("max_connections", c.MaxConnections)
	case c.BufferSize <= 0:
		return bad("buffer_size", c.BufferSize)
	case c.IdleTimeout < 0:
		return bad("idle_timeout", c.IdleTimeout)
	case c.Backlog <= 0:
		return bad("backlog", c.Backlog)
	case c.SweepInterval <= 0:
		return bad("sweep_interval", c.SweepInterval)
	case c.PollTimeout <= 0:
		return bad("poll_timeout", c.PollTimeout)
	case c.AcceptBatch < 0:
		return bad("accept_batch", c.AcceptBatch)
	case c.MaxEvents <= 0:
		return bad("max_events", c.MaxEvents)
	case c.PoolCapacity < 0:
		return bad("pool_capacity", c.PoolCapacity)
	case c.WriteTimeout < 0:
		return bad("write_timeout", c.WriteTimeout)
	case c.MaxConnectionsPerIP < 0:
		return bad("max_connections_per_ip", c.MaxConnectionsPerIP)
	case c.MaxMessagesPerMinute < 0:
		return bad("max_messages_per_minute", c.MaxMessagesPerMinute)
	}
	return nil
}
