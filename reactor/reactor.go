// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Platform-neutral readiness source for cross-platform IO multiplexing.

package reactor

import (
	"fmt"
	"time"

	"github.com/momentics/sockethub/api"
)

// ErrNotSupported is returned when the requested backend does not exist on
// this platform. It matches api.ErrNotSupported.
var ErrNotSupported = fmt.Errorf("reactor: backend not supported on this platform: %w", api.ErrNotSupported)

// Kind selects a readiness backend.
type Kind int

const (
	// KindAuto picks epoll on linux and poll(2) on other unix systems.
	KindAuto Kind = iota
	// KindEpoll is the edge-triggered linux notifier.
	KindEpoll
	// KindPoll is the portable level-triggered bounded-wait poll.
	KindPoll
)

func (k Kind) String() string {
	switch k {
	case KindEpoll:
		return "epoll"
	case KindPoll:
		return "poll"
	default:
		return "auto"
	}
}

// ParseKind maps a config string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "", "auto":
		return KindAuto, nil
	case "epoll":
		return KindEpoll, nil
	case "poll":
		return KindPoll, nil
	}
	return KindAuto, fmt.Errorf("reactor: unknown backend %q", s)
}

// EventSource multiplexes read readiness over many descriptors.
//
// Add and Remove may be called from any goroutine. Wait is called by a single
// goroutine only.
type EventSource interface {
	// Add registers fd for read readiness.
	Add(fd int) error

	// Remove deregisters fd. Removing an unknown fd is not an error.
	Remove(fd int) error

	// Wait blocks for at most timeout (negative blocks indefinitely) and
	// fills events. An interrupted wait returns 0, nil.
	Wait(events []Event, timeout time.Duration) (int, error)

	// EdgeTriggered reports whether readiness fires once per transition, in
	// which case the consumer must drain until would-block.
	EdgeTriggered() bool

	// Close releases the backend. Registered fds are not closed.
	Close() error
}

// Event contains readiness information returned by Wait.
type Event struct {
	Fd       int
	Readable bool
	Hangup   bool // peer hung up or the descriptor is in error
}

// New constructs the requested backend.
func New(kind Kind) (EventSource, error) {
	switch kind {
	case KindEpoll:
		return newEpoll()
	case KindPoll:
		return newPoll()
	default:
		return newDefault()
	}
}

func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := int(d / time.Millisecond)
	if ms == 0 && d > 0 {
		ms = 1
	}
	return ms
}
