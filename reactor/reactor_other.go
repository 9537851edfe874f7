//go:build unix && !linux

// File: reactor/reactor_other.go
// Author: momentics <momentics@gmail.com>
//
// Non-linux unix systems fall back to poll(2).

package reactor

func newDefault() (EventSource, error) {
	return newPoll()
}

func newEpoll() (EventSource, error) {
	return nil, ErrNotSupported
}
