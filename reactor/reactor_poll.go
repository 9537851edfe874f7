//go:build unix

// File: reactor/reactor_poll.go
// Author: momentics <momentics@gmail.com>
//
// Portable poll(2) fallback. Level-triggered: a descriptor keeps reporting
// readable until drained, so one read per wake-up is enough.

package reactor

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

var errPollClosed = errors.New("reactor: poll source closed")

type pollSource struct {
	mu     sync.Mutex
	fds    map[int]struct{}
	closed bool
	snap   []unix.PollFd // owned by the Wait goroutine
}

func newPoll() (EventSource, error) {
	return &pollSource{fds: make(map[int]struct{})}, nil
}

func (p *pollSource) Add(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errPollClosed
	}
	p.fds[fd] = struct{}{}
	return nil
}

func (p *pollSource) Remove(fd int) error {
	p.mu.Lock()
	delete(p.fds, fd)
	p.mu.Unlock()
	return nil
}

func (p *pollSource) Wait(events []Event, timeout time.Duration) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, errPollClosed
	}
	p.snap = p.snap[:0]
	for fd := range p.fds {
		p.snap = append(p.snap, unix.PollFd{Fd: int32(fd), Events: unix.POLLIN})
	}
	p.mu.Unlock()

	if len(p.snap) == 0 {
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return 0, nil
	}

	ready, err := unix.Poll(p.snap, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("poll: %w", err)
	}
	n := 0
	for i := 0; i < len(p.snap) && n < len(events) && ready > 0; i++ {
		re := p.snap[i].Revents
		if re == 0 {
			continue
		}
		ready--
		if re&unix.POLLNVAL != 0 {
			// closed underneath us; Remove will follow
			continue
		}
		events[n] = Event{
			Fd:       int(p.snap[i].Fd),
			Readable: re&unix.POLLIN != 0,
			Hangup:   re&(unix.POLLHUP|unix.POLLERR) != 0,
		}
		n++
	}
	return n, nil
}

func (p *pollSource) EdgeTriggered() bool { return false }

func (p *pollSource) Close() error {
	p.mu.Lock()
	p.closed = true
	p.fds = map[int]struct{}{}
	p.mu.Unlock()
	return nil
}
