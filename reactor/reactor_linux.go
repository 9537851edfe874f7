//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux epoll(7)-based reactor implementation and factory.

package reactor

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const epollReadEvents = unix.EPOLLIN | unix.EPOLLRDHUP | unix.EPOLLET

// epollSource is an edge-triggered epoll event source.
type epollSource struct {
	epfd int
	raw  []unix.EpollEvent // owned by the Wait goroutine
}

func newDefault() (EventSource, error) {
	return newEpoll()
}

func newEpoll() (EventSource, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &epollSource{epfd: epfd}, nil
}

// Add registers fd for edge-triggered read notifications.
func (r *epollSource) Add(fd int) error {
	ev := unix.EpollEvent{Events: epollReadEvents, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Remove deregisters fd.
func (r *epollSource) Remove(fd int) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	if err == nil || err == unix.ENOENT || err == unix.EBADF {
		return nil
	}
	return fmt.Errorf("epoll ctl del: %w", err)
}

// Wait waits for epoll events and fills the result into events slice.
func (r *epollSource) Wait(events []Event, timeout time.Duration) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}
	if cap(r.raw) < len(events) {
		r.raw = make([]unix.EpollEvent, len(events))
	}
	raw := r.raw[:len(events)]
	n, err := unix.EpollWait(r.epfd, raw, timeoutMillis(timeout))
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := raw[i]
		events[i] = Event{
			Fd:       int(ev.Fd),
			Readable: ev.Events&unix.EPOLLIN != 0,
			Hangup:   ev.Events&(unix.EPOLLHUP|unix.EPOLLERR|unix.EPOLLRDHUP) != 0,
		}
	}
	return n, nil
}

func (r *epollSource) EdgeTriggered() bool { return true }

// Close closes the epoll instance.
func (r *epollSource) Close() error {
	return unix.Close(r.epfd)
}
