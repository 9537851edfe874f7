//go:build unix

// File: internal/sockets/sockets.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Listening, accepting, reading and writing on non-blocking TCP descriptors.

package sockets

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// ErrWriteTimeout is returned by WriteAll when the peer does not drain its
// receive window in time.
var ErrWriteTimeout = errors.New("sockets: write timed out")

// Listen creates a non-blocking IPv4 TCP listener bound to 0.0.0.0:port.
// port 0 binds an ephemeral port; use LocalPort to learn it.
func Listen(port, backlog int, reuseAddr bool) (fd int, err error) {
	fd, err = unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return -1, fmt.Errorf("socket create: %w", err)
	}
	defer func() {
		if err != nil {
			unix.Close(fd)
			fd = -1
		}
	}()
	unix.CloseOnExec(fd)
	if err = unix.SetNonblock(fd, true); err != nil {
		return fd, fmt.Errorf("set nonblock: %w", err)
	}
	if reuseAddr {
		if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			return fd, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
		}
	}
	if err = unix.Bind(fd, &unix.SockaddrInet4{Port: port}); err != nil {
		return fd, fmt.Errorf("bind :%d: %w", port, err)
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err = unix.Listen(fd, backlog); err != nil {
		return fd, fmt.Errorf("listen: %w", err)
	}
	return fd, nil
}

// LocalPort returns the port a socket is bound to.
func LocalPort(fd int) (int, error) {
	sa, err := unix.Getsockname(fd)
	if err != nil {
		return 0, err
	}
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return a.Port, nil
	case *unix.SockaddrInet6:
		return a.Port, nil
	}
	return 0, fmt.Errorf("unexpected socket address %T", sa)
}

// SetNoDelay disables Nagle's algorithm. Best effort.
func SetNoDelay(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// Read reads once into buf. EINTR is retried.
func Read(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Read(fd, buf)
		if err == unix.EINTR {
			continue
		}
		if n < 0 {
			n = 0
		}
		return n, err
	}
}

// WriteAll writes data completely. On a full send buffer it waits for
// writability up to timeout in total; timeout <= 0 waits indefinitely.
func WriteAll(fd int, data []byte, timeout time.Duration) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for len(data) > 0 {
		n, err := rawWrite(fd, data)
		if n > 0 {
			data = data[n:]
		}
		switch {
		case err == nil:
			continue
		case err == unix.EINTR:
			continue
		case IsWouldBlock(err):
			if werr := waitWritable(fd, deadline); werr != nil {
				return werr
			}
		default:
			return err
		}
	}
	return nil
}

func waitWritable(fd int, deadline time.Time) error {
	for {
		ms := -1
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return ErrWriteTimeout
			}
			ms = int(left / time.Millisecond)
			if ms == 0 {
				ms = 1
			}
		}
		pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLOUT}}
		n, err := unix.Poll(pfd, ms)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrWriteTimeout
		}
		if pfd[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 && pfd[0].Revents&unix.POLLOUT == 0 {
			return unix.EPIPE
		}
		return nil
	}
}

// Close closes fd.
func Close(fd int) error {
	return unix.Close(fd)
}

// IsWouldBlock reports a transient EAGAIN/EWOULDBLOCK condition.
func IsWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK)
}

// IsInterrupted reports EINTR.
func IsInterrupted(err error) bool {
	return errors.Is(err, unix.EINTR)
}

// IsTemporaryAccept reports accept failures that do not affect the listener
// itself: an aborted handshake or descriptor/memory exhaustion.
func IsTemporaryAccept(err error) bool {
	switch {
	case errors.Is(err, unix.ECONNABORTED),
		errors.Is(err, unix.EMFILE),
		errors.Is(err, unix.ENFILE),
		errors.Is(err, unix.ENOBUFS),
		errors.Is(err, unix.ENOMEM):
		return true
	}
	return false
}

func formatAddr(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *unix.SockaddrUnix:
		return a.Name
	}
	return "unknown"
}
