//go:build linux

// File: internal/sockets/accept_linux.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockets

import "golang.org/x/sys/unix"

// Accept takes one pending connection off the listener. The returned
// descriptor is already non-blocking and close-on-exec.
func Accept(fd int) (int, string, error) {
	for {
		nfd, sa, err := unix.Accept4(fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return -1, "", err
		}
		return nfd, formatAddr(sa), nil
	}
}

// rawWrite suppresses SIGPIPE on a peer that already went away.
func rawWrite(fd int, p []byte) (int, error) {
	return unix.SendmsgN(fd, p, nil, nil, unix.MSG_NOSIGNAL)
}
