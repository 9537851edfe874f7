//go:build unix && !linux

// File: internal/sockets/accept_other.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package sockets

import "golang.org/x/sys/unix"

// Accept takes one pending connection off the listener and makes it
// non-blocking.
func Accept(fd int) (int, string, error) {
	for {
		nfd, sa, err := unix.Accept(fd)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return -1, "", err
		}
		unix.CloseOnExec(nfd)
		if err := unix.SetNonblock(nfd, true); err != nil {
			unix.Close(nfd)
			return -1, "", err
		}
		return nfd, formatAddr(sa), nil
	}
}

func rawWrite(fd int, p []byte) (int, error) {
	return unix.Write(fd, p)
}
