//go:build linux || darwin || freebsd || netbsd || openbsd

package engine

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// openRawSocket creates one raw socket for the given family and
// protocol.
func openRawSocket(domain, proto int) (int, error) {
	fd, err := unix.Socket(domain, unix.SOCK_RAW, proto)
	if err != nil {
		return 0, fmt.Errorf("raw socket (domain %d, proto %d): %w", domain, proto, err)
	}
	return fd, nil
}

func closeSocket(fd int) {
	unix.Close(fd)
}

// setNonblocking switches a socket to non-blocking mode; the receive
// paths rely on EAGAIN to know a socket is drained.
func setNonblocking(fd int) error {
	if err := unix.SetNonblock(fd, true); err != nil {
		return fmt.Errorf("set socket nonblocking: %w", err)
	}
	return nil
}

// sockaddrIP extracts the IP from a recvfrom peer address.
func sockaddrIP(sa unix.Sockaddr) net.IP {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return net.IP(a.Addr[:])
	case *unix.SockaddrInet6:
		return net.IP(a.Addr[:])
	}
	return nil
}
