//go:build linux || darwin || freebsd || netbsd || openbsd

package packet

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// openStreamSocket creates the connected socket behind a TCP or SCTP
// probe: bound to the probe port, carrying the requested TTL, switched to
// non-blocking before the connect is initiated.
//
// The descriptor is returned even when connect fails with ECONNREFUSED;
// some stacks refuse a local connect synchronously and the caller treats
// that as the destination answering.
func openStreamSocket(spec *Spec) (int, error) {
	domain := unix.AF_INET
	if spec.IPVersion == 6 {
		domain = unix.AF_INET6
	}

	proto := 0
	if spec.Protocol == ProtocolSCTP {
		proto = unix.IPPROTO_SCTP
	}

	fd, err := unix.Socket(domain, unix.SOCK_STREAM, proto)
	if err != nil {
		return 0, fmt.Errorf("stream socket: %w", err)
	}

	if err := unix.Bind(fd, localSockaddr(spec)); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("stream socket bind: %w", err)
	}

	if spec.IPVersion == 6 {
		err = unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_UNICAST_HOPS, spec.TTL)
	} else {
		err = unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TTL, spec.TTL)
	}
	if err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("stream socket TTL: %w", err)
	}

	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("stream socket nonblock: %w", err)
	}

	err = unix.Connect(fd, remoteSockaddr(spec))
	if err != nil && !errors.Is(err, unix.EINPROGRESS) {
		if errors.Is(err, unix.ECONNREFUSED) {
			return fd, unix.ECONNREFUSED
		}
		unix.Close(fd)
		return 0, err
	}

	return fd, nil
}

func localSockaddr(spec *Spec) unix.Sockaddr {
	if spec.IPVersion == 6 {
		sa := &unix.SockaddrInet6{Port: spec.Port}
		if spec.LocalIP != nil {
			copy(sa.Addr[:], spec.LocalIP.To16())
		}
		return sa
	}
	sa := &unix.SockaddrInet4{Port: spec.Port}
	if ip4 := spec.LocalIP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return sa
}

func remoteSockaddr(spec *Spec) unix.Sockaddr {
	if spec.IPVersion == 6 {
		sa := &unix.SockaddrInet6{Port: spec.DestPort}
		copy(sa.Addr[:], spec.RemoteIP.To16())
		return sa
	}
	sa := &unix.SockaddrInet4{Port: spec.DestPort}
	copy(sa.Addr[:], spec.RemoteIP.To4())
	return sa
}
