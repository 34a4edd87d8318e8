//go:build linux || darwin || freebsd || netbsd || openbsd

package engine

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

// ReceiveReplies drains both raw receive sockets and polls the connect
// sockets of outstanding stream probes. It is called on every dispatch
// cycle; errors it returns are environmental and fatal.
func (n *NetState) ReceiveReplies() error {
	if err := n.drainICMPSocket(n.ip4RecvFD, 4); err != nil {
		return err
	}
	if err := n.drainICMPSocket(n.ip6RecvFD, 6); err != nil {
		return err
	}

	for i := range n.probes {
		p := &n.probes[i]
		if p.used && p.streamFD != 0 {
			if err := n.pollStreamProbe(p); err != nil {
				return err
			}
		}
	}

	return nil
}

// drainICMPSocket reads packets until the non-blocking socket reports
// EAGAIN. The timestamp is taken immediately after each recvfrom so the
// round-trip stays as close to the wire as possible.
func (n *NetState) drainICMPSocket(fd int, ipVersion int) error {
	for {
		length, from, err := unix.Recvfrom(fd, n.recvBuf[:], 0)
		timestamp := time.Now()

		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				return nil
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("receiving replies: %w", err)
		}

		var reply packet.Reply
		var ok bool
		if ipVersion == 6 {
			reply, ok = packet.ParseIPv6(n.recvBuf[:length])
		} else {
			reply, ok = packet.ParseIPv4(n.recvBuf[:length])
		}
		if !ok {
			continue
		}

		probe := n.findProbeByPort(reply.Port)
		if probe == nil {
			continue
		}

		n.receiveProbe(probe, reply.Kind, sockaddrIP(from), timestamp)
	}
}

// pollStreamProbe checks whether a stream probe's connect has completed,
// using a zero-timeout writability test. Writable means the attempt
// finished; SO_ERROR tells how. A clean connect and a refused one both
// prove the packet reached the destination host.
func (n *NetState) pollStreamProbe(p *Probe) error {
	writable, err := socketWritable(p.streamFD)
	if err != nil {
		if errors.Is(err, unix.EAGAIN) {
			return nil
		}
		return fmt.Errorf("stream probe select: %w", err)
	}
	if !writable {
		return nil
	}

	soErr, err := unix.GetsockoptInt(p.streamFD, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return fmt.Errorf("stream probe SO_ERROR: %w", err)
	}

	if soErr == 0 || soErr == int(unix.ECONNREFUSED) {
		n.receiveProbe(p, packet.KindEchoReply, p.remoteIP, time.Now())
		return nil
	}

	n.reporter.ProbeStatus(p.token, classifyErrno(unix.Errno(soErr)))
	n.freeProbe(p)
	return nil
}

// socketWritable runs a zero-timeout select on a single descriptor's
// writable state.
func socketWritable(fd int) (bool, error) {
	var writeSet unix.FdSet
	writeSet.Zero()
	writeSet.Set(fd)

	zero := unix.Timeval{}
	if _, err := unix.Select(fd+1, nil, &writeSet, nil, &zero); err != nil {
		return false, err
	}

	return writeSet.IsSet(fd), nil
}

// receiveProbe computes the round trip of a correlated response, hands
// it to the reporter, and retires the probe.
func (n *NetState) receiveProbe(p *Probe, kind packet.ReplyKind, from net.IP, timestamp time.Time) {
	rtt := timestamp.Sub(p.departureTime)

	logrus.WithFields(logrus.Fields{
		"token": p.token,
		"port":  p.port,
		"from":  from.String(),
		"rtt":   rtt,
	}).Debug("probe response")

	n.reporter.ProbeResponse(p.token, kind, from, rtt)
	n.freeProbe(p)
}
