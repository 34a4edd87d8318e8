//go:build linux || darwin || freebsd || netbsd || openbsd

package engine

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

// NetState owns the probe table and the platform socket set. It is
// single-owner: every operation runs on the event loop's thread of
// control.
type NetState struct {
	reporter Reporter

	probes   [MaxProbes]Probe
	nextPort int

	// IPv4: the send socket carries caller-built IP headers; the
	// receive socket is bound to ICMP so the kernel delivers only what
	// the engine cares about.
	ip4SendFD int
	ip4RecvFD int

	// IPv6 raw sockets never accept user IP headers, so sending splits
	// by transport protocol.
	icmp6SendFD int
	udp6SendFD  int
	ip6RecvFD   int

	// ipLengthHostOrder records the byte order the kernel expects for
	// the IPv4 total-length field, discovered at startup.
	ipLengthHostOrder bool

	// sctpSupport is probed at runtime: some platforms define the SCTP
	// constants yet fail to create the socket.
	sctpSupport bool

	recvBuf [PacketBufferSize]byte
}

// NewNetState runs the privileged half of engine startup: opening the
// raw sockets. It is kept minimal so elevated privileges can be dropped
// before Init.
func NewNetState(reporter Reporter) (*NetState, error) {
	n := &NetState{
		reporter: reporter,
		nextPort: MinPort,
	}

	var err error

	if n.ip4SendFD, err = openRawSocket(unix.AF_INET, unix.IPPROTO_RAW); err != nil {
		return nil, fmt.Errorf("IPv4 send socket: %w", err)
	}

	// The engine supplies complete IPv4 headers. Linux does not demand
	// this on IPPROTO_RAW, but BSD derived stacks do.
	if err = unix.SetsockoptInt(n.ip4SendFD, unix.IPPROTO_IP, unix.IP_HDRINCL, 1); err != nil {
		return nil, fmt.Errorf("IP_HDRINCL: %w", err)
	}

	if n.ip4RecvFD, err = openRawSocket(unix.AF_INET, unix.IPPROTO_ICMP); err != nil {
		return nil, fmt.Errorf("IPv4 receive socket: %w", err)
	}

	if n.icmp6SendFD, err = openRawSocket(unix.AF_INET6, unix.IPPROTO_ICMPV6); err != nil {
		return nil, fmt.Errorf("ICMPv6 send socket: %w", err)
	}
	if n.udp6SendFD, err = openRawSocket(unix.AF_INET6, unix.IPPROTO_UDP); err != nil {
		return nil, fmt.Errorf("UDPv6 send socket: %w", err)
	}
	if n.ip6RecvFD, err = openRawSocket(unix.AF_INET6, unix.IPPROTO_ICMPV6); err != nil {
		return nil, fmt.Errorf("IPv6 receive socket: %w", err)
	}

	return n, nil
}

// Init runs the unprivileged half of startup: non-blocking receive
// sockets and the runtime feature probes.
func (n *NetState) Init() error {
	if err := setNonblocking(n.ip4RecvFD); err != nil {
		return err
	}
	if err := setNonblocking(n.ip6RecvFD); err != nil {
		return err
	}

	if err := n.checkLengthOrder(); err != nil {
		return err
	}
	n.checkSCTPSupport()

	return nil
}

// checkLengthOrder discovers which byte order the kernel expects for the
// IPv4 total-length field. BSD derived stacks have wanted host order,
// others network order, and versions disagree, so the only reliable
// answer is empirical: ping localhost in network order and flip to host
// order if the kernel refuses the send.
func (n *NetState) checkLengthOrder() error {
	spec := &packet.Spec{
		Protocol:  packet.ProtocolICMP,
		IPVersion: 4,
		TTL:       255,
		Port:      MinPort,
		RemoteIP:  localhostIP4,
	}

	n.ipLengthHostOrder = false
	constructed, err := packet.Construct(spec)
	if err != nil {
		return fmt.Errorf("constructing localhost probe: %w", err)
	}
	if err = unix.Sendto(n.ip4SendFD, constructed.Data, 0, localhostSockaddr()); err == nil {
		return nil
	}

	n.ipLengthHostOrder = true
	spec.IPLengthHostOrder = true
	constructed, err = packet.Construct(spec)
	if err != nil {
		return fmt.Errorf("constructing localhost probe: %w", err)
	}
	if err = unix.Sendto(n.ip4SendFD, constructed.Data, 0, localhostSockaddr()); err != nil {
		return fmt.Errorf("localhost probe failed in both byte orders: %w", err)
	}

	return nil
}

// checkSCTPSupport probes for SCTP at runtime. Relying on the constants
// being defined is not enough: macOS defines IPPROTO_SCTP but refuses
// the socket.
func (n *NetState) checkSCTPSupport() {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, unix.IPPROTO_SCTP)
	if err == nil {
		unix.Close(fd)
		n.sctpSupport = true
	}
}

// ProtocolSupported reports whether probes can be transmitted with the
// given protocol on this host.
func (n *NetState) ProtocolSupported(p packet.Protocol) bool {
	switch p {
	case packet.ProtocolICMP, packet.ProtocolUDP, packet.ProtocolTCP:
		return true
	case packet.ProtocolSCTP:
		return n.sctpSupport
	}
	return false
}

// IPLengthHostOrder exposes the discovered total-length byte order.
func (n *NetState) IPLengthHostOrder() bool {
	return n.ipLengthHostOrder
}

// RecvSockets returns the raw receive sockets for the event loop's
// readable readiness set.
func (n *NetState) RecvSockets() (ip4 int, ip6 int) {
	return n.ip4RecvFD, n.ip6RecvFD
}

// sendPacket emits constructed datagram bytes on the socket matching the
// probe's family and protocol. Combinations with no socket are invalid
// arguments.
func (n *NetState) sendPacket(p *Probe, data []byte) error {
	var fd int

	if p.ipVersion == 6 {
		switch p.protocol {
		case packet.ProtocolICMP:
			fd = n.icmp6SendFD
		case packet.ProtocolUDP:
			fd = n.udp6SendFD
		default:
			return unix.EINVAL
		}

		sa := &unix.SockaddrInet6{}
		copy(sa.Addr[:], p.remoteIP.To16())
		return unix.Sendto(fd, data, 0, sa)
	}

	sa := &unix.SockaddrInet4{}
	copy(sa.Addr[:], p.remoteIP.To4())
	return unix.Sendto(n.ip4SendFD, data, 0, sa)
}
