package packet

import (
	"encoding/binary"
	"net"
)

const (
	ipv4HeaderLength = 20
	icmpHeaderLength = 8
	udpHeaderLength  = 8

	// maxPayload bounds the padding added for packet size requests.
	maxPayload = 1024
)

// Spec describes one outbound probe packet.
type Spec struct {
	Protocol  Protocol
	IPVersion int // 4 or 6
	TTL       int

	// Port is the probe's identifier: the ICMP echo identifier, or the
	// source port of UDP/TCP/SCTP probes.
	Port int

	// Token is the command token; its low 16 bits become the ICMP echo
	// sequence number.
	Token int

	// LocalIP is the source address. It may be nil for IPv4 datagrams
	// (the kernel fills in the source), but is required for IPv6 UDP
	// checksums.
	LocalIP  net.IP
	RemoteIP net.IP

	// DestPort is the remote port for UDP/TCP/SCTP probes.
	DestPort int

	// Size is the requested total packet size; payload padding is added
	// to approach it where the protocol allows.
	Size int

	// IPLengthHostOrder selects host byte order for the IPv4 total
	// length field, as some network stacks require.
	IPLengthHostOrder bool
}

// Constructed is the outcome of building a probe: datagram bytes to emit
// on a raw socket, or an already-connecting stream socket. Exactly one of
// the fields is set.
type Constructed struct {
	Data     []byte
	StreamFD int
}

// Construct builds the wire form of a probe from its spec.
//
// For stream protocols the returned Constructed carries a non-blocking
// socket with a connect in flight. A refused connect is reported as
// ECONNREFUSED alongside the socket so the caller can treat it as proof
// of reachability and still owns the descriptor.
func Construct(spec *Spec) (Constructed, error) {
	if spec.TTL < 1 || spec.TTL > 255 {
		return Constructed{}, ErrInvalidTTL
	}

	if spec.Protocol.Stream() {
		fd, err := openStreamSocket(spec)
		return Constructed{StreamFD: fd}, err
	}

	switch {
	case spec.IPVersion == 4 && spec.Protocol == ProtocolICMP:
		return Constructed{Data: buildIPv4Packet(spec, ipProtoICMP, buildICMPEcho(spec, false))}, nil
	case spec.IPVersion == 4 && spec.Protocol == ProtocolUDP:
		return Constructed{Data: buildIPv4Packet(spec, ipProtoUDP, buildUDP(spec))}, nil
	case spec.IPVersion == 6 && spec.Protocol == ProtocolICMP:
		return Constructed{Data: buildICMPEcho(spec, true)}, nil
	case spec.IPVersion == 6 && spec.Protocol == ProtocolUDP:
		if spec.LocalIP == nil {
			return Constructed{}, ErrMissingSource
		}
		return Constructed{Data: buildUDP(spec)}, nil
	}

	return Constructed{}, ErrUnsupportedProtocol
}

// payloadLength derives the padding needed to reach the requested packet
// size once the listed headers are accounted for.
func payloadLength(spec *Spec, headers int) int {
	n := spec.Size - headers
	if n < 0 {
		return 0
	}
	if n > maxPayload {
		return maxPayload
	}
	return n
}

// buildICMPEcho builds an ICMP or ICMPv6 Echo Request. The identifier is
// the probe port and the sequence number the low bits of the command
// token, so responses embed enough to find the originating probe.
//
// The ICMPv6 checksum is left zero; the kernel computes it with the
// pseudo-header when sending on a raw ICMPv6 socket.
func buildICMPEcho(spec *Spec, v6 bool) []byte {
	headers := ipv4HeaderLength + icmpHeaderLength
	if v6 {
		headers = icmpHeaderLength
	}
	buf := make([]byte, icmpHeaderLength+payloadLength(spec, headers))

	if v6 {
		buf[0] = 128 // Echo Request
	} else {
		buf[0] = 8
	}
	buf[1] = 0
	binary.BigEndian.PutUint16(buf[4:6], uint16(spec.Port))
	binary.BigEndian.PutUint16(buf[6:8], uint16(spec.Token))

	if !v6 {
		binary.BigEndian.PutUint16(buf[2:4], Checksum(buf))
	}

	return buf
}

// buildUDP builds a UDP header plus padding. The source port carries the
// probe identifier; the checksum uses the pseudo-header when a local
// address is known and is mandatory for IPv6.
func buildUDP(spec *Spec) []byte {
	headers := ipv4HeaderLength + udpHeaderLength
	if spec.IPVersion == 6 {
		headers = udpHeaderLength
	}
	buf := make([]byte, udpHeaderLength+payloadLength(spec, headers))

	binary.BigEndian.PutUint16(buf[0:2], uint16(spec.Port))
	binary.BigEndian.PutUint16(buf[2:4], uint16(spec.DestPort))
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(buf)))

	if spec.LocalIP != nil {
		sum := transportChecksum(spec.LocalIP, spec.RemoteIP, ipProtoUDP, buf)
		if sum == 0 {
			sum = 0xffff
		}
		binary.BigEndian.PutUint16(buf[6:8], sum)
	}

	return buf
}

// buildIPv4Packet prepends a full IPv4 header; the engine sends these on
// a raw socket with IP_HDRINCL set. A zero header checksum and a zero
// source address are filled in by the kernel.
func buildIPv4Packet(spec *Spec, proto int, transport []byte) []byte {
	buf := make([]byte, ipv4HeaderLength+len(transport))

	buf[0] = 0x45 // version 4, header length 20
	putIPLength(buf[2:4], len(buf), spec.IPLengthHostOrder)
	binary.BigEndian.PutUint16(buf[4:6], uint16(spec.Port))
	buf[8] = byte(spec.TTL)
	buf[9] = byte(proto)
	if spec.LocalIP != nil {
		copy(buf[12:16], spec.LocalIP.To4())
	}
	copy(buf[16:20], spec.RemoteIP.To4())

	copy(buf[ipv4HeaderLength:], transport)

	return buf
}

// putIPLength writes the IPv4 total length field in the byte order the
// running kernel expects, which is discovered at startup.
func putIPLength(b []byte, length int, hostOrder bool) {
	if hostOrder {
		binary.NativeEndian.PutUint16(b, uint16(length))
	} else {
		binary.BigEndian.PutUint16(b, uint16(length))
	}
}
