package packet

import (
	"encoding/binary"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// ReplyKind classifies an inbound ICMP message correlated to a probe.
type ReplyKind int

const (
	// KindEchoReply means the destination answered: an echo reply, a
	// port-unreachable for a UDP probe, or a completed stream connect.
	KindEchoReply ReplyKind = iota
	// KindTTLExpired means an intermediate hop reported time exceeded.
	KindTTLExpired
	// KindUnreachable means a hop reported the destination unreachable.
	KindUnreachable
)

// Reply carries the probe identifier recovered from an inbound ICMP
// message. Port keys the lookup into the probe table.
type Reply struct {
	Port int
	Kind ReplyKind
}

// ParseIPv4 inspects a packet read from the raw IPv4 ICMP socket, which
// is delivered with its IP header attached. It reports whether the
// message could belong to an outstanding probe.
func ParseIPv4(buf []byte) (Reply, bool) {
	if len(buf) < ipv4HeaderLength || buf[0]>>4 != 4 {
		return Reply{}, false
	}
	headerLen := int(buf[0]&0x0f) << 2
	if len(buf) < headerLen+icmpHeaderLength {
		return Reply{}, false
	}

	msg, err := icmp.ParseMessage(ipProtoICMP, buf[headerLen:])
	if err != nil {
		return Reply{}, false
	}

	switch msg.Type {
	case ipv4.ICMPTypeEchoReply:
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok {
			return Reply{}, false
		}
		return Reply{Port: echo.ID, Kind: KindEchoReply}, true

	case ipv4.ICMPTypeTimeExceeded:
		body, ok := msg.Body.(*icmp.TimeExceeded)
		if !ok {
			return Reply{}, false
		}
		return embeddedReply(body.Data, 4, KindTTLExpired)

	case ipv4.ICMPTypeDestinationUnreachable:
		body, ok := msg.Body.(*icmp.DstUnreach)
		if !ok {
			return Reply{}, false
		}
		kind := KindUnreachable
		if msg.Code == 3 { // port unreachable: the probe arrived
			kind = KindEchoReply
		}
		return embeddedReply(body.Data, 4, kind)
	}

	return Reply{}, false
}

// ParseIPv6 inspects a packet read from the raw ICMPv6 socket; the kernel
// strips the IPv6 header before delivery.
func ParseIPv6(buf []byte) (Reply, bool) {
	msg, err := icmp.ParseMessage(ipProtoICMPv6, buf)
	if err != nil {
		return Reply{}, false
	}

	switch msg.Type {
	case ipv6.ICMPTypeEchoReply:
		echo, ok := msg.Body.(*icmp.Echo)
		if !ok {
			return Reply{}, false
		}
		return Reply{Port: echo.ID, Kind: KindEchoReply}, true

	case ipv6.ICMPTypeTimeExceeded:
		body, ok := msg.Body.(*icmp.TimeExceeded)
		if !ok {
			return Reply{}, false
		}
		return embeddedReply(body.Data, 6, KindTTLExpired)

	case ipv6.ICMPTypeDestinationUnreachable:
		body, ok := msg.Body.(*icmp.DstUnreach)
		if !ok {
			return Reply{}, false
		}
		kind := KindUnreachable
		if msg.Code == 4 { // port unreachable
			kind = KindEchoReply
		}
		return embeddedReply(body.Data, 6, kind)
	}

	return Reply{}, false
}

// embeddedReply recovers the probe port from the original packet quoted
// inside a time-exceeded or unreachable message: the embedded IP header
// followed by at least eight bytes of the transport header.
func embeddedReply(data []byte, ipVersion int, kind ReplyKind) (Reply, bool) {
	var proto, headerLen int

	if ipVersion == 6 {
		const ipv6HeaderLength = 40
		if len(data) < ipv6HeaderLength+8 {
			return Reply{}, false
		}
		proto = int(data[6])
		headerLen = ipv6HeaderLength
	} else {
		if len(data) < ipv4HeaderLength+8 {
			return Reply{}, false
		}
		headerLen = int(data[0]&0x0f) << 2
		if headerLen < ipv4HeaderLength || len(data) < headerLen+8 {
			return Reply{}, false
		}
		proto = int(data[9])
	}

	transport := data[headerLen:]

	switch proto {
	case ipProtoICMP:
		if transport[0] != 8 { // only our Echo Requests are of interest
			return Reply{}, false
		}
		return Reply{Port: int(binary.BigEndian.Uint16(transport[4:6])), Kind: kind}, true

	case ipProtoICMPv6:
		if transport[0] != 128 {
			return Reply{}, false
		}
		return Reply{Port: int(binary.BigEndian.Uint16(transport[4:6])), Kind: kind}, true

	case ipProtoUDP, ipProtoTCP, ipProtoSCTP:
		// The probe identifier rides in the source port.
		return Reply{Port: int(binary.BigEndian.Uint16(transport[0:2])), Kind: kind}, true
	}

	return Reply{}, false
}
