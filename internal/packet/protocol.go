// Package packet builds outbound probe packets and parses inbound ICMP
// responses for the probe engine.
package packet

// Protocol identifies the transport used by a probe.
type Protocol int

const (
	// ProtocolICMP uses ICMP Echo Request packets
	ProtocolICMP Protocol = iota
	// ProtocolUDP uses UDP datagrams to high ports
	ProtocolUDP
	// ProtocolTCP uses a non-blocking TCP connect
	ProtocolTCP
	// ProtocolSCTP uses a non-blocking SCTP connect
	ProtocolSCTP
)

// String returns the string representation of the protocol.
func (p Protocol) String() string {
	switch p {
	case ProtocolICMP:
		return "icmp"
	case ProtocolUDP:
		return "udp"
	case ProtocolTCP:
		return "tcp"
	case ProtocolSCTP:
		return "sctp"
	default:
		return "unknown"
	}
}

// ParseProtocol converts a protocol name from the command stream.
func ParseProtocol(name string) (Protocol, bool) {
	switch name {
	case "icmp":
		return ProtocolICMP, true
	case "udp":
		return ProtocolUDP, true
	case "tcp":
		return ProtocolTCP, true
	case "sctp":
		return ProtocolSCTP, true
	}
	return 0, false
}

// Stream reports whether the protocol probes reachability with a connected
// stream socket instead of a crafted datagram.
func (p Protocol) Stream() bool {
	return p == ProtocolTCP || p == ProtocolSCTP
}

// IP protocol numbers as they appear in IPv4 headers and the IPv6
// next-header field.
const (
	ipProtoICMP   = 1
	ipProtoTCP    = 6
	ipProtoUDP    = 17
	ipProtoICMPv6 = 58
	ipProtoSCTP   = 132
)
