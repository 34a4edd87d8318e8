package packet

import "errors"

// Packet-related errors.
var (
	// ErrInvalidPacket indicates a malformed or truncated packet
	ErrInvalidPacket = errors.New("invalid packet received")

	// ErrUnsupportedProtocol indicates a protocol/IP-version combination
	// the constructor cannot build
	ErrUnsupportedProtocol = errors.New("unsupported protocol for probe")

	// ErrInvalidTTL indicates the TTL value is out of range
	ErrInvalidTTL = errors.New("TTL must be between 1 and 255")

	// ErrMissingSource indicates a probe that needs a local address
	// (IPv6 UDP checksums, stream binds) was built without one
	ErrMissingSource = errors.New("no local address available for probe")
)
