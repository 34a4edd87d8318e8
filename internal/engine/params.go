// Package engine implements the probe lifecycle: the outstanding-probe
// table, the send and receive paths over raw sockets, round-trip timing
// and the timeout scanner.
package engine

import (
	"net"
	"time"

	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

// ProbeParams carries one send-probe request from the command stream.
type ProbeParams struct {
	// Token keys every output line produced for this probe.
	Token int

	Protocol packet.Protocol

	// IPVersion forces 4 or 6; zero infers it from Address.
	IPVersion int

	TTL int

	// Address is the destination as an IP literal. Name resolution is
	// the controlling process's job.
	Address string

	// LocalIP optionally pins the source address.
	LocalIP net.IP

	// DestPort is the remote port for UDP/TCP/SCTP probes.
	DestPort int

	// Size is the requested total packet size.
	Size int

	Timeout time.Duration
}
