package engine

import (
	"net"
	"time"

	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

const (
	// MaxProbes is the capacity of the outstanding-probe table.
	MaxProbes = 1024

	// MinPort and MaxPort bound the identifier ports stamped into
	// outbound packets. The range is far larger than the table so the
	// wrapping allocator cannot collide within one flight window.
	MinPort = 33434
	MaxPort = 65535

	// PacketBufferSize is the receive buffer for raw socket reads.
	PacketBufferSize = 4096
)

// Probe is one slot of the outstanding-probe table.
type Probe struct {
	used bool

	token    int
	port     int
	protocol packet.Protocol

	ipVersion  int
	remoteIP   net.IP
	remotePort int
	localIP    net.IP

	departureTime time.Time
	timeoutTime   time.Time

	// streamFD is the connected socket of TCP/SCTP probes, zero
	// otherwise. It is closed when the probe is freed.
	streamFD int
}

// allocProbe claims the first free slot and assigns it the next
// identifier port. It returns nil when the table is full.
//
// The allocator advances monotonically and wraps from MaxPort back to
// MinPort without checking the table for reuse; the range is sized so a
// collision cannot happen while the earlier probe is still in flight.
func (n *NetState) allocProbe(token int) *Probe {
	for i := range n.probes {
		p := &n.probes[i]
		if p.used {
			continue
		}

		*p = Probe{
			used:  true,
			token: token,
			port:  n.nextPort,
		}

		n.nextPort++
		if n.nextPort > MaxPort {
			n.nextPort = MinPort
		}

		return p
	}

	return nil
}

// freeProbe releases a slot, closing the stream socket if the probe
// owns one.
func (n *NetState) freeProbe(p *Probe) {
	if p.streamFD != 0 {
		closeSocket(p.streamFD)
		p.streamFD = 0
	}
	p.used = false
}

// findProbeByPort locates the outstanding probe carrying the given
// identifier port.
func (n *NetState) findProbeByPort(port int) *Probe {
	for i := range n.probes {
		p := &n.probes[i]
		if p.used && p.port == port {
			return p
		}
	}
	return nil
}

// outstanding counts probes still awaiting a response.
func (n *NetState) outstanding() int {
	count := 0
	for i := range n.probes {
		if n.probes[i].used {
			count++
		}
	}
	return count
}

// Outstanding reports whether any probes are still in flight; the event
// loop uses it to decide when a closed command stream means shutdown.
func (n *NetState) Outstanding() bool {
	return n.outstanding() > 0
}

// StreamSockets collects the connect sockets of outstanding stream
// probes for the event loop's writable readiness set.
func (n *NetState) StreamSockets() []int {
	var fds []int
	for i := range n.probes {
		p := &n.probes[i]
		if p.used && p.streamFD != 0 {
			fds = append(fds, p.streamFD)
		}
	}
	return fds
}
