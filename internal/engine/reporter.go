package engine

import (
	"net"
	"time"

	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

// Reporter receives every command-stream outcome the engine produces.
// The command layer implements it; tests substitute a recorder.
type Reporter interface {
	// ProbeStatus reports a terminal status token for the probe keyed
	// by the command token: an error classification or no-reply.
	ProbeStatus(token int, status string)

	// ProbeResponse reports a correlated response with its round-trip
	// time. The engine releases the probe once this returns.
	ProbeResponse(token int, kind packet.ReplyKind, from net.IP, rtt time.Duration)
}
