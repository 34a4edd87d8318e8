package engine

import (
	"net"
	"time"

	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

// recorderReporter captures engine output for assertions.
type recorderReporter struct {
	statuses  []statusEvent
	responses []responseEvent
}

type statusEvent struct {
	Token  int
	Status string
}

type responseEvent struct {
	Token int
	Kind  packet.ReplyKind
	From  net.IP
	RTT   time.Duration
}

func (r *recorderReporter) ProbeStatus(token int, status string) {
	r.statuses = append(r.statuses, statusEvent{Token: token, Status: status})
}

func (r *recorderReporter) ProbeResponse(token int, kind packet.ReplyKind, from net.IP, rtt time.Duration) {
	r.responses = append(r.responses, responseEvent{Token: token, Kind: kind, From: from, RTT: rtt})
}

// newTestNetState builds a NetState with no sockets open; table, timing
// and error paths never touch the socket set.
func newTestNetState(reporter Reporter) *NetState {
	return &NetState{
		reporter: reporter,
		nextPort: MinPort,
	}
}
