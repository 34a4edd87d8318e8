package command

import (
	"fmt"
	"io"
	"net"
	"time"

	"github.com/KilimcininKorOglu/sonda/internal/engine"
	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

// Reporter writes the engine's reply lines to the command stream and
// keeps per-protocol counters for the optional session summary. It is
// the engine.Reporter implementation used in production.
type Reporter struct {
	w io.Writer

	stats      map[string]*protocolStats
	tokenProto map[int]string
}

type protocolStats struct {
	Sent        int
	Replies     int
	TTLExpired  int
	Unreachable int
	NoReply     int
	Errors      int
}

// NewReporter creates a reporter writing reply lines to w.
func NewReporter(w io.Writer) *Reporter {
	return &Reporter{
		w:          w,
		stats:      make(map[string]*protocolStats),
		tokenProto: make(map[int]string),
	}
}

// RecordSent notes a dispatched probe so later outcomes can be counted
// against its protocol.
func (r *Reporter) RecordSent(token int, protocol string) {
	r.tokenProto[token] = protocol
	r.protoStats(protocol).Sent++
}

// ProbeStatus emits `<token> <status>` for error classifications and
// timeouts.
func (r *Reporter) ProbeStatus(token int, status string) {
	fmt.Fprintf(r.w, "%d %s\n", token, status)

	stats := r.protoStats(r.takeProto(token))
	if status == engine.StatusNoReply {
		stats.NoReply++
	} else {
		stats.Errors++
	}
}

// ProbeResponse emits the correlated-response line,
// `<token> <verb> <ip> <rtt_us>`.
func (r *Reporter) ProbeResponse(token int, kind packet.ReplyKind, from net.IP, rtt time.Duration) {
	fmt.Fprintf(r.w, "%d %s %s %d\n", token, responseVerb(kind), from, rtt.Microseconds())

	stats := r.protoStats(r.takeProto(token))
	switch kind {
	case packet.KindEchoReply:
		stats.Replies++
	case packet.KindTTLExpired:
		stats.TTLExpired++
	case packet.KindUnreachable:
		stats.Unreachable++
	}
}

// InvalidCommand answers a line that could not be parsed.
func (r *Reporter) InvalidCommand(token int) {
	fmt.Fprintf(r.w, "%d invalid-command\n", token)
}

// SupportReply answers a check-support query.
func (r *Reporter) SupportReply(token int, ok bool) {
	answer := "no"
	if ok {
		answer = "ok"
	}
	fmt.Fprintf(r.w, "%d feature-support support %s\n", token, answer)
}

func responseVerb(kind packet.ReplyKind) string {
	switch kind {
	case packet.KindTTLExpired:
		return "ttl-expired"
	case packet.KindUnreachable:
		return "dest-unreachable"
	default:
		return "reply"
	}
}

func (r *Reporter) protoStats(protocol string) *protocolStats {
	s, ok := r.stats[protocol]
	if !ok {
		s = &protocolStats{}
		r.stats[protocol] = s
	}
	return s
}

// takeProto resolves and forgets the protocol recorded for a token; the
// outcome being reported is terminal.
func (r *Reporter) takeProto(token int) string {
	protocol, ok := r.tokenProto[token]
	if !ok {
		return "unknown"
	}
	delete(r.tokenProto, token)
	return protocol
}
