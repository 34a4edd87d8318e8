package command

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/sonda/internal/engine"
	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

func TestReporter_Lines(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	r.ProbeStatus(2, engine.StatusNoRoute)
	r.ProbeResponse(1, packet.KindEchoReply, net.ParseIP("127.0.0.1"), 1500*time.Microsecond)
	r.ProbeResponse(3, packet.KindTTLExpired, net.ParseIP("10.0.0.1"), 20*time.Millisecond)
	r.ProbeResponse(4, packet.KindUnreachable, net.ParseIP("192.0.2.1"), time.Millisecond)
	r.ProbeStatus(5, engine.StatusNoReply)
	r.InvalidCommand(0)
	r.SupportReply(6, true)
	r.SupportReply(7, false)

	want := strings.Join([]string{
		"2 no-route",
		"1 reply 127.0.0.1 1500",
		"3 ttl-expired 10.0.0.1 20000",
		"4 dest-unreachable 192.0.2.1 1000",
		"5 no-reply",
		"0 invalid-command",
		"6 feature-support support ok",
		"7 feature-support support no",
		"",
	}, "\n")

	if got := buf.String(); got != want {
		t.Errorf("output mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestReporter_RTTTruncatesToMicroseconds(t *testing.T) {
	var buf bytes.Buffer
	r := NewReporter(&buf)

	r.ProbeResponse(9, packet.KindEchoReply, net.ParseIP("127.0.0.1"), 1234*time.Nanosecond)

	if got := buf.String(); got != "9 reply 127.0.0.1 1\n" {
		t.Errorf("output = %q, want sub-microsecond remainder dropped", got)
	}
}

func TestReporter_SummaryCounters(t *testing.T) {
	var out bytes.Buffer
	r := NewReporter(&out)

	r.RecordSent(1, "icmp")
	r.ProbeResponse(1, packet.KindEchoReply, net.ParseIP("127.0.0.1"), time.Millisecond)

	r.RecordSent(2, "icmp")
	r.ProbeStatus(2, engine.StatusNoReply)

	r.RecordSent(3, "tcp")
	r.ProbeStatus(3, engine.StatusNoRoute)

	icmp := r.stats["icmp"]
	if icmp == nil || icmp.Sent != 2 || icmp.Replies != 1 || icmp.NoReply != 1 {
		t.Errorf("icmp stats = %+v, want sent 2, replies 1, no-reply 1", icmp)
	}

	tcp := r.stats["tcp"]
	if tcp == nil || tcp.Sent != 1 || tcp.Errors != 1 {
		t.Errorf("tcp stats = %+v, want sent 1, errors 1", tcp)
	}

	if len(r.tokenProto) != 0 {
		t.Errorf("tokenProto not drained: %v", r.tokenProto)
	}

	var summary bytes.Buffer
	r.WriteSummary(&summary, false)

	text := summary.String()
	if !strings.Contains(text, "icmp") || !strings.Contains(text, "tcp") {
		t.Errorf("summary missing protocol rows:\n%s", text)
	}
}

func TestReporter_SummaryEmpty(t *testing.T) {
	var out, summary bytes.Buffer
	r := NewReporter(&out)

	r.WriteSummary(&summary, false)

	if !strings.Contains(summary.String(), "No probes sent.") {
		t.Errorf("empty summary = %q, want 'No probes sent.'", summary.String())
	}
}
