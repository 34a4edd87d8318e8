package engine

import (
	"net"
	"testing"
	"time"

	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

func TestCheckTimeouts_FiresExactlyOnce(t *testing.T) {
	rec := &recorderReporter{}
	n := newTestNetState(rec)

	p := n.allocProbe(5)
	p.departureTime = time.Now().Add(-2 * time.Second)
	p.timeoutTime = time.Now().Add(-time.Second)

	n.CheckTimeouts()

	if len(rec.statuses) != 1 {
		t.Fatalf("got %d status events, want 1", len(rec.statuses))
	}
	if rec.statuses[0] != (statusEvent{Token: 5, Status: StatusNoReply}) {
		t.Errorf("status = %+v, want token 5 no-reply", rec.statuses[0])
	}
	if p.used {
		t.Error("probe still used after timeout")
	}

	// A second scan finds nothing.
	n.CheckTimeouts()
	if len(rec.statuses) != 1 {
		t.Errorf("timeout reported again: %d events", len(rec.statuses))
	}

	if _, have := n.NextDeadline(); have {
		t.Error("NextDeadline() reports a deadline with no probes outstanding")
	}
}

func TestCheckTimeouts_LeavesLiveProbes(t *testing.T) {
	rec := &recorderReporter{}
	n := newTestNetState(rec)

	p := n.allocProbe(1)
	p.departureTime = time.Now()
	p.timeoutTime = time.Now().Add(time.Hour)

	n.CheckTimeouts()

	if len(rec.statuses) != 0 {
		t.Errorf("live probe timed out: %+v", rec.statuses)
	}
	if !p.used {
		t.Error("live probe was freed")
	}
}

func TestNextDeadline_ReturnsEarliest(t *testing.T) {
	rec := &recorderReporter{}
	n := newTestNetState(rec)

	now := time.Now()

	a := n.allocProbe(1)
	a.departureTime = now
	a.timeoutTime = now.Add(time.Second)

	b := n.allocProbe(2)
	b.departureTime = now
	b.timeoutTime = now.Add(time.Minute)

	remaining, have := n.NextDeadline()
	if !have {
		t.Fatal("NextDeadline() = no deadline, want one")
	}
	if remaining > time.Second || remaining < 0 {
		t.Errorf("remaining = %v, want about 1s (probe A)", remaining)
	}

	// Once A retires, B's deadline is next.
	n.freeProbe(a)
	remaining, have = n.NextDeadline()
	if !have {
		t.Fatal("NextDeadline() lost probe B")
	}
	if remaining < 50*time.Second {
		t.Errorf("remaining = %v, want about 1m (probe B)", remaining)
	}
}

func TestNextDeadline_NegativeWhenElapsed(t *testing.T) {
	n := newTestNetState(&recorderReporter{})

	p := n.allocProbe(1)
	p.departureTime = time.Now().Add(-10 * time.Second)
	p.timeoutTime = time.Now().Add(-5 * time.Second)

	remaining, have := n.NextDeadline()
	if !have {
		t.Fatal("NextDeadline() = no deadline, want one")
	}
	if remaining >= 0 {
		t.Errorf("remaining = %v, want negative for an elapsed deadline", remaining)
	}
}

func TestReceiveProbe_RoundTripExact(t *testing.T) {
	tests := []struct {
		name  string
		delta time.Duration
	}{
		{"zero", 0},
		{"microsecond", time.Microsecond},
		{"millisecond", 23 * time.Millisecond},
		{"seconds", 4*time.Second + 56789*time.Microsecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorderReporter{}
			n := newTestNetState(rec)

			p := n.allocProbe(9)
			departure := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
			p.departureTime = departure

			from := net.ParseIP("192.0.2.7")
			n.receiveProbe(p, packet.KindEchoReply, from, departure.Add(tt.delta))

			if len(rec.responses) != 1 {
				t.Fatalf("got %d responses, want 1", len(rec.responses))
			}

			resp := rec.responses[0]
			if resp.Token != 9 {
				t.Errorf("token = %d, want 9", resp.Token)
			}
			if resp.RTT != tt.delta {
				t.Errorf("rtt = %v, want %v", resp.RTT, tt.delta)
			}
			if !resp.From.Equal(from) {
				t.Errorf("from = %v, want %v", resp.From, from)
			}
			if p.used {
				t.Error("probe still used after response")
			}
		})
	}
}
