package engine

import "time"

// CheckTimeouts retires every outstanding probe whose deadline has
// passed, reporting no-reply for each. A probe times out at most once:
// retiring it frees the slot.
func (n *NetState) CheckTimeouts() {
	now := time.Now()

	for i := range n.probes {
		p := &n.probes[i]
		if !p.used {
			continue
		}

		if p.timeoutTime.Before(now) {
			n.reporter.ProbeStatus(p.token, StatusNoReply)
			n.freeProbe(p)
		}
	}
}

// NextDeadline returns the time remaining until the earliest outstanding
// probe expires. The value may be negative if that deadline has already
// passed. The second return is false when no probes are outstanding and
// the event loop may wait indefinitely.
func (n *NetState) NextDeadline() (time.Duration, bool) {
	now := time.Now()

	var nearest time.Duration
	have := false

	for i := range n.probes {
		p := &n.probes[i]
		if !p.used {
			continue
		}

		remaining := p.timeoutTime.Sub(now)
		if !have || remaining < nearest {
			nearest = remaining
			have = true
		}
	}

	return nearest, have
}
