package command

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/KilimcininKorOglu/sonda/internal/engine"
	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

func TestParseLine_SendProbe(t *testing.T) {
	tests := []struct {
		name string
		line string
		want engine.ProbeParams
	}{
		{
			name: "minimal icmp",
			line: "1 send-probe icmp 127.0.0.1",
			want: engine.ProbeParams{
				Token:    1,
				Protocol: packet.ProtocolICMP,
				Address:  "127.0.0.1",
			},
		},
		{
			name: "icmp with ttl and timeout",
			line: "1 send-probe icmp 127.0.0.1 ttl 255 timeout 10",
			want: engine.ProbeParams{
				Token:    1,
				Protocol: packet.ProtocolICMP,
				Address:  "127.0.0.1",
				TTL:      255,
				Timeout:  10 * time.Second,
			},
		},
		{
			name: "tcp with port",
			line: "3 send-probe tcp 127.0.0.1 port 1 ttl 255 timeout 5",
			want: engine.ProbeParams{
				Token:    3,
				Protocol: packet.ProtocolTCP,
				Address:  "127.0.0.1",
				DestPort: 1,
				TTL:      255,
				Timeout:  5 * time.Second,
			},
		},
		{
			name: "udp with size and forced version",
			line: "12 send-probe udp 2001:db8::1 ip-version 6 size 128 ttl 8 timeout 2",
			want: engine.ProbeParams{
				Token:     12,
				Protocol:  packet.ProtocolUDP,
				Address:   "2001:db8::1",
				IPVersion: 6,
				Size:      128,
				TTL:       8,
				Timeout:   2 * time.Second,
			},
		},
		{
			name: "local ip",
			line: "4 send-probe udp 198.51.100.9 local-ip 192.0.2.1 ttl 2 timeout 3",
			want: engine.ProbeParams{
				Token:    4,
				Protocol: packet.ProtocolUDP,
				Address:  "198.51.100.9",
				LocalIP:  net.ParseIP("192.0.2.1"),
				TTL:      2,
				Timeout:  3 * time.Second,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, token, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine(%q) error = %v", tt.line, err)
			}
			if token != tt.want.Token {
				t.Errorf("token = %d, want %d", token, tt.want.Token)
			}
			if cmd.Name != "send-probe" {
				t.Errorf("name = %q, want send-probe", cmd.Name)
			}
			if diff := cmp.Diff(tt.want, cmd.Probe); diff != "" {
				t.Errorf("probe params mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseLine_CheckSupport(t *testing.T) {
	cmd, token, err := ParseLine("7 check-support feature sctp")
	if err != nil {
		t.Fatalf("ParseLine() error = %v", err)
	}
	if token != 7 || cmd.Token != 7 {
		t.Errorf("token = %d, want 7", token)
	}
	if cmd.Name != "check-support" {
		t.Errorf("name = %q, want check-support", cmd.Name)
	}
	if cmd.Feature != "sctp" {
		t.Errorf("feature = %q, want sctp", cmd.Feature)
	}
}

func TestParseLine_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantToken int
	}{
		{"empty verb", "5", 0},
		{"bad token", "x send-probe icmp 127.0.0.1", 0},
		{"negative token", "-1 send-probe icmp 127.0.0.1", 0},
		{"unknown command", "5 make-coffee", 5},
		{"missing address", "5 send-probe icmp", 5},
		{"unknown protocol", "5 send-probe gre 127.0.0.1", 5},
		{"dangling option", "5 send-probe icmp 127.0.0.1 ttl", 5},
		{"unknown option", "5 send-probe icmp 127.0.0.1 color red", 5},
		{"bad ttl", "5 send-probe icmp 127.0.0.1 ttl 900", 5},
		{"bad timeout", "5 send-probe icmp 127.0.0.1 timeout zero", 5},
		{"bad port", "5 send-probe tcp 127.0.0.1 port 70000", 5},
		{"bad local ip", "5 send-probe icmp 127.0.0.1 local-ip nowhere", 5},
		{"bad ip version", "5 send-probe icmp 127.0.0.1 ip-version 5", 5},
		{"check-support without feature", "5 check-support", 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, token, err := ParseLine(tt.line)
			if !errors.Is(err, ErrInvalidCommand) {
				t.Fatalf("ParseLine(%q) error = %v, want ErrInvalidCommand", tt.line, err)
			}
			if cmd != nil {
				t.Error("command returned alongside error")
			}
			if token != tt.wantToken {
				t.Errorf("token = %d, want %d", token, tt.wantToken)
			}
		})
	}
}
