// Package command implements the textual command/response protocol the
// probe engine speaks with its controlling process, and the event loop
// that drives it.
package command

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/KilimcininKorOglu/sonda/internal/engine"
	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

// Command-stream errors.
var (
	// ErrInvalidCommand indicates a line that could not be parsed
	ErrInvalidCommand = errors.New("invalid command")
)

// Command is one parsed line from the command stream.
type Command struct {
	Token int

	// Name is the command verb: send-probe or check-support.
	Name string

	// Probe holds the request when Name is send-probe.
	Probe engine.ProbeParams

	// Feature holds the queried feature when Name is check-support.
	Feature string
}

// ParseLine parses one command line. The token is returned even on
// failure so the error reply can be keyed; it is zero when the token
// itself was unreadable or the line has no command verb after it.
func ParseLine(line string) (*Command, int, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return nil, 0, fmt.Errorf("%w: %q", ErrInvalidCommand, line)
	}

	token, err := strconv.Atoi(fields[0])
	if err != nil || token < 0 {
		return nil, 0, fmt.Errorf("%w: bad token %q", ErrInvalidCommand, fields[0])
	}

	switch fields[1] {
	case "send-probe":
		return parseSendProbe(token, fields[2:])
	case "check-support":
		return parseCheckSupport(token, fields[2:])
	}

	return nil, token, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, fields[1])
}

// parseSendProbe reads `<protocol> <address>` followed by key/value
// option pairs.
func parseSendProbe(token int, args []string) (*Command, int, error) {
	if len(args) < 2 {
		return nil, token, fmt.Errorf("%w: send-probe needs protocol and address", ErrInvalidCommand)
	}

	protocol, ok := packet.ParseProtocol(args[0])
	if !ok {
		return nil, token, fmt.Errorf("%w: unknown protocol %q", ErrInvalidCommand, args[0])
	}

	cmd := &Command{
		Token: token,
		Name:  "send-probe",
		Probe: engine.ProbeParams{
			Token:    token,
			Protocol: protocol,
			Address:  args[1],
		},
	}

	opts := args[2:]
	if len(opts)%2 != 0 {
		return nil, token, fmt.Errorf("%w: dangling option %q", ErrInvalidCommand, opts[len(opts)-1])
	}

	for i := 0; i < len(opts); i += 2 {
		key, value := opts[i], opts[i+1]

		switch key {
		case "ttl":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 255 {
				return nil, token, fmt.Errorf("%w: bad ttl %q", ErrInvalidCommand, value)
			}
			cmd.Probe.TTL = n

		case "timeout":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 {
				return nil, token, fmt.Errorf("%w: bad timeout %q", ErrInvalidCommand, value)
			}
			cmd.Probe.Timeout = time.Duration(n) * time.Second

		case "port":
			n, err := strconv.Atoi(value)
			if err != nil || n < 1 || n > 65535 {
				return nil, token, fmt.Errorf("%w: bad port %q", ErrInvalidCommand, value)
			}
			cmd.Probe.DestPort = n

		case "size":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return nil, token, fmt.Errorf("%w: bad size %q", ErrInvalidCommand, value)
			}
			cmd.Probe.Size = n

		case "local-ip":
			ip := net.ParseIP(value)
			if ip == nil {
				return nil, token, fmt.Errorf("%w: bad local-ip %q", ErrInvalidCommand, value)
			}
			cmd.Probe.LocalIP = ip

		case "ip-version":
			n, err := strconv.Atoi(value)
			if err != nil || (n != 4 && n != 6) {
				return nil, token, fmt.Errorf("%w: bad ip-version %q", ErrInvalidCommand, value)
			}
			cmd.Probe.IPVersion = n

		default:
			return nil, token, fmt.Errorf("%w: unknown option %q", ErrInvalidCommand, key)
		}
	}

	return cmd, token, nil
}

func parseCheckSupport(token int, args []string) (*Command, int, error) {
	if len(args) != 2 || args[0] != "feature" {
		return nil, token, fmt.Errorf("%w: check-support needs a feature", ErrInvalidCommand)
	}

	return &Command{
		Token:   token,
		Name:    "check-support",
		Feature: args[1],
	}, token, nil
}
