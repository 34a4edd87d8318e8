//go:build linux || darwin || freebsd || netbsd || openbsd

package command

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/KilimcininKorOglu/sonda/internal/engine"
	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

// Defaults fills in send-probe options the controller left out.
type Defaults struct {
	TTL     int
	Timeout time.Duration
	UDPPort int
	TCPPort int
	Size    int
}

// Loop is the engine's single thread of control. One select multiplexes
// the command stream, both raw receive sockets, and the connect sockets
// of outstanding stream probes, waking no later than the next probe
// deadline.
type Loop struct {
	net      *engine.NetState
	reporter *Reporter
	in       *os.File
	defaults Defaults

	pending []byte
	eof     bool
}

// NewLoop wires the event loop to an engine and a command input stream.
func NewLoop(net *engine.NetState, reporter *Reporter, in *os.File, defaults Defaults) *Loop {
	return &Loop{
		net:      net,
		reporter: reporter,
		in:       in,
		defaults: defaults,
	}
}

// Run drives the engine until the command stream closes and the last
// outstanding probe has been resolved or timed out.
func (l *Loop) Run() error {
	inFD := int(l.in.Fd())
	if err := unix.SetNonblock(inFD, true); err != nil {
		return fmt.Errorf("command stream nonblock: %w", err)
	}

	for {
		if l.eof && !l.net.Outstanding() {
			return nil
		}

		var readSet, writeSet unix.FdSet
		readSet.Zero()
		writeSet.Zero()

		nfds := 0
		observe := func(fd int) {
			if fd > nfds {
				nfds = fd
			}
		}

		if !l.eof {
			readSet.Set(inFD)
			observe(inFD)
		}

		ip4Recv, ip6Recv := l.net.RecvSockets()
		readSet.Set(ip4Recv)
		observe(ip4Recv)
		readSet.Set(ip6Recv)
		observe(ip6Recv)

		for _, fd := range l.net.StreamSockets() {
			writeSet.Set(fd)
			observe(fd)
		}

		var timeout *unix.Timeval
		if remaining, ok := l.net.NextDeadline(); ok {
			if remaining < 0 {
				remaining = 0
			}
			tv := unix.NsecToTimeval(remaining.Nanoseconds())
			timeout = &tv
		}

		if _, err := unix.Select(nfds+1, &readSet, &writeSet, nil, timeout); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("event loop select: %w", err)
		}

		if !l.eof && readSet.IsSet(inFD) {
			if err := l.readCommands(inFD); err != nil {
				return err
			}
		}

		if err := l.net.ReceiveReplies(); err != nil {
			return err
		}

		l.net.CheckTimeouts()
	}
}

// readCommands drains the non-blocking command stream and dispatches
// every complete line.
func (l *Loop) readCommands(fd int) error {
	buf := make([]byte, 4096)

	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) {
				break
			}
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return fmt.Errorf("reading command stream: %w", err)
		}
		if n == 0 {
			l.eof = true
			break
		}
		l.pending = append(l.pending, buf[:n]...)
	}

	for {
		idx := bytes.IndexByte(l.pending, '\n')
		if idx < 0 {
			break
		}
		line := string(l.pending[:idx])
		l.pending = l.pending[idx+1:]
		l.dispatch(line)
	}

	if l.eof && len(l.pending) > 0 {
		l.dispatch(string(l.pending))
		l.pending = nil
	}

	return nil
}

// dispatch handles one command line. Blank lines are ignored; every other
// line produces exactly one reply, immediately or once its probe resolves.
func (l *Loop) dispatch(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	cmd, token, err := ParseLine(line)
	if err != nil {
		l.reporter.InvalidCommand(token)
		return
	}

	switch cmd.Name {
	case "send-probe":
		l.sendProbe(cmd)
	case "check-support":
		l.checkSupport(cmd)
	}
}

func (l *Loop) sendProbe(cmd *Command) {
	params := cmd.Probe

	if params.TTL == 0 {
		params.TTL = l.defaults.TTL
	}
	if params.Timeout == 0 {
		params.Timeout = l.defaults.Timeout
	}
	if params.Size == 0 {
		params.Size = l.defaults.Size
	}
	if params.DestPort == 0 {
		if params.Protocol == packet.ProtocolUDP {
			params.DestPort = l.defaults.UDPPort
		} else {
			params.DestPort = l.defaults.TCPPort
		}
	}

	if !l.net.ProtocolSupported(params.Protocol) {
		l.reporter.ProbeStatus(params.Token, engine.StatusInvalidArgument)
		return
	}

	l.reporter.RecordSent(params.Token, params.Protocol.String())
	l.net.SendProbe(&params)
}

func (l *Loop) checkSupport(cmd *Command) {
	var ok bool

	switch cmd.Feature {
	case "ip-6":
		ok = true
	default:
		if protocol, known := packet.ParseProtocol(cmd.Feature); known {
			ok = l.net.ProtocolSupported(protocol)
		}
	}

	l.reporter.SupportReply(cmd.Token, ok)
}
