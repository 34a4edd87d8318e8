//go:build linux || darwin || freebsd || netbsd || openbsd

package engine

import (
	"errors"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/KilimcininKorOglu/sonda/internal/packet"
)

var localhostIP4 = net.IPv4(127, 0, 0, 1).To4()

func localhostSockaddr() unix.Sockaddr {
	sa := &unix.SockaddrInet4{}
	copy(sa.Addr[:], localhostIP4)
	return sa
}

// SendProbe transmits one probe. Every outcome surfaces as exactly one
// line on the command stream: an immediate status through the reporter,
// or a delayed response/timeout once the probe is outstanding.
func (n *NetState) SendProbe(params *ProbeParams) {
	probe := n.allocProbe(params.Token)
	if probe == nil {
		n.reporter.ProbeStatus(params.Token, StatusProbesExhausted)
		return
	}

	if err := n.resolveProbe(probe, params); err != nil {
		n.reporter.ProbeStatus(params.Token, StatusInvalidArgument)
		n.freeProbe(probe)
		return
	}

	probe.departureTime = time.Now()

	constructed, err := packet.Construct(&packet.Spec{
		Protocol:          probe.protocol,
		IPVersion:         probe.ipVersion,
		TTL:               params.TTL,
		Port:              probe.port,
		Token:             probe.token,
		LocalIP:           probe.localIP,
		RemoteIP:          probe.remoteIP,
		DestPort:          probe.remotePort,
		Size:              params.Size,
		IPLengthHostOrder: n.ipLengthHostOrder,
	})

	if err != nil {
		// A stream connect to a closed local port can be refused
		// synchronously, before the socket ever reports writable.
		// That still proves the destination answered.
		if errors.Is(err, unix.ECONNREFUSED) {
			probe.streamFD = constructed.StreamFD
			n.receiveProbe(probe, packet.KindEchoReply, probe.remoteIP, time.Now())
			return
		}

		n.reporter.ProbeStatus(params.Token, classifySendError(err))
		n.freeProbe(probe)
		return
	}

	probe.streamFD = constructed.StreamFD

	if len(constructed.Data) > 0 {
		if err := n.sendPacket(probe, constructed.Data); err != nil {
			n.reporter.ProbeStatus(params.Token, classifySendError(err))
			n.freeProbe(probe)
			return
		}
	}

	probe.timeoutTime = probe.departureTime.Add(params.Timeout)

	logrus.WithFields(logrus.Fields{
		"token":    probe.token,
		"port":     probe.port,
		"protocol": probe.protocol.String(),
		"dest":     probe.remoteIP.String(),
		"ttl":      params.TTL,
	}).Debug("probe sent")
}

// resolveProbe decodes the destination address and fills the probe's
// addressing fields. Addresses must be IP literals.
func (n *NetState) resolveProbe(probe *Probe, params *ProbeParams) error {
	ip := net.ParseIP(params.Address)
	if ip == nil {
		return ErrInvalidAddress
	}

	version := params.IPVersion
	if version == 0 {
		version = 6
		if ip.To4() != nil {
			version = 4
		}
	}

	switch version {
	case 4:
		if ip.To4() == nil {
			return ErrInvalidAddress
		}
		ip = ip.To4()
	case 6:
		if ip.To4() != nil {
			return ErrInvalidAddress
		}
	default:
		return ErrInvalidAddress
	}

	if params.Timeout <= 0 || params.TTL < 1 || params.TTL > 255 {
		return ErrInvalidParams
	}

	probe.protocol = params.Protocol
	probe.ipVersion = version
	probe.remoteIP = ip
	probe.remotePort = params.DestPort
	probe.localIP = params.LocalIP

	// IPv6 UDP checksums are mandatory and need the source address the
	// kernel will pick.
	if probe.localIP == nil && version == 6 && params.Protocol == packet.ProtocolUDP {
		probe.localIP = outboundIP(ip)
		if probe.localIP == nil {
			return ErrNoSourceAddress
		}
	}

	return nil
}

// outboundIP finds the local address the kernel would route toward dest,
// by opening a connected UDP socket that never sends anything.
func outboundIP(dest net.IP) net.IP {
	network := "udp4"
	if dest.To4() == nil {
		network = "udp6"
	}

	conn, err := net.Dial(network, net.JoinHostPort(dest.String(), "33434"))
	if err != nil {
		return nil
	}
	defer conn.Close()

	return conn.LocalAddr().(*net.UDPAddr).IP
}
