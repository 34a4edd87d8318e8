//go:build linux || darwin || freebsd || netbsd || openbsd

package engine

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Status tokens emitted on the command stream. The vocabulary is closed:
// anything outside it is reported through the unexpected-error form.
const (
	StatusProbesExhausted  = "probes-exhausted"
	StatusInvalidArgument  = "invalid-argument"
	StatusNetworkDown      = "network-down"
	StatusNoRoute          = "no-route"
	StatusPermissionDenied = "permission-denied"
	StatusAddressInUse     = "address-in-use"
	StatusNoReply          = "no-reply"
)

// classifySendError maps a send or connect failure to its status token.
func classifySendError(err error) string {
	var errno unix.Errno
	if !errors.As(err, &errno) {
		return StatusInvalidArgument
	}
	return classifyErrno(errno)
}

func classifyErrno(errno unix.Errno) string {
	switch errno {
	case unix.EINVAL:
		return StatusInvalidArgument
	case unix.ENETDOWN:
		return StatusNetworkDown
	case unix.ENETUNREACH:
		return StatusNoRoute
	case unix.EPERM:
		return StatusPermissionDenied
	case unix.EADDRINUSE:
		return StatusAddressInUse
	}
	return fmt.Sprintf("unexpected-error errno %d", int(errno))
}
