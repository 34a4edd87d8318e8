//go:build linux || darwin || freebsd || netbsd || openbsd

package engine

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/sys/unix"
)

func TestClassifyErrno(t *testing.T) {
	tests := []struct {
		errno unix.Errno
		want  string
	}{
		{unix.EINVAL, "invalid-argument"},
		{unix.ENETDOWN, "network-down"},
		{unix.ENETUNREACH, "no-route"},
		{unix.EPERM, "permission-denied"},
		{unix.EADDRINUSE, "address-in-use"},
		{unix.ECONNRESET, fmt.Sprintf("unexpected-error errno %d", int(unix.ECONNRESET))},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := classifyErrno(tt.errno); got != tt.want {
				t.Errorf("classifyErrno(%v) = %q, want %q", tt.errno, got, tt.want)
			}
		})
	}
}

func TestClassifySendError_UnwrapsErrno(t *testing.T) {
	err := fmt.Errorf("stream socket: %w", unix.ENETUNREACH)

	if got := classifySendError(err); got != StatusNoRoute {
		t.Errorf("classifySendError(wrapped ENETUNREACH) = %q, want %q", got, StatusNoRoute)
	}
}

func TestClassifySendError_NonErrno(t *testing.T) {
	// Constructor sentinel errors are argument problems.
	err := errors.New("TTL must be between 1 and 255")

	if got := classifySendError(err); got != StatusInvalidArgument {
		t.Errorf("classifySendError(sentinel) = %q, want %q", got, StatusInvalidArgument)
	}
}
