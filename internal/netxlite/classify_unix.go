//go:build unix

package netxlite

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// classifySyscallError converts a syscall error to the
// proper failure string, or returns an empty string.
func classifySyscallError(err error) string {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return ""
	}
	switch errno {
	case unix.ECONNREFUSED:
		return FailureConnectionRefused
	case unix.ECONNRESET:
		return FailureConnectionReset
	case unix.ECONNABORTED:
		return FailureConnectionAborted
	case unix.EHOSTUNREACH:
		return FailureHostUnreachable
	case unix.ENETUNREACH:
		return FailureNetworkUnreachable
	case unix.ETIMEDOUT:
		return FailureTimedOut
	default:
		return ""
	}
}
