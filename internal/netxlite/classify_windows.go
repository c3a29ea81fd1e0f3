//go:build windows

package netxlite

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// classifySyscallError converts a syscall error to the
// proper failure string, or returns an empty string.
func classifySyscallError(err error) string {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return ""
	}
	switch errno {
	case windows.WSAECONNREFUSED:
		return FailureConnectionRefused
	case windows.WSAECONNRESET:
		return FailureConnectionReset
	case windows.WSAECONNABORTED:
		return FailureConnectionAborted
	case windows.WSAEHOSTUNREACH:
		return FailureHostUnreachable
	case windows.WSAENETUNREACH:
		return FailureNetworkUnreachable
	case windows.WSAETIMEDOUT:
		return FailureTimedOut
	default:
		return ""
	}
}
