package sslsocket

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/ooni/sslsocket/internal/netxlite"
)

// ErrorKind is the subtype of a [*ConnectionError]. Each kind is also
// an error, so that errors.Is(err, ErrHandshake) works.
type ErrorKind string

// Error implements error.
func (k ErrorKind) Error() string {
	return string(k)
}

const (
	// ErrConfig indicates unreadable or malformed certificate or key
	// material, or an invalid [*Config]. No network I/O has happened.
	ErrConfig = ErrorKind("config_error")

	// ErrProxyTunnel indicates that the proxy refused the CONNECT
	// request, sent a response we could not parse, or did not answer
	// before Config.TunnelTimeout.
	ErrProxyTunnel = ErrorKind("proxy_tunnel_error")

	// ErrHandshake indicates a TLS protocol or trust failure, or that
	// the handshake did not complete before Config.HandshakeTimeout.
	ErrHandshake = ErrorKind("handshake_error")

	// ErrCertificateVerification indicates that the leaf certificate
	// does not match the target host.
	ErrCertificateVerification = ErrorKind("certificate_verification_error")

	// ErrTransport indicates an I/O failure of the underlying transport
	// at any stage (e.g., a reset or EOF during the handshake).
	ErrTransport = ErrorKind("transport_error")
)

// errorKindForOperation maps a netxlite operation to an ErrorKind.
func errorKindForOperation(operation string) ErrorKind {
	switch operation {
	case netxlite.ConfigOperation:
		return ErrConfig
	case netxlite.ProxyTunnelOperation:
		return ErrProxyTunnel
	case netxlite.TLSHandshakeOperation:
		return ErrHandshake
	case netxlite.HostnameCheckOperation:
		return ErrCertificateVerification
	default:
		return ErrTransport
	}
}

// isTransportFailure returns whether err is an I/O failure of the underlying
// transport, as opposed to a protocol or trust failure, or the expiry of
// the deadline bounding the current phase.
func isTransportFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}
	// crypto/tls reports alerts as *net.OpError, so look at the text first
	if strings.Contains(err.Error(), "tls: ") {
		return false
	}
	var ew *netxlite.ErrWrapper
	if errors.As(err, &ew) {
		switch ew.Operation {
		case netxlite.ReadOperation, netxlite.WriteOperation, netxlite.CloseOperation:
			return true
		default:
			return false
		}
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	var errno syscall.Errno
	return errors.As(err, &opErr) || errors.As(err, &errno)
}

// newPhaseError wraps an error occurred during the phase named by op. A
// transport failure is wrapped under the read or write operation instead,
// so that it maps to [ErrTransport].
func newPhaseError(classify func(error) string, op string, err error) *netxlite.ErrWrapper {
	if !isTransportFailure(err) {
		return netxlite.NewErrWrapper(classify, op, err)
	}
	op = netxlite.ReadOperation
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "write" {
		op = netxlite.WriteOperation
	}
	return netxlite.NewErrWrapper(netxlite.ClassifyGenericError, op, err)
}

// ConnectionError is the error returned by [*Conn] operations.
type ConnectionError struct {
	// Kind is the error subtype.
	Kind ErrorKind

	// Address is the target endpoint.
	Address string

	// Err is the underlying error, usually a *netxlite.ErrWrapper.
	Err error
}

// newConnectionError wraps err, deriving the kind from the operation
// of the *netxlite.ErrWrapper it contains, if any.
func newConnectionError(address string, err error) *ConnectionError {
	var connErr *ConnectionError
	if errors.As(err, &connErr) {
		return connErr
	}
	kind := ErrTransport
	var ew *netxlite.ErrWrapper
	if errors.As(err, &ew) {
		kind = errorKindForOperation(ew.Operation)
	}
	return &ConnectionError{Kind: kind, Address: address, Err: err}
}

// newConfigError returns a [*ConnectionError] of kind [ErrConfig].
func newConfigError(address string, err error) *ConnectionError {
	return &ConnectionError{
		Kind:    ErrConfig,
		Address: address,
		Err:     netxlite.NewErrWrapper(netxlite.ClassifyConfigError, netxlite.ConfigOperation, err),
	}
}

// Error implements error.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Kind, e.Address, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is returns whether target is the ErrorKind of this error.
func (e *ConnectionError) Is(target error) bool {
	kind, ok := target.(ErrorKind)
	return ok && kind == e.Kind
}

// Failure returns the failure string of the underlying error, which is
// one of the netxlite.FailureXXX strings when we classified the error.
func (e *ConnectionError) Failure() string {
	var ew *netxlite.ErrWrapper
	if errors.As(e.Err, &ew) {
		return ew.Failure
	}
	return netxlite.ClassifyGenericError(e.Err)
}

var (
	// ErrNotConnected is returned by I/O methods before Connect succeeds.
	ErrNotConnected = errors.New("sslsocket: not connected")

	// ErrAlreadyConnected is returned when calling Connect twice.
	ErrAlreadyConnected = errors.New("sslsocket: connect already called")

	// ErrWouldBlock indicates that a non-blocking operation could not
	// make progress. The connection is still usable and the caller
	// should retry once the transport is ready.
	ErrWouldBlock = errors.New("sslsocket: operation would block")
)
