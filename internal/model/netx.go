package model

//
// Network extensions
//

import (
	"context"
	"crypto/tls"
	"net"

	oohttp "github.com/ooni/oohttp"
)

// Dialer establishes plaintext byte-stream connections. This is
// the transport we tunnel through proxies and wrap with TLS.
type Dialer interface {
	// DialContext behaves like net.Dialer.DialContext.
	DialContext(ctx context.Context, network, address string) (net.Conn, error)

	// CloseIdleConnections closes idle connections, if any.
	CloseIdleConnections()
}

// TLSConn is the type of connection returned by a TLSEngine. It is the same
// interface that oohttp expects, which allows us to use both the standard
// library and gitlab.com/yawning/utls.git. Note that the stdlib's tls.Conn
// implements this interface.
type TLSConn = oohttp.TLSConn

// Ensures that a tls.Conn implements the TLSConn interface.
var _ TLSConn = &tls.Conn{}

// TLSEngine is the library performing the TLS protocol on our behalf. We
// only configure it (trust policy, client identity, SNI) and sequence it.
type TLSEngine interface {
	// Name returns the engine name (e.g., "stdlib").
	Name() string

	// SupportsNonblock returns whether handshake, read and write can be
	// retried after a would-block condition. The answer only depends on
	// how the engine is built, so callers may cache it.
	SupportsNonblock() bool

	// SupportsSNI returns whether the engine can send the server_name extension.
	SupportsSNI() bool

	// NewConn creates a client-side TLS connection that owns conn: closing
	// the returned TLSConn also closes conn. The handshake is not started.
	NewConn(conn net.Conn, config *tls.Config) (TLSConn, error)
}
