package mocks

import (
	"context"
	"crypto/tls"
	"net"

	"github.com/ooni/sslsocket/internal/model"
)

// TLSConn allows to mock model.TLSConn.
type TLSConn struct {
	// Conn is the embedded mockable Conn.
	Conn

	// MockConnectionState allows to mock the ConnectionState method.
	MockConnectionState func() tls.ConnectionState

	// MockHandshakeContext allows to mock the HandshakeContext method.
	MockHandshakeContext func(ctx context.Context) error

	// MockNetConn allows to mock the NetConn method.
	MockNetConn func() net.Conn
}

var _ model.TLSConn = &TLSConn{}

// ConnectionState calls MockConnectionState.
func (c *TLSConn) ConnectionState() tls.ConnectionState {
	return c.MockConnectionState()
}

// HandshakeContext calls MockHandshakeContext.
func (c *TLSConn) HandshakeContext(ctx context.Context) error {
	return c.MockHandshakeContext(ctx)
}

// NetConn calls MockNetConn.
func (c *TLSConn) NetConn() net.Conn {
	return c.MockNetConn()
}

// TLSEngine allows to mock model.TLSEngine.
type TLSEngine struct {
	MockName             func() string
	MockSupportsNonblock func() bool
	MockSupportsSNI      func() bool
	MockNewConn          func(conn net.Conn, config *tls.Config) (model.TLSConn, error)
}

var _ model.TLSEngine = &TLSEngine{}

// Name calls MockName.
func (e *TLSEngine) Name() string {
	return e.MockName()
}

// SupportsNonblock calls MockSupportsNonblock.
func (e *TLSEngine) SupportsNonblock() bool {
	return e.MockSupportsNonblock()
}

// SupportsSNI calls MockSupportsSNI.
func (e *TLSEngine) SupportsSNI() bool {
	return e.MockSupportsSNI()
}

// NewConn calls MockNewConn.
func (e *TLSEngine) NewConn(conn net.Conn, config *tls.Config) (model.TLSConn, error) {
	return e.MockNewConn(conn, config)
}
