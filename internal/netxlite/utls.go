package netxlite

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"

	"github.com/ooni/sslsocket/internal/model"
	utls "gitlab.com/yawning/utls.git"
)

// TLSEngineUTLS is a TLS engine using gitlab.com/yawning/utls.git to
// parrot the ClientHello of a popular browser.
type TLSEngineUTLS struct {
	// ClientHelloID is the MANDATORY ClientHello to parrot.
	ClientHelloID *utls.ClientHelloID
}

var _ model.TLSEngine = &TLSEngineUTLS{}

// NewTLSEngineUTLS creates a new uTLS engine. A nil id selects
// the automatically updated Chrome fingerprint.
func NewTLSEngineUTLS(id *utls.ClientHelloID) *TLSEngineUTLS {
	if id == nil {
		id = &utls.HelloChrome_Auto
	}
	return &TLSEngineUTLS{ClientHelloID: id}
}

// Name implements model.TLSEngine.
func (*TLSEngineUTLS) Name() string {
	return "utls"
}

// SupportsNonblock implements model.TLSEngine.
func (*TLSEngineUTLS) SupportsNonblock() bool {
	return false
}

// SupportsSNI implements model.TLSEngine.
func (*TLSEngineUTLS) SupportsSNI() bool {
	return true
}

// NewConn implements model.TLSEngine.
func (e *TLSEngineUTLS) NewConn(conn net.Conn, config *tls.Config) (model.TLSConn, error) {
	uconn := utls.UClient(conn, newUTLSConfig(config), *e.ClientHelloID)
	return &utlsConn{UConn: uconn, nc: conn}, nil
}

// newUTLSConfig converts the fields of config we use to a utls.Config.
func newUTLSConfig(config *tls.Config) *utls.Config {
	uconfig := &utls.Config{
		RootCAs:               config.RootCAs,
		NextProtos:            config.NextProtos,
		ServerName:            config.ServerName,
		InsecureSkipVerify:    config.InsecureSkipVerify,
		VerifyPeerCertificate: config.VerifyPeerCertificate,
		MinVersion:            config.MinVersion,
		MaxVersion:            config.MaxVersion,
	}
	for _, cert := range config.Certificates {
		uconfig.Certificates = append(uconfig.Certificates, utls.Certificate{
			Certificate: cert.Certificate,
			PrivateKey:  cert.PrivateKey,
			Leaf:        cert.Leaf,
		})
	}
	return uconfig
}

// utlsConn adapts *utls.UConn to model.TLSConn.
type utlsConn struct {
	*utls.UConn

	// nc is the underlying plaintext conn.
	nc net.Conn

	// testableHandshake allows to override Handshake in tests.
	testableHandshake func() error
}

// ErrUTLSHandshakePanic indicates that there was panic handshaking
// when we were using the yawning/utls library for parroting.
var ErrUTLSHandshakePanic = errors.New("utls: handshake panic")

// HandshakeContext implements model.TLSConn.
func (c *utlsConn) HandshakeContext(ctx context.Context) (err error) {
	errch := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				errch <- fmt.Errorf("%w: %+v", ErrUTLSHandshakePanic, r)
			}
		}()
		errch <- c.handshakefn()()
	}()
	select {
	case err = <-errch:
	case <-ctx.Done():
		err = ctx.Err()
	}
	return
}

func (c *utlsConn) handshakefn() func() error {
	if c.testableHandshake != nil {
		return c.testableHandshake
	}
	return c.UConn.Handshake
}

// NetConn implements model.TLSConn.
func (c *utlsConn) NetConn() net.Conn {
	return c.nc
}

// ConnectionState implements model.TLSConn.
func (c *utlsConn) ConnectionState() tls.ConnectionState {
	state := c.UConn.ConnectionState()
	return tls.ConnectionState{
		Version:            state.Version,
		HandshakeComplete:  state.HandshakeComplete,
		DidResume:          state.DidResume,
		CipherSuite:        state.CipherSuite,
		NegotiatedProtocol: state.NegotiatedProtocol,
		ServerName:         state.ServerName,
		PeerCertificates:   state.PeerCertificates,
		VerifiedChains:     state.VerifiedChains,
	}
}
