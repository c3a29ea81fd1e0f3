package sslsocket

//
// TLS handshake
//

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"time"

	"github.com/ooni/sslsocket/internal/model"
	"github.com/ooni/sslsocket/internal/netxlite"
)

// handshaker configures the TLS engine according to a [*TrustPolicy]
// and performs the handshake followed by the hostname check.
type handshaker struct {
	// Engine is the MANDATORY TLS engine.
	Engine model.TLSEngine

	// Logger is the MANDATORY logger.
	Logger model.DebugLogger

	// NextProtos is the OPTIONAL ALPN list.
	NextProtos []string

	// Policy is the MANDATORY trust policy.
	Policy *TrustPolicy
}

// errNoPeerCertificates indicates that the server sent no certificates.
var errNoPeerCertificates = errors.New("tls: server did not send any certificate")

// newTLSConfig returns the engine configuration for host.
//
// We always disable the engine's own verification and verify the chain
// in VerifyPeerCertificate instead, such that the chain check (during
// the handshake) and the hostname check (after it) remain distinct.
func (h *handshaker) newTLSConfig(host string) *tls.Config {
	config := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         h.NextProtos,
	}
	if h.Engine.SupportsSNI() {
		config.ServerName = host
	}
	if h.Policy.ClientIdentity != nil {
		config.Certificates = []tls.Certificate{*h.Policy.ClientIdentity}
	}
	if h.Policy.Mode == TrustModePeer {
		roots := h.Policy.Roots
		config.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyPeerChain(rawCerts, roots)
		}
	}
	return config
}

// verifyPeerChain verifies the chain without checking the hostname.
func verifyPeerChain(rawCerts [][]byte, roots *x509.CertPool) error {
	if len(rawCerts) < 1 {
		return errNoPeerCertificates
	}
	certs := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return err
		}
		certs = append(certs, cert)
	}
	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}
	_, err := certs[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
	})
	return err
}

// NewConn wraps conn with TLS. The returned conn owns conn. On failure,
// conn is closed.
func (h *handshaker) NewConn(conn net.Conn, host string) (model.TLSConn, *tls.Config, error) {
	config := h.newTLSConfig(host)
	tlsconn, err := h.Engine.NewConn(conn, config)
	if err != nil {
		conn.Close()
		return nil, nil, netxlite.NewErrWrapper(netxlite.ClassifyTLSHandshakeError, netxlite.TLSHandshakeOperation, err)
	}
	return tlsconn, config, nil
}

// Handshake performs the handshake and, in PEER mode, checks that the leaf
// certificate matches host. On failure, the caller MUST close tlsconn unless
// the error is a context.DeadlineExceeded it wants to retry.
func (h *handshaker) Handshake(ctx context.Context, tlsconn model.TLSConn,
	config *tls.Config, host string) (tls.ConnectionState, error) {
	h.Logger.Debugf("tls {sni=%s next=%+v}...", config.ServerName, config.NextProtos)
	start := time.Now()
	if err := tlsconn.HandshakeContext(ctx); err != nil {
		h.Logger.Debugf("tls {sni=%s next=%+v}... %s in %s",
			config.ServerName, config.NextProtos, err, time.Since(start))
		return tls.ConnectionState{}, err
	}
	state := tlsconn.ConnectionState()
	if h.Policy.Mode == TrustModePeer {
		if err := verifyHostname(state, host); err != nil {
			h.Logger.Debugf("tls {sni=%s next=%+v}... %s in %s",
				config.ServerName, config.NextProtos, err, time.Since(start))
			return tls.ConnectionState{}, netxlite.NewErrWrapper(
				netxlite.ClassifyHostnameError, netxlite.HostnameCheckOperation, err)
		}
	}
	h.Logger.Debugf("tls {sni=%s next=%+v}... ok in %s {next=%s cipher=%s v=%s}",
		config.ServerName, config.NextProtos, time.Since(start), state.NegotiatedProtocol,
		netxlite.TLSCipherSuiteString(state.CipherSuite),
		netxlite.TLSVersionString(state.Version))
	return state, nil
}

// verifyHostname checks the leaf certificate against host.
func verifyHostname(state tls.ConnectionState, host string) error {
	if len(state.PeerCertificates) < 1 {
		return errNoPeerCertificates
	}
	return state.PeerCertificates[0].VerifyHostname(host)
}
