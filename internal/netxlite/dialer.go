package netxlite

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/ooni/sslsocket/internal/model"
)

// NewDialer creates the plaintext dialer used by secure connections.
//
// The dialer guarantees:
//
// 1. logging
//
// 2. error wrapping using ConnectOperation
//
// When proxyURL is not nil, connections go through the SOCKS5 proxy
// it refers to (see MaybeWrapWithProxyDialer).
func NewDialer(logger model.DebugLogger, proxyURL *url.URL) model.Dialer {
	return &dialerLogger{
		Dialer: &dialerErrWrapper{
			Dialer: MaybeWrapWithProxyDialer(&DialerSystem{}, proxyURL),
		},
		DebugLogger: logger,
	}
}

// DialerSystem dials using Go stdlib.
type DialerSystem struct {
	// Timeout is the OPTIONAL connect timeout. If zero or
	// negative, we use a default timeout of 15 seconds.
	Timeout time.Duration
}

var _ model.Dialer = &DialerSystem{}

// DialContext implements model.Dialer.DialContext.
func (d *DialerSystem) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   timeout,
		KeepAlive: 15 * time.Second,
	}
	return dialer.DialContext(ctx, network, address)
}

// CloseIdleConnections implements model.Dialer.CloseIdleConnections.
func (d *DialerSystem) CloseIdleConnections() {
	// nothing
}

// dialerErrWrapper is a dialer that performs error wrapping.
type dialerErrWrapper struct {
	Dialer model.Dialer
}

var _ model.Dialer = &dialerErrWrapper{}

// DialContext implements model.Dialer.DialContext.
func (d *dialerErrWrapper) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	conn, err := d.Dialer.DialContext(ctx, network, address)
	if err != nil {
		return nil, NewErrWrapper(ClassifyGenericError, ConnectOperation, err)
	}
	return conn, nil
}

// CloseIdleConnections implements model.Dialer.CloseIdleConnections.
func (d *dialerErrWrapper) CloseIdleConnections() {
	d.Dialer.CloseIdleConnections()
}

// dialerLogger is a Dialer with logging.
type dialerLogger struct {
	// Dialer is the underlying dialer.
	Dialer model.Dialer

	// DebugLogger is the underlying logger.
	DebugLogger model.DebugLogger
}

var _ model.Dialer = &dialerLogger{}

// DialContext implements model.Dialer.DialContext.
func (d *dialerLogger) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.DebugLogger.Debugf("dial %s/%s...", address, network)
	start := time.Now()
	conn, err := d.Dialer.DialContext(ctx, network, address)
	d.DebugLogger.Debugf("dial %s/%s... %s in %s", address, network,
		model.ErrorToStringOrOK(err), time.Since(start))
	return conn, err
}

// CloseIdleConnections implements model.Dialer.CloseIdleConnections.
func (d *dialerLogger) CloseIdleConnections() {
	d.Dialer.CloseIdleConnections()
}
