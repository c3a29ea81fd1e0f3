package netxlite

//
// Optional SOCKS5 upstream for the plaintext dialer
//

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/ooni/sslsocket/internal/model"
	"golang.org/x/net/proxy"
)

// proxyDialer is a dialer using a SOCKS5 proxy.
type proxyDialer struct {
	Dialer   model.Dialer
	ProxyURL *url.URL
}

// MaybeWrapWithProxyDialer returns the original dialer if the proxyURL is nil
// and otherwise returns a wrapped dialer that implements proxying. The only
// supported schemes are "socks5" and "socks5h". HTTP proxies are handled by
// the CONNECT tunnel on top of the plaintext connection instead.
func MaybeWrapWithProxyDialer(dialer model.Dialer, proxyURL *url.URL) model.Dialer {
	if proxyURL == nil {
		return dialer
	}
	return &proxyDialer{
		Dialer:   dialer,
		ProxyURL: proxyURL,
	}
}

var _ model.Dialer = &proxyDialer{}

// CloseIdleConnections implements Dialer.CloseIdleConnections.
func (d *proxyDialer) CloseIdleConnections() {
	d.Dialer.CloseIdleConnections()
}

// ErrProxyUnsupportedScheme indicates we don't support the proxy scheme.
var ErrProxyUnsupportedScheme = errors.New("proxy: unsupported scheme")

// DialContext implements Dialer.DialContext.
func (d *proxyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	switch d.ProxyURL.Scheme {
	case "socks5", "socks5h":
	default:
		return nil, ErrProxyUnsupportedScheme
	}
	// the code at proxy/socks5.go never fails; see https://git.io/JfJ4g
	child, _ := proxy.SOCKS5(network, d.ProxyURL.Host, proxyAuth(d.ProxyURL), &proxyDialerWrapper{d.Dialer})
	cd := child.(proxy.ContextDialer) // will work
	return cd.DialContext(ctx, network, address)
}

// proxyAuth returns the SOCKS5 credentials embedded in the URL, if any.
func proxyAuth(URL *url.URL) *proxy.Auth {
	if URL.User == nil {
		return nil
	}
	password, _ := URL.User.Password()
	return &proxy.Auth{User: URL.User.Username(), Password: password}
}

// proxyDialerWrapper is required because SOCKS5 expects a Dialer.Dial type but internally
// it checks whether DialContext is available and prefers that. So, we need to use this
// structure to cast our inner Dialer the way in which SOCKS5 likes it.
//
// See https://git.io/JfJ4g.
type proxyDialerWrapper struct {
	model.Dialer
}

func (d *proxyDialerWrapper) Dial(network, address string) (net.Conn, error) {
	panic(errors.New("proxyDialerWrapper.Dial should not be called directly"))
}
