package netxlite

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"testing"

	"github.com/ooni/sslsocket/internal/model/mocks"
	"github.com/ooni/sslsocket/internal/testingx"
)

// startEchoServer starts a loopback TCP server echoing what it reads.
func startEchoServer(t *testing.T) net.Listener {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				io.Copy(conn, conn)
			}()
		}
	}()
	return listener
}

func TestMaybeWrapWithProxyDialer(t *testing.T) {
	t.Run("returns the original dialer without a proxy URL", func(t *testing.T) {
		child := &mocks.Dialer{}
		if MaybeWrapWithProxyDialer(child, nil) != child {
			t.Fatal("expected the original dialer")
		}
	})

	t.Run("invalid scheme", func(t *testing.T) {
		child := &mocks.Dialer{}
		URL := &url.URL{Scheme: "http", Host: "127.0.0.1:8080"}
		d := MaybeWrapWithProxyDialer(child, URL)
		conn, err := d.DialContext(context.Background(), "tcp", "www.example.com:443")
		if !errors.Is(err, ErrProxyUnsupportedScheme) {
			t.Fatal("not the error we expected", err)
		}
		if conn != nil {
			t.Fatal("conn is not nil")
		}
	})

	t.Run("underlying dial fails with EOF", func(t *testing.T) {
		const expect = "10.0.0.1:9050"
		d := MaybeWrapWithProxyDialer(&mocks.Dialer{
			MockDialContext: func(ctx context.Context, network string, address string) (net.Conn, error) {
				if address != expect {
					return nil, errors.New("unexpected address")
				}
				return nil, io.EOF
			},
		}, &url.URL{Scheme: "socks5", Host: expect})
		conn, err := d.DialContext(context.Background(), "tcp", "www.example.com:443")
		if !errors.Is(err, io.EOF) {
			t.Fatal("not the error we expected", err)
		}
		if conn != nil {
			t.Fatal("conn is not nil")
		}
	})

	t.Run("CloseIdleConnections is forwarded", func(t *testing.T) {
		var called bool
		d := MaybeWrapWithProxyDialer(&mocks.Dialer{
			MockCloseIdleConnections: func() { called = true },
		}, &url.URL{Scheme: "socks5", Host: "127.0.0.1:9050"})
		d.CloseIdleConnections()
		if !called {
			t.Fatal("not called")
		}
	})

	t.Run("relays through a live SOCKS5 server", func(t *testing.T) {
		echo := startEchoServer(t)
		proxy := testingx.MustNewSOCKS5Server(nil)
		defer proxy.Close()
		URL := &url.URL{Scheme: "socks5h", Host: proxy.Endpoint()}
		d := MaybeWrapWithProxyDialer(&DialerSystem{}, URL)
		conn, err := d.DialContext(context.Background(), "tcp", echo.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		defer conn.Close()
		if _, err := conn.Write([]byte("hello")); err != nil {
			t.Fatal(err)
		}
		buffer := make([]byte, 5)
		if _, err := io.ReadFull(conn, buffer); err != nil {
			t.Fatal(err)
		}
		if string(buffer) != "hello" {
			t.Fatal("unexpected echo", string(buffer))
		}
	})

	t.Run("authenticates with the URL user info", func(t *testing.T) {
		echo := startEchoServer(t)
		proxy := testingx.MustNewSOCKS5Server(map[string]string{"user": "secret"})
		defer proxy.Close()

		good := &url.URL{Scheme: "socks5", Host: proxy.Endpoint(), User: url.UserPassword("user", "secret")}
		conn, err := MaybeWrapWithProxyDialer(&DialerSystem{}, good).DialContext(
			context.Background(), "tcp", echo.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		conn.Close()

		bad := &url.URL{Scheme: "socks5", Host: proxy.Endpoint(), User: url.UserPassword("user", "wrong")}
		conn, err = MaybeWrapWithProxyDialer(&DialerSystem{}, bad).DialContext(
			context.Background(), "tcp", echo.Addr().String())
		if err == nil {
			t.Fatal("expected an error")
		}
		if conn != nil {
			t.Fatal("conn is not nil")
		}
	})
}

func TestProxyAuth(t *testing.T) {
	if proxyAuth(&url.URL{}) != nil {
		t.Fatal("expected nil auth")
	}
	auth := proxyAuth(&url.URL{User: url.User("user")})
	if auth == nil || auth.User != "user" || auth.Password != "" {
		t.Fatal("unexpected auth", auth)
	}
}

func TestProxyDialerWrapperDialPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	d := &proxyDialerWrapper{&mocks.Dialer{}}
	d.Dial("tcp", "127.0.0.1:443")
}
