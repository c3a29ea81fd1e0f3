package netxlite

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ooni/sslsocket/internal/model"
	"github.com/ooni/sslsocket/internal/model/mocks"
)

func TestNewDialer(t *testing.T) {
	t.Run("without a proxy", func(t *testing.T) {
		d := NewDialer(model.DiscardLogger, nil)
		logger := d.(*dialerLogger)
		if logger.DebugLogger != model.DiscardLogger {
			t.Fatal("invalid logger")
		}
		errWrapper := logger.Dialer.(*dialerErrWrapper)
		if _, okay := errWrapper.Dialer.(*DialerSystem); !okay {
			t.Fatal("invalid type")
		}
	})

	t.Run("with a proxy", func(t *testing.T) {
		URL := &url.URL{Scheme: "socks5", Host: "127.0.0.1:9050"}
		d := NewDialer(model.DiscardLogger, URL)
		errWrapper := d.(*dialerLogger).Dialer.(*dialerErrWrapper)
		proxied, okay := errWrapper.Dialer.(*proxyDialer)
		if !okay {
			t.Fatal("invalid type")
		}
		if proxied.ProxyURL != URL {
			t.Fatal("invalid proxy URL")
		}
	})

	t.Run("connects to a loopback server", func(t *testing.T) {
		listener := startEchoServer(t)
		d := NewDialer(model.DiscardLogger, nil)
		conn, err := d.DialContext(context.Background(), "tcp", listener.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		conn.Close()
	})

	t.Run("wraps a refused connection", func(t *testing.T) {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		address := listener.Addr().String()
		listener.Close()
		d := NewDialer(model.DiscardLogger, nil)
		conn, err := d.DialContext(context.Background(), "tcp", address)
		var ew *ErrWrapper
		if !errors.As(err, &ew) {
			t.Fatal("not an ErrWrapper", err)
		}
		if ew.Operation != ConnectOperation {
			t.Fatal("unexpected operation", ew.Operation)
		}
		if ew.Failure != FailureConnectionRefused {
			t.Fatal("unexpected failure", ew.Failure)
		}
		if conn != nil {
			t.Fatal("expected nil conn")
		}
	})
}

func TestDialerSystem(t *testing.T) {
	t.Run("CloseIdleConnections", func(t *testing.T) {
		d := &DialerSystem{}
		d.CloseIdleConnections() // should not crash
	})

	t.Run("honours the context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := &DialerSystem{Timeout: time.Second}
		conn, err := d.DialContext(ctx, "tcp", "127.0.0.1:443")
		if err == nil || !strings.HasSuffix(err.Error(), "operation was canceled") {
			t.Fatal("not the error we expected", err)
		}
		if conn != nil {
			t.Fatal("expected nil conn")
		}
	})
}

func TestDialerErrWrapper(t *testing.T) {
	t.Run("DialContext on success", func(t *testing.T) {
		expected := &mocks.Conn{}
		d := &dialerErrWrapper{
			Dialer: &mocks.Dialer{
				MockDialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
					return expected, nil
				},
			},
		}
		conn, err := d.DialContext(context.Background(), "tcp", "www.example.com:443")
		if err != nil {
			t.Fatal(err)
		}
		if conn != expected {
			t.Fatal("unexpected conn")
		}
	})

	t.Run("DialContext on failure", func(t *testing.T) {
		d := &dialerErrWrapper{
			Dialer: &mocks.Dialer{
				MockDialContext: func(ctx context.Context, network, address string) (net.Conn, error) {
					return nil, io.EOF
				},
			},
		}
		conn, err := d.DialContext(context.Background(), "tcp", "www.example.com:443")
		if err == nil || err.Error() != FailureEOFError {
			t.Fatal("not the error we expected", err)
		}
		if !errors.Is(err, io.EOF) {
			t.Fatal("cannot unwrap the error")
		}
		if conn != nil {
			t.Fatal("expected nil conn")
		}
	})

	t.Run("CloseIdleConnections", func(t *testing.T) {
		var called bool
		d := &dialerErrWrapper{
			Dialer: &mocks.Dialer{
				MockCloseIdleConnections: func() { called = true },
			},
		}
		d.CloseIdleConnections()
		if !called {
			t.Fatal("not called")
		}
	})
}

func TestDialerLogger(t *testing.T) {
	newLogger := func(lines *[]string, mu *sync.Mutex) model.DebugLogger {
		return &mocks.Logger{
			MockDebugf: func(format string, v ...interface{}) {
				mu.Lock()
				*lines = append(*lines, fmt.Sprintf(format, v...))
				mu.Unlock()
			},
		}
	}

	t.Run("DialContext on success", func(t *testing.T) {
		var (
			lines []string
			mu    sync.Mutex
		)
		d := &dialerLogger{
			Dialer: &mocks.Dialer{
				MockDialContext: func(ctx context.Context, network string, address string) (net.Conn, error) {
					return &mocks.Conn{
						MockClose: func() error {
							return nil
						},
					}, nil
				},
			},
			DebugLogger: newLogger(&lines, &mu),
		}
		conn, err := d.DialContext(context.Background(), "tcp", "www.example.com:443")
		if err != nil {
			t.Fatal(err)
		}
		conn.Close()
		if len(lines) != 2 || !strings.HasPrefix(lines[1], "dial www.example.com:443/tcp... ok in ") {
			t.Fatal("unexpected log lines", lines)
		}
	})

	t.Run("DialContext on failure", func(t *testing.T) {
		var (
			lines []string
			mu    sync.Mutex
		)
		d := &dialerLogger{
			Dialer: &mocks.Dialer{
				MockDialContext: func(ctx context.Context, network string, address string) (net.Conn, error) {
					return nil, io.EOF
				},
			},
			DebugLogger: newLogger(&lines, &mu),
		}
		conn, err := d.DialContext(context.Background(), "tcp", "www.example.com:443")
		if !errors.Is(err, io.EOF) {
			t.Fatal("not the error we expected")
		}
		if conn != nil {
			t.Fatal("expected nil conn here")
		}
		if len(lines) != 2 || !strings.HasPrefix(lines[1], "dial www.example.com:443/tcp... EOF in ") {
			t.Fatal("unexpected log lines", lines)
		}
	})

	t.Run("CloseIdleConnections", func(t *testing.T) {
		var called bool
		d := &dialerLogger{
			Dialer: &mocks.Dialer{
				MockCloseIdleConnections: func() {
					called = true
				},
			},
		}
		d.CloseIdleConnections()
		if !called {
			t.Fatal("not called")
		}
	})
}
