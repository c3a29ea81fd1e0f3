package netxlite

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTLSVersionString(t *testing.T) {
	if TLSVersionString(tls.VersionTLS13) != "TLSv1.3" {
		t.Fatal("not working for existing version")
	}
	if TLSVersionString(tls.VersionTLS12) != "TLSv1.2" {
		t.Fatal("not working for existing version")
	}
	if TLSVersionString(tls.VersionTLS10) != "TLSv1" {
		t.Fatal("not working for TLSv1")
	}
	if TLSVersionString(1) != "TLS_VERSION_UNKNOWN_1" {
		t.Fatal("not working for nonexisting version")
	}
	if TLSVersionString(0) != "" {
		t.Fatal("not working for zero version")
	}
}

func TestTLSCipherSuiteString(t *testing.T) {
	if TLSCipherSuiteString(tls.TLS_AES_128_GCM_SHA256) != "TLS_AES_128_GCM_SHA256" {
		t.Fatal("not working for existing cipher suite")
	}
	if TLSCipherSuiteString(1) != "TLS_CIPHER_SUITE_UNKNOWN_1" {
		t.Fatal("not working for nonexisting cipher suite")
	}
	if TLSCipherSuiteString(0) != "" {
		t.Fatal("not working for zero cipher suite")
	}
}

func TestNewTLSEngine(t *testing.T) {
	var cases = []struct {
		name   string
		expect string
		err    error
	}{
		{"", "stdlib", nil},
		{"stdlib", "stdlib", nil},
		{"utls", "utls", nil},
		{"openssl", "", ErrUnknownTLSEngine},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewTLSEngine(tc.name)
			if !errors.Is(err, tc.err) {
				t.Fatal("not the error we expected", err)
			}
			if err != nil {
				if engine != nil {
					t.Fatal("expected nil engine")
				}
				return
			}
			if engine.Name() != tc.expect {
				t.Fatal("unexpected engine", engine.Name())
			}
			if engine.SupportsNonblock() {
				t.Fatal("built-in engines cannot resume a handshake")
			}
			if !engine.SupportsSNI() {
				t.Fatal("built-in engines support SNI")
			}
		})
	}
}

// newTLSTestServer starts an httptest TLS server and returns it along
// with a client config trusting its certificate.
func newTLSTestServer(t *testing.T) (*httptest.Server, *tls.Config) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello"))
	}))
	t.Cleanup(srv.Close)
	transport := srv.Client().Transport.(*http.Transport)
	config := &tls.Config{
		RootCAs:    transport.TLSClientConfig.RootCAs,
		ServerName: "example.com",
		NextProtos: []string{"http/1.1"},
	}
	return srv, config
}

func TestTLSEngineStdlib(t *testing.T) {
	t.Run("handshakes with a loopback server", func(t *testing.T) {
		srv, config := newTLSTestServer(t)
		conn, err := net.Dial("tcp", srv.Listener.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		tconn, err := (&TLSEngineStdlib{}).NewConn(conn, config)
		if err != nil {
			t.Fatal(err)
		}
		defer tconn.Close()
		if err := tconn.HandshakeContext(context.Background()); err != nil {
			t.Fatal(err)
		}
		state := tconn.ConnectionState()
		if !state.HandshakeComplete {
			t.Fatal("handshake not complete")
		}
		if state.NegotiatedProtocol != "http/1.1" {
			t.Fatal("unexpected ALPN", state.NegotiatedProtocol)
		}
		if tconn.NetConn() != conn {
			t.Fatal("NetConn does not return the underlying conn")
		}
	})

	t.Run("closing the TLS conn closes the transport", func(t *testing.T) {
		client, server := net.Pipe()
		defer server.Close()
		tconn, err := (&TLSEngineStdlib{}).NewConn(client, &tls.Config{ServerName: "example.com"})
		if err != nil {
			t.Fatal(err)
		}
		tconn.Close()
		if _, err := client.Write([]byte("x")); !errors.Is(err, io.ErrClosedPipe) {
			t.Fatal("transport still open", err)
		}
	})
}
