package netxlite

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	utls "gitlab.com/yawning/utls.git"
)

func TestNewTLSEngineUTLS(t *testing.T) {
	t.Run("defaults to Chrome", func(t *testing.T) {
		engine := NewTLSEngineUTLS(nil)
		if engine.ClientHelloID != &utls.HelloChrome_Auto {
			t.Fatal("unexpected ClientHelloID")
		}
	})

	t.Run("honours the given ClientHelloID", func(t *testing.T) {
		engine := NewTLSEngineUTLS(&utls.HelloFirefox_Auto)
		if engine.ClientHelloID != &utls.HelloFirefox_Auto {
			t.Fatal("unexpected ClientHelloID")
		}
	})
}

func TestTLSEngineUTLS(t *testing.T) {
	t.Run("handshakes with a loopback server", func(t *testing.T) {
		srv, config := newTLSTestServer(t)
		var verified bool
		config.VerifyPeerCertificate = func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			verified = len(rawCerts) > 0
			return nil
		}
		conn, err := net.Dial("tcp", srv.Listener.Addr().String())
		if err != nil {
			t.Fatal(err)
		}
		engine := NewTLSEngineUTLS(&utls.HelloGolang)
		tconn, err := engine.NewConn(conn, config)
		if err != nil {
			t.Fatal(err)
		}
		defer tconn.Close()
		if err := tconn.HandshakeContext(context.Background()); err != nil {
			t.Fatal(err)
		}
		if !verified {
			t.Fatal("VerifyPeerCertificate not called")
		}
		state := tconn.ConnectionState()
		if !state.HandshakeComplete {
			t.Fatal("handshake not complete")
		}
		if len(state.PeerCertificates) < 1 {
			t.Fatal("expected peer certificates")
		}
		if state.Version < tls.VersionTLS12 {
			t.Fatal("unexpected version", state.Version)
		}
		if tconn.NetConn() != conn {
			t.Fatal("NetConn does not return the underlying conn")
		}
	})

}

func TestNewUTLSConfig(t *testing.T) {
	pool := x509.NewCertPool()
	config := &tls.Config{
		RootCAs:            pool,
		NextProtos:         []string{"h2", "http/1.1"},
		ServerName:         "www.example.com",
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
		MaxVersion:         tls.VersionTLS13,
		Certificates:       []tls.Certificate{{Certificate: [][]byte{{1, 2, 3}}}},
	}
	uconfig := newUTLSConfig(config)
	if uconfig.RootCAs != pool {
		t.Fatal("RootCAs not copied")
	}
	if diff := cmp.Diff(config.NextProtos, uconfig.NextProtos); diff != "" {
		t.Fatal(diff)
	}
	if uconfig.ServerName != "www.example.com" || !uconfig.InsecureSkipVerify {
		t.Fatal("ServerName or InsecureSkipVerify not copied")
	}
	if uconfig.MinVersion != tls.VersionTLS12 || uconfig.MaxVersion != tls.VersionTLS13 {
		t.Fatal("versions not copied")
	}
	if len(uconfig.Certificates) != 1 {
		t.Fatal("certificates not copied")
	}
	if diff := cmp.Diff(config.Certificates[0].Certificate, uconfig.Certificates[0].Certificate); diff != "" {
		t.Fatal(diff)
	}
}

func TestUTLSConnHandshakeContext(t *testing.T) {
	t.Run("not interrupted with success", func(t *testing.T) {
		conn := &utlsConn{
			testableHandshake: func() error {
				return nil
			},
		}
		if err := conn.HandshakeContext(context.Background()); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("not interrupted with failure", func(t *testing.T) {
		expected := errors.New("mocked error")
		conn := &utlsConn{
			testableHandshake: func() error {
				return expected
			},
		}
		if err := conn.HandshakeContext(context.Background()); !errors.Is(err, expected) {
			t.Fatal("not the error we expected", err)
		}
	})

	t.Run("interrupted", func(t *testing.T) {
		wg := sync.WaitGroup{}
		wg.Add(1)
		sigch := make(chan interface{})
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		conn := &utlsConn{
			testableHandshake: func() error {
				defer wg.Done()
				<-sigch
				return nil
			},
		}
		if err := conn.HandshakeContext(ctx); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatal("not the error we expected", err)
		}
		close(sigch)
		wg.Wait()
	})

	t.Run("with panic", func(t *testing.T) {
		wg := sync.WaitGroup{}
		wg.Add(1)
		conn := &utlsConn{
			testableHandshake: func() error {
				defer wg.Done()
				panic("mascetti")
			},
		}
		if err := conn.HandshakeContext(context.Background()); !errors.Is(err, ErrUTLSHandshakePanic) {
			t.Fatal("not the error we expected", err)
		}
		wg.Wait()
	})
}
