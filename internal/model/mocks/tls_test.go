package mocks

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"reflect"
	"testing"

	"github.com/ooni/sslsocket/internal/model"
)

func TestTLSConnConnectionState(t *testing.T) {
	state := tls.ConnectionState{Version: tls.VersionTLS12}
	c := &TLSConn{
		MockConnectionState: func() tls.ConnectionState {
			return state
		},
	}
	out := c.ConnectionState()
	if !reflect.DeepEqual(out, state) {
		t.Fatal("not the result we expected")
	}
}

func TestTLSConnHandshakeContext(t *testing.T) {
	expected := errors.New("mocked error")
	c := &TLSConn{
		MockHandshakeContext: func(ctx context.Context) error {
			return expected
		},
	}
	err := c.HandshakeContext(context.Background())
	if !errors.Is(err, expected) {
		t.Fatal("not the error we expected", err)
	}
}

func TestTLSConnNetConn(t *testing.T) {
	expected := &Conn{}
	c := &TLSConn{
		MockNetConn: func() net.Conn {
			return expected
		},
	}
	if c.NetConn() != expected {
		t.Fatal("not the conn we expected")
	}
}

func TestTLSEngine(t *testing.T) {
	t.Run("Name", func(t *testing.T) {
		e := &TLSEngine{
			MockName: func() string {
				return "antani"
			},
		}
		if e.Name() != "antani" {
			t.Fatal("unexpected name")
		}
	})

	t.Run("SupportsNonblock and SupportsSNI", func(t *testing.T) {
		e := &TLSEngine{
			MockSupportsNonblock: func() bool {
				return true
			},
			MockSupportsSNI: func() bool {
				return false
			},
		}
		if !e.SupportsNonblock() {
			t.Fatal("expected true")
		}
		if e.SupportsSNI() {
			t.Fatal("expected false")
		}
	})

	t.Run("NewConn", func(t *testing.T) {
		expected := errors.New("mocked error")
		e := &TLSEngine{
			MockNewConn: func(conn net.Conn, config *tls.Config) (model.TLSConn, error) {
				return nil, expected
			},
		}
		tlsConn, err := e.NewConn(&Conn{}, &tls.Config{})
		if !errors.Is(err, expected) {
			t.Fatal("not the error we expected", err)
		}
		if tlsConn != nil {
			t.Fatal("expected nil conn")
		}
	})
}
