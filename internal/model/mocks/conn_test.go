package mocks

import (
	"errors"
	"net"
	"testing"
	"time"
)

func TestConn(t *testing.T) {
	t.Run("Read", func(t *testing.T) {
		expected := errors.New("mocked error")
		c := &Conn{
			MockRead: func(b []byte) (int, error) {
				return 0, expected
			},
		}
		count, err := c.Read(make([]byte, 128))
		if !errors.Is(err, expected) {
			t.Fatal("not the error we expected", err)
		}
		if count != 0 {
			t.Fatal("expected 0 bytes")
		}
	})

	t.Run("Write", func(t *testing.T) {
		expected := errors.New("mocked error")
		c := &Conn{
			MockWrite: func(b []byte) (int, error) {
				return 0, expected
			},
		}
		count, err := c.Write(make([]byte, 128))
		if !errors.Is(err, expected) {
			t.Fatal("not the error we expected", err)
		}
		if count != 0 {
			t.Fatal("expected 0 bytes")
		}
	})

	t.Run("Close", func(t *testing.T) {
		expected := errors.New("mocked error")
		c := &Conn{
			MockClose: func() error {
				return expected
			},
		}
		if err := c.Close(); !errors.Is(err, expected) {
			t.Fatal("not the error we expected", err)
		}
	})

	t.Run("LocalAddr and RemoteAddr", func(t *testing.T) {
		addr := &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 443}
		c := &Conn{
			MockLocalAddr: func() net.Addr {
				return addr
			},
			MockRemoteAddr: func() net.Addr {
				return addr
			},
		}
		if c.LocalAddr() != addr {
			t.Fatal("not the LocalAddr we expected")
		}
		if c.RemoteAddr() != addr {
			t.Fatal("not the RemoteAddr we expected")
		}
	})

	t.Run("deadlines", func(t *testing.T) {
		expected := errors.New("mocked error")
		fail := func(t time.Time) error {
			return expected
		}
		c := &Conn{
			MockSetDeadline:      fail,
			MockSetReadDeadline:  fail,
			MockSetWriteDeadline: fail,
		}
		if err := c.SetDeadline(time.Time{}); !errors.Is(err, expected) {
			t.Fatal("not the error we expected", err)
		}
		if err := c.SetReadDeadline(time.Time{}); !errors.Is(err, expected) {
			t.Fatal("not the error we expected", err)
		}
		if err := c.SetWriteDeadline(time.Time{}); !errors.Is(err, expected) {
			t.Fatal("not the error we expected", err)
		}
	})
}
