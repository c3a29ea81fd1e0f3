package testingx

import (
	"net"
	"sync"

	socks5 "github.com/armon/go-socks5"
	"github.com/ooni/sslsocket/internal/runtimex"
)

// SOCKS5Server is a SOCKS5 proxy listening on localhost.
type SOCKS5Server struct {
	closeOnce sync.Once
	listener  net.Listener
	wg        sync.WaitGroup
}

// MustNewSOCKS5Server starts a SOCKS5 proxy on a random localhost port. When
// creds is not empty, clients must authenticate with username and password.
func MustNewSOCKS5Server(creds map[string]string) *SOCKS5Server {
	config := &socks5.Config{}
	if len(creds) > 0 {
		config.Credentials = socks5.StaticCredentials(creds)
	}
	server := runtimex.Try1(socks5.New(config))
	listener := runtimex.Try1(net.Listen("tcp", "127.0.0.1:0"))
	srv := &SOCKS5Server{listener: listener}
	srv.wg.Add(1)
	go func() {
		defer srv.wg.Done()
		_ = server.Serve(listener)
	}()
	return srv
}

// Endpoint returns the endpoint where the proxy is listening.
func (s *SOCKS5Server) Endpoint() string {
	return s.listener.Addr().String()
}

// Close stops accepting new connections.
func (s *SOCKS5Server) Close() (err error) {
	s.closeOnce.Do(func() {
		err = s.listener.Close()
		s.wg.Wait()
	})
	return
}
