package testingx

import (
	"bufio"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/ooni/sslsocket/internal/runtimex"
)

// ConnectProxy is a scripted HTTP proxy speaking just enough of the
// CONNECT protocol to test clients. It records the raw bytes of each
// request header block, replies with a fixed response and, when the
// response is a 200, relays bytes to a fixed upstream endpoint.
type ConnectProxy struct {
	listener net.Listener
	response string
	upstream string

	mu       sync.Mutex
	requests [][]byte

	closeOnce sync.Once
	wg        sync.WaitGroup
}

// ConnectResponseOK is the response accepting the tunnel.
const ConnectResponseOK = "HTTP/1.1 200 Connection Established\r\n\r\n"

// ConnectResponseAuthRequired is the response requiring authentication.
const ConnectResponseAuthRequired = "HTTP/1.1 407 Proxy Authentication Required\r\n\r\n"

// ConnectResponseReset makes the proxy reset the connection after
// reading the request instead of answering it.
const ConnectResponseReset = ""

// MustNewConnectProxy starts a [*ConnectProxy] on a random localhost port that
// answers each CONNECT with response and, on success, relays to upstream.
func MustNewConnectProxy(response, upstream string) *ConnectProxy {
	listener := runtimex.Try1(net.Listen("tcp", "127.0.0.1:0"))
	p := &ConnectProxy{
		listener: listener,
		response: response,
		upstream: upstream,
	}
	p.wg.Add(1)
	go p.mainloop()
	return p
}

// Endpoint returns the endpoint where the proxy is listening.
func (p *ConnectProxy) Endpoint() string {
	return p.listener.Addr().String()
}

// Requests returns the raw request header blocks received so far.
func (p *ConnectProxy) Requests() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]byte{}, p.requests...)
}

// Close stops accepting new connections.
func (p *ConnectProxy) Close() (err error) {
	p.closeOnce.Do(func() {
		err = p.listener.Close()
		p.wg.Wait()
	})
	return
}

func (p *ConnectProxy) mainloop() {
	defer p.wg.Done()
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		go p.handle(conn)
	}
}

func (p *ConnectProxy) handle(cconn net.Conn) {
	defer cconn.Close()

	// collect the request header block verbatim
	reader := bufio.NewReader(cconn)
	var request []byte
	for {
		line, err := reader.ReadSlice('\n')
		request = append(request, line...)
		if err != nil {
			return
		}
		if string(line) == "\r\n" {
			break
		}
	}
	p.mu.Lock()
	p.requests = append(p.requests, request)
	p.mu.Unlock()

	if p.response == ConnectResponseReset {
		tcpMaybeResetNetConn(cconn)
		return
	}
	if _, err := cconn.Write([]byte(p.response)); err != nil {
		return
	}
	if !connectResponseIsOK(p.response) {
		return
	}

	sconn, err := net.Dial("tcp", p.upstream)
	if err != nil {
		return
	}
	defer sconn.Close()

	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = io.Copy(sconn, reader)
		sconn.(*net.TCPConn).CloseWrite()
	}()
	_, _ = io.Copy(cconn, sconn)
	cconn.Close()
	wg.Wait()
}

func connectResponseIsOK(response string) bool {
	statusLine, _, _ := strings.Cut(response, "\r\n")
	return strings.Contains(statusLine, " 200 ")
}
