package sslsocket

//
// HTTP CONNECT tunnel
//

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/ooni/sslsocket/internal/model"
	"github.com/ooni/sslsocket/internal/netxlite"
)

// ProxyStatusError is the error returned when the proxy answers
// CONNECT with a status code other than 200.
type ProxyStatusError struct {
	// StatusCode is the status code (e.g., 407).
	StatusCode int

	// Status is the status code followed by the reason phrase.
	Status string
}

// Error implements error.
func (e *ProxyStatusError) Error() string {
	return "proxy: CONNECT failed: " + e.Status
}

// ErrMalformedProxyResponse indicates that the proxy response is not HTTP.
var ErrMalformedProxyResponse = errors.New("proxy: malformed response")

// ProxyAuthorization returns the value of the Proxy-Authorization header
// for the given credentials.
func ProxyAuthorization(user, password string) string {
	encoded := base64.StdEncoding.EncodeToString([]byte(user + ":" + password))
	encoded = strings.NewReplacer("\r", "", "\n", "").Replace(encoded)
	return "Basic " + encoded
}

// NewConnectRequest returns the CONNECT request for host and port. We
// include Proxy-Authorization when proxy has a user or a password. IPv6
// literals are enclosed in brackets in the request target.
func NewConnectRequest(host, port string, proxy *ProxyConfig) []byte {
	target := net.JoinHostPort(host, port)
	var request bytes.Buffer
	fmt.Fprintf(&request, "CONNECT %s HTTP/1.1\r\n", target)
	fmt.Fprintf(&request, "Host: %s\r\n", target)
	if proxy != nil && proxy.hasCredentials() {
		fmt.Fprintf(&request, "Proxy-Authorization: %s\r\n", ProxyAuthorization(proxy.User, proxy.Password))
	}
	request.WriteString("Proxy-Connection: Keep-Alive\r\n")
	request.WriteString("\r\n")
	return request.Bytes()
}

// aLongTimeAgo is a deadline that unblocks pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

// EstablishTunnel sends CONNECT for host and port over conn and reads the
// proxy response. The exchange is bounded by ctx and timeout.
//
// On success, it returns a conn to use in place of conn for talking
// to the target. On failure, it closes conn and returns an error
// wrapping either a [*ProxyStatusError], [ErrMalformedProxyResponse],
// the expiry of the deadline, or the I/O error that occurred. Only the
// latter maps to [ErrTransport].
func EstablishTunnel(ctx context.Context, conn net.Conn, host, port string,
	proxy *ProxyConfig, timeout time.Duration, logger model.DebugLogger) (net.Conn, error) {
	logger.Debugf("proxy CONNECT %s...", net.JoinHostPort(host, port))
	start := time.Now()
	tconn, err := establishTunnel(ctx, conn, host, port, proxy, timeout)
	logger.Debugf("proxy CONNECT %s... %s in %s", net.JoinHostPort(host, port),
		model.ErrorToStringOrOK(err), time.Since(start))
	if err != nil {
		conn.Close()
		return nil, newPhaseError(classifyProxyTunnelError, netxlite.ProxyTunnelOperation, err)
	}
	return tconn, nil
}

func establishTunnel(ctx context.Context, conn net.Conn, host, port string,
	proxy *ProxyConfig, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)
	defer conn.SetDeadline(time.Time{})
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(aLongTimeAgo)
	})
	defer stop()

	if _, err := conn.Write(NewConnectRequest(host, port, proxy)); err != nil {
		return nil, contextErrOr(ctx, err)
	}

	reader := bufio.NewReader(conn)
	code, status, err := readConnectResponse(textproto.NewReader(reader))
	if err != nil {
		return nil, contextErrOr(ctx, err)
	}
	if code != 200 {
		return nil, &ProxyStatusError{StatusCode: code, Status: status}
	}
	if reader.Buffered() > 0 {
		return &bufferedConn{Conn: conn, reader: reader}, nil
	}
	return conn, nil
}

// readConnectResponse reads the status line and the headers.
func readConnectResponse(tp *textproto.Reader) (int, string, error) {
	line, err := tp.ReadLine()
	if err != nil {
		return 0, "", err
	}
	proto, status, ok := strings.Cut(line, " ")
	if !ok || !strings.HasPrefix(proto, "HTTP/1.") {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedProxyResponse, line)
	}
	status = strings.TrimLeft(status, " ")
	codeString, _, _ := strings.Cut(status, " ")
	code, err := strconv.Atoi(codeString)
	if err != nil || len(codeString) != 3 || code < 100 {
		return 0, "", fmt.Errorf("%w: %q", ErrMalformedProxyResponse, line)
	}
	if _, err := tp.ReadMIMEHeader(); err != nil {
		var protoErr textproto.ProtocolError
		if errors.As(err, &protoErr) {
			return 0, "", fmt.Errorf("%w: %s", ErrMalformedProxyResponse, err)
		}
		return 0, "", err
	}
	return code, status, nil
}

func contextErrOr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return err
}

func classifyProxyTunnelError(err error) string {
	var statusErr *ProxyStatusError
	switch {
	case errors.As(err, &statusErr):
		return netxlite.FailureProxyTunnelFailed
	case errors.Is(err, ErrMalformedProxyResponse):
		return netxlite.FailureProxyMalformedResponse
	default:
		return netxlite.ClassifyGenericError(err)
	}
}

// bufferedConn is a net.Conn that first returns the bytes the
// proxy sent after the end of the CONNECT response headers.
type bufferedConn struct {
	net.Conn
	reader *bufio.Reader
}

// Read implements net.Conn.
func (c *bufferedConn) Read(p []byte) (int, error) {
	if c.reader.Buffered() > 0 {
		return c.reader.Read(p)
	}
	return c.Conn.Read(p)
}
