package bytecounter

//
// Code to wrap a net.Conn
//

import "net"

// wrappedConn wraps a network connection and counts bytes.
type wrappedConn struct {
	// net.Conn is the underlying net.Conn.
	net.Conn

	// Counter is the byte counter.
	Counter *Counter
}

// Read implements net.Conn.Read.
func (c *wrappedConn) Read(p []byte) (int, error) {
	count, err := c.Conn.Read(p)
	c.Counter.CountBytesReceived(count)
	return count, err
}

// Write implements net.Conn.Write.
func (c *wrappedConn) Write(p []byte) (int, error) {
	count, err := c.Conn.Write(p)
	c.Counter.CountBytesSent(count)
	return count, err
}

// MaybeWrapConn wraps conn such that it updates counter, unless
// counter is nil, in which case it returns conn.
func MaybeWrapConn(conn net.Conn, counter *Counter) net.Conn {
	if counter == nil {
		return conn
	}
	return &wrappedConn{Conn: conn, Counter: counter}
}
