package testingx

import "net"

// tcpMaybeResetNetConn resets a net.Conn by disabling linger before
// closing it, so the peer sees a RST rather than a FIN.
func tcpMaybeResetNetConn(conn net.Conn) {
	type connUnwrapper interface {
		NetConn() net.Conn
	}
	if unwrapper, good := conn.(connUnwrapper); good {
		conn = unwrapper.NetConn()
	}

	type connLingerSetter interface {
		SetLinger(sec int) error
	}
	if setter, good := conn.(connLingerSetter); good {
		setter.SetLinger(0)
	}

	// we MUST close the underlying conn to cause a RST
	conn.Close()
}
