package sslsocket

// State is the lifecycle state of a [*Conn].
type State int

const (
	// StateDisconnected is the initial state.
	StateDisconnected = State(iota)

	// StateTunnelPending means we are connecting to the proxy or
	// negotiating the CONNECT tunnel.
	StateTunnelPending

	// StateHandshaking means we are connecting to the target or
	// performing the TLS handshake.
	StateHandshaking

	// StateEstablished means the TLS session is ready for I/O.
	StateEstablished

	// StateFailed is the terminal state after any fatal error.
	StateFailed

	// StateClosed is the terminal state after Close.
	StateClosed
)

// String returns the name of the state for logging.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateTunnelPending:
		return "tunnel_pending"
	case StateHandshaking:
		return "handshaking"
	case StateEstablished:
		return "established"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// terminal returns whether no further transition is possible.
func (s State) terminal() bool {
	return s == StateFailed || s == StateClosed
}
