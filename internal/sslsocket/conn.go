package sslsocket

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ooni/sslsocket/internal/bytecounter"
	"github.com/ooni/sslsocket/internal/logx"
	"github.com/ooni/sslsocket/internal/model"
	"github.com/ooni/sslsocket/internal/netxlite"
)

// Conn is a TLS connection to Config.Host, optionally tunneled through
// an HTTP proxy. Create it with [NewConn], then call Connect exactly
// once. Only Close may be called concurrently with other methods.
type Conn struct {
	config   *Config
	counter  *bytecounter.Counter
	dialer   model.Dialer
	engine   model.TLSEngine
	id       string
	logger   model.Logger
	platform PlatformTrust
	probe    *CapabilityProbe

	// nonblock is the effective mode, downgraded at most once.
	nonblock bool

	handshaker *handshaker
	tlsConfig  *tls.Config

	closeOnce sync.Once

	// connectStart is when the first Connect started.
	connectStart time.Time

	// mu protects the following fields.
	mu        sync.Mutex
	connState tls.ConnectionState
	pending   bool
	started   bool
	state     State
	tlsconn   model.TLSConn
	transport net.Conn
}

var _ net.Conn = &Conn{}

// Option customizes a [*Conn].
type Option func(c *Conn)

// WithLogger sets the logger. The default discards all messages.
func WithLogger(logger model.Logger) Option {
	return func(c *Conn) {
		c.logger = logger
	}
}

// WithByteCounter counts the bytes exchanged with the proxy or the
// target, including the CONNECT exchange and TLS framing.
func WithByteCounter(counter *bytecounter.Counter) Option {
	return func(c *Conn) {
		c.counter = counter
	}
}

// WithDialer sets the plaintext dialer. The default is a netxlite
// dialer going through Config.SOCKS5Proxy when set.
func WithDialer(dialer model.Dialer) Option {
	return func(c *Conn) {
		c.dialer = dialer
	}
}

// WithEngine sets the TLS engine, overriding Config.Engine.
func WithEngine(engine model.TLSEngine) Option {
	return func(c *Conn) {
		c.engine = engine
	}
}

// WithCapabilityProbe sets the capability probe. The default is the
// process-wide probe of the TLS engine.
func WithCapabilityProbe(probe *CapabilityProbe) Option {
	return func(c *Conn) {
		c.probe = probe
	}
}

// WithPlatformTrust sets the platform trust store. The default is [SystemTrust].
func WithPlatformTrust(platform PlatformTrust) Option {
	return func(c *Conn) {
		c.platform = platform
	}
}

// NewConn creates a new disconnected [*Conn].
func NewConn(config *Config, options ...Option) *Conn {
	c := &Conn{
		config:   config,
		id:       uuid.NewString(),
		platform: SystemTrust{},
		state:    StateDisconnected,
	}
	for _, option := range options {
		option(c)
	}
	c.logger = &logx.PrefixLogger{
		Prefix: fmt.Sprintf("<%s> ", c.id),
		Logger: model.ValidLoggerOrDefault(c.logger),
	}
	c.nonblock = config.Nonblock
	return c
}

// ID returns the unique identifier of this connection, which we
// also use to prefix log messages.
func (c *Conn) ID() string {
	return c.id
}

// State returns the current state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionState returns the TLS state once established.
func (c *Conn) ConnectionState() tls.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connState
}

// Connect connects to the target, negotiates the CONNECT tunnel if
// needed, performs the TLS handshake and, in PEER mode, checks the
// hostname. On failure, the transport is closed, the state is
// StateFailed and the error is a [*ConnectionError].
//
// In non-blocking mode, Connect returns [ErrWouldBlock] when the
// handshake cannot make progress. Call Connect again to resume it.
// Otherwise, calling Connect twice returns [ErrAlreadyConnected].
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	resume, started := c.pending, c.started
	c.started, c.pending = true, false
	if !started {
		c.connectStart = time.Now()
	}
	c.mu.Unlock()
	switch {
	case resume:
		return c.recordConnect(c.handshake(ctx))
	case started:
		return ErrAlreadyConnected
	default:
		return c.recordConnect(c.connect(ctx))
	}
}

func (c *Conn) recordConnect(err error) error {
	var connErr *ConnectionError
	switch {
	case err == nil:
		metricConnectCount.WithLabelValues("established").Inc()
		metricConnectDurationSeconds.Observe(time.Since(c.connectStart).Seconds())
	case errors.As(err, &connErr):
		metricConnectCount.WithLabelValues(string(connErr.Kind)).Inc()
	}
	return err
}

func (c *Conn) connect(ctx context.Context) error {
	if err := c.config.Validate(); err != nil {
		return c.fail(err)
	}
	if err := c.setup(); err != nil {
		return c.fail(newConfigError(c.config.Address(), err))
	}
	c.resolveNonblock()

	policy, err := BuildTrustPolicy(c.config, c.platform, c.logger)
	if err != nil {
		return c.fail(err)
	}
	c.logger.Debugf("trust mode=%s anchors=%s identity=%t",
		policy.Mode, policy.AnchorSource, policy.ClientIdentity != nil)

	address := c.config.Address()
	if c.config.Proxy != nil {
		address = c.config.Proxy.Address()
		c.setState(StateTunnelPending)
	} else {
		c.setState(StateHandshaking)
	}
	conn, err := c.dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return c.fail(err)
	}
	conn = bytecounter.MaybeWrapConn(conn, c.counter)
	if err := c.setTransport(conn); err != nil {
		return c.fail(err)
	}

	if c.config.Proxy != nil {
		conn, err = EstablishTunnel(ctx, conn, c.config.Host, c.config.Port,
			c.config.Proxy, c.config.tunnelTimeout(), c.logger)
		if err != nil {
			return c.fail(err)
		}
		if err := c.setTransport(conn); err != nil {
			return c.fail(err)
		}
		c.setState(StateHandshaking)
	}

	c.handshaker = &handshaker{
		Engine:     c.engine,
		Logger:     c.logger,
		NextProtos: c.config.NextProtos,
		Policy:     policy,
	}
	tlsconn, tlsConfig, err := c.handshaker.NewConn(conn, c.config.Host)
	if err != nil {
		return c.fail(err)
	}
	if err := c.setTransport(tlsconn); err != nil {
		return c.fail(err)
	}
	c.mu.Lock()
	c.tlsconn = tlsconn
	c.mu.Unlock()
	c.tlsConfig = tlsConfig
	return c.handshake(ctx)
}

// setup creates the default engine, probe and dialer.
func (c *Conn) setup() error {
	if c.engine == nil {
		engine, err := netxlite.NewTLSEngine(c.config.Engine)
		if err != nil {
			return err
		}
		c.engine = engine
	}
	if c.probe == nil {
		c.probe = capabilityProbeFor(c.engine)
	}
	if c.dialer == nil {
		proxyURL, err := c.config.socks5URL()
		if err != nil {
			return err
		}
		c.dialer = netxlite.NewDialer(c.logger, proxyURL)
	}
	return nil
}

func (c *Conn) handshake(ctx context.Context) error {
	timeout := c.config.handshakeTimeout()
	nonblock := c.resolveNonblock()
	if nonblock {
		timeout = c.config.nonblockWait()
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	c.mu.Lock()
	tlsconn := c.tlsconn
	c.mu.Unlock()
	state, err := c.handshaker.Handshake(hctx, tlsconn, c.tlsConfig, c.config.Host)
	if err != nil {
		if nonblock && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			c.mu.Lock()
			c.pending = true
			c.mu.Unlock()
			return ErrWouldBlock
		}
		return c.fail(newPhaseError(
			netxlite.ClassifyTLSHandshakeError, netxlite.TLSHandshakeOperation, err))
	}
	c.mu.Lock()
	c.connState = state
	c.mu.Unlock()
	c.setState(StateEstablished)
	return nil
}

// resolveNonblock re-resolves the effective mode. Once downgraded, the
// mode stays blocking, so we warn at most once per connection.
func (c *Conn) resolveNonblock() bool {
	effective, warning := c.probe.Resolve(c.nonblock)
	if warning != "" {
		c.logger.Warn(warning)
		metricNonblockDowngradeCount.Inc()
	}
	c.nonblock = effective
	return effective
}

// setState transitions to state unless we reached a terminal state.
func (c *Conn) setState(state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.state.terminal() {
		c.logger.Debugf("state %s -> %s", c.state, state)
		c.state = state
	}
}

// setTransport records the conn to close on failure or Close. When the
// connection was closed in the meanwhile, it closes conn instead.
func (c *Conn) setTransport(conn net.Conn) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosed {
		conn.Close()
		return netxlite.NewErrWrapper(netxlite.ClassifyGenericError, netxlite.CloseOperation, net.ErrClosed)
	}
	c.transport = conn
	return nil
}

// fail closes the transport, moves to StateFailed and returns err
// as a [*ConnectionError].
func (c *Conn) fail(err error) error {
	connErr := newConnectionError(c.config.Address(), err)
	c.mu.Lock()
	transport := c.transport
	if !c.state.terminal() {
		c.state = StateFailed
	}
	c.mu.Unlock()
	if transport != nil {
		transport.Close()
	}
	c.logger.Debugf("connection failed: %s", connErr)
	return connErr
}

// established returns the TLS conn if we can perform I/O.
func (c *Conn) established() (model.TLSConn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateEstablished:
		return c.tlsconn, nil
	case StateClosed:
		return nil, net.ErrClosed
	default:
		return nil, ErrNotConnected
	}
}

// Read reads from the TLS session. It returns io.EOF when the peer closes
// the session, [ErrWouldBlock] when a non-blocking read cannot make
// progress and a [*ConnectionError] on failure.
func (c *Conn) Read(p []byte) (int, error) {
	tlsconn, err := c.established()
	if err != nil {
		return 0, err
	}
	nonblock := c.resolveNonblock()
	if nonblock {
		tlsconn.SetReadDeadline(time.Now().Add(c.config.nonblockWait()))
		defer tlsconn.SetReadDeadline(time.Time{})
	}
	count, err := tlsconn.Read(p)
	switch {
	case err == nil:
		return count, nil
	case errors.Is(err, io.EOF):
		return count, io.EOF
	case nonblock && isTimeout(err):
		return count, ErrWouldBlock
	default:
		return count, c.fail(netxlite.NewErrWrapper(netxlite.ClassifyGenericError, netxlite.ReadOperation, err))
	}
}

// defaultReadSize is the maximum size of a TLS record.
const defaultReadSize = 1 << 14

// ReadAvailable with maxLength <= 0 returns the bytes available after
// a single read. Otherwise, it reads until it has maxLength bytes or
// the peer closes the session, in which case it returns what it read
// and io.EOF only if it read nothing.
func (c *Conn) ReadAvailable(maxLength int) ([]byte, error) {
	if maxLength <= 0 {
		buffer := make([]byte, defaultReadSize)
		count, err := c.Read(buffer)
		return buffer[:count], err
	}
	buffer := make([]byte, maxLength)
	count, err := io.ReadFull(c, buffer)
	if errors.Is(err, io.ErrUnexpectedEOF) {
		err = nil
	}
	return buffer[:count], err
}

// Write writes the whole buffer, looping over partial writes. It returns
// [ErrWouldBlock] when a non-blocking write cannot make progress and a
// [*ConnectionError] on failure.
func (c *Conn) Write(p []byte) (int, error) {
	tlsconn, err := c.established()
	if err != nil {
		return 0, err
	}
	nonblock := c.resolveNonblock()
	if nonblock {
		defer tlsconn.SetWriteDeadline(time.Time{})
	}
	var total int
	for total < len(p) {
		if nonblock {
			tlsconn.SetWriteDeadline(time.Now().Add(c.config.nonblockWait()))
		}
		count, err := tlsconn.Write(p[total:])
		total += count
		switch {
		case err != nil && nonblock && isTimeout(err):
			return total, ErrWouldBlock
		case err != nil:
			return total, c.fail(netxlite.NewErrWrapper(netxlite.ClassifyGenericError, netxlite.WriteOperation, err))
		case count <= 0:
			return total, c.fail(netxlite.NewErrWrapper(netxlite.ClassifyGenericError, netxlite.WriteOperation, io.ErrShortWrite))
		}
	}
	return total, nil
}

// Close closes the TLS session and the transport. It is idempotent and
// may be called from another goroutine to interrupt a blocking call.
func (c *Conn) Close() (err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		transport, state := c.transport, c.state
		if state != StateFailed {
			c.state = StateClosed
		}
		c.mu.Unlock()
		if transport != nil && state != StateFailed {
			err = netxlite.MaybeNewErrWrapper(netxlite.ClassifyGenericError, netxlite.CloseOperation, transport.Close())
		}
		if err != nil {
			err = newConnectionError(c.config.Address(), err)
		}
	})
	return
}

// LocalAddr implements net.Conn. It returns nil before Connect succeeds.
func (c *Conn) LocalAddr() net.Addr {
	if tlsconn, err := c.established(); err == nil {
		return tlsconn.LocalAddr()
	}
	return nil
}

// RemoteAddr implements net.Conn. It returns nil before Connect succeeds.
func (c *Conn) RemoteAddr() net.Addr {
	if tlsconn, err := c.established(); err == nil {
		return tlsconn.RemoteAddr()
	}
	return nil
}

// SetDeadline implements net.Conn.
func (c *Conn) SetDeadline(t time.Time) error {
	tlsconn, err := c.established()
	if err != nil {
		return err
	}
	return tlsconn.SetDeadline(t)
}

// SetReadDeadline implements net.Conn.
func (c *Conn) SetReadDeadline(t time.Time) error {
	tlsconn, err := c.established()
	if err != nil {
		return err
	}
	return tlsconn.SetReadDeadline(t)
}

// SetWriteDeadline implements net.Conn.
func (c *Conn) SetWriteDeadline(t time.Time) error {
	tlsconn, err := c.established()
	if err != nil {
		return err
	}
	return tlsconn.SetWriteDeadline(t)
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
