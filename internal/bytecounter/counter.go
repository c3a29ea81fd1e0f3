// Package bytecounter counts the bytes exchanged over a net.Conn.
package bytecounter

import "sync/atomic"

// Counter counts bytes sent and received.
type Counter struct {
	received atomic.Int64
	sent     atomic.Int64
}

// New creates a new Counter.
func New() *Counter {
	return &Counter{}
}

// CountBytesReceived adds count to the bytes received.
func (c *Counter) CountBytesReceived(count int) {
	if count > 0 {
		c.received.Add(int64(count))
	}
}

// CountBytesSent adds count to the bytes sent.
func (c *Counter) CountBytesSent(count int) {
	if count > 0 {
		c.sent.Add(int64(count))
	}
}

// BytesReceived returns the bytes received so far.
func (c *Counter) BytesReceived() int64 {
	return c.received.Load()
}

// BytesSent returns the bytes sent so far.
func (c *Counter) BytesSent() int64 {
	return c.sent.Load()
}
