package session

import (
	"io"
	"net"

	"genircon/internal/metrics"
)

// meteredConn records traffic on the shared collector.
type meteredConn struct {
	net.Conn
	metrics *metrics.Collector
}

func (c *meteredConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	c.metrics.BytesReceived(int64(n))
	return n, err
}

func (c *meteredConn) Write(b []byte) (int, error) {
	n, err := c.Conn.Write(b)
	c.metrics.BytesSent(int64(n))
	return n, err
}

// countingReader tells a clean deadline expiry from one that hit mid-frame.
type countingReader struct {
	r io.Reader
	n int
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += n
	return n, err
}
