package as

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/aerospike/aerospike-client-go-async-core/pkg/ascode"
)

// Connection owns one duplex TCP (optionally TLS) stream to a single
// Host. It is never shared between goroutines concurrently: the pool
// hands out exclusive ownership via Node.getConnection.
type Connection struct {
	conn     net.Conn
	host     Host
	lastUsed atomic.Int64 // unix nanos
	closed   atomic.Bool
}

// DialConnection dials address:port (through an optional TLS handshake)
// within connectTimeout, per spec.md §4.1.
func DialConnection(host Host, connectTimeout time.Duration, tlsConfig *tls.Config) (*Connection, error) {
	dialer := net.Dialer{Timeout: connectTimeout}
	raw, err := dialer.Dial("tcp", host.String())
	if err != nil {
		return nil, wrapError(ascode.ConnectionFailed, fmt.Sprintf("dial %s failed", host), err)
	}

	conn := raw
	if tlsConfig != nil {
		cfg := tlsConfig.Clone()
		if host.TLSName != "" {
			cfg.ServerName = host.TLSName
		}
		tlsConn := tls.Client(raw, cfg)
		if err := tlsConn.SetDeadline(time.Now().Add(connectTimeout)); err != nil {
			raw.Close()
			return nil, wrapError(ascode.ConnectionFailed, "set tls deadline failed", err)
		}
		if err := tlsConn.Handshake(); err != nil {
			raw.Close()
			return nil, wrapError(ascode.ConnectionFailed, fmt.Sprintf("tls handshake with %s failed", host), err)
		}
		tlsConn.SetDeadline(time.Time{})
		conn = tlsConn
	}

	c := &Connection{conn: conn, host: host}
	c.touch()
	return c, nil
}

func (c *Connection) touch() {
	c.lastUsed.Store(time.Now().UnixNano())
}

// LastUsed returns the monotonic-ish unix-nanos timestamp of the last
// successful read or write.
func (c *Connection) LastUsed() time.Time {
	return time.Unix(0, c.lastUsed.Load())
}

func (c *Connection) Host() Host { return c.host }

// ReadExact reads exactly len(buf) bytes, failing with a read-timeout
// classified error if the deadline elapses first.
func (c *Connection) ReadExact(buf []byte, deadline time.Time) error {
	if c.closed.Load() {
		return errClient("connection is closed")
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		c.Close()
		return wrapError(ascode.IOError, "set read deadline failed", err)
	}
	n := 0
	for n < len(buf) {
		m, err := c.conn.Read(buf[n:])
		n += m
		if err != nil {
			c.Close()
			if isTimeoutErr(err) {
				return newError(ascode.ReadTimeout, "read timeout")
			}
			return wrapError(ascode.IOError, "read failed", err)
		}
	}
	c.touch()
	return nil
}

// WriteAll writes buf fully, failing with a write-timeout classified error
// if the deadline elapses first.
func (c *Connection) WriteAll(buf []byte, deadline time.Time) error {
	if c.closed.Load() {
		return errClient("connection is closed")
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		c.Close()
		return wrapError(ascode.IOError, "set write deadline failed", err)
	}
	n := 0
	for n < len(buf) {
		m, err := c.conn.Write(buf[n:])
		n += m
		if err != nil {
			c.Close()
			if isTimeoutErr(err) {
				return newError(ascode.WriteTimeout, "write timeout")
			}
			return wrapError(ascode.IOError, "write failed", err)
		}
	}
	c.touch()
	return nil
}

// Close is idempotent: repeated calls after the first are a no-op.
func (c *Connection) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close()
}

func (c *Connection) IsClosed() bool { return c.closed.Load() }

func isTimeoutErr(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
