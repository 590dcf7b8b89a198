package ftplist

import (
	"context"
	"net"
	"time"
)

// dial opens a TCP connection bounded by the configured timeout. Reads and
// writes on the returned connection are bounded by the same timeout.
func dial(ctx context.Context, s *settings, op, addr string) (net.Conn, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &ConnectionError{Op: op, Addr: addr, Err: err}
	}
	if s.timeout > 0 {
		return &timeoutConn{Conn: conn, timeout: s.timeout}, nil
	}
	return conn, nil
}

// timeoutConn pushes the read or write deadline forward before every
// operation, so the timeout bounds a stalled peer rather than the whole
// transfer.
type timeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *timeoutConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

func (c *timeoutConn) Write(b []byte) (int, error) {
	if err := c.Conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}
