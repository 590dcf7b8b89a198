package ftplist

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
)

// ControlChannel is the command connection of an FTP session. It sends one
// command at a time and parses the reply to each.
type ControlChannel struct {
	// conn is the control socket, wrapped with per-operation deadlines
	conn net.Conn

	// reader is a buffered reader for the control channel
	reader *bufio.Reader

	// host is the server host the channel was dialed with
	host string

	observer Observer

	// mu serializes commands so that at most one is in flight
	mu sync.Mutex

	// last is the most recent reply read from the server
	last *Reply

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	// stopCancel detaches the context watcher installed by Connect
	stopCancel func() bool
}

// Connect opens the control connection to addr ("host:port"). Nothing is sent
// or read; call ReadGreeting next. Canceling ctx closes the connection.
//
// Example:
//
//	ch, err := ftplist.Connect(ctx, "ftp.example.com:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ch.Close()
func Connect(ctx context.Context, addr string, options ...Option) (*ControlChannel, error) {
	s, err := newSettings(options)
	if err != nil {
		return nil, err
	}
	return connect(ctx, addr, s)
}

func connect(ctx context.Context, addr string, s *settings) (*ControlChannel, error) {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, &ConnectionError{Op: "control", Addr: addr, Err: fmt.Errorf("invalid address: %w", err)}
	}

	conn, err := dial(ctx, s, "control", addr)
	if err != nil {
		return nil, err
	}

	c := &ControlChannel{
		conn:     conn,
		host:     host,
		observer: s.observer,
	}
	c.reader = bufio.NewReader(c.conn)
	c.stopCancel = context.AfterFunc(ctx, func() { _ = c.closeConn() })

	return c, nil
}

// Host returns the host the control connection was opened to.
func (c *ControlChannel) Host() string {
	return c.host
}

// ReadGreeting reads the reply the server sends right after connecting.
func (c *ControlChannel) ReadGreeting() (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.readLocked("")
	if err != nil {
		return nil, err
	}
	c.observer.Greeting(resp)
	return resp, nil
}

// Send writes command followed by CRLF and reads exactly one reply, which
// may span several lines. The reply is returned whatever its code is.
func (c *ControlChannel) Send(command string) (*Reply, error) {
	masked := maskCommand(command)
	verb, _, _ := strings.Cut(command, " ")
	verb = strings.ToUpper(verb)

	// Lock the channel so the reply is consumed before the next command
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil, &IoError{Op: "write", Err: ErrClosed}
	}

	c.observer.Command(masked)
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", command); err != nil {
		return nil, &IoError{Op: "write", Err: err}
	}

	resp, err := c.readLocked(verb)
	if err != nil {
		return nil, err
	}
	c.observer.Reply(masked, resp)
	return resp, nil
}

// ReadReply reads one more reply without sending a command. It is used for
// the completion reply that follows a 1xx preliminary reply to command.
func (c *ControlChannel) ReadReply(command string) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	resp, err := c.readLocked(command)
	if err != nil {
		return nil, err
	}
	c.observer.Reply(command, resp)
	return resp, nil
}

func (c *ControlChannel) readLocked(command string) (*Reply, error) {
	if c.closed.Load() {
		return nil, &IoError{Op: "read", Err: ErrClosed}
	}

	resp, err := readReply(c.reader, command)
	if err != nil {
		return nil, err
	}
	c.last = resp
	return resp, nil
}

// LastReply returns the most recent reply, or nil before the first one.
func (c *ControlChannel) LastReply() *Reply {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Close closes the control connection. It is safe to call more than once.
func (c *ControlChannel) Close() error {
	if c.stopCancel != nil {
		c.stopCancel()
	}
	return c.closeConn()
}

// closeConn closes the socket. The context watcher calls it directly and
// must not touch stopCancel.
func (c *ControlChannel) closeConn() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
