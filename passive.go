package ftplist

import (
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
)

// PassiveEndpoint is the data-connection address advertised in a PASV reply
// as (h1,h2,h3,h4,p1,p2).
type PassiveEndpoint struct {
	IP   [4]byte
	Port int
}

// Address returns the dotted-quad IPv4 address.
func (e PassiveEndpoint) Address() string {
	return fmt.Sprintf("%d.%d.%d.%d", e.IP[0], e.IP[1], e.IP[2], e.IP[3])
}

// HostPort returns the endpoint in "host:port" form.
func (e PassiveEndpoint) HostPort() string {
	return net.JoinHostPort(e.Address(), strconv.Itoa(e.Port))
}

// Unspecified reports whether the server advertised 0.0.0.0.
func (e PassiveEndpoint) Unspecified() bool {
	return e.IP == [4]byte{}
}

// ParsePassiveReply extracts the data endpoint from the text of a PASV reply.
// Example: "227 Entering Passive Mode (192,168,1,1,195,149)"
// Returns: 192.168.1.1 port 50069 (195*256 + 149)
//
// Only the first parenthesized group is considered. It must hold exactly six
// comma-separated decimal numbers in the range 0-255.
func ParsePassiveReply(text string) (PassiveEndpoint, error) {
	var ep PassiveEndpoint

	start := strings.IndexByte(text, '(')
	if start < 0 {
		return ep, passiveError(text)
	}
	end := strings.IndexByte(text[start+1:], ')')
	if end < 0 {
		return ep, passiveError(text)
	}

	fields := strings.Split(text[start+1:start+1+end], ",")
	if len(fields) != 6 {
		return ep, passiveError(text)
	}

	var v [6]int
	for i, f := range fields {
		f = strings.TrimSpace(f)
		// Atoi accepts a sign; only plain digits are valid here
		if f == "" || f[0] < '0' || f[0] > '9' {
			return ep, passiveError(text)
		}
		n, err := strconv.Atoi(f)
		if err != nil || n > 255 {
			return ep, passiveError(text)
		}
		v[i] = n
	}

	for i := range 4 {
		ep.IP[i] = byte(v[i])
	}
	ep.Port = v[4]*256 + v[5]
	return ep, nil
}

func passiveError(text string) error {
	return &ProtocolError{Command: "PASV", Line: strings.TrimRight(text, "\n"), Err: ErrPassiveReply}
}

// DataSession owns the data connection opened to a PassiveEndpoint. It
// carries exactly one transfer and must be closed before the next control
// command is sent.
type DataSession struct {
	conn     net.Conn
	observer Observer

	mu   sync.Mutex
	read bool

	closeOnce sync.Once
	closeErr  error

	// stopCancel detaches the context watcher installed when dialing
	stopCancel func() bool
}

// OpenDataConnection connects to the endpoint of a PASV reply. Canceling ctx
// closes the connection, which interrupts a blocked ReadAll.
func OpenDataConnection(ctx context.Context, ep PassiveEndpoint, options ...Option) (*DataSession, error) {
	s, err := newSettings(options)
	if err != nil {
		return nil, err
	}
	return openDataConnection(ctx, ep.HostPort(), s)
}

func openDataConnection(ctx context.Context, addr string, s *settings) (*DataSession, error) {
	conn, err := dial(ctx, s, "data", addr)
	if err != nil {
		return nil, err
	}
	d := &DataSession{
		conn:     conn,
		observer: s.observer,
	}
	d.stopCancel = context.AfterFunc(ctx, func() { _ = d.closeConn() })
	return d, nil
}

// resolveDataAddr returns the address to dial for ep. If the server sends
// 0.0.0.0, the control connection host is used instead.
func resolveDataAddr(ep PassiveEndpoint, controlHost string) string {
	if ep.Unspecified() && controlHost != "" {
		return net.JoinHostPort(controlHost, strconv.Itoa(ep.Port))
	}
	return ep.HostPort()
}

// ReadAll reads the transfer until the server closes the data connection.
// A data session can only be read once.
func (d *DataSession) ReadAll() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.read {
		return nil, ErrTransferDone
	}
	d.read = true

	data, err := io.ReadAll(&progressReader{r: d.conn, report: d.observer.Progress})
	if err != nil {
		return nil, &IoError{Op: "read", Err: err}
	}
	return data, nil
}

// Close closes the data connection. It is safe to call more than once.
func (d *DataSession) Close() error {
	if d.stopCancel != nil {
		d.stopCancel()
	}
	return d.closeConn()
}

func (d *DataSession) closeConn() error {
	d.closeOnce.Do(func() {
		d.closeErr = d.conn.Close()
	})
	return d.closeErr
}

// progressReader reports the running byte count of a transfer.
type progressReader struct {
	r      io.Reader
	total  int64
	report func(total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.total += int64(n)
		p.report(p.total)
	}
	return n, err
}
