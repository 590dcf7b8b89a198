package ftplist

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/stretchr/testify/mock"
)

// trackedConn counts Close calls on a real connection.
type trackedConn struct {
	net.Conn
	closes atomic.Int32
}

func (c *trackedConn) Close() error {
	c.closes.Add(1)
	return c.Conn.Close()
}

// recordingDialer dials for real and keeps every connection it opened.
type recordingDialer struct {
	d     net.Dialer
	mu    sync.Mutex
	conns []*trackedConn
}

func (r *recordingDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	c, err := r.d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	tc := &trackedConn{Conn: c}
	r.mu.Lock()
	r.conns = append(r.conns, tc)
	r.mu.Unlock()
	return tc, nil
}

func (r *recordingDialer) dialed() []*trackedConn {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*trackedConn(nil), r.conns...)
}

// mockDialer is a testify mock of the Dialer interface.
type mockDialer struct {
	mock.Mock
}

func (m *mockDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	args := m.Called(ctx, network, address)
	conn, _ := args.Get(0).(net.Conn)
	return conn, args.Error(1)
}

// recordingObserver keeps every event as a string.
type recordingObserver struct {
	mu       sync.Mutex
	events   []string
	states   []State
	progress int64
}

func (o *recordingObserver) add(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, fmt.Sprintf(format, args...))
}

func (o *recordingObserver) Greeting(r *Reply)  { o.add("greeting %d", r.Code) }
func (o *recordingObserver) Command(cmd string) { o.add("> %s", cmd) }

func (o *recordingObserver) Reply(cmd string, r *Reply) {
	o.add("< %s %d", cmd, r.Code)
}

func (o *recordingObserver) StateChanged(_, to State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, to)
}

func (o *recordingObserver) Progress(total int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = total
}
