package ftplist

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// Dialer opens stream connections. *net.Dialer satisfies it, and so do the
// SOCKS5 dialers of golang.org/x/net/proxy.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Option is a functional option for configuring channels and sessions.
type Option func(*settings) error

type settings struct {
	// timeout bounds each dial, read and write; zero disables deadlines
	timeout time.Duration

	dialer   Dialer
	observer Observer

	// strict enables reply-code validation of each session step
	strict bool
}

func newSettings(options []Option) (*settings, error) {
	s := &settings{
		timeout:  30 * time.Second,
		observer: NopObserver{},
	}
	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if s.dialer == nil {
		s.dialer = &net.Dialer{}
	}
	return s, nil
}

// WithTimeout sets the timeout for connecting and for every read or write on
// the control and data connections. Zero waits forever.
func WithTimeout(timeout time.Duration) Option {
	return func(s *settings) error {
		if timeout < 0 {
			return fmt.Errorf("negative timeout: %v", timeout)
		}
		s.timeout = timeout
		return nil
	}
}

// WithDialer sets the dialer used for the control and data connections.
// This can be used to configure source addresses or to go through a proxy.
func WithDialer(dialer Dialer) Option {
	return func(s *settings) error {
		if dialer == nil {
			return fmt.Errorf("nil dialer")
		}
		s.dialer = dialer
		return nil
	}
}

// WithObserver sets the observer that receives commands, replies and state
// changes. Passwords are masked before they reach it.
func WithObserver(observer Observer) Option {
	return func(s *settings) error {
		if observer == nil {
			observer = NopObserver{}
		}
		s.observer = observer
		return nil
	}
}

// WithLogger reports the session to logger at debug level.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	listing, _ := ftplist.List(ctx, cfg, ftplist.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return WithObserver(&LogObserver{Logger: logger})
}

// WithStrictReplies makes the session check the code of every reply
// instead of only parsing it. Unexpected codes abort with a *ReplyError.
func WithStrictReplies() Option {
	return func(s *settings) error {
		s.strict = true
		return nil
	}
}
