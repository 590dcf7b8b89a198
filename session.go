package ftplist

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
)

// Defaults applied to zero Config fields.
const (
	DefaultPort     = 21
	DefaultUser     = "anonymous"
	DefaultPassword = "anonymous@"
)

// Config holds the connection parameters of a session. They are supplied by
// the caller; nothing is read from the environment here.
type Config struct {
	// Host is the FTP server host name or address
	Host string

	// Port is the control port (default 21)
	Port int

	// User is the login name (default "anonymous")
	User string

	// Password is sent with PASS (default "anonymous@")
	Password string

	// Path is passed to LIST; empty lists the login directory
	Path string
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Password == "" {
		c.Password = DefaultPassword
	}
	return c
}

// Addr returns the control address in "host:port" form.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.withDefaults().Port))
}

// State is a step of the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnected
	StateAuthenticated
	StatePassiveNegotiated
	StateListed
	StateClosed
)

var stateNames = [...]string{
	StateIdle:              "idle",
	StateConnected:         "connected",
	StateAuthenticated:     "authenticated",
	StatePassiveNegotiated: "passive-negotiated",
	StateListed:            "listed",
	StateClosed:            "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(" + strconv.Itoa(int(s)) + ")"
	}
	return stateNames[s]
}

// Session runs one anonymous directory listing: connect, log in, negotiate
// a passive data connection, LIST, QUIT. A Session can be run once.
type Session struct {
	cfg      Config
	settings *settings
	state    State

	control *ControlChannel
	data    *DataSession

	// listPending is set while the completion reply to LIST is outstanding
	listPending bool

	listing []byte
}

// step moves the session to the state it is paired with on success.
type step struct {
	to  State
	run func(ctx context.Context) error
}

// NewSession prepares a session; no connection is made until Run.
func NewSession(cfg Config, options ...Option) (*Session, error) {
	if cfg.Host == "" {
		return nil, errors.New("ftp: empty host")
	}
	s, err := newSettings(options)
	if err != nil {
		return nil, err
	}
	return &Session{cfg: cfg.withDefaults(), settings: s}, nil
}

// List runs a single session against cfg and returns the raw listing.
//
// Example:
//
//	listing, err := ftplist.List(ctx, ftplist.Config{Host: "ftp.freebsd.org"},
//	    ftplist.WithTimeout(10*time.Second),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	os.Stdout.Write(listing)
func List(ctx context.Context, cfg Config, options ...Option) ([]byte, error) {
	s, err := NewSession(cfg, options...)
	if err != nil {
		return nil, err
	}
	return s.Run(ctx)
}

// State returns the step the session has reached.
func (s *Session) State() State {
	return s.state
}

// Run executes the session and returns the listing read from the data
// connection. Every socket the session opened is closed when Run returns,
// whether it succeeded or not.
func (s *Session) Run(ctx context.Context) (listing []byte, err error) {
	if s.state != StateIdle {
		return nil, ErrSessionUsed
	}

	defer func() {
		if cerr := s.close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if err != nil {
			listing = nil
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %w", ctx.Err(), err)
			}
		}
	}()

	steps := []step{
		{StateConnected, s.connect},
		{StateAuthenticated, s.login},
		{StatePassiveNegotiated, s.negotiatePassive},
		{StateListed, s.list},
	}
	for _, st := range steps {
		if err := st.run(ctx); err != nil {
			return nil, err
		}
		s.setState(st.to)
	}

	if err := s.quit(); err != nil {
		return nil, err
	}
	return s.listing, nil
}

func (s *Session) setState(to State) {
	from := s.state
	s.state = to
	s.settings.observer.StateChanged(from, to)
}

func (s *Session) connect(ctx context.Context) error {
	control, err := connect(ctx, s.cfg.Addr(), s.settings)
	if err != nil {
		return err
	}
	s.control = control

	resp, err := control.ReadGreeting()
	if err != nil {
		return err
	}
	if s.settings.strict && !resp.Is2xx() {
		return newReplyError("CONNECT", resp)
	}
	return nil
}

func (s *Session) login(context.Context) error {
	resp, err := s.control.Send("USER " + s.cfg.User)
	if err != nil {
		return err
	}
	if s.settings.strict {
		// 230 means no password is required
		if resp.Code == 230 {
			return nil
		}
		if resp.Code != 331 && resp.Code != 332 {
			return newReplyError("USER", resp)
		}
	}

	resp, err = s.control.Send("PASS " + s.cfg.Password)
	if err != nil {
		return err
	}
	if s.settings.strict && !resp.Is2xx() {
		return newReplyError("PASS", resp)
	}
	return nil
}

func (s *Session) negotiatePassive(ctx context.Context) error {
	resp, err := s.control.Send("PASV")
	if err != nil {
		return err
	}
	if s.settings.strict && resp.Code != 227 {
		return newReplyError("PASV", resp)
	}

	ep, err := ParsePassiveReply(resp.Text())
	if err != nil {
		return err
	}

	data, err := openDataConnection(ctx, resolveDataAddr(ep, s.control.Host()), s.settings)
	if err != nil {
		return err
	}
	s.data = data
	return nil
}

func (s *Session) list(context.Context) error {
	cmd := "LIST"
	if s.cfg.Path != "" {
		cmd += " " + s.cfg.Path
	}

	resp, err := s.control.Send(cmd)
	if err != nil {
		return err
	}
	// Without a 1xx or 2xx reply the server will not send anything on
	// the data connection.
	if resp.Code >= 400 {
		return newReplyError("LIST", resp)
	}
	s.listPending = resp.Is1xx()

	listing, err := s.data.ReadAll()
	if err != nil {
		return err
	}
	err = s.data.Close()
	s.data = nil
	if err != nil {
		return &IoError{Op: "close", Err: err}
	}
	s.listing = listing
	return nil
}

// quit sends QUIT. A completion reply to LIST that the server sent after
// closing the data connection arrives first and is consumed here.
func (s *Session) quit() error {
	resp, err := s.control.Send("QUIT")
	if err != nil {
		return err
	}

	if s.listPending && isListCompletion(resp.Code) {
		s.listPending = false
		if !resp.Is2xx() {
			return newReplyError("LIST", resp)
		}
		if resp, err = s.control.ReadReply("QUIT"); err != nil {
			return err
		}
	}

	if s.settings.strict && !resp.Is2xx() {
		return newReplyError("QUIT", resp)
	}
	return nil
}

// isListCompletion reports whether code is one of the replies that end a
// LIST transfer.
func isListCompletion(code int) bool {
	switch code {
	case 226, 250, 425, 426, 451:
		return true
	}
	return false
}

// close releases the data connection, then the control connection.
func (s *Session) close() error {
	var errs []error
	if s.data != nil {
		if err := s.data.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.control != nil {
		if err := s.control.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if s.state != StateClosed {
		s.setState(StateClosed)
	}
	return errors.Join(errs...)
}
