// Package ftptest provides a scripted FTP server for tests.
//
// The server accepts a single control connection, answers each command from
// a Script and serves the listing on a passive data connection. It records
// every command it receives so tests can check the order of the exchange.
package ftptest

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Default replies used when a Script does not override them.
const (
	DefaultGreeting = "220 ready"
	DefaultUser     = "331 need password"
	DefaultPass     = "230 logged in"
	DefaultList     = "150 opening data"
	DefaultQuit     = "221 bye"
)

// Script describes how the server answers.
type Script struct {
	// Greeting is sent right after the client connects. Lines are separated
	// by "\n"; CRLF is added to each.
	Greeting string

	// Replies overrides the reply to a command verb (e.g. "PASS"). Setting
	// "PASV" disables the data listener.
	Replies map[string]string

	// Listing is written to the data connection after LIST.
	Listing []byte

	// Completion is sent on the control connection after the data
	// connection was closed. Empty sends nothing.
	Completion string

	// DataAddr is the passive listen address (default "127.0.0.1:0").
	DataAddr string

	// RefuseData closes the passive listener before replying to PASV so
	// the client's data connection is refused.
	RefuseData bool

	// HangUpOn drops the control connection without replying when this
	// verb is received.
	HangUpOn string

	// StallData accepts the data connection after LIST but never writes to
	// it. The server waits until the client closes it.
	StallData bool
}

// Server is a scripted FTP server listening on the loopback interface.
type Server struct {
	script Script
	ln     net.Listener

	mu       sync.Mutex
	commands []string
	conn     net.Conn
	dataLn   net.Listener
	dataConn net.Conn
	closing  bool

	done chan struct{}
	once sync.Once
}

// NewServer starts a server for script. It is closed when the test ends.
func NewServer(tb testing.TB, script Script) *Server {
	tb.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("ftptest: listen: %v", err)
	}

	s := &Server{
		script: script,
		ln:     ln,
		done:   make(chan struct{}),
	}
	go s.serve()
	tb.Cleanup(s.Close)
	return s
}

// Addr returns the control address in "host:port" form.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Host returns the control host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.Addr())
	return host
}

// Port returns the control port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.Addr())
	p, _ := strconv.Atoi(port)
	return p
}

// Commands returns the command lines received so far.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Wait blocks until the control connection has ended or timeout elapses.
// It reports whether the connection ended.
func (s *Server) Wait(timeout time.Duration) bool {
	select {
	case <-s.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Close stops the server and drops any open connection.
func (s *Server) Close() {
	s.once.Do(func() {
		s.ln.Close()
		s.mu.Lock()
		s.closing = true
		if s.conn != nil {
			s.conn.Close()
		}
		if s.dataLn != nil {
			s.dataLn.Close()
		}
		if s.dataConn != nil {
			s.dataConn.Close()
		}
		s.mu.Unlock()
		<-s.done
	})
}

func (s *Server) serve() {
	defer close(s.done)

	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	w := bufio.NewWriter(conn)
	r := bufio.NewReader(conn)

	greeting := s.script.Greeting
	if greeting == "" {
		greeting = DefaultGreeting
	}
	writeReply(w, greeting)

	var dataConns chan net.Conn
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")

		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		verb, _, _ := strings.Cut(line, " ")
		verb = strings.ToUpper(verb)
		if verb == s.script.HangUpOn {
			return
		}

		reply, scripted := s.script.Replies[verb]
		switch verb {
		case "USER":
			writeReply(w, orDefault(reply, scripted, DefaultUser))
		case "PASS":
			writeReply(w, orDefault(reply, scripted, DefaultPass))
		case "PASV":
			if scripted {
				writeReply(w, reply)
				continue
			}
			var pasv string
			dataConns, pasv, err = s.listenPassive()
			if err != nil {
				writeReply(w, "425 Can't open passive connection.")
				continue
			}
			writeReply(w, pasv)
		case "LIST":
			reply = orDefault(reply, scripted, DefaultList)
			writeReply(w, reply)
			if dataConns == nil || reply[0] == '4' || reply[0] == '5' {
				continue
			}
			s.sendListing(dataConns)
			dataConns = nil
			if s.script.Completion != "" {
				writeReply(w, s.script.Completion)
			}
		case "QUIT":
			writeReply(w, orDefault(reply, scripted, DefaultQuit))
			return
		default:
			writeReply(w, orDefault(reply, scripted, "502 Command not implemented."))
		}
	}
}

// listenPassive opens the data listener and formats the PASV reply for it.
func (s *Server) listenPassive() (chan net.Conn, string, error) {
	addr := s.script.DataAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}
	port := ln.Addr().(*net.TCPAddr).Port
	reply := fmt.Sprintf("227 Entering Passive Mode (127,0,0,1,%d,%d).", port/256, port%256)

	conns := make(chan net.Conn, 1)
	if s.script.RefuseData {
		ln.Close()
		close(conns)
		return conns, reply, nil
	}

	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		ln.Close()
		return nil, "", net.ErrClosed
	}
	s.dataLn = ln
	s.mu.Unlock()

	go func() {
		defer ln.Close()
		c, err := ln.Accept()
		if err != nil {
			close(conns)
			return
		}
		conns <- c
	}()
	return conns, reply, nil
}

func (s *Server) sendListing(conns chan net.Conn) {
	select {
	case c, ok := <-conns:
		if !ok {
			return
		}
		if s.script.StallData {
			s.mu.Lock()
			if s.closing {
				s.mu.Unlock()
				c.Close()
				return
			}
			s.dataConn = c
			s.mu.Unlock()
			_, _ = io.Copy(io.Discard, c)
		} else {
			_, _ = c.Write(s.script.Listing)
		}
		c.Close()
	case <-time.After(5 * time.Second):
	}
}

func orDefault(reply string, scripted bool, def string) string {
	if scripted {
		return reply
	}
	return def
}

// writeReply sends each "\n"-separated line of reply terminated by CRLF.
func writeReply(w *bufio.Writer, reply string) {
	for _, l := range strings.Split(reply, "\n") {
		fmt.Fprintf(w, "%s\r\n", l)
	}
	_ = w.Flush()
}
