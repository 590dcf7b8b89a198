package ftplist

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedReply is returned when a reply line is shorter than four
	// characters or does not start with a three-digit code.
	ErrMalformedReply = errors.New("malformed reply line")

	// ErrTruncatedReply is returned when the control connection ends before
	// the final line of a reply was received.
	ErrTruncatedReply = errors.New("truncated reply")

	// ErrCodeMismatch is returned when the final line of a multi-line reply
	// carries a different code than its first line.
	ErrCodeMismatch = errors.New("multi-line reply code mismatch")

	// ErrPassiveReply is returned when a PASV reply does not contain a usable
	// (h1,h2,h3,h4,p1,p2) tuple.
	ErrPassiveReply = errors.New("cannot parse passive-mode response")

	// ErrTransferDone is returned when a data session is read more than once.
	ErrTransferDone = errors.New("data session already transferred")

	// ErrClosed is returned when a closed channel is used.
	ErrClosed = errors.New("channel closed")

	// ErrSessionUsed is returned when Run is called on a session that already ran.
	ErrSessionUsed = errors.New("session already used")
)

// ConnectionError reports that the control or data socket could not be
// established.
type ConnectionError struct {
	// Op is "control" or "data"
	Op string

	// Addr is the address that was dialed
	Addr string

	Err error
}

// Error implements the error interface.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("ftp: %s connection to %s failed: %v", e.Op, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ProtocolError reports a reply that could not be parsed. The session is
// unusable after a ProtocolError.
type ProtocolError struct {
	// Command is the command whose reply was malformed (empty for the greeting)
	Command string

	// Line is the offending line or reply text, if any
	Line string

	Err error
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	cmd := e.Command
	if cmd == "" {
		cmd = "greeting"
	}
	if e.Line != "" {
		return fmt.Sprintf("ftp: %s: %v: %q", cmd, e.Err, e.Line)
	}
	return fmt.Sprintf("ftp: %s: %v", cmd, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// IoError reports a read or write failure on an already open socket.
type IoError struct {
	// Op is "read" or "write"
	Op string

	Err error
}

// Error implements the error interface.
func (e *IoError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %v", e.Op, e.Err)
}

func (e *IoError) Unwrap() error { return e.Err }

// ReplyError represents a well-formed reply carrying an unexpected code,
// with the full context of the command/response exchange.
type ReplyError struct {
	// Command is the FTP command that was sent (e.g., "PASV")
	Command string

	// Response is the message received from the server (e.g., "Login incorrect")
	Response string

	// Code is the numeric FTP response code (e.g., 530)
	Code int
}

// Error implements the error interface.
func (e *ReplyError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// IsTemporary returns true if the error is a temporary failure (4xx).
func (e *ReplyError) IsTemporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent returns true if the error is a permanent failure (5xx).
func (e *ReplyError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}

func newReplyError(command string, r *Reply) *ReplyError {
	return &ReplyError{
		Command:  command,
		Response: r.Message,
		Code:     r.Code,
	}
}
