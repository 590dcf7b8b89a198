package ftplist

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// Reply represents one FTP server reply.
type Reply struct {
	// Code is the three-digit reply code taken from the first line (e.g., 220, 550)
	Code int

	// Message is the human-readable text with the code prefixes removed
	Message string

	// Lines contains every raw line of the reply, without line terminators
	Lines []string
}

// Is1xx returns true if the reply code is in the 1xx range (preliminary).
func (r *Reply) Is1xx() bool {
	return r.Code >= 100 && r.Code < 200
}

// Is2xx returns true if the reply code is in the 2xx range (success).
func (r *Reply) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// Is3xx returns true if the reply code is in the 3xx range (intermediate).
func (r *Reply) Is3xx() bool {
	return r.Code >= 300 && r.Code < 400
}

// Is4xx returns true if the reply code is in the 4xx range (temporary failure).
func (r *Reply) Is4xx() bool {
	return r.Code >= 400 && r.Code < 500
}

// Is5xx returns true if the reply code is in the 5xx range (permanent failure).
func (r *Reply) Is5xx() bool {
	return r.Code >= 500 && r.Code < 600
}

// Text returns the reply body: every line, each terminated by a newline.
func (r *Reply) Text() string {
	var b strings.Builder
	for _, l := range r.Lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return b.String()
}

// String returns the full reply as a string.
func (r *Reply) String() string {
	return strings.Join(r.Lines, "\n")
}

// readReply reads one complete reply from the control connection.
//
// Single-line format: "220 Welcome\r\n"
// Multi-line format:
//
//	"220-Welcome to FTP\r\n"
//	"220-This is line 2\r\n"
//	"220 Ready\r\n"
//
// Every line must start with a three-digit code followed by a fourth
// character. A '-' there continues the reply, anything else ends it, and the
// final line must repeat the code of the first one.
func readReply(r *bufio.Reader, command string) (*Reply, error) {
	var (
		lines    []string
		messages []string
		code     int
	)

	for {
		line, err := readLine(r, command)
		if err != nil {
			return nil, err
		}

		c, ok := parseCode(line)
		if !ok {
			return nil, &ProtocolError{Command: command, Line: line, Err: ErrMalformedReply}
		}
		if len(lines) == 0 {
			code = c
		}

		lines = append(lines, line)
		messages = append(messages, line[4:])

		if line[3] == '-' {
			continue
		}

		if c != code {
			return nil, &ProtocolError{Command: command, Line: line, Err: ErrCodeMismatch}
		}

		return &Reply{
			Code:    code,
			Message: strings.Join(messages, "\n"),
			Lines:   lines,
		}, nil
	}
}

// readLine returns the next line without its terminator. A last line that
// is not terminated before end-of-stream is still returned.
func readLine(r *bufio.Reader, command string) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", &IoError{Op: "read", Err: err}
		}
		if line == "" {
			return "", &ProtocolError{Command: command, Err: ErrTruncatedReply}
		}
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// parseCode parses the leading three-digit code of a reply line.
func parseCode(line string) (int, bool) {
	if len(line) < 4 {
		return 0, false
	}
	code := 0
	for i := range 3 {
		ch := line[i]
		if ch < '0' || ch > '9' {
			return 0, false
		}
		code = code*10 + int(ch-'0')
	}
	return code, true
}
