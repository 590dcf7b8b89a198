package ftplist

import (
	"log/slog"
	"strings"
)

// Observer receives the progress of a session. Implementations must not
// block; they are called synchronously from the session.
type Observer interface {
	// Greeting is called with the server's initial reply.
	Greeting(r *Reply)

	// Command is called before a command is written. Passwords are masked.
	Command(cmd string)

	// Reply is called with the reply read for cmd.
	Reply(cmd string, r *Reply)

	// StateChanged is called after the session moved to a new state.
	StateChanged(from, to State)

	// Progress is called with the running total of listing bytes received.
	Progress(total int64)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) Greeting(*Reply)           {}
func (NopObserver) Command(string)            {}
func (NopObserver) Reply(string, *Reply)      {}
func (NopObserver) StateChanged(State, State) {}
func (NopObserver) Progress(int64)            {}

// LogObserver writes the session to a structured logger at debug level.
type LogObserver struct {
	Logger *slog.Logger
}

func (o *LogObserver) Greeting(r *Reply) {
	o.Logger.Debug("ftp greeting", "code", r.Code, "message", r.Message)
}

func (o *LogObserver) Command(cmd string) {
	o.Logger.Debug("ftp command", "cmd", cmd)
}

func (o *LogObserver) Reply(cmd string, r *Reply) {
	o.Logger.Debug("ftp response", "cmd", cmd, "code", r.Code, "message", r.Message)
}

func (o *LogObserver) StateChanged(from, to State) {
	o.Logger.Debug("ftp session state", "from", from, "to", to)
}

func (o *LogObserver) Progress(total int64) {
	o.Logger.Debug("ftp listing progress", "bytes", total)
}

// MultiObserver forwards every event to each of its observers in order.
type MultiObserver []Observer

func (m MultiObserver) Greeting(r *Reply) {
	for _, o := range m {
		o.Greeting(r)
	}
}

func (m MultiObserver) Command(cmd string) {
	for _, o := range m {
		o.Command(cmd)
	}
}

func (m MultiObserver) Reply(cmd string, r *Reply) {
	for _, o := range m {
		o.Reply(cmd, r)
	}
}

func (m MultiObserver) StateChanged(from, to State) {
	for _, o := range m {
		o.StateChanged(from, to)
	}
}

func (m MultiObserver) Progress(total int64) {
	for _, o := range m {
		o.Progress(total)
	}
}

// maskCommand hides the argument of PASS.
func maskCommand(cmd string) string {
	verb, _, hasArg := strings.Cut(cmd, " ")
	if hasArg && strings.EqualFold(verb, "PASS") {
		return verb + " ****"
	}
	return cmd
}
