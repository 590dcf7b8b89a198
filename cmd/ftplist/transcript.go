package main

import (
	"io"

	"github.com/fatih/color"

	"github.com/gonzalop/ftplist"
)

// transcript prints the control connection exchange, colored by reply class.
type transcript struct {
	w          io.Writer
	showStates bool

	command *color.Color
	prelim  *color.Color
	success *color.Color
	pending *color.Color
	failure *color.Color
	state   *color.Color
}

func newTranscript(w io.Writer, noColor, showStates bool) *transcript {
	t := &transcript{
		w:          w,
		showStates: showStates,
		command:    color.New(color.FgCyan, color.Bold),
		prelim:     color.New(color.FgBlue),
		success:    color.New(color.FgGreen),
		pending:    color.New(color.FgYellow),
		failure:    color.New(color.FgRed),
		state:      color.New(color.Faint),
	}
	if noColor {
		for _, c := range []*color.Color{t.command, t.prelim, t.success, t.pending, t.failure, t.state} {
			c.DisableColor()
		}
	}
	return t
}

func (t *transcript) replyColor(r *ftplist.Reply) *color.Color {
	switch {
	case r.Is1xx():
		return t.prelim
	case r.Is2xx():
		return t.success
	case r.Is3xx():
		return t.pending
	default:
		return t.failure
	}
}

func (t *transcript) printReply(r *ftplist.Reply) {
	c := t.replyColor(r)
	for _, l := range r.Lines {
		c.Fprintf(t.w, "< %s\n", l)
	}
}

func (t *transcript) Greeting(r *ftplist.Reply) { t.printReply(r) }

func (t *transcript) Command(cmd string) {
	t.command.Fprintf(t.w, "> %s\n", cmd)
}

func (t *transcript) Reply(_ string, r *ftplist.Reply) { t.printReply(r) }

func (t *transcript) StateChanged(_, to ftplist.State) {
	if t.showStates {
		t.state.Fprintf(t.w, "-- %s\n", to)
	}
}

func (t *transcript) Progress(int64) {}

var _ ftplist.Observer = (*transcript)(nil)
