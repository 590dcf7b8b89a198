// Package main implements the ftplist command, which prints the directory
// listing of an FTP server obtained over an anonymous passive-mode session.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/net/proxy"
	"golang.org/x/term"

	"github.com/gonzalop/ftplist"
)

// version is overridable at link time:
//
//	go build -ldflags "-X main.version=1.1.0"
var version = "1.0.0" //nolint:gochecknoglobals

const defaultHost = "ftp.freebsd.org"

// errHelp is returned after usage or version output was printed.
var errHelp = errors.New("help requested")

// options holds everything the command line can set.
type options struct {
	cfg ftplist.Config

	timeout     time.Duration
	socks5      string
	strict      bool
	askPassword bool
	verbose     int
	debug       bool
	noColor     bool
}

// app carries the process environment so tests can replace it.
type app struct {
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string

	// readPassword prompts for a password without echo
	readPassword func() (string, error)
}

func newApp() *app {
	return &app{
		stdout: os.Stdout,
		stderr: os.Stderr,
		getenv: os.Getenv,
		readPassword: func() (string, error) {
			fmt.Fprint(os.Stderr, "Password: ")
			b, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			return string(b), err
		},
	}
}

// parseFlags turns args into options. Unset host and password fall back to
// FTPLIST_HOST and FTPLIST_PASSWORD.
func (a *app) parseFlags(args []string) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet("ftplist", flag.ContinueOnError)
	fs.SetOutput(a.stderr)

	// ── connection ───────────────────────────────────────────────
	fs.StringVarP(&opts.cfg.Host, "host", "H", envOr(a.getenv, "FTPLIST_HOST", defaultHost), "FTP server host")
	fs.IntVarP(&opts.cfg.Port, "port", "p", ftplist.DefaultPort, "FTP control port")
	fs.DurationVarP(&opts.timeout, "timeout", "w", 30*time.Second, "Timeout for connecting and each read/write (0 disables)")
	fs.StringVar(&opts.socks5, "socks5", "", "Connect through a SOCKS5 proxy at host:port")

	// ── login ────────────────────────────────────────────────────
	fs.StringVarP(&opts.cfg.User, "user", "u", ftplist.DefaultUser, "Login name")
	fs.StringVar(&opts.cfg.Password, "password", "", "Login password (default $FTPLIST_PASSWORD or \""+ftplist.DefaultPassword+"\")")
	fs.BoolVar(&opts.askPassword, "ask-password", false, "Prompt for the password")

	// ── listing ──────────────────────────────────────────────────
	fs.StringVar(&opts.cfg.Path, "path", "", "Directory to list (default: login directory)")
	fs.BoolVar(&opts.strict, "strict", false, "Fail on unexpected reply codes")

	// ── output ───────────────────────────────────────────────────
	fs.CountVarP(&opts.verbose, "verbose", "v", "Print the control connection transcript")
	fs.BoolVar(&opts.debug, "debug", false, "Write debug logs to stderr")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored transcript")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: ftplist [flags] [host]\n\nFlags:\n%s", fs.FlagUsages())
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if showHelp {
		fs.Usage()
		return nil, errHelp
	}
	if showVersion {
		fmt.Fprintf(a.stdout, "ftplist %s\n", version)
		return nil, errHelp
	}

	// Resolved after parsing; usage must not show it.
	if opts.cfg.Password == "" {
		opts.cfg.Password = envOr(a.getenv, "FTPLIST_PASSWORD", ftplist.DefaultPassword)
	}

	switch rest := fs.Args(); len(rest) {
	case 0:
	case 1:
		opts.cfg.Host = rest[0]
	default:
		return nil, fmt.Errorf("too many arguments: %v", rest)
	}

	if opts.cfg.Host == "" {
		return nil, errors.New("--host must not be empty")
	}
	if opts.cfg.Port <= 0 || opts.cfg.Port > 65535 {
		return nil, fmt.Errorf("--port=%d: must be between 1 and 65535", opts.cfg.Port)
	}
	if opts.timeout < 0 {
		return nil, fmt.Errorf("--timeout=%v: must not be negative", opts.timeout)
	}
	return opts, nil
}

// sessionOptions builds the library options for opts.
func (a *app) sessionOptions(opts *options) ([]ftplist.Option, error) {
	sessionOpts := []ftplist.Option{ftplist.WithTimeout(opts.timeout)}

	if opts.socks5 != "" {
		d, err := proxy.SOCKS5("tcp", opts.socks5, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5: %w", err)
		}
		cd, ok := d.(proxy.ContextDialer)
		if !ok {
			return nil, errors.New("socks5: dialer does not support contexts")
		}
		sessionOpts = append(sessionOpts, ftplist.WithDialer(cd))
	}

	if opts.strict {
		sessionOpts = append(sessionOpts, ftplist.WithStrictReplies())
	}

	var observers ftplist.MultiObserver
	if opts.verbose > 0 {
		observers = append(observers, newTranscript(a.stderr, opts.noColor, opts.verbose > 1))
	}
	if opts.debug {
		logger := slog.New(slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		observers = append(observers, &ftplist.LogObserver{Logger: logger})
	}
	if len(observers) > 0 {
		sessionOpts = append(sessionOpts, ftplist.WithObserver(observers))
	}
	return sessionOpts, nil
}

// run parses args, runs one session and writes the listing to stdout.
func (a *app) run(ctx context.Context, args []string) error {
	opts, err := a.parseFlags(args)
	if err != nil {
		return err
	}

	if opts.askPassword {
		pw, err := a.readPassword()
		if err != nil {
			return fmt.Errorf("reading password: %w", err)
		}
		opts.cfg.Password = pw
	}

	sessionOpts, err := a.sessionOptions(opts)
	if err != nil {
		return err
	}

	listing, err := ftplist.List(ctx, opts.cfg, sessionOpts...)
	if err != nil {
		return err
	}

	_, err = a.stdout.Write(listing)
	return err
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}
