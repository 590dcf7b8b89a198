package main

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonzalop/ftplist"
	"github.com/gonzalop/ftplist/internal/ftptest"
)

func testApp(env map[string]string) (*app, *bytes.Buffer, *bytes.Buffer) {
	var stdout, stderr bytes.Buffer
	a := &app{
		stdout: &stdout,
		stderr: &stderr,
		getenv: func(k string) string { return env[k] },
		readPassword: func() (string, error) {
			return "", errors.New("no terminal")
		},
	}
	return a, &stdout, &stderr
}

func TestParseFlags_Defaults(t *testing.T) {
	t.Parallel()
	a, _, _ := testApp(nil)

	opts, err := a.parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, ftplist.Config{
		Host:     "ftp.freebsd.org",
		Port:     21,
		User:     "anonymous",
		Password: "anonymous@",
	}, opts.cfg)
	assert.Equal(t, 30*time.Second, opts.timeout)
	assert.False(t, opts.strict)
	assert.Zero(t, opts.verbose)
}

func TestParseFlags(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		args  []string
		env   map[string]string
		check func(t *testing.T, opts *options)
	}{
		{
			name: "short flags",
			args: []string{"-H", "ftp.example.com", "-p", "2121", "-u", "ftp", "-w", "5s", "-vv"},
			check: func(t *testing.T, opts *options) {
				assert.Equal(t, "ftp.example.com", opts.cfg.Host)
				assert.Equal(t, 2121, opts.cfg.Port)
				assert.Equal(t, "ftp", opts.cfg.User)
				assert.Equal(t, 5*time.Second, opts.timeout)
				assert.Equal(t, 2, opts.verbose)
			},
		},
		{
			name: "positional host",
			args: []string{"--path", "/pub", "--strict", "mirror.example.org"},
			check: func(t *testing.T, opts *options) {
				assert.Equal(t, "mirror.example.org", opts.cfg.Host)
				assert.Equal(t, "/pub", opts.cfg.Path)
				assert.True(t, opts.strict)
			},
		},
		{
			name: "environment fallbacks",
			env:  map[string]string{"FTPLIST_HOST": "env.example.org", "FTPLIST_PASSWORD": "me@example.org"},
			check: func(t *testing.T, opts *options) {
				assert.Equal(t, "env.example.org", opts.cfg.Host)
				assert.Equal(t, "me@example.org", opts.cfg.Password)
			},
		},
		{
			name: "flags beat environment",
			args: []string{"--host", "flag.example.org", "--password", "flag@example.org"},
			env:  map[string]string{"FTPLIST_HOST": "env.example.org", "FTPLIST_PASSWORD": "me@example.org"},
			check: func(t *testing.T, opts *options) {
				assert.Equal(t, "flag.example.org", opts.cfg.Host)
				assert.Equal(t, "flag@example.org", opts.cfg.Password)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, _, _ := testApp(tt.env)
			opts, err := a.parseFlags(tt.args)
			require.NoError(t, err)
			tt.check(t, opts)
		})
	}
}

func TestParseFlags_Errors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--bogus"}},
		{"port out of range", []string{"--port", "70000"}},
		{"negative timeout", []string{"--timeout", "-1s"}},
		{"empty host", []string{"--host", ""}},
		{"too many arguments", []string{"a.example.org", "b.example.org"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, _, _ := testApp(nil)
			_, err := a.parseFlags(tt.args)
			require.Error(t, err)
		})
	}
}

func TestParseFlags_HelpAndVersion(t *testing.T) {
	t.Parallel()
	a, stdout, stderr := testApp(nil)

	_, err := a.parseFlags([]string{"--help"})
	require.ErrorIs(t, err, errHelp)
	assert.Contains(t, stderr.String(), "--ask-password")

	_, err = a.parseFlags([]string{"--version"})
	require.ErrorIs(t, err, errHelp)
	assert.Equal(t, "ftplist "+version+"\n", stdout.String())
}

func TestParseFlags_HelpHidesPassword(t *testing.T) {
	t.Parallel()
	a, _, stderr := testApp(map[string]string{"FTPLIST_PASSWORD": "s3cret@example.org"})

	_, err := a.parseFlags([]string{"--help"})
	require.ErrorIs(t, err, errHelp)
	assert.Contains(t, stderr.String(), "--password")
	assert.NotContains(t, stderr.String(), "s3cret")

	opts, err := a.parseFlags(nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cret@example.org", opts.cfg.Password)
}

func TestRun_WritesListing(t *testing.T) {
	t.Parallel()
	listing := "-rw-r--r-- 1 ftp ftp 1024 Jan 01 2024 README\r\n"
	srv := ftptest.NewServer(t, ftptest.Script{
		Greeting: "220-Welcome\n220 ready",
		Listing:  []byte(listing),
	})

	a, stdout, stderr := testApp(nil)
	err := a.run(context.Background(), []string{
		"--host", srv.Host(),
		"--port", strconv.Itoa(srv.Port()),
		"--path", "/pub",
		"--timeout", "5s",
		"--no-color",
		"-vv",
	})
	require.NoError(t, err)
	assert.Equal(t, listing, stdout.String())

	transcript := stderr.String()
	assert.Contains(t, transcript, "< 220-Welcome\n< 220 ready\n")
	assert.Contains(t, transcript, "> USER anonymous\n< 331 need password\n")
	assert.Contains(t, transcript, "> PASS ****\n")
	assert.Contains(t, transcript, "> LIST /pub\n< 150 opening data\n")
	assert.Contains(t, transcript, "-- listed\n")
	assert.NotContains(t, transcript, "anonymous@")
}

func TestRun_DebugLog(t *testing.T) {
	t.Parallel()
	srv := ftptest.NewServer(t, ftptest.Script{Listing: []byte("x\r\n")})

	a, _, stderr := testApp(nil)
	err := a.run(context.Background(), []string{
		srv.Host(), "-p", strconv.Itoa(srv.Port()), "-w", "5s", "--debug",
	})
	require.NoError(t, err)
	assert.Contains(t, stderr.String(), "ftp command")
	assert.Contains(t, stderr.String(), "level=DEBUG")
}

func TestRun_AskPasswordFailure(t *testing.T) {
	t.Parallel()
	a, _, _ := testApp(nil)
	err := a.run(context.Background(), []string{"--ask-password"})
	require.ErrorContains(t, err, "no terminal")
}

func TestRun_AskPassword(t *testing.T) {
	t.Parallel()
	srv := ftptest.NewServer(t, ftptest.Script{Listing: []byte("x\r\n")})

	a, _, _ := testApp(nil)
	a.readPassword = func() (string, error) { return "typed@example.org", nil }

	err := a.run(context.Background(), []string{
		srv.Host(), "-p", strconv.Itoa(srv.Port()), "-w", "5s", "--ask-password",
	})
	require.NoError(t, err)

	require.True(t, srv.Wait(5*time.Second))
	assert.Contains(t, srv.Commands(), "PASS typed@example.org")
}

func TestRun_StrictFailure(t *testing.T) {
	t.Parallel()
	srv := ftptest.NewServer(t, ftptest.Script{
		Replies: map[string]string{"PASS": "530 Login incorrect."},
	})

	a, stdout, _ := testApp(nil)
	err := a.run(context.Background(), []string{
		srv.Host(), "-p", strconv.Itoa(srv.Port()), "-w", "5s", "--strict",
	})
	var rerr *ftplist.ReplyError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 530, rerr.Code)
	assert.Empty(t, stdout.String())
}

func TestSessionOptions_Socks5(t *testing.T) {
	t.Parallel()
	a, _, _ := testApp(nil)
	opts, err := a.parseFlags([]string{"--socks5", "127.0.0.1:1080"})
	require.NoError(t, err)

	sessionOpts, err := a.sessionOptions(opts)
	require.NoError(t, err)
	assert.Len(t, sessionOpts, 2, "timeout and dialer")
}
