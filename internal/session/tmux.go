// Package session keeps the cleanup run alive inside a named tmux session so
// it survives the operator's terminal disconnecting.
package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"s3cleanup/internal/errs"
)

const (
	// ChildFlag marks the copy of the process that runs inside the session.
	ChildFlag = "--session-child"
	// StdinFileFlag passes spooled standard input to the child.
	StdinFileFlag = "--stdin-file"
)

// Tmux is the tmux-backed session wrapper.
type Tmux struct {
	Name   string
	Binary string

	child    bool
	exec     Executor
	getenv   func(string) string
	lookPath func(string) (string, error)

	// stdin is spooled to a file on relaunch when it is not a terminal.
	stdin      io.Reader
	stdinIsTTY bool
	spoolDir   string
}

// TmuxOption configures a Tmux.
type TmuxOption func(*Tmux)

// WithExecutor replaces the command executor.
func WithExecutor(e Executor) TmuxOption {
	return func(t *Tmux) { t.exec = e }
}

// WithEnv replaces environment lookups.
func WithEnv(getenv func(string) string) TmuxOption {
	return func(t *Tmux) { t.getenv = getenv }
}

// WithLookPath replaces PATH lookups.
func WithLookPath(fn func(string) (string, error)) TmuxOption {
	return func(t *Tmux) { t.lookPath = fn }
}

// WithStdin sets the input inherited by the relaunched copy.
func WithStdin(r io.Reader, isTerminal bool) TmuxOption {
	return func(t *Tmux) {
		t.stdin = r
		t.stdinIsTTY = isTerminal
	}
}

// WithSpoolDir sets where piped stdin is spooled. Empty means os.TempDir.
func WithSpoolDir(dir string) TmuxOption {
	return func(t *Tmux) { t.spoolDir = dir }
}

// NewTmux returns a wrapper for the session called name. child reports
// whether this process was started by Relaunch.
func NewTmux(name string, child bool, opts ...TmuxOption) *Tmux {
	t := &Tmux{
		Name:       name,
		Binary:     "tmux",
		child:      child,
		exec:       CommandExecutor{},
		getenv:     os.Getenv,
		lookPath:   exec.LookPath,
		stdin:      os.Stdin,
		stdinIsTTY: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Check fails with a tooling-missing error when tmux is not on PATH.
func (t *Tmux) Check() error {
	if _, err := t.lookPath(t.Binary); err != nil {
		return errs.Wrap(errs.KindToolingMissing, fmt.Sprintf("%s is required for session persistence (use --no-session to run without it)", t.Binary), err).
			WithCode(errs.KindToolingMissing.ExitCode())
	}
	return nil
}

// Inside reports whether the process already runs in a persistent session.
func (t *Tmux) Inside() bool {
	return t.child || t.getenv("TMUX") != ""
}

// HasSession reports whether the named session exists.
func (t *Tmux) HasSession(ctx context.Context) bool {
	_, err := t.exec.Execute(ctx, t.Binary, []string{"has-session", "-t", "=" + t.Name})
	return err == nil
}

// Relaunch starts argv inside the named session. With a terminal on stdin
// the operator is attached and Relaunch returns when they detach or the
// session ends; an existing session is attached instead. Piped stdin is
// spooled for the copy and the session is started detached, since tmux
// cannot attach a client without a terminal.
func (t *Tmux) Relaunch(ctx context.Context, argv []string) error {
	if len(argv) == 0 {
		return errs.New(errs.KindInvalidInput, "relaunch needs a command")
	}

	childArgv := append(append([]string{}, argv...), ChildFlag)
	if t.stdinIsTTY || t.stdin == nil {
		args := []string{"new-session", "-A", "-s", t.Name, shellJoin(childArgv)}
		_, err := t.exec.Execute(ctx, t.Binary, args, WithConsole())
		return err
	}

	if t.HasSession(ctx) {
		return errs.New(errs.KindInvalidInput, fmt.Sprintf("session %q already exists and cannot take piped input; attach to it or pick another --session", t.Name))
	}
	path, err := spool(t.stdin, t.spoolDir)
	if err != nil {
		return err
	}
	childArgv = append(childArgv, StdinFileFlag, path)

	args := []string{"new-session", "-d", "-s", t.Name, shellJoin(childArgv)}
	if _, err := t.exec.Execute(ctx, t.Binary, args); err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// Attach connects the operator's terminal to the named session. From inside
// another tmux session the client is switched instead, since tmux refuses to
// nest.
func (t *Tmux) Attach(ctx context.Context) error {
	verb := "attach-session"
	if t.getenv("TMUX") != "" {
		verb = "switch-client"
	}
	_, err := t.exec.Execute(ctx, t.Binary, []string{verb, "-t", "=" + t.Name}, WithConsole())
	return err
}

// Reattach gives the operator a live view after a failure. Inside the
// session it holds the pane open with an interactive shell; outside it
// attaches to the session if one exists.
func (t *Tmux) Reattach(ctx context.Context) error {
	if t.Inside() {
		shell := t.getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		_, err := t.exec.Execute(ctx, shell, nil, WithConsole())
		return err
	}
	if !t.HasSession(ctx) {
		return errs.New(errs.KindNotFound, fmt.Sprintf("no session named %q", t.Name))
	}
	return t.Attach(ctx)
}

func spool(r io.Reader, dir string) (string, error) {
	f, err := os.CreateTemp(dir, "s3cleanup-stdin-*")
	if err != nil {
		return "", errs.Wrap(errs.KindUnknown, "failed to spool standard input", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", errs.Wrap(errs.KindUnknown, "failed to spool standard input", err)
	}
	return f.Name(), nil
}

// shellJoin quotes argv for tmux, which runs its command through sh -c.
func shellJoin(argv []string) string {
	quoted := make([]string, len(argv))
	for i, arg := range argv {
		quoted[i] = shellQuote(arg)
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./=:@,+", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
