package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"s3cleanup/internal/errs"
)

// Result holds the outcome of one command execution.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Executor runs external programs.
type Executor interface {
	Execute(ctx context.Context, program string, args []string, opts ...Option) (*Result, error)
}

// Options configures a single execution.
type Options struct {
	// Console connects the child to this process's terminal instead of
	// capturing its output.
	Console bool
	Stdin   io.Reader
}

// Option is a function that modifies Options.
type Option func(*Options)

// WithConsole hands the operator's terminal to the child.
func WithConsole() Option {
	return func(o *Options) { o.Console = true }
}

// WithExecStdin feeds r to the child's standard input.
func WithExecStdin(r io.Reader) Option {
	return func(o *Options) { o.Stdin = r }
}

// CommandExecutor implements Executor with os/exec.
type CommandExecutor struct{}

func (CommandExecutor) Execute(ctx context.Context, program string, args []string, opts ...Option) (*Result, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	cmd := exec.CommandContext(ctx, program, args...)
	var stdout, stderr bytes.Buffer
	if options.Console {
		cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	} else {
		cmd.Stdout, cmd.Stderr = &stdout, &stderr
	}
	if options.Stdin != nil {
		cmd.Stdin = options.Stdin
	}

	err := cmd.Run()
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, errs.Wrap(errs.KindUnknown, fmt.Sprintf("%s exited with status %d", program, result.ExitCode), err).
			WithCode(result.ExitCode)
	}
	if errors.Is(err, exec.ErrNotFound) {
		return result, errs.Wrap(errs.KindToolingMissing, fmt.Sprintf("%s is not installed", program), err)
	}
	return result, errs.Wrap(errs.KindUnknown, fmt.Sprintf("failed to run %s", program), err)
}
