// Package trap is the single top-level error boundary. Everything below it
// returns errors; only the Handler reports them, hands the operator the
// persistent session and picks the exit code.
package trap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"

	"s3cleanup/internal/errs"
	"s3cleanup/internal/logger"
	"s3cleanup/pkg/utils"
)

// Reattacher gives the operator a live view of the persistent session.
type Reattacher interface {
	Reattach(ctx context.Context) error
}

// Handler wraps the process lifetime. The logger and reattacher are usually
// not known until flags are parsed, so both can be set while running.
type Handler struct {
	command  string
	out      io.Writer
	log      *logger.Logger
	reattach Reattacher
}

// New returns a Handler that writes failure reports to out.
func New(command string, out io.Writer) *Handler {
	return &Handler{command: command, out: out, log: logger.Nop()}
}

// SetLogger replaces the diagnostics logger.
func (h *Handler) SetLogger(l *logger.Logger) {
	if l != nil {
		h.log = l
	}
}

// SetReattacher enables reattaching after a failure. nil disables it.
func (h *Handler) SetReattacher(r Reattacher) {
	h.reattach = r
}

// Run calls fn and returns the process exit code: 0 on success, otherwise
// the failure's own code after it has been reported.
func (h *Handler) Run(ctx context.Context, fn func(context.Context) error) int {
	err := guard(ctx, fn)
	if err == nil {
		return 0
	}
	return h.Handle(ctx, err)
}

// Handle reports err, reattaches the operator if possible and returns the
// exit code err carries.
func (h *Handler) Handle(ctx context.Context, err error) int {
	code := errs.ExitCode(err)
	kind := errs.KindOf(err)

	var step, bucket string
	var e *errs.Error
	if errors.As(err, &e) {
		step, bucket = e.Step, e.Bucket
	}

	fmt.Fprintln(h.out, utils.Danger(fmt.Sprintf("✗ %s failed", h.command)))
	if step != "" {
		fmt.Fprintf(h.out, "  step:      %s\n", step)
	}
	if bucket != "" {
		fmt.Fprintf(h.out, "  bucket:    %s\n", bucket)
	}
	fmt.Fprintf(h.out, "  kind:      %s\n", kind)
	fmt.Fprintf(h.out, "  exit code: %d\n", code)
	utils.PrintError(h.out, err, h.command)

	h.log.Error().Err(err).
		Str("step", step).
		Str("bucket", bucket).
		Str("kind", kind.String()).
		Int("exit_code", code).
		Msg("run aborted")

	if h.reattach != nil && reattachable(kind) {
		fmt.Fprintln(h.out, "Reattaching to the session; inspect remote state, then exit the shell to finish.")
		if rerr := h.reattach.Reattach(context.WithoutCancel(ctx)); rerr != nil {
			h.log.Warn().Err(rerr).Msg("could not reattach to session")
		}
	}
	return code
}

// Startup failures happen before any session exists.
func reattachable(kind errs.Kind) bool {
	return kind != errs.KindInvalidInput && kind != errs.KindToolingMissing
}

func guard(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errs.Error{
				Kind:    errs.KindUnknown,
				Step:    "panic at " + panicLocation(),
				Message: fmt.Sprint(r),
			}
		}
	}()
	return fn(ctx)
}

// panicLocation returns the first frame outside the runtime, which is where
// the panic was raised.
func panicLocation() string {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") && !strings.HasPrefix(frame.Function, "internal/runtime/") {
			return fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line)
		}
		if !more {
			return "unknown"
		}
	}
}
