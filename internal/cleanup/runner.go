package cleanup

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"

	"s3cleanup/internal/errs"
	"s3cleanup/internal/logger"
	"s3cleanup/internal/models"
	"s3cleanup/pkg/utils"
)

// Session is the persistent terminal session the run must live in.
type Session interface {
	Inside() bool
	Relaunch(ctx context.Context, argv []string) error
}

// LineReader collects the operator's bucket names.
type LineReader interface {
	ReadLines(intro string) ([]string, error)
}

// RunnerConfig holds the values the orchestrator is built with.
type RunnerConfig struct {
	SessionName string
	Provider    string
	// Argv is the invocation handed to Session.Relaunch.
	Argv []string
}

// Runner collects bucket names and feeds them to a Machine one at a time.
type Runner struct {
	machine *Machine
	input   LineReader
	session Session
	out     io.Writer
	log     *logger.Logger
	cfg     RunnerConfig
	now     func() time.Time
}

// NewRunner wires a Runner. A nil session runs in place.
func NewRunner(machine *Machine, input LineReader, session Session, out io.Writer, log *logger.Logger, cfg RunnerConfig) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		machine: machine,
		input:   input,
		session: session,
		out:     out,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
	}
}

// Run processes every bucket the operator names. When the process had to be
// relaunched inside the persistent session, Run returns at once with
// Relaunched set and the caller must not continue.
//
// The first failure stops the run; the report still lists every bucket
// reached so far, the failing one last.
func (r *Runner) Run(ctx context.Context) (*models.RunReport, error) {
	report := &models.RunReport{
		SessionName: r.cfg.SessionName,
		Provider:    r.cfg.Provider,
		StartedAt:   utils.FormatTime(r.now()),
		Buckets:     []models.BucketResult{},
	}

	proceed, err := r.ensureDurableContext(ctx)
	if err != nil {
		return report, err
	}
	if !proceed {
		report.Relaunched = true
		fmt.Fprintf(r.out, "Run continues in session '%s'; its exit status is reported there. Attach with: s3cleanup attach %s\n",
			r.cfg.SessionName, r.cfg.SessionName)
		return report, nil
	}

	names, err := r.input.ReadLines("Enter bucket names, one per line (blank line to finish):")
	if err != nil {
		return report, errs.AtStep(err, "read-input", "")
	}
	names = r.dedupe(names)
	if len(names) == 0 {
		fmt.Fprintln(r.out, "No buckets given, nothing to do.")
	}

	for i, name := range names {
		r.log.Info().Str("bucket", name).Int("position", i+1).Int("total", len(names)).Msg("processing bucket")

		res, err := r.machine.Run(ctx, name)
		report.Buckets = append(report.Buckets, *res)
		if err != nil {
			report.FinishedAt = utils.FormatTime(r.now())
			return report, err
		}
	}

	report.FinishedAt = utils.FormatTime(r.now())
	r.summarize(report)
	fmt.Fprintln(r.out, utils.OK("All buckets processed."))
	return report, nil
}

// ensureDurableContext reports whether the run may continue in this process.
// Outside a persistent session it relaunches there and returns false.
func (r *Runner) ensureDurableContext(ctx context.Context) (bool, error) {
	if r.session == nil || r.session.Inside() {
		return true, nil
	}

	r.log.Info().Str("session", r.cfg.SessionName).Msg("relaunching inside persistent session")
	if err := r.session.Relaunch(ctx, r.cfg.Argv); err != nil {
		return false, errs.AtStep(err, "relaunch", "")
	}
	return false, nil
}

func (r *Runner) dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if seen[name] {
			r.log.Warn().Str("bucket", name).Msg("duplicate bucket name ignored")
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func (r *Runner) summarize(report *models.RunReport) {
	if len(report.Buckets) == 0 {
		return
	}
	fmt.Fprintln(r.out, "\nSummary:")
	for _, b := range report.Buckets {
		line := fmt.Sprintf("  %-30s %-8s folders=%d objects=%s versions=%s markers=%s",
			b.BucketName, b.State, len(b.PrefixesDeleted),
			humanize.Comma(int64(b.ObjectsDeleted)),
			humanize.Comma(int64(b.VersionsDeleted)),
			humanize.Comma(int64(b.MarkersDeleted)))
		if b.Reason != "" {
			line += " (" + b.Reason + ")"
		}
		fmt.Fprintln(r.out, line)
	}
}
