// Package cleanup walks buckets through confirmation-gated deletion.
//
// Each bucket moves through
//
//	VERIFYING → CONFIRM_ENTRY → PREFIX_PHASE → ROOT_PHASE → VERSION_PHASE → FINAL_CONFIRM → DELETING → DONE
//
// with SKIPPED reachable on decline (or on a missing bucket under the skip
// policy) and FAILED on any storage error. Every destructive call is issued
// only right after an affirmative answer for that exact action.
package cleanup

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"s3cleanup/internal/errs"
	"s3cleanup/internal/logger"
	"s3cleanup/internal/models"
	"s3cleanup/internal/storage"
	"s3cleanup/pkg/utils"
)

// State is a step of the per-bucket workflow.
type State string

const (
	StateVerifying    State = "VERIFYING"
	StateConfirmEntry State = "CONFIRM_ENTRY"
	StatePrefixPhase  State = "PREFIX_PHASE"
	StateRootPhase    State = "ROOT_PHASE"
	StateVersionPhase State = "VERSION_PHASE"
	StateFinalConfirm State = "FINAL_CONFIRM"
	StateDeleting     State = "DELETING"
	StateDone         State = "DONE"
	StateSkipped      State = "SKIPPED"
	StateFailed       State = "FAILED"
)

// Terminal reports whether no further transition follows s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateSkipped || s == StateFailed
}

// Step is the identifier reported when s fails.
func (s State) Step() string {
	return strings.ReplaceAll(strings.ToLower(string(s)), "_", "-")
}

// MissingBucketPolicy decides what a failed existence check means.
type MissingBucketPolicy int

const (
	// SkipMissing reports the bucket and moves on.
	SkipMissing MissingBucketPolicy = iota
	// FailMissing escalates as a fatal not-found error.
	FailMissing
)

// Confirmer asks the operator a yes/no question.
type Confirmer interface {
	Confirm(message string) bool
}

// Options tunes a Machine.
type Options struct {
	PreviewCount  int
	MissingBucket MissingBucketPolicy
}

// Machine runs the per-bucket workflow. It is not safe for concurrent use;
// buckets are processed one at a time.
type Machine struct {
	store    storage.Store
	confirm  Confirmer
	out      io.Writer
	log      *logger.Logger
	progress utils.Progress
	opts     Options
}

// NewMachine wires a Machine. A nil log or progress disables them.
func NewMachine(store storage.Store, confirm Confirmer, out io.Writer, log *logger.Logger, progress utils.Progress, opts Options) *Machine {
	if log == nil {
		log = logger.Nop()
	}
	if progress == nil {
		progress = utils.NopProgress{}
	}
	if opts.PreviewCount <= 0 {
		opts.PreviewCount = 10
	}
	return &Machine{store: store, confirm: confirm, out: out, log: log, progress: progress, opts: opts}
}

// Run drives bucket to a terminal state. The returned result is never nil;
// on error its State is FAILED and the error carries the failing step.
func (m *Machine) Run(ctx context.Context, bucket string) (*models.BucketResult, error) {
	res := &models.BucketResult{BucketName: bucket}
	log := m.log.With().Str("bucket", bucket).Logger()

	state := StateVerifying
	for !state.Terminal() {
		next, err := m.step(ctx, state, bucket, res)
		if err != nil {
			res.State = string(StateFailed)
			return res, errs.AtStep(err, state.Step(), bucket)
		}
		log.Debug().Str("from", string(state)).Str("to", string(next)).Msg("state change")
		state = next
	}

	res.State = string(state)
	return res, nil
}

func (m *Machine) step(ctx context.Context, state State, bucket string, res *models.BucketResult) (State, error) {
	switch state {
	case StateVerifying:
		return m.verify(ctx, bucket, res)
	case StateConfirmEntry:
		return m.confirmEntry(bucket, res)
	case StatePrefixPhase:
		return m.prefixPhase(ctx, bucket, res)
	case StateRootPhase:
		return m.rootPhase(ctx, bucket, res)
	case StateVersionPhase:
		return m.versionPhase(ctx, bucket, res)
	case StateFinalConfirm:
		return m.finalConfirm(bucket, res)
	case StateDeleting:
		return m.deleteBucket(ctx, bucket, res)
	default:
		return StateFailed, errs.New(errs.KindUnknown, fmt.Sprintf("no transition from state %s", state))
	}
}

func (m *Machine) verify(ctx context.Context, bucket string, res *models.BucketResult) (State, error) {
	stop := m.progress.Start(fmt.Sprintf("Checking bucket %s ...", bucket))
	exists, err := m.store.BucketExists(ctx, bucket)
	stop()
	if err != nil {
		return StateFailed, err
	}
	if exists {
		return StateConfirmEntry, nil
	}

	if m.opts.MissingBucket == FailMissing {
		return StateFailed, errs.New(errs.KindNotFound, "bucket does not exist")
	}
	fmt.Fprintf(m.out, "%s bucket '%s' does not exist, skipping.\n", utils.Warn("!"), bucket)
	res.Reason = "bucket not found"
	return StateSkipped, nil
}

func (m *Machine) confirmEntry(bucket string, res *models.BucketResult) (State, error) {
	fmt.Fprintf(m.out, "\n=== Bucket: %s ===\n", bucket)
	if !m.confirm.Confirm(fmt.Sprintf("Proceed deleting bucket '%s'?", bucket)) {
		fmt.Fprintf(m.out, "Skipping bucket '%s'.\n", bucket)
		res.Reason = "declined at entry"
		return StateSkipped, nil
	}
	return StatePrefixPhase, nil
}

func (m *Machine) prefixPhase(ctx context.Context, bucket string, res *models.BucketResult) (State, error) {
	stop := m.progress.Start("Listing folders ...")
	prefixes, err := m.store.ListPrefixes(ctx, bucket)
	stop()
	if err != nil {
		return StateFailed, err
	}
	if len(prefixes) == 0 {
		return StateRootPhase, nil
	}

	fmt.Fprintf(m.out, "Found %s folder(s).\n", humanize.Comma(int64(len(prefixes))))
	for _, prefix := range prefixes {
		if !m.confirm.Confirm(fmt.Sprintf("Delete folder '%s'?", prefix)) {
			fmt.Fprintf(m.out, "Keeping folder '%s'.\n", prefix)
			continue
		}

		stop := m.progress.Start(fmt.Sprintf("Deleting %s ...", prefix))
		n, err := m.store.DeletePrefix(ctx, bucket, prefix)
		stop()
		if err != nil {
			return StateFailed, err
		}

		res.PrefixesDeleted = append(res.PrefixesDeleted, prefix)
		res.ObjectsDeleted += n
		fmt.Fprintf(m.out, "Deleted %s object(s) under '%s'.\n", humanize.Comma(int64(n)), prefix)
		m.log.Info().Str("bucket", bucket).Str("prefix", prefix).Int("objects", n).Msg("folder deleted")
	}
	return StateRootPhase, nil
}

func (m *Machine) rootPhase(ctx context.Context, bucket string, res *models.BucketResult) (State, error) {
	stop := m.progress.Start("Listing root objects ...")
	keys, err := m.store.ListRootObjects(ctx, bucket)
	stop()
	if err != nil {
		return StateFailed, err
	}
	if len(keys) == 0 {
		return StateVersionPhase, nil
	}

	fmt.Fprintf(m.out, "Found %s root object(s):\n", humanize.Comma(int64(len(keys))))
	preview := keys
	if len(preview) > m.opts.PreviewCount {
		preview = preview[:m.opts.PreviewCount]
	}
	for _, key := range preview {
		fmt.Fprintf(m.out, "  %s\n", key)
	}
	if rest := len(keys) - len(preview); rest > 0 {
		fmt.Fprintf(m.out, "  ... and %s more\n", humanize.Comma(int64(rest)))
	}

	if !m.confirm.Confirm("Delete all root objects?") {
		fmt.Fprintln(m.out, "Keeping root objects.")
		return StateVersionPhase, nil
	}

	stop = m.progress.Start("Deleting root objects ...")
	n, err := m.store.DeleteObjects(ctx, bucket, keys)
	stop()
	if err != nil {
		return StateFailed, err
	}

	res.ObjectsDeleted += n
	fmt.Fprintf(m.out, "Deleted %s root object(s).\n", humanize.Comma(int64(n)))
	m.log.Info().Str("bucket", bucket).Int("objects", n).Msg("root objects deleted")
	return StateVersionPhase, nil
}

func (m *Machine) versionPhase(ctx context.Context, bucket string, res *models.BucketResult) (State, error) {
	for _, kind := range []storage.VersionKind{storage.KindVersion, storage.KindDeleteMarker} {
		stop := m.progress.Start(fmt.Sprintf("Listing %s ...", kind))
		records, err := m.store.ListVersions(ctx, bucket, kind)
		stop()
		if err != nil {
			return StateFailed, err
		}
		if len(records) == 0 {
			continue
		}

		fmt.Fprintf(m.out, "Found %s %s.\n", humanize.Comma(int64(len(records))), kind)
		if !m.confirm.Confirm(fmt.Sprintf("Delete all %s?", kind)) {
			fmt.Fprintf(m.out, "Keeping %s.\n", kind)
			continue
		}

		stop = m.progress.Start(fmt.Sprintf("Deleting %s ...", kind))
		n, err := m.store.DeleteVersions(ctx, bucket, records)
		stop()
		if err != nil {
			return StateFailed, err
		}

		if kind == storage.KindDeleteMarker {
			res.MarkersDeleted += n
		} else {
			res.VersionsDeleted += n
		}
		fmt.Fprintf(m.out, "Deleted %s %s.\n", humanize.Comma(int64(n)), kind)
		m.log.Info().Str("bucket", bucket).Str("kind", kind.String()).Int("records", n).Msg("versions deleted")
	}
	return StateFinalConfirm, nil
}

func (m *Machine) finalConfirm(bucket string, res *models.BucketResult) (State, error) {
	msg := utils.Danger(fmt.Sprintf("FINAL: permanently delete bucket '%s'? This cannot be undone.", bucket))
	if !m.confirm.Confirm(msg) {
		fmt.Fprintf(m.out, "Bucket '%s' kept.\n", bucket)
		res.Reason = "declined at final confirmation"
		return StateSkipped, nil
	}
	return StateDeleting, nil
}

func (m *Machine) deleteBucket(ctx context.Context, bucket string, res *models.BucketResult) (State, error) {
	stop := m.progress.Start(fmt.Sprintf("Deleting bucket %s ...", bucket))
	err := m.store.DeleteBucket(ctx, bucket)
	stop()
	if err != nil {
		return StateFailed, err
	}

	res.BucketDeleted = true
	fmt.Fprintf(m.out, "%s bucket '%s' deleted.\n", utils.OK("✓"), bucket)
	m.log.Info().Str("bucket", bucket).Msg("bucket deleted")
	return StateDone, nil
}
