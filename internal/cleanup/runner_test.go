package cleanup

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3cleanup/internal/errs"
	"s3cleanup/internal/prompt"
	"s3cleanup/internal/storage"
)

type fakeSession struct {
	inside   bool
	err      error
	relaunch [][]string
}

func (f *fakeSession) Inside() bool { return f.inside }

func (f *fakeSession) Relaunch(_ context.Context, argv []string) error {
	f.relaunch = append(f.relaunch, argv)
	return f.err
}

type noInput struct{ t *testing.T }

func (n noInput) ReadLines(string) ([]string, error) {
	n.t.Fatal("input must not be read")
	return nil, nil
}

type brokenInput struct{ err error }

func (b brokenInput) ReadLines(string) ([]string, error) { return nil, b.err }

// newScriptedRunner drives a Runner from script the way piped stdin would.
func newScriptedRunner(store *fakeStore, script string, opts Options) (*Runner, *bytes.Buffer) {
	var out bytes.Buffer
	p := prompt.New(strings.NewReader(script), &out)
	m := NewMachine(store, p, &out, nil, nil, opts)
	return NewRunner(m, p, nil, &out, nil, RunnerConfig{SessionName: "s3cleanup", Provider: "s3"}), &out
}

func TestRunner_AlphaBetaScenario(t *testing.T) {
	store := newFakeStore()
	store.add("alpha", &fakeBucket{
		prefixes: []string{"logs/"},
		objects:  map[string][]string{"logs/": {"logs/1", "logs/2"}},
		root:     []string{"a.txt", "b.txt"},
	})
	store.add("beta", &fakeBucket{
		versions: []storage.ObjectVersion{{Key: "k", VersionID: "1"}, {Key: "k", VersionID: "2"}, {Key: "k", VersionID: "3"}},
		markers:  []storage.ObjectVersion{{Key: "k", VersionID: "4"}},
	})

	script := "alpha\nbeta\n\n" +
		"y\ny\ny\ny\n" + // alpha: entry, logs/, root objects, final
		"y\ny\ny\ny\n" // beta: entry, versions, delete markers, final
	r, out := newScriptedRunner(store, script, Options{})

	report, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, errs.ExitCode(err))

	text := out.String()
	assert.Equal(t, 1, strings.Count(text, "Delete folder 'logs/'?"))
	assert.Equal(t, 1, strings.Count(text, "Delete all root objects?"))
	assert.Equal(t, 1, strings.Count(text, "Found 3 versions."))
	assert.Equal(t, 1, strings.Count(text, "Delete all versions?"))
	assert.Equal(t, 1, strings.Count(text, "Found 1 delete markers."))
	assert.Equal(t, 1, strings.Count(text, "Delete all delete markers?"))
	assert.Contains(t, text, "All buckets processed.")
	assert.NotContains(t, text, "Please answer yes or no.")

	assert.Equal(t, []string{
		"delete-prefix alpha logs/",
		"delete-objects alpha 2",
		"delete-bucket alpha",
		"delete-versions beta 3",
		"delete-versions beta 1",
		"delete-bucket beta",
	}, store.deletes())
	assert.Empty(t, store.buckets)

	require.Len(t, report.Buckets, 2)
	assert.Equal(t, "alpha", report.Buckets[0].BucketName)
	assert.Equal(t, string(StateDone), report.Buckets[0].State)
	assert.Equal(t, 4, report.Buckets[0].ObjectsDeleted)
	assert.Equal(t, 3, report.Buckets[1].VersionsDeleted)
	assert.Equal(t, 1, report.Buckets[1].MarkersDeleted)
	assert.NotEmpty(t, report.StartedAt)
	assert.NotEmpty(t, report.FinishedAt)
}

func TestRunner_MissingBucketSkipContinues(t *testing.T) {
	store := newFakeStore()
	store.add("beta", &fakeBucket{})
	r, _ := newScriptedRunner(store, "alpha\nbeta\n\ny\ny\n", Options{MissingBucket: SkipMissing})

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Buckets, 2)
	assert.Equal(t, string(StateSkipped), report.Buckets[0].State)
	assert.Equal(t, "bucket not found", report.Buckets[0].Reason)
	assert.Equal(t, string(StateDone), report.Buckets[1].State)
	assert.Equal(t, []string{"exists alpha"}, store.calls[:1])
}

func TestRunner_MissingBucketFailHaltsRun(t *testing.T) {
	store := newFakeStore()
	store.add("beta", &fakeBucket{})
	r, out := newScriptedRunner(store, "alpha\nbeta\n\ny\ny\n", Options{MissingBucket: FailMissing})

	report, err := r.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 254, errs.ExitCode(err))
	assert.Equal(t, []string{"exists alpha"}, store.calls)
	require.Len(t, report.Buckets, 1)
	assert.Equal(t, string(StateFailed), report.Buckets[0].State)
	assert.NotContains(t, out.String(), "All buckets processed.")
}

func TestRunner_FailureHaltsLaterBuckets(t *testing.T) {
	store := newFakeStore()
	store.add("alpha", &fakeBucket{root: []string{"a.txt"}})
	store.add("beta", &fakeBucket{})
	store.fail["delete-objects"] = errs.New(errs.KindPermissionDenied, "access denied")
	r, _ := newScriptedRunner(store, "alpha\nbeta\n\ny\ny\ny\ny\n", Options{})

	report, err := r.Run(context.Background())
	require.Error(t, err)

	assert.Equal(t, 253, errs.ExitCode(err))
	for _, c := range store.calls {
		assert.NotContains(t, c, "beta")
	}
	require.Len(t, report.Buckets, 1)
	assert.NotEmpty(t, report.FinishedAt)
}

func TestRunner_NoBucketsIsNoWork(t *testing.T) {
	store := newFakeStore()
	r, out := newScriptedRunner(store, "\n", Options{})

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, report.Buckets)
	assert.Empty(t, store.calls)
	assert.Contains(t, out.String(), "nothing to do")
	assert.Contains(t, out.String(), "All buckets processed.")
}

func TestRunner_EveryBucketDeclinedExitsCleanly(t *testing.T) {
	store := newFakeStore()
	store.add("alpha", &fakeBucket{})
	store.add("beta", &fakeBucket{})
	r, _ := newScriptedRunner(store, "alpha\nbeta\n\nn\nno\n", Options{})

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Empty(t, store.deletes())
	for _, b := range report.Buckets {
		assert.Equal(t, string(StateSkipped), b.State)
	}
}

func TestRunner_DuplicatesProcessedOnce(t *testing.T) {
	store := newFakeStore()
	store.add("alpha", &fakeBucket{})
	r, _ := newScriptedRunner(store, "alpha\nalpha\n\ny\ny\n", Options{})

	report, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Buckets, 1)
	assert.Equal(t, []string{"exists alpha", "list-prefixes alpha", "list-root alpha",
		"list-versions alpha versions", "list-versions alpha delete markers", "delete-bucket alpha"}, store.calls)
}

func TestRunner_EnsureDurableContext(t *testing.T) {
	t.Run("outside relaunches and stops", func(t *testing.T) {
		sess := &fakeSession{}
		var out bytes.Buffer
		m := NewMachine(newFakeStore(), &scripted{}, &out, nil, nil, Options{})
		r := NewRunner(m, noInput{t}, sess, &out, nil,
			RunnerConfig{SessionName: "nightly", Argv: []string{"s3cleanup", "--preview", "5"}})

		report, err := r.Run(context.Background())
		require.NoError(t, err)

		assert.True(t, report.Relaunched)
		assert.Equal(t, [][]string{{"s3cleanup", "--preview", "5"}}, sess.relaunch)
		assert.Contains(t, out.String(), "Run continues in session 'nightly'; its exit status is reported there.")
		assert.Contains(t, out.String(), "s3cleanup attach nightly")
		assert.NotContains(t, out.String(), "All buckets processed.")
	})

	t.Run("relaunch failure is returned", func(t *testing.T) {
		sess := &fakeSession{err: errors.New("tmux exploded")}
		m := NewMachine(newFakeStore(), &scripted{}, &bytes.Buffer{}, nil, nil, Options{})
		r := NewRunner(m, noInput{t}, sess, &bytes.Buffer{}, nil, RunnerConfig{Argv: []string{"s3cleanup"}})

		_, err := r.Run(context.Background())
		require.Error(t, err)
		assert.ErrorContains(t, err, "tmux exploded")

		var e *errs.Error
		require.ErrorAs(t, err, &e)
		assert.Equal(t, "relaunch", e.Step)
		assert.Equal(t, 1, errs.ExitCode(err))
	})

	t.Run("inside proceeds in place", func(t *testing.T) {
		sess := &fakeSession{inside: true}
		var out bytes.Buffer
		p := prompt.New(strings.NewReader(""), &out)
		m := NewMachine(newFakeStore(), p, &out, nil, nil, Options{})
		r := NewRunner(m, p, sess, &out, nil, RunnerConfig{})

		report, err := r.Run(context.Background())
		require.NoError(t, err)

		assert.False(t, report.Relaunched)
		assert.Empty(t, sess.relaunch)
	})
}

func TestRunner_InputFailureNamesStep(t *testing.T) {
	m := NewMachine(newFakeStore(), &scripted{}, &bytes.Buffer{}, nil, nil, Options{})
	r := NewRunner(m, brokenInput{err: errors.New("read /dev/stdin: input/output error")}, nil, &bytes.Buffer{}, nil, RunnerConfig{})

	report, err := r.Run(context.Background())
	require.Error(t, err)

	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "read-input", e.Step)
	assert.Empty(t, e.Bucket)
	assert.Empty(t, report.Buckets)
}
