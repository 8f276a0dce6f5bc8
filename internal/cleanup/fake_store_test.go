package cleanup

import (
	"context"
	"fmt"
	"strings"

	"s3cleanup/internal/errs"
	"s3cleanup/internal/storage"
)

type fakeBucket struct {
	prefixes []string
	objects  map[string][]string // prefix -> keys
	root     []string
	versions []storage.ObjectVersion
	markers  []storage.ObjectVersion
}

// fakeStore is an in-memory Store that records every call as "op bucket [arg]".
type fakeStore struct {
	buckets map[string]*fakeBucket
	calls   []string
	fail    map[string]error // keyed by op
}

func newFakeStore() *fakeStore {
	return &fakeStore{buckets: map[string]*fakeBucket{}, fail: map[string]error{}}
}

func (f *fakeStore) add(name string, b *fakeBucket) {
	if b.objects == nil {
		b.objects = map[string][]string{}
	}
	f.buckets[name] = b
}

func (f *fakeStore) record(op, bucket string, arg ...string) error {
	f.calls = append(f.calls, strings.TrimSpace(op+" "+bucket+" "+strings.Join(arg, " ")))
	return f.fail[op]
}

// deletes returns the recorded destructive calls.
func (f *fakeStore) deletes() []string {
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, "delete") {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeStore) bucket(name string) (*fakeBucket, error) {
	b, ok := f.buckets[name]
	if !ok {
		return nil, errs.New(errs.KindNotFound, "no such bucket")
	}
	return b, nil
}

func (f *fakeStore) BucketExists(_ context.Context, bucket string) (bool, error) {
	if err := f.record("exists", bucket); err != nil {
		return false, err
	}
	_, ok := f.buckets[bucket]
	return ok, nil
}

func (f *fakeStore) ListPrefixes(_ context.Context, bucket string) ([]string, error) {
	if err := f.record("list-prefixes", bucket); err != nil {
		return nil, err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), b.prefixes...), nil
}

func (f *fakeStore) ListRootObjects(_ context.Context, bucket string) ([]string, error) {
	if err := f.record("list-root", bucket); err != nil {
		return nil, err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), b.root...), nil
}

func (f *fakeStore) ListVersions(_ context.Context, bucket string, kind storage.VersionKind) ([]storage.ObjectVersion, error) {
	if err := f.record("list-versions", bucket, kind.String()); err != nil {
		return nil, err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return nil, err
	}
	if kind == storage.KindDeleteMarker {
		return append([]storage.ObjectVersion(nil), b.markers...), nil
	}
	return append([]storage.ObjectVersion(nil), b.versions...), nil
}

func (f *fakeStore) DeletePrefix(_ context.Context, bucket, prefix string) (int, error) {
	if err := f.record("delete-prefix", bucket, prefix); err != nil {
		return 0, err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return 0, err
	}
	n := len(b.objects[prefix])
	delete(b.objects, prefix)
	kept := b.prefixes[:0]
	for _, p := range b.prefixes {
		if p != prefix {
			kept = append(kept, p)
		}
	}
	b.prefixes = kept
	return n, nil
}

func (f *fakeStore) DeleteObjects(_ context.Context, bucket string, keys []string) (int, error) {
	if err := f.record("delete-objects", bucket, fmt.Sprint(len(keys))); err != nil {
		return 0, err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return 0, err
	}
	b.root = nil
	return len(keys), nil
}

func (f *fakeStore) DeleteVersions(_ context.Context, bucket string, records []storage.ObjectVersion) (int, error) {
	if err := f.record("delete-versions", bucket, fmt.Sprint(len(records))); err != nil {
		return 0, err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return 0, err
	}
	if len(records) > 0 && len(b.markers) > 0 && records[0] == b.markers[0] {
		b.markers = nil
	} else {
		b.versions = nil
	}
	return len(records), nil
}

func (f *fakeStore) DeleteBucket(_ context.Context, bucket string) error {
	if err := f.record("delete-bucket", bucket); err != nil {
		return err
	}
	b, err := f.bucket(bucket)
	if err != nil {
		return err
	}
	if len(b.prefixes) > 0 || len(b.root) > 0 || len(b.versions) > 0 || len(b.markers) > 0 {
		return errs.New(errs.KindBucketNotEmpty, "bucket not empty")
	}
	delete(f.buckets, bucket)
	return nil
}

// scripted answers confirmations from a fixed list and records the questions.
// Running out of answers declines.
type scripted struct {
	answers []bool
	asked   []string
}

func (s *scripted) Confirm(message string) bool {
	s.asked = append(s.asked, message)
	if len(s.answers) == 0 {
		return false
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a
}

func yes(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}
