// Package storage defines the object-storage operations the cleanup workflow
// depends on. Provider packages (s3client, minioclient) implement them; the
// workflow never imports a provider SDK.
package storage

import (
	"context"

	"s3cleanup/internal/models"
)

// MaxBatchSize is the provider limit on identifiers per batch-delete request.
const MaxBatchSize = 1000

// Delimiter groups keys into top-level prefixes.
const Delimiter = "/"

// VersionKind selects which historical records a version listing returns.
type VersionKind int

const (
	KindVersion VersionKind = iota
	KindDeleteMarker
)

func (k VersionKind) String() string {
	if k == KindDeleteMarker {
		return "delete markers"
	}
	return "versions"
}

// ObjectVersion identifies one version or delete marker.
type ObjectVersion struct {
	Key       string
	VersionID string
}

// Store is the storage client adapter used by the cleanup state machine.
// Listings are complete: implementations follow pagination themselves.
type Store interface {
	// BucketExists reports whether bucket exists and is reachable.
	BucketExists(ctx context.Context, bucket string) (bool, error)

	// ListPrefixes returns the top-level prefixes of bucket in provider order.
	ListPrefixes(ctx context.Context, bucket string) ([]string, error)

	// ListRootObjects returns keys that contain no delimiter.
	ListRootObjects(ctx context.Context, bucket string) ([]string, error)

	// ListVersions returns every record of the given kind.
	ListVersions(ctx context.Context, bucket string, kind VersionKind) ([]ObjectVersion, error)

	// DeletePrefix removes every current object under prefix and returns
	// how many were removed.
	DeletePrefix(ctx context.Context, bucket, prefix string) (int, error)

	// DeleteObjects removes the given keys.
	DeleteObjects(ctx context.Context, bucket string, keys []string) (int, error)

	// DeleteVersions permanently removes the given versions or markers.
	DeleteVersions(ctx context.Context, bucket string, records []ObjectVersion) (int, error)

	// DeleteBucket removes the (empty) bucket itself.
	DeleteBucket(ctx context.Context, bucket string) error
}

// Inspector produces a read-only summary of a bucket.
type Inspector interface {
	Inspect(ctx context.Context, bucket string) (*models.BucketInfo, error)
}

// Client is what a provider package hands to the command layer.
type Client interface {
	Store
	Inspector
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = MaxBatchSize
	}
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}
