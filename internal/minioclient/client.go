// Package minioclient implements the storage adapter for S3-compatible
// servers through minio-go.
package minioclient

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	appConfig "s3cleanup/config"
	"s3cleanup/internal/errs"
	"s3cleanup/internal/models"
	"s3cleanup/internal/storage"
	"s3cleanup/pkg/utils"
)

// Client is a MinIO implementation of storage.Client.
type Client struct {
	client *miniogo.Client
	config *appConfig.Config
}

var _ storage.Client = (*Client)(nil)

// New creates a Client for cfg.ApiURL. The URL scheme decides TLS.
func New(cfg *appConfig.Config) (*Client, error) {
	endpoint, secure, err := parseEndpoint(cfg.ApiURL)
	if err != nil {
		return nil, err
	}

	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewEnvMinio()
	}

	client, err := miniogo.New(endpoint, &miniogo.Options{
		Creds:  creds,
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindConnectionFailed, "failed to create minio client", err)
	}

	return &Client{client: client, config: cfg}, nil
}

func parseEndpoint(raw string) (string, bool, error) {
	if raw == "" {
		return "", false, errs.New(errs.KindInvalidInput, "minio endpoint is empty")
	}
	if !strings.Contains(raw, "://") {
		return raw, true, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, errs.Wrap(errs.KindInvalidInput, "invalid minio endpoint", err)
	}
	if u.Host == "" {
		return "", false, errs.New(errs.KindInvalidInput, fmt.Sprintf("invalid minio endpoint %q", raw))
	}
	return u.Host, u.Scheme == "https", nil
}

func (c *Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	ok, err := c.client.BucketExists(ctx, bucket)
	if err != nil {
		mapped := mapError(err, "failed to check bucket")
		if mapped.Kind == errs.KindNotFound {
			return false, nil
		}
		return false, mapped.WithBucket(bucket)
	}
	return ok, nil
}

func (c *Client) ListPrefixes(ctx context.Context, bucket string) ([]string, error) {
	var prefixes []string
	for obj := range c.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list prefixes").WithBucket(bucket)
		}
		if strings.HasSuffix(obj.Key, storage.Delimiter) {
			prefixes = append(prefixes, obj.Key)
		}
	}
	return prefixes, nil
}

func (c *Client) ListRootObjects(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	for obj := range c.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list root objects").WithBucket(bucket)
		}
		if !strings.HasSuffix(obj.Key, storage.Delimiter) {
			keys = append(keys, obj.Key)
		}
	}
	return keys, nil
}

func (c *Client) ListVersions(ctx context.Context, bucket string, kind storage.VersionKind) ([]storage.ObjectVersion, error) {
	var records []storage.ObjectVersion
	opts := miniogo.ListObjectsOptions{Recursive: true, WithVersions: true}
	for obj := range c.client.ListObjects(ctx, bucket, opts) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, fmt.Sprintf("failed to list %s", kind)).WithBucket(bucket)
		}
		if obj.IsDeleteMarker != (kind == storage.KindDeleteMarker) {
			continue
		}
		records = append(records, storage.ObjectVersion{Key: obj.Key, VersionID: obj.VersionID})
	}
	return records, nil
}

func (c *Client) DeletePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	var keys []string
	opts := miniogo.ListObjectsOptions{Prefix: prefix, Recursive: true}
	for obj := range c.client.ListObjects(ctx, bucket, opts) {
		if obj.Err != nil {
			return 0, mapError(obj.Err, fmt.Sprintf("failed to list objects under %q", prefix)).WithBucket(bucket)
		}
		keys = append(keys, obj.Key)
	}
	return c.DeleteObjects(ctx, bucket, keys)
}

func (c *Client) DeleteObjects(ctx context.Context, bucket string, keys []string) (int, error) {
	records := make([]storage.ObjectVersion, 0, len(keys))
	for _, key := range keys {
		records = append(records, storage.ObjectVersion{Key: key})
	}
	return c.remove(ctx, bucket, records)
}

func (c *Client) DeleteVersions(ctx context.Context, bucket string, records []storage.ObjectVersion) (int, error) {
	return c.remove(ctx, bucket, records)
}

// remove feeds records to RemoveObjects, which batches them itself.
func (c *Client) remove(ctx context.Context, bucket string, records []storage.ObjectVersion) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	objectsCh := make(chan miniogo.ObjectInfo)
	go func() {
		defer close(objectsCh)
		for _, r := range records {
			select {
			case objectsCh <- miniogo.ObjectInfo{Key: r.Key, VersionID: r.VersionID}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var failed []miniogo.RemoveObjectError
	for rErr := range c.client.RemoveObjects(ctx, bucket, objectsCh, miniogo.RemoveObjectsOptions{}) {
		failed = append(failed, rErr)
	}
	if err := ctx.Err(); err != nil {
		return 0, mapError(err, "delete interrupted").WithBucket(bucket)
	}
	if len(failed) > 0 {
		first := failed[0]
		return len(records) - len(failed), mapError(first.Err, fmt.Sprintf(
			"%d of %d deletions rejected, first %s", len(failed), len(records), first.ObjectName,
		)).WithBucket(bucket)
	}
	return len(records), nil
}

func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	if err := c.client.RemoveBucket(ctx, bucket); err != nil {
		return mapError(err, "failed to delete bucket").WithBucket(bucket)
	}
	return nil
}

func (c *Client) Inspect(ctx context.Context, bucket string) (*models.BucketInfo, error) {
	region, err := c.client.GetBucketLocation(ctx, bucket)
	if err != nil {
		return nil, mapError(err, "failed to get bucket location").WithBucket(bucket)
	}
	if region == "" {
		region = c.config.Region
	}

	versioning := "Disabled"
	vc, err := c.client.GetBucketVersioning(ctx, bucket)
	if err != nil {
		return nil, mapError(err, "failed to get bucket versioning").WithBucket(bucket)
	}
	if vc.Status != "" {
		versioning = vc.Status
	}

	var objectCount int64
	var totalSize int64
	var lastModified time.Time
	for obj := range c.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects").WithBucket(bucket)
		}
		objectCount++
		totalSize += obj.Size
		if obj.LastModified.After(lastModified) {
			lastModified = obj.LastModified
		}
	}

	prefixes, err := c.ListPrefixes(ctx, bucket)
	if err != nil {
		return nil, err
	}

	return &models.BucketInfo{
		BucketName:       bucket,
		Region:           region,
		Versioning:       versioning,
		ObjectCount:      objectCount,
		ObjectCountHuman: humanize.Comma(objectCount),
		PrefixCount:      len(prefixes),
		TotalSizeBytes:   totalSize,
		TotalSizeHuman:   humanize.IBytes(uint64(totalSize)),
		LastModified:     lastModified,
		APIEndpoint:      c.config.ApiURL,
		InspectedAt:      utils.FormatTime(time.Now()),
	}, nil
}
