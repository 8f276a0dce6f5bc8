package s3client

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/dustin/go-humanize"

	appConfig "s3cleanup/config"
	"s3cleanup/internal/errs"
	"s3cleanup/internal/models"
	"s3cleanup/internal/storage"
	"s3cleanup/pkg/utils"
)

// API is the subset of *s3.Client the adapter calls.
type API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
	GetBucketLocation(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
}

type Client struct {
	s3Client API
	config   *appConfig.Config
}

var _ storage.Client = (*Client)(nil)

func New(ctx context.Context, cfg *appConfig.Config) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.StaticCredentialsProvider{
			Value: aws.Credentials{
				AccessKeyID:     cfg.AccessKey,
				SecretAccessKey: cfg.SecretKey,
			},
		}))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.KindPermissionDenied, "failed to load AWS config", err)
	}

	var s3Client *s3.Client
	if cfg.ApiURL != "" {
		s3Client = s3.NewFromConfig(awsConfig, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.ApiURL)
			o.UsePathStyle = true
		})
	} else {
		s3Client = s3.NewFromConfig(awsConfig)
	}

	return NewWithAPI(s3Client, cfg), nil
}

// NewWithAPI builds a Client around an existing API implementation.
func NewWithAPI(api API, cfg *appConfig.Config) *Client {
	return &Client{s3Client: api, config: cfg}
}

func (c *Client) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := c.s3Client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return true, nil
	}
	mapped := mapError(err, "failed to check bucket")
	if mapped.Kind == errs.KindNotFound {
		return false, nil
	}
	return false, mapped.WithBucket(bucket)
}

func (c *Client) ListPrefixes(ctx context.Context, bucket string) ([]string, error) {
	var prefixes []string
	err := c.listDelimited(ctx, bucket, func(page *s3.ListObjectsV2Output) {
		for _, p := range page.CommonPrefixes {
			prefixes = append(prefixes, aws.ToString(p.Prefix))
		}
	})
	if err != nil {
		return nil, mapError(err, "failed to list prefixes").WithBucket(bucket)
	}
	return prefixes, nil
}

func (c *Client) ListRootObjects(ctx context.Context, bucket string) ([]string, error) {
	var keys []string
	err := c.listDelimited(ctx, bucket, func(page *s3.ListObjectsV2Output) {
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	})
	if err != nil {
		return nil, mapError(err, "failed to list root objects").WithBucket(bucket)
	}
	return keys, nil
}

func (c *Client) listDelimited(ctx context.Context, bucket string, fn func(*s3.ListObjectsV2Output)) error {
	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Delimiter: aws.String(storage.Delimiter),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		fn(page)
	}
	return nil
}

func (c *Client) ListVersions(ctx context.Context, bucket string, kind storage.VersionKind) ([]storage.ObjectVersion, error) {
	var records []storage.ObjectVersion

	paginator := s3.NewListObjectVersionsPaginator(c.s3Client, &s3.ListObjectVersionsInput{
		Bucket: aws.String(bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, fmt.Sprintf("failed to list %s", kind)).WithBucket(bucket)
		}

		if kind == storage.KindDeleteMarker {
			for _, m := range page.DeleteMarkers {
				records = append(records, storage.ObjectVersion{
					Key:       aws.ToString(m.Key),
					VersionID: aws.ToString(m.VersionId),
				})
			}
			continue
		}
		for _, v := range page.Versions {
			records = append(records, storage.ObjectVersion{
				Key:       aws.ToString(v.Key),
				VersionID: aws.ToString(v.VersionId),
			})
		}
	}

	return records, nil
}

func (c *Client) DeletePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	var keys []string

	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, mapError(err, fmt.Sprintf("failed to list objects under %q", prefix)).WithBucket(bucket)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return c.DeleteObjects(ctx, bucket, keys)
}

func (c *Client) DeleteObjects(ctx context.Context, bucket string, keys []string) (int, error) {
	ids := make([]types.ObjectIdentifier, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, types.ObjectIdentifier{Key: aws.String(key)})
	}
	return c.deleteIdentifiers(ctx, bucket, ids)
}

func (c *Client) DeleteVersions(ctx context.Context, bucket string, records []storage.ObjectVersion) (int, error) {
	ids := make([]types.ObjectIdentifier, 0, len(records))
	for _, r := range records {
		ids = append(ids, types.ObjectIdentifier{
			Key:       aws.String(r.Key),
			VersionId: aws.String(r.VersionID),
		})
	}
	return c.deleteIdentifiers(ctx, bucket, ids)
}

func (c *Client) deleteIdentifiers(ctx context.Context, bucket string, ids []types.ObjectIdentifier) (int, error) {
	deletedCount := 0
	for _, batch := range storage.Chunk(ids, storage.MaxBatchSize) {
		out, err := c.s3Client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{
				Objects: batch,
				Quiet:   aws.Bool(true),
			},
		})
		if err != nil {
			return deletedCount, mapError(err, "failed to delete objects batch").WithBucket(bucket)
		}
		if len(out.Errors) > 0 {
			first := out.Errors[0]
			return deletedCount, errs.New(errs.KindRequestFailed, fmt.Sprintf(
				"%d of %d deletions rejected, first %s: %s %s",
				len(out.Errors), len(batch), aws.ToString(first.Key), aws.ToString(first.Code), aws.ToString(first.Message),
			)).WithBucket(bucket)
		}
		deletedCount += len(batch)
	}
	return deletedCount, nil
}

func (c *Client) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := c.s3Client.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return mapError(err, "failed to delete bucket").WithBucket(bucket)
	}
	return nil
}

func (c *Client) Inspect(ctx context.Context, bucket string) (*models.BucketInfo, error) {
	locationResp, err := c.s3Client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return nil, mapError(err, "failed to get bucket location").WithBucket(bucket)
	}

	region := string(locationResp.LocationConstraint)
	if region == "" {
		region = c.config.Region
	}

	versioningResp, err := c.s3Client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return nil, mapError(err, "failed to get bucket versioning").WithBucket(bucket)
	}
	versioning := string(versioningResp.Status)
	if versioning == "" {
		versioning = "Disabled"
	}

	var objectCount int64
	var totalSize int64
	var lastModified time.Time

	paginator := s3.NewListObjectsV2Paginator(c.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, mapError(err, "failed to list objects").WithBucket(bucket)
		}

		objectCount += int64(len(page.Contents))
		for _, obj := range page.Contents {
			totalSize += aws.ToInt64(obj.Size)
			if obj.LastModified != nil && obj.LastModified.After(lastModified) {
				lastModified = *obj.LastModified
			}
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
