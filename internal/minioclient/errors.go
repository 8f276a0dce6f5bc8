package minioclient

import (
	"context"
	"errors"
	"net/http"

	miniogo "github.com/minio/minio-go/v7"

	"s3cleanup/internal/errs"
)

// mapError translates a MinIO SDK error into an *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.KindTimeout, msg, err)
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindInterrupted, msg, err)
	}

	resp := miniogo.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchBucket":
		return errs.Wrap(errs.KindNotFound, msg, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return errs.Wrap(errs.KindPermissionDenied, msg, err)
	case "BucketNotEmpty":
		return errs.Wrap(errs.KindBucketNotEmpty, msg, err)
	}

	switch resp.StatusCode {
	case 0:
		return errs.Wrap(errs.KindConnectionFailed, msg, err)
	case http.StatusNotFound:
		return errs.Wrap(errs.KindNotFound, msg, err)
	case http.StatusForbidden, http.StatusUnauthorized:
		return errs.Wrap(errs.KindPermissionDenied, msg, err)
	}
	return errs.Wrap(errs.KindRequestFailed, msg, err)
}
