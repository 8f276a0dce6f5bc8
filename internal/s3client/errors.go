package s3client

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/smithy-go"
	smithyhttp "github.com/aws/smithy-go/transport/http"

	"s3cleanup/internal/errs"
)

// mapError translates an AWS SDK error into an *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.KindTimeout, msg, err)
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.KindInterrupted, msg, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchBucket", "NotFound":
			return errs.Wrap(errs.KindNotFound, msg, err)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken":
			return errs.Wrap(errs.KindPermissionDenied, msg, err)
		case "BucketNotEmpty":
			return errs.Wrap(errs.KindBucketNotEmpty, msg, err)
		}
	}

	// HeadBucket carries no error body, only a status code.
	var httpErr *smithyhttp.ResponseError
	if errors.As(err, &httpErr) {
		switch httpErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return errs.Wrap(errs.KindNotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.KindPermissionDenied, msg, err)
		}
		return errs.Wrap(errs.KindRequestFailed, msg, err)
	}

	if apiErr != nil {
		return errs.Wrap(errs.KindRequestFailed, msg, err)
	}
	return errs.Wrap(errs.KindConnectionFailed, msg, err)
}
