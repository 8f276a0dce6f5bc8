// Package errs provides the single typed failure value raised by every
// component of s3cleanup.
//
// Storage adapters map provider errors to a Kind, the cleanup state machine
// stamps the failing step and bucket, and only the top-level trap handler
// turns the value into a report and a process exit code.
package errs

import (
	"context"
	"errors"
	"fmt"
)

// Kind categorises a failure without exposing provider-specific codes.
type Kind int

const (
	KindUnknown          Kind = iota
	KindInvalidInput          // bad flags, config or operator input
	KindToolingMissing        // a required external utility is not installed
	KindNotFound              // no such bucket
	KindPermissionDenied      // credentials rejected or access denied
	KindConnectionFailed      // provider unreachable
	KindTimeout               // deadline exceeded
	KindInterrupted           // context cancelled
	KindRequestFailed         // provider rejected a list or delete call
	KindBucketNotEmpty        // bucket delete refused because content remains
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindToolingMissing:
		return "tooling_missing"
	case KindNotFound:
		return "not_found"
	case KindPermissionDenied:
		return "permission_denied"
	case KindConnectionFailed:
		return "connection_failed"
	case KindTimeout:
		return "timeout"
	case KindInterrupted:
		return "interrupted"
	case KindRequestFailed:
		return "request_failed"
	case KindBucketNotEmpty:
		return "bucket_not_empty"
	default:
		return "unknown"
	}
}

// ExitCode is the process exit status used for a failure of this kind when
// no explicit code was recorded.
func (k Kind) ExitCode() int {
	switch k {
	case KindInvalidInput:
		return 2
	case KindToolingMissing:
		return 127
	case KindInterrupted:
		return 130
	case KindTimeout:
		return 124
	case KindPermissionDenied:
		return 253
	case KindNotFound, KindRequestFailed, KindBucketNotEmpty:
		return 254
	case KindConnectionFailed:
		return 255
	default:
		return 1
	}
}

// Error is the failure type passed up to the trap handler.
type Error struct {
	Kind    Kind
	Step    string // logical step that failed, e.g. "prefix-phase"
	Bucket  string
	Message string
	Code    int   // explicit exit code, overrides Kind.ExitCode when non-zero
	Cause   error // original error, preserved for logging
}

func (e *Error) Error() string {
	var where string
	switch {
	case e.Step != "" && e.Bucket != "":
		where = fmt.Sprintf("%s %s: ", e.Step, e.Bucket)
	case e.Step != "":
		where = e.Step + ": "
	case e.Bucket != "":
		where = "bucket " + e.Bucket + ": "
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s%s: %v", e.Kind, where, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s%s", e.Kind, where, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the explicit code if one was recorded, otherwise the
// kind's default.
func (e *Error) ExitCode() int {
	if e.Code != 0 {
		return e.Code
	}
	return e.Kind.ExitCode()
}

// New creates an *Error with the given kind and message and no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message and cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// WithCode records an explicit exit code.
func (e *Error) WithCode(code int) *Error {
	e.Code = code
	return e
}

// WithBucket adds bucket context.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// AtStep stamps step and bucket on err. An *Error already carrying a step
// keeps it, so the innermost location wins. Other errors are wrapped as
// KindUnknown, or as timeout/interrupted for context errors.
func AtStep(err error, step, bucket string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		out := *e
		if out.Step == "" {
			out.Step = step
		}
		if out.Bucket == "" {
			out.Bucket = bucket
		}
		return &out
	}
	kind := KindUnknown
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindInterrupted
	}
	return &Error{Kind: kind, Step: step, Bucket: bucket, Message: "step failed", Cause: err}
}

// ExitCode returns the process exit status for err: 0 for nil, the recorded
// code for *Error, 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var e *Error
	if errors.As(err, &e) {
		return e.ExitCode()
	}
	return 1
}

// KindOf returns the Kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsNotFound reports whether err means the bucket does not exist.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// IsToolingMissing reports whether err is a missing external utility.
func IsToolingMissing(err error) bool {
	return KindOf(err) == KindToolingMissing
}

// IsInvalidInput reports whether err was caused by bad operator input.
func IsInvalidInput(err error) bool {
	return KindOf(err) == KindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == KindPermissionDenied
}
