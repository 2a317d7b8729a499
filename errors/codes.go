package errors

import (
	"context"
	"errors"

	"github.com/aws/smithy-go"
)

// ErrorCode represents a specific failure class of a copy task.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates a requested object or bucket does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// Permission errors.

	// CodeForbidden indicates the credentials lack permission for the operation.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeUnsupported indicates a merge directive the copier does not know.
	CodeUnsupported ErrorCode = "UNSUPPORTED_DIRECTIVE"

	// Integrity errors.

	// CodeChecksumMismatch indicates a copy whose target content differs from its source.
	CodeChecksumMismatch ErrorCode = "CHECKSUM_MISMATCH"

	// Infrastructure errors.

	// CodeNetwork indicates a storage call failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates the storage service throttled the request.
	CodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Queue errors.

	// CodeThreshold indicates the run stopped after too many failures.
	CodeThreshold ErrorCode = "FAIL_LIMIT_EXCEEDED"

	// CodeCanceled indicates the run was cancelled.
	CodeCanceled ErrorCode = "CANCELED"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// Classify maps an error to its ErrorCode. Errors that already carry a code
// keep it; AWS API errors are mapped by their service error code.
func Classify(err error) ErrorCode {
	if err == nil {
		return ""
	}

	var coded *Error
	if errors.As(err, &coded) && coded.Code != "" {
		return coded.Code
	}

	switch {
	case errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrInvalidBucketName),
		errors.Is(err, ErrInvalidObjectKey):
		return CodeInvalidInput
	case errors.Is(err, ErrUnsupportedDirective):
		return CodeUnsupported
	case errors.Is(err, ErrChecksumMismatch):
		return CodeChecksumMismatch
	case errors.Is(err, ErrThresholdExceeded):
		return CodeThreshold
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, ErrObjectNotFound):
		return CodeNotFound
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return CodeNotFound
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return CodeForbidden
		case "SlowDown", "Throttling", "TooManyRequests", "RequestLimitExceeded":
			return CodeRateLimit
		case "RequestTimeout":
			return CodeTimeout
		}
		return CodeNetwork
	}

	return CodeUnknown
}
