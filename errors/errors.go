// Package errors provides error types and handling for bulk copy operations.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a copy operation error with context about the operation that failed.
// It wraps the underlying AWS SDK error with additional context for better debugging.
type Error struct {
	// Op is the operation that failed (e.g., "copy", "list", "verify")
	Op string

	// Bucket is the S3 bucket name (if applicable)
	Bucket string

	// Key is the S3 object key (if applicable)
	Key string

	// Code classifies the failure. Empty means unclassified.
	Code ErrorCode

	// Err is the underlying error from the AWS SDK or other source
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Bucket != "" && e.Key != "" {
		return fmt.Sprintf("s3copy.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	if e.Bucket != "" {
		return fmt.Sprintf("s3copy.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	}
	if e.Key != "" {
		return fmt.Sprintf("s3copy.%s object %s: %v", e.Op, e.Key, e.Err)
	}
	return fmt.Sprintf("s3copy.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithBucket adds bucket context to an existing error.
func (e *Error) WithBucket(bucket string) *Error {
	e.Bucket = bucket
	return e
}

// WithKey adds object key context to an existing error.
func (e *Error) WithKey(key string) *Error {
	e.Key = key
	return e
}

// WithCode sets the classification code.
func (e *Error) WithCode(code ErrorCode) *Error {
	e.Code = code
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
// The code is derived from the wrapped error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:   op,
		Code: Classify(err),
		Err:  err,
	}
}

// NewObjectError creates a new Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return NewError(op, err).WithBucket(bucket).WithKey(key)
}

// Sentinel errors for copy failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrInvalidArgument indicates a request that cannot be turned into a copy,
	// such as a source key outside the configured relative prefix.
	ErrInvalidArgument = errors.New("s3copy: invalid argument")

	// ErrChecksumMismatch indicates that source and target checksums disagree
	// after a copy that was asked to delete its source.
	ErrChecksumMismatch = errors.New("s3copy: checksum mismatch")

	// ErrUnsupportedDirective indicates an unknown header, ACL or tag merge directive.
	ErrUnsupportedDirective = errors.New("s3copy: unsupported directive")

	// ErrThresholdExceeded indicates that the number of failed tasks passed the
	// configured limit and the run cancelled itself.
	ErrThresholdExceeded = errors.New("s3copy: fail limit exceeded")

	// ErrCanceled indicates that the run was cancelled before it finished.
	ErrCanceled = errors.New("s3copy: canceled")

	// ErrTaskFailed indicates that a task failed while the queue ran in fail-stop mode.
	ErrTaskFailed = errors.New("s3copy: task failed")

	// ErrAlreadyRunning indicates that Run was called on a queue that already ran.
	ErrAlreadyRunning = errors.New("s3copy: queue already started")

	// ErrObjectNotFound indicates that the requested object does not exist
	ErrObjectNotFound = errors.New("s3copy: object not found")

	// ErrInvalidBucketName indicates that the bucket name is invalid
	ErrInvalidBucketName = errors.New("s3copy: invalid bucket name")

	// ErrInvalidObjectKey indicates that the object key is invalid
	ErrInvalidObjectKey = errors.New("s3copy: invalid object key")
)

// IsInvalidArgument checks if an error indicates an argument error.
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

// IsChecksumMismatch checks if an error indicates a post-copy checksum disagreement.
func IsChecksumMismatch(err error) bool {
	return errors.Is(err, ErrChecksumMismatch)
}

// IsCanceled checks if an error indicates a cancelled run.
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Is reports whether any error in err's chain matches target.
// It re-exports the standard library function so callers importing this
// package under the name errors keep access to it.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}
