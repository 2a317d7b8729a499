package validation

import (
	"fmt"
	"net"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
)

const (
	minBucketLength = 3
	maxBucketLength = 63

	// MaxKeyLength is the longest object key S3 accepts, in bytes.
	MaxKeyLength = 1024
)

var bucketPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]*[a-z0-9]$`)

// ValidateBucketName checks a bucket name against the S3 naming rules.
// Returns ErrInvalidBucketName if the name can never address a bucket.
func ValidateBucketName(bucket string) error {
	invalid := func(msg string) error {
		return errors.NewError("validateBucketName", errors.ErrInvalidBucketName).
			WithBucket(bucket).
			WithMessage(msg)
	}

	switch {
	case bucket == "":
		return invalid("bucket name cannot be empty")
	case len(bucket) < minBucketLength || len(bucket) > maxBucketLength:
		return invalid(fmt.Sprintf("bucket name must be between %d and %d characters long", minBucketLength, maxBucketLength))
	case !bucketPattern.MatchString(bucket):
		return invalid("bucket name can only contain lowercase letters, numbers, dots, and hyphens, " +
			"and must begin and end with a letter or number")
	case strings.Contains(bucket, ".."):
		return invalid("bucket name cannot contain two adjacent periods")
	case net.ParseIP(bucket) != nil:
		return invalid("bucket name cannot be formatted as an IP address")
	}
	return nil
}

// ValidateObjectKey checks that key is a storable S3 key: non-empty, at most
// MaxKeyLength bytes and valid UTF-8.
func ValidateObjectKey(key string) error {
	invalid := func(msg string) error {
		return errors.NewError("validateObjectKey", errors.ErrInvalidObjectKey).
			WithKey(key).
			WithMessage(msg)
	}

	switch {
	case key == "":
		return invalid("object key cannot be empty")
	case len(key) > MaxKeyLength:
		return invalid(fmt.Sprintf("object key is %d bytes, limit is %d", len(key), MaxKeyLength))
	case !utf8.ValidString(key):
		return invalid("object key must be valid UTF-8")
	}
	return nil
}
