package validation

import (
	"fmt"
	"mime"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"golang.org/x/net/http/httpguts"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/operations/copy"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

const (
	// MaxMetadataSize bounds the user metadata of one object: the names
	// after x-amz-meta- plus their values, in bytes.
	MaxMetadataSize = 2048

	// MaxTags is the most tags one object can carry.
	MaxTags = 10

	maxTagKeyLength   = 128
	maxTagValueLength = 256
)

var granteePattern = regexp.MustCompile(`^(id|uri|emailAddress)="[^"]+"$`)

func invalidArgument(op, msg string) error {
	return errors.NewError(op, errors.ErrInvalidArgument).WithMessage(msg)
}

// ValidateHeaders checks caller-supplied copy headers. Every name and value
// must be a legal HTTP field, and the headers the copier turns into request
// fields must parse. Empty values are ignored, as the copier ignores them.
func ValidateHeaders(headers map[string]string) error {
	metaSize := 0
	for name, value := range headers {
		lower := strings.ToLower(strings.TrimSpace(name))
		if !httpguts.ValidHeaderFieldName(lower) {
			return invalidArgument("validateHeaders", fmt.Sprintf("header name %q is not a valid HTTP field name", name))
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return invalidArgument("validateHeaders", fmt.Sprintf("header %s has a value with control characters", lower))
		}
		if meta, ok := strings.CutPrefix(lower, copy.HeaderMetaPrefix); ok {
			if meta == "" {
				return invalidArgument("validateHeaders", "metadata header needs a name after "+copy.HeaderMetaPrefix)
			}
			metaSize += len(meta) + len(value)
			continue
		}
		if value == "" {
			continue
		}
		if err := validateHeaderValue(lower, value); err != nil {
			return err
		}
	}
	if metaSize > MaxMetadataSize {
		return invalidArgument("validateHeaders",
			fmt.Sprintf("user metadata is %d bytes, limit is %d", metaSize, MaxMetadataSize))
	}
	return nil
}

func validateHeaderValue(name, value string) error {
	switch name {
	case copy.HeaderContentType:
		if _, _, err := mime.ParseMediaType(value); err != nil {
			return invalidArgument("validateHeaders", fmt.Sprintf("content-type %q: %v", value, err))
		}
	case copy.HeaderExpires:
		if _, err := http.ParseTime(value); err != nil {
			return invalidArgument("validateHeaders", fmt.Sprintf("expires %q is not an HTTP date", value))
		}
	case copy.HeaderStorageClass:
		return ValidateStorageClass(s3types.StorageClass(value))
	case copy.HeaderSSE:
		if !slices.Contains(awstypes.ServerSideEncryption("").Values(), awstypes.ServerSideEncryption(value)) {
			return invalidArgument("validateHeaders", fmt.Sprintf("unknown server-side encryption %q", value))
		}
	case copy.HeaderBucketKeyEnabled:
		if _, err := strconv.ParseBool(value); err != nil {
			return invalidArgument("validateHeaders", fmt.Sprintf("%s must be true or false, got %q", name, value))
		}
	}
	return nil
}

// ValidateStorageClass checks that class is a storage class S3 knows. An
// empty class keeps the source's.
func ValidateStorageClass(class s3types.StorageClass) error {
	if class == "" || slices.Contains(awstypes.StorageClass("").Values(), awstypes.StorageClass(class)) {
		return nil
	}
	return invalidArgument("validateStorageClass", fmt.Sprintf("unknown storage class %q", class))
}

// ValidateACL checks a caller-supplied ACL map: a canned ACL S3 knows, or
// grant headers whose grantees are id, uri or emailAddress entries. S3
// rejects a canned ACL combined with explicit grants, and so does this.
func ValidateACL(acl map[string]string) error {
	var canned, grants bool
	for name, value := range acl {
		lower := strings.ToLower(strings.TrimSpace(name))
		switch lower {
		case copy.ACLCanned:
			if value == "" {
				continue
			}
			canned = true
			if !slices.Contains(awstypes.ObjectCannedACL("").Values(), awstypes.ObjectCannedACL(value)) {
				return invalidArgument("validateACL", fmt.Sprintf("unknown canned ACL %q", value))
			}
		case copy.ACLGrantRead, copy.ACLGrantReadACP, copy.ACLGrantWriteACP, copy.ACLGrantFullCtrl:
			if value == "" {
				continue
			}
			grants = true
			for _, grantee := range strings.Split(value, ",") {
				if !granteePattern.MatchString(strings.TrimSpace(grantee)) {
					return invalidArgument("validateACL", fmt.Sprintf("%s: malformed grantee %q", lower, grantee))
				}
			}
		default:
			return invalidArgument("validateACL", fmt.Sprintf("%q is not an ACL header", name))
		}
	}
	if canned && grants {
		return invalidArgument("validateACL", "a canned ACL cannot be combined with explicit grants")
	}
	return nil
}

// ValidateTags checks a caller-supplied tag set against the S3 tagging
// limits. Keys under the aws: prefix are reserved.
func ValidateTags(tags map[string]string) error {
	if len(tags) > MaxTags {
		return invalidArgument("validateTags", fmt.Sprintf("%d tags given, limit is %d", len(tags), MaxTags))
	}
	for k, v := range tags {
		switch {
		case k == "":
			return invalidArgument("validateTags", "tag key cannot be empty")
		case utf8.RuneCountInString(k) > maxTagKeyLength:
			return invalidArgument("validateTags", fmt.Sprintf("tag key %q exceeds %d characters", k, maxTagKeyLength))
		case utf8.RuneCountInString(v) > maxTagValueLength:
			return invalidArgument("validateTags", fmt.Sprintf("tag %q value exceeds %d characters", k, maxTagValueLength))
		case strings.HasPrefix(strings.ToLower(k), "aws:"):
			return invalidArgument("validateTags", fmt.Sprintf("tag key %q uses the reserved aws: prefix", k))
		}
	}
	return nil
}
