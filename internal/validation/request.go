package validation

import (
	"fmt"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// ValidateItem checks one copy item. Errors carry the item's source bucket
// and key.
func ValidateItem(item s3types.CopyItem) error {
	src := item.Source
	if err := ValidateBucketName(src.Bucket); err != nil {
		return err
	}
	if src.Key != "" {
		if err := ValidateObjectKey(src.Key); err != nil {
			return err
		}
	}
	if err := validateWriteSettings(item.Headers, item.ACL, item.Tags, item.StorageClass); err != nil {
		return errors.NewObjectError("validateItem", src.Bucket, src.Key, err)
	}

	target := item.Target
	if target == nil {
		return nil
	}
	if target.Bucket != "" {
		if err := ValidateBucketName(target.Bucket); err != nil {
			return err
		}
	}
	if target.Key == "" {
		return nil
	}
	if err := ValidateObjectKey(target.Key); err != nil {
		return err
	}
	if isPrefix(item) && !strings.HasSuffix(target.Key, "/") {
		return errors.NewObjectError("validateItem", src.Bucket, src.Key, errors.ErrInvalidArgument).
			WithMessage(fmt.Sprintf("target key %q of a prefix copy must end in \"/\"", target.Key))
	}
	return nil
}

// ValidateDefaults checks the request-wide defaults.
func ValidateDefaults(d s3types.Defaults) error {
	if d.TargetBucket != "" {
		if err := ValidateBucketName(d.TargetBucket); err != nil {
			return err
		}
	}
	if err := validateWriteSettings(d.Headers, d.ACL, d.Tags, d.StorageClass); err != nil {
		return err
	}
	switch d.TriggerType {
	case "", s3types.TriggerManual, s3types.TriggerEvent:
		return nil
	}
	return invalidArgument("validateDefaults", fmt.Sprintf("unknown trigger type %q", d.TriggerType))
}

func validateWriteSettings(headers, acl, tags map[string]string, class s3types.StorageClass) error {
	if err := ValidateHeaders(headers); err != nil {
		return err
	}
	if err := ValidateACL(acl); err != nil {
		return err
	}
	if err := ValidateTags(tags); err != nil {
		return err
	}
	return ValidateStorageClass(class)
}

// isPrefix reports whether item names a prefix to expand rather than a
// single object.
func isPrefix(item s3types.CopyItem) bool {
	return !item.IsLeaf && (item.Source.Key == "" || strings.HasSuffix(item.Source.Key, "/"))
}
