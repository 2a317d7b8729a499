package copy

import (
	"path"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// DefaultKeyTemplate keeps the source key.
const DefaultKeyTemplate = "${Key}"

// Template placeholders.
const (
	PlaceholderSourceBucket      = "${SourceBucket}"
	PlaceholderSourceRegion      = "${SourceRegion}"
	PlaceholderKey               = "${Key}"
	PlaceholderRelativeKey       = "${RelativeKey}"
	PlaceholderInputPath         = "${InputPath}"
	PlaceholderRelativeInputPath = "${RelativeInputPath}"
	PlaceholderFullFileName      = "${FullFileName}"
	PlaceholderFileName          = "${FileName}"
	PlaceholderFileExtension     = "${FileExtension}"
)

// TargetKey resolves the key an object is copied to.
//
// An explicit key wins. Otherwise source.Key must start with relativePrefix
// and template (DefaultKeyTemplate when empty) is filled in. Directory
// placeholders keep their trailing "/" and ${FileExtension} keeps its dot,
// so "${InputPath}${FileName}${FileExtension}" rebuilds the key.
func TargetKey(source s3types.Location, explicit, template, relativePrefix string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	relativeKey, ok := strings.CutPrefix(source.Key, relativePrefix)
	if !ok {
		return "", errors.NewObjectError("targetKey", source.Bucket, source.Key, errors.ErrInvalidArgument).
			WithMessage("key is outside relative prefix " + relativePrefix)
	}
	if template == "" {
		template = DefaultKeyTemplate
	}

	full := path.Base("/" + source.Key)
	if strings.HasSuffix(source.Key, "/") || source.Key == "" {
		full = ""
	}
	ext := path.Ext(full)

	r := strings.NewReplacer(
		PlaceholderSourceBucket, source.Bucket,
		PlaceholderSourceRegion, source.Region,
		PlaceholderKey, source.Key,
		PlaceholderRelativeKey, relativeKey,
		PlaceholderInputPath, dir(source.Key),
		PlaceholderRelativeInputPath, dir(relativeKey),
		PlaceholderFullFileName, full,
		PlaceholderFileName, strings.TrimSuffix(full, ext),
		PlaceholderFileExtension, ext,
	)
	return r.Replace(template), nil
}

// dir returns key up to and including its last "/".
func dir(key string) string {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return ""
	}
	return key[:i+1]
}
