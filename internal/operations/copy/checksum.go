package copy

import (
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// checksumPriority is the order in which a source checksum is chosen.
var checksumPriority = []awstypes.ChecksumAlgorithm{
	awstypes.ChecksumAlgorithmCrc64nvme,
	awstypes.ChecksumAlgorithmCrc32c,
	awstypes.ChecksumAlgorithmCrc32,
	awstypes.ChecksumAlgorithmSha256,
	awstypes.ChecksumAlgorithmSha1,
}

// Checksum is one stored checksum of an object.
type Checksum struct {
	Algorithm awstypes.ChecksumAlgorithm
	Value     string
}

// checksumOf returns the checksum of out for algo, or "".
func checksumOf(out *s3.HeadObjectOutput, algo awstypes.ChecksumAlgorithm) string {
	switch algo {
	case awstypes.ChecksumAlgorithmCrc64nvme:
		return aws.ToString(out.ChecksumCRC64NVME)
	case awstypes.ChecksumAlgorithmCrc32c:
		return aws.ToString(out.ChecksumCRC32C)
	case awstypes.ChecksumAlgorithmCrc32:
		return aws.ToString(out.ChecksumCRC32)
	case awstypes.ChecksumAlgorithmSha256:
		return aws.ToString(out.ChecksumSHA256)
	case awstypes.ChecksumAlgorithmSha1:
		return aws.ToString(out.ChecksumSHA1)
	}
	return ""
}

// preferredChecksum returns the highest priority checksum of out. ok is
// false when the object carries none.
func preferredChecksum(out *s3.HeadObjectOutput) (Checksum, bool) {
	for _, algo := range checksumPriority {
		if v := checksumOf(out, algo); v != "" {
			return Checksum{Algorithm: algo, Value: v}, true
		}
	}
	return Checksum{}, false
}

// compareChecksums reads source and target under the source's preferred
// algorithm. present is false when the source has no checksum at all.
func compareChecksums(source, target *s3.HeadObjectOutput) (want Checksum, got string, present bool) {
	want, present = preferredChecksum(source)
	if !present {
		return want, "", false
	}
	return want, checksumOf(target, want.Algorithm), true
}

// fullObjectChecksum reports whether S3 can compute a full-object checksum
// of a multipart object under algo. SHA checksums of multipart objects are
// always composite.
func fullObjectChecksum(algo awstypes.ChecksumAlgorithm) bool {
	switch algo {
	case awstypes.ChecksumAlgorithmCrc64nvme, awstypes.ChecksumAlgorithmCrc32c, awstypes.ChecksumAlgorithmCrc32:
		return true
	}
	return false
}

// multipartChecksum is the algorithm a multipart copy of the object in head
// asks S3 to compute, or "" to leave S3's default.
func multipartChecksum(head *s3.HeadObjectOutput) awstypes.ChecksumAlgorithm {
	want, ok := preferredChecksum(head)
	if !ok || !fullObjectChecksum(want.Algorithm) {
		return ""
	}
	return want.Algorithm
}

// isComposite reports whether sum is a checksum of part checksums, which S3
// writes as "<base64>-<parts>".
func isComposite(sum string) bool {
	return strings.Contains(sum, "-")
}
