package copy

import (
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

const (
	// MaxSingleCopySize is the largest object a single CopyObject call accepts.
	MaxSingleCopySize int64 = 5 * 1024 * 1024 * 1024

	// ThresholdMultiplier scales the chunk size when placement is unchanged,
	// so that such copies are never split below the single-call limit.
	ThresholdMultiplier int64 = 1024

	// DefaultPartSize is the UploadPartCopy part size.
	DefaultPartSize int64 = 8 * 1024 * 1024

	// MinPartSize is the smallest part S3 accepts, except for the last one.
	MinPartSize int64 = 5 * 1024 * 1024

	// MaxParts is the part count limit of one multipart upload.
	MaxParts = 10000

	// DefaultPartConcurrency bounds concurrent UploadPartCopy calls per object.
	DefaultPartConcurrency = 5
)

// placement is the subset of source and target state that decides whether
// the stored bytes must be rewritten.
type placement struct {
	sourceRegion       string
	targetRegion       string
	sourceStorageClass string
	targetStorageClass string
	sourceSSE          string
	targetSSE          string
}

// needsUpdateStorage reports whether the copy moves the object to another
// region, storage class or encryption setting. A source without a storage
// class is STANDARD.
func needsUpdateStorage(p placement) bool {
	if p.targetRegion != "" && p.targetRegion != p.sourceRegion {
		return true
	}
	if p.targetStorageClass != "" {
		effective := p.sourceStorageClass
		if effective == "" {
			effective = string(s3types.StorageClassStandard)
		}
		if p.targetStorageClass != effective {
			return true
		}
	}
	return p.sourceSSE != "" || p.targetSSE != ""
}

// chunkThreshold is the size above which a copy is split into parts.
func chunkThreshold(chunkSize int64, updateStorage bool) int64 {
	if chunkSize <= 0 {
		chunkSize = MaxSingleCopySize
	}
	if updateStorage {
		return chunkSize
	}
	return ThresholdMultiplier * chunkSize
}

// useMultipart reports whether an object of size bytes must be copied in
// parts. Objects over MaxSingleCopySize always are.
func useMultipart(size, threshold int64) bool {
	return size > threshold || size > MaxSingleCopySize
}

// partLayout returns the part size and count for an object, growing partSize
// until the copy fits in MaxParts. S3 rejects parts below MinPartSize other
// than the last; callers own that check.
func partLayout(size, partSize int64) (int64, int) {
	if partSize <= 0 {
		partSize = DefaultPartSize
	}
	for size/partSize >= MaxParts {
		partSize *= 2
	}
	if size == 0 {
		return partSize, 1
	}
	return partSize, int((size + partSize - 1) / partSize)
}
