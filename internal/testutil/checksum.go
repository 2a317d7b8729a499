package testutil

import (
	"crypto/sha1" //nolint:gosec // S3 still offers SHA-1 checksums.
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"hash/crc64"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// crc64NVME is the reflected CRC-64/NVME polynomial.
var crc64NVME = crc64.MakeTable(0x9a6c9329ac4bc9b5)

// CalculateChecksum returns the base64 full-object checksum S3 reports for
// data under algo.
func CalculateChecksum(algo types.ChecksumAlgorithm, data []byte) string {
	switch algo {
	case types.ChecksumAlgorithmCrc64nvme:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], crc64.Checksum(data, crc64NVME))
		return base64.StdEncoding.EncodeToString(buf[:])
	case types.ChecksumAlgorithmCrc32c:
		return CalculateCRC32C(data)
	case types.ChecksumAlgorithmCrc32:
		var buf [4]byte
		binary.BigEndian.PutUint32(buf[:], crc32.ChecksumIEEE(data))
		return base64.StdEncoding.EncodeToString(buf[:])
	case types.ChecksumAlgorithmSha256:
		h := sha256.Sum256(data)
		return base64.StdEncoding.EncodeToString(h[:])
	case types.ChecksumAlgorithmSha1:
		h := sha1.Sum(data) //nolint:gosec // see import
		return base64.StdEncoding.EncodeToString(h[:])
	}
	return ""
}

// CompositeChecksum returns the checksum S3 reports for a multipart object
// with a COMPOSITE checksum: the checksum of the concatenated part checksums,
// suffixed with the part count.
func CompositeChecksum(algo types.ChecksumAlgorithm, parts ...[]byte) string {
	var digests []byte
	for _, p := range parts {
		raw, _ := base64.StdEncoding.DecodeString(CalculateChecksum(algo, p))
		digests = append(digests, raw...)
	}
	return fmt.Sprintf("%s-%d", CalculateChecksum(algo, digests), len(parts))
}

func partChecksum(p types.CompletedPart, algo types.ChecksumAlgorithm) *string {
	switch algo {
	case types.ChecksumAlgorithmCrc64nvme:
		return p.ChecksumCRC64NVME
	case types.ChecksumAlgorithmCrc32c:
		return p.ChecksumCRC32C
	case types.ChecksumAlgorithmCrc32:
		return p.ChecksumCRC32
	case types.ChecksumAlgorithmSha256:
		return p.ChecksumSHA256
	case types.ChecksumAlgorithmSha1:
		return p.ChecksumSHA1
	}
	return nil
}

func setCopyPartChecksum(r *types.CopyPartResult, algo types.ChecksumAlgorithm, sum *string) {
	switch algo {
	case types.ChecksumAlgorithmCrc64nvme:
		r.ChecksumCRC64NVME = sum
	case types.ChecksumAlgorithmCrc32c:
		r.ChecksumCRC32C = sum
	case types.ChecksumAlgorithmCrc32:
		r.ChecksumCRC32 = sum
	case types.ChecksumAlgorithmSha256:
		r.ChecksumSHA256 = sum
	case types.ChecksumAlgorithmSha1:
		r.ChecksumSHA1 = sum
	}
}
