// Package testutil provides a builder for creating mock S3 clients.
package testutil

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/s3api"
)

// MockBuilder provides a fluent interface for building MockS3Client instances.
type MockBuilder struct {
	client *MockS3Client
}

// NewMockBuilder creates a new MockBuilder.
func NewMockBuilder() *MockBuilder {
	return &MockBuilder{
		client: &MockS3Client{},
	}
}

// Build returns the configured MockS3Client.
func (b *MockBuilder) Build() *MockS3Client {
	return b.client
}

// WithFallback routes every operation without an override to api.
func (b *MockBuilder) WithFallback(api s3api.S3API) *MockBuilder {
	b.client.Fallback = api
	return b
}

// WithHeadObject configures the HeadObject behavior.
func (b *MockBuilder) WithHeadObject(
	fn func(context.Context, *s3.HeadObjectInput) (*s3.HeadObjectOutput, error),
) *MockBuilder {
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithCopyObject configures the CopyObject behavior.
func (b *MockBuilder) WithCopyObject(
	fn func(context.Context, *s3.CopyObjectInput) (*s3.CopyObjectOutput, error),
) *MockBuilder {
	b.client.CopyObjectFunc = func(ctx context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithDeleteObject configures the DeleteObject behavior.
func (b *MockBuilder) WithDeleteObject(
	fn func(context.Context, *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error),
) *MockBuilder {
	b.client.DeleteObjectFunc = func(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithPutObjectTagging configures the PutObjectTagging behavior.
func (b *MockBuilder) WithPutObjectTagging(
	fn func(context.Context, *s3.PutObjectTaggingInput) (*s3.PutObjectTaggingOutput, error),
) *MockBuilder {
	b.client.PutObjectTaggingFunc = func(ctx context.Context, params *s3.PutObjectTaggingInput, _ ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithUploadPartCopy configures the UploadPartCopy behavior.
func (b *MockBuilder) WithUploadPartCopy(
	fn func(context.Context, *s3.UploadPartCopyInput) (*s3.UploadPartCopyOutput, error),
) *MockBuilder {
	b.client.UploadPartCopyFunc = func(ctx context.Context, params *s3.UploadPartCopyInput, _ ...func(*s3.Options)) (*s3.UploadPartCopyOutput, error) {
		return fn(ctx, params)
	}
	return b
}

// WithTargetChecksum makes HeadObject on bucket/key report checksum for
// algo, leaving every other object to the fallback.
func (b *MockBuilder) WithTargetChecksum(bucket, key string, algo types.ChecksumAlgorithm, checksum string) *MockBuilder {
	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		out, err := b.client.Fallback.HeadObject(ctx, params, optFns...)
		if err != nil || *params.Bucket != bucket || *params.Key != key {
			return out, err
		}
		if params.ChecksumMode != types.ChecksumModeEnabled {
			return out, nil
		}
		out.ChecksumCRC64NVME, out.ChecksumCRC32C, out.ChecksumCRC32, out.ChecksumSHA256, out.ChecksumSHA1 = nil, nil, nil, nil, nil
		switch algo {
		case types.ChecksumAlgorithmCrc64nvme:
			out.ChecksumCRC64NVME = StringPtr(checksum)
		case types.ChecksumAlgorithmCrc32c:
			out.ChecksumCRC32C = StringPtr(checksum)
		case types.ChecksumAlgorithmCrc32:
			out.ChecksumCRC32 = StringPtr(checksum)
		case types.ChecksumAlgorithmSha256:
			out.ChecksumSHA256 = StringPtr(checksum)
		case types.ChecksumAlgorithmSha1:
			out.ChecksumSHA1 = StringPtr(checksum)
		}
		return out, nil
	}
	return b
}

// WithAccessDenied configures the mock to return access denied errors from
// every read and write the copier issues.
func (b *MockBuilder) WithAccessDenied() *MockBuilder {
	accessDeniedErr := &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"}

	b.client.HeadObjectFunc = func(ctx context.Context, params *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
		return nil, accessDeniedErr
	}
	b.client.ListObjectsV2Func = func(ctx context.Context, params *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
		return nil, accessDeniedErr
	}
	b.client.CopyObjectFunc = func(ctx context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
		return nil, accessDeniedErr
	}
	b.client.DeleteObjectFunc = func(ctx context.Context, params *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
		return nil, accessDeniedErr
	}

	return b
}

// WithFailingCopy makes every CopyObject call fail with err.
func (b *MockBuilder) WithFailingCopy(err error) *MockBuilder {
	if err == nil {
		err = errors.New("copy failed")
	}
	b.client.CopyObjectFunc = func(ctx context.Context, params *s3.CopyObjectInput, _ ...func(*s3.Options)) (*s3.CopyObjectOutput, error) {
		return nil, err
	}
	return b
}
