package copy

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

func seed(store *testutil.FakeStore) {
	expires := time.Date(2031, 5, 6, 7, 8, 9, 0, time.UTC)
	store.Put("src", "docs/readme.txt", testutil.FakeObject{
		Body:         []byte("hello world"),
		ContentType:  "text/plain",
		CacheControl: "no-cache",
		Expires:      &expires,
		Metadata:     map[string]string{"owner": "alice"},
		Tags:         map[string]string{"env": "prod"},
		Checksums: map[awstypes.ChecksumAlgorithm]string{
			awstypes.ChecksumAlgorithmCrc32c: testutil.CalculateCRC32C([]byte("hello world")),
		},
	})
}

func params(key string) Params {
	return Params{
		Source: s3types.Location{Bucket: "src", Region: "us-east-1", Key: key},
		Target: s3types.Location{Bucket: "dst"},
		Leaf:   true,
	}
}

func TestCopier_CopyOne_CopiesMetadataAndTags(t *testing.T) {
	store := testutil.NewFakeStore()
	seed(store)
	c := NewCopier(store)

	out, err := c.CopyOne(context.Background(), params("docs/readme.txt"))
	require.NoError(t, err)
	assert.True(t, out.Copied)
	assert.False(t, out.Multipart)
	assert.Equal(t, int64(11), out.Bytes)
	assert.Equal(t, s3types.Location{Bucket: "dst", Region: "us-east-1", Key: "docs/readme.txt"}, out.Target)

	obj, ok := store.Object("dst", "docs/readme.txt")
	require.True(t, ok)
	assert.Equal(t, "hello world", string(obj.Body))
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, "no-cache", obj.CacheControl)
	require.NotNil(t, obj.Expires)
	assert.Equal(t, 2031, obj.Expires.Year())
	assert.Equal(t, map[string]string{"owner": "alice"}, obj.Metadata)
	assert.Equal(t, map[string]string{"env": "prod"}, obj.Tags)

	assert.Equal(t, 1, store.CountCalls("CopyObject"))
	assert.Equal(t, 1, store.CountCalls("PutObjectTagging"))
	assert.Equal(t, 0, store.CountCalls("DeleteObject"))
	assert.True(t, store.Has("src", "docs/readme.txt"))
}

func TestCopier_CopyOne_Directives(t *testing.T) {
	store := testutil.NewFakeStore()
	seed(store)
	c := NewCopier(store)

	p := params("docs/readme.txt")
	p.Headers = map[string]string{"Content-Type": "text/markdown", "x-amz-meta-team": "infra"}
	p.HeaderDirective = s3types.DirectiveAdd
	p.Tags = map[string]string{"new": "1"}
	p.TagDirective = s3types.DirectiveReplaced
	p.ACL = map[string]string{ACLCanned: "public-read"}
	p.ACLDirective = s3types.DirectiveReplaced

	_, err := c.CopyOne(context.Background(), p)
	require.NoError(t, err)

	obj, _ := store.Object("dst", "docs/readme.txt")
	assert.Equal(t, "text/markdown", obj.ContentType)
	assert.Equal(t, map[string]string{"owner": "alice", "team": "infra"}, obj.Metadata)
	assert.Equal(t, map[string]string{"new": "1"}, obj.Tags)

	var publicRead bool
	for _, g := range obj.Grants {
		if g.Grantee != nil && g.Grantee.URI != nil && *g.Grantee.URI == testutil.AllUsersURI {
			publicRead = g.Permission == awstypes.PermissionRead
		}
	}
	assert.True(t, publicRead)

	// Replaced directives need no source read.
	assert.Equal(t, 0, store.CountCalls("GetObjectTagging"))
	assert.Equal(t, 0, store.CountCalls("GetObjectAcl"))
}

func TestCopier_CopyOne_CopiesACL(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Put("src", "pub", testutil.FakeObject{
		Body: []byte("x"),
		Grants: []awstypes.Grant{
			{Grantee: &awstypes.Grantee{ID: testutil.StringPtr(testutil.OwnerID)}, Permission: awstypes.PermissionFullControl},
			{Grantee: &awstypes.Grantee{URI: testutil.StringPtr(testutil.AllUsersURI)}, Permission: awstypes.PermissionRead},
		},
	})

	_, err := NewCopier(store).CopyOne(context.Background(), params("pub"))
	require.NoError(t, err)

	obj, _ := store.Object("dst", "pub")
	require.Len(t, obj.Grants, 1)
	assert.Equal(t, testutil.AllUsersURI, *obj.Grants[0].Grantee.URI)
	assert.Equal(t, awstypes.PermissionRead, obj.Grants[0].Permission)
}

func TestCopier_CopyOne_NoTagsSkipsTagging(t *testing.T) {
	store := testutil.NewFakeStore()
	store.PutBytes("src", "k", []byte("data"))

	_, err := NewCopier(store).CopyOne(context.Background(), params("k"))
	require.NoError(t, err)
	assert.Equal(t, 0, store.CountCalls("PutObjectTagging"))
}

func TestCopier_CopyOne_UnsupportedDirective(t *testing.T) {
	store := testutil.NewFakeStore()
	seed(store)

	p := params("docs/readme.txt")
	p.ACLDirective = "Merge"
	_, err := NewCopier(store).CopyOne(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnsupportedDirective)
	assert.Empty(t, store.Calls())
}

func TestCopier_CopyOne_RelativePrefix(t *testing.T) {
	store := testutil.NewFakeStore()
	store.PutBytes("src", "a/b.txt", []byte("b"))
	store.PutBytes("src", "z/c.txt", []byte("c"))
	c := NewCopier(store)

	p := params("a/b.txt")
	p.RelativePrefix = "a/"
	p.KeyTemplate = "${RelativeKey}"
	out, err := c.CopyOne(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, "b.txt", out.Target.Key)
	assert.True(t, store.Has("dst", "b.txt"))

	p = params("z/c.txt")
	p.RelativePrefix = "a/"
	p.KeyTemplate = "${RelativeKey}"
	_, err = c.CopyOne(context.Background(), p)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	assert.Equal(t, 1, store.CountCalls("HeadObject"))
}

func TestCopier_CopyOne_MultipartAcrossRegions(t *testing.T) {
	store := testutil.NewFakeStore()
	store.SetBucketRegion("src", "us-east-1")
	store.SetBucketRegion("dst", "eu-west-1")
	store.Put("src", "big.bin", testutil.FakeObject{
		Body:        []byte("0123456789"),
		ContentType: "application/octet-stream",
		Tags:        map[string]string{"size": "big"},
		Checksums: map[awstypes.ChecksumAlgorithm]string{
			awstypes.ChecksumAlgorithmCrc32c: testutil.CalculateCRC32C([]byte("0123456789")),
		},
	})

	c := NewCopier(store, WithChunkSize(4), WithPartSize(4), WithPartConcurrency(2))
	p := params("big.bin")
	p.Target.Region = "eu-west-1"
	p.DeleteSource = true

	out, err := c.CopyOne(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Multipart)
	assert.True(t, out.Deleted)

	obj, ok := store.Object("dst", "big.bin")
	require.True(t, ok)
	assert.Equal(t, "0123456789", string(obj.Body))
	assert.Equal(t, map[string]string{"size": "big"}, obj.Tags)
	assert.Equal(t, 3, store.CountCalls("UploadPartCopy"))
	assert.Zero(t, store.OpenUploads())
	assert.False(t, store.Has("src", "big.bin"))
}

func TestCopier_CopyOne_MultipartKeepsChecksum(t *testing.T) {
	body := []byte("0123456789")
	tests := []struct {
		name        string
		algo        awstypes.ChecksumAlgorithm
		wantDeleted bool
	}{
		{name: "CRC64NVME", algo: awstypes.ChecksumAlgorithmCrc64nvme, wantDeleted: true},
		{name: "CRC32C", algo: awstypes.ChecksumAlgorithmCrc32c, wantDeleted: true},
		{name: "CRC32", algo: awstypes.ChecksumAlgorithmCrc32, wantDeleted: true},
		{name: "SHA256", algo: awstypes.ChecksumAlgorithmSha256},
		{name: "SHA1", algo: awstypes.ChecksumAlgorithmSha1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := testutil.NewFakeStore()
			sum := testutil.CalculateChecksum(tt.algo, body)
			store.Put("src", "big.bin", testutil.FakeObject{
				Body:      body,
				Checksums: map[awstypes.ChecksumAlgorithm]string{tt.algo: sum},
			})

			p := params("big.bin")
			p.StorageClass = s3types.StorageClassGlacier
			p.DeleteSource = true
			out, err := NewCopier(store, WithChunkSize(4), WithPartSize(4)).CopyOne(context.Background(), p)
			require.NoError(t, err)
			assert.True(t, out.Multipart)
			assert.Equal(t, tt.wantDeleted, out.Deleted)
			assert.Equal(t, !tt.wantDeleted, store.Has("src", "big.bin"))

			obj, ok := store.Object("dst", "big.bin")
			require.True(t, ok)
			if tt.wantDeleted {
				assert.Equal(t, sum, obj.Checksums[tt.algo])
				assert.Empty(t, out.Messages)
			} else {
				require.Len(t, out.Messages, 1)
				assert.Contains(t, out.Messages[0], "delete skipped")
			}
		})
	}
}

func TestCopier_CopyOne_CompositeSourceIsKept(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Put("src", "parts.bin", testutil.FakeObject{
		Body: []byte("abc"),
		Checksums: map[awstypes.ChecksumAlgorithm]string{
			awstypes.ChecksumAlgorithmCrc32c: "yZRlqg==-3",
		},
	})

	p := params("parts.bin")
	p.DeleteSource = true
	out, err := NewCopier(store).CopyOne(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Copied)
	assert.False(t, out.Deleted)
	require.Len(t, out.Messages, 1)
	assert.Contains(t, out.Messages[0], "composite")
	assert.True(t, store.Has("src", "parts.bin"))
}

func TestCopier_CopyOne_SameRegionStaysSingle(t *testing.T) {
	store := testutil.NewFakeStore()
	store.PutBytes("src", "big.bin", []byte("0123456789"))

	out, err := NewCopier(store, WithChunkSize(4), WithPartSize(4)).CopyOne(context.Background(), params("big.bin"))
	require.NoError(t, err)
	assert.False(t, out.Multipart)
	assert.Equal(t, 0, store.CountCalls("UploadPartCopy"))
}

func TestCopier_CopyOne_MultipartFailureAborts(t *testing.T) {
	store := testutil.NewFakeStore()
	store.PutBytes("src", "big.bin", []byte("0123456789"))
	boom := stderrors.New("part failed")

	mock := testutil.NewMockBuilder().
		WithFallback(store).
		WithUploadPartCopy(func(context.Context, *s3.UploadPartCopyInput) (*s3.UploadPartCopyOutput, error) {
			return nil, boom
		}).
		Build()

	p := params("big.bin")
	p.StorageClass = s3types.StorageClassGlacier
	_, err := NewCopier(mock, WithChunkSize(4), WithPartSize(4)).CopyOne(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, store.CountCalls("AbortMultipartUpload"))
	assert.Zero(t, store.OpenUploads())
	assert.False(t, store.Has("dst", "big.bin"))
}

func TestCopier_CopyOne_DeleteAfterVerifiedCopy(t *testing.T) {
	store := testutil.NewFakeStore()
	seed(store)

	p := params("docs/readme.txt")
	p.DeleteSource = true
	out, err := NewCopier(store).CopyOne(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Deleted)
	assert.False(t, store.Has("src", "docs/readme.txt"))
	assert.True(t, store.Has("dst", "docs/readme.txt"))
}

func TestCopier_CopyOne_DeleteFailure(t *testing.T) {
	store := testutil.NewFakeStore()
	seed(store)
	mock := testutil.NewMockBuilder().
		WithFallback(store).
		WithDeleteObject(func(context.Context, *s3.DeleteObjectInput) (*s3.DeleteObjectOutput, error) {
			return nil, stderrors.New("throttled")
		}).
		Build()

	p := params("docs/readme.txt")
	p.DeleteSource = true
	_, err := NewCopier(mock).CopyOne(context.Background(), p)
	require.Error(t, err)
	assert.ErrorContains(t, err, "throttled")
	assert.True(t, store.Has("src", "docs/readme.txt"))
	assert.True(t, store.Has("dst", "docs/readme.txt"))
}

func TestCopier_CopyOne_TaggingFailure(t *testing.T) {
	store := testutil.NewFakeStore()
	seed(store)
	mock := testutil.NewMockBuilder().
		WithFallback(store).
		WithPutObjectTagging(func(context.Context, *s3.PutObjectTaggingInput) (*s3.PutObjectTaggingOutput, error) {
			return nil, stderrors.New("tag limit")
		}).
		Build()

	p := params("docs/readme.txt")
	p.DeleteSource = true
	_, err := NewCopier(mock).CopyOne(context.Background(), p)
	require.Error(t, err)

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, "putObjectTagging", e.Op)
	assert.True(t, store.Has("src", "docs/readme.txt"))
}

func TestCopier_CopyOne_ChecksumMismatchKeepsSource(t *testing.T) {
	store := testutil.NewFakeStore()
	seed(store)
	mock := testutil.NewMockBuilder().
		WithFallback(store).
		WithTargetChecksum("dst", "docs/readme.txt", awstypes.ChecksumAlgorithmCrc32c, "AAAAAA==").
		Build()

	p := params("docs/readme.txt")
	p.DeleteSource = true
	_, err := NewCopier(mock).CopyOne(context.Background(), p)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrChecksumMismatch)
	assert.True(t, store.Has("src", "docs/readme.txt"))
	assert.Equal(t, 0, store.CountCalls("DeleteObject"))
}

func TestCopier_CopyOne_TargetLacksAlgorithm(t *testing.T) {
	store := testutil.NewFakeStore()
	seed(store)
	mock := testutil.NewMockBuilder().
		WithFallback(store).
		WithTargetChecksum("dst", "docs/readme.txt", awstypes.ChecksumAlgorithmSha256, "c2hhMjU2").
		Build()

	p := params("docs/readme.txt")
	p.DeleteSource = true
	_, err := NewCopier(mock).CopyOne(context.Background(), p)
	assert.ErrorIs(t, err, errors.ErrChecksumMismatch)
}

func TestCopier_CopyOne_SourceWithoutChecksumIsKept(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Put("src", "plain", testutil.FakeObject{Body: []byte("x")})

	p := params("plain")
	p.DeleteSource = true
	out, err := NewCopier(store).CopyOne(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Copied)
	assert.False(t, out.Deleted)
	assert.NotEmpty(t, out.Messages)
	assert.True(t, store.Has("src", "plain"))
}

func TestCopier_CopyOne_SameObjectSkipsDelete(t *testing.T) {
	store := testutil.NewFakeStore()
	seed(store)

	p := params("docs/readme.txt")
	p.Target = s3types.Location{Bucket: "src", Region: "us-east-1", Key: "docs/readme.txt"}
	p.Headers = map[string]string{"cache-control": "max-age=300"}
	p.HeaderDirective = s3types.DirectiveAdd
	p.DeleteSource = true

	out, err := NewCopier(store).CopyOne(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Copied)
	assert.False(t, out.Deleted)

	obj, ok := store.Object("src", "docs/readme.txt")
	require.True(t, ok)
	assert.Equal(t, "max-age=300", obj.CacheControl)
	assert.Equal(t, 1, store.CountCalls("HeadObject"))
	assert.Equal(t, 0, store.CountCalls("DeleteObject"))
}

func TestCopier_CopyOne_SourceMissing(t *testing.T) {
	store := testutil.NewFakeStore()
	_, err := NewCopier(store).CopyOne(context.Background(), params("missing"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeNotFound, errors.Classify(err))
}

func TestCopier_CopyOne_AccessDenied(t *testing.T) {
	store := testutil.NewFakeStore()
	store.PutBytes("src", "k", []byte("x"))
	mock := testutil.NewMockBuilder().WithFallback(store).WithAccessDenied().Build()
	_, err := NewCopier(mock).CopyOne(context.Background(), params("k"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeForbidden, errors.Classify(err))
}

func TestCopier_CopyOne_Interceptors(t *testing.T) {
	t.Run("proceed with override", func(t *testing.T) {
		store := testutil.NewFakeStore()
		seed(store)
		rename := func(_ context.Context, req *s3types.CopyRequest) s3types.Decision {
			next := *req
			next.Target.Key = "renamed.txt"
			return s3types.ProceedWith(&next)
		}

		out, err := NewCopier(store, WithInterceptors(rename)).CopyOne(context.Background(), params("docs/readme.txt"))
		require.NoError(t, err)
		assert.Equal(t, "renamed.txt", out.Target.Key)
		assert.True(t, store.Has("dst", "renamed.txt"))
	})

	t.Run("short circuit", func(t *testing.T) {
		store := testutil.NewFakeStore()
		seed(store)
		skip := func(_ context.Context, req *s3types.CopyRequest) s3types.Decision {
			return s3types.ShortCircuitWith(&s3types.Outcome{Source: req.Source, Messages: []string{"skipped"}})
		}

		out, err := NewCopier(store, WithInterceptors(skip)).CopyOne(context.Background(), params("docs/readme.txt"))
		require.NoError(t, err)
		assert.False(t, out.Copied)
		assert.Equal(t, 0, store.CountCalls("CopyObject"))
	})

	t.Run("fail", func(t *testing.T) {
		store := testutil.NewFakeStore()
		seed(store)
		denied := stderrors.New("policy denied")
		deny := func(context.Context, *s3types.CopyRequest) s3types.Decision {
			return s3types.FailWith(denied)
		}

		_, err := NewCopier(store, WithInterceptors(deny)).CopyOne(context.Background(), params("docs/readme.txt"))
		assert.ErrorIs(t, err, denied)
		assert.Equal(t, 0, store.CountCalls("CopyObject"))
	})
}

func TestLoopGuard(t *testing.T) {
	store := testutil.NewFakeStore()
	seed(store)
	c := NewCopier(store, WithInterceptors(LoopGuard))

	p := params("docs/readme.txt")
	p.AvoidLoop = true
	p.TriggerType = s3types.TriggerManual
	p.Target.Bucket = "src"
	p.KeyTemplate = "copies/${FullFileName}"

	out, err := c.CopyOne(context.Background(), p)
	require.NoError(t, err)
	assert.True(t, out.Copied)

	obj, _ := store.Object("src", "copies/readme.txt")
	assert.Equal(t, "src/docs/readme.txt", obj.Tags[LoopMarkerTag])
	assert.Equal(t, "prod", obj.Tags["env"])

	// An event for the written object must not copy it again.
	p = params("copies/readme.txt")
	p.AvoidLoop = true
	p.TriggerType = s3types.TriggerEvent
	p.TagDirective = s3types.DirectiveReplaced
	out, err = c.CopyOne(context.Background(), p)
	require.NoError(t, err)
	assert.False(t, out.Copied)
	assert.False(t, store.Has("dst", "copies/readme.txt"))
}

func TestCopier_CopyOne_DetectContentType(t *testing.T) {
	store := testutil.NewFakeStore()
	store.Put("src", "page", testutil.FakeObject{Body: []byte("<!DOCTYPE html><html><body>hi</body></html>")})

	_, err := NewCopier(store, WithDetectContentType(true)).CopyOne(context.Background(), params("page"))
	require.NoError(t, err)

	obj, _ := store.Object("dst", "page")
	assert.Contains(t, obj.ContentType, "text/html")
	assert.Equal(t, 1, store.CountCalls("GetObject"))
}

func TestSourceURL(t *testing.T) {
	assert.Equal(t, "bucket/a%20b/c%3Fd.txt", SourceURL("bucket", "a b/c?d.txt"))
	assert.Equal(t, "bucket/plain/key", SourceURL("bucket", "plain/key"))
}
