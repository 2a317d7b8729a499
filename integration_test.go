//go:build integration
// +build integration

package s3copy_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/testutil"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

func newLocalStackClient(t *testing.T, ls *testutil.LocalStack) *s3.Client {
	t.Helper()
	ctx := context.Background()
	cfg, err := ls.StaticCredentials(ctx)
	require.NoError(t, err)

	client, err := s3copy.NewClient(ctx,
		s3copy.WithAWSConfig(&cfg),
		s3copy.WithEndpoint(ls.Endpoint()),
		s3copy.WithForcePathStyle(true),
		s3copy.WithRetryMode("standard"),
	)
	require.NoError(t, err)
	return client
}

func TestIntegrationCopyPrefix(t *testing.T) {
	ctx := context.Background()
	ls := testutil.SetupLocalStack(t)
	client := newLocalStackClient(t, ls)

	src := testutil.GenerateTestBucketName("src")
	dst := testutil.GenerateTestBucketName("dst")
	testutil.CreateBucket(t, client, src)
	testutil.CreateBucket(t, client, dst)

	for i := 0; i < 5; i++ {
		key := fmt.Sprintf("reports/%d.csv", i)
		body := []byte(fmt.Sprintf("id,value\n%d,%d\n", i, i*i))
		require.NoError(t, testutil.PutObject(ctx, client, src, key, body, map[string]string{"kind": "report"}))
	}

	o := s3copy.New(client, s3copy.WithParallel(2), s3copy.WithListPageSize(2))
	resp, err := o.Run(ctx, &s3types.Request{
		Items: []s3types.CopyItem{
			{Source: s3types.Location{Bucket: src, Key: "reports/"}},
		},
		Defaults: s3types.Defaults{
			TargetBucket:      dst,
			TargetKeyTemplate: "archive/${RelativeKey}",
			RelativePrefix:    "reports/",
			Headers:           map[string]string{"Cache-Control": "max-age=60"},
			HeaderDirective:   s3types.DirectiveAdd,
			DeleteSource:      true,
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Results, 1)
	assert.Empty(t, resp.Results[0].Error)
	assert.Equal(t, s3types.Counts{Success: 5}, resp.Results[0].Result)
	assert.Equal(t, s3copy.StateCompleted, o.State())

	for i := 0; i < 5; i++ {
		head, err := client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(dst),
			Key:    aws.String(fmt.Sprintf("archive/%d.csv", i)),
		})
		require.NoError(t, err)
		assert.Equal(t, "max-age=60", aws.ToString(head.CacheControl))

		tags, err := client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
			Bucket: aws.String(dst),
			Key:    aws.String(fmt.Sprintf("archive/%d.csv", i)),
		})
		require.NoError(t, err)
		require.Len(t, tags.TagSet, 1)
		assert.Equal(t, "kind", aws.ToString(tags.TagSet[0].Key))
	}

	left, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{Bucket: aws.String(src)})
	require.NoError(t, err)
	assert.Empty(t, left.Contents)
}

func TestIntegrationMultipartStorageClassChange(t *testing.T) {
	ctx := context.Background()
	ls := testutil.SetupLocalStack(t)
	client := newLocalStackClient(t, ls)

	src := testutil.GenerateTestBucketName("mp-src")
	dst := testutil.GenerateTestBucketName("mp-dst")
	testutil.CreateBucket(t, client, src)
	testutil.CreateBucket(t, client, dst)

	body := testutil.GenerateRandomData(12 * 1024 * 1024)
	require.NoError(t, testutil.PutObject(ctx, client, src, "big.bin", body, nil))

	o := s3copy.New(client,
		s3copy.WithChunkSize(5*1024*1024),
		s3copy.WithPartSize(5*1024*1024),
	)
	resp, err := o.Run(ctx, &s3types.Request{
		Items: []s3types.CopyItem{{Source: s3types.Location{Bucket: src, Key: "big.bin"}}},
		Defaults: s3types.Defaults{
			TargetBucket: dst,
			StorageClass: s3types.StorageClassStandardIA,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, s3types.Counts{Success: 1}, resp.Results[0].Result)

	head, err := client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(dst), Key: aws.String("big.bin")})
	require.NoError(t, err)
	assert.Equal(t, int64(len(body)), aws.ToInt64(head.ContentLength))
	assert.Equal(t, awstypes.StorageClassStandardIa, head.StorageClass)
}

func TestIntegrationMissingSourceFailStop(t *testing.T) {
	ctx := context.Background()
	ls := testutil.SetupLocalStack(t)
	client := newLocalStackClient(t, ls)

	src := testutil.GenerateTestBucketName("fs-src")
	testutil.CreateBucket(t, client, src)

	o := s3copy.New(client, s3copy.WithFailStop(true))
	resp, err := o.Run(ctx, &s3types.Request{
		Items:    []s3types.CopyItem{{Source: s3types.Location{Bucket: src, Key: "absent.txt"}}},
		Defaults: s3types.Defaults{TargetBucket: src, TargetKeyTemplate: "copy/${Key}"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Results[0].Result.Fail)
	assert.NotEmpty(t, resp.Results[0].Error)
	assert.Equal(t, s3copy.StateFailed, o.State())
}
