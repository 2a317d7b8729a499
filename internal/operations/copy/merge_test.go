package copy

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

func TestMerge(t *testing.T) {
	source := map[string]string{
		"Content-Type":          "text/plain",
		"x-amz-meta-owner":      "alice",
		"ETag":                  `"abc"`,
		"Content-Length":        "12",
		"Last-Modified":         "Mon, 02 Jan 2006 15:04:05 GMT",
		"x-amz-checksum-crc32c": "yZRlqg==",
	}
	caller := map[string]string{
		"content-type":    "application/json",
		"x-amz-meta-team": "storage",
	}

	tests := []struct {
		name      string
		directive s3types.Directive
		want      map[string]string
	}{
		{
			name:      "empty directive copies",
			directive: "",
			want:      map[string]string{"content-type": "text/plain", "x-amz-meta-owner": "alice"},
		},
		{
			name:      "copy drops volatile headers",
			directive: s3types.DirectiveCopy,
			want:      map[string]string{"content-type": "text/plain", "x-amz-meta-owner": "alice"},
		},
		{
			name:      "add lets caller win",
			directive: s3types.DirectiveAdd,
			want: map[string]string{
				"content-type":     "application/json",
				"x-amz-meta-owner": "alice",
				"x-amz-meta-team":  "storage",
			},
		},
		{
			name:      "replaced ignores source",
			directive: s3types.DirectiveReplaced,
			want:      map[string]string{"content-type": "application/json", "x-amz-meta-team": "storage"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Merge(tt.directive, source, caller)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMerge_UnsupportedDirective(t *testing.T) {
	_, err := Merge("Keep", nil, nil)
	assert.ErrorIs(t, err, errors.ErrUnsupportedDirective)

	_, err = MergeTags("Keep", nil, nil)
	assert.ErrorIs(t, err, errors.ErrUnsupportedDirective)
}

func TestMergeTags_KeepsCase(t *testing.T) {
	got, err := MergeTags(s3types.DirectiveAdd, map[string]string{"Env": "prod"}, map[string]string{"Team": "a"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Env": "prod", "Team": "a"}, got)
}

func TestHeadersFromHead_RoundTrip(t *testing.T) {
	expires := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	head := &s3.HeadObjectOutput{
		ContentType:          aws.String("text/html"),
		CacheControl:         aws.String("max-age=60"),
		ExpiresString:        aws.String(expires.Format("Mon, 02 Jan 2006 15:04:05 GMT")),
		StorageClass:         awstypes.StorageClassStandardIa,
		ServerSideEncryption: awstypes.ServerSideEncryptionAwsKms,
		SSEKMSKeyId:          aws.String("key-1"),
		BucketKeyEnabled:     aws.Bool(true),
		ContentLength:        aws.Int64(10),
		Metadata:             map[string]string{"Owner": "alice"},
	}

	h := HeadersFromHead(head)
	assert.Equal(t, "10", h[HeaderContentLength])
	assert.Equal(t, "alice", h["x-amz-meta-owner"])

	merged, err := Merge(s3types.DirectiveCopy, h, nil)
	require.NoError(t, err)

	in := &s3.CopyObjectInput{}
	headersToWrite(merged).applyToCopy(in)
	assert.Equal(t, "text/html", aws.ToString(in.ContentType))
	assert.Equal(t, "max-age=60", aws.ToString(in.CacheControl))
	require.NotNil(t, in.Expires)
	assert.True(t, expires.Equal(*in.Expires))
	assert.Equal(t, awstypes.StorageClassStandardIa, in.StorageClass)
	assert.Equal(t, awstypes.ServerSideEncryptionAwsKms, in.ServerSideEncryption)
	assert.Equal(t, "key-1", aws.ToString(in.SSEKMSKeyId))
	assert.True(t, aws.ToBool(in.BucketKeyEnabled))
	assert.Equal(t, map[string]string{"owner": "alice"}, in.Metadata)
}

func TestACLFromGrants(t *testing.T) {
	out := &s3.GetObjectAclOutput{
		Owner: &awstypes.Owner{ID: aws.String("owner")},
		Grants: []awstypes.Grant{
			{Grantee: &awstypes.Grantee{ID: aws.String("owner")}, Permission: awstypes.PermissionFullControl},
			{Grantee: &awstypes.Grantee{URI: aws.String("http://acs.amazonaws.com/groups/global/AllUsers")}, Permission: awstypes.PermissionRead},
			{Grantee: &awstypes.Grantee{ID: aws.String("zed")}, Permission: awstypes.PermissionRead},
			{Grantee: &awstypes.Grantee{EmailAddress: aws.String("a@b.c")}, Permission: awstypes.PermissionReadAcp},
			{Grantee: &awstypes.Grantee{ID: aws.String("other")}, Permission: awstypes.PermissionWrite},
		},
	}

	acl := ACLFromGrants(out)
	assert.Equal(t, map[string]string{
		ACLGrantRead:    `id="zed", uri="http://acs.amazonaws.com/groups/global/AllUsers"`,
		ACLGrantReadACP: `emailAddress="a@b.c"`,
	}, acl)
}

func TestACLFromGrants_PrivateIsEmpty(t *testing.T) {
	out := &s3.GetObjectAclOutput{
		Owner:  &awstypes.Owner{ID: aws.String("owner")},
		Grants: []awstypes.Grant{{Grantee: &awstypes.Grantee{ID: aws.String("owner")}, Permission: awstypes.PermissionFullControl}},
	}
	assert.Empty(t, ACLFromGrants(out))
}

func TestACLToWrite_CannedWins(t *testing.T) {
	in := &s3.CopyObjectInput{}
	aclToWrite(map[string]string{ACLCanned: "public-read", ACLGrantRead: `id="x"`}).applyToCopy(in)
	assert.Equal(t, awstypes.ObjectCannedACLPublicRead, in.ACL)
	assert.Nil(t, in.GrantRead)
}

func TestTagSet_Sorted(t *testing.T) {
	set := tagSet(map[string]string{"b": "2", "a": "1"})
	require.Len(t, set, 2)
	assert.Equal(t, "a", aws.ToString(set[0].Key))
	assert.Equal(t, "b", aws.ToString(set[1].Key))
}
