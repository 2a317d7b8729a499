package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
)

func TestValidateHeaders(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		wantErr string
	}{
		{name: "nil", headers: nil},
		{name: "plain headers", headers: map[string]string{"Cache-Control": "no-cache", "content-type": "text/plain; charset=utf-8"}},
		{name: "metadata", headers: map[string]string{"x-amz-meta-owner": "alice"}},
		{name: "empty value is ignored", headers: map[string]string{"expires": ""}},
		{name: "expires", headers: map[string]string{"Expires": "Wed, 21 Oct 2026 07:28:00 GMT"}},
		{name: "storage class", headers: map[string]string{"x-amz-storage-class": "GLACIER_IR"}},
		{name: "kms", headers: map[string]string{
			"x-amz-server-side-encryption":                    "aws:kms",
			"x-amz-server-side-encryption-bucket-key-enabled": "true",
		}},

		{name: "header injection", headers: map[string]string{"Content-Type": "text/html\r\nX-Evil: 1"}, wantErr: "control characters"},
		{name: "bad header name", headers: map[string]string{"cache control": "no-cache"}, wantErr: "not a valid HTTP field name"},
		{name: "bad content type", headers: map[string]string{"Content-Type": "not a type"}, wantErr: "content-type"},
		{name: "bad expires", headers: map[string]string{"expires": "tomorrow"}, wantErr: "HTTP date"},
		{name: "unknown storage class", headers: map[string]string{"x-amz-storage-class": "COLD"}, wantErr: "storage class"},
		{name: "unknown encryption", headers: map[string]string{"x-amz-server-side-encryption": "rot13"}, wantErr: "encryption"},
		{name: "bad bucket key flag", headers: map[string]string{"x-amz-server-side-encryption-bucket-key-enabled": "yes"}, wantErr: "true or false"},
		{name: "empty metadata name", headers: map[string]string{"x-amz-meta-": "v"}, wantErr: "needs a name"},
		{name: "metadata name with colon", headers: map[string]string{"X-Amz-Meta-aws:owner": "v"}, wantErr: "not a valid HTTP field name"},
		{
			name:    "metadata too large",
			headers: map[string]string{"x-amz-meta-a": strings.Repeat("v", 1500), "x-amz-meta-b": strings.Repeat("v", 600)},
			wantErr: "limit is 2048",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateHeaders(tt.headers)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, errors.ErrInvalidArgument)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateACL(t *testing.T) {
	allUsers := `uri="http://acs.amazonaws.com/groups/global/AllUsers"`
	tests := []struct {
		name    string
		acl     map[string]string
		wantErr string
	}{
		{name: "nil", acl: nil},
		{name: "canned", acl: map[string]string{"X-Amz-Acl": "bucket-owner-full-control"}},
		{name: "grant", acl: map[string]string{"x-amz-grant-read": allUsers}},
		{name: "grant list", acl: map[string]string{"x-amz-grant-full-control": `id="abc123", emailAddress="ops@example.com"`}},
		{name: "empty canned with grant", acl: map[string]string{"x-amz-acl": "", "x-amz-grant-read": allUsers}},

		{name: "unknown canned", acl: map[string]string{"x-amz-acl": "world-writable"}, wantErr: "unknown canned ACL"},
		{name: "unknown header", acl: map[string]string{"x-amz-grant-write": allUsers}, wantErr: "not an ACL header"},
		{name: "malformed grantee", acl: map[string]string{"x-amz-grant-read": "everyone"}, wantErr: "malformed grantee"},
		{name: "unquoted grantee", acl: map[string]string{"x-amz-grant-read-acp": "id=abc"}, wantErr: "malformed grantee"},
		{
			name:    "canned with grants",
			acl:     map[string]string{"x-amz-acl": "private", "x-amz-grant-read": allUsers},
			wantErr: "cannot be combined",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateACL(tt.acl)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, errors.ErrInvalidArgument)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateTags(t *testing.T) {
	many := make(map[string]string)
	for i := 0; i < MaxTags+1; i++ {
		many[strings.Repeat("k", i+1)] = "v"
	}

	tests := []struct {
		name    string
		tags    map[string]string
		wantErr string
	}{
		{name: "nil", tags: nil},
		{name: "plain", tags: map[string]string{"env": "prod", "team": ""}},
		{name: "long unicode value", tags: map[string]string{"note": strings.Repeat("é", 256)}},

		{name: "too many", tags: many, wantErr: "limit is 10"},
		{name: "empty key", tags: map[string]string{"": "v"}, wantErr: "cannot be empty"},
		{name: "long key", tags: map[string]string{strings.Repeat("k", 129): "v"}, wantErr: "exceeds 128"},
		{name: "long value", tags: map[string]string{"k": strings.Repeat("v", 257)}, wantErr: "exceeds 256"},
		{name: "reserved prefix", tags: map[string]string{"AWS:cloudformation:stack": "x"}, wantErr: "reserved"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTags(tt.tags)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, errors.ErrInvalidArgument)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
