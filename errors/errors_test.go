package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "bucket and key",
			err:  NewObjectError("copy", "bucket", "a/b.txt", ErrChecksumMismatch),
			want: "s3copy.copy bucket/a/b.txt: s3copy: checksum mismatch",
		},
		{
			name: "bucket only",
			err:  NewError("list", ErrObjectNotFound).WithBucket("bucket"),
			want: "s3copy.list bucket bucket: s3copy: object not found",
		},
		{
			name: "key only",
			err:  NewError("target", ErrInvalidArgument).WithKey("x"),
			want: "s3copy.target object x: s3copy: invalid argument",
		},
		{
			name: "bare",
			err:  NewError("run", ErrCanceled),
			want: "s3copy.run: s3copy: canceled",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_WithMessageKeepsChain(t *testing.T) {
	err := NewError("verify", ErrChecksumMismatch).WithMessage("crc64 differs")

	assert.True(t, IsChecksumMismatch(err))
	assert.Contains(t, err.Error(), "crc64 differs")
	assert.Equal(t, CodeChecksumMismatch, err.Code)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{name: "nil", err: nil, want: ""},
		{name: "argument", err: fmt.Errorf("wrap: %w", ErrInvalidArgument), want: CodeInvalidInput},
		{name: "directive", err: ErrUnsupportedDirective, want: CodeUnsupported},
		{name: "threshold", err: ErrThresholdExceeded, want: CodeThreshold},
		{name: "context canceled", err: context.Canceled, want: CodeCanceled},
		{name: "deadline", err: context.DeadlineExceeded, want: CodeTimeout},
		{name: "no such key", err: &smithy.GenericAPIError{Code: "NoSuchKey"}, want: CodeNotFound},
		{name: "access denied", err: &smithy.GenericAPIError{Code: "AccessDenied"}, want: CodeForbidden},
		{name: "slow down", err: &smithy.GenericAPIError{Code: "SlowDown"}, want: CodeRateLimit},
		{name: "other api error", err: &smithy.GenericAPIError{Code: "InternalError"}, want: CodeNetwork},
		{name: "plain", err: fmt.Errorf("boom"), want: CodeUnknown},
		{name: "explicit code wins", err: NewError("x", fmt.Errorf("boom")).WithCode(CodeTimeout), want: CodeTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}
