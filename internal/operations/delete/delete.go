package delete

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// S3Interface defines the S3 operations we need.
type S3Interface interface {
	DeleteObject(
		ctx context.Context,
		input *s3.DeleteObjectInput,
		opts ...func(*s3.Options),
	) (*s3.DeleteObjectOutput, error)
}

// Deleter removes copy sources.
type Deleter struct {
	client S3Interface
}

// New creates a new Deleter.
func New(client S3Interface) *Deleter {
	return &Deleter{client: client}
}

// Delete removes the object at loc, routing the request to loc.Region.
func (d *Deleter) Delete(ctx context.Context, loc s3types.Location) error {
	if loc.Key == "" {
		return errors.NewError("delete", errors.ErrInvalidObjectKey).WithBucket(loc.Bucket)
	}

	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
	}, s3api.WithRegion(loc.Region))
	if err != nil {
		return errors.NewObjectError("delete", loc.Bucket, loc.Key, err)
	}
	return nil
}
