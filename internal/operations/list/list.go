package list

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// MaxPageSize is the largest page S3 returns.
const MaxPageSize int32 = 1000

// S3Interface defines the S3 operations we need.
type S3Interface interface {
	ListObjectsV2(
		ctx context.Context,
		input *s3.ListObjectsV2Input,
		opts ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)
}

// Lister handles listing of S3 prefixes one page at a time.
type Lister struct {
	client   S3Interface
	pageSize int32
}

// New creates a new Lister. A pageSize outside (0, 1000] selects 1000.
func New(client S3Interface, pageSize int32) *Lister {
	if pageSize <= 0 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &Lister{
		client:   client,
		pageSize: pageSize,
	}
}

// Config holds configuration for list operations.
type Config struct {
	Bucket            string
	Region            string
	Prefix            string
	Delimiter         string
	ContinuationToken string
}

// Result represents one page of a listing.
type Result struct {
	Objects           []s3types.Object
	CommonPrefixes    []string
	IsTruncated       bool
	ContinuationToken string
	KeyCount          int
}

// List fetches the page of config.Prefix that starts at
// config.ContinuationToken.
func (l *Lister) List(ctx context.Context, config *Config) (*Result, error) {
	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(config.Bucket),
		Prefix:  aws.String(config.Prefix),
		MaxKeys: aws.Int32(l.pageSize),
	}
	if config.Delimiter != "" {
		input.Delimiter = aws.String(config.Delimiter)
	}
	if config.ContinuationToken != "" {
		input.ContinuationToken = aws.String(config.ContinuationToken)
	}

	output, err := l.client.ListObjectsV2(ctx, input, s3api.WithRegion(config.Region))
	if err != nil {
		return nil, errors.NewError("list", err).WithBucket(config.Bucket).WithKey(config.Prefix)
	}

	return convertOutput(output), nil
}

// ListWithPaginator creates a paginator over every page of config.Prefix.
func (l *Lister) ListWithPaginator(config *Config) *Paginator {
	return &Paginator{
		lister:    l,
		config:    *config,
		firstPage: true,
	}
}

// ListAll streams every object under config.Prefix. A listing error is
// sent as the final value.
func (l *Lister) ListAll(ctx context.Context, config *Config) <-chan ObjectResult {
	resultChan := make(chan ObjectResult, 100)

	go func() {
		defer close(resultChan)

		paginator := l.ListWithPaginator(config)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				select {
				case resultChan <- ObjectResult{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			for _, obj := range page.Objects {
				select {
				case resultChan <- ObjectResult{Object: obj}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return resultChan
}

// ObjectResult wraps an object or error.
type ObjectResult struct {
	Object s3types.Object
	Err    error
}

// Paginator walks a listing page by page.
type Paginator struct {
	lister       *Lister
	config       Config
	hasMorePages bool
	firstPage    bool
}

// HasMorePages returns true if there are more pages to fetch.
func (p *Paginator) HasMorePages() bool {
	return p.firstPage || p.hasMorePages
}

// NextPage fetches the next page of results.
func (p *Paginator) NextPage(ctx context.Context) (*Result, error) {
	page, err := p.lister.List(ctx, &p.config)
	if err != nil {
		return nil, err
	}

	p.firstPage = false
	p.hasMorePages = page.IsTruncated && page.ContinuationToken != ""
	p.config.ContinuationToken = page.ContinuationToken
	return page, nil
}

// convertOutput converts S3 output to our Result type.
func convertOutput(output *s3.ListObjectsV2Output) *Result {
	result := &Result{
		Objects:        make([]s3types.Object, 0, len(output.Contents)),
		CommonPrefixes: make([]string, 0, len(output.CommonPrefixes)),
		IsTruncated:    aws.ToBool(output.IsTruncated),
		KeyCount:       int(aws.ToInt32(output.KeyCount)),
	}

	if output.NextContinuationToken != nil {
		result.ContinuationToken = *output.NextContinuationToken
	}

	for _, obj := range output.Contents {
		result.Objects = append(result.Objects, s3types.Object{
			Key:          aws.ToString(obj.Key),
			Size:         aws.ToInt64(obj.Size),
			LastModified: aws.ToTime(obj.LastModified),
			ETag:         aws.ToString(obj.ETag),
			StorageClass: string(obj.StorageClass),
		})
	}

	for _, prefix := range output.CommonPrefixes {
		result.CommonPrefixes = append(result.CommonPrefixes, aws.ToString(prefix.Prefix))
	}

	return result
}
