package copy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/operations/delete"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/pool"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// Copier copies one object at a time, with automatic multipart support.
type Copier struct {
	s3Client        s3api.S3API
	deleter         *delete.Deleter
	interceptors    []s3types.Interceptor
	chunkSize       int64
	partSize        int64
	partConcurrency int
	detect          bool
	logger          *slog.Logger
	metrics         *metrics.Recorder
}

// Option configures a Copier.
type Option func(*Copier)

// WithInterceptors appends interceptors, run in order before every copy.
func WithInterceptors(interceptors ...s3types.Interceptor) Option {
	return func(c *Copier) {
		for _, ic := range interceptors {
			if ic != nil {
				c.interceptors = append(c.interceptors, ic)
			}
		}
	}
}

// WithChunkSize sets the split size used when placement changes.
func WithChunkSize(size int64) Option {
	return func(c *Copier) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithPartSize sets the UploadPartCopy part size.
func WithPartSize(size int64) Option {
	return func(c *Copier) {
		if size > 0 {
			c.partSize = size
		}
	}
}

// WithPartConcurrency bounds concurrent part copies of one object.
func WithPartConcurrency(n int) Option {
	return func(c *Copier) {
		if n > 0 {
			c.partConcurrency = n
		}
	}
}

// WithDetectContentType fills a missing Content-Type from the object's
// leading bytes.
func WithDetectContentType(detect bool) Option {
	return func(c *Copier) {
		c.detect = detect
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Copier) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Copier) {
		c.metrics = m
	}
}

// NewCopier creates a new copy operation handler.
func NewCopier(s3Client s3api.S3API, opts ...Option) *Copier {
	c := &Copier{
		s3Client:        s3Client,
		deleter:         delete.New(s3Client),
		chunkSize:       MaxSingleCopySize,
		partSize:        DefaultPartSize,
		partConcurrency: DefaultPartConcurrency,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SourceURL builds the CopySource value for bucket/key.
func SourceURL(bucket, key string) string {
	return (&url.URL{Path: bucket + "/" + key}).EscapedPath()
}

// source is what was read from the source object. tags is nil when the tag
// set was not needed.
type source struct {
	head *s3.HeadObjectOutput
	acl  map[string]string
	tags map[string]string
}

// CopyOne copies the object addressed by p, then verifies and deletes the
// source when p.DeleteSource is set.
func (c *Copier) CopyOne(ctx context.Context, p Params) (*s3types.Outcome, error) {
	for _, d := range []s3types.Directive{p.HeaderDirective, p.ACLDirective, p.TagDirective} {
		if !validDirective(d) {
			return nil, errors.NewObjectError("copy", p.Source.Bucket, p.Source.Key, errors.ErrUnsupportedDirective).
				WithMessage(string(d))
		}
	}

	targetKey, err := TargetKey(p.Source, p.Target.Key, p.KeyTemplate, p.RelativePrefix)
	if err != nil {
		return nil, err
	}
	target := p.Target
	target.Key = targetKey
	if target.Bucket == "" {
		target.Bucket = p.Source.Bucket
	}
	if target.Region == "" {
		target.Region = p.Source.Region
	}

	src, err := c.readSource(ctx, p)
	if err != nil {
		return nil, err
	}
	req, err := c.buildRequest(ctx, p, target, src)
	if err != nil {
		return nil, err
	}

	req, short, err := c.intercept(ctx, req)
	if err != nil {
		return nil, err
	}
	if short != nil {
		c.logger.Debug("copy short-circuited", "bucket", p.Source.Bucket, "key", p.Source.Key)
		return short, nil
	}

	outcome := &s3types.Outcome{Source: req.Source, Target: req.Target, Bytes: req.Size}
	threshold := chunkThreshold(c.chunkSize, req.NeedsUpdateStorage)
	mode := metrics.ModeSingle
	if useMultipart(req.Size, threshold) {
		mode = metrics.ModeMultipart
		outcome.Multipart = true
		err = c.multipartCopy(ctx, req, multipartChecksum(src.head))
	} else {
		err = c.simpleCopy(ctx, req)
	}
	if err != nil {
		return nil, err
	}
	outcome.Copied = true
	c.metrics.RecordCopy(mode, req.Size)

	if len(req.Tags) > 0 {
		if err := c.putTags(ctx, req.Target, req.Tags); err != nil {
			return nil, err
		}
	}

	c.logger.Debug("copied object",
		"bucket", req.Source.Bucket,
		"key", req.Source.Key,
		"target_bucket", req.Target.Bucket,
		"target_key", req.Target.Key,
		"bytes", req.Size,
		"mode", mode,
	)

	if p.DeleteSource {
		if err := c.verifyAndDelete(ctx, req, outcome); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

func validDirective(d s3types.Directive) bool {
	switch d {
	case "", s3types.DirectiveCopy, s3types.DirectiveAdd, s3types.DirectiveReplaced:
		return true
	}
	return false
}

// readSource fetches the source headers, ACL and tags concurrently. A
// Replaced directive makes the matching read unnecessary; tags are still
// read when loop avoidance needs them.
func (c *Copier) readSource(ctx context.Context, p Params) (*source, error) {
	g, gctx := errgroup.WithContext(ctx)
	region := s3api.WithRegion(p.Source.Region)
	bucket, key := aws.String(p.Source.Bucket), aws.String(p.Source.Key)
	src := &source{}

	g.Go(func() error {
		out, err := c.s3Client.HeadObject(gctx, &s3.HeadObjectInput{
			Bucket:       bucket,
			Key:          key,
			ChecksumMode: awstypes.ChecksumModeEnabled,
		}, region)
		if err != nil {
			return errors.NewObjectError("headObject", p.Source.Bucket, p.Source.Key, err)
		}
		src.head = out
		return nil
	})

	if p.ACLDirective != s3types.DirectiveReplaced {
		g.Go(func() error {
			out, err := c.s3Client.GetObjectAcl(gctx, &s3.GetObjectAclInput{Bucket: bucket, Key: key}, region)
			if err != nil {
				return errors.NewObjectError("getObjectAcl", p.Source.Bucket, p.Source.Key, err)
			}
			src.acl = ACLFromGrants(out)
			return nil
		})
	}

	if p.TagDirective != s3types.DirectiveReplaced || loopCheck(p.TriggerType, p.AvoidLoop) {
		g.Go(func() error {
			out, err := c.s3Client.GetObjectTagging(gctx, &s3.GetObjectTaggingInput{Bucket: bucket, Key: key}, region)
			if err != nil {
				return errors.NewObjectError("getObjectTagging", p.Source.Bucket, p.Source.Key, err)
			}
			src.tags = TagsFromOutput(out)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return src, nil
}

func (c *Copier) buildRequest(
	ctx context.Context,
	p Params,
	target s3types.Location,
	src *source,
) (*s3types.CopyRequest, error) {
	headers, err := Merge(p.HeaderDirective, HeadersFromHead(src.head), p.Headers)
	if err != nil {
		return nil, err
	}
	if p.StorageClass != "" {
		headers[HeaderStorageClass] = string(p.StorageClass)
	}
	acl, err := Merge(p.ACLDirective, src.acl, p.ACL)
	if err != nil {
		return nil, err
	}
	tags, err := MergeTags(p.TagDirective, src.tags, p.Tags)
	if err != nil {
		return nil, err
	}

	size := aws.ToInt64(src.head.ContentLength)
	if c.detect && headers[HeaderContentType] == "" {
		contentType, err := c.sniff(ctx, p.Source, size)
		if err != nil {
			c.logger.Warn("content type detection failed",
				"bucket", p.Source.Bucket, "key", p.Source.Key, "error", err)
		} else if contentType != "" {
			headers[HeaderContentType] = contentType
		}
	}

	// Caller headers only reach the target under Add or Replaced.
	var targetClass, targetSSE string
	if p.HeaderDirective == s3types.DirectiveAdd || p.HeaderDirective == s3types.DirectiveReplaced {
		targetClass = lookupHeader(p.Headers, HeaderStorageClass)
		targetSSE = lookupHeader(p.Headers, HeaderSSE)
	}
	if p.StorageClass != "" {
		targetClass = string(p.StorageClass)
	}

	return &s3types.CopyRequest{
		Source:     p.Source,
		Target:     target,
		Headers:    headers,
		ACL:        acl,
		Tags:       tags,
		SourceTags: src.tags,
		Size:       size,
		NeedsUpdateStorage: needsUpdateStorage(placement{
			sourceRegion:       p.Source.Region,
			targetRegion:       target.Region,
			sourceStorageClass: string(src.head.StorageClass),
			targetStorageClass: targetClass,
			sourceSSE:          string(src.head.ServerSideEncryption),
			targetSSE:          targetSSE,
		}),
		TriggerType: p.TriggerType,
		AvoidLoop:   p.AvoidLoop,
	}, nil
}

func lookupHeader(h map[string]string, name string) string {
	for k, v := range h {
		if strings.EqualFold(strings.TrimSpace(k), name) {
			return v
		}
	}
	return ""
}

// intercept runs the interceptor chain. A non-nil outcome means the copy
// was short-circuited.
func (c *Copier) intercept(
	ctx context.Context,
	req *s3types.CopyRequest,
) (*s3types.CopyRequest, *s3types.Outcome, error) {
	for _, ic := range c.interceptors {
		d := ic(ctx, req)
		switch d.Kind {
		case s3types.Proceed:
			if d.Request != nil {
				req = d.Request
			}
		case s3types.ShortCircuit:
			if d.Outcome != nil {
				return nil, d.Outcome, nil
			}
			return nil, &s3types.Outcome{Source: req.Source, Target: req.Target}, nil
		case s3types.Fail:
			err := d.Err
			if err == nil {
				err = errors.ErrInvalidArgument
			}
			return nil, nil, errors.NewObjectError("intercept", req.Source.Bucket, req.Source.Key, err)
		default:
			return nil, nil, errors.NewObjectError("intercept", req.Source.Bucket, req.Source.Key, errors.ErrInvalidArgument).
				WithMessage(fmt.Sprintf("unknown decision kind %d", d.Kind))
		}
	}
	return req, nil, nil
}

// simpleCopy performs a simple copy operation using CopyObject
func (c *Copier) simpleCopy(ctx context.Context, req *s3types.CopyRequest) error {
	copySource := SourceURL(req.Source.Bucket, req.Source.Key)

	input := &s3.CopyObjectInput{
		Bucket:            aws.String(req.Target.Bucket),
		Key:               aws.String(req.Target.Key),
		CopySource:        aws.String(copySource),
		MetadataDirective: awstypes.MetadataDirectiveReplace,
		TaggingDirective:  awstypes.TaggingDirectiveReplace,
	}
	headersToWrite(req.Headers).applyToCopy(input)
	aclToWrite(req.ACL).applyToCopy(input)

	_, err := c.s3Client.CopyObject(ctx, input, s3api.WithRegion(req.Target.Region))
	if err != nil {
		return errors.NewError("simpleCopy", err).
			WithBucket(req.Target.Bucket).
			WithKey(req.Target.Key).
			WithMessage("failed to copy from " + copySource)
	}
	return nil
}

// multipartCopy performs a multipart copy operation for large objects. A
// non-empty algo asks S3 for a full-object checksum under that algorithm so
// the target can be verified against the source.
func (c *Copier) multipartCopy(ctx context.Context, req *s3types.CopyRequest, algo awstypes.ChecksumAlgorithm) error {
	partSize, numParts := partLayout(req.Size, c.partSize)

	uploadID, err := c.createMultipartUpload(ctx, req, algo)
	if err != nil {
		return err
	}

	parts, err := c.copyParts(ctx, req, uploadID, partSize, numParts)
	if err != nil {
		// The part copies may have failed because ctx ended; cleanup must
		// still reach S3.
		c.abortMultipartUpload(context.WithoutCancel(ctx), req.Target, uploadID)
		return err
	}

	return c.completeMultipartUpload(ctx, req.Target, uploadID, algo, parts)
}

// createMultipartUpload creates a new multipart upload for copy destination
func (c *Copier) createMultipartUpload(
	ctx context.Context,
	req *s3types.CopyRequest,
	algo awstypes.ChecksumAlgorithm,
) (string, error) {
	input := &s3.CreateMultipartUploadInput{
		Bucket: aws.String(req.Target.Bucket),
		Key:    aws.String(req.Target.Key),
	}
	if algo != "" {
		input.ChecksumAlgorithm = algo
		input.ChecksumType = awstypes.ChecksumTypeFullObject
	}
	headersToWrite(req.Headers).applyToMultipart(input)
	aclToWrite(req.ACL).applyToMultipart(input)

	output, err := c.s3Client.CreateMultipartUpload(ctx, input, s3api.WithRegion(req.Target.Region))
	if err != nil {
		return "", errors.NewError("createMultipartUpload", err).WithBucket(req.Target.Bucket).WithKey(req.Target.Key)
	}

	return aws.ToString(output.UploadId), nil
}

// copyParts copies all parts, at most partConcurrency at a time.
func (c *Copier) copyParts(
	ctx context.Context,
	req *s3types.CopyRequest,
	uploadID string,
	partSize int64,
	numParts int,
) ([]awstypes.CompletedPart, error) {
	parts := make([]awstypes.CompletedPart, numParts)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.partConcurrency)
	for i := 0; i < numParts; i++ {
		partNumber := int32(i + 1)
		g.Go(func() error {
			part, err := c.copyPart(gctx, req, uploadID, partSize, partNumber)
			if err != nil {
				return err
			}
			parts[partNumber-1] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return parts, nil
}

// copyPart copies a single part from source to destination. The part
// checksums S3 returns are carried into the completed part.
func (c *Copier) copyPart(
	ctx context.Context,
	req *s3types.CopyRequest,
	uploadID string,
	partSize int64,
	partNumber int32,
) (awstypes.CompletedPart, error) {
	offset := int64(partNumber-1) * partSize
	size := partSize
	if offset+size > req.Size {
		size = req.Size - offset
	}

	input := &s3.UploadPartCopyInput{
		Bucket:     aws.String(req.Target.Bucket),
		Key:        aws.String(req.Target.Key),
		CopySource: aws.String(SourceURL(req.Source.Bucket, req.Source.Key)),
		UploadId:   aws.String(uploadID),
		PartNumber: aws.Int32(partNumber),
	}
	// An empty object is copied as one part without a range.
	if size > 0 {
		input.CopySourceRange = aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+size-1))
	}

	part := awstypes.CompletedPart{PartNumber: aws.Int32(partNumber)}
	output, err := c.s3Client.UploadPartCopy(ctx, input, s3api.WithRegion(req.Target.Region))
	if err != nil {
		return part, errors.NewError("copyPart", err).
			WithBucket(req.Target.Bucket).
			WithKey(req.Target.Key).
			WithMessage(fmt.Sprintf("failed to copy part %d", partNumber))
	}
	if r := output.CopyPartResult; r != nil {
		part.ETag = r.ETag
		part.ChecksumCRC64NVME = r.ChecksumCRC64NVME
		part.ChecksumCRC32C = r.ChecksumCRC32C
		part.ChecksumCRC32 = r.ChecksumCRC32
		part.ChecksumSHA256 = r.ChecksumSHA256
		part.ChecksumSHA1 = r.ChecksumSHA1
	}
	return part, nil
}

// completeMultipartUpload completes the multipart copy
func (c *Copier) completeMultipartUpload(
	ctx context.Context,
	target s3types.Location,
	uploadID string,
	algo awstypes.ChecksumAlgorithm,
	parts []awstypes.CompletedPart,
) error {
	input := &s3.CompleteMultipartUploadInput{
		Bucket:   aws.String(target.Bucket),
		Key:      aws.String(target.Key),
		UploadId: aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{
			Parts: parts,
		},
	}
	if algo != "" {
		input.ChecksumType = awstypes.ChecksumTypeFullObject
	}

	_, err := c.s3Client.CompleteMultipartUpload(ctx, input, s3api.WithRegion(target.Region))
	if err != nil {
		c.abortMultipartUpload(context.WithoutCancel(ctx), target, uploadID)
		return errors.NewError("completeMultipartUpload", err).WithBucket(target.Bucket).WithKey(target.Key)
	}

	return nil
}

// abortMultipartUpload cleans up a failed multipart copy
func (c *Copier) abortMultipartUpload(ctx context.Context, target s3types.Location, uploadID string) {
	input := &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(target.Bucket),
		Key:      aws.String(target.Key),
		UploadId: aws.String(uploadID),
	}
	if _, err := c.s3Client.AbortMultipartUpload(ctx, input, s3api.WithRegion(target.Region)); err != nil {
		c.logger.Warn("abort multipart upload failed",
			"bucket", target.Bucket, "key", target.Key, "upload_id", uploadID, "error", err)
	}
}

func (c *Copier) putTags(ctx context.Context, target s3types.Location, tags map[string]string) error {
	_, err := c.s3Client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:  aws.String(target.Bucket),
		Key:     aws.String(target.Key),
		Tagging: &awstypes.Tagging{TagSet: tagSet(tags)},
	}, s3api.WithRegion(target.Region))
	if err != nil {
		return errors.NewObjectError("putObjectTagging", target.Bucket, target.Key, err)
	}
	return nil
}

// verifyAndDelete deletes the source once the target is known to hold the
// same content. A source without a checksum is kept.
func (c *Copier) verifyAndDelete(ctx context.Context, req *s3types.CopyRequest, outcome *s3types.Outcome) error {
	if req.Source.SameObject(req.Target) {
		outcome.Messages = append(outcome.Messages, "source is the target; delete skipped")
		return nil
	}

	var srcHead, dstHead *s3.HeadObjectOutput
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		srcHead, err = c.headWithChecksum(gctx, req.Source)
		return err
	})
	g.Go(func() (err error) {
		dstHead, err = c.headWithChecksum(gctx, req.Target)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	want, got, present := compareChecksums(srcHead, dstHead)
	if !present {
		c.keepSource(req, outcome, "source has no checksum; delete skipped")
		return nil
	}
	if outcome.Multipart && !fullObjectChecksum(want.Algorithm) {
		c.keepSource(req, outcome, fmt.Sprintf("multipart copy cannot keep a %s checksum; delete skipped", want.Algorithm))
		return nil
	}
	if isComposite(want.Value) || isComposite(got) {
		c.keepSource(req, outcome, fmt.Sprintf("composite %s checksum cannot be compared; delete skipped", want.Algorithm))
		return nil
	}
	if got == "" || got != want.Value {
		return errors.NewObjectError("verify", req.Target.Bucket, req.Target.Key, errors.ErrChecksumMismatch).
			WithMessage(fmt.Sprintf("%s source=%q target=%q", want.Algorithm, want.Value, got))
	}

	if err := c.deleter.Delete(ctx, req.Source); err != nil {
		return err
	}
	outcome.Deleted = true
	c.metrics.RecordDelete()
	return nil
}

func (c *Copier) keepSource(req *s3types.CopyRequest, outcome *s3types.Outcome, msg string) {
	c.logger.Warn(msg, "bucket", req.Source.Bucket, "key", req.Source.Key)
	outcome.Messages = append(outcome.Messages, msg)
}

func (c *Copier) headWithChecksum(ctx context.Context, loc s3types.Location) (*s3.HeadObjectOutput, error) {
	out, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket:       aws.String(loc.Bucket),
		Key:          aws.String(loc.Key),
		ChecksumMode: awstypes.ChecksumModeEnabled,
	}, s3api.WithRegion(loc.Region))
	if err != nil {
		return nil, errors.NewObjectError("headObject", loc.Bucket, loc.Key, err)
	}
	return out, nil
}

// sniff detects the content type of the object at loc from its first bytes.
func (c *Copier) sniff(ctx context.Context, loc s3types.Location, size int64) (string, error) {
	if size <= 0 {
		return "", nil
	}
	end := min(size, pool.SniffSize) - 1

	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Bucket),
		Key:    aws.String(loc.Key),
		Range:  aws.String(fmt.Sprintf("bytes=0-%d", end)),
	}, s3api.WithRegion(loc.Region))
	if err != nil {
		return "", errors.NewObjectError("sniff", loc.Bucket, loc.Key, err)
	}
	defer out.Body.Close()

	buf := pool.GetSniffBuffer()
	defer pool.PutSniffBuffer(buf)

	data, err := pool.ReadPrefix(out.Body, *buf)
	if err != nil {
		return "", errors.NewObjectError("sniff", loc.Bucket, loc.Key, err)
	}
	return mimetype.Detect(data).String(), nil
}
