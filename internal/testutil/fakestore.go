package testutil

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/s3api"
)

// OwnerID is the canonical user id the fake store reports as object owner.
const OwnerID = "fake-owner-id"

// AllUsersURI is the grantee URI of the anonymous group.
const AllUsersURI = "http://acs.amazonaws.com/groups/global/AllUsers"

// FakeObject is an object held by FakeStore.
type FakeObject struct {
	Body []byte

	ContentType        string
	CacheControl       string
	ContentDisposition string
	ContentEncoding    string
	ContentLanguage    string
	Expires            *time.Time
	StorageClass       types.StorageClass
	SSE                types.ServerSideEncryption
	SSEKMSKeyID        string
	Metadata           map[string]string

	Grants []types.Grant
	Tags   map[string]string

	// Checksums are reported by HeadObject when checksum mode is enabled.
	Checksums map[types.ChecksumAlgorithm]string

	ETag         string
	LastModified time.Time
}

func (o *FakeObject) clone() *FakeObject {
	c := *o
	c.Body = append([]byte(nil), o.Body...)
	c.Metadata = cloneMap(o.Metadata)
	c.Tags = cloneMap(o.Tags)
	c.Grants = append([]types.Grant(nil), o.Grants...)
	c.Checksums = make(map[types.ChecksumAlgorithm]string, len(o.Checksums))
	for k, v := range o.Checksums {
		c.Checksums[k] = v
	}
	return &c
}

// Call records one request served by FakeStore.
type Call struct {
	Op     string
	Bucket string
	Key    string
	Region string
}

type fakeUpload struct {
	bucket string
	key    string
	object *FakeObject
	parts  map[int32][]byte

	// algorithm and checksumType describe the checksum the assembled object
	// gets. requested is set when the caller chose the algorithm, in which
	// case every completed part must carry its checksum.
	algorithm    types.ChecksumAlgorithm
	checksumType types.ChecksumType
	requested    bool
}

// FakeStore is an in-memory S3 implementing s3api.S3API. It keeps enough
// behaviour for copy scenarios: listing with continuation tokens, headers,
// ACL grants, tags, checksums, multipart copies and bucket regions.
type FakeStore struct {
	mu      sync.Mutex
	objects map[string]*FakeObject
	regions map[string]string
	uploads map[string]*fakeUpload
	calls   []Call
	nextID  int
}

// NewFakeStore returns an empty store.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		objects: make(map[string]*FakeObject),
		regions: make(map[string]string),
		uploads: make(map[string]*fakeUpload),
	}
}

var _ s3api.S3API = (*FakeStore)(nil)

// SetBucketRegion pins bucket to region. Requests routed to another region
// fail with a PermanentRedirect error.
func (f *FakeStore) SetBucketRegion(bucket, region string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regions[bucket] = region
}

// Put stores obj under bucket/key, filling ETag and LastModified.
func (f *FakeStore) Put(bucket, key string, obj FakeObject) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o := obj.clone()
	if o.ETag == "" {
		o.ETag = CalculateETag(o.Body)
	}
	if o.LastModified.IsZero() {
		o.LastModified = time.Now().UTC()
	}
	if len(o.Grants) == 0 {
		o.Grants = cannedGrants(types.ObjectCannedACLPrivate)
	}
	f.objects[objectKey(bucket, key)] = o
}

// PutBytes stores data with a CRC32C checksum and default headers.
func (f *FakeStore) PutBytes(bucket, key string, data []byte) {
	f.Put(bucket, key, FakeObject{
		Body:        data,
		ContentType: "application/octet-stream",
		Checksums: map[types.ChecksumAlgorithm]string{
			types.ChecksumAlgorithmCrc32c: CalculateCRC32C(data),
		},
	})
}

// Object returns a copy of the stored object.
func (f *FakeStore) Object(bucket, key string) (*FakeObject, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.objects[objectKey(bucket, key)]
	if !ok {
		return nil, false
	}
	return o.clone(), true
}

// Has reports whether bucket/key exists.
func (f *FakeStore) Has(bucket, key string) bool {
	_, ok := f.Object(bucket, key)
	return ok
}

// Keys returns the sorted keys stored in bucket.
func (f *FakeStore) Keys(bucket string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keysLocked(bucket, "")
}

// Calls returns every recorded call.
func (f *FakeStore) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CountCalls returns how many times op was called.
func (f *FakeStore) CountCalls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (f *FakeStore) record(op, bucket, key string, optFns []func(*s3.Options)) error {
	region := s3api.RegionOf(optFns...)
	f.calls = append(f.calls, Call{Op: op, Bucket: bucket, Key: key, Region: region})

	if want, ok := f.regions[bucket]; ok && region != "" && region != want {
		return &smithy.GenericAPIError{
			Code:    "PermanentRedirect",
			Message: fmt.Sprintf("bucket %s is in %s, request sent to %s", bucket, want, region),
		}
	}
	return nil
}

func (f *FakeStore) lookupLocked(bucket, key string) (*FakeObject, error) {
	o, ok := f.objects[objectKey(bucket, key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("The specified key does not exist.")}
	}
	return o, nil
}

func (f *FakeStore) keysLocked(bucket, prefix string) []string {
	var keys []string
	head := bucket + "/"
	for k := range f.objects {
		if strings.HasPrefix(k, head) {
			key := strings.TrimPrefix(k, head)
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
		}
	}
	sort.Strings(keys)
	return keys
}

// ListObjectsV2 lists keys in lexical order. The continuation token is the
// last key or common prefix returned.
func (f *FakeStore) ListObjectsV2(
	_ context.Context,
	params *s3.ListObjectsV2Input,
	optFns ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, prefix := aws.ToString(params.Bucket), aws.ToString(params.Prefix)
	if err := f.record("ListObjectsV2", bucket, prefix, optFns); err != nil {
		return nil, err
	}

	maxKeys := int(aws.ToInt32(params.MaxKeys))
	if maxKeys <= 0 {
		maxKeys = 1000
	}
	after := aws.ToString(params.ContinuationToken)
	if after == "" {
		after = aws.ToString(params.StartAfter)
	}
	delimiter := aws.ToString(params.Delimiter)

	out := &s3.ListObjectsV2Output{
		Name:      params.Bucket,
		Prefix:    params.Prefix,
		Delimiter: params.Delimiter,
		MaxKeys:   aws.Int32(int32(maxKeys)),
	}

	count := 0
	var last string
	for _, key := range f.keysLocked(bucket, prefix) {
		if after != "" && (key <= after || (delimiter != "" && strings.HasSuffix(after, delimiter) && strings.HasPrefix(key, after))) {
			continue
		}
		if count == maxKeys {
			out.IsTruncated = aws.Bool(true)
			out.NextContinuationToken = aws.String(last)
			break
		}

		if delimiter != "" {
			if idx := strings.Index(key[len(prefix):], delimiter); idx >= 0 {
				cp := key[:len(prefix)+idx+len(delimiter)]
				if cp == last {
					continue
				}
				out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				last = cp
				count++
				continue
			}
		}

		o := f.objects[objectKey(bucket, key)]
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(key),
			Size:         aws.Int64(int64(len(o.Body))),
			ETag:         aws.String(o.ETag),
			LastModified: aws.Time(o.LastModified),
			StorageClass: types.ObjectStorageClass(effectiveClass(o.StorageClass)),
		})
		last = key
		count++
	}

	if out.IsTruncated == nil {
		out.IsTruncated = aws.Bool(false)
	}
	out.KeyCount = aws.Int32(int32(count))
	return out, nil
}

// HeadObject returns object headers. Checksums are included only when
// ChecksumMode is ENABLED.
func (f *FakeStore) HeadObject(
	_ context.Context,
	params *s3.HeadObjectInput,
	optFns ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.record("HeadObject", bucket, key, optFns); err != nil {
		return nil, err
	}
	o, ok := f.objects[objectKey(bucket, key)]
	if !ok {
		return nil, &types.NotFound{Message: aws.String("Not Found")}
	}

	out := &s3.HeadObjectOutput{
		ContentLength:        aws.Int64(int64(len(o.Body))),
		ETag:                 aws.String(o.ETag),
		LastModified:         aws.Time(o.LastModified),
		ContentType:          optional(o.ContentType),
		CacheControl:         optional(o.CacheControl),
		ContentDisposition:   optional(o.ContentDisposition),
		ContentEncoding:      optional(o.ContentEncoding),
		ContentLanguage:      optional(o.ContentLanguage),
		StorageClass:         o.StorageClass,
		ServerSideEncryption: o.SSE,
		SSEKMSKeyId:          optional(o.SSEKMSKeyID),
		Metadata:             cloneMap(o.Metadata),
	}
	if o.Expires != nil {
		out.ExpiresString = aws.String(o.Expires.UTC().Format(http.TimeFormat))
	}
	if params.ChecksumMode == types.ChecksumModeEnabled {
		for algo, sum := range o.Checksums {
			switch algo {
			case types.ChecksumAlgorithmCrc64nvme:
				out.ChecksumCRC64NVME = aws.String(sum)
			case types.ChecksumAlgorithmCrc32c:
				out.ChecksumCRC32C = aws.String(sum)
			case types.ChecksumAlgorithmCrc32:
				out.ChecksumCRC32 = aws.String(sum)
			case types.ChecksumAlgorithmSha256:
				out.ChecksumSHA256 = aws.String(sum)
			case types.ChecksumAlgorithmSha1:
				out.ChecksumSHA1 = aws.String(sum)
			}
			out.ChecksumType = types.ChecksumTypeFullObject
			if strings.Contains(sum, "-") {
				out.ChecksumType = types.ChecksumTypeComposite
			}
		}
	}
	return out, nil
}

// GetObject returns object content, honouring a "bytes=a-b" range.
func (f *FakeStore) GetObject(
	_ context.Context,
	params *s3.GetObjectInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.record("GetObject", bucket, key, optFns); err != nil {
		return nil, err
	}
	o, err := f.lookupLocked(bucket, key)
	if err != nil {
		return nil, err
	}

	data := o.Body
	if r := aws.ToString(params.Range); r != "" {
		start, end, err := parseRange(r, int64(len(data)))
		if err != nil {
			return nil, err
		}
		data = data[start : end+1]
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(append([]byte(nil), data...))),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   optional(o.ContentType),
		ETag:          aws.String(o.ETag),
	}, nil
}

// GetObjectAcl returns the object's grants.
func (f *FakeStore) GetObjectAcl(
	_ context.Context,
	params *s3.GetObjectAclInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectAclOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.record("GetObjectAcl", bucket, key, optFns); err != nil {
		return nil, err
	}
	o, err := f.lookupLocked(bucket, key)
	if err != nil {
		return nil, err
	}
	return &s3.GetObjectAclOutput{
		Owner:  &types.Owner{ID: aws.String(OwnerID)},
		Grants: append([]types.Grant(nil), o.Grants...),
	}, nil
}

// GetObjectTagging returns the object's tag set in key order.
func (f *FakeStore) GetObjectTagging(
	_ context.Context,
	params *s3.GetObjectTaggingInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectTaggingOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.record("GetObjectTagging", bucket, key, optFns); err != nil {
		return nil, err
	}
	o, err := f.lookupLocked(bucket, key)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(o.Tags))
	for k := range o.Tags {
		names = append(names, k)
	}
	sort.Strings(names)

	out := &s3.GetObjectTaggingOutput{TagSet: []types.Tag{}}
	for _, k := range names {
		out.TagSet = append(out.TagSet, types.Tag{Key: aws.String(k), Value: aws.String(o.Tags[k])})
	}
	return out, nil
}

// PutObjectTagging replaces the object's tag set.
func (f *FakeStore) PutObjectTagging(
	_ context.Context,
	params *s3.PutObjectTaggingInput,
	optFns ...func(*s3.Options),
) (*s3.PutObjectTaggingOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.record("PutObjectTagging", bucket, key, optFns); err != nil {
		return nil, err
	}
	o, err := f.lookupLocked(bucket, key)
	if err != nil {
		return nil, err
	}

	o.Tags = make(map[string]string)
	if params.Tagging != nil {
		for _, t := range params.Tagging.TagSet {
			o.Tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
		}
	}
	return &s3.PutObjectTaggingOutput{}, nil
}

// CopyObject copies an object. Checksums travel with the content.
func (f *FakeStore) CopyObject(
	_ context.Context,
	params *s3.CopyObjectInput,
	optFns ...func(*s3.Options),
) (*s3.CopyObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.record("CopyObject", bucket, key, optFns); err != nil {
		return nil, err
	}
	srcBucket, srcKey, err := parseCopySource(aws.ToString(params.CopySource))
	if err != nil {
		return nil, err
	}
	src, err := f.lookupLocked(srcBucket, srcKey)
	if err != nil {
		return nil, err
	}

	dst := src.clone()
	if params.MetadataDirective == types.MetadataDirectiveReplace {
		applyHeaders(dst, headerSet{
			contentType:        params.ContentType,
			cacheControl:       params.CacheControl,
			contentDisposition: params.ContentDisposition,
			contentEncoding:    params.ContentEncoding,
			contentLanguage:    params.ContentLanguage,
			expires:            params.Expires,
			metadata:           params.Metadata,
		})
	}
	if params.StorageClass != "" {
		dst.StorageClass = params.StorageClass
	}
	if params.ServerSideEncryption != "" {
		dst.SSE = params.ServerSideEncryption
		dst.SSEKMSKeyID = aws.ToString(params.SSEKMSKeyId)
	}
	if params.TaggingDirective == types.TaggingDirectiveReplace {
		dst.Tags, err = parseTagging(aws.ToString(params.Tagging))
		if err != nil {
			return nil, err
		}
	}
	dst.Grants = grantsFrom(params.ACL, aclHeaders{
		read:        params.GrantRead,
		readACP:     params.GrantReadACP,
		writeACP:    params.GrantWriteACP,
		fullControl: params.GrantFullControl,
	})
	dst.LastModified = time.Now().UTC()
	f.objects[objectKey(bucket, key)] = dst

	return &s3.CopyObjectOutput{
		CopyObjectResult: &types.CopyObjectResult{
			ETag:         aws.String(dst.ETag),
			LastModified: aws.Time(dst.LastModified),
		},
	}, nil
}

// CreateMultipartUpload starts an upload that is assembled from copied parts.
func (f *FakeStore) CreateMultipartUpload(
	_ context.Context,
	params *s3.CreateMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CreateMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.record("CreateMultipartUpload", bucket, key, optFns); err != nil {
		return nil, err
	}

	obj := &FakeObject{StorageClass: params.StorageClass, SSE: params.ServerSideEncryption}
	obj.SSEKMSKeyID = aws.ToString(params.SSEKMSKeyId)
	applyHeaders(obj, headerSet{
		contentType:        params.ContentType,
		cacheControl:       params.CacheControl,
		contentDisposition: params.ContentDisposition,
		contentEncoding:    params.ContentEncoding,
		contentLanguage:    params.ContentLanguage,
		expires:            params.Expires,
		metadata:           params.Metadata,
	})
	tags, err := parseTagging(aws.ToString(params.Tagging))
	if err != nil {
		return nil, err
	}
	obj.Tags = tags
	obj.Grants = grantsFrom(params.ACL, aclHeaders{
		read:        params.GrantRead,
		readACP:     params.GrantReadACP,
		writeACP:    params.GrantWriteACP,
		fullControl: params.GrantFullControl,
	})

	up := &fakeUpload{bucket: bucket, key: key, object: obj, parts: make(map[int32][]byte)}
	if err := up.setChecksum(params.ChecksumAlgorithm, params.ChecksumType); err != nil {
		return nil, err
	}

	f.nextID++
	id := fmt.Sprintf("upload-%d", f.nextID)
	f.uploads[id] = up

	return &s3.CreateMultipartUploadOutput{Bucket: params.Bucket, Key: params.Key, UploadId: aws.String(id)}, nil
}

// UploadPartCopy copies a source byte range into a part.
func (f *FakeStore) UploadPartCopy(
	_ context.Context,
	params *s3.UploadPartCopyInput,
	optFns ...func(*s3.Options),
) (*s3.UploadPartCopyOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.record("UploadPartCopy", bucket, key, optFns); err != nil {
		return nil, err
	}
	up, ok := f.uploads[aws.ToString(params.UploadId)]
	if !ok {
		return nil, &types.NoSuchUpload{Message: aws.String("upload not found")}
	}
	srcBucket, srcKey, err := parseCopySource(aws.ToString(params.CopySource))
	if err != nil {
		return nil, err
	}
	src, err := f.lookupLocked(srcBucket, srcKey)
	if err != nil {
		return nil, err
	}

	data := src.Body
	if r := aws.ToString(params.CopySourceRange); r != "" {
		start, end, err := parseRange(r, int64(len(data)))
		if err != nil {
			return nil, err
		}
		data = data[start : end+1]
	}
	n := aws.ToInt32(params.PartNumber)
	up.parts[n] = append([]byte(nil), data...)

	result := &types.CopyPartResult{ETag: aws.String(CalculateETag(data))}
	if up.requested {
		setCopyPartChecksum(result, up.algorithm, aws.String(CalculateChecksum(up.algorithm, data)))
	}
	return &s3.UploadPartCopyOutput{CopyPartResult: result}, nil
}

// CompleteMultipartUpload assembles the listed parts in order. The object
// gets a fresh checksum under the upload's algorithm: a full-object value
// or, for COMPOSITE uploads, a checksum of the part checksums with a "-N"
// suffix. Nothing is inherited from the copy source.
func (f *FakeStore) CompleteMultipartUpload(
	_ context.Context,
	params *s3.CompleteMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.CompleteMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.record("CompleteMultipartUpload", bucket, key, optFns); err != nil {
		return nil, err
	}
	id := aws.ToString(params.UploadId)
	up, ok := f.uploads[id]
	if !ok {
		return nil, &types.NoSuchUpload{Message: aws.String("upload not found")}
	}

	var (
		body  bytes.Buffer
		parts [][]byte
	)
	if params.MultipartUpload != nil {
		for _, p := range params.MultipartUpload.Parts {
			data, ok := up.parts[aws.ToInt32(p.PartNumber)]
			if !ok {
				return nil, &smithy.GenericAPIError{Code: "InvalidPart", Message: "part not uploaded"}
			}
			if up.requested {
				want := CalculateChecksum(up.algorithm, data)
				if got := aws.ToString(partChecksum(p, up.algorithm)); got != want {
					return nil, &smithy.GenericAPIError{
						Code:    "InvalidPart",
						Message: fmt.Sprintf("part %d: %s checksum %q, want %q", aws.ToInt32(p.PartNumber), up.algorithm, got, want),
					}
				}
			}
			body.Write(data)
			parts = append(parts, data)
		}
	}

	obj := up.object
	obj.Body = body.Bytes()
	obj.ETag = fmt.Sprintf(`"%x-%d"`, md5.Sum(obj.Body), len(up.parts))
	obj.LastModified = time.Now().UTC()
	sum := CalculateChecksum(up.algorithm, obj.Body)
	if up.checksumType == types.ChecksumTypeComposite {
		sum = CompositeChecksum(up.algorithm, parts...)
	}
	obj.Checksums = map[types.ChecksumAlgorithm]string{up.algorithm: sum}
	f.objects[objectKey(up.bucket, up.key)] = obj
	delete(f.uploads, id)

	return &s3.CompleteMultipartUploadOutput{Bucket: params.Bucket, Key: params.Key, ETag: aws.String(obj.ETag)}, nil
}

// setChecksum applies S3's checksum rules for a new multipart upload. No
// algorithm means a full-object CRC64NVME. CRC32 and CRC32C default to
// COMPOSITE; SHA algorithms only support COMPOSITE and CRC64NVME only
// FULL_OBJECT.
func (u *fakeUpload) setChecksum(algo types.ChecksumAlgorithm, typ types.ChecksumType) error {
	if algo == "" {
		u.algorithm, u.checksumType = types.ChecksumAlgorithmCrc64nvme, types.ChecksumTypeFullObject
		return nil
	}
	u.algorithm, u.requested = algo, true

	switch algo {
	case types.ChecksumAlgorithmCrc64nvme:
		if typ == types.ChecksumTypeComposite {
			return invalidChecksumType(algo, typ)
		}
		u.checksumType = types.ChecksumTypeFullObject
	case types.ChecksumAlgorithmSha1, types.ChecksumAlgorithmSha256:
		if typ == types.ChecksumTypeFullObject {
			return invalidChecksumType(algo, typ)
		}
		u.checksumType = types.ChecksumTypeComposite
	default:
		u.checksumType = typ
		if typ == "" {
			u.checksumType = types.ChecksumTypeComposite
		}
	}
	return nil
}

func invalidChecksumType(algo types.ChecksumAlgorithm, typ types.ChecksumType) error {
	return &smithy.GenericAPIError{
		Code:    "InvalidRequest",
		Message: fmt.Sprintf("checksum type %s is not supported for %s", typ, algo),
	}
}

// AbortMultipartUpload discards an upload.
func (f *FakeStore) AbortMultipartUpload(
	_ context.Context,
	params *s3.AbortMultipartUploadInput,
	optFns ...func(*s3.Options),
) (*s3.AbortMultipartUploadOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.record("AbortMultipartUpload", aws.ToString(params.Bucket), aws.ToString(params.Key), optFns); err != nil {
		return nil, err
	}
	delete(f.uploads, aws.ToString(params.UploadId))
	return &s3.AbortMultipartUploadOutput{}, nil
}

// DeleteObject removes an object. Deleting a missing key succeeds.
func (f *FakeStore) DeleteObject(
	_ context.Context,
	params *s3.DeleteObjectInput,
	optFns ...func(*s3.Options),
) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	bucket, key := aws.ToString(params.Bucket), aws.ToString(params.Key)
	if err := f.record("DeleteObject", bucket, key, optFns); err != nil {
		return nil, err
	}
	delete(f.objects, objectKey(bucket, key))
	return &s3.DeleteObjectOutput{}, nil
}

// OpenUploads returns the number of multipart uploads neither completed nor aborted.
func (f *FakeStore) OpenUploads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

type headerSet struct {
	contentType        *string
	cacheControl       *string
	contentDisposition *string
	contentEncoding    *string
	contentLanguage    *string
	expires            *time.Time
	metadata           map[string]string
}

func applyHeaders(o *FakeObject, h headerSet) {
	o.ContentType = aws.ToString(h.contentType)
	o.CacheControl = aws.ToString(h.cacheControl)
	o.ContentDisposition = aws.ToString(h.contentDisposition)
	o.ContentEncoding = aws.ToString(h.contentEncoding)
	o.ContentLanguage = aws.ToString(h.contentLanguage)
	o.Expires = h.expires
	o.Metadata = cloneMap(h.metadata)
}

type aclHeaders struct {
	read        *string
	readACP     *string
	writeACP    *string
	fullControl *string
}

func grantsFrom(canned types.ObjectCannedACL, h aclHeaders) []types.Grant {
	if canned != "" {
		return cannedGrants(canned)
	}

	var grants []types.Grant
	add := func(header *string, perm types.Permission) {
		for _, g := range parseGrantees(aws.ToString(header)) {
			grants = append(grants, types.Grant{Grantee: g, Permission: perm})
		}
	}
	add(h.fullControl, types.PermissionFullControl)
	add(h.read, types.PermissionRead)
	add(h.readACP, types.PermissionReadAcp)
	add(h.writeACP, types.PermissionWriteAcp)

	if len(grants) == 0 {
		return cannedGrants(types.ObjectCannedACLPrivate)
	}
	return grants
}

func cannedGrants(acl types.ObjectCannedACL) []types.Grant {
	grants := []types.Grant{{
		Grantee:    &types.Grantee{Type: types.TypeCanonicalUser, ID: aws.String(OwnerID)},
		Permission: types.PermissionFullControl,
	}}
	switch acl {
	case types.ObjectCannedACLPublicRead:
		grants = append(grants, types.Grant{
			Grantee:    &types.Grantee{Type: types.TypeGroup, URI: aws.String(AllUsersURI)},
			Permission: types.PermissionRead,
		})
	case types.ObjectCannedACLPublicReadWrite:
		grants = append(grants,
			types.Grant{Grantee: &types.Grantee{Type: types.TypeGroup, URI: aws.String(AllUsersURI)}, Permission: types.PermissionRead},
			types.Grant{Grantee: &types.Grantee{Type: types.TypeGroup, URI: aws.String(AllUsersURI)}, Permission: types.PermissionWrite},
		)
	}
	return grants
}

// parseGrantees reads a grant header such as `id="abc", uri="http://..."`.
func parseGrantees(header string) []*types.Grantee {
	var out []*types.Grantee
	for _, part := range strings.Split(header, ",") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		value = strings.Trim(value, `"`)
		switch strings.ToLower(name) {
		case "id":
			out = append(out, &types.Grantee{Type: types.TypeCanonicalUser, ID: aws.String(value)})
		case "uri":
			out = append(out, &types.Grantee{Type: types.TypeGroup, URI: aws.String(value)})
		case "emailaddress":
			out = append(out, &types.Grantee{Type: types.TypeAmazonCustomerByEmail, EmailAddress: aws.String(value)})
		}
	}
	return out
}

func parseTagging(s string) (map[string]string, error) {
	tags := make(map[string]string)
	if s == "" {
		return tags, nil
	}
	values, err := url.ParseQuery(s)
	if err != nil {
		return nil, &smithy.GenericAPIError{Code: "InvalidTag", Message: err.Error()}
	}
	for k, v := range values {
		if len(v) > 0 {
			tags[k] = v[0]
		}
	}
	return tags, nil
}

func parseCopySource(src string) (string, string, error) {
	unescaped, err := url.PathUnescape(strings.TrimPrefix(src, "/"))
	if err != nil {
		return "", "", &smithy.GenericAPIError{Code: "InvalidArgument", Message: err.Error()}
	}
	bucket, key, ok := strings.Cut(unescaped, "/")
	if !ok || key == "" {
		return "", "", &smithy.GenericAPIError{Code: "InvalidArgument", Message: "invalid copy source " + src}
	}
	return bucket, key, nil
}

func parseRange(r string, size int64) (int64, int64, error) {
	byteRange, ok := strings.CutPrefix(r, "bytes=")
	if !ok {
		return 0, 0, &smithy.GenericAPIError{Code: "InvalidRange", Message: r}
	}
	from, to, _ := strings.Cut(byteRange, "-")
	start, err := strconv.ParseInt(from, 10, 64)
	if err != nil {
		return 0, 0, &smithy.GenericAPIError{Code: "InvalidRange", Message: r}
	}
	end := size - 1
	if to != "" {
		if end, err = strconv.ParseInt(to, 10, 64); err != nil {
			return 0, 0, &smithy.GenericAPIError{Code: "InvalidRange", Message: r}
		}
	}
	if end >= size {
		end = size - 1
	}
	if start > end {
		return 0, -1, nil
	}
	return start, end, nil
}

func effectiveClass(c types.StorageClass) types.StorageClass {
	if c == "" {
		return types.StorageClassStandard
	}
	return c
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return aws.String(s)
}

func cloneMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
