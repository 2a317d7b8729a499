package copy

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// Header names. Keys of a header map are always lower case.
const (
	HeaderContentType        = "content-type"
	HeaderCacheControl       = "cache-control"
	HeaderContentDisposition = "content-disposition"
	HeaderContentEncoding    = "content-encoding"
	HeaderContentLanguage    = "content-language"
	HeaderExpires            = "expires"
	HeaderStorageClass       = "x-amz-storage-class"
	HeaderSSE                = "x-amz-server-side-encryption"
	HeaderSSEKMSKeyID        = "x-amz-server-side-encryption-aws-kms-key-id"
	HeaderBucketKeyEnabled   = "x-amz-server-side-encryption-bucket-key-enabled"
	HeaderRedirectLocation   = "x-amz-website-redirect-location"
	HeaderMetaPrefix         = "x-amz-meta-"

	HeaderContentLength = "content-length"
	HeaderETag          = "etag"
	HeaderLastModified  = "last-modified"
	HeaderVersionID     = "x-amz-version-id"
)

// ACL header names.
const (
	ACLCanned         = "x-amz-acl"
	ACLGrantRead      = "x-amz-grant-read"
	ACLGrantReadACP   = "x-amz-grant-read-acp"
	ACLGrantWriteACP  = "x-amz-grant-write-acp"
	ACLGrantFullCtrl  = "x-amz-grant-full-control"
	checksumHeaderPfx = "x-amz-checksum-"
)

// volatile headers describe one stored copy of an object and never carry
// over to another.
var volatile = map[string]bool{
	"connection":               true,
	HeaderContentLength:        true,
	"date":                     true,
	HeaderETag:                 true,
	HeaderLastModified:         true,
	"server":                   true,
	"x-amz-request-id":         true,
	"x-amz-id-2":               true,
	"x-amz-tagging-count":      true,
	HeaderVersionID:            true,
	"accept-ranges":            true,
	"x-amz-replication-status": true,
	"x-amz-restore":            true,
	"x-amz-expiration":         true,
	"x-amz-delete-marker":      true,
	"x-amz-mp-parts-count":     true,
}

func isVolatile(name string) bool {
	return volatile[name] || strings.HasPrefix(name, checksumHeaderPfx)
}

// Merge combines source and caller values under directive. An empty
// directive means DirectiveCopy. Header names are lower-cased and volatile
// headers are dropped from the result.
func Merge(directive s3types.Directive, source, caller map[string]string) (map[string]string, error) {
	out := make(map[string]string)
	switch directive {
	case "", s3types.DirectiveCopy:
		overlay(out, source)
	case s3types.DirectiveAdd:
		overlay(out, source)
		overlay(out, caller)
	case s3types.DirectiveReplaced:
		overlay(out, caller)
	default:
		return nil, errors.NewError("merge", errors.ErrUnsupportedDirective).WithMessage(string(directive))
	}
	return out, nil
}

// MergeTags is Merge without header normalisation; tag keys are case
// sensitive.
func MergeTags(directive s3types.Directive, source, caller map[string]string) (map[string]string, error) {
	out := make(map[string]string)
	switch directive {
	case "", s3types.DirectiveCopy:
		for k, v := range source {
			out[k] = v
		}
	case s3types.DirectiveAdd:
		for k, v := range source {
			out[k] = v
		}
		for k, v := range caller {
			out[k] = v
		}
	case s3types.DirectiveReplaced:
		for k, v := range caller {
			out[k] = v
		}
	default:
		return nil, errors.NewError("merge", errors.ErrUnsupportedDirective).WithMessage(string(directive))
	}
	return out, nil
}

func overlay(dst, src map[string]string) {
	for k, v := range src {
		name := strings.ToLower(strings.TrimSpace(k))
		if name == "" || isVolatile(name) {
			continue
		}
		dst[name] = v
	}
}

// HeadersFromHead converts a HeadObject response into a header map.
func HeadersFromHead(out *s3.HeadObjectOutput) map[string]string {
	h := make(map[string]string)
	set := func(name string, v *string) {
		if s := aws.ToString(v); s != "" {
			h[name] = s
		}
	}

	set(HeaderContentType, out.ContentType)
	set(HeaderCacheControl, out.CacheControl)
	set(HeaderContentDisposition, out.ContentDisposition)
	set(HeaderContentEncoding, out.ContentEncoding)
	set(HeaderContentLanguage, out.ContentLanguage)
	set(HeaderExpires, out.ExpiresString)
	set(HeaderSSEKMSKeyID, out.SSEKMSKeyId)
	set(HeaderRedirectLocation, out.WebsiteRedirectLocation)
	set(HeaderETag, out.ETag)
	set(HeaderVersionID, out.VersionId)

	if out.StorageClass != "" {
		h[HeaderStorageClass] = string(out.StorageClass)
	}
	if out.ServerSideEncryption != "" {
		h[HeaderSSE] = string(out.ServerSideEncryption)
	}
	if aws.ToBool(out.BucketKeyEnabled) {
		h[HeaderBucketKeyEnabled] = "true"
	}
	if out.ContentLength != nil {
		h[HeaderContentLength] = strconv.FormatInt(*out.ContentLength, 10)
	}
	if out.LastModified != nil {
		h[HeaderLastModified] = out.LastModified.UTC().Format(http.TimeFormat)
	}
	for k, v := range out.Metadata {
		h[HeaderMetaPrefix+strings.ToLower(k)] = v
	}
	return h
}

// writeHeaders is the header-bearing subset shared by CopyObject and
// CreateMultipartUpload inputs.
type writeHeaders struct {
	contentType        *string
	cacheControl       *string
	contentDisposition *string
	contentEncoding    *string
	contentLanguage    *string
	expires            *time.Time
	storageClass       awstypes.StorageClass
	sse                awstypes.ServerSideEncryption
	sseKMSKeyID        *string
	bucketKeyEnabled   *bool
	redirectLocation   *string
	metadata           map[string]string
}

func headersToWrite(h map[string]string) writeHeaders {
	var w writeHeaders
	get := func(name string) *string {
		if v, ok := h[name]; ok && v != "" {
			return aws.String(v)
		}
		return nil
	}

	w.contentType = get(HeaderContentType)
	w.cacheControl = get(HeaderCacheControl)
	w.contentDisposition = get(HeaderContentDisposition)
	w.contentEncoding = get(HeaderContentEncoding)
	w.contentLanguage = get(HeaderContentLanguage)
	w.sseKMSKeyID = get(HeaderSSEKMSKeyID)
	w.redirectLocation = get(HeaderRedirectLocation)
	w.storageClass = awstypes.StorageClass(h[HeaderStorageClass])
	w.sse = awstypes.ServerSideEncryption(h[HeaderSSE])

	if v := h[HeaderExpires]; v != "" {
		if t, err := http.ParseTime(v); err == nil {
			w.expires = aws.Time(t)
		}
	}
	if h[HeaderBucketKeyEnabled] == "true" {
		w.bucketKeyEnabled = aws.Bool(true)
	}

	w.metadata = make(map[string]string)
	for k, v := range h {
		if name, ok := strings.CutPrefix(k, HeaderMetaPrefix); ok && name != "" {
			w.metadata[name] = v
		}
	}
	return w
}

func (w writeHeaders) applyToCopy(in *s3.CopyObjectInput) {
	in.ContentType = w.contentType
	in.CacheControl = w.cacheControl
	in.ContentDisposition = w.contentDisposition
	in.ContentEncoding = w.contentEncoding
	in.ContentLanguage = w.contentLanguage
	in.Expires = w.expires
	in.StorageClass = w.storageClass
	in.ServerSideEncryption = w.sse
	in.SSEKMSKeyId = w.sseKMSKeyID
	in.BucketKeyEnabled = w.bucketKeyEnabled
	in.WebsiteRedirectLocation = w.redirectLocation
	in.Metadata = w.metadata
}

func (w writeHeaders) applyToMultipart(in *s3.CreateMultipartUploadInput) {
	in.ContentType = w.contentType
	in.CacheControl = w.cacheControl
	in.ContentDisposition = w.contentDisposition
	in.ContentEncoding = w.contentEncoding
	in.ContentLanguage = w.contentLanguage
	in.Expires = w.expires
	in.StorageClass = w.storageClass
	in.ServerSideEncryption = w.sse
	in.SSEKMSKeyId = w.sseKMSKeyID
	in.BucketKeyEnabled = w.bucketKeyEnabled
	in.WebsiteRedirectLocation = w.redirectLocation
	in.Metadata = w.metadata
}

// ACLFromGrants converts a GetObjectAcl response into grant headers. The
// owner's own FULL_CONTROL grant is implied by every object and is left out,
// so a private object yields an empty map.
func ACLFromGrants(out *s3.GetObjectAclOutput) map[string]string {
	owner := ""
	if out.Owner != nil {
		owner = aws.ToString(out.Owner.ID)
	}

	grantees := make(map[string][]string)
	for _, g := range out.Grants {
		if g.Grantee == nil {
			continue
		}
		if g.Permission == awstypes.PermissionFullControl && owner != "" && aws.ToString(g.Grantee.ID) == owner {
			continue
		}

		var header string
		switch g.Permission {
		case awstypes.PermissionRead:
			header = ACLGrantRead
		case awstypes.PermissionReadAcp:
			header = ACLGrantReadACP
		case awstypes.PermissionWriteAcp:
			header = ACLGrantWriteACP
		case awstypes.PermissionFullControl:
			header = ACLGrantFullCtrl
		default:
			// WRITE is not settable on objects.
			continue
		}

		if grantee := formatGrantee(g.Grantee); grantee != "" {
			grantees[header] = append(grantees[header], grantee)
		}
	}

	acl := make(map[string]string, len(grantees))
	for header, list := range grantees {
		sort.Strings(list)
		acl[header] = strings.Join(list, ", ")
	}
	return acl
}

func formatGrantee(g *awstypes.Grantee) string {
	switch {
	case aws.ToString(g.ID) != "":
		return `id="` + aws.ToString(g.ID) + `"`
	case aws.ToString(g.URI) != "":
		return `uri="` + aws.ToString(g.URI) + `"`
	case aws.ToString(g.EmailAddress) != "":
		return `emailAddress="` + aws.ToString(g.EmailAddress) + `"`
	}
	return ""
}

// writeACL is the ACL-bearing subset of CopyObject and CreateMultipartUpload
// inputs. A canned ACL excludes explicit grants.
type writeACL struct {
	canned      awstypes.ObjectCannedACL
	read        *string
	readACP     *string
	writeACP    *string
	fullControl *string
}

func aclToWrite(acl map[string]string) writeACL {
	if v := acl[ACLCanned]; v != "" {
		return writeACL{canned: awstypes.ObjectCannedACL(v)}
	}
	get := func(name string) *string {
		if v := acl[name]; v != "" {
			return aws.String(v)
		}
		return nil
	}
	return writeACL{
		read:        get(ACLGrantRead),
		readACP:     get(ACLGrantReadACP),
		writeACP:    get(ACLGrantWriteACP),
		fullControl: get(ACLGrantFullCtrl),
	}
}

func (w writeACL) applyToCopy(in *s3.CopyObjectInput) {
	in.ACL = w.canned
	in.GrantRead = w.read
	in.GrantReadACP = w.readACP
	in.GrantWriteACP = w.writeACP
	in.GrantFullControl = w.fullControl
}

func (w writeACL) applyToMultipart(in *s3.CreateMultipartUploadInput) {
	in.ACL = w.canned
	in.GrantRead = w.read
	in.GrantReadACP = w.readACP
	in.GrantWriteACP = w.writeACP
	in.GrantFullControl = w.fullControl
}

// TagsFromOutput converts a GetObjectTagging response into a tag map.
func TagsFromOutput(out *s3.GetObjectTaggingOutput) map[string]string {
	tags := make(map[string]string, len(out.TagSet))
	for _, t := range out.TagSet {
		tags[aws.ToString(t.Key)] = aws.ToString(t.Value)
	}
	return tags
}

func tagSet(tags map[string]string) []awstypes.Tag {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	set := make([]awstypes.Tag, 0, len(keys))
	for _, k := range keys {
		set = append(set, awstypes.Tag{Key: aws.String(k), Value: aws.String(tags[k])})
	}
	return set
}
