// Package s3types provides shared type definitions for the s3copy module.
package s3types

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/prometheus/client_golang/prometheus"
)

// StorageClass represents the S3 storage class for objects.
type StorageClass string

// Predefined S3 storage classes
const (
	// StorageClassStandard is the effective class of objects that report none.
	StorageClassStandard StorageClass = "STANDARD"

	// StorageClassReducedRedundancy for non-critical, reproducible data
	StorageClassReducedRedundancy StorageClass = "REDUCED_REDUNDANCY"

	// StorageClassStandardIA for infrequently accessed data
	StorageClassStandardIA StorageClass = "STANDARD_IA"

	// StorageClassOneZoneIA for infrequently accessed, non-critical data
	StorageClassOneZoneIA StorageClass = "ONEZONE_IA"

	// StorageClassIntelligentTiering for data with unknown or changing access patterns
	StorageClassIntelligentTiering StorageClass = "INTELLIGENT_TIERING"

	// StorageClassGlacier for long-term archive
	StorageClassGlacier StorageClass = "GLACIER"

	// StorageClassDeepArchive for long-term archive with retrieval times of 12+ hours
	StorageClassDeepArchive StorageClass = "DEEP_ARCHIVE"

	// StorageClassGlacierIR for archive data that needs immediate access
	StorageClassGlacierIR StorageClass = "GLACIER_IR"
)

// Directive selects how a class of source metadata (headers, ACL or tags)
// combines with caller-supplied values.
type Directive string

const (
	// DirectiveCopy passes the source value through, minus volatile fields.
	DirectiveCopy Directive = "Copy"

	// DirectiveAdd overlays caller values on the source value. Caller wins.
	DirectiveAdd Directive = "Add"

	// DirectiveReplaced uses only the caller value.
	DirectiveReplaced Directive = "Replaced"
)

// TriggerType records what started a run.
type TriggerType string

const (
	TriggerManual TriggerType = "manual"
	TriggerEvent  TriggerType = "event"
)

// Location addresses an object, or a prefix when Key ends with "/".
type Location struct {
	Bucket string `json:"bucket" yaml:"bucket" mapstructure:"bucket"`
	Region string `json:"region,omitempty" yaml:"region,omitempty" mapstructure:"region"`
	Key    string `json:"key,omitempty" yaml:"key,omitempty" mapstructure:"key"`
}

// String renders the location as bucket/key.
func (l Location) String() string {
	return l.Bucket + "/" + l.Key
}

// SameObject reports whether l and other address the exact same object.
func (l Location) SameObject(other Location) bool {
	return l.Bucket == other.Bucket && l.Region == other.Region && l.Key == other.Key
}

// CopyItem is one requested copy. Unset fields inherit from Defaults.
type CopyItem struct {
	Source Location `json:"source" yaml:"source" mapstructure:"source"`

	// Target overrides the default target. An empty Target.Key means the
	// key is derived from TargetKeyTemplate.
	Target            *Location `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	TargetKeyTemplate string    `json:"targetKeyTemplate,omitempty" yaml:"targetKeyTemplate,omitempty" mapstructure:"targetKeyTemplate"`
	RelativePrefix    *string   `json:"relativePrefix,omitempty" yaml:"relativePrefix,omitempty" mapstructure:"relativePrefix"`

	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" mapstructure:"headers"`
	HeaderDirective Directive         `json:"headerDirective,omitempty" yaml:"headerDirective,omitempty" mapstructure:"headerDirective"`
	ACL             map[string]string `json:"acl,omitempty" yaml:"acl,omitempty" mapstructure:"acl"`
	ACLDirective    Directive         `json:"aclDirective,omitempty" yaml:"aclDirective,omitempty" mapstructure:"aclDirective"`
	Tags            map[string]string `json:"tags,omitempty" yaml:"tags,omitempty" mapstructure:"tags"`
	TagDirective    Directive         `json:"tagDirective,omitempty" yaml:"tagDirective,omitempty" mapstructure:"tagDirective"`

	StorageClass StorageClass `json:"storageClass,omitempty" yaml:"storageClass,omitempty" mapstructure:"storageClass"`
	DeleteSource *bool        `json:"deleteSource,omitempty" yaml:"deleteSource,omitempty" mapstructure:"deleteSource"`

	// IsLeaf marks a key ending in "/" as a real object rather than a prefix.
	IsLeaf bool `json:"isLeaf,omitempty" yaml:"isLeaf,omitempty" mapstructure:"isLeaf"`
}

// Defaults are shared by every item of a request.
type Defaults struct {
	TargetBucket      string `json:"targetBucket,omitempty" yaml:"targetBucket,omitempty" mapstructure:"targetBucket"`
	TargetRegion      string `json:"targetRegion,omitempty" yaml:"targetRegion,omitempty" mapstructure:"targetRegion"`
	TargetKeyTemplate string `json:"targetKeyTemplate,omitempty" yaml:"targetKeyTemplate,omitempty" mapstructure:"targetKeyTemplate"`
	RelativePrefix    string `json:"relativePrefix,omitempty" yaml:"relativePrefix,omitempty" mapstructure:"relativePrefix"`

	Headers         map[string]string `json:"headers,omitempty" yaml:"headers,omitempty" mapstructure:"headers"`
	HeaderDirective Directive         `json:"headerDirective,omitempty" yaml:"headerDirective,omitempty" mapstructure:"headerDirective"`
	ACL             map[string]string `json:"acl,omitempty" yaml:"acl,omitempty" mapstructure:"acl"`
	ACLDirective    Directive         `json:"aclDirective,omitempty" yaml:"aclDirective,omitempty" mapstructure:"aclDirective"`
	Tags            map[string]string `json:"tags,omitempty" yaml:"tags,omitempty" mapstructure:"tags"`
	TagDirective    Directive         `json:"tagDirective,omitempty" yaml:"tagDirective,omitempty" mapstructure:"tagDirective"`

	StorageClass StorageClass `json:"storageClass,omitempty" yaml:"storageClass,omitempty" mapstructure:"storageClass"`
	DeleteSource bool         `json:"deleteSource,omitempty" yaml:"deleteSource,omitempty" mapstructure:"deleteSource"`

	// AvoidLoop makes event-triggered runs skip objects this engine wrote.
	AvoidLoop   bool        `json:"avoidLoop,omitempty" yaml:"avoidLoop,omitempty" mapstructure:"avoidLoop"`
	TriggerType TriggerType `json:"triggerType,omitempty" yaml:"triggerType,omitempty" mapstructure:"triggerType"`
}

// Request is the input of one orchestrated run.
type Request struct {
	Items    []CopyItem `json:"items" yaml:"items" mapstructure:"items"`
	Defaults Defaults   `json:"defaults" yaml:"defaults" mapstructure:"defaults"`
}

// Counts is the run accumulator. Skipped counts successful tasks that
// copied nothing, and is included in Success.
type Counts struct {
	Success int `json:"success"`
	Fail    int `json:"fail"`
	Skipped int `json:"skipped,omitempty"`
}

// Summary describes the inputs of a run.
type Summary struct {
	Items    int        `json:"items"`
	Sources  []Location `json:"sources"`
	Defaults Defaults   `json:"defaults"`
}

// ItemResult reports the outcome of a run.
type ItemResult struct {
	Params Summary `json:"params"`
	Result Counts  `json:"result"`

	// Err is set only when the queue ended with an error.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

// Response is the output of Run.
type Response struct {
	Results []ItemResult `json:"results"`
}

// Object represents an S3 object in a listing.
type Object struct {
	// Key is the object key (path) in the bucket
	Key string `json:"key"`

	// Size is the size of the object in bytes
	Size int64 `json:"size"`

	// LastModified is when the object was last modified
	LastModified time.Time `json:"lastModified"`

	// ETag is the entity tag of the object
	ETag string `json:"etag"`

	// StorageClass is the storage class of the object
	StorageClass string `json:"storageClass,omitempty"`
}

// CopyRequest is the fully resolved copy of one object, as shown to an
// Interceptor.
type CopyRequest struct {
	Source Location
	Target Location

	Headers map[string]string
	ACL     map[string]string
	Tags    map[string]string

	// SourceTags is the tag set read from the source. It is nil when tags
	// were not read.
	SourceTags map[string]string

	// Size is the source content length.
	Size int64

	// NeedsUpdateStorage is set when the copy crosses a region, storage
	// class or encryption boundary.
	NeedsUpdateStorage bool

	TriggerType TriggerType
	AvoidLoop   bool
}

// Outcome describes what copying one object did.
type Outcome struct {
	Source    Location `json:"source"`
	Target    Location `json:"target"`
	Copied    bool     `json:"copied"`
	Multipart bool     `json:"multipart,omitempty"`
	Deleted   bool     `json:"deleted,omitempty"`
	Bytes     int64    `json:"bytes,omitempty"`
	Messages  []string `json:"messages,omitempty"`
}

// DecisionKind tags a Decision.
type DecisionKind int

const (
	// Proceed copies with Decision.Request.
	Proceed DecisionKind = iota
	// ShortCircuit completes the task with Decision.Outcome without copying.
	ShortCircuit
	// Fail fails the task with Decision.Err.
	Fail
)

// Decision is returned by an Interceptor.
type Decision struct {
	Kind    DecisionKind
	Request *CopyRequest
	Outcome *Outcome
	Err     error
}

// ProceedWith continues the copy with req.
func ProceedWith(req *CopyRequest) Decision {
	return Decision{Kind: Proceed, Request: req}
}

// ShortCircuitWith completes the copy with out and issues no write.
func ShortCircuitWith(out *Outcome) Decision {
	return Decision{Kind: ShortCircuit, Outcome: out}
}

// FailWith fails the copy with err.
func FailWith(err error) Decision {
	return Decision{Kind: Fail, Err: err}
}

// Interceptor observes or overrides a copy before it is issued.
type Interceptor func(ctx context.Context, req *CopyRequest) Decision

// Config holds orchestrator settings.
type Config struct {
	Parallel          int
	FailStop          bool
	MaxFailLimit      int
	ListPageSize      int32
	ChunkSize         int64
	PartSize          int64
	PartConcurrency   int
	DetectContentType bool
	Logger            *slog.Logger
	Interceptors      []Interceptor
	Registerer        prometheus.Registerer
}

// ClientConfig holds settings for building an S3 client.
type ClientConfig struct {
	Region           string
	Endpoint         string
	MaxRetries       int
	RetryMode        string
	Timeout          time.Duration
	ForcePathStyle   bool
	CustomAWSConfig  *aws.Config
	CustomHTTPClient *http.Client
}

type (
	// Option is a functional option for configuring the orchestrator.
	Option func(*Config)
	// ClientOption is a functional option for configuring the S3 client.
	ClientOption func(*ClientConfig)
)
