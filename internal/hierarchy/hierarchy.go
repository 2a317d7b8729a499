package hierarchy

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/operations/list"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/queue"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// Separator ends every container key.
const Separator = "/"

// Node is implemented by task params that address a path in a bucket.
type Node[P any] interface {
	// Location is the bucket, region and key (or prefix) of the node.
	Location() s3types.Location
	// IsLeaf marks a node as a real object even when its key ends in "/".
	IsLeaf() bool
	// Cursor is the continuation token of a partially expanded container.
	Cursor() string
	// Child returns leaf params for an object found under the container.
	Child(obj s3types.Object) P
	// Continue returns container params that resume listing at cursor.
	Continue(cursor string) P
}

// IsContainer reports whether n must be expanded rather than processed.
// The empty key addresses the whole bucket.
func IsContainer[P any](n Node[P]) bool {
	if n.IsLeaf() {
		return false
	}
	key := n.Location().Key
	return key == "" || strings.HasSuffix(key, Separator)
}

// Lister fetches one page of a listing.
type Lister interface {
	List(ctx context.Context, config *list.Config) (*list.Result, error)
}

// Filter decides whether a listed object becomes a leaf task.
type Filter func(prefix string, obj s3types.Object) bool

// DefaultFilter drops the prefix marker object itself.
func DefaultFilter(prefix string, obj s3types.Object) bool {
	return obj.Key != prefix
}

// LeafBody processes and folds leaf tasks.
type LeafBody[P, A any] interface {
	Process(ctx context.Context, task *queue.Task[P]) (any, error)
	Fold(acc A, task *queue.Task[P]) (A, error)
}

// Expansion is the result of a container task. Fold never counts it.
type Expansion struct {
	Prefix    string
	Children  int
	Continued bool
}

// IsExpansion reports whether a task result came from a container.
func IsExpansion(result any) bool {
	_, ok := result.(Expansion)
	return ok
}

// Option configures a Body.
type Option func(*options)

type options struct {
	filter Filter
	logger *slog.Logger
}

// WithFilter replaces DefaultFilter.
func WithFilter(f Filter) Option {
	return func(o *options) {
		if f != nil {
			o.filter = f
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Body is a queue.Body that expands containers and hands leaves to a
// LeafBody.
type Body[P Node[P], A any] struct {
	leaf   LeafBody[P, A]
	lister Lister
	filter Filter
	logger *slog.Logger
}

// New wraps leaf so that container tasks are expanded through lister.
func New[P Node[P], A any](leaf LeafBody[P, A], lister Lister, opts ...Option) *Body[P, A] {
	o := &options{
		filter: DefaultFilter,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &Body[P, A]{
		leaf:   leaf,
		lister: lister,
		filter: o.filter,
		logger: o.logger,
	}
}

// Process implements queue.Body.
func (b *Body[P, A]) Process(ctx context.Context, q queue.Enqueuer[P], task *queue.Task[P]) (any, error) {
	if !IsContainer[P](task.Params) {
		return b.leaf.Process(ctx, task)
	}
	return b.expand(ctx, q, task)
}

// Fold implements queue.Body. Successful expansions leave acc unchanged;
// failed listings are folded by the leaf body like any other failure.
func (b *Body[P, A]) Fold(acc A, task *queue.Task[P]) (A, error) {
	if task.Err == nil && IsExpansion(task.Result) {
		return acc, nil
	}
	return b.leaf.Fold(acc, task)
}

// CancelTask forwards to the leaf body when it supports cancellation.
func (b *Body[P, A]) CancelTask(task *queue.Task[P]) {
	if IsContainer[P](task.Params) {
		return
	}
	if c, ok := b.leaf.(queue.Canceler[P]); ok {
		c.CancelTask(task)
	}
}

func (b *Body[P, A]) expand(ctx context.Context, q queue.Enqueuer[P], task *queue.Task[P]) (any, error) {
	loc := task.Params.Location()
	page, err := b.lister.List(ctx, &list.Config{
		Bucket:            loc.Bucket,
		Region:            loc.Region,
		Prefix:            loc.Key,
		ContinuationToken: task.Params.Cursor(),
	})
	if err != nil {
		return nil, err
	}

	children := make([]P, 0, len(page.Objects)+1)
	for _, obj := range page.Objects {
		if !b.filter(loc.Key, obj) {
			continue
		}
		children = append(children, task.Params.Child(obj))
	}
	leaves := len(children)

	continued := page.IsTruncated && page.ContinuationToken != ""
	if continued {
		children = append(children, task.Params.Continue(page.ContinuationToken))
	}

	if len(children) > 0 {
		q.Enqueue(task.ID, children...)
	}
	b.logger.Debug("expanded prefix",
		"task_id", task.ID,
		"bucket", loc.Bucket,
		"prefix", loc.Key,
		"children", leaves,
		"continued", continued,
	)

	return Expansion{Prefix: loc.Key, Children: leaves, Continued: continued}, nil
}
