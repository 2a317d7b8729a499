package s3copy

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/hierarchy"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/operations/copy"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/operations/list"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/queue"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/validation"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// DefaultParallel is the number of objects copied at once unless
// WithParallel says otherwise.
const DefaultParallel = 5

// LoopMarkerTag is the tag Defaults.AvoidLoop writes on every target.
// Event-triggered runs skip sources that carry it.
const LoopMarkerTag = copy.LoopMarkerTag

// State is the lifecycle state of an Orchestrator.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCanceled  State = "canceled"
)

type copyQueue = queue.Queue[copy.Params, s3types.Counts]

// Orchestrator turns a copy request into a task queue and runs it.
// One Orchestrator runs at most one request at a time.
type Orchestrator struct {
	client  s3api.S3API
	cfg     s3types.Config
	logger  *slog.Logger
	metrics *metrics.Recorder

	mu    sync.Mutex
	state State
	queue *copyQueue
}

// New creates an Orchestrator that copies through client.
//
// Example:
//
//	client, err := s3copy.NewClient(ctx, s3copy.WithRegion("eu-west-1"))
//	if err != nil {
//	    return err
//	}
//	o := s3copy.New(client, s3copy.WithParallel(10), s3copy.WithFailStop(true))
//	resp, err := o.Run(ctx, &s3types.Request{...})
func New(client s3api.S3API, opts ...s3types.Option) *Orchestrator {
	cfg := s3types.Config{
		Parallel:        DefaultParallel,
		MaxFailLimit:    copy.NoFailLimit,
		ListPageSize:    list.MaxPageSize,
		ChunkSize:       copy.MaxSingleCopySize,
		PartSize:        copy.DefaultPartSize,
		PartConcurrency: copy.DefaultPartConcurrency,
		Logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	var rec *metrics.Recorder
	if cfg.Registerer != nil {
		rec = metrics.New(cfg.Registerer)
	}

	return &Orchestrator{
		client:  client,
		cfg:     cfg,
		logger:  cfg.Logger,
		metrics: rec,
		state:   StateIdle,
	}
}

// Run copies every item of req and reports the aggregated counts.
//
// Per-object failures never make Run return an error: they are counted and,
// when the run ends early because of them, reported in ItemResult.Error. Run
// returns an error only when req is invalid or another run is active.
func (o *Orchestrator) Run(ctx context.Context, req *s3types.Request) (*s3types.Response, error) {
	if req == nil {
		return nil, errors.NewError("run", errors.ErrInvalidArgument).WithMessage("request is nil")
	}

	params, err := buildParams(req)
	if err != nil {
		return nil, err
	}

	q := o.newQueue()
	q.Enqueue("", params...)

	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return nil, errors.NewError("run", errors.ErrAlreadyRunning)
	}
	o.state = StateRunning
	o.queue = q
	o.mu.Unlock()

	o.logger.Info("copy run started",
		"items", len(req.Items),
		"parallel", o.cfg.Parallel,
		"fail_stop", o.cfg.FailStop,
		"max_fail_limit", o.cfg.MaxFailLimit,
	)

	acc, runErr := q.Run(ctx)
	final := finalState(runErr)

	o.mu.Lock()
	o.state = final
	o.queue = nil
	o.mu.Unlock()

	o.metrics.RecordRun(string(final))
	o.logger.Info("copy run finished",
		"state", final,
		"success", acc.Success,
		"fail", acc.Fail,
		"skipped", acc.Skipped,
	)

	result := s3types.ItemResult{
		Params: summarize(req),
		Result: acc,
	}
	if runErr != nil {
		result.Err = runErr
		result.Error = runErr.Error()
	}
	return &s3types.Response{Results: []s3types.ItemResult{result}}, nil
}

// Cancel stops the active run. Running copies finish or observe their
// canceled context; nothing further is dispatched. It is a no-op when no run
// is active.
func (o *Orchestrator) Cancel(reason error) {
	o.mu.Lock()
	q := o.queue
	o.mu.Unlock()
	if q == nil {
		return
	}
	if err := q.Cancel(reason); err != nil {
		o.logger.Debug("cancel returned an error", "error", err)
	}
}

// State returns the lifecycle state of the orchestrator.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) newQueue() *copyQueue {
	interceptors := append([]s3types.Interceptor{copy.LoopGuard}, o.cfg.Interceptors...)
	copier := copy.NewCopier(o.client,
		copy.WithInterceptors(interceptors...),
		copy.WithChunkSize(o.cfg.ChunkSize),
		copy.WithPartSize(o.cfg.PartSize),
		copy.WithPartConcurrency(o.cfg.PartConcurrency),
		copy.WithDetectContentType(o.cfg.DetectContentType),
		copy.WithLogger(o.logger),
		copy.WithMetrics(o.metrics),
	)
	body := copy.NewBody(copier, o.cfg.MaxFailLimit)
	strategy := hierarchy.New[copy.Params, s3types.Counts](body,
		list.New(o.client, o.cfg.ListPageSize),
		hierarchy.WithLogger(o.logger),
	)
	return queue.New[copy.Params, s3types.Counts](strategy, s3types.Counts{},
		queue.WithParallel(o.cfg.Parallel),
		queue.WithFailStop(o.cfg.FailStop),
		queue.WithLogger(o.logger),
	)
}

func finalState(err error) State {
	switch {
	case err == nil:
		return StateCompleted
	case errors.Is(err, errors.ErrTaskFailed), errors.Is(err, errors.ErrThresholdExceeded):
		return StateFailed
	default:
		return StateCanceled
	}
}

// buildParams validates req and lays the request defaults under each item.
func buildParams(req *s3types.Request) ([]copy.Params, error) {
	if len(req.Items) == 0 {
		return nil, errors.NewError("run", errors.ErrInvalidArgument).WithMessage("request has no items")
	}

	d := req.Defaults
	if err := validation.ValidateDefaults(d); err != nil {
		return nil, errors.NewError("run", err)
	}

	params := make([]copy.Params, 0, len(req.Items))
	for _, item := range req.Items {
		if err := validation.ValidateItem(item); err != nil {
			return nil, errors.NewError("run", err)
		}
		params = append(params, overlay(item, d))
	}
	return params, nil
}

func overlay(item s3types.CopyItem, d s3types.Defaults) copy.Params {
	p := copy.Params{
		Source: item.Source,
		Target: s3types.Location{
			Bucket: d.TargetBucket,
			Region: d.TargetRegion,
		},
		KeyTemplate:     pick(item.TargetKeyTemplate, d.TargetKeyTemplate),
		RelativePrefix:  d.RelativePrefix,
		Headers:         d.Headers,
		HeaderDirective: pick(item.HeaderDirective, d.HeaderDirective),
		ACL:             d.ACL,
		ACLDirective:    pick(item.ACLDirective, d.ACLDirective),
		Tags:            d.Tags,
		TagDirective:    pick(item.TagDirective, d.TagDirective),
		StorageClass:    pick(item.StorageClass, d.StorageClass),
		DeleteSource:    d.DeleteSource,
		TriggerType:     d.TriggerType,
		AvoidLoop:       d.AvoidLoop,
		Leaf:            item.IsLeaf,
	}

	if t := item.Target; t != nil {
		p.Target.Bucket = pick(t.Bucket, p.Target.Bucket)
		p.Target.Region = pick(t.Region, p.Target.Region)
		p.Target.Key = t.Key
	}
	if item.RelativePrefix != nil {
		p.RelativePrefix = *item.RelativePrefix
	}
	if item.Headers != nil {
		p.Headers = item.Headers
	}
	if item.ACL != nil {
		p.ACL = item.ACL
	}
	if item.Tags != nil {
		p.Tags = item.Tags
	}
	if item.DeleteSource != nil {
		p.DeleteSource = *item.DeleteSource
	}
	return p
}

func pick[T comparable](override, fallback T) T {
	var zero T
	if override != zero {
		return override
	}
	return fallback
}

func summarize(req *s3types.Request) s3types.Summary {
	sources := make([]s3types.Location, 0, len(req.Items))
	for _, item := range req.Items {
		sources = append(sources, item.Source)
	}
	return s3types.Summary{
		Items:    len(req.Items),
		Sources:  sources,
		Defaults: req.Defaults,
	}
}
