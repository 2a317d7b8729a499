package copy

import (
	"context"
	"fmt"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/internal/queue"
	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/s3types"
)

// NoFailLimit disables the fail threshold.
const NoFailLimit = -1

// Body runs copy tasks for a hierarchical queue and counts their outcomes.
type Body struct {
	copier       *Copier
	maxFailLimit int

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewBody returns a Body that copies through copier. Once more than
// maxFailLimit tasks have failed, Fold asks the queue to cancel itself. A
// negative limit means no limit.
func NewBody(copier *Copier, maxFailLimit int) *Body {
	return &Body{
		copier:       copier,
		maxFailLimit: maxFailLimit,
		cancels:      make(map[string]context.CancelFunc),
	}
}

// Process copies one object.
func (b *Body) Process(ctx context.Context, task *queue.Task[Params]) (any, error) {
	ctx, cancel := context.WithCancel(ctx)
	b.track(task.ID, cancel)
	defer b.untrack(task.ID)

	b.copier.metrics.TaskStarted()
	defer b.copier.metrics.TaskDone()

	out, err := b.copier.CopyOne(ctx, task.Params)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CancelTask interrupts the storage calls of a running task.
func (b *Body) CancelTask(task *queue.Task[Params]) {
	b.mu.Lock()
	cancel, ok := b.cancels[task.ID]
	b.mu.Unlock()
	if ok {
		cancel()
	}
}

// Fold counts task outcomes. Skipped counts successes that copied nothing.
func (b *Body) Fold(acc s3types.Counts, task *queue.Task[Params]) (s3types.Counts, error) {
	loc := task.Params.Location()

	if task.Err != nil {
		acc.Fail++
		b.copier.metrics.RecordTask(metrics.OutcomeFail)
		b.copier.logger.Warn("copy failed",
			"task_id", task.ID,
			"bucket", loc.Bucket,
			"key", loc.Key,
			"code", errors.Classify(task.Err),
			"error", task.Err,
		)
		if b.maxFailLimit >= 0 && acc.Fail > b.maxFailLimit {
			return acc, errors.NewError("fold", errors.ErrThresholdExceeded).
				WithMessage(fmt.Sprintf("%d failed tasks, limit %d", acc.Fail, b.maxFailLimit))
		}
		return acc, nil
	}

	acc.Success++
	if out, ok := task.Result.(*s3types.Outcome); ok && !out.Copied {
		acc.Skipped++
		b.copier.metrics.RecordTask(metrics.OutcomeSkipped)
		return acc, nil
	}
	b.copier.metrics.RecordTask(metrics.OutcomeSuccess)
	return acc, nil
}

func (b *Body) track(id string, cancel context.CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancels[id] = cancel
}

func (b *Body) untrack(id string) {
	b.mu.Lock()
	cancel := b.cancels[id]
	delete(b.cancels, id)
	b.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
