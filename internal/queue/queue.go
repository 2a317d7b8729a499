package queue

import (
	"container/list"
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"

	s3errors "github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/errors"
)

// Enqueuer inserts new tasks into a running queue.
type Enqueuer[P any] interface {
	// Enqueue inserts one task per params value immediately after the task
	// identified by afterID, preserving the given order. Tasks are appended
	// when afterID is empty or unknown. It returns the new task ids.
	Enqueue(afterID string, params ...P) []string
}

// Body is the strategy that gives a queue its domain behaviour.
type Body[P, A any] interface {
	// Process runs one task. It is called without the queue lock held and may
	// call q.Enqueue to grow the task list.
	Process(ctx context.Context, q Enqueuer[P], task *Task[P]) (any, error)

	// Fold merges a finished task into the accumulator. It is called under the
	// queue lock, once per finished task. A non-nil error cancels the queue
	// with that error as the reason.
	Fold(acc A, task *Task[P]) (A, error)
}

// Canceler is implemented by bodies that can interrupt a running task on a
// best-effort basis when the queue is cancelled.
type Canceler[P any] interface {
	CancelTask(task *Task[P])
}

// TaskError is returned by Run when a task fails in fail-stop mode.
type TaskError struct {
	TaskID string
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %s: %v", e.TaskID, e.Err)
}

// Unwrap exposes both ErrTaskFailed and the task's own error.
func (e *TaskError) Unwrap() []error {
	return []error{s3errors.ErrTaskFailed, e.Err}
}

// Option configures a Queue.
type Option func(*config)

type config struct {
	parallel int
	failStop bool
	logger   *slog.Logger
}

// WithParallel sets the maximum number of concurrently running tasks.
// Values below one are ignored.
func WithParallel(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.parallel = n
		}
	}
}

// WithFailStop makes the first task error fail the whole run.
func WithFailStop(failStop bool) Option {
	return func(c *config) {
		c.failStop = failStop
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Queue runs an ordered, growable list of tasks with bounded concurrency.
//
// All task and queue state is guarded by mu. Task bodies run in their own
// goroutines and never hold mu, so completion handling (status update,
// removal, fold, next dispatch) is atomic with respect to other completions.
type Queue[P, A any] struct {
	body     Body[P, A]
	parallel int
	failStop bool
	logger   *slog.Logger

	mu           sync.Mutex
	state        State
	order        *list.List
	index        map[string]*list.Element
	running      map[string]*Task[P]
	acc          A
	dispatched   int
	cancelReason error

	ctx      context.Context
	stop     context.CancelFunc
	inflight sync.WaitGroup

	done     chan struct{}
	finished bool
	err      error
}

// New creates a queue driven by body, starting from the accumulator initial.
func New[P, A any](body Body[P, A], initial A, opts ...Option) *Queue[P, A] {
	cfg := &config{
		parallel: 1,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Queue[P, A]{
		body:     body,
		parallel: cfg.parallel,
		failStop: cfg.failStop,
		logger:   cfg.logger,
		state:    StateWaiting,
		order:    list.New(),
		index:    make(map[string]*list.Element),
		running:  make(map[string]*Task[P]),
		acc:      initial,
		done:     make(chan struct{}),
	}
}

// Enqueue implements Enqueuer. Tasks offered after the queue failed or was
// cancelled are dropped.
func (q *Queue[P, A]) Enqueue(afterID string, params ...P) []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.finished || q.state == StateFail || q.state == StateCanceled {
		q.logger.Debug("dropping tasks enqueued after stop", "count", len(params), "state", q.state)
		return nil
	}

	mark := q.order.Back()
	if afterID != "" {
		if el, ok := q.index[afterID]; ok {
			mark = el
		}
	}

	ids := make([]string, 0, len(params))
	for _, p := range params {
		t := newTask(p)
		var el *list.Element
		if mark == nil {
			el = q.order.PushBack(t)
		} else {
			el = q.order.InsertAfter(t, mark)
		}
		q.index[t.ID] = el
		mark = el
		ids = append(ids, t.ID)
	}

	if q.state == StateRunning {
		q.dispatchLocked()
	}
	return ids
}

// Run dispatches tasks until the list drains, a task fails in fail-stop
// mode, or the queue is cancelled. It returns the final accumulator. The
// error is nil on a clean drain, a *TaskError on fail-stop, and an
// ErrCanceled-wrapped reason after cancellation. Cancelling ctx cancels the
// queue.
func (q *Queue[P, A]) Run(ctx context.Context) (A, error) {
	if ctx.Err() != nil {
		_ = q.Cancel(context.Cause(ctx))
	}

	q.mu.Lock()
	if q.state != StateWaiting {
		acc, err := q.acc, q.err
		if !q.finished {
			err = s3errors.ErrAlreadyRunning
		}
		q.mu.Unlock()
		return acc, err
	}

	q.state = StateRunning
	q.ctx, q.stop = context.WithCancel(ctx)
	q.logger.Debug("queue started", "tasks", q.order.Len(), "parallel", q.parallel, "fail_stop", q.failStop)
	if q.order.Len() == 0 {
		q.finishLocked(nil)
	} else {
		q.dispatchLocked()
	}
	q.mu.Unlock()

	select {
	case <-q.done:
	case <-ctx.Done():
		_ = q.Cancel(context.Cause(ctx))
		<-q.done
	}
	q.stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	return q.acc, q.err
}

// Cancel stops dispatching, asks the body to interrupt running tasks and
// waits for all of them to finish. A pending Run then returns the
// accumulator with an ErrCanceled-wrapped reason. Calling Cancel after the
// run ended only waits for stragglers.
func (q *Queue[P, A]) Cancel(reason error) error {
	if reason == nil {
		reason = context.Canceled
	}

	q.mu.Lock()
	switch q.state {
	case StateWaiting:
		q.state = StateCanceled
		q.cancelReason = reason
		q.clearWaitingLocked()
		q.finishLocked(canceledError(reason))
		q.mu.Unlock()
		return nil
	case StateRunning:
		if !q.finished {
			q.beginCancelLocked(reason)
		}
	}
	running := make([]*Task[P], 0, len(q.running))
	for _, t := range q.running {
		running = append(running, t)
	}
	q.mu.Unlock()

	if c, ok := q.body.(Canceler[P]); ok {
		for _, t := range running {
			c.CancelTask(t)
		}
	}

	q.drain()
	return nil
}

// State returns the queue state.
func (q *Queue[P, A]) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Stats returns the current task counts.
func (q *Queue[P, A]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	waiting := 0
	for e := q.order.Front(); e != nil; e = e.Next() {
		if e.Value.(*Task[P]).Status == StatusWaiting {
			waiting++
		}
	}
	return Stats{
		Waiting:    waiting,
		Running:    len(q.running),
		Total:      q.order.Len(),
		Dispatched: q.dispatched,
	}
}

// Snapshot returns the params of every listed task in list order.
func (q *Queue[P, A]) Snapshot() []P {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]P, 0, q.order.Len())
	for e := q.order.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*Task[P]).Params)
	}
	return out
}

func (q *Queue[P, A]) dispatchLocked() {
	for q.state == StateRunning && len(q.running) < q.parallel {
		t := q.nextWaitingLocked()
		if t == nil {
			return
		}
		q.startLocked(t)
	}
}

func (q *Queue[P, A]) nextWaitingLocked() *Task[P] {
	for e := q.order.Front(); e != nil; e = e.Next() {
		if t := e.Value.(*Task[P]); t.Status == StatusWaiting {
			return t
		}
	}
	return nil
}

func (q *Queue[P, A]) startLocked(t *Task[P]) {
	t.Status = StatusRunning
	q.running[t.ID] = t
	q.dispatched++

	ctx, cancel := context.WithCancel(q.ctx)
	t.cancel = cancel

	q.inflight.Add(1)
	go q.execute(ctx, t)
}

func (q *Queue[P, A]) execute(ctx context.Context, t *Task[P]) {
	defer q.inflight.Done()
	result, err := q.process(ctx, t)
	q.complete(t, result, err)
}

func (q *Queue[P, A]) process(ctx context.Context, t *Task[P]) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("task panicked", "task_id", t.ID, "panic", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("task panic: %v", r)
		}
	}()
	return q.body.Process(ctx, q, t)
}

func (q *Queue[P, A]) complete(t *Task[P], result any, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t.cancel()
	q.removeLocked(t)
	t.Result = result
	t.Err = err
	if err != nil {
		t.Status = StatusFail
		q.logger.Debug("task failed", "task_id", t.ID, "error", err)
	} else {
		t.Status = StatusSuccess
	}

	// The run was already rejected; late completions are dropped.
	if q.state == StateFail {
		return
	}

	acc, foldErr := q.body.Fold(q.acc, t)
	q.acc = acc

	if err != nil && q.failStop && q.state == StateRunning {
		q.failLocked(t)
		return
	}

	if foldErr != nil && q.state == StateRunning {
		q.logger.Warn("queue cancelling itself", "task_id", t.ID, "reason", foldErr)
		q.beginCancelLocked(foldErr)
		go func() { _ = q.Cancel(foldErr) }()
		return
	}

	if q.state != StateRunning {
		return
	}
	if q.order.Len() == 0 && len(q.running) == 0 {
		q.finishLocked(nil)
		return
	}
	q.dispatchLocked()
}

func (q *Queue[P, A]) failLocked(t *Task[P]) {
	q.state = StateFail
	for _, r := range q.running {
		r.cancel()
	}
	q.clearWaitingLocked()
	q.logger.Error("queue failed", "task_id", t.ID, "error", t.Err)
	q.finishLocked(&TaskError{TaskID: t.ID, Err: t.Err})
}

func (q *Queue[P, A]) beginCancelLocked(reason error) {
	q.state = StateCanceled
	q.cancelReason = reason
	q.clearWaitingLocked()
}

func (q *Queue[P, A]) drain() {
	q.inflight.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	q.clearWaitingLocked()
	if q.state == StateCanceled {
		q.finishLocked(canceledError(q.cancelReason))
	}
}

func (q *Queue[P, A]) removeLocked(t *Task[P]) {
	if el, ok := q.index[t.ID]; ok {
		q.order.Remove(el)
		delete(q.index, t.ID)
	}
	delete(q.running, t.ID)
}

func (q *Queue[P, A]) clearWaitingLocked() {
	for e := q.order.Front(); e != nil; {
		next := e.Next()
		if t := e.Value.(*Task[P]); t.Status == StatusWaiting {
			q.order.Remove(e)
			delete(q.index, t.ID)
		}
		e = next
	}
}

func (q *Queue[P, A]) finishLocked(err error) {
	if q.finished {
		return
	}
	q.finished = true
	q.err = err
	close(q.done)
	q.logger.Debug("queue finished", "state", q.state, "dispatched", q.dispatched, "error", err)
}

func canceledError(reason error) error {
	return fmt.Errorf("%w: %w", s3errors.ErrCanceled, reason)
}
