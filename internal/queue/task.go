package queue

import (
	"context"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a single task.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFail    Status = "fail"
)

// State is the lifecycle state of a queue.
type State string

const (
	StateWaiting  State = "waiting"
	StateRunning  State = "running"
	StateFail     State = "fail"
	StateCanceled State = "canceled"
)

// Task is a unit of work owned by exactly one queue.
type Task[P any] struct {
	ID     string
	Status Status
	Params P
	Result any
	Err    error

	cancel context.CancelFunc
}

func newTask[P any](params P) *Task[P] {
	return &Task[P]{
		ID:     uuid.NewString(),
		Status: StatusWaiting,
		Params: params,
	}
}

// Stats is a point-in-time view of the queue.
type Stats struct {
	Waiting    int
	Running    int
	Total      int
	Dispatched int
}
