// Package queue implements the Task Queue (C3): a bounded FIFO of tasks
// with a blocking, timeout-bounded pop, and the push-gate compare-and-set
// that is the load-bearing synchronization primitive of the whole engine.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudkeep/poolkeeper/pkg/driver"
	"github.com/cloudkeep/poolkeeper/pkg/metrics"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

// Kind names a task's operation, used for metrics labels and logging.
type Kind string

const (
	KindStart  Kind = "start"
	KindStop   Kind = "stop"
	KindWipe   Kind = "wipe"
	KindDelete Kind = "delete"
)

// Task is a unit of work scheduled against a single resource: one driver
// call and its associated state transition. The balancer/task-subclass
// hierarchy of the source lineage collapses to this single value plus the
// Kind tag, per the design note in SPEC_FULL.md.
type Task struct {
	Kind         Kind
	Resource     *types.Resource
	InStates     []types.Status
	ProcessState types.Status
	SuccessState types.Status
	FailState    types.Status
	// Force, meaningful only for KindDelete: a failure inside the
	// underlying driver call still advances to SuccessState (DELETED)
	// instead of FailState, and is not propagated to the caller.
	Force bool
}

// NewStartTask builds the Start task: STOPPED -> STARTING -> STARTED/ERROR,
// driver.Init.
func NewStartTask(resource *types.Resource) Task {
	return Task{
		Kind:         KindStart,
		Resource:     resource,
		InStates:     []types.Status{types.StatusStopped},
		ProcessState: types.StatusStarting,
		SuccessState: types.StatusStarted,
		FailState:    types.StatusError,
	}
}

// NewStopTask builds the Stop task: STARTED -> STOPPING -> STOPPED/ERROR,
// driver.Stop.
func NewStopTask(resource *types.Resource) Task {
	return Task{
		Kind:         KindStop,
		Resource:     resource,
		InStates:     []types.Status{types.StatusStarted},
		ProcessState: types.StatusStopping,
		SuccessState: types.StatusStopped,
		FailState:    types.StatusError,
	}
}

// NewWipeTask builds the Wipe task: STARTED -> WIPING -> STARTED/ERROR,
// driver.Wipe.
func NewWipeTask(resource *types.Resource) Task {
	return Task{
		Kind:         KindWipe,
		Resource:     resource,
		InStates:     []types.Status{types.StatusStarted},
		ProcessState: types.StatusWiping,
		SuccessState: types.StatusStarted,
		FailState:    types.StatusError,
	}
}

// NewDeleteTask builds the Delete task: {ERROR,STOPPED} -> DELETING ->
// DELETED/ERROR, driver.Stop. When force is true, a failed driver.Stop
// still advances to DELETED rather than ERROR.
func NewDeleteTask(resource *types.Resource, force bool) Task {
	return Task{
		Kind:         KindDelete,
		Resource:     resource,
		InStates:     []types.Status{types.StatusError, types.StatusStopped},
		ProcessState: types.StatusDeleting,
		SuccessState: types.StatusDeleted,
		FailState:    types.StatusError,
		Force:        force,
	}
}

// ErrForcedThrough wraps a driver failure that a forced Delete task chose
// not to fail on: the resource still advances to SuccessState (DELETED),
// but the underlying error is kept here so the worker can log it for
// operator observability instead of discarding it silently.
type ErrForcedThrough struct {
	Err error
}

func (e *ErrForcedThrough) Error() string { return e.Err.Error() }
func (e *ErrForcedThrough) Unwrap() error { return e.Err }

// Execute resolves the task's driver by resource.Driver and invokes the
// matching method. It never touches the store: the caller (the Worker)
// writes back the outcome. A non-nil *ErrForcedThrough return means the
// task still counts as a success (see ErrForcedThrough).
func (t Task) Execute(registry *driver.Registry) error {
	d, err := registry.Get(t.Resource.Driver)
	if err != nil {
		return err
	}
	switch t.Kind {
	case KindStart:
		return d.Init(t.Resource)
	case KindStop:
		return d.Stop(t.Resource)
	case KindWipe:
		return d.Wipe(t.Resource)
	case KindDelete:
		err := d.Stop(t.Resource)
		if err != nil && t.Force {
			return &ErrForcedThrough{Err: err}
		}
		return err
	default:
		return fmt.Errorf("unknown task kind: %s", t.Kind)
	}
}

// Queue is a bounded, multi-producer/multi-consumer FIFO of tasks.
type Queue struct {
	store storage.Store
	ch    chan Task
}

// New returns a Queue of the given capacity, backed by store for the push
// gate's compare-and-set.
func New(store storage.Store, capacity int) *Queue {
	return &Queue{store: store, ch: make(chan Task, capacity)}
}

// ErrPushGateRejected means the compare-and-set at push time found the
// resource no longer in one of task.InStates: some other actor (another
// task push, an allocate, a deallocate) won the race first. Per §4.3 this
// is a programming error in the caller, not a transient condition to
// retry — the caller should simply drop the task.
type ErrPushGateRejected struct {
	ResourceID string
}

func (e *ErrPushGateRejected) Error() string {
	return fmt.Sprintf("push gate rejected: resource %s is no longer in an allowed pre-state", e.ResourceID)
}

// Push performs the push-gate compare-and-set (resource.status IN
// task.InStates) -> (status=ProcessState, processing=true), and only on
// success enqueues the task. If the compare-and-set doesn't apply, Push
// returns ErrPushGateRejected and the task is not enqueued: the caller
// lost a race to another actor and must not retry blindly.
//
// Push is non-blocking beyond the CAS itself: if the channel is full it
// returns an error rather than blocking the caller (balancer tick or
// Resource Manager request) indefinitely.
func (q *Queue) Push(task Task) error {
	updated, err := q.store.CompareAndSet(
		task.Resource.ID,
		types.Filter{Statuses: task.InStates},
		map[string]interface{}{"status": task.ProcessState, "processing": true},
	)
	if err != nil {
		return fmt.Errorf("push gate compare-and-set failed: %w", err)
	}
	if updated == nil {
		return &ErrPushGateRejected{ResourceID: task.Resource.ID}
	}
	task.Resource = updated

	select {
	case q.ch <- task:
		metrics.TasksPushedTotal.WithLabelValues(string(task.Kind)).Inc()
		return nil
	default:
		return fmt.Errorf("task queue is full (capacity %d)", cap(q.ch))
	}
}

// Pop blocks until a task is available or timeout elapses, returning
// (nil, nil) on timeout.
func (q *Queue) Pop(timeout time.Duration) (*Task, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	select {
	case task := <-q.ch:
		return &task, nil
	case <-ctx.Done():
		return nil, nil
	}
}

// Depth returns the number of tasks currently queued.
func (q *Queue) Depth() int {
	return len(q.ch)
}
