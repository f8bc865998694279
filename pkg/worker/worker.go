// Package worker implements the Task Worker pool (C4): a fixed number of
// goroutines consuming tasks from the queue, invoking the resolved driver
// method, and writing the outcome back to the store.
package worker

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudkeep/poolkeeper/pkg/driver"
	"github.com/cloudkeep/poolkeeper/pkg/log"
	"github.com/cloudkeep/poolkeeper/pkg/metrics"
	"github.com/cloudkeep/poolkeeper/pkg/queue"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
)

// Pool runs N workers, each looping pop -> execute -> write outcome.
// Shutdown is cooperative: Stop closes stopCh, and each worker exits after
// its current task completes or its next Pop times out, per §5.
type Pool struct {
	store    storage.Store
	queue    *queue.Queue
	registry *driver.Registry
	timeout  time.Duration
	logger   zerolog.Logger

	wg     sync.WaitGroup
	stopCh chan struct{}
}

// New returns a worker Pool. Start spawns n goroutines against queue,
// resolving drivers from registry and writing outcomes to store. timeout
// is the per-Pop blocking duration (task_queue_timeout).
func New(store storage.Store, q *queue.Queue, registry *driver.Registry, timeout time.Duration) *Pool {
	return &Pool{
		store:    store,
		queue:    q,
		registry: registry,
		timeout:  timeout,
		logger:   log.WithComponent("worker"),
		stopCh:   make(chan struct{}),
	}
}

// Start spawns n worker goroutines.
func (p *Pool) Start(n int) {
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Stop signals every worker to exit once its current task (if any)
// finishes, and blocks until they have.
func (p *Pool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *Pool) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		task, err := p.queue.Pop(p.timeout)
		if err != nil {
			p.logger.Error().Err(err).Msg("queue pop failed")
			continue
		}
		if task == nil {
			continue
		}
		p.execute(*task)
	}
}

// execute runs one task to completion and writes its outcome back to the
// store. It never touches the queue between invoking the driver and
// writing the outcome: a crash here leaves the resource in a ...ING status
// with processing=true, recoverable by the manager's startup sweep.
func (p *Pool) execute(task queue.Task) {
	taskLog := p.logger.With().
		Str("resource_id", task.Resource.ID).
		Str("driver", task.Resource.Driver).
		Str("kind", string(task.Kind)).
		Logger()

	timer := metrics.NewTimer()
	err := task.Execute(p.registry)
	timer.ObserveDurationVec(metrics.TaskDuration, string(task.Kind))

	var forced *queue.ErrForcedThrough
	if errors.As(err, &forced) {
		taskLog.Warn().Err(forced.Err).Msg("forced delete proceeding despite driver failure")
		err = nil
	}

	if err == nil {
		taskLog.Debug().Str("status", string(task.SuccessState)).Msg("task succeeded")
		values := map[string]interface{}{
			"status":     task.SuccessState,
			"processing": false,
		}
		for k, v := range task.Resource.Data {
			values[k] = v
		}
		if _, updateErr := p.store.Update(task.Resource.ID, values); updateErr != nil {
			taskLog.Error().Err(updateErr).Msg("failed to write task success outcome")
		}
		return
	}

	taskLog.Error().Err(err).Str("status", string(task.FailState)).Msg("task failed")
	metrics.TasksFailedTotal.WithLabelValues(string(task.Kind)).Inc()
	if _, updateErr := p.store.Update(task.Resource.ID, map[string]interface{}{
		"status":     task.FailState,
		"processing": false,
	}); updateErr != nil {
		taskLog.Error().Err(updateErr).Msg("failed to write task failure outcome")
	}
}
