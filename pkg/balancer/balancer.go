// Package balancer implements the Balancer (C7) and Balancer Manager (C8):
// the control loop that keeps each driver's pool between its low and high
// watermarks by moving resources between the Unused Set, the Pool, and the
// Task Queue.
package balancer

import (
	"github.com/rs/zerolog"

	"github.com/cloudkeep/poolkeeper/pkg/log"
	"github.com/cloudkeep/poolkeeper/pkg/pool"
	"github.com/cloudkeep/poolkeeper/pkg/queue"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

// Balancer runs the three ordered phases (eliminate deficit, eliminate
// overflow, stop unused started) for a single driver's pool. The source
// lineage's Balancer/TaskBasedBalancer/SimpleBalancer/DNRMBalancer
// hierarchy collapses to this one concrete type: nothing else in this
// system ever needed a second balancing strategy.
type Balancer struct {
	driverName string
	pool       *pool.Pool
	unused     *pool.UnusedSet
	queue      *queue.Queue
	watermarks types.Watermarks
	logger     zerolog.Logger
}

// New returns a Balancer for driverName, maintaining p between
// watermarks.Low and watermarks.High by drawing from u and pushing tasks
// onto q.
func New(driverName string, p *pool.Pool, u *pool.UnusedSet, q *queue.Queue, watermarks types.Watermarks) *Balancer {
	return &Balancer{
		driverName: driverName,
		pool:       p,
		unused:     u,
		queue:      q,
		watermarks: watermarks,
		logger:     log.WithComponent("balancer"),
	}
}

// Name identifies the balancer by its pool's name, matching the teacher
// convention of a component's Name() being its key in its owning manager.
func (b *Balancer) Name() string { return b.pool.Name() }

// Balance runs one pass of the three phases. A resource that loses a
// push-gate race to another actor between being claimed here and the task
// queue's compare-and-set is logged and skipped, not treated as a
// balancer failure.
func (b *Balancer) Balance() error {
	poolCount, err := b.pool.Count()
	if err != nil {
		return err
	}
	// The active reserve counts in-flight (processing=true) resources in
	// STARTED/STARTING/WIPING: work from earlier ticks that is already on
	// its way into the pool. Idle STARTED resources are deliberately NOT
	// counted — they get claimed by eliminateDeficit below, and anything
	// left over is stopped in the final phase.
	activeReserve, err := b.unused.Count(types.ActiveStates, true)
	if err != nil {
		return err
	}

	b.logger.Debug().
		Str("driver", b.driverName).
		Int("low", b.watermarks.Low).
		Int("high", b.watermarks.High).
		Int("pool_count", poolCount).
		Int("active_reserve", activeReserve).
		Msg("balance pass")

	deficit := b.watermarks.Low - (poolCount + activeReserve)
	if deficit > 0 {
		if err := b.eliminateDeficit(deficit); err != nil {
			return err
		}
	}

	poolCount, err = b.pool.Count()
	if err != nil {
		return err
	}
	overflow := poolCount - b.watermarks.High
	if overflow > 0 {
		if err := b.eliminateOverflow(overflow); err != nil {
			return err
		}
	}

	return b.stopUnused()
}

// eliminateDeficit moves already-STARTED unused resources straight into
// the pool, then starts STOPPED ones (auto-provisioning through the
// driver if necessary) to cover whatever's left.
func (b *Balancer) eliminateDeficit(deficit int) error {
	started, err := b.unused.Get(types.StatusStarted, deficit)
	if err != nil {
		return err
	}
	b.logger.Debug().Int("claimed", len(started)).Int("deficit", deficit).Msg("eliminate deficit: reuse started")
	for _, r := range started {
		if err := b.pool.Push(r.ID); err != nil {
			b.logger.Error().Err(err).Str("resource_id", r.ID).Msg("failed to push resource into pool")
		}
	}

	residual := deficit - len(started)
	if residual <= 0 {
		return nil
	}

	stopped, err := b.unused.Get(types.StatusStopped, residual)
	if err != nil {
		return err
	}
	b.logger.Debug().Int("claimed", len(stopped)).Int("residual", residual).Msg("eliminate deficit: start stopped")
	for _, r := range stopped {
		b.pushTask(queue.NewStartTask(r))
	}
	return nil
}

// eliminateOverflow pops resources out of the pool and stops them.
func (b *Balancer) eliminateOverflow(overflow int) error {
	popped, err := b.pool.Pop(overflow, true)
	if err != nil {
		return err
	}
	b.logger.Debug().Int("popped", len(popped)).Int("overflow", overflow).Msg("eliminate overflow")
	for _, r := range popped {
		b.pushTask(queue.NewStopTask(r))
	}
	return nil
}

// stopUnused returns any STARTED-but-unused resources to STOPPED so they
// stop consuming driver-side capacity indefinitely.
func (b *Balancer) stopUnused() error {
	started, err := b.unused.List(types.StatusStarted, 0)
	if err != nil {
		return err
	}
	if len(started) > 0 {
		b.logger.Debug().Int("unused_started", len(started)).Msg("stop unused")
	}
	for _, r := range started {
		b.pushTask(queue.NewStopTask(r))
	}
	return nil
}

func (b *Balancer) pushTask(task queue.Task) {
	if err := b.queue.Push(task); err != nil {
		b.logger.Warn().Err(err).Str("resource_id", task.Resource.ID).Str("kind", string(task.Kind)).
			Msg("push gate rejected task")
	}
}
