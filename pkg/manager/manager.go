// Package manager implements the Resource Manager (C10): the
// application-facing facade wiring together the store, driver registry,
// task queue, worker pool, balancer manager, and reaper, plus the
// crash-recovery sweep that runs once before any of them starts.
package manager

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudkeep/poolkeeper/pkg/balancer"
	"github.com/cloudkeep/poolkeeper/pkg/driver"
	"github.com/cloudkeep/poolkeeper/pkg/log"
	"github.com/cloudkeep/poolkeeper/pkg/poolerr"
	"github.com/cloudkeep/poolkeeper/pkg/pool"
	"github.com/cloudkeep/poolkeeper/pkg/queue"
	"github.com/cloudkeep/poolkeeper/pkg/reaper"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
	"github.com/cloudkeep/poolkeeper/pkg/worker"
)

// inFlightStates are the statuses that mean "a task was executing" — a
// resource found in one of these with processing=true after a restart was
// interrupted mid-task.
var inFlightStates = []types.Status{
	types.StatusStarting,
	types.StatusStopping,
	types.StatusWiping,
	types.StatusDeleting,
}

// ResourceManager is the single application-facing facade: every HTTP
// handler and CLI command goes through it, never touching the store,
// queue, or balancers directly. It is constructed once per process.
type ResourceManager struct {
	store       storage.Store
	registry    *driver.Registry
	queue       *queue.Queue
	workers     *worker.Pool
	balancerMgr *balancer.Manager
	reaper      *reaper.Reaper
	pools       map[string]*pool.Pool
	logger      zerolog.Logger
}

// New wires a ResourceManager from cfg, store, and registry: runs the
// crash-recovery sweep, then starts the queue's workers, one balancer per
// configured driver, and the reaper. Nothing here (including background
// loops) is optional — a manager with no work to do is still fully wired,
// just idle.
func New(cfg *Config, store storage.Store, registry *driver.Registry) (*ResourceManager, error) {
	logger := log.WithComponent("manager")

	recovered, err := recoverCrashed(store)
	if err != nil {
		return nil, fmt.Errorf("crash-recovery sweep failed: %w", err)
	}
	if recovered > 0 {
		logger.Warn().Int("count", recovered).Msg("recovered resources left in-flight by a previous crash")
	}

	q := queue.New(store, 256)
	workers := worker.New(store, q, registry, time.Duration(cfg.TaskQueueTimeout)*time.Second)
	workers.Start(cfg.WorkersCount)

	balancerMgr := balancer.NewManager(time.Duration(cfg.SleepTime) * time.Second)
	pools := make(map[string]*pool.Pool, len(cfg.Drivers))
	for name, dc := range cfg.Drivers {
		drv, err := registry.Get(name)
		if err != nil {
			return nil, fmt.Errorf("driver %q has no registered implementation: %w", name, err)
		}
		p := pool.New(name, store)
		u := pool.NewUnusedSet(name, store, drv)
		pools[name] = p
		bal := balancer.New(name, p, u, q, types.Watermarks{Low: dc.LowWatermark, High: dc.HighWatermark})
		if err := balancerMgr.AddBalancer(bal); err != nil {
			return nil, err
		}
	}
	balancerMgr.Run()

	r := reaper.New(store, time.Duration(cfg.SleepTime)*time.Second)
	r.Run()

	return &ResourceManager{
		store:       store,
		registry:    registry,
		queue:       q,
		workers:     workers,
		balancerMgr: balancerMgr,
		reaper:      r,
		pools:       pools,
		logger:      logger,
	}, nil
}

// recoverCrashed transitions every resource left processing=true in an
// in-flight status to ERROR/processing=false, via a plain Update rather
// than a compare-and-set: it runs before anything else touches the store,
// so there is no race to guard against yet.
func recoverCrashed(store storage.Store) (int, error) {
	resources, err := store.Find(types.Search{Filter: types.Filter{
		Statuses:   inFlightStates,
		Processing: types.BoolPtr(true),
	}})
	if err != nil {
		return 0, err
	}
	for _, r := range resources {
		if _, err := store.Update(r.ID, map[string]interface{}{
			"status":     types.StatusError,
			"processing": false,
		}); err != nil {
			return 0, fmt.Errorf("failed to recover resource %s: %w", r.ID, err)
		}
	}
	return len(resources), nil
}

// Close stops every background subsystem in shutdown order: balancer
// manager and reaper first (stop generating new work), then workers
// (drain in-flight tasks), matching the teacher lineage's ordered
// shutdown convention.
func (m *ResourceManager) Close() error {
	m.balancerMgr.Kill()
	m.reaper.Kill()
	m.workers.Stop()
	return m.store.Close()
}

// Add validates values against driver's schema, lets the driver
// materialize the non-persistent fields for an already-STARTED resource,
// and persists it.
func (m *ResourceManager) Add(driverName string, values map[string]interface{}) (*types.Resource, error) {
	drv, err := m.registry.Get(driverName)
	if err != nil {
		return nil, poolerr.InvalidInput("unknown driver %q", driverName)
	}
	if err := drv.Validate(values); err != nil {
		return nil, poolerr.InvalidInput("%s", err.Error())
	}
	data, err := drv.Prepare(types.StatusStarted, values)
	if err != nil {
		return nil, fmt.Errorf("driver failed to prepare resource: %w", err)
	}
	data["status"] = types.StatusStarted
	return m.store.Create(driverName, data)
}

// Get returns a single resource by id.
func (m *ResourceManager) Get(id string) (*types.Resource, error) {
	return m.store.Get(id)
}

// List returns resources matching search.
func (m *ResourceManager) List(search types.Search) ([]*types.Resource, error) {
	return m.store.Find(search)
}

// Allocate marks a resource as handed out to a client: allocated=true,
// processing=false. It is rejected while the resource is mid-transition
// or already allocated.
func (m *ResourceManager) Allocate(id string) (*types.Resource, error) {
	updated, err := m.store.CompareAndSet(id,
		types.Filter{Processing: types.BoolPtr(false), Allocated: types.BoolPtr(false)},
		map[string]interface{}{"allocated": true, "processing": false})
	if err != nil || updated != nil {
		return updated, err
	}
	r, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if r.Processing {
		return nil, poolerr.Conflict(poolerr.ConflictProcessing, id)
	}
	return nil, poolerr.Conflict(poolerr.ConflictAllocated, id)
}

// Deallocate returns a resource to the pool's care: allocated=false,
// processing=true, and enqueues a Wipe task so it's clean before it's
// reused.
func (m *ResourceManager) Deallocate(id string) (*types.Resource, error) {
	r, err := m.store.CompareAndSet(id,
		types.Filter{Processing: types.BoolPtr(false)},
		map[string]interface{}{"allocated": false, "processing": true})
	if err != nil {
		return nil, err
	}
	if r == nil {
		if _, err := m.store.Get(id); err != nil {
			return nil, err
		}
		return nil, poolerr.Conflict(poolerr.ConflictProcessing, id)
	}
	if err := m.queue.Push(queue.NewWipeTask(r)); err != nil {
		m.logger.Error().Err(err).Str("resource_id", id).Msg("failed to push wipe task on deallocate")
		return nil, err
	}
	return r, nil
}

// Delete marks a resource processing=true and enqueues a Delete task.
// force, when true, makes the eventual worker outcome DELETED even if the
// driver's teardown call fails.
func (m *ResourceManager) Delete(id string, force bool) error {
	r, err := m.store.Get(id)
	if err != nil {
		return err
	}
	if r.Processing {
		return poolerr.Conflict(poolerr.ConflictProcessing, id)
	}
	if r.Allocated {
		return poolerr.Conflict(poolerr.ConflictAllocated, id)
	}
	r, err = m.store.Update(id, map[string]interface{}{"processing": true})
	if err != nil {
		return err
	}
	return m.queue.Push(queue.NewDeleteTask(r, force))
}

// Schema returns driverName's input schema.
func (m *ResourceManager) Schema(driverName string) (types.Schema, error) {
	drv, err := m.registry.Get(driverName)
	if err != nil {
		return types.Schema{}, poolerr.NotFound("driver", driverName)
	}
	return drv.Schema(), nil
}

// DriverNames returns every registered driver's name.
func (m *ResourceManager) DriverNames() []string {
	return m.registry.Names()
}

// Depth returns the number of tasks currently queued, awaiting a worker.
func (m *ResourceManager) Depth() int {
	return m.queue.Depth()
}
