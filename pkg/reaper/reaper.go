// Package reaper implements the Reaper (C9): a periodic sweep that
// permanently removes resources which have finished their Delete task and
// are no longer being touched by anything else.
package reaper

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudkeep/poolkeeper/pkg/log"
	"github.com/cloudkeep/poolkeeper/pkg/metrics"
	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

// Reaper deletes resources matching `processing = false ∧ status =
// DELETED` from the store on a fixed interval. status=DELETED is treated
// as the authoritative signal; the Resource struct's separate Deleted
// boolean is carried for compatibility with the source schema but is not
// read by this query.
type Reaper struct {
	store      storage.Store
	tickPeriod time.Duration
	logger     zerolog.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// New returns a Reaper sweeping store every tickPeriod once Run is called.
func New(store storage.Store, tickPeriod time.Duration) *Reaper {
	return &Reaper{
		store:      store,
		tickPeriod: tickPeriod,
		logger:     log.WithComponent("reaper"),
		stopCh:     make(chan struct{}),
	}
}

// Run starts the sweep loop in a goroutine.
func (r *Reaper) Run() {
	r.wg.Add(1)
	go r.run()
}

// Kill signals the sweep loop to stop and waits for it to exit.
func (r *Reaper) Kill() {
	close(r.stopCh)
	r.wg.Wait()
}

func (r *Reaper) run() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.tickPeriod)
	defer ticker.Stop()

	r.logger.Info().Dur("tick_interval", r.tickPeriod).Msg("reaper started")
	for {
		select {
		case <-ticker.C:
			if err := r.Sweep(); err != nil {
				r.logger.Error().Err(err).Msg("reaper sweep failed")
			}
		case <-r.stopCh:
			r.logger.Info().Msg("reaper stopped")
			return
		}
	}
}

// Sweep runs one pass: every resource with processing=false and
// status=DELETED is removed from the store. A failure deleting one
// resource is logged and does not stop the sweep from reaching the rest.
func (r *Reaper) Sweep() error {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.ReaperDuration)

	resources, err := r.store.Find(types.Search{Filter: types.Filter{
		Statuses:   []types.Status{types.StatusDeleted},
		Processing: types.BoolPtr(false),
	}})
	if err != nil {
		return err
	}

	for _, res := range resources {
		if err := r.store.Delete(res.ID); err != nil {
			r.logger.Error().Err(err).Str("resource_id", res.ID).Msg("failed to reap resource")
			continue
		}
		metrics.ReaperDeletedTotal.Inc()
		r.logger.Debug().Str("resource_id", res.ID).Msg("reaped resource")
	}
	return nil
}
