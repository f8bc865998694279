package metrics

import (
	"time"

	"github.com/cloudkeep/poolkeeper/pkg/storage"
	"github.com/cloudkeep/poolkeeper/pkg/types"
)

// allStatuses drives the per-status gauge refresh.
var allStatuses = []types.Status{
	types.StatusStopped,
	types.StatusStarting,
	types.StatusStarted,
	types.StatusStopping,
	types.StatusWiping,
	types.StatusDeleting,
	types.StatusDeleted,
	types.StatusError,
}

// QueueDepther reports the number of tasks currently queued. Satisfied by
// queue.Queue; declared here so the metrics package doesn't depend on it.
type QueueDepther interface {
	Depth() int
}

// Collector periodically refreshes the snapshot gauges (resource counts by
// driver and status, pool sizes, unused set sizes, queue depth) from the
// store. Counters and histograms are updated inline by the subsystems that
// own them; only the point-in-time gauges need a sweep.
type Collector struct {
	store    storage.Store
	queue    QueueDepther
	drivers  []string
	interval time.Duration
	stopCh   chan struct{}
}

// NewCollector returns a Collector refreshing gauges for the given drivers
// every interval once Start is called.
func NewCollector(store storage.Store, queue QueueDepther, drivers []string, interval time.Duration) *Collector {
	return &Collector{
		store:    store,
		queue:    queue,
		drivers:  drivers,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins collecting in a background goroutine.
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	if c.queue != nil {
		QueueDepth.Set(float64(c.queue.Depth()))
	}
	for _, driver := range c.drivers {
		c.collectDriver(driver)
	}
}

// collectDriver refreshes the per-driver gauges. A store error leaves the
// previous sample in place; the next tick retries.
func (c *Collector) collectDriver(driver string) {
	for _, status := range allStatuses {
		n, err := c.store.Count(types.Filter{Driver: driver, Statuses: []types.Status{status}})
		if err != nil {
			return
		}
		ResourcesTotal.WithLabelValues(driver, string(status)).Set(float64(n))

		unused, err := c.store.Count(types.Filter{
			Driver:    driver,
			Statuses:  []types.Status{status},
			Unused:    types.BoolPtr(true),
			Allocated: types.BoolPtr(false),
			Deleted:   types.BoolPtr(false),
		})
		if err != nil {
			return
		}
		UnusedSetSize.WithLabelValues(driver, string(status)).Set(float64(unused))
	}

	pooled, err := c.store.Count(types.Filter{
		Pool:      types.StringPtr(driver),
		Allocated: types.BoolPtr(false),
	})
	if err != nil {
		return
	}
	PoolSize.WithLabelValues(driver).Set(float64(pooled))
}
