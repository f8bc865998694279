package balancer

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudkeep/poolkeeper/pkg/log"
	"github.com/cloudkeep/poolkeeper/pkg/metrics"
)

// Manager owns one Balancer per driver and ticks them all once per
// tick_interval, logging and skipping over a balancer that errors so one
// misbehaving driver can't starve the rest.
type Manager struct {
	mu         sync.RWMutex
	balancers  map[string]*Balancer
	tickPeriod time.Duration
	logger     zerolog.Logger
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewManager returns an empty Manager ticking every tickPeriod once Run is
// called.
func NewManager(tickPeriod time.Duration) *Manager {
	return &Manager{
		balancers:  make(map[string]*Balancer),
		tickPeriod: tickPeriod,
		logger:     log.WithComponent("balancer-manager"),
		stopCh:     make(chan struct{}),
	}
}

// AddBalancer registers b under its pool name. It fails if a balancer for
// that name is already registered.
func (m *Manager) AddBalancer(b *Balancer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.balancers[b.Name()]; exists {
		return fmt.Errorf("balancer already registered for pool %q", b.Name())
	}
	m.balancers[b.Name()] = b
	return nil
}

// BalancePools runs every registered balancer's Balance once, in name
// order for determinism, catching and logging per-balancer errors.
func (m *Manager) BalancePools() {
	m.mu.RLock()
	balancers := make([]*Balancer, 0, len(m.balancers))
	for _, b := range m.balancers {
		balancers = append(balancers, b)
	}
	m.mu.RUnlock()
	sort.Slice(balancers, func(i, j int) bool { return balancers[i].Name() < balancers[j].Name() })

	timer := metrics.NewTimer()
	for _, b := range balancers {
		if err := b.Balance(); err != nil {
			m.logger.Error().Err(err).Str("pool", b.Name()).Msg("balance cycle failed")
		}
		metrics.BalanceCyclesTotal.WithLabelValues(b.driverName).Inc()
		timer.ObserveDurationVec(metrics.BalanceDuration, b.driverName)
		timer = metrics.NewTimer()
	}
}

// Run starts the tick loop in a goroutine.
func (m *Manager) Run() {
	m.wg.Add(1)
	go m.run()
}

// Kill signals the tick loop to stop and waits for it to exit.
func (m *Manager) Kill() {
	close(m.stopCh)
	m.wg.Wait()
}

func (m *Manager) run() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.tickPeriod)
	defer ticker.Stop()

	m.logger.Info().Dur("tick_interval", m.tickPeriod).Msg("balancer manager started")
	for {
		select {
		case <-ticker.C:
			m.BalancePools()
		case <-m.stopCh:
			m.logger.Info().Msg("balancer manager stopped")
			return
		}
	}
}
