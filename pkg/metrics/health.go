package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Subsystem health backing the /health, /ready, and /live endpoints.
//
// /live answers 200 as long as the process runs. /health reports whether
// every registered subsystem (store, balancer-manager, api, ...) is up.
// /ready additionally requires that serve finished its boot sequence
// (MarkBooted), so a daemon still opening its store or binding its
// listener answers 503 to load balancers without reporting a false
// failure on /health.

// SubsystemState is one subsystem's last reported condition.
type SubsystemState struct {
	Up     bool      `json:"up"`
	Detail string    `json:"detail,omitempty"`
	Since  time.Time `json:"since"`
}

// Report is the JSON body served by the health and readiness endpoints.
type Report struct {
	Status     string                    `json:"status"`
	Version    string                    `json:"version,omitempty"`
	Uptime     string                    `json:"uptime"`
	Subsystems map[string]SubsystemState `json:"subsystems,omitempty"`
}

type healthRegistry struct {
	mu      sync.RWMutex
	started time.Time
	version string
	booted  bool
	subs    map[string]SubsystemState
}

func newHealthRegistry() *healthRegistry {
	return &healthRegistry{
		started: time.Now(),
		subs:    make(map[string]SubsystemState),
	}
}

var health = newHealthRegistry()

// SetVersion sets the version string reported by the health endpoints.
func SetVersion(version string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.version = version
}

// SetSubsystem records a subsystem's condition. Call it once when the
// subsystem comes up and again whenever its condition changes.
func SetSubsystem(name string, up bool, detail string) {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.subs[name] = SubsystemState{Up: up, Detail: detail, Since: time.Now()}
}

// MarkBooted flips readiness on: the boot sequence is complete and every
// subsystem that should exist has registered itself.
func MarkBooted() {
	health.mu.Lock()
	defer health.mu.Unlock()
	health.booted = true
}

func (h *healthRegistry) snapshot() (Report, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	allUp := true
	subs := make(map[string]SubsystemState, len(h.subs))
	for name, s := range h.subs {
		subs[name] = s
		if !s.Up {
			allUp = false
		}
	}

	status := "up"
	if !allUp {
		status = "down"
	}
	return Report{
		Status:     status,
		Version:    h.version,
		Uptime:     time.Since(h.started).String(),
		Subsystems: subs,
	}, allUp
}

func (h *healthRegistry) readiness() (Report, bool) {
	report, allUp := h.snapshot()

	h.mu.RLock()
	booted := h.booted
	h.mu.RUnlock()

	switch {
	case !booted:
		report.Status = "starting"
	case allUp:
		report.Status = "ready"
	}
	return report, booted && allUp
}

func writeReport(w http.ResponseWriter, report Report, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	if !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}

// HealthHandler serves /health: 200 while every registered subsystem is
// up, 503 otherwise.
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := health.snapshot()
		writeReport(w, report, ok)
	}
}

// ReadyHandler serves /ready: 200 once the boot sequence has finished and
// the health check passes, 503 before and during degradation.
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, ok := health.readiness()
		writeReport(w, report, ok)
	}
}

// LivenessHandler serves /live: 200 whenever the process can answer at
// all.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health.mu.RLock()
		uptime := time.Since(health.started).String()
		health.mu.RUnlock()
		writeReport(w, Report{Status: "up", Uptime: uptime}, true)
	}
}
