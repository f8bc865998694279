/*
Package metrics provides Prometheus metrics and health/readiness/liveness
endpoints for poolkeeper.

Metrics are registered at package init and exposed via Handler() on
/metrics: resource counts by driver/status, pool and unused-set sizes,
balance-cycle counters and durations, task push/fail counters and
durations, queue depth, and reaper counters and durations, plus API
request counters and durations. A Timer helper times balance cycles, task
execution, and reaper sweeps.

HealthHandler/ReadyHandler/LivenessHandler back /health, /ready, and
/live: subsystems report their condition with SetSubsystem, health is
"every subsystem up", and readiness additionally requires that serve
finished its boot sequence (MarkBooted) — a daemon still opening its
store answers 503 on /ready without reporting a failure on /health.
*/
package metrics
