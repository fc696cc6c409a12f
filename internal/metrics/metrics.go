// Package metrics wraps the plugin's small set of Prometheus
// counters/histograms: hook invocation count+duration by name and outcome,
// heartbeat tick outcome, and sandbox validation outcome. This is pure
// observability, carried regardless of the spec naming no metrics goal.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the registered collectors for a single plugin process.
type Metrics struct {
	HookInvocations *prometheus.CounterVec
	HookDuration    *prometheus.HistogramVec
	HeartbeatTicks  *prometheus.CounterVec
	SandboxRuns     *prometheus.CounterVec
}

// New registers and returns a fresh Metrics set against registerer.
func New(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		HookInvocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evolve_hook_invocations_total",
			Help: "Count of hook invocations by hook name and outcome.",
		}, []string{"hook", "outcome"}),
		HookDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evolve_hook_duration_seconds",
			Help:    "Hook invocation duration in seconds by hook name and outcome.",
			Buckets: prometheus.DefBuckets,
		}, []string{"hook", "outcome"}),
		HeartbeatTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evolve_heartbeat_ticks_total",
			Help: "Count of heartbeat ticks by outcome (ran, skipped, aborted).",
		}, []string{"outcome"}),
		SandboxRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evolve_sandbox_validations_total",
			Help: "Count of sandbox validation runs by outcome (ok, failed).",
		}, []string{"outcome"}),
	}
	registerer.MustRegister(m.HookInvocations, m.HookDuration, m.HeartbeatTicks, m.SandboxRuns)
	return m
}

// ObserveHook records one hook invocation's outcome and duration.
func (m *Metrics) ObserveHook(hook, outcome string, d time.Duration) {
	m.HookInvocations.WithLabelValues(hook, outcome).Inc()
	m.HookDuration.WithLabelValues(hook, outcome).Observe(d.Seconds())
}

// ObserveHeartbeatTick records one heartbeat tick's outcome.
func (m *Metrics) ObserveHeartbeatTick(outcome string) {
	m.HeartbeatTicks.WithLabelValues(outcome).Inc()
}

// ObserveSandboxRun records one sandbox validation outcome.
func (m *Metrics) ObserveSandboxRun(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.SandboxRuns.WithLabelValues(outcome).Inc()
}
