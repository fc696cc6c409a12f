package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Collector) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 8)
	c.Collect(ch)
	close(ch)
	var total float64
	for m := range ch {
		var pb dto.Metric
		if err := m.Write(&pb); err != nil {
			t.Fatalf("write metric: %v", err)
		}
		if pb.Counter != nil {
			total += pb.Counter.GetValue()
		}
	}
	return total
}

func TestObserveHookIncrementsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHook("mutate_request", "success", 10*time.Millisecond)
	m.ObserveHook("mutate_request", "success", 20*time.Millisecond)

	got := counterValue(t, m.HookInvocations.WithLabelValues("mutate_request", "success"))
	if got != 2 {
		t.Errorf("HookInvocations = %v, want 2", got)
	}
}

func TestObserveSandboxRunLabelsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveSandboxRun(true)
	m.ObserveSandboxRun(false)

	if got := counterValue(t, m.SandboxRuns.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok count = %v, want 1", got)
	}
	if got := counterValue(t, m.SandboxRuns.WithLabelValues("failed")); got != 1 {
		t.Errorf("failed count = %v, want 1", got)
	}
}

func TestObserveHeartbeatTick(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveHeartbeatTick("ran")
	m.ObserveHeartbeatTick("skipped")
	m.ObserveHeartbeatTick("skipped")

	if got := counterValue(t, m.HeartbeatTicks.WithLabelValues("skipped")); got != 2 {
		t.Errorf("skipped count = %v, want 2", got)
	}
}
