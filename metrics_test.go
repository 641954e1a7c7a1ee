package sessiongate

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledRecordsNothing(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false, EnableLatencyHistograms: true})
	m.Inc(MetricLoginSuccess)
	m.Add(MetricSessionInvalidated, 4)
	m.Observe(MetricValidateLatency, time.Millisecond)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if m.LatencyEnabled() {
		t.Fatal("latency must follow counters being disabled")
	}
	snap := m.Snapshot()
	if len(snap.Counters) != 0 || len(snap.Histograms) != 0 {
		t.Fatalf("expected empty snapshot, got %+v", snap)
	}
}

func TestMetricsNilReceiver(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLoginFailure)
	m.Add(MetricSessionsSwept, 2)
	m.Observe(MetricValidateLatency, time.Second)
	if m.Enabled() || m.Value(MetricLoginFailure) != 0 {
		t.Fatal("nil metrics must be inert")
	}
}

func TestMetricsIncAndAdd(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricLoginSuccess)
	m.Inc(MetricLoginSuccess)
	m.Add(MetricSessionInvalidated, 3)
	m.Add(MetricSessionInvalidated, 0)

	if got := m.Value(MetricLoginSuccess); got != 2 {
		t.Fatalf("login success: expected 2, got %d", got)
	}
	if got := m.Value(MetricSessionInvalidated); got != 3 {
		t.Fatalf("session invalidated: expected 3, got %d", got)
	}
}

func TestMetricsConcurrentIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const workers = 16
	const perWorker = 2500

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				m.Inc(MetricRefreshSuccess)
			}
		}()
	}
	wg.Wait()

	if got, want := m.Value(MetricRefreshSuccess), uint64(workers*perWorker); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsValidateLatencyBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	for _, d := range []time.Duration{
		time.Millisecond,
		8 * time.Millisecond,
		20 * time.Millisecond,
		40 * time.Millisecond,
		90 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		2 * time.Second,
	} {
		m.Observe(MetricValidateLatency, d)
	}
	// Only the gate latency carries a histogram.
	m.Observe(MetricLoginSuccess, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricValidateLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, v)
		}
	}
	if _, ok := m.Snapshot().Histograms[MetricLoginSuccess]; ok {
		t.Fatal("unexpected histogram for login success")
	}
}
