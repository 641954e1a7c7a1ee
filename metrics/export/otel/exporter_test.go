package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/sessiongate"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	counters map[sessiongate.MetricID]uint64
	latency  []uint64
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() sessiongate.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := sessiongate.MetricsSnapshot{
		Counters:   make(map[sessiongate.MetricID]uint64, len(f.counters)),
		Histograms: map[sessiongate.MetricID][]uint64{},
	}
	for k, v := range f.counters {
		out.Counters[k] = v
	}
	if f.latency != nil {
		out.Histograms[sessiongate.MetricValidateLatency] = append([]uint64(nil), f.latency...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReaderMeter() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					out[m.Name] += dp.Value
				}
			}
		}
	}
	return out
}

func TestExporterObservesSnapshot(t *testing.T) {
	reader, provider := newReaderMeter()
	src := &fakeSource{
		counters: map[sessiongate.MetricID]uint64{
			sessiongate.MetricLoginSuccess:   3,
			sessiongate.MetricRateLimitBlock: 2,
		},
		latency: []uint64{1, 0, 2, 0, 0, 0, 0, 1},
		dropped: 4,
	}

	exp, err := New(provider.Meter("sessiongate-test"), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
	}()

	got := collect(t, reader)
	want := map[string]int64{
		"sessiongate_login_success_total":                      3,
		"sessiongate_rate_limit_block_total":                   2,
		"sessiongate_logout_total":                             0,
		"sessiongate_validate_latency_seconds_bucket_le_0_005": 1,
		"sessiongate_validate_latency_seconds_bucket_le_0_025": 3,
		"sessiongate_validate_latency_seconds_bucket_le_inf":   4,
		"sessiongate_validate_latency_seconds_count":           4,
		"sessiongate_audit_dropped_total":                      4,
	}
	for name, v := range want {
		if got[name] != v {
			t.Errorf("%s = %d, want %d", name, got[name], v)
		}
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReaderMeter()
	if _, err := New(provider.Meter("sessiongate-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollect(t *testing.T) {
	reader, provider := newReaderMeter()
	src := &fakeSource{counters: map[sessiongate.MetricID]uint64{}}

	exp, err := New(provider.Meter("sessiongate-test"), src)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.counters[sessiongate.MetricRefreshSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
