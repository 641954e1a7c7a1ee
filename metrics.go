package sessiongate

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that issued a session.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts logins rejected for bad credentials.
	MetricLoginFailure
	// MetricLoginResetRequired counts logins deferred by a forced password reset.
	MetricLoginResetRequired
	// MetricRegisterSuccess counts completed registrations.
	MetricRegisterSuccess
	// MetricRegisterDuplicate counts registrations rejected for an existing email.
	MetricRegisterDuplicate
	// MetricRefreshSuccess counts access tokens reissued from a session cookie.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh attempts.
	MetricRefreshFailure
	// MetricValidateFailure counts requests rejected by the authentication gate.
	MetricValidateFailure
	// MetricAccountDisabled counts requests and logins rejected for a disabled account.
	MetricAccountDisabled
	// MetricPermissionDenied counts RBAC denials.
	MetricPermissionDenied
	// MetricRateLimitHit counts requests answered 429 by the failure limiter.
	MetricRateLimitHit
	// MetricRateLimitBlock counts block flags set by the failure limiter.
	MetricRateLimitBlock
	// MetricSessionCreated counts sessions written to both stores.
	MetricSessionCreated
	// MetricSessionInvalidated counts revocations of one or more sessions.
	MetricSessionInvalidated
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts logout-all operations.
	MetricLogoutAll
	// MetricPasswordChangeSuccess counts password changes by an authenticated user.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeInvalidOld counts password changes rejected for a wrong current password.
	MetricPasswordChangeInvalidOld
	// MetricPasswordResetIssued counts reset tokens issued at login.
	MetricPasswordResetIssued
	// MetricPasswordResetSuccess counts consumed reset tokens.
	MetricPasswordResetSuccess
	// MetricPasswordResetFailure counts rejected reset attempts.
	MetricPasswordResetFailure
	// MetricSessionsSwept counts ledger rows removed by the sweep.
	MetricSessionsSwept
	// MetricValidateLatency is the authentication gate latency histogram.
	MetricValidateLatency
	metricIDCount
)

// latencyBounds are the inclusive upper bounds of the validate latency
// buckets. Samples above the last bound land in the overflow bucket.
var latencyBounds = [...]time.Duration{
	5 * time.Millisecond,
	10 * time.Millisecond,
	25 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	250 * time.Millisecond,
	500 * time.Millisecond,
}

const histBucketCount = len(latencyBounds) + 1

// counterSlot keeps each counter on its own cache line so hot counters
// updated from different goroutines do not contend.
type counterSlot struct {
	n atomic.Uint64
	_ [56]byte
}

// Metrics is a fixed set of lock-free counters plus the gate latency
// histogram. A nil *Metrics is valid and records nothing.
type Metrics struct {
	counting bool
	timing   bool
	counters [metricIDCount]counterSlot
	latency  [histBucketCount]atomic.Uint64
}

// MetricsSnapshot is a point-in-time copy of all counters.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a Metrics honoring cfg. Latency is only recorded when
// counters are enabled too.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		counting: cfg.Enabled,
		timing:   cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool { return m != nil && m.counting }

// LatencyEnabled reports whether Observe records samples.
func (m *Metrics) LatencyEnabled() bool { return m != nil && m.timing }

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) { m.Add(id, 1) }

// Add adds n to the counter id.
func (m *Metrics) Add(id MetricID, n uint64) {
	if !m.Enabled() || id >= metricIDCount || n == 0 {
		return
	}
	m.counters[id].n.Add(n)
}

// Observe records d when id is MetricValidateLatency. Other ids carry no
// histogram and are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if !m.LatencyEnabled() || id != MetricValidateLatency {
		return
	}
	i := 0
	for i < len(latencyBounds) && d > latencyBounds[i] {
		i++
	}
	m.latency[i].Add(1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return m.counters[id].n.Load()
}

// Snapshot copies every counter. Disabled metrics yield empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	s := MetricsSnapshot{
		Counters:   map[MetricID]uint64{},
		Histograms: map[MetricID][]uint64{},
	}
	if !m.Enabled() {
		return s
	}

	for id := range metricIDCount {
		s.Counters[id] = m.counters[id].n.Load()
	}
	if m.timing {
		buckets := make([]uint64, histBucketCount)
		for i := range buckets {
			buckets[i] = m.latency[i].Load()
		}
		s.Histograms[MetricValidateLatency] = buckets
	}
	return s
}
