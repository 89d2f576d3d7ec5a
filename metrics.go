package stepauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one internal counter or latency histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts logins that reached LoginComplete.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected login steps.
	MetricLoginFailure
	// MetricLoginIntermediary counts login steps that returned an
	// intermediary token instead of a session.
	MetricLoginIntermediary
	// MetricRegisterSuccess counts successful registrations.
	MetricRegisterSuccess
	// MetricRegisterFailure counts rejected registrations.
	MetricRegisterFailure
	// MetricRefreshSuccess counts refresh calls that minted a new access token.
	MetricRefreshSuccess
	// MetricRefreshFailure counts rejected refresh calls.
	MetricRefreshFailure
	// MetricValidateSuccess counts access tokens that resolved to a live session.
	MetricValidateSuccess
	// MetricValidateFailure counts rejected access tokens.
	MetricValidateFailure
	// MetricLogout counts explicit logouts.
	MetricLogout
	// MetricPasswordChangeSuccess counts accepted password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeFailure counts password changes rejected on the old password.
	MetricPasswordChangeFailure
	// MetricTOTPEnrollStarted counts TOTP enrollment handshakes begun.
	MetricTOTPEnrollStarted
	// MetricTOTPEnrollConfirmed counts enrollments confirmed with a valid code.
	MetricTOTPEnrollConfirmed
	// MetricTOTPEnrollCancelled counts enrollments cancelled before confirmation.
	MetricTOTPEnrollCancelled
	// MetricTOTPDisabled counts TOTP teardowns.
	MetricTOTPDisabled
	// MetricBackupCodeUsed counts recovery codes consumed during login or teardown.
	MetricBackupCodeUsed
	// MetricBackupCodeRegenerated counts recovery-code batch regenerations.
	MetricBackupCodeRegenerated
	// MetricProofOfWorkAccepted counts proof-of-work submissions that cleared the floor.
	MetricProofOfWorkAccepted
	// MetricProofOfWorkRejected counts submissions below the required difficulty.
	MetricProofOfWorkRejected
	// MetricSessionsSwept counts sessions removed by the expiry sweep.
	MetricSessionsSwept
	// MetricSessionsRevoked counts sessions removed by per-user revocation.
	MetricSessionsRevoked
	// MetricLoginLatency is the latency histogram for login steps.
	MetricLoginLatency
	// MetricValidateLatency is the latency histogram for access-token validation.
	MetricValidateLatency
	// MetricRefreshLatency is the latency histogram for refresh calls.
	MetricRefreshLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps hot counters on separate cache lines.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is the engine's internal lock-free metrics sink. All methods
// are safe for concurrent use and are no-ops on a nil or disabled
// receiver.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and, when
// latency histograms are enabled, their bucket contents.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// latencyMetric reports whether id is one of the histogram slots.
func latencyMetric(id MetricID) bool {
	switch id {
	case MetricLoginLatency, MetricValidateLatency, MetricRefreshLatency:
		return true
	}
	return false
}

// NewMetrics creates a metrics sink per cfg. A disabled sink costs one
// branch per call.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether the sink records anything at all.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether latency histograms are recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter identified by id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample into the histogram identified by id.
// Non-histogram ids are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if !latencyMetric(id) {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of one counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and histogram. The snapshot is not
// atomic across metrics; individual values are.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 3),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		for id := MetricID(0); id < metricIDCount; id++ {
			if !latencyMetric(id) {
				continue
			}
			buckets := make([]uint64, histBucketCount)
			for i := 0; i < histBucketCount; i++ {
				buckets[i] = atomic.LoadUint64(&m.histograms[id].buckets[i])
			}
			s.Histograms[id] = buckets
		}
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
