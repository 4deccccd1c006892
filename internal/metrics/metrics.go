// Package metrics provides lock-free counters for saga observability.
//
// Counters live in a fixed array indexed by MetricID and are incremented
// atomically; the write path is allocation-free. Snapshot produces a
// deep copy for export. This package performs no I/O and imports no
// sibling package.
package metrics

import "sync/atomic"

// MetricID indexes one counter slot.
type MetricID int

const (
	// MetricLoginSuccess counts completed logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts failed login attempts of any kind.
	MetricLoginFailure
	// MetricAccountLockout counts credentials locked by failed attempts.
	MetricAccountLockout
	// MetricSessionCreated counts sessions written on login.
	MetricSessionCreated
	// MetricSessionTerminated counts sessions removed by logout or
	// deactivation cleanup.
	MetricSessionTerminated
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts all-session logouts.
	MetricLogoutAll
	// MetricDeactivationRequested counts deactivation sagas started.
	MetricDeactivationRequested
	// MetricDeactivationConfirmed counts deactivations that completed.
	MetricDeactivationConfirmed
	// MetricDeactivationFailed counts deactivations denied, failed,
	// cancelled, or timed out.
	MetricDeactivationFailed
	// MetricCorrelationResolved counts waiters resolved by a response.
	MetricCorrelationResolved
	// MetricCorrelationTimeout counts waiters resolved by deadline or
	// sweep.
	MetricCorrelationTimeout
	// MetricCorrelationIgnored counts stray resolutions with no waiter.
	MetricCorrelationIgnored

	// MetricIDCount is the number of counter slots.
	MetricIDCount
)

// Config controls whether metrics record at all.
type Config struct {
	Enabled bool
}

// Metrics holds the counter slots. A disabled instance keeps all
// operations as cheap no-ops so call sites stay unconditional.
type Metrics struct {
	enabled  bool
	counters [MetricIDCount]atomic.Uint64
}

// New creates a Metrics instance per cfg.
func New(cfg Config) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add adds n to the counter.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id < 0 || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(n)
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Counters [MetricIDCount]uint64
}

// Snapshot returns a deep copy of the current counter values.
func (m *Metrics) Snapshot() Snapshot {
	var s Snapshot
	if m == nil || !m.enabled {
		return s
	}
	for i := range m.counters {
		s.Counters[i] = m.counters[i].Load()
	}
	return s
}

// Get returns one counter value.
func (s Snapshot) Get(id MetricID) uint64 {
	if id < 0 || id >= MetricIDCount {
		return 0
	}
	return s.Counters[id]
}
