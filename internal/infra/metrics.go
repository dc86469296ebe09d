package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	cyclesCompleted atomic.Uint64
	cyclesFailed    atomic.Uint64
	ticksCollected  atomic.Uint64
	quotesSubmitted atomic.Uint64
	ordersCreated   atomic.Uint64
	errorsTotal     atomic.Uint64

	// Latency tracking for aggregation cycles
	cycleSumNs atomic.Int64
	cycleCount atomic.Uint64

	// Gauges
	streamConnected atomic.Int32 // 1 = connected, 0 = down
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordCycle records a completed aggregation cycle with its duration.
func (m *Metrics) RecordCycle(elapsed time.Duration, ticks int) {
	m.cyclesCompleted.Add(1)
	m.ticksCollected.Add(uint64(ticks))
	m.cycleSumNs.Add(elapsed.Nanoseconds())
	m.cycleCount.Add(1)
}

// RecordCycleFailure records an aggregation cycle that produced no data.
func (m *Metrics) RecordCycleFailure() {
	m.cyclesFailed.Add(1)
	m.errorsTotal.Add(1)
}

// RecordError records an error occurrence.
func (m *Metrics) RecordError() {
	m.errorsTotal.Add(1)
}

// RecordQuoteSubmitted records a solver quote accepted into the book.
func (m *Metrics) RecordQuoteSubmitted() {
	m.quotesSubmitted.Add(1)
}

// RecordOrderCreated records an order created from an accepted quote.
func (m *Metrics) RecordOrderCreated() {
	m.ordersCreated.Add(1)
}

// SetStreamConnected sets the live ticker stream connection state.
func (m *Metrics) SetStreamConnected(connected bool) {
	if connected {
		m.streamConnected.Store(1)
	} else {
		m.streamConnected.Store(0)
	}
}

// MetricsSnapshot is a point-in-time view of all metrics.
type MetricsSnapshot struct {
	CyclesCompleted uint64
	CyclesFailed    uint64
	TicksCollected  uint64
	QuotesSubmitted uint64
	OrdersCreated   uint64
	ErrorsTotal     uint64
	AvgCycleNs      int64
	StreamConnected bool
	Timestamp       time.Time
}

// Snapshot returns current metrics as a snapshot.
func (m *Metrics) Snapshot() MetricsSnapshot {
	var avgCycle int64
	count := m.cycleCount.Load()
	if count > 0 {
		avgCycle = m.cycleSumNs.Load() / int64(count)
	}

	return MetricsSnapshot{
		CyclesCompleted: m.cyclesCompleted.Load(),
		CyclesFailed:    m.cyclesFailed.Load(),
		TicksCollected:  m.ticksCollected.Load(),
		QuotesSubmitted: m.quotesSubmitted.Load(),
		OrdersCreated:   m.ordersCreated.Load(),
		ErrorsTotal:     m.errorsTotal.Load(),
		AvgCycleNs:      avgCycle,
		StreamConnected: m.streamConnected.Load() == 1,
		Timestamp:       time.Now(),
	}
}

// Reset clears all metrics (for testing).
func (m *Metrics) Reset() {
	m.cyclesCompleted.Store(0)
	m.cyclesFailed.Store(0)
	m.ticksCollected.Store(0)
	m.quotesSubmitted.Store(0)
	m.ordersCreated.Store(0)
	m.errorsTotal.Store(0)
	m.cycleSumNs.Store(0)
	m.cycleCount.Store(0)
	m.streamConnected.Store(0)
}
