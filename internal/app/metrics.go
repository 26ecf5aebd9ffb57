package app

import (
	"sync/atomic"
	"time"
)

// Metrics tracks session loop performance. All counters are atomic so
// event handlers and the loop can record without coordinating. A session
// owns exactly one Metrics instance; there is no process-wide registry.
type Metrics struct {
	// Tick timing
	tickCount   atomic.Uint64
	tickTotalNs atomic.Int64
	tickMinNs   atomic.Int64
	tickMaxNs   atomic.Int64
	lastTickNs  atomic.Int64

	// Effect activity
	effectsApplied atomic.Uint64
	effectsFailed  atomic.Uint64
	budgetExceeded atomic.Uint64
	rollbacks      atomic.Uint64

	// Start time for uptime calculation
	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),
	}
	// Initialize min to max int64 so the first tick will be smaller
	m.tickMinNs.Store(1<<63 - 1)
	return m
}

// RecordTick records one session tick duration.
func (m *Metrics) RecordTick(duration time.Duration) {
	ns := duration.Nanoseconds()

	m.tickCount.Add(1)
	m.tickTotalNs.Add(ns)
	m.lastTickNs.Store(ns)

	// Update min (atomic compare-and-swap loop)
	for {
		old := m.tickMinNs.Load()
		if ns >= old {
			break
		}
		if m.tickMinNs.CompareAndSwap(old, ns) {
			break
		}
	}

	// Update max (atomic compare-and-swap loop)
	for {
		old := m.tickMaxNs.Load()
		if ns <= old {
			break
		}
		if m.tickMaxNs.CompareAndSwap(old, ns) {
			break
		}
	}
}

// RecordEffectApplied records a successful effect application.
func (m *Metrics) RecordEffectApplied() {
	m.effectsApplied.Add(1)
}

// RecordEffectFailed records a failed effect invocation.
func (m *Metrics) RecordEffectFailed() {
	m.effectsFailed.Add(1)
}

// RecordBudgetExceeded records an invocation that ran over budget.
func (m *Metrics) RecordBudgetExceeded() {
	m.budgetExceeded.Add(1)
}

// RecordRollback records a reverted effect patch.
func (m *Metrics) RecordRollback() {
	m.rollbacks.Add(1)
}

// Snapshot returns a point-in-time view of the metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	tickCount := m.tickCount.Load()

	var avgTickNs int64
	if tickCount > 0 {
		avgTickNs = m.tickTotalNs.Load() / int64(tickCount)
	}

	minTickNs := m.tickMinNs.Load()
	if minTickNs == 1<<63-1 {
		minTickNs = 0
	}

	return MetricsSnapshot{
		Uptime:         time.Since(m.startTime),
		TickCount:      tickCount,
		AvgTickTimeNs:  avgTickNs,
		MinTickTimeNs:  minTickNs,
		MaxTickTimeNs:  m.tickMaxNs.Load(),
		LastTickNs:     m.lastTickNs.Load(),
		EffectsApplied: m.effectsApplied.Load(),
		EffectsFailed:  m.effectsFailed.Load(),
		BudgetExceeded: m.budgetExceeded.Load(),
		Rollbacks:      m.rollbacks.Load(),
	}
}

// Reset clears all metrics.
func (m *Metrics) Reset() {
	m.tickCount.Store(0)
	m.tickTotalNs.Store(0)
	m.tickMinNs.Store(1<<63 - 1)
	m.tickMaxNs.Store(0)
	m.lastTickNs.Store(0)
	m.effectsApplied.Store(0)
	m.effectsFailed.Store(0)
	m.budgetExceeded.Store(0)
	m.rollbacks.Store(0)
	m.startTime = time.Now()
}

// MetricsSnapshot is a point-in-time view of session metrics.
type MetricsSnapshot struct {
	Uptime         time.Duration
	TickCount      uint64
	AvgTickTimeNs  int64
	MinTickTimeNs  int64
	MaxTickTimeNs  int64
	LastTickNs     int64
	EffectsApplied uint64
	EffectsFailed  uint64
	BudgetExceeded uint64
	Rollbacks      uint64
}

// AvgTPS returns the average ticks per second.
func (s MetricsSnapshot) AvgTPS() float64 {
	if s.AvgTickTimeNs == 0 {
		return 0
	}
	return 1e9 / float64(s.AvgTickTimeNs)
}

// FailureRate returns the percentage of effect invocations that failed.
func (s MetricsSnapshot) FailureRate() float64 {
	total := s.EffectsApplied + s.EffectsFailed
	if total == 0 {
		return 0
	}
	return float64(s.EffectsFailed) / float64(total) * 100
}

// Timer provides a simple way to measure elapsed time.
type Timer struct {
	start time.Time
}

// StartTimer creates a new timer.
func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Elapsed returns the elapsed time since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}

// Stop returns the elapsed time and resets the timer.
func (t *Timer) Stop() time.Duration {
	elapsed := t.Elapsed()
	t.start = time.Now()
	return elapsed
}
