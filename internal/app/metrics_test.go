package app

import (
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()
	if m == nil {
		t.Fatal("NewMetrics() returned nil")
	}

	snapshot := m.Snapshot()
	if snapshot.TickCount != 0 {
		t.Errorf("expected 0 tick count, got %d", snapshot.TickCount)
	}
	if snapshot.MinTickTimeNs != 0 {
		t.Errorf("expected 0 min tick time (sentinel handled), got %d", snapshot.MinTickTimeNs)
	}
}

func TestMetrics_RecordTick(t *testing.T) {
	m := NewMetrics()

	m.RecordTick(10 * time.Millisecond)
	m.RecordTick(20 * time.Millisecond)
	m.RecordTick(5 * time.Millisecond)

	snapshot := m.Snapshot()
	if snapshot.TickCount != 3 {
		t.Errorf("expected 3 ticks, got %d", snapshot.TickCount)
	}
	if snapshot.MinTickTimeNs != int64(5*time.Millisecond) {
		t.Errorf("expected min 5ms, got %d ns", snapshot.MinTickTimeNs)
	}
	if snapshot.MaxTickTimeNs != int64(20*time.Millisecond) {
		t.Errorf("expected max 20ms, got %d ns", snapshot.MaxTickTimeNs)
	}
	if snapshot.LastTickNs != int64(5*time.Millisecond) {
		t.Errorf("expected last 5ms, got %d ns", snapshot.LastTickNs)
	}
	expectedAvg := int64(35 * time.Millisecond / 3)
	if snapshot.AvgTickTimeNs != expectedAvg {
		t.Errorf("expected avg %d ns, got %d ns", expectedAvg, snapshot.AvgTickTimeNs)
	}
}

func TestMetrics_EffectCounters(t *testing.T) {
	m := NewMetrics()

	m.RecordEffectApplied()
	m.RecordEffectApplied()
	m.RecordEffectFailed()
	m.RecordBudgetExceeded()
	m.RecordRollback()

	snapshot := m.Snapshot()
	if snapshot.EffectsApplied != 2 {
		t.Errorf("expected 2 applied, got %d", snapshot.EffectsApplied)
	}
	if snapshot.EffectsFailed != 1 {
		t.Errorf("expected 1 failed, got %d", snapshot.EffectsFailed)
	}
	if snapshot.BudgetExceeded != 1 {
		t.Errorf("expected 1 over budget, got %d", snapshot.BudgetExceeded)
	}
	if snapshot.Rollbacks != 1 {
		t.Errorf("expected 1 rollback, got %d", snapshot.Rollbacks)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := NewMetrics()

	m.RecordTick(10 * time.Millisecond)
	m.RecordEffectApplied()
	m.Reset()

	snapshot := m.Snapshot()
	if snapshot.TickCount != 0 {
		t.Errorf("expected 0 ticks after reset, got %d", snapshot.TickCount)
	}
	if snapshot.EffectsApplied != 0 {
		t.Errorf("expected 0 applied after reset, got %d", snapshot.EffectsApplied)
	}
	if snapshot.MinTickTimeNs != 0 {
		t.Errorf("expected min sentinel handled after reset, got %d", snapshot.MinTickTimeNs)
	}
}

func TestMetricsSnapshot_AvgTPS(t *testing.T) {
	m := NewMetrics()

	m.RecordTick(10 * time.Millisecond)
	m.RecordTick(10 * time.Millisecond)

	tps := m.Snapshot().AvgTPS()
	if tps < 99 || tps > 101 {
		t.Errorf("expected ~100 TPS for 10ms ticks, got %f", tps)
	}

	empty := MetricsSnapshot{}
	if empty.AvgTPS() != 0 {
		t.Error("expected 0 TPS with no ticks")
	}
}

func TestMetricsSnapshot_FailureRate(t *testing.T) {
	tests := []struct {
		name     string
		applied  uint64
		failed   uint64
		expected float64
	}{
		{"no invocations", 0, 0, 0},
		{"all succeed", 4, 0, 0},
		{"one in four", 3, 1, 25},
		{"all fail", 0, 2, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := MetricsSnapshot{EffectsApplied: tt.applied, EffectsFailed: tt.failed}
			if got := s.FailureRate(); got != tt.expected {
				t.Errorf("FailureRate() = %f, expected %f", got, tt.expected)
			}
		})
	}
}

func TestMetrics_Uptime(t *testing.T) {
	m := NewMetrics()

	time.Sleep(5 * time.Millisecond)

	if got := m.Snapshot().Uptime; got < 5*time.Millisecond {
		t.Errorf("expected uptime >= 5ms, got %v", got)
	}
}

func TestTimer(t *testing.T) {
	timer := StartTimer()

	time.Sleep(5 * time.Millisecond)

	elapsed := timer.Elapsed()
	if elapsed < 5*time.Millisecond {
		t.Errorf("expected elapsed >= 5ms, got %v", elapsed)
	}

	stopped := timer.Stop()
	if stopped < elapsed {
		t.Errorf("Stop() = %v, expected at least %v", stopped, elapsed)
	}

	// Stop resets the timer
	if restarted := timer.Elapsed(); restarted >= stopped {
		t.Errorf("expected timer reset after Stop, elapsed = %v", restarted)
	}
}
