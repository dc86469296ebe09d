package infra

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := &Metrics{}

	m.RecordCycle(100*time.Millisecond, 4)
	m.RecordCycle(200*time.Millisecond, 6)
	m.RecordCycleFailure()
	m.RecordQuoteSubmitted()
	m.RecordOrderCreated()
	m.SetStreamConnected(true)

	snap := m.Snapshot()

	if snap.CyclesCompleted != 2 {
		t.Errorf("CyclesCompleted = %d, want 2", snap.CyclesCompleted)
	}
	if snap.CyclesFailed != 1 {
		t.Errorf("CyclesFailed = %d, want 1", snap.CyclesFailed)
	}
	if snap.TicksCollected != 10 {
		t.Errorf("TicksCollected = %d, want 10", snap.TicksCollected)
	}
	if snap.QuotesSubmitted != 1 || snap.OrdersCreated != 1 {
		t.Errorf("counters = %d/%d, want 1/1", snap.QuotesSubmitted, snap.OrdersCreated)
	}
	if snap.AvgCycleNs != (150 * time.Millisecond).Nanoseconds() {
		t.Errorf("AvgCycleNs = %d, want %d", snap.AvgCycleNs, (150 * time.Millisecond).Nanoseconds())
	}
	if !snap.StreamConnected {
		t.Error("StreamConnected should be true")
	}
}

func TestMetrics_ConcurrentAccess(t *testing.T) {
	m := &Metrics{}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.RecordError()
			}
		}()
	}
	wg.Wait()

	if got := m.Snapshot().ErrorsTotal; got != 1000 {
		t.Errorf("ErrorsTotal = %d, want 1000", got)
	}
}

func TestMetrics_Reset(t *testing.T) {
	m := &Metrics{}
	m.RecordCycle(time.Millisecond, 1)
	m.RecordError()
	m.SetStreamConnected(true)

	m.Reset()

	snap := m.Snapshot()
	if snap.CyclesCompleted != 0 || snap.ErrorsTotal != 0 || snap.StreamConnected {
		t.Errorf("Reset left state behind: %+v", snap)
	}
}
