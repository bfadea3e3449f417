package telemetry

import (
	"testing"
	"time"
)

// TestPerfCollectorWindow verifies samples roll over the window and the
// aggregates reflect only the retained ticks.
func TestPerfCollectorWindow(t *testing.T) {
	p := NewPerfCollector(3)

	for i := 0; i < 5; i++ {
		p.StartTick()
		p.StartPhase(PhaseCommit)
		p.StartPhase(PhaseGenerate)
		p.EndTick(100 * (i + 1))
	}

	stats := p.Stats()
	// Window keeps the last 3 ticks: 300, 400, 500 cells.
	if stats.AvgCellsPerTick != 400 {
		t.Errorf("expected avg 400 cells over the window, got %g", stats.AvgCellsPerTick)
	}
	if stats.AvgTickDuration < 0 || stats.MaxTickDuration < stats.MinTickDuration {
		t.Error("inconsistent duration aggregates")
	}
	if _, ok := stats.PhaseAvg[PhaseGenerate]; !ok {
		t.Error("generate phase missing from aggregates")
	}
}

// TestPerfCollectorEmpty verifies an unused collector reports zeros.
func TestPerfCollectorEmpty(t *testing.T) {
	stats := NewPerfCollector(10).Stats()
	if stats.AvgTickDuration != 0 || stats.AvgCellsPerTick != 0 {
		t.Errorf("empty collector should report zeros, got %+v", stats)
	}
}

// TestPhaseAccounting verifies phase times sum up within the tick and
// percentages cover the measured phases.
func TestPhaseAccounting(t *testing.T) {
	p := NewPerfCollector(4)

	p.StartTick()
	p.StartPhase(PhaseCommit)
	time.Sleep(time.Millisecond)
	p.StartPhase(PhaseGenerate)
	time.Sleep(2 * time.Millisecond)
	p.StartPhase(PhasePublish)
	p.EndTick(42)

	stats := p.Stats()
	if stats.PhaseAvg[PhaseGenerate] < stats.PhaseAvg[PhaseCommit] {
		t.Error("generate phase should dominate commit in this tick")
	}

	var pctSum float64
	for _, pct := range stats.PhasePct {
		pctSum += pct
	}
	if pctSum < 50 || pctSum > 101 {
		t.Errorf("phase percentages should roughly cover the tick, got %g", pctSum)
	}
}
