// Package telemetry tracks engine performance and writes structured
// experiment output.
package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for one manager tick.
const (
	PhaseCommit   = "commit"
	PhaseGenerate = "generate"
	PhasePublish  = "publish"
)

// PerfSample holds timing data for a single tick.
type PerfSample struct {
	TickDuration   time.Duration
	Phases         map[string]time.Duration
	CellsProcessed int
}

// PerfCollector tracks tick timings over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	tickStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a collector averaging over windowSize ticks.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 60
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartTick begins timing a new tick.
func (p *PerfCollector) StartTick() {
	p.tickStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase begins timing a phase, closing out the previous one.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// EndTick finishes the current tick and records the sample.
func (p *PerfCollector) EndTick(cellsProcessed int) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	p.samples[p.writeIndex] = PerfSample{
		TickDuration:   now.Sub(p.tickStart),
		Phases:         p.currentPhases,
		CellsProcessed: cellsProcessed,
	}
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
}

// PerfStats holds aggregated statistics over the window.
type PerfStats struct {
	AvgTickDuration time.Duration
	MinTickDuration time.Duration
	MaxTickDuration time.Duration
	PhaseAvg        map[string]time.Duration
	PhasePct        map[string]float64
	AvgCellsPerTick float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	stats := PerfStats{
		PhaseAvg: make(map[string]time.Duration),
		PhasePct: make(map[string]float64),
	}
	if p.sampleCount == 0 {
		return stats
	}

	var total time.Duration
	var cells int
	phaseTotals := make(map[string]time.Duration)
	stats.MinTickDuration = p.samples[0].TickDuration

	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.TickDuration
		cells += s.CellsProcessed
		if s.TickDuration < stats.MinTickDuration {
			stats.MinTickDuration = s.TickDuration
		}
		if s.TickDuration > stats.MaxTickDuration {
			stats.MaxTickDuration = s.TickDuration
		}
		for name, d := range s.Phases {
			phaseTotals[name] += d
		}
	}

	n := time.Duration(p.sampleCount)
	stats.AvgTickDuration = total / n
	stats.AvgCellsPerTick = float64(cells) / float64(p.sampleCount)

	for name, d := range phaseTotals {
		stats.PhaseAvg[name] = d / n
		if total > 0 {
			stats.PhasePct[name] = float64(d) / float64(total) * 100
		}
	}
	return stats
}

// Log reports the current window to the given logger.
func (p *PerfCollector) Log(log *slog.Logger) {
	s := p.Stats()
	log.Info("tick perf",
		"avg", s.AvgTickDuration.Round(time.Microsecond),
		"min", s.MinTickDuration.Round(time.Microsecond),
		"max", s.MaxTickDuration.Round(time.Microsecond),
		"cells_per_tick", s.AvgCellsPerTick,
		"commit_pct", s.PhasePct[PhaseCommit],
		"generate_pct", s.PhasePct[PhaseGenerate],
		"publish_pct", s.PhasePct[PhasePublish],
	)
}
