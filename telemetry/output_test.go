package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestOutputManagerDisabled verifies the nil-safe disabled path.
func TestOutputManagerDisabled(t *testing.T) {
	om, err := NewOutputManager("")
	if err != nil {
		t.Fatalf("disabled output errored: %v", err)
	}
	if om != nil {
		t.Fatal("empty dir should disable output")
	}

	// All methods must be callable on the nil manager.
	if err := om.WriteGeneration(GenerationRecord{}); err != nil {
		t.Errorf("nil WriteGeneration: %v", err)
	}
	if err := om.WritePerf(PerfRecord{}); err != nil {
		t.Errorf("nil WritePerf: %v", err)
	}
	if s := om.GenerationSummary(); s.Count != 0 {
		t.Errorf("nil summary should be empty, got %+v", s)
	}
	if err := om.Close(); err != nil {
		t.Errorf("nil Close: %v", err)
	}
}

// TestOutputManagerCSV verifies headers are written once and records
// append.
func TestOutputManagerCSV(t *testing.T) {
	dir := t.TempDir()
	om, err := NewOutputManager(dir)
	if err != nil {
		t.Fatalf("NewOutputManager: %v", err)
	}

	recs := []GenerationRecord{
		{Signature: "v0-aaaa", Version: 0, Goals: 1, CellsProcessed: 100, DurationMicros: 250, Status: "ready"},
		{Signature: "v1-bbbb", Version: 1, Goals: 2, CellsProcessed: 80, DurationMicros: 150, Status: "ready"},
	}
	for _, r := range recs {
		if err := om.WriteGeneration(r); err != nil {
			t.Fatalf("WriteGeneration: %v", err)
		}
	}
	if err := om.WritePerf(PerfRecord{Tick: 60, AvgTickMicros: 120}); err != nil {
		t.Fatalf("WritePerf: %v", err)
	}
	if err := om.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "fields.csv"))
	if err != nil {
		t.Fatalf("reading fields.csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 records, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "signature,") {
		t.Errorf("missing header, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "v0-aaaa") || !strings.Contains(lines[2], "v1-bbbb") {
		t.Error("records out of order or missing")
	}

	sum := om.GenerationSummary()
	if sum.Count != 2 || sum.Mean != 200 {
		t.Errorf("expected count 2 mean 200, got %+v", sum)
	}
}

// TestSummarize verifies the duration statistics.
func TestSummarize(t *testing.T) {
	if s := Summarize(nil); s.Count != 0 {
		t.Errorf("empty input should summarize to zero, got %+v", s)
	}

	in := []float64{30, 10, 20, 40, 50}
	s := Summarize(in)
	if s.Count != 5 || s.Mean != 30 {
		t.Errorf("expected count 5 mean 30, got %+v", s)
	}
	if s.P50 != 30 {
		t.Errorf("expected median 30, got %g", s.P50)
	}
	if s.P95 < s.P50 {
		t.Errorf("p95 %g below p50 %g", s.P95, s.P50)
	}
	if in[0] != 30 {
		t.Error("input slice was reordered")
	}
}
