package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
)

// GenerationRecord is one completed field generation, written to
// fields.csv.
type GenerationRecord struct {
	Signature      string `csv:"signature"`
	Version        uint64 `csv:"version"`
	Goals          int    `csv:"goals"`
	CellsProcessed int    `csv:"cells_processed"`
	TicksSpanned   int    `csv:"ticks_spanned"`
	RequestedTick  int64  `csv:"requested_tick"`
	CompletedTick  int64  `csv:"completed_tick"`
	DurationMicros int64  `csv:"duration_us"`
	Status         string `csv:"status"`
}

// PerfRecord is one perf window snapshot, written to perf.csv.
type PerfRecord struct {
	Tick            int64   `csv:"tick"`
	AvgTickMicros   int64   `csv:"avg_tick_us"`
	MaxTickMicros   int64   `csv:"max_tick_us"`
	AvgCellsPerTick float64 `csv:"avg_cells_per_tick"`
	QueueLen        int     `csv:"queue_len"`
	CachedFields    int     `csv:"cached_fields"`
}

// OutputManager handles structured experiment output with CSV logging.
// All methods are nil-safe so callers can run with output disabled.
type OutputManager struct {
	dir        string
	fieldsFile *os.File
	perfFile   *os.File

	fieldsHeaderWritten bool
	perfHeaderWritten   bool

	// Generation durations in microseconds, kept for Summarize.
	durations []float64
}

// NewOutputManager creates the output directory and files. Returns nil
// if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}

	f, err := os.Create(filepath.Join(dir, "fields.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating fields.csv: %w", err)
	}
	om.fieldsFile = f

	f, err = os.Create(filepath.Join(dir, "perf.csv"))
	if err != nil {
		om.fieldsFile.Close()
		return nil, fmt.Errorf("creating perf.csv: %w", err)
	}
	om.perfFile = f

	return om, nil
}

// WriteGeneration writes a generation record to fields.csv.
func (om *OutputManager) WriteGeneration(rec GenerationRecord) error {
	if om == nil {
		return nil
	}

	om.durations = append(om.durations, float64(rec.DurationMicros))

	records := []GenerationRecord{rec}
	if !om.fieldsHeaderWritten {
		if err := gocsv.Marshal(records, om.fieldsFile); err != nil {
			return fmt.Errorf("writing generation record: %w", err)
		}
		om.fieldsHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.fieldsFile); err != nil {
			return fmt.Errorf("writing generation record: %w", err)
		}
	}
	return nil
}

// WritePerf writes a perf window snapshot to perf.csv.
func (om *OutputManager) WritePerf(rec PerfRecord) error {
	if om == nil {
		return nil
	}

	records := []PerfRecord{rec}
	if !om.perfHeaderWritten {
		if err := gocsv.Marshal(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf record: %w", err)
		}
		om.perfHeaderWritten = true
	} else {
		if err := gocsv.MarshalWithoutHeaders(records, om.perfFile); err != nil {
			return fmt.Errorf("writing perf record: %w", err)
		}
	}
	return nil
}

// GenerationSummary summarizes all generation durations recorded so far.
func (om *OutputManager) GenerationSummary() Summary {
	if om == nil {
		return Summary{}
	}
	return Summarize(om.durations)
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}
	var firstErr error
	if err := om.fieldsFile.Close(); err != nil {
		firstErr = err
	}
	if err := om.perfFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
