package telemetry

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Summary aggregates generation durations in microseconds.
type Summary struct {
	Count  int
	Mean   float64
	StdDev float64
	P50    float64
	P95    float64
}

// Summarize computes summary statistics over a set of durations. The
// input is not modified.
func Summarize(durationsMicros []float64) Summary {
	n := len(durationsMicros)
	if n == 0 {
		return Summary{}
	}

	xs := make([]float64, n)
	copy(xs, durationsMicros)
	sort.Float64s(xs)

	return Summary{
		Count:  n,
		Mean:   stat.Mean(xs, nil),
		StdDev: stat.StdDev(xs, nil),
		P50:    stat.Quantile(0.5, stat.Empirical, xs, nil),
		P95:    stat.Quantile(0.95, stat.Empirical, xs, nil),
	}
}
