// Package field computes and samples flow fields: for a set of goal
// cells, an integration field (accumulated shortest-path cost to the
// nearest goal) and a flow field (per-cell unit vector toward decreasing
// integration). A published field is immutable and internally consistent
// with exactly one obstacle version.
package field

import (
	"math"

	"github.com/pthm-cable/flowgrid/grid"
)

// unreached marks cells the integration pass never relaxed.
var unreached = float32(math.Inf(1))

// Field is an immutable integration + flow field pair for one goal set
// against one cost grid snapshot. Never mutated after publication; a
// changed obstacle layout produces a new Field under a new signature.
type Field struct {
	snap        *grid.Snapshot
	goals       []grid.Cell
	integration []float32
	flow        []grid.Vec2
	unreachable bool
}

// Snapshot returns the cost grid snapshot this field was computed against.
func (f *Field) Snapshot() *grid.Snapshot { return f.snap }

// Goals returns the goal cells this field converges toward.
func (f *Field) Goals() []grid.Cell { return f.goals }

// Version returns the obstacle version this field is consistent with.
func (f *Field) Version() uint64 { return f.snap.Version() }

// Unreachable reports whether the goal set had no passable member.
func (f *Field) Unreachable() bool { return f.unreachable }

// IntegrationCell returns the integration value at a cell and whether the
// cell was reached. Out-of-bounds cells read as unreached.
func (f *Field) IntegrationCell(c grid.Cell) (float32, bool) {
	if !f.snap.InBounds(c.X, c.Y) {
		return unreached, false
	}
	v := f.integration[f.snap.Index(c.X, c.Y)]
	return v, !math.IsInf(float64(v), 1)
}

// FlowCell returns the flow vector at a cell. Impassable, unreached and
// goal cells carry the zero vector.
func (f *Field) FlowCell(c grid.Cell) grid.Vec2 {
	if !f.snap.InBounds(c.X, c.Y) {
		return grid.Vec2{}
	}
	return f.flow[f.snap.Index(c.X, c.Y)]
}
