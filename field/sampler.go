package field

import (
	"math"

	"github.com/pthm-cable/flowgrid/grid"
)

// Sample returns the interpolated movement direction at a world position.
// ok is false when there is nothing useful to follow: the field is
// unreachable, the position sits on a goal cell, or the position was
// never reached by the integration pass. Positions outside the world are
// clamped to the grid boundary.
//
// The result blends the four enclosing cells' flow vectors bilinearly.
// Impassable and zero-flow cells contribute nothing, so agents skirting
// an obstacle still get a continuous direction from the passable side.
func (f *Field) Sample(p grid.Vec2) (grid.Vec2, bool) {
	if f.unreachable {
		return grid.Vec2{}, false
	}

	cc := f.snap.ClampToCell(p)
	d := f.integration[f.snap.Index(cc.X, cc.Y)]
	if d == 0 {
		return grid.Vec2{}, false // arrived
	}
	if math.IsInf(float64(d), 1) {
		return grid.Vec2{}, false // position cut off from every goal
	}

	fx, fy := f.snap.FractionalCell(p)
	x0 := int(fx)
	y0 := int(fy)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 >= f.snap.Width() {
		x1 = x0
	}
	if y1 >= f.snap.Height() {
		y1 = y0
	}
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	w := f.snap.Width()
	v := f.flow[y0*w+x0].Scale((1 - tx) * (1 - ty))
	v = v.Add(f.flow[y0*w+x1].Scale(tx * (1 - ty)))
	v = v.Add(f.flow[y1*w+x0].Scale((1 - tx) * ty))
	v = v.Add(f.flow[y1*w+x1].Scale(tx * ty))

	if v.IsZero() {
		return grid.Vec2{}, false
	}
	return v.Normalized(), true
}

// IntegrationAt returns the remaining path cost at a world position, for
// follower arrival heuristics. ok is false for unreached positions and
// unreachable fields. Out-of-world positions are clamped.
func (f *Field) IntegrationAt(p grid.Vec2) (float32, bool) {
	if f.unreachable {
		return float32(math.Inf(1)), false
	}
	c := f.snap.ClampToCell(p)
	return f.IntegrationCell(c)
}
