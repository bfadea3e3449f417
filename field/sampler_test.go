package field

import (
	"math"
	"testing"

	"github.com/pthm-cable/flowgrid/grid"
)

// TestSampleDirection verifies the interpolated direction points toward
// the goal on open ground.
func TestSampleDirection(t *testing.T) {
	g := testGrid(t)
	f := generate(t, g, []grid.Cell{{X: 9, Y: 9}}, Options{})

	dir, ok := f.Sample(grid.Vec2{X: 5, Y: 5})
	if !ok {
		t.Fatal("open cell far from the goal should sample a direction")
	}
	if dir.X <= 0 || dir.Y <= 0 {
		t.Errorf("direction (%g,%g) should point down-right toward the goal", dir.X, dir.Y)
	}
	if math.Abs(float64(dir.Length()-1)) > 1e-4 {
		t.Errorf("sampled direction must be unit length, got %g", dir.Length())
	}
}

// TestSampleAtGoal verifies standing on a goal cell reads as arrived.
func TestSampleAtGoal(t *testing.T) {
	g := testGrid(t)
	f := generate(t, g, []grid.Cell{{X: 4, Y: 4}}, Options{})

	if _, ok := f.Sample(grid.Vec2{X: 45, Y: 45}); ok {
		t.Error("goal cell must sample as no-direction")
	}
	if d, ok := f.IntegrationAt(grid.Vec2{X: 45, Y: 45}); !ok || d != 0 {
		t.Errorf("goal cell integration should be 0, got %g (ok=%v)", d, ok)
	}
}

// TestSampleCutOff verifies positions walled off from every goal sample
// as no-direction even though the field itself is reachable.
func TestSampleCutOff(t *testing.T) {
	// Seal off the top-left 2x2 corner.
	g := testGrid(t,
		grid.Region{MinX: 2, MinY: 0, MaxX: 2, MaxY: 2},
		grid.Region{MinX: 0, MinY: 2, MaxX: 1, MaxY: 2},
	)
	f := generate(t, g, []grid.Cell{{X: 9, Y: 9}}, Options{})

	if f.Unreachable() {
		t.Fatal("field with a passable goal must not be unreachable")
	}
	if _, ok := f.Sample(grid.Vec2{X: 5, Y: 5}); ok {
		t.Error("sealed-off position must sample as no-direction")
	}
	if _, ok := f.Sample(grid.Vec2{X: 55, Y: 55}); !ok {
		t.Error("open position should still sample normally")
	}
}

// TestSampleBlendsAcrossObstacle verifies bilinear blending near a
// blocked cell still yields a usable direction from the passable side.
func TestSampleBlendsAcrossObstacle(t *testing.T) {
	g := testGrid(t, grid.Region{MinX: 5, MinY: 4, MaxX: 5, MaxY: 6})
	f := generate(t, g, []grid.Cell{{X: 9, Y: 5}}, Options{})

	// Position in cell (4,5), right against the blocked column. Two of
	// the four blend cells are blocked; the sample must still resolve.
	dir, ok := f.Sample(grid.Vec2{X: 48, Y: 55})
	if !ok {
		t.Fatal("position beside an obstacle should still sample")
	}
	if math.Abs(float64(dir.Length()-1)) > 1e-4 {
		t.Errorf("direction must be normalized, got length %g", dir.Length())
	}
}

// TestSampleContinuity verifies nearby positions sample similar
// directions on open ground, the property that keeps group movement
// smooth.
func TestSampleContinuity(t *testing.T) {
	g := testGrid(t)
	f := generate(t, g, []grid.Cell{{X: 9, Y: 5}}, Options{})

	prev, ok := f.Sample(grid.Vec2{X: 20, Y: 55})
	if !ok {
		t.Fatal("expected a direction")
	}
	for x := float32(22); x <= 60; x += 2 {
		cur, ok := f.Sample(grid.Vec2{X: x, Y: 55})
		if !ok {
			t.Fatalf("expected a direction at x=%g", x)
		}
		if prev.Dot(cur) < 0.7 {
			t.Fatalf("direction jumped more than ~45 degrees between adjacent samples at x=%g", x)
		}
		prev = cur
	}
}

// TestSampleOutsideWorldClamps verifies out-of-world positions sample as
// if standing on the nearest boundary cell.
func TestSampleOutsideWorldClamps(t *testing.T) {
	g := testGrid(t)
	f := generate(t, g, []grid.Cell{{X: 9, Y: 9}}, Options{})

	outside, ok := f.Sample(grid.Vec2{X: -50, Y: -50})
	if !ok {
		t.Fatal("clamped outside position should sample")
	}
	corner, _ := f.Sample(grid.Vec2{X: 5, Y: 5})
	if outside != corner {
		t.Errorf("outside sample %v should match corner cell sample %v", outside, corner)
	}
}
