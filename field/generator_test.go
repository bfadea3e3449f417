package field

import (
	"math"
	"testing"

	"github.com/pthm-cable/flowgrid/grid"
)

// testGrid builds a 10x10 grid with cell size 10 and applies the given
// blocked regions in one commit.
func testGrid(t *testing.T, blocked ...grid.Region) *grid.CostGrid {
	t.Helper()
	g, err := grid.New(100, 100, 10, grid.Vec2{})
	if err != nil {
		t.Fatalf("grid.New: %v", err)
	}
	for _, r := range blocked {
		g.SetObstacle(r, true)
	}
	g.Commit()
	return g
}

func generate(t *testing.T, g *grid.CostGrid, goals []grid.Cell, opts Options) *Field {
	t.Helper()
	gen, err := NewGenerator(g.Snapshot(), goals, opts)
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	gen.Step(0)
	return gen.Finish()
}

// TestGeneratorValidation verifies goal set validation up front.
func TestGeneratorValidation(t *testing.T) {
	g := testGrid(t)
	snap := g.Snapshot()

	if _, err := NewGenerator(snap, nil, Options{}); err == nil {
		t.Error("empty goal set should be rejected")
	}
	if _, err := NewGenerator(snap, []grid.Cell{{X: 10, Y: 0}}, Options{}); err == nil {
		t.Error("out-of-bounds goal should be rejected")
	}
}

// TestIntegrationMonotonicity verifies the core distance invariant: no
// reached cell can be more than one edge cost above any reached neighbor.
func TestIntegrationMonotonicity(t *testing.T) {
	g := testGrid(t,
		grid.Region{MinX: 3, MinY: 2, MaxX: 4, MaxY: 6},
		grid.Region{MinX: 7, MinY: 5, MaxX: 8, MaxY: 8},
	)
	f := generate(t, g, []grid.Cell{{X: 9, Y: 0}}, Options{})
	snap := f.Snapshot()

	for y := 0; y < snap.Height(); y++ {
		for x := 0; x < snap.Width(); x++ {
			d, reached := f.IntegrationCell(grid.Cell{X: x, Y: y})
			if !reached {
				continue
			}
			for _, nd := range neighborDirs {
				nx, ny := x+nd.dx, y+nd.dy
				if !snap.Passable(nx, ny) {
					continue
				}
				diagonal := nd.dx != 0 && nd.dy != 0
				if diagonal {
					if !snap.Passable(x+nd.dx, y) || !snap.Passable(x, y+nd.dy) {
						continue
					}
				}
				nv, ok := f.IntegrationCell(grid.Cell{X: nx, Y: ny})
				if !ok {
					t.Fatalf("cell (%d,%d) reached but neighbor (%d,%d) is not", x, y, nx, ny)
				}
				edge := float32(snap.Cost(x, y))
				if diagonal {
					edge *= sqrt2
				}
				if d > nv+edge+1e-4 {
					t.Fatalf("integration at (%d,%d)=%g exceeds neighbor (%d,%d)=%g plus edge %g",
						x, y, d, nx, ny, nv, edge)
				}
			}
		}
	}
}

// TestFlowDescends verifies every nonzero flow vector points at a
// neighbor with strictly lower integration.
func TestFlowDescends(t *testing.T) {
	g := testGrid(t, grid.Region{MinX: 4, MinY: 3, MaxX: 6, MaxY: 6})
	f := generate(t, g, []grid.Cell{{X: 9, Y: 9}}, Options{})

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			v := f.FlowCell(grid.Cell{X: x, Y: y})
			if v.IsZero() {
				continue
			}
			nx := x + int(math.Round(float64(v.X)))
			ny := y + int(math.Round(float64(v.Y)))

			here, _ := f.IntegrationCell(grid.Cell{X: x, Y: y})
			there, ok := f.IntegrationCell(grid.Cell{X: nx, Y: ny})
			if !ok || there >= here {
				t.Fatalf("flow at (%d,%d) points to (%d,%d): %g -> %g", x, y, nx, ny, here, there)
			}
		}
	}
}

// TestFlowRoutesAroundWall drops a near-complete wall and walks a probe
// along cell flow vectors from the far side. The probe must reach a goal
// through the single gap without ever standing on a blocked cell.
func TestFlowRoutesAroundWall(t *testing.T) {
	// Column 5 blocked for rows 0..8, gap at (5,9).
	g := testGrid(t, grid.Region{MinX: 5, MinY: 0, MaxX: 5, MaxY: 8})
	goal := grid.Cell{X: 9, Y: 0}
	f := generate(t, g, []grid.Cell{goal}, Options{})
	snap := f.Snapshot()

	c := grid.Cell{X: 0, Y: 0}
	for steps := 0; ; steps++ {
		if steps > 100 {
			t.Fatal("walker did not converge")
		}
		if !snap.Passable(c.X, c.Y) {
			t.Fatalf("walker stepped onto blocked cell %v", c)
		}
		if c == goal {
			break
		}
		v := f.FlowCell(c)
		if v.IsZero() {
			t.Fatalf("no flow at %v before reaching the goal", c)
		}
		c.X += int(math.Round(float64(v.X)))
		c.Y += int(math.Round(float64(v.Y)))
	}

	// Cells left of the wall must route through the gap, so their
	// integration reflects the detour, not the straight-line distance.
	d, ok := f.IntegrationCell(grid.Cell{X: 4, Y: 0})
	if !ok {
		t.Fatal("left side should still be reachable through the gap")
	}
	if d < 15 {
		t.Errorf("integration %g too low for a detour through (5,9)", d)
	}
}

// TestCornerCuttingPolicy verifies a diagonal-only gap is sealed by
// default and opened by the option.
func TestCornerCuttingPolicy(t *testing.T) {
	// Full column 5 and row 5 blocked except the shared cell (5,5):
	// passing from the NW quadrant to the goal requires the diagonal
	// (4,4)->(5,5) between two blocked cells.
	blocked := []grid.Region{
		{MinX: 5, MinY: 0, MaxX: 5, MaxY: 4},
		{MinX: 5, MinY: 6, MaxX: 5, MaxY: 9},
		{MinX: 0, MinY: 5, MaxX: 4, MaxY: 5},
		{MinX: 6, MinY: 5, MaxX: 9, MaxY: 5},
	}
	goal := []grid.Cell{{X: 9, Y: 9}}

	strict := generate(t, testGrid(t, blocked...), goal, Options{})
	if _, ok := strict.IntegrationCell(grid.Cell{X: 0, Y: 0}); ok {
		t.Error("corner-cut-only path should be sealed by default")
	}

	loose := generate(t, testGrid(t, blocked...), goal, Options{AllowCornerCutting: true})
	if _, ok := loose.IntegrationCell(grid.Cell{X: 0, Y: 0}); !ok {
		t.Error("corner cutting enabled should open the diagonal gap")
	}
}

// TestUnreachableGoalSet verifies a goal set with no passable member
// resolves to an unreachable field without any integration work.
func TestUnreachableGoalSet(t *testing.T) {
	g := testGrid(t, grid.Region{MinX: 5, MinY: 5, MaxX: 5, MaxY: 5})
	gen, err := NewGenerator(g.Snapshot(), []grid.Cell{{X: 5, Y: 5}}, Options{})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	if !gen.Done() {
		t.Fatal("generator should be done immediately with no passable goal")
	}

	f := gen.Finish()
	if !f.Unreachable() {
		t.Fatal("field should be unreachable")
	}
	if _, ok := f.Sample(grid.Vec2{X: 5, Y: 5}); ok {
		t.Error("sampling an unreachable field must return no direction")
	}
}

// TestHigherCostTerrainAvoided verifies the integration pass weights
// terrain cost, preferring a longer cheap path over a short expensive one.
func TestHigherCostTerrainAvoided(t *testing.T) {
	g := testGrid(t)
	// Expensive band across the middle, open at the top row.
	g.SetCost(grid.Region{MinX: 0, MinY: 4, MaxX: 9, MaxY: 6}, 50)
	g.SetCost(grid.Region{MinX: 0, MinY: 4, MaxX: 0, MaxY: 6}, 1)
	g.Commit()

	f := generate(t, g, []grid.Cell{{X: 5, Y: 9}}, Options{})

	// Walk from above the band; the path should funnel through the
	// cheap column 0 rather than crossing the band at x=5.
	c := grid.Cell{X: 5, Y: 0}
	sawCheapColumn := false
	for steps := 0; c != (grid.Cell{X: 5, Y: 9}) && steps < 100; steps++ {
		v := f.FlowCell(c)
		if v.IsZero() {
			t.Fatalf("no flow at %v", c)
		}
		c.X += int(math.Round(float64(v.X)))
		c.Y += int(math.Round(float64(v.Y)))
		if c.X == 0 {
			sawCheapColumn = true
		}
	}
	if !sawCheapColumn {
		t.Error("path crossed the expensive band instead of detouring through the cheap column")
	}
}

// TestGenerationDeterministic verifies identical inputs produce
// bit-identical fields regardless of stepping schedule.
func TestGenerationDeterministic(t *testing.T) {
	blocked := []grid.Region{
		{MinX: 2, MinY: 2, MaxX: 3, MaxY: 7},
		{MinX: 6, MinY: 0, MaxX: 7, MaxY: 4},
	}
	goals := []grid.Cell{{X: 9, Y: 9}, {X: 0, Y: 9}}

	oneShot := generate(t, testGrid(t, blocked...), goals, Options{})

	gen, err := NewGenerator(testGrid(t, blocked...).Snapshot(), goals, Options{})
	if err != nil {
		t.Fatalf("NewGenerator: %v", err)
	}
	for !gen.Step(5) {
	}
	budgeted := gen.Finish()

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := grid.Cell{X: x, Y: y}
			a, _ := oneShot.IntegrationCell(c)
			b, _ := budgeted.IntegrationCell(c)
			if a != b {
				t.Fatalf("integration diverges at %v: %g vs %g", c, a, b)
			}
			if oneShot.FlowCell(c) != budgeted.FlowCell(c) {
				t.Fatalf("flow diverges at %v", c)
			}
		}
	}
}

// TestMultiSourceGoals verifies every cell converges to its nearest goal
// when several are seeded at once.
func TestMultiSourceGoals(t *testing.T) {
	g := testGrid(t)
	f := generate(t, g, []grid.Cell{{X: 0, Y: 0}, {X: 9, Y: 9}}, Options{})

	dNearLeft, _ := f.IntegrationCell(grid.Cell{X: 1, Y: 0})
	dNearRight, _ := f.IntegrationCell(grid.Cell{X: 8, Y: 9})
	if dNearLeft != 1 || dNearRight != 1 {
		t.Errorf("cells adjacent to goals should integrate to 1, got %g and %g", dNearLeft, dNearRight)
	}

	dMid, _ := f.IntegrationCell(grid.Cell{X: 5, Y: 5})
	// Nearest goal is (9,9): 4 diagonal steps.
	want := float32(4 * sqrt2)
	if math.Abs(float64(dMid-want)) > 1e-3 {
		t.Errorf("midpoint integration %g, want %g", dMid, want)
	}
}

// TestParallelFlowMatchesSerial verifies the row-chunked flow pass gives
// the same field as the single-threaded one.
func TestParallelFlowMatchesSerial(t *testing.T) {
	blocked := []grid.Region{{MinX: 3, MinY: 3, MaxX: 6, MaxY: 4}}
	goals := []grid.Cell{{X: 9, Y: 0}}

	serial := generate(t, testGrid(t, blocked...), goals, Options{Workers: 1})
	parallel := generate(t, testGrid(t, blocked...), goals, Options{Workers: 4})

	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			c := grid.Cell{X: x, Y: y}
			if serial.FlowCell(c) != parallel.FlowCell(c) {
				t.Fatalf("parallel flow diverges at %v", c)
			}
		}
	}
}
