// Flow field preview tool - paint obstacles, place goals, watch the
// field regenerate under a per-tick cell budget.
//
// Usage: go run ./cmd/fieldpreview
//
// Controls: left mouse paints obstacles, right mouse erases, G places
// the goal under the cursor, R resets the map.
package main

import (
	"fmt"
	"log/slog"
	"math"
	"os"

	gui "github.com/gen2brain/raylib-go/raygui"
	rl "github.com/gen2brain/raylib-go/raylib"

	"github.com/pthm-cable/flowgrid/grid"
	"github.com/pthm-cable/flowgrid/manager"
)

const (
	windowWidth  = 1060
	windowHeight = 740

	cellsX    = 72
	cellsY    = 72
	cellPx    = 10
	viewSize  = cellsX * cellPx
	panelX    = viewSize + 20
	panelW    = windowWidth - viewSize - 30
	brushSize = 2 // obstacle brush half-extent in cells
)

type preview struct {
	log    *slog.Logger
	grid   *grid.CostGrid
	mgr    *manager.Manager
	goal   grid.Cell
	handle *manager.Handle // field being displayed
	next   *manager.Handle // regeneration in flight after an edit

	cellBudget float32
	showFlow   bool
	cornerCut  bool
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	g, err := grid.New(cellsX*cellPx, cellsY*cellPx, cellPx, grid.Vec2{})
	if err != nil {
		log.Error("grid init failed", "err", err)
		os.Exit(1)
	}

	p := &preview{
		log:        log,
		grid:       g,
		mgr:        manager.New(g, manager.Config{Capacity: 16}, log),
		goal:       grid.Cell{X: cellsX - 8, Y: cellsY - 8},
		cellBudget: 512,
		showFlow:   true,
	}
	p.requestGoal()

	rl.InitWindow(windowWidth, windowHeight, "Flow Field Preview")
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	for !rl.WindowShouldClose() {
		p.handleInput()
		p.mgr.Advance(int(p.cellBudget))
		p.promoteNext()

		rl.BeginDrawing()
		rl.ClearBackground(rl.RayWhite)
		p.drawField()
		p.drawPanel()
		rl.EndDrawing()
	}
}

// requestGoal issues a fresh request for the current goal cell.
func (p *preview) requestGoal() {
	h, err := p.mgr.RequestField([]grid.Cell{p.goal})
	if err != nil {
		return
	}
	if p.handle == nil {
		p.handle = h
		return
	}
	if p.next != nil {
		p.next.Release()
	}
	p.next = h
}

// rebuildManager swaps in a fresh manager when a policy toggle changes.
// The cost grid and its obstacles carry over; all cached fields are
// stale under the new policy and dropped.
func (p *preview) rebuildManager() {
	if p.next != nil {
		p.next.Release()
		p.next = nil
	}
	if p.handle != nil {
		p.handle.Release()
		p.handle = nil
	}
	p.mgr.Close()
	p.mgr = manager.New(p.grid, manager.Config{
		Capacity:           16,
		AllowCornerCutting: p.cornerCut,
	}, p.log)
	p.requestGoal()
}

// promoteNext swaps in a regenerated field once it leaves pending, so
// the display keeps showing the stale-but-valid field in the meantime.
func (p *preview) promoteNext() {
	if p.next == nil || p.next.Status() == manager.StatusPending {
		return
	}
	p.handle.Release()
	p.handle = p.next
	p.next = nil
}

func (p *preview) handleInput() {
	mouse := rl.GetMousePosition()
	cx := int(mouse.X) / cellPx
	cy := int(mouse.Y) / cellPx
	inView := cx >= 0 && cx < cellsX && cy >= 0 && cy < cellsY

	if inView {
		region := grid.Region{
			MinX: cx - brushSize, MinY: cy - brushSize,
			MaxX: cx + brushSize, MaxY: cy + brushSize,
		}
		if rl.IsMouseButtonDown(rl.MouseLeftButton) {
			p.mgr.Grid().SetObstacle(region, true)
			p.requestGoal()
		}
		if rl.IsMouseButtonDown(rl.MouseRightButton) {
			p.mgr.Grid().SetObstacle(region, false)
			p.requestGoal()
		}
		if rl.IsKeyPressed(rl.KeyG) {
			p.goal = grid.Cell{X: cx, Y: cy}
			p.requestGoal()
		}
	}

	if rl.IsKeyPressed(rl.KeyR) {
		p.mgr.Grid().SetObstacle(grid.Region{MaxX: cellsX - 1, MaxY: cellsY - 1}, false)
		p.requestGoal()
	}
}

func (p *preview) drawField() {
	f := p.handle.Field()

	// Normalization for the integration heatmap.
	var maxInt float32 = 1
	if f != nil {
		for y := 0; y < cellsY; y++ {
			for x := 0; x < cellsX; x++ {
				if v, ok := f.IntegrationCell(grid.Cell{X: x, Y: y}); ok && v > maxInt {
					maxInt = v
				}
			}
		}
	}

	snap := p.mgr.Grid().Snapshot()
	for y := 0; y < cellsY; y++ {
		for x := 0; x < cellsX; x++ {
			px := int32(x * cellPx)
			py := int32(y * cellPx)

			if !snap.Passable(x, y) {
				rl.DrawRectangle(px, py, cellPx, cellPx, rl.DarkGray)
				continue
			}

			if f == nil {
				rl.DrawRectangle(px, py, cellPx, cellPx, rl.LightGray)
				continue
			}

			v, ok := f.IntegrationCell(grid.Cell{X: x, Y: y})
			if !ok {
				rl.DrawRectangle(px, py, cellPx, cellPx, rl.Black)
				continue
			}

			t := v / maxInt
			c := rl.NewColor(uint8(40+210*t), uint8(90+80*(1-t)), uint8(250*(1-t)), 255)
			rl.DrawRectangle(px, py, cellPx, cellPx, c)

			if p.showFlow {
				flow := f.FlowCell(grid.Cell{X: x, Y: y})
				if !flow.IsZero() {
					cx := float32(px) + cellPx/2
					cy := float32(py) + cellPx/2
					rl.DrawLineEx(
						rl.Vector2{X: cx, Y: cy},
						rl.Vector2{X: cx + flow.X*cellPx*0.4, Y: cy + flow.Y*cellPx*0.4},
						1, rl.NewColor(255, 255, 255, 150),
					)
				}
			}
		}
	}

	// Goal marker
	rl.DrawRectangle(int32(p.goal.X*cellPx), int32(p.goal.Y*cellPx), cellPx, cellPx, rl.Green)
	rl.DrawRectangleLines(0, 0, viewSize, cellsY*cellPx, rl.DarkGray)
}

func (p *preview) drawPanel() {
	y := float32(10)
	rl.DrawText("Flow Field", int32(panelX), int32(y), 20, rl.DarkGray)
	y += 35

	rl.DrawText("Cell budget per tick", int32(panelX), int32(y), 14, rl.Gray)
	y += 18
	p.cellBudget = gui.SliderBar(
		rl.Rectangle{X: panelX, Y: y, Width: panelW - 80, Height: 20},
		"64", "8192",
		p.cellBudget, 64, 8192,
	)
	rl.DrawText(fmt.Sprintf("%d", int(p.cellBudget)), int32(panelX+panelW-70), int32(y+2), 16, rl.DarkGray)
	y += 35

	p.showFlow = gui.CheckBox(
		rl.Rectangle{X: panelX, Y: y, Width: 20, Height: 20},
		"Draw flow vectors", p.showFlow,
	)
	y += 28

	cornerCut := gui.CheckBox(
		rl.Rectangle{X: panelX, Y: y, Width: 20, Height: 20},
		"Allow corner cutting", p.cornerCut,
	)
	if cornerCut != p.cornerCut {
		p.cornerCut = cornerCut
		p.rebuildManager()
	}
	y += 35

	status := p.handle.Status()
	rl.DrawText(fmt.Sprintf("Status: %s", status), int32(panelX), int32(y), 16, rl.DarkGray)
	y += 22
	if p.next != nil {
		rl.DrawText("Regenerating...", int32(panelX), int32(y), 16, rl.Orange)
	}
	y += 22
	rl.DrawText(fmt.Sprintf("Version: %d", p.mgr.Grid().Version()), int32(panelX), int32(y), 16, rl.DarkGray)
	y += 22
	rl.DrawText(fmt.Sprintf("Queue: %d  Cached: %d", p.mgr.QueueLen(), p.mgr.CachedFields()), int32(panelX), int32(y), 16, rl.DarkGray)
	y += 22

	if pos, ok := sampleUnderMouse(p.handle); ok {
		angle := math.Atan2(float64(pos.Y), float64(pos.X)) * 180 / math.Pi
		rl.DrawText(fmt.Sprintf("Sample: (%.2f, %.2f) %.0f deg", pos.X, pos.Y, angle), int32(panelX), int32(y), 16, rl.DarkGray)
	} else {
		rl.DrawText("Sample: none", int32(panelX), int32(y), 16, rl.Gray)
	}

	y += 40
	rl.DrawText("LMB: paint obstacle\nRMB: erase\nG: place goal\nR: reset map", int32(panelX), int32(y), 14, rl.Gray)
}

func sampleUnderMouse(h *manager.Handle) (grid.Vec2, bool) {
	mouse := rl.GetMousePosition()
	if mouse.X < 0 || mouse.X >= viewSize || mouse.Y < 0 || mouse.Y >= cellsY*cellPx {
		return grid.Vec2{}, false
	}
	return h.Sample(grid.Vec2{X: mouse.X, Y: mouse.Y})
}
