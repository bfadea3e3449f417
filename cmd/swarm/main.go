// Swarm demo - a few hundred agents steer off one shared flow field.
// Demonstrates the follower-facing contract: every agent holds the same
// handle, samples per tick, and treats a none result as "arrived".
//
// Usage: go run ./cmd/swarm
//
// Controls: click to set the group destination, left-drag with space
// held paints obstacles.
package main

import (
	"log/slog"
	"math/rand"
	"os"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/mlange-42/ark/ecs"

	"github.com/pthm-cable/flowgrid/grid"
	"github.com/pthm-cable/flowgrid/manager"
)

const (
	screenWidth  = 960
	screenHeight = 720
	cellSize     = 12.0
	agentCount   = 300
	agentSpeed   = 90.0 // world units per second
	dt           = 1.0 / 60.0
)

// Position is an agent's world-space location.
type Position struct {
	X, Y float32
}

// Velocity is an agent's current movement in world units per second.
type Velocity struct {
	X, Y float32
}

type sim struct {
	world  *ecs.World
	mapper *ecs.Map2[Position, Velocity]
	filter *ecs.Filter2[Position, Velocity]

	mgr    *manager.Manager
	handle *manager.Handle
	rng    *rand.Rand
}

func main() {
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	g, err := grid.New(screenWidth, screenHeight, cellSize, grid.Vec2{})
	if err != nil {
		log.Error("grid init failed", "err", err)
		os.Exit(1)
	}

	world := ecs.NewWorld()
	s := &sim{
		world:  world,
		mapper: ecs.NewMap2[Position, Velocity](world),
		filter: ecs.NewFilter2[Position, Velocity](world),
		mgr:    manager.New(g, manager.Config{Capacity: 8, CellBudget: 4096}, log),
		rng:    rand.New(rand.NewSource(7)),
	}

	s.scatterObstacles(14)
	s.mgr.Advance(0) // commit the initial layout
	s.spawnAgents(agentCount)
	s.setDestination(grid.Vec2{X: screenWidth / 2, Y: screenHeight / 2})

	rl.InitWindow(screenWidth, screenHeight, "Flow Field Swarm")
	defer rl.CloseWindow()
	rl.SetTargetFPS(60)

	for !rl.WindowShouldClose() {
		s.handleInput()
		s.mgr.Advance(0)
		s.stepAgents()
		s.draw()
	}
}

func (s *sim) scatterObstacles(count int) {
	g := s.mgr.Grid()
	for i := 0; i < count; i++ {
		x := 4 + s.rng.Intn(g.Width()-12)
		y := 4 + s.rng.Intn(g.Height()-12)
		g.SetObstacle(grid.Region{
			MinX: x, MinY: y,
			MaxX: x + 2 + s.rng.Intn(6), MaxY: y + 2 + s.rng.Intn(6),
		}, true)
	}
}

func (s *sim) spawnAgents(n int) {
	snap := s.mgr.Grid().Snapshot()
	for spawned := 0; spawned < n; {
		pos := Position{
			X: s.rng.Float32() * screenWidth,
			Y: s.rng.Float32() * screenHeight,
		}
		c, ok := snap.WorldToCell(grid.Vec2{X: pos.X, Y: pos.Y})
		if !ok || !snap.Passable(c.X, c.Y) {
			continue
		}
		vel := Velocity{}
		s.mapper.NewEntity(&pos, &vel)
		spawned++
	}
}

// setDestination re-requests the shared field. The old handle stays
// valid until released, so agents keep steering off the stale field for
// the frames the new one spends pending.
func (s *sim) setDestination(p grid.Vec2) {
	h, err := s.mgr.RequestFieldAt([]grid.Vec2{p})
	if err != nil {
		return
	}
	if s.handle != nil {
		s.handle.Release()
	}
	s.handle = h
}

func (s *sim) handleInput() {
	mouse := rl.GetMousePosition()

	if rl.IsKeyDown(rl.KeySpace) {
		if rl.IsMouseButtonDown(rl.MouseLeftButton) {
			if c, ok := s.mgr.Grid().WorldToCell(grid.Vec2{X: mouse.X, Y: mouse.Y}); ok {
				s.mgr.Grid().SetObstacle(grid.Region{
					MinX: c.X - 1, MinY: c.Y - 1, MaxX: c.X + 1, MaxY: c.Y + 1,
				}, true)
			}
		}
		return
	}

	if rl.IsMouseButtonPressed(rl.MouseLeftButton) {
		s.setDestination(grid.Vec2{X: mouse.X, Y: mouse.Y})
	}
}

func (s *sim) stepAgents() {
	query := s.filter.Query()
	for query.Next() {
		pos, vel := query.Get()

		dir, ok := s.handle.Sample(grid.Vec2{X: pos.X, Y: pos.Y})
		if !ok {
			// Arrived, cut off, or field still pending: coast to a stop.
			vel.X *= 0.85
			vel.Y *= 0.85
		} else {
			vel.X += (dir.X*agentSpeed - vel.X) * 0.2
			vel.Y += (dir.Y*agentSpeed - vel.Y) * 0.2
		}

		pos.X += vel.X * dt
		pos.Y += vel.Y * dt
	}
}

func (s *sim) draw() {
	rl.BeginDrawing()
	rl.ClearBackground(rl.NewColor(24, 26, 32, 255))

	snap := s.mgr.Grid().Snapshot()
	for y := 0; y < snap.Height(); y++ {
		for x := 0; x < snap.Width(); x++ {
			if !snap.Passable(x, y) {
				rl.DrawRectangle(int32(float32(x)*cellSize), int32(float32(y)*cellSize),
					int32(cellSize), int32(cellSize), rl.NewColor(70, 70, 80, 255))
			}
		}
	}

	query := s.filter.Query()
	for query.Next() {
		pos, _ := query.Get()
		rl.DrawCircle(int32(pos.X), int32(pos.Y), 2.5, rl.NewColor(120, 200, 255, 255))
	}

	if s.handle.Status() == manager.StatusUnreachable {
		rl.DrawText("destination unreachable", 10, 10, 20, rl.Red)
	}

	rl.EndDrawing()
}
