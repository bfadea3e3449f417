// Package grid provides the cost grid: the authoritative passability and
// traversal-cost map the field generator reads. The grid is mutated only
// through staged obstacle changes committed once per tick; every commit
// installs a fresh cost slice, so snapshots handed to in-flight generation
// jobs are never touched by later mutations.
package grid

import (
	"fmt"
	"math"
)

// Traversal cost bounds. CostImpassable is a reserved sentinel; everything
// below it is a passable cost multiplier.
const (
	CostMin        uint8 = 1
	CostMax        uint8 = 254
	CostImpassable uint8 = 255
)

// Cell addresses a single grid cell by integer coordinates.
type Cell struct {
	X, Y int
}

// Region is an inclusive rectangle of cells.
type Region struct {
	MinX, MinY int
	MaxX, MaxY int
}

// RegionAround returns the region covering a world-space rectangle.
func (g *CostGrid) RegionAround(min, max Vec2) Region {
	lo := g.ClampToCell(min)
	hi := g.ClampToCell(max)
	return Region{MinX: lo.X, MinY: lo.Y, MaxX: hi.X, MaxY: hi.Y}
}

type stagedChange struct {
	region Region
	cost   uint8
}

// CostGrid owns the per-cell traversal costs for the whole world. Created
// once at world-bounds configuration time and never resized. All mutation
// goes through SetObstacle/SetCost + Commit; reads during generation go
// through immutable Snapshots.
type CostGrid struct {
	costs    []uint8 // current cost slice; replaced wholesale on commit
	width    int
	height   int
	cellSize float32
	originX  float32
	originY  float32
	version  uint64

	pending []stagedChange
}

// New creates a cost grid covering a world of the given size. All cells
// start passable at CostMin.
func New(worldW, worldH, cellSize float32, origin Vec2) (*CostGrid, error) {
	if worldW <= 0 || worldH <= 0 {
		return nil, fmt.Errorf("grid: world size %gx%g must be positive", worldW, worldH)
	}
	if cellSize <= 0 {
		return nil, fmt.Errorf("grid: cell size %g must be positive", cellSize)
	}

	w := int(math.Ceil(float64(worldW / cellSize)))
	h := int(math.Ceil(float64(worldH / cellSize)))

	costs := make([]uint8, w*h)
	for i := range costs {
		costs[i] = CostMin
	}

	return &CostGrid{
		costs:    costs,
		width:    w,
		height:   h,
		cellSize: cellSize,
		originX:  origin.X,
		originY:  origin.Y,
	}, nil
}

// Width returns the grid width in cells.
func (g *CostGrid) Width() int { return g.width }

// Height returns the grid height in cells.
func (g *CostGrid) Height() int { return g.height }

// CellSize returns the world-space size of one cell.
func (g *CostGrid) CellSize() float32 { return g.cellSize }

// Version returns the current obstacle version. It increases by exactly
// one per committed batch of changes.
func (g *CostGrid) Version() uint64 { return g.version }

// InBounds reports whether the cell lies inside the grid.
func (g *CostGrid) InBounds(c Cell) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.width && c.Y < g.height
}

// WorldToCell maps a world position to the containing cell. ok is false
// when the position lies outside world bounds.
func (g *CostGrid) WorldToCell(p Vec2) (Cell, bool) {
	c := Cell{
		X: int((p.X - g.originX) / g.cellSize),
		Y: int((p.Y - g.originY) / g.cellSize),
	}
	if p.X < g.originX || p.Y < g.originY || !g.InBounds(c) {
		return Cell{}, false
	}
	return c, true
}

// ClampToCell maps a world position to the nearest in-bounds cell.
func (g *CostGrid) ClampToCell(p Vec2) Cell {
	c := Cell{
		X: int((p.X - g.originX) / g.cellSize),
		Y: int((p.Y - g.originY) / g.cellSize),
	}
	if c.X < 0 {
		c.X = 0
	}
	if c.X >= g.width {
		c.X = g.width - 1
	}
	if c.Y < 0 {
		c.Y = 0
	}
	if c.Y >= g.height {
		c.Y = g.height - 1
	}
	return c
}

// CellToWorldCenter returns the world position of a cell's center.
func (g *CostGrid) CellToWorldCenter(c Cell) Vec2 {
	return Vec2{
		X: g.originX + (float32(c.X)+0.5)*g.cellSize,
		Y: g.originY + (float32(c.Y)+0.5)*g.cellSize,
	}
}

// Passable reports whether a cell is currently traversable, including
// committed changes only.
func (g *CostGrid) Passable(c Cell) bool {
	if !g.InBounds(c) {
		return false
	}
	return g.costs[c.Y*g.width+c.X] != CostImpassable
}

// SetObstacle stages a passability change over a region. impassable=true
// blocks the cells, false restores them to CostMin. The change takes
// effect on the next Commit.
func (g *CostGrid) SetObstacle(r Region, impassable bool) {
	cost := CostMin
	if impassable {
		cost = CostImpassable
	}
	g.SetCost(r, cost)
}

// SetCost stages a traversal cost over a region. Costs above CostMax are
// treated as impassable.
func (g *CostGrid) SetCost(r Region, cost uint8) {
	if cost < CostMin {
		cost = CostMin
	}
	g.pending = append(g.pending, stagedChange{region: g.clampRegion(r), cost: cost})
}

// Commit applies all staged changes as one batch. The obstacle version is
// bumped exactly once per non-empty commit, regardless of how many
// SetObstacle/SetCost calls were staged since the last one. Returns true
// if anything was applied.
//
// Commit copies the cost slice before writing, so snapshots taken earlier
// keep observing the cells they were created with.
func (g *CostGrid) Commit() bool {
	if len(g.pending) == 0 {
		return false
	}

	next := make([]uint8, len(g.costs))
	copy(next, g.costs)

	for _, ch := range g.pending {
		for y := ch.region.MinY; y <= ch.region.MaxY; y++ {
			row := y * g.width
			for x := ch.region.MinX; x <= ch.region.MaxX; x++ {
				next[row+x] = ch.cost
			}
		}
	}

	g.costs = next
	g.pending = g.pending[:0]
	g.version++
	return true
}

// PendingChanges returns the number of staged, uncommitted changes.
func (g *CostGrid) PendingChanges() int {
	return len(g.pending)
}

func (g *CostGrid) clampRegion(r Region) Region {
	if r.MinX < 0 {
		r.MinX = 0
	}
	if r.MinY < 0 {
		r.MinY = 0
	}
	if r.MaxX >= g.width {
		r.MaxX = g.width - 1
	}
	if r.MaxY >= g.height {
		r.MaxY = g.height - 1
	}
	return r
}

// Snapshot captures the current costs and version for generation. The
// returned snapshot shares the installed cost slice; Commit never writes
// through it, so the snapshot stays consistent for the lifetime of the
// job that holds it.
func (g *CostGrid) Snapshot() *Snapshot {
	return &Snapshot{
		costs:    g.costs,
		width:    g.width,
		height:   g.height,
		cellSize: g.cellSize,
		originX:  g.originX,
		originY:  g.originY,
		version:  g.version,
	}
}

// Snapshot is an immutable view of the cost grid at one obstacle version.
type Snapshot struct {
	costs    []uint8
	width    int
	height   int
	cellSize float32
	originX  float32
	originY  float32
	version  uint64
}

// Width returns the grid width in cells.
func (s *Snapshot) Width() int { return s.width }

// Height returns the grid height in cells.
func (s *Snapshot) Height() int { return s.height }

// CellSize returns the world-space size of one cell.
func (s *Snapshot) CellSize() float32 { return s.cellSize }

// Version returns the obstacle version this snapshot was taken at.
func (s *Snapshot) Version() uint64 { return s.version }

// Index returns the flat slice index for a cell. The caller must ensure
// the cell is in bounds.
func (s *Snapshot) Index(x, y int) int { return y*s.width + x }

// InBounds reports whether the cell lies inside the grid.
func (s *Snapshot) InBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < s.width && y < s.height
}

// Cost returns the traversal cost at a cell. Out-of-bounds cells read as
// impassable.
func (s *Snapshot) Cost(x, y int) uint8 {
	if !s.InBounds(x, y) {
		return CostImpassable
	}
	return s.costs[y*s.width+x]
}

// Passable reports whether a cell can be traversed. Out of bounds is
// blocked, matching how the generator treats the world edge.
func (s *Snapshot) Passable(x, y int) bool {
	if !s.InBounds(x, y) {
		return false
	}
	return s.costs[y*s.width+x] != CostImpassable
}

// WorldToCell maps a world position to the containing cell. ok is false
// when the position lies outside world bounds.
func (s *Snapshot) WorldToCell(p Vec2) (Cell, bool) {
	c := Cell{
		X: int((p.X - s.originX) / s.cellSize),
		Y: int((p.Y - s.originY) / s.cellSize),
	}
	if p.X < s.originX || p.Y < s.originY || !s.InBounds(c.X, c.Y) {
		return Cell{}, false
	}
	return c, true
}

// CellToWorldCenter returns the world position of a cell's center.
func (s *Snapshot) CellToWorldCenter(c Cell) Vec2 {
	return Vec2{
		X: s.originX + (float32(c.X)+0.5)*s.cellSize,
		Y: s.originY + (float32(c.Y)+0.5)*s.cellSize,
	}
}

// ClampToCell maps a world position to the nearest in-bounds cell.
func (s *Snapshot) ClampToCell(p Vec2) Cell {
	c := Cell{
		X: int((p.X - s.originX) / s.cellSize),
		Y: int((p.Y - s.originY) / s.cellSize),
	}
	if c.X < 0 {
		c.X = 0
	}
	if c.X >= s.width {
		c.X = s.width - 1
	}
	if c.Y < 0 {
		c.Y = 0
	}
	if c.Y >= s.height {
		c.Y = s.height - 1
	}
	return c
}

// FractionalCell maps a world position to continuous grid coordinates
// where integer values land on cell centers. Results are clamped to the
// grid so edge sampling stays usable.
func (s *Snapshot) FractionalCell(p Vec2) (fx, fy float32) {
	fx = (p.X-s.originX)/s.cellSize - 0.5
	fy = (p.Y-s.originY)/s.cellSize - 0.5
	if fx < 0 {
		fx = 0
	}
	if fy < 0 {
		fy = 0
	}
	if mx := float32(s.width - 1); fx > mx {
		fx = mx
	}
	if my := float32(s.height - 1); fy > my {
		fy = my
	}
	return fx, fy
}
