package field

import (
	"container/heap"
	"fmt"
	"math"
	"sync"

	"github.com/pthm-cable/flowgrid/grid"
)

// sqrt2 scales diagonal edge costs so distances approximate Euclidean
// length instead of Chebyshev rings.
const sqrt2 = 1.41421356

// Neighbor enumeration order. Axis directions come first so that the
// flow pass, which takes the first strictly-lower neighbor, prefers
// axis-aligned moves over diagonals on equal integration.
var neighborDirs = [8]struct{ dx, dy int }{
	{0, -1}, {1, 0}, {0, 1}, {-1, 0}, // N, E, S, W
	{1, -1}, {1, 1}, {-1, 1}, {-1, -1}, // NE, SE, SW, NW
}

// openNode is an entry in the Dijkstra frontier. seq breaks cost ties by
// insertion order so identical inputs always expand in the same order.
type openNode struct {
	idx  int
	dist float32
	seq  uint64
}

type openHeap []openNode

func (h openHeap) Len() int { return len(h) }
func (h openHeap) Less(i, j int) bool {
	if h[i].dist != h[j].dist {
		return h[i].dist < h[j].dist
	}
	return h[i].seq < h[j].seq
}
func (h openHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *openHeap) Push(x any) {
	*h = append(*h, x.(openNode))
}

func (h *openHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Options configure a generation job.
type Options struct {
	// AllowCornerCutting permits diagonal moves that pass between two
	// blocked orthogonal cells. Disabled by default.
	AllowCornerCutting bool
	// Workers bounds the goroutines used for the flow pass. Values < 1
	// run it single-threaded.
	Workers int
}

// Generator computes a Field for one goal set against one cost grid
// snapshot. The integration pass is resumable: Step processes a bounded
// number of cells so the manager can amortize a large request across
// ticks. The flow pass runs once integration completes and is
// data-parallel across rows.
type Generator struct {
	snap *grid.Snapshot
	opts Options

	goals       []grid.Cell // requested goals, normalized
	seeded      int         // passable goals actually seeded
	integration []float32
	open        openHeap
	seq         uint64

	processed  int
	integrated bool
}

// NewGenerator validates the goal set and prepares the integration pass.
// Goals outside the grid are rejected outright; goals on impassable cells
// are dropped, and if none survive the request resolves to unreachable.
func NewGenerator(snap *grid.Snapshot, goals []grid.Cell, opts Options) (*Generator, error) {
	if len(goals) == 0 {
		return nil, fmt.Errorf("field: empty goal set")
	}
	for _, c := range goals {
		if !snap.InBounds(c.X, c.Y) {
			return nil, fmt.Errorf("field: goal %v outside %dx%d grid", c, snap.Width(), snap.Height())
		}
	}

	size := snap.Width() * snap.Height()
	g := &Generator{
		snap:        snap,
		opts:        opts,
		goals:       goals,
		integration: make([]float32, size),
		open:        make(openHeap, 0, len(goals)*4),
	}
	for i := range g.integration {
		g.integration[i] = unreached
	}

	// Multi-source seed: every passable goal starts at zero cost.
	for _, c := range goals {
		if !snap.Passable(c.X, c.Y) {
			continue
		}
		idx := snap.Index(c.X, c.Y)
		if g.integration[idx] == 0 && g.seeded > 0 {
			continue // duplicate goal cell
		}
		g.integration[idx] = 0
		heap.Push(&g.open, openNode{idx: idx, dist: 0, seq: g.seq})
		g.seq++
		g.seeded++
	}

	if g.seeded == 0 {
		// No passable goal at all: terminal, nothing to integrate.
		g.integrated = true
	}

	return g, nil
}

// Done reports whether the integration pass has finished.
func (g *Generator) Done() bool { return g.integrated }

// Processed returns the number of cells expanded so far.
func (g *Generator) Processed() int { return g.processed }

// Step advances the integration pass by at most budget cell expansions.
// Returns true once the pass is complete. budget < 1 runs to completion.
func (g *Generator) Step(budget int) bool {
	if g.integrated {
		return true
	}
	if budget < 1 {
		budget = math.MaxInt
	}

	w := g.snap.Width()
	for n := 0; n < budget; n++ {
		if g.open.Len() == 0 {
			g.integrated = true
			return true
		}

		e := heap.Pop(&g.open).(openNode)
		if e.dist > g.integration[e.idx] {
			continue // superseded by a cheaper relaxation
		}
		g.processed++

		cx := e.idx % w
		cy := e.idx / w

		for _, d := range neighborDirs {
			nx := cx + d.dx
			ny := cy + d.dy
			if !g.snap.Passable(nx, ny) {
				continue
			}

			diagonal := d.dx != 0 && d.dy != 0
			if diagonal && !g.opts.AllowCornerCutting {
				if !g.snap.Passable(cx+d.dx, cy) || !g.snap.Passable(cx, cy+d.dy) {
					continue
				}
			}

			edge := float32(g.snap.Cost(nx, ny))
			if diagonal {
				edge *= sqrt2
			}

			nIdx := ny*w + nx
			cand := e.dist + edge
			if cand < g.integration[nIdx] {
				g.integration[nIdx] = cand
				heap.Push(&g.open, openNode{idx: nIdx, dist: cand, seq: g.seq})
				g.seq++
			}
		}
	}

	if g.open.Len() == 0 {
		g.integrated = true
	}
	return g.integrated
}

// Finish runs the flow pass and returns the completed immutable Field.
// Must only be called after Step reported completion.
func (g *Generator) Finish() *Field {
	if !g.integrated {
		panic("field: Finish called before integration completed")
	}

	size := g.snap.Width() * g.snap.Height()
	f := &Field{
		snap:        g.snap,
		goals:       g.goals,
		integration: g.integration,
		flow:        make([]grid.Vec2, size),
		unreachable: g.seeded == 0,
	}
	if f.unreachable {
		return f
	}

	// Gradient extraction is independent per cell; split rows across
	// workers when asked to.
	h := g.snap.Height()
	workers := g.opts.Workers
	if workers < 1 || workers > h {
		workers = 1
	}
	if workers == 1 {
		g.flowRows(f, 0, h)
		return f
	}

	var wg sync.WaitGroup
	chunk := (h + workers - 1) / workers
	for start := 0; start < h; start += chunk {
		end := start + chunk
		if end > h {
			end = h
		}
		wg.Add(1)
		go func(y0, y1 int) {
			defer wg.Done()
			g.flowRows(f, y0, y1)
		}(start, end)
	}
	wg.Wait()

	return f
}

// flowRows derives flow vectors for rows [y0, y1): steepest descent
// toward the neighbor with the strictly lowest integration. Goal cells
// and cells with no lower neighbor keep the zero vector.
func (g *Generator) flowRows(f *Field, y0, y1 int) {
	w := g.snap.Width()

	for y := y0; y < y1; y++ {
		row := y * w
		for x := 0; x < w; x++ {
			d := g.integration[row+x]
			if d == 0 || math.IsInf(float64(d), 1) {
				continue
			}
			if !g.snap.Passable(x, y) {
				continue
			}

			best := d
			bestDir := -1
			for i, nd := range neighborDirs {
				nx := x + nd.dx
				ny := y + nd.dy
				if !g.snap.InBounds(nx, ny) {
					continue
				}

				v := g.integration[ny*w+nx]
				if v >= best {
					continue
				}

				// Never point into a cut corner even if the diagonal
				// neighbor is cheaper.
				if nd.dx != 0 && nd.dy != 0 && !g.opts.AllowCornerCutting {
					if !g.snap.Passable(x+nd.dx, y) || !g.snap.Passable(x, y+nd.dy) {
						continue
					}
				}

				best = v
				bestDir = i
			}

			if bestDir >= 0 {
				nd := neighborDirs[bestDir]
				f.flow[row+x] = grid.Vec2{X: float32(nd.dx), Y: float32(nd.dy)}.Normalized()
			}
		}
	}
}
