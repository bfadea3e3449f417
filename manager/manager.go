// Package manager is the single entry point for field requests. It owns
// the cost grid, deduplicates concurrent requests per goal signature,
// caches published fields under LRU with reference-counted pinning, and
// amortizes generation across ticks under a cell budget so one large
// request cannot stall the frame.
package manager

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/pthm-cable/flowgrid/field"
	"github.com/pthm-cable/flowgrid/grid"
	"github.com/pthm-cable/flowgrid/telemetry"
)

// ErrOutOfBounds is returned when a requested goal lies outside the
// world. Goals are rejected at request time; sampling clamps instead.
var ErrOutOfBounds = errors.New("goal outside world bounds")

// Config holds the manager's tunables.
type Config struct {
	// Capacity bounds the number of cached fields. Entries with live
	// handles are never evicted, so the cache may temporarily exceed
	// this when everything is pinned.
	Capacity int
	// CellBudget is the default number of integration-pass cells
	// processed per Advance call.
	CellBudget int
	// ClusterRadius collapses goal cells that fall within the same
	// radius-sized bucket into one representative, so a formation's
	// nearby sub-goals share a single field. 0 keeps goal sets exact.
	ClusterRadius int
	// AllowCornerCutting permits diagonal moves between two blocked
	// orthogonal cells.
	AllowCornerCutting bool
	// Workers bounds flow-pass parallelism. 0 uses GOMAXPROCS.
	Workers int
}

// DefaultConfig returns the tunables used when the host passes a zero
// Config field.
func DefaultConfig() Config {
	return Config{
		Capacity:      64,
		CellBudget:    8192,
		ClusterRadius: 0,
		Workers:       0,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Capacity <= 0 {
		c.Capacity = d.Capacity
	}
	if c.CellBudget <= 0 {
		c.CellBudget = d.CellBudget
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	return c
}

// Manager owns the cost grid and all field state for one session.
// Construct once at session start, inject into consumers, Close at
// session end. RequestField and handle reads are safe from any
// goroutine; grid mutation and Advance belong to the tick thread.
type Manager struct {
	mu sync.Mutex

	grid *grid.CostGrid
	cfg  Config
	log  *slog.Logger

	entries map[string]*entry
	lru     lruList
	queue   []*entry // pending generation jobs, request order

	tick int64

	perf   *telemetry.PerfCollector
	output *telemetry.OutputManager
}

// New creates a manager over a cost grid.
func New(g *grid.CostGrid, cfg Config, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		grid:    g,
		cfg:     cfg.withDefaults(),
		log:     log,
		entries: make(map[string]*entry),
	}
}

// SetTelemetry attaches optional perf and CSV output sinks. Call before
// the first Advance.
func (m *Manager) SetTelemetry(perf *telemetry.PerfCollector, out *telemetry.OutputManager) {
	m.perf = perf
	m.output = out
}

// Grid returns the cost grid the manager owns. The obstacle source calls
// SetObstacle/SetCost on it directly; changes take effect at the next
// Advance.
func (m *Manager) Grid() *grid.CostGrid { return m.grid }

// Tick returns the number of completed Advance calls.
func (m *Manager) Tick() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tick
}

// QueueLen returns the number of requests still generating.
func (m *Manager) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// CachedFields returns the number of fields currently cached.
func (m *Manager) CachedFields() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// RequestField returns a handle to the field converging on the given
// goal cells, computed against the current obstacle version. Never
// blocks: a cache hit returns a ready handle immediately, a miss
// enqueues a generation job and returns a pending handle. Identical
// concurrent requests share one computation.
func (m *Manager) RequestField(goals []grid.Cell) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range goals {
		if !m.grid.InBounds(c) {
			return nil, fmt.Errorf("manager: goal %v: %w", c, ErrOutOfBounds)
		}
	}
	if len(goals) == 0 {
		return nil, fmt.Errorf("manager: empty goal set")
	}

	normalized := field.NormalizeGoals(goals)
	clustered := m.clusterGoalsLocked(normalized)
	sig := field.NewSignature(clustered, m.grid.Version())

	if e, ok := m.entries[sig.Key()]; ok {
		e.refs++
		m.lru.moveToFront(e)
		return &Handle{m: m, e: e}, nil
	}

	snap := m.grid.Snapshot()
	gen, err := field.NewGenerator(snap, clustered, field.Options{
		AllowCornerCutting: m.cfg.AllowCornerCutting,
		Workers:            m.cfg.Workers,
	})
	if err != nil {
		return nil, err
	}

	e := &entry{
		sig:           sig,
		gen:           gen,
		refs:          1,
		requestedTick: m.tick,
		requestedAt:   time.Now(),
	}
	e.status.Store(int32(StatusPending))
	m.entries[sig.Key()] = e
	m.lru.pushFront(e)

	if gen.Done() {
		// Whole goal set was impassable: terminal immediately, no job.
		m.publishLocked(e, gen.Finish())
	} else {
		m.queue = append(m.queue, e)
	}

	m.evictLocked()
	return &Handle{m: m, e: e}, nil
}

// RequestFieldAt is RequestField for world-space destinations.
func (m *Manager) RequestFieldAt(positions []grid.Vec2) (*Handle, error) {
	goals := make([]grid.Cell, 0, len(positions))
	for _, p := range positions {
		c, ok := m.grid.WorldToCell(p)
		if !ok {
			return nil, fmt.Errorf("manager: position (%g, %g): %w", p.X, p.Y, ErrOutOfBounds)
		}
		goals = append(goals, c)
	}
	return m.RequestField(goals)
}

// Advance runs one tick of engine work: commits the staged obstacle
// batch (one version bump per tick, however many changes were staged)
// and spends up to cellBudget integration-pass cells across the pending
// jobs. Jobs with distinct signatures share no mutable state and step in
// parallel. cellBudget <= 0 uses the configured default.
func (m *Manager) Advance(cellBudget int) {
	if m.perf != nil {
		m.perf.StartTick()
		m.perf.StartPhase(telemetry.PhaseCommit)
	}

	m.mu.Lock()
	if m.grid.Commit() {
		m.log.Debug("obstacle batch committed", "version", m.grid.Version())
	}
	if cellBudget <= 0 {
		cellBudget = m.cfg.CellBudget
	}
	jobs := m.planLocked(cellBudget)
	m.mu.Unlock()

	if m.perf != nil {
		m.perf.StartPhase(telemetry.PhaseGenerate)
	}

	results := runJobs(jobs)

	if m.perf != nil {
		m.perf.StartPhase(telemetry.PhasePublish)
	}

	m.mu.Lock()
	processed := 0
	for _, r := range results {
		processed += r.processed
		if r.fld != nil {
			m.removeFromQueueLocked(r.e)
			m.publishLocked(r.e, r.fld)
		}
	}
	m.tick++
	m.mu.Unlock()

	if m.perf != nil {
		m.perf.EndTick(processed)
	}
}

type job struct {
	e      *entry
	budget int
}

type jobResult struct {
	e         *entry
	fld       *field.Field // non-nil when the job completed this tick
	processed int          // cells actually expanded this tick
}

// planLocked splits the tick budget across pending jobs in request
// order. Everyone gets at least one cell so a saturated queue still
// makes progress.
func (m *Manager) planLocked(cellBudget int) []job {
	n := len(m.queue)
	if n == 0 {
		return nil
	}
	per := cellBudget / n
	if per < 1 {
		per = 1
	}

	jobs := make([]job, 0, n)
	remaining := cellBudget
	for _, e := range m.queue {
		if remaining <= 0 {
			break
		}
		b := per
		if b > remaining {
			b = remaining
		}
		jobs = append(jobs, job{e: e, budget: b})
		remaining -= b
	}
	return jobs
}

// runJobs steps each job's integration pass, fanning out across
// goroutines when more than one request is in flight. A job that
// finishes integration runs its flow pass in the same goroutine.
func runJobs(jobs []job) []jobResult {
	results := make([]jobResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	run := func(i int) {
		j := jobs[i]
		j.e.ticksSpanned++
		results[i].e = j.e
		before := j.e.gen.Processed()
		if j.e.gen.Step(j.budget) {
			results[i].fld = j.e.gen.Finish()
		}
		results[i].processed = j.e.gen.Processed() - before
	}

	if len(jobs) == 1 {
		run(0)
		return results
	}

	var wg sync.WaitGroup
	for i := range jobs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			run(i)
		}(i)
	}
	wg.Wait()
	return results
}

// publishLocked installs a finished field. Publication is a single
// pointer store: handles either see no field or the whole field.
func (m *Manager) publishLocked(e *entry, f *field.Field) {
	cells := e.gen.Processed()
	e.gen = nil // generation state is done with; only the field remains
	e.fld.Store(f)
	st := StatusReady
	if f.Unreachable() {
		st = StatusUnreachable
	}
	e.status.Store(int32(st))

	if st == StatusUnreachable {
		m.log.Info("field unreachable", "signature", e.sig.String())
	} else {
		m.log.Debug("field published",
			"signature", e.sig.String(),
			"cells", cells,
			"ticks", e.ticksSpanned)
	}

	if m.output != nil {
		m.output.WriteGeneration(telemetry.GenerationRecord{
			Signature:      e.sig.String(),
			Version:        e.sig.Version(),
			Goals:          len(f.Goals()),
			CellsProcessed: cells,
			TicksSpanned:   e.ticksSpanned,
			RequestedTick:  e.requestedTick,
			CompletedTick:  m.tick,
			DurationMicros: time.Since(e.requestedAt).Microseconds(),
			Status:         st.String(),
		})
	}
}

func (m *Manager) removeFromQueueLocked(e *entry) {
	for i, q := range m.queue {
		if q == e {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			return
		}
	}
}

// evictLocked drops least-recently-used entries above capacity. Entries
// with outstanding handles are skipped: a follower mid-sample is never
// invalidated out from under it. Abandoned pending jobs are evictable
// and simply leave the queue.
func (m *Manager) evictLocked() {
	over := len(m.entries) - m.cfg.Capacity
	if over <= 0 {
		return
	}

	for e := m.lru.back(); e != nil && over > 0; {
		prev := m.lru.prev(e)
		if e.refs == 0 {
			delete(m.entries, e.sig.Key())
			m.lru.remove(e)
			m.removeFromQueueLocked(e)
			m.log.Debug("field evicted", "signature", e.sig.String())
			over--
		}
		e = prev
	}
}

// release is called by Handle.Release.
func (m *Manager) release(e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.refs <= 0 {
		panic("manager: handle refcount underflow")
	}
	e.refs--
	m.evictLocked()
}

// Close tears the manager down at session end. Outstanding handles
// become invalid; using one afterwards is a logic bug.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*entry)
	m.queue = nil
	m.lru = lruList{}
}

// clusterGoalsLocked collapses goal cells that share a radius-sized
// bucket, so near-identical destination sets from a formation hash to
// one signature. Each bucket is represented by its center cell when
// that is passable, otherwise by the first requested cell in the
// bucket, so clustering never turns a reachable goal set into a walled
// one.
func (m *Manager) clusterGoalsLocked(normalized []grid.Cell) []grid.Cell {
	radius := m.cfg.ClusterRadius
	if radius <= 0 {
		return normalized
	}

	size := radius*2 + 1
	seen := make(map[grid.Cell]struct{}, len(normalized))
	out := make([]grid.Cell, 0, len(normalized))
	for _, c := range normalized {
		bucket := grid.Cell{X: c.X / size, Y: c.Y / size}
		if _, ok := seen[bucket]; ok {
			continue
		}
		seen[bucket] = struct{}{}

		center := grid.Cell{X: bucket.X*size + radius, Y: bucket.Y*size + radius}
		if m.grid.Passable(center) {
			out = append(out, center)
		} else {
			out = append(out, c)
		}
	}
	return field.NormalizeGoals(out)
}
