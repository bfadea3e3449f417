// Field generation benchmark - runs the engine headless against a
// randomized obstacle layout and reports per-tick and per-generation
// timings.
//
// Usage: go run ./cmd/fieldbench [-config path] [-ticks n] [-requests n] [-out dir]
package main

import (
	"flag"
	"log/slog"
	"math/rand"
	"os"

	"github.com/pthm-cable/flowgrid/config"
	"github.com/pthm-cable/flowgrid/grid"
	"github.com/pthm-cable/flowgrid/manager"
	"github.com/pthm-cable/flowgrid/telemetry"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (empty = embedded defaults)")
	ticks := flag.Int("ticks", 600, "ticks to simulate")
	requests := flag.Int("requests", 32, "field requests to issue")
	outDir := flag.String("out", "", "CSV output directory (overrides config)")
	seed := flag.Int64("seed", 42, "obstacle layout seed")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))
	config.MustInit(*configPath)
	cfg := config.Cfg()

	dir := cfg.Telemetry.OutputDir
	if *outDir != "" {
		dir = *outDir
	}

	g, err := grid.New(
		cfg.Derived.WorldW32, cfg.Derived.WorldH32, cfg.Derived.Cell32,
		grid.Vec2{X: float32(cfg.World.OriginX), Y: float32(cfg.World.OriginY)},
	)
	if err != nil {
		log.Error("grid init failed", "err", err)
		os.Exit(1)
	}

	out, err := telemetry.NewOutputManager(dir)
	if err != nil {
		log.Error("output init failed", "err", err)
		os.Exit(1)
	}
	defer out.Close()

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)

	mgr := manager.New(g, manager.Config{
		Capacity:           cfg.Cache.Capacity,
		CellBudget:         cfg.Generation.CellBudget,
		ClusterRadius:      cfg.Goals.ClusterRadius,
		AllowCornerCutting: cfg.Generation.AllowCornerCutting,
		Workers:            cfg.Generation.Workers,
	}, log)
	mgr.SetTelemetry(perf, out)
	defer mgr.Close()

	rng := rand.New(rand.NewSource(*seed))
	scatterObstacles(g, rng, g.Width()*g.Height()/400)

	handles := make([]*manager.Handle, 0, *requests)
	for t := 0; t < *ticks; t++ {
		// Stagger the requests over the first quarter of the run.
		if len(handles) < *requests && t%4 == 0 {
			h, err := mgr.RequestField([]grid.Cell{randomCell(g, rng)})
			if err == nil {
				handles = append(handles, h)
			}
		}

		mgr.Advance(0)

		if t > 0 && t%cfg.Telemetry.PerfWindow == 0 {
			stats := perf.Stats()
			out.WritePerf(telemetry.PerfRecord{
				Tick:            mgr.Tick(),
				AvgTickMicros:   stats.AvgTickDuration.Microseconds(),
				MaxTickMicros:   stats.MaxTickDuration.Microseconds(),
				AvgCellsPerTick: stats.AvgCellsPerTick,
				QueueLen:        mgr.QueueLen(),
				CachedFields:    mgr.CachedFields(),
			})
		}
	}

	ready, unreachable, pending := 0, 0, 0
	for _, h := range handles {
		switch h.Status() {
		case manager.StatusReady:
			ready++
		case manager.StatusUnreachable:
			unreachable++
		default:
			pending++
		}
		h.Release()
	}

	perf.Log(log)
	sum := out.GenerationSummary()
	log.Info("generation summary",
		"count", sum.Count,
		"mean_us", sum.Mean,
		"stddev_us", sum.StdDev,
		"p50_us", sum.P50,
		"p95_us", sum.P95,
	)
	log.Info("request outcomes", "ready", ready, "unreachable", unreachable, "pending", pending)
}

func scatterObstacles(g *grid.CostGrid, rng *rand.Rand, count int) {
	for i := 0; i < count; i++ {
		x := rng.Intn(g.Width())
		y := rng.Intn(g.Height())
		g.SetObstacle(grid.Region{
			MinX: x, MinY: y,
			MaxX: x + rng.Intn(4), MaxY: y + rng.Intn(4),
		}, true)
	}
}

func randomCell(g *grid.CostGrid, rng *rand.Rand) grid.Cell {
	return grid.Cell{X: rng.Intn(g.Width()), Y: rng.Intn(g.Height())}
}
