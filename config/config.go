// Package config provides configuration loading and access for the
// engine and its embedding tools.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all engine configuration parameters.
type Config struct {
	World      WorldConfig      `yaml:"world"`
	Cache      CacheConfig      `yaml:"cache"`
	Generation GenerationConfig `yaml:"generation"`
	Goals      GoalsConfig      `yaml:"goals"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// WorldConfig holds world bounds and grid resolution.
type WorldConfig struct {
	Width    float64 `yaml:"width"`     // World width in world units
	Height   float64 `yaml:"height"`    // World height in world units
	CellSize float64 `yaml:"cell_size"` // World units per grid cell
	OriginX  float64 `yaml:"origin_x"`
	OriginY  float64 `yaml:"origin_y"`
}

// CacheConfig holds field cache parameters.
type CacheConfig struct {
	Capacity int `yaml:"capacity"` // Max cached fields (live handles pin beyond this)
}

// GenerationConfig holds field generation parameters.
type GenerationConfig struct {
	CellBudget         int  `yaml:"cell_budget"`          // Integration cells processed per tick
	AllowCornerCutting bool `yaml:"allow_corner_cutting"` // Diagonals past blocked orthogonals
	Workers            int  `yaml:"workers"`              // Flow-pass goroutines (0 = GOMAXPROCS)
}

// GoalsConfig holds goal batching parameters.
type GoalsConfig struct {
	ClusterRadius int `yaml:"cluster_radius"` // Cells; nearby goals collapse into one field (0 = exact)
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	OutputDir  string `yaml:"output_dir"`  // CSV output directory ("" disables)
	PerfWindow int    `yaml:"perf_window"` // Ticks in the rolling perf window
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	CellsX   int     // Grid width in cells
	CellsY   int     // Grid height in cells
	WorldW32 float32 // World.Width as float32
	WorldH32 float32 // World.Height as float32
	Cell32   float32 // World.CellSize as float32
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded
// defaults if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

func (c *Config) validate() error {
	if c.World.Width <= 0 || c.World.Height <= 0 {
		return fmt.Errorf("config: world size %gx%g must be positive", c.World.Width, c.World.Height)
	}
	if c.World.CellSize <= 0 {
		return fmt.Errorf("config: cell size %g must be positive", c.World.CellSize)
	}
	if c.Cache.Capacity < 1 {
		return fmt.Errorf("config: cache capacity %d must be at least 1", c.Cache.Capacity)
	}
	if c.Generation.CellBudget < 1 {
		return fmt.Errorf("config: cell budget %d must be at least 1", c.Generation.CellBudget)
	}
	if c.Goals.ClusterRadius < 0 {
		return fmt.Errorf("config: cluster radius %d must not be negative", c.Goals.ClusterRadius)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.WorldW32 = float32(c.World.Width)
	c.Derived.WorldH32 = float32(c.World.Height)
	c.Derived.Cell32 = float32(c.World.CellSize)
	c.Derived.CellsX = int(c.World.Width/c.World.CellSize + 0.999999)
	c.Derived.CellsY = int(c.World.Height/c.World.CellSize + 0.999999)
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
