// Package config loads pairclick settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/cpu"
	"gopkg.in/yaml.v3"

	"github.com/ayusman/pairclick/internal/clicker"
	"github.com/ayusman/pairclick/internal/coords"
	"github.com/ayusman/pairclick/internal/detector"
	"github.com/ayusman/pairclick/internal/engine"
	"github.com/ayusman/pairclick/internal/vision"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the full application configuration.
type Config struct {
	Engine   EngineConfig   `yaml:"engine"`
	Grid     GridConfig     `yaml:"grid"`
	Template TemplateConfig `yaml:"template"`
	Coords   CoordsConfig   `yaml:"coords"`
	Clicker  ClickerConfig  `yaml:"clicker"`
	Capture  CaptureConfig  `yaml:"capture"`
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
}

// EngineConfig selects the strategy and pairing threshold.
type EngineConfig struct {
	Mode      string  `yaml:"mode"`      // "grid" or "template"
	Threshold float64 `yaml:"threshold"` // 0 picks the mode's default
	Targeting string  `yaml:"targeting"` // "cell" or "pixel"
}

// GridConfig describes a grid-mode board.
type GridConfig struct {
	Rows    int     `yaml:"rows"`
	Cols    int     `yaml:"cols"`
	MarginX float64 `yaml:"margin_x"`
	MarginY float64 `yaml:"margin_y"`
	Bins    int     `yaml:"bins"`
}

// TemplateConfig tunes template-mode detection.
type TemplateConfig struct {
	Dir            string  `yaml:"dir"`
	Threshold      float64 `yaml:"threshold"`
	MaxPerTemplate int     `yaml:"max_per_template"`
	DedupTolerance int     `yaml:"dedup_tolerance"`
	Workers        int     `yaml:"workers"` // 0 uses the logical CPU count
	RowTolerance   float64 `yaml:"row_tolerance"`
	ExpectedRows   int     `yaml:"expected_rows"`
	ExpectedCols   int     `yaml:"expected_cols"`
}

// CoordsConfig places the board on screen.
type CoordsConfig struct {
	Anchor      coords.Anchor  `yaml:"anchor"`
	Spacing     coords.Spacing `yaml:"spacing"`
	Origin      coords.Point   `yaml:"origin"`
	OffsetsFile string         `yaml:"offsets_file"`
	// AnchorScreen is the physical position of the run button, used with
	// OffsetsFile to derive Anchor.Reference.
	AnchorScreen coords.Point `yaml:"anchor_screen"`
}

// ClickerConfig selects the click plugin.
type ClickerConfig struct {
	PluginDir string         `yaml:"plugin_dir"`
	Plugin    string         `yaml:"plugin"`
	Delays    clicker.Delays `yaml:"delays"`
	DryRun    bool           `yaml:"dry_run"`
}

// CaptureConfig says where screenshots come from.
type CaptureConfig struct {
	Path        string `yaml:"path"` // file or directory
	MaxDistance int    `yaml:"max_distance"`
	IntervalMs  int    `yaml:"interval_ms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path     string `yaml:"path"`
	KeepDays int    `yaml:"keep_days"` // solve history retention; 0 keeps all
}

// Default returns the configuration used when no file is given.
func Default() Config {
	v := vision.DefaultConfig()
	d := detector.DefaultConfig()
	return Config{
		Engine: EngineConfig{
			Mode:      string(engine.ModeGrid),
			Targeting: string(engine.TargetCell),
		},
		Grid: GridConfig{
			Rows:    5,
			Cols:    6,
			MarginX: v.MarginX,
			MarginY: v.MarginY,
			Bins:    v.Bins,
		},
		Template: TemplateConfig{
			Threshold:      d.Threshold,
			MaxPerTemplate: d.MaxPerTemplate,
			DedupTolerance: d.DedupTolerance,
			RowTolerance:   30,
		},
		Coords: CoordsConfig{
			Anchor:  coords.Anchor{Scale: 1},
			Spacing: coords.DefaultSpacing(),
		},
		Clicker: ClickerConfig{
			PluginDir: "plugins",
			Delays:    clicker.DefaultDelays(),
		},
		Capture: CaptureConfig{
			MaxDistance: 4,
			IntervalMs:  1000,
		},
		Server: ServerConfig{Addr: "127.0.0.1:8420"},
		Store:  StoreConfig{Path: "pairclick.db"},
	}
}

// Load reads path over Default. An empty path returns Default.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes cfg to path as YAML.
func Save(cfg Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate reports the first setting that cannot work.
func (c Config) Validate() error {
	switch engine.Mode(c.Engine.Mode) {
	case engine.ModeGrid:
		if c.Grid.Rows <= 0 || c.Grid.Cols <= 0 {
			return fmt.Errorf("%w: grid needs rows and cols, got %dx%d", ErrInvalid, c.Grid.Rows, c.Grid.Cols)
		}
	case engine.ModeTemplate:
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalid, c.Engine.Mode)
	}
	switch engine.Targeting(c.Engine.Targeting) {
	case engine.TargetCell, engine.TargetPixel:
	default:
		return fmt.Errorf("%w: unknown targeting %q", ErrInvalid, c.Engine.Targeting)
	}
	if c.Engine.Threshold < 0 || c.Engine.Threshold > 1 {
		return fmt.Errorf("%w: threshold %v outside [0,1]", ErrInvalid, c.Engine.Threshold)
	}
	if c.Coords.Anchor.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive", ErrInvalid)
	}
	return nil
}

// Threshold returns the pairing threshold, defaulting per mode.
func (c Config) Threshold() float64 {
	if c.Engine.Threshold > 0 {
		return c.Engine.Threshold
	}
	if engine.Mode(c.Engine.Mode) == engine.ModeTemplate {
		return c.Template.Threshold
	}
	return engine.DefaultConfig().Threshold
}

// Vision returns the feature extractor settings.
func (c Config) Vision() vision.Config {
	return vision.Config{MarginX: c.Grid.MarginX, MarginY: c.Grid.MarginY, Bins: c.Grid.Bins}
}

// Detector returns the template detector settings, filling Workers from
// the host CPU count when unset.
func (c Config) Detector() detector.Config {
	workers := c.Template.Workers
	if workers <= 0 {
		if n, err := cpu.Counts(true); err == nil && n > 0 {
			workers = n
		}
	}
	return detector.Config{
		Threshold:      c.Template.Threshold,
		MaxPerTemplate: c.Template.MaxPerTemplate,
		DedupTolerance: c.Template.DedupTolerance,
		Workers:        workers,
	}
}

// EngineOptions returns the engine settings.
func (c Config) EngineOptions() engine.Config {
	return engine.Config{
		Threshold: c.Threshold(),
		Targeting: engine.Targeting(c.Engine.Targeting),
		Origin:    c.Coords.Origin,
	}
}
