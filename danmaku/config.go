package danmaku

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// Mode selects the Source implementation.
type Mode string

const (
	// ModeBatch plays a pre-sorted, finite item list against a video clock.
	ModeBatch Mode = "batch"
	// ModeLive shows submitted items as soon as possible.
	ModeLive Mode = "live"
)

// validModes maps accepted mode strings. Empty defaults to batch.
var validModes = map[Mode]bool{
	ModeBatch: true,
	ModeLive:  true,
	"":        true,
}

// IsValidMode returns true if the given mode string is a recognized mode.
func IsValidMode(mode string) bool {
	return validModes[Mode(mode)]
}

// DefaultFrameInterval is the tick period in seconds (every 12th frame at 60Hz).
const DefaultFrameInterval = 0.2

// Config is read-only engine configuration, fixed at construction.
type Config struct {
	Duration      float64 `yaml:"duration"`        // seconds an item stays visible
	Tolerance     float64 `yaml:"tolerance"`       // max pending wait and max forward jump before a seek is assumed, seconds
	MaxVisible    int     `yaml:"max_visible"`     // cap on simultaneously visible items, <=0 unlimited
	NumberOfLanes int     `yaml:"number_of_lanes"` // lanes per kind, <=0 derives from viewport height
	CellHeight    float64 `yaml:"cell_height"`
	Mode          Mode    `yaml:"mode"`

	FrameInterval  float64 `yaml:"frame_interval"` // seconds per tick
	ViewportWidth  float64 `yaml:"viewport_width"`
	ViewportHeight float64 `yaml:"viewport_height"`
	Seed           int64   `yaml:"seed"` // forced-lane RNG seed
}

// DefaultConfig returns the settings a 1280x720 overlay typically starts from.
func DefaultConfig() Config {
	return Config{
		Duration:       5.0,
		Tolerance:      2.0,
		MaxVisible:     0,
		NumberOfLanes:  0,
		CellHeight:     30,
		Mode:           ModeBatch,
		FrameInterval:  DefaultFrameInterval,
		ViewportWidth:  1280,
		ViewportHeight: 720,
		Seed:           42,
	}
}

// Validate checks value ranges. A zero Duration is accepted here and rejected
// by Engine.Start, so a configuration can be built up before playback.
func (c Config) Validate() error {
	if !IsValidMode(string(c.Mode)) {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	if c.Duration < 0 {
		return fmt.Errorf("duration must be non-negative, got %f", c.Duration)
	}
	if c.Tolerance < 0 {
		return fmt.Errorf("tolerance must be non-negative, got %f", c.Tolerance)
	}
	if c.CellHeight <= 0 {
		return fmt.Errorf("cell_height must be positive, got %f", c.CellHeight)
	}
	if c.FrameInterval <= 0 {
		return fmt.Errorf("frame_interval must be positive, got %f", c.FrameInterval)
	}
	if c.ViewportWidth < 0 || c.ViewportHeight < 0 {
		return fmt.Errorf("viewport must be non-negative, got %fx%f", c.ViewportWidth, c.ViewportHeight)
	}
	return nil
}

// mode returns the configured mode with the empty default applied.
func (c Config) mode() Mode {
	if c.Mode == "" {
		return ModeBatch
	}
	return c.Mode
}

// ToleranceTicks converts Tolerance into a tick count, at least 1.
// A small epsilon keeps 0.6/0.2 from truncating to 2.
func (c Config) ToleranceTicks() int {
	n := int(math.Floor(c.Tolerance/c.FrameInterval + 1e-9))
	return max(n, 1)
}

// LoadConfig reads a YAML engine configuration. Fields missing from the file
// keep their DefaultConfig values; unknown fields are errors.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading engine config: %w", err)
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parsing engine config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid engine config %s: %w", path, err)
	}
	return cfg, nil
}
