package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
)

// engineFlags holds the CLI overrides for danmaku.Config.
//
// Precedence, lowest first: DefaultConfig, --config file, DANMAKU_* environment
// (serve only), explicitly set flags. A flag left at its default never
// overwrites a value from the file or the environment (cmd.Flags().Changed).
type engineFlags struct {
	configPath     string
	mode           string
	duration       float64
	tolerance      float64
	maxVisible     int
	lanes          int
	cellHeight     float64
	frameInterval  float64
	viewportWidth  float64
	viewportHeight float64
	seed           int64
}

func (f *engineFlags) register(c *cobra.Command, defaultMode danmaku.Mode) {
	d := danmaku.DefaultConfig()
	c.Flags().StringVar(&f.configPath, "config", "", "YAML engine configuration file")
	c.Flags().StringVar(&f.mode, "mode", string(defaultMode), "Source mode (batch, live)")
	c.Flags().Float64Var(&f.duration, "duration", d.Duration, "Seconds each item stays visible")
	c.Flags().Float64Var(&f.tolerance, "tolerance", d.Tolerance, "Seconds an item may wait for a lane; larger forward jumps count as a seek")
	c.Flags().IntVar(&f.maxVisible, "max-visible", d.MaxVisible, "Cap on simultaneously visible items (0 = unlimited)")
	c.Flags().IntVar(&f.lanes, "lanes", d.NumberOfLanes, "Lanes per kind (0 = derive from viewport height)")
	c.Flags().Float64Var(&f.cellHeight, "cell-height", d.CellHeight, "Lane height in pixels")
	c.Flags().Float64Var(&f.frameInterval, "frame-interval", d.FrameInterval, "Seconds between ticks")
	c.Flags().Float64Var(&f.viewportWidth, "width", d.ViewportWidth, "Viewport width in pixels")
	c.Flags().Float64Var(&f.viewportHeight, "height", d.ViewportHeight, "Viewport height in pixels")
	c.Flags().Int64Var(&f.seed, "seed", d.Seed, "Seed for forced-lane selection and generated workloads")
}

// resolve builds the engine configuration for c. withEnv applies DANMAKU_*
// variables between the file and the flags.
func (f *engineFlags) resolve(c *cobra.Command, withEnv bool) (danmaku.Config, error) {
	cfg := danmaku.DefaultConfig()
	if f.configPath != "" {
		loaded, err := danmaku.LoadConfig(f.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
		logrus.Infof("loaded engine config from %s", f.configPath)
	}
	if !c.Flags().Changed("mode") && f.configPath == "" {
		cfg.Mode = danmaku.Mode(f.mode)
	}
	if withEnv {
		if err := applyEnv(&cfg); err != nil {
			return cfg, err
		}
	}

	flags := c.Flags()
	if flags.Changed("mode") {
		cfg.Mode = danmaku.Mode(f.mode)
	}
	if flags.Changed("duration") {
		cfg.Duration = f.duration
	}
	if flags.Changed("tolerance") {
		cfg.Tolerance = f.tolerance
	}
	if flags.Changed("max-visible") {
		cfg.MaxVisible = f.maxVisible
	}
	if flags.Changed("lanes") {
		cfg.NumberOfLanes = f.lanes
	}
	if flags.Changed("cell-height") {
		cfg.CellHeight = f.cellHeight
	}
	if flags.Changed("frame-interval") {
		cfg.FrameInterval = f.frameInterval
	}
	if flags.Changed("width") {
		cfg.ViewportWidth = f.viewportWidth
	}
	if flags.Changed("height") {
		cfg.ViewportHeight = f.viewportHeight
	}
	if flags.Changed("seed") {
		cfg.Seed = f.seed
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid engine config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv reads KEY=VALUE pairs from path into the environment. Variables
// already set win. A missing file is not an error.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	logrus.Infof("loaded environment from %s", path)
	return nil
}

// getEnv returns the value of key, or fallback if unset or empty.
func getEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// applyEnv overrides cfg from DANMAKU_* variables. Malformed numbers are
// errors rather than silently ignored.
func applyEnv(cfg *danmaku.Config) error {
	if s := os.Getenv("DANMAKU_MODE"); s != "" {
		cfg.Mode = danmaku.Mode(s)
	}
	floats := []struct {
		key string
		dst *float64
	}{
		{"DANMAKU_DURATION", &cfg.Duration},
		{"DANMAKU_TOLERANCE", &cfg.Tolerance},
		{"DANMAKU_CELL_HEIGHT", &cfg.CellHeight},
		{"DANMAKU_FRAME_INTERVAL", &cfg.FrameInterval},
		{"DANMAKU_VIEWPORT_WIDTH", &cfg.ViewportWidth},
		{"DANMAKU_VIEWPORT_HEIGHT", &cfg.ViewportHeight},
	}
	for _, f := range floats {
		s := os.Getenv(f.key)
		if s == "" {
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = v
	}
	ints := []struct {
		key string
		dst *int
	}{
		{"DANMAKU_MAX_VISIBLE", &cfg.MaxVisible},
		{"DANMAKU_LANES", &cfg.NumberOfLanes},
	}
	for _, f := range ints {
		s := os.Getenv(f.key)
		if s == "" {
			continue
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("%s: %w", f.key, err)
		}
		*f.dst = v
	}
	if s := os.Getenv("DANMAKU_SEED"); s != "" {
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return fmt.Errorf("DANMAKU_SEED: %w", err)
		}
		cfg.Seed = v
	}
	return nil
}
