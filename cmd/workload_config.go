package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
	"github.com/danmaku-sim/danmaku-sim/danmaku/workload"
)

// WorkloadConfig is the YAML layout of --workload-config.
type WorkloadConfig struct {
	Seed      *int64                   `yaml:"seed"`
	Generator workload.GeneratorConfig `yaml:"generator"`
}

// loadWorkloadConfig parses path with strict field checking so typos fail.
func loadWorkloadConfig(path string) (*WorkloadConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload config: %w", err)
	}
	var cfg WorkloadConfig
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing workload config %s: %w", path, err)
	}
	return &cfg, nil
}

// workloadFlags select where entries come from: an item file, a generator
// config file, or the generator flags.
type workloadFlags struct {
	itemsPath      string
	configPath     string
	rate           float64
	start          float64
	horizon        float64
	process        string
	cv             float64
	kindMix        []string
	forcedFraction float64
	maxItems       int
}

func (f *workloadFlags) register(c *cobra.Command, withItems bool) {
	if withItems {
		c.Flags().StringVar(&f.itemsPath, "items", "", "Item file (.yaml, .json, .csv); overrides the generator")
	}
	c.Flags().StringVar(&f.configPath, "workload-config", "", "YAML generator configuration")
	c.Flags().Float64Var(&f.rate, "rate", 10, "Generated comments per second")
	c.Flags().Float64Var(&f.start, "gen-start", 0, "First generated timestamp in seconds")
	c.Flags().Float64Var(&f.horizon, "gen-horizon", 60, "Last generated timestamp in seconds")
	c.Flags().StringVar(&f.process, "process", "poisson", "Arrival process (poisson, gamma)")
	c.Flags().Float64Var(&f.cv, "cv", 1, "Coefficient of variation for gamma arrivals")
	c.Flags().StringSliceVar(&f.kindMix, "kind-mix", nil, "Kind weights, e.g. transit=3,top=1,bottom=1")
	c.Flags().Float64Var(&f.forcedFraction, "forced-fraction", 0, "Fraction of generated items submitted forced")
	c.Flags().IntVar(&f.maxItems, "max-items", 0, "Cap on generated items (0 = unlimited)")
}

// generatorConfig merges the config file, if any, with explicitly set flags.
// The seed comes from --seed when set, else the file, else seed.
func (f *workloadFlags) generatorConfig(c *cobra.Command, seed int64) (workload.GeneratorConfig, int64, error) {
	gen := workload.GeneratorConfig{
		Rate:           f.rate,
		Start:          f.start,
		Horizon:        f.horizon,
		Process:        f.process,
		CV:             f.cv,
		ForcedFraction: f.forcedFraction,
		MaxItems:       f.maxItems,
	}
	mix, err := parseKindMix(f.kindMix)
	if err != nil {
		return gen, seed, err
	}
	gen.KindMix = mix
	if f.configPath == "" {
		return gen, seed, nil
	}

	file, err := loadWorkloadConfig(f.configPath)
	if err != nil {
		return gen, seed, err
	}
	fromFile := file.Generator
	flags := c.Flags()
	if flags.Changed("rate") {
		fromFile.Rate = f.rate
	}
	if flags.Changed("gen-start") {
		fromFile.Start = f.start
	}
	if flags.Changed("gen-horizon") {
		fromFile.Horizon = f.horizon
	}
	if flags.Changed("process") {
		fromFile.Process = f.process
	}
	if flags.Changed("cv") {
		fromFile.CV = f.cv
	}
	if flags.Changed("kind-mix") {
		fromFile.KindMix = mix
	}
	if flags.Changed("forced-fraction") {
		fromFile.ForcedFraction = f.forcedFraction
	}
	if flags.Changed("max-items") {
		fromFile.MaxItems = f.maxItems
	}
	if file.Seed != nil && !flags.Changed("seed") {
		seed = *file.Seed
	}
	return fromFile, seed, nil
}

// entries loads the item file or generates a workload with the workload RNG
// derived from seed.
func (f *workloadFlags) entries(c *cobra.Command, seed int64) ([]workload.Entry, error) {
	if f.itemsPath != "" {
		entries, err := workload.Load(f.itemsPath)
		if err != nil {
			return nil, err
		}
		logrus.Infof("loaded %d items from %s", len(entries), f.itemsPath)
		return entries, nil
	}
	gen, seed, err := f.generatorConfig(c, seed)
	if err != nil {
		return nil, err
	}
	rng := danmaku.NewPartitionedRNG(seed).ForSubsystem(danmaku.SubsystemWorkload)
	entries, err := workload.Generate(gen, rng)
	if err != nil {
		return nil, err
	}
	logrus.Infof("generated %d items (seed %d)", len(entries), seed)
	return entries, nil
}

// parseKindMix parses name=weight pairs.
func parseKindMix(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	mix := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("kind mix entry %q: want name=weight", p)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("kind mix entry %q: %w", p, err)
		}
		mix[strings.TrimSpace(name)] += w
	}
	return mix, nil
}
