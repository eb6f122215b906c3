package workload

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/danmaku-sim/danmaku-sim/danmaku"
)

// GeneratorConfig describes a synthetic comment stream.
type GeneratorConfig struct {
	Rate    float64 `yaml:"rate"`    // mean items per second
	Start   float64 `yaml:"start"`   // first possible timestamp, seconds
	Horizon float64 `yaml:"horizon"` // last possible timestamp, seconds
	Process string  `yaml:"process"` // "poisson" (default) or "gamma"
	CV      float64 `yaml:"cv"`      // gamma coefficient of variation

	// KindMix weights kinds by name ("transit", "top", "bottom"). Empty means
	// transit only.
	KindMix map[string]float64 `yaml:"kind_mix"`
	// ForcedFraction is the probability an item is submitted forced.
	ForcedFraction float64 `yaml:"forced_fraction"`
	// Bursts multiply the rate inside their window.
	Bursts []Burst `yaml:"bursts"`
	// Texts are drawn uniformly. Empty uses a numbered placeholder.
	Texts    []string `yaml:"texts"`
	MaxItems int      `yaml:"max_items"` // 0 = unlimited
}

// Burst raises the arrival rate by Multiplier during [At, At+Duration).
type Burst struct {
	At         float64 `yaml:"at"`
	Duration   float64 `yaml:"duration"`
	Multiplier float64 `yaml:"multiplier"`
}

// Validate checks the generator settings.
func (c GeneratorConfig) Validate() error {
	if c.Rate <= 0 {
		return fmt.Errorf("rate must be positive, got %f", c.Rate)
	}
	if c.Horizon <= c.Start {
		return fmt.Errorf("horizon %f must be after start %f", c.Horizon, c.Start)
	}
	if c.ForcedFraction < 0 || c.ForcedFraction > 1 {
		return fmt.Errorf("forced_fraction must be in [0,1], got %f", c.ForcedFraction)
	}
	total := 0.0
	for name, w := range c.KindMix {
		if _, err := danmaku.ParseKind(name); err != nil {
			return err
		}
		if w < 0 {
			return fmt.Errorf("kind_mix weight for %q must be non-negative", name)
		}
		total += w
	}
	if len(c.KindMix) > 0 && total == 0 {
		return errors.New("kind_mix weights sum to zero")
	}
	for i, b := range c.Bursts {
		if b.Duration <= 0 || b.Multiplier <= 0 {
			return fmt.Errorf("burst %d: duration and multiplier must be positive", i)
		}
	}
	return nil
}

// kindWeight is one entry of the cumulative kind distribution.
type kindWeight struct {
	kind       danmaku.Kind
	cumulative float64
}

// Generate produces a time-ordered synthetic stream. The same rng state gives
// the same entries, ids included.
func Generate(cfg GeneratorConfig, rng *rand.Rand) ([]Entry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	kinds := cumulativeKinds(cfg.KindMix)
	sampler := NewArrivalSampler(cfg.Process, cfg.Rate, cfg.CV)

	var entries []Entry
	t := cfg.Start
	for {
		gap := sampler.SampleGap(rng)
		if m := burstMultiplier(cfg.Bursts, t); m != 1 {
			gap /= m
		}
		t += gap
		if t > cfg.Horizon {
			break
		}
		if cfg.MaxItems > 0 && len(entries) >= cfg.MaxItems {
			break
		}
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, fmt.Errorf("generating item id: %w", err)
		}
		n := len(entries)
		text := fmt.Sprintf("comment #%d", n+1)
		if len(cfg.Texts) > 0 {
			text = cfg.Texts[rng.Intn(len(cfg.Texts))]
		}
		entries = append(entries, Entry{
			Item: danmaku.Item{
				ID:   id.String(),
				Time: t,
				Kind: pickKind(kinds, rng),
				Text: text,
			},
			Forced: cfg.ForcedFraction > 0 && rng.Float64() < cfg.ForcedFraction,
		})
	}
	logrus.Debugf("generated %d items over [%.2fs, %.2fs]", len(entries), cfg.Start, cfg.Horizon)
	return entries, nil
}

func cumulativeKinds(mix map[string]float64) []kindWeight {
	if len(mix) == 0 {
		return []kindWeight{{kind: danmaku.KindTransit, cumulative: 1}}
	}
	// Sum weights per kind so aliases ("lr" and "transit") combine.
	perKind := make(map[danmaku.Kind]float64)
	total := 0.0
	for name, w := range mix {
		k, _ := danmaku.ParseKind(name)
		perKind[k] += w
		total += w
	}
	// Fixed order keeps generation independent of map iteration.
	out := make([]kindWeight, 0, len(perKind))
	acc := 0.0
	for _, k := range danmaku.Kinds {
		w, ok := perKind[k]
		if !ok || w == 0 {
			continue
		}
		acc += w / total
		out = append(out, kindWeight{kind: k, cumulative: acc})
	}
	return out
}

func pickKind(kinds []kindWeight, rng *rand.Rand) danmaku.Kind {
	if len(kinds) == 1 {
		return kinds[0].kind
	}
	u := rng.Float64()
	i := sort.Search(len(kinds), func(i int) bool { return kinds[i].cumulative > u })
	if i == len(kinds) {
		i = len(kinds) - 1
	}
	return kinds[i].kind
}

func burstMultiplier(bursts []Burst, t float64) float64 {
	m := 1.0
	for _, b := range bursts {
		if t >= b.At && t < b.At+b.Duration {
			m *= b.Multiplier
		}
	}
	return m
}
