package workload

import (
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// minGap keeps consecutive generated items from sharing a timestamp.
const minGap = 1e-6

// ArrivalSampler generates gaps between consecutive comments.
type ArrivalSampler interface {
	// SampleGap returns the next inter-arrival gap in seconds. Always >= minGap.
	SampleGap(rng *rand.Rand) float64
}

// PoissonSampler generates exponentially-distributed gaps (CV=1).
type PoissonSampler struct {
	rate float64 // items per second
}

func (s *PoissonSampler) SampleGap(rng *rand.Rand) float64 {
	return math.Max(rng.ExpFloat64()/s.rate, minGap)
}

// GammaSampler generates Gamma-distributed gaps. CV > 1 gives the clustered
// arrivals of a live chat reacting to on-screen events.
type GammaSampler struct {
	shape float64 // 1/CV²
	scale float64 // CV²/rate
}

func (s *GammaSampler) SampleGap(rng *rand.Rand) float64 {
	return math.Max(gammaRand(rng, s.shape, s.scale), minGap)
}

// gammaRand samples Gamma(shape, scale) with Marsaglia-Tsang; shapes below 1
// are boosted by one and corrected with U^(1/shape).
func gammaRand(rng *rand.Rand, shape, scale float64) float64 {
	if shape < 1 {
		u := rng.Float64()
		return gammaRand(rng, shape+1, scale) * math.Pow(u, 1/shape)
	}
	d := shape - 1.0/3.0
	c := 1 / math.Sqrt(9*d)
	for {
		var x, v float64
		for {
			x = rng.NormFloat64()
			v = 1 + c*x
			if v > 0 {
				break
			}
		}
		v = v * v * v
		u := rng.Float64()
		if u < 1-0.0331*(x*x)*(x*x) || math.Log(u) < 0.5*x*x+d*(1-v+math.Log(v)) {
			return d * v * scale
		}
	}
}

// NewArrivalSampler creates the sampler for process ("poisson" or "gamma")
// at rate items per second. cv only applies to gamma.
func NewArrivalSampler(process string, rate, cv float64) ArrivalSampler {
	if rate < 1e-9 {
		rate = 1e-9
	}
	switch process {
	case "", "poisson":
		return &PoissonSampler{rate: rate}
	case "gamma":
		if cv <= 0 {
			cv = 1
		}
		shape := 1 / (cv * cv)
		if shape < 0.01 {
			logrus.Warnf("gamma shape %.4f (CV=%.1f) is too small; using poisson", shape, cv)
			return &PoissonSampler{rate: rate}
		}
		return &GammaSampler{shape: shape, scale: cv * cv / rate}
	default:
		logrus.Warnf("unknown arrival process %q; using poisson", process)
		return &PoissonSampler{rate: rate}
	}
}
