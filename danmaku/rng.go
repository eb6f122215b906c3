package danmaku

import (
	"hash/fnv"
	"math/rand"
)

const (
	// SubsystemLanes is the RNG subsystem for forced-lane selection.
	SubsystemLanes = "lanes"

	// SubsystemWorkload is the RNG subsystem for synthetic item generation.
	// Uses the master seed directly so --seed reproduces generated files.
	SubsystemWorkload = "workload"
)

// PartitionedRNG hands out deterministic, isolated RNGs per subsystem so
// adding draws in one place never shifts another's sequence.
//
// Derivation: SubsystemWorkload uses the seed directly; every other subsystem
// uses seed XOR fnv1a64(name).
//
// Thread-safety: NOT thread-safe. Each returned *rand.Rand must stay on a
// single goroutine (lanes live on the serialized runner).
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns the cached RNG for name, creating it on first use.
// Never returns nil.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	derived := p.seed
	if name != SubsystemWorkload {
		derived = p.seed ^ fnv1a64(name)
	}
	rng := rand.New(rand.NewSource(derived))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the master seed.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
