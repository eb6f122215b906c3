package danmaku

import (
	"math/rand"
	"testing"
)

func TestPartitionedRNG_DeterministicDerivation(t *testing.T) {
	// Same seed and subsystem produce the same sequence
	rng1 := NewPartitionedRNG(42)
	rng2 := NewPartitionedRNG(42)

	for i := 0; i < 5; i++ {
		a := rng1.ForSubsystem(SubsystemLanes).Intn(1000)
		b := rng2.ForSubsystem(SubsystemLanes).Intn(1000)
		if a != b {
			t.Errorf("draw %d: got %d and %d, want identical", i, a, b)
		}
	}
}

func TestPartitionedRNG_SubsystemIsolation(t *testing.T) {
	// Drawing from workload does not shift the lanes sequence
	clean := NewPartitionedRNG(42)
	noisy := NewPartitionedRNG(42)
	for i := 0; i < 100; i++ {
		noisy.ForSubsystem(SubsystemWorkload).Float64()
	}

	for i := 0; i < 5; i++ {
		a := clean.ForSubsystem(SubsystemLanes).Int63()
		b := noisy.ForSubsystem(SubsystemLanes).Int63()
		if a != b {
			t.Errorf("draw %d: lanes sequence shifted by workload draws", i)
		}
	}
}

func TestPartitionedRNG_WorkloadUsesMasterSeed(t *testing.T) {
	got := NewPartitionedRNG(7).ForSubsystem(SubsystemWorkload).Int63()
	want := rand.New(rand.NewSource(7)).Int63()
	if got != want {
		t.Errorf("workload subsystem: got %d, want %d from the master seed", got, want)
	}
}

func TestPartitionedRNG_CachesInstance(t *testing.T) {
	p := NewPartitionedRNG(1)
	if p.ForSubsystem(SubsystemLanes) != p.ForSubsystem(SubsystemLanes) {
		t.Error("ForSubsystem returned a different *rand.Rand for the same name")
	}
	if p.Seed() != 1 {
		t.Errorf("Seed() = %d, want 1", p.Seed())
	}
}
