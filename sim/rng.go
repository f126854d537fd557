package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// SimulationKey uniquely identifies a reproducible simulation run. Two runs
// with the same key and identical configuration MUST produce bit-for-bit
// identical spike sequences and lane contents.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// SubsystemGenerator returns the RNG subsystem name for the i-th stochastic
// event generator attached to cell gid. Each generator draws from its own
// stream so concurrent Events calls share no mutable state.
func SubsystemGenerator(gid GID, i int) string {
	return fmt.Sprintf("generator_%d_%d", gid, i)
}

// PartitionedRNG provides deterministic, isolated RNG streams per subsystem.
// The derived seed for a subsystem is masterSeed XOR fnv1a64(name).
//
// Thread-safety: ForSubsystem must be called from a single goroutine (the
// construction path); the returned streams are then owned by their
// subsystems.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named
// subsystem. The same name always returns the same *rand.Rand instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.SeedFor(name)))
	p.subsystems[name] = rng
	return rng
}

// SeedFor returns the derived seed for the named subsystem without
// materializing a stream. Generators use it to reseed on Reset.
func (p *PartitionedRNG) SeedFor(name string) int64 {
	return int64(p.key) ^ fnv1a64(name)
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
