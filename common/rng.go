package common

import "math/rand/v2"

// RNG is the only source of randomness a simulation may use. Two RNGs built
// from the same seed produce the same sequence, and Clone forks the sequence
// at its current position.
type RNG struct {
	src *rand.PCG
	r   *rand.Rand
}

const seedMix = 0x9e3779b97f4a7c15

func NewRNG(seed uint64) *RNG {
	src := rand.NewPCG(seed, seed^seedMix)
	return &RNG{src: src, r: rand.New(src)}
}

// Float64 returns a value in [0, 1).
func (g *RNG) Float64() float64 {
	return g.r.Float64()
}

// Signed returns a value in [-1, 1).
func (g *RNG) Signed() float64 {
	return g.r.Float64()*2 - 1
}

// Range returns a value in [lo, hi).
func (g *RNG) Range(lo, hi float64) float64 {
	return lo + g.r.Float64()*(hi-lo)
}

func (g *RNG) Clone() *RNG {
	src := *g.src
	return &RNG{src: &src, r: rand.New(&src)}
}
