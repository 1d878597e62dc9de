// Package rng supplies the two random primitives the force kernel consumes,
// uniform(0,1) and standard normal, as reproducible keyed streams.
//
// Draw order discipline: the pair loop reseeds one stream per owned particle
// i from (seed, step, i) and draws for every neighbor of i in list order; the
// stochastic diffusion solver reseeds one stream per species from
// (seed, step, species). Results are therefore independent of how work is
// split across goroutines.
package rng

import "math/rand/v2"

// Source is the random source consumed by the force kernel and the solver.
type Source interface {
	// Uniform returns a value in the open interval (0, 1).
	Uniform() float64
	// Normal returns a standard normal deviate.
	Normal() float64
}

// Domain tags keep the pair, solver and initial condition streams disjoint
// for the same step.
const (
	DomainPair    uint64 = 0x7061697200000000
	DomainSpecies uint64 = 0x7373610000000000
	DomainInit    uint64 = 0x696e697400000000
)

// Stream is a PCG-backed Source that can be reseeded without allocation.
type Stream struct {
	pcg *rand.PCG
	r   *rand.Rand
}

// NewStream returns a stream seeded from (seed, key).
func NewStream(seed, key uint64) *Stream {
	pcg := rand.NewPCG(seed, Mix(key))
	return &Stream{pcg: pcg, r: rand.New(pcg)}
}

// Reseed restarts the stream at (seed, key).
func (s *Stream) Reseed(seed, key uint64) {
	s.pcg.Seed(seed, Mix(key))
}

// Uniform returns a value in (0, 1).
func (s *Stream) Uniform() float64 {
	for {
		if u := s.r.Float64(); u > 0 {
			return u
		}
	}
}

// Normal returns a standard normal deviate.
func (s *Stream) Normal() float64 {
	return s.r.NormFloat64()
}

// Key combines a step number, a domain tag and an index into one stream key.
func Key(step, domain, index uint64) uint64 {
	return Mix(Mix(step^domain) + index)
}

// Mix is the splitmix64 finalizer.
func Mix(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
