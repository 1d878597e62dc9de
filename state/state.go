// Package state holds the per-particle arrays the force kernel reads and the
// per-step accumulators it writes. The layout is struct-of-arrays, like the
// snapshot buffers of the host world.
package state

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Store is the particle container seen by the force kernel. Indices below
// NLocal are owned particles; indices in [NLocal, N) are ghost copies whose
// reactions are only applied when Newton bookkeeping is enabled.
type Store struct {
	N      int
	NLocal int

	X    []r3.Vec
	V    []r3.Vec
	Type []int // 1-based
	Rho  []float64
	E    []float64
	C    [][]float64 // continuous concentrations [i][k]
	Cd   [][]int     // discrete molecule counts [i][s]

	// Mass is indexed by type; index 0 is unused.
	Mass []float64

	// Accumulators, reset by the host before every force call.
	F    []r3.Vec
	DRho []float64
	DE   []float64
	Q    [][]float64 // continuous species flux
	Qd   [][]int     // discrete species flux

	NumContinuous int
	NumDiscrete   int

	cBuf, qBuf   []float64
	cdBuf, qdBuf []int
}

// New allocates a store for n particles, all local.
func New(n, ntypes, nContinuous, nDiscrete int) *Store {
	s := &Store{
		Mass:          make([]float64, ntypes+1),
		NumContinuous: nContinuous,
		NumDiscrete:   nDiscrete,
	}
	s.Resize(n)
	return s
}

// Resize sets the particle count to n, reusing existing buffers when they are
// large enough. All particles are marked local; contents are not preserved.
func (s *Store) Resize(n int) {
	s.N, s.NLocal = n, n
	s.X = resize(s.X, n)
	s.V = resize(s.V, n)
	s.Type = resize(s.Type, n)
	s.Rho = resize(s.Rho, n)
	s.E = resize(s.E, n)
	s.F = resize(s.F, n)
	s.DRho = resize(s.DRho, n)
	s.DE = resize(s.DE, n)

	s.cBuf = resize(s.cBuf, n*s.NumContinuous)
	s.qBuf = resize(s.qBuf, n*s.NumContinuous)
	s.cdBuf = resize(s.cdBuf, n*s.NumDiscrete)
	s.qdBuf = resize(s.qdBuf, n*s.NumDiscrete)
	s.C = rows(s.C, s.cBuf, n, s.NumContinuous)
	s.Q = rows(s.Q, s.qBuf, n, s.NumContinuous)
	s.Cd = rows(s.Cd, s.cdBuf, n, s.NumDiscrete)
	s.Qd = rows(s.Qd, s.qdBuf, n, s.NumDiscrete)
}

// ResetAccumulators zeroes force, density rate, energy rate and both flux
// accumulators.
func (s *Store) ResetAccumulators() {
	clear(s.F)
	clear(s.DRho)
	clear(s.DE)
	clear(s.qBuf)
	clear(s.qdBuf)
}

// Count returns the current molecule count of discrete species sp at particle
// i, including moves already committed to the flux accumulator this step.
func (s *Store) Count(i, sp int) int {
	return s.Cd[i][sp] + s.Qd[i][sp]
}

// Validate checks that every particle has a known type and a positive density.
func (s *Store) Validate(ntypes int) error {
	if len(s.Mass) != ntypes+1 {
		return fmt.Errorf("state: mass table has %d entries, want %d", len(s.Mass)-1, ntypes)
	}
	if s.NLocal > s.N {
		return fmt.Errorf("state: nlocal %d exceeds n %d", s.NLocal, s.N)
	}
	for i := 0; i < s.N; i++ {
		if t := s.Type[i]; t < 1 || t > ntypes {
			return fmt.Errorf("state: particle %d has type %d outside 1..%d", i, t, ntypes)
		}
		if s.Rho[i] <= 0 {
			return fmt.Errorf("state: particle %d has non-positive density %g", i, s.Rho[i])
		}
	}
	return nil
}

func resize[T any](b []T, n int) []T {
	if cap(b) < n {
		return make([]T, n)
	}
	b = b[:n]
	clear(b)
	return b
}

func rows[T any](dst [][]T, buf []T, n, width int) [][]T {
	if cap(dst) < n {
		dst = make([][]T, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = buf[i*width : (i+1)*width : (i+1)*width]
	}
	return dst
}
