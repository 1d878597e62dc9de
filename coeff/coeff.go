// Package coeff holds the per-type and per-type-pair interaction coefficients.
//
// Types are numbered from 1 as in the input decks. A Table is filled with Set,
// then Finalize checks that every pair was configured and mirrors (i,j) onto
// (j,i). Nothing can be read from a Table before Finalize succeeds.
package coeff

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pthm-cable/tsdpd/eos"
)

var (
	// ErrMissingPair is returned by Finalize when a type pair was never set.
	ErrMissingPair = errors.New("coeff: pair coefficients not set")
	// ErrMissingType is returned when a type interacts but its single
	// particle properties were never set.
	ErrMissingType = errors.New("coeff: type properties not set")
	// ErrBadRange is returned for an unparseable or out-of-range type range.
	ErrBadRange = errors.New("coeff: invalid type range")
	// ErrBadEntry is returned for inconsistent coefficient values.
	ErrBadEntry = errors.New("coeff: invalid coefficients")
	// ErrNotFinalized is returned when a Table is used before Finalize.
	ErrNotFinalized = errors.New("coeff: table not finalized")
)

// Entry is one coefficient line: the single particle properties applied to
// the first type range and the pair properties applied to every pair.
type Entry struct {
	Rho0         float64   `yaml:"rho0"`
	SoundSpeed   float64   `yaml:"sound_speed"`
	Viscosity    float64   `yaml:"viscosity"`
	Cut          float64   `yaml:"cut"`
	CutTransport float64   `yaml:"cut_transport"`
	HeatAlpha    float64   `yaml:"heat_alpha"`
	Kappa        []float64 `yaml:"kappa"`
}

// TypeProps are the single particle properties of one type.
type TypeProps struct {
	Rho0        float64
	SoundSpeed  float64
	B           float64 // Tait stiffness, derived from Rho0 and SoundSpeed
	Temperature float64 // optional; 0 means use the particle internal energy
	set         bool
}

// Pair holds the coefficients of one ordered type pair.
type Pair struct {
	Cut          float64
	CutSq        float64
	CutTransport float64
	Viscosity    float64
	HeatAlpha    float64
	Kappa        []float64 // continuous species first, then discrete species
	set          bool
}

// Table is the explicitly owned coefficient table for one run.
type Table struct {
	ntypes      int
	nContinuous int
	nDiscrete   int
	types       []TypeProps // index 0 unused
	pairs       [][]Pair    // [i][j], index 0 unused
	finalized   bool
}

// NewTable allocates a table for ntypes particle types and the given number
// of continuously and discretely tracked species.
func NewTable(ntypes, nContinuous, nDiscrete int) *Table {
	t := &Table{
		ntypes:      ntypes,
		nContinuous: nContinuous,
		nDiscrete:   nDiscrete,
		types:       make([]TypeProps, ntypes+1),
		pairs:       make([][]Pair, ntypes+1),
	}
	for i := range t.pairs {
		t.pairs[i] = make([]Pair, ntypes+1)
	}
	return t
}

// NumTypes returns the number of particle types.
func (t *Table) NumTypes() int { return t.ntypes }

// NumContinuous returns the number of continuously tracked species.
func (t *Table) NumContinuous() int { return t.nContinuous }

// NumDiscrete returns the number of discretely tracked species.
func (t *Table) NumDiscrete() int { return t.nDiscrete }

// NumSpecies returns the total number of diffusion coefficients per pair.
func (t *Table) NumSpecies() int { return t.nContinuous + t.nDiscrete }

// Finalized reports whether Finalize has succeeded since the last Set.
func (t *Table) Finalized() bool { return t.finalized }

// Set applies e to every type pair (i,j) with ilo <= i <= ihi and
// max(jlo,i) <= j <= jhi. The single particle properties of e are assigned to
// every type i in [ilo, ihi]. Setting the same values twice is a no-op.
func (t *Table) Set(ilo, ihi, jlo, jhi int, e Entry) error {
	if err := t.checkRange(ilo, ihi); err != nil {
		return err
	}
	if err := t.checkRange(jlo, jhi); err != nil {
		return err
	}
	if len(e.Kappa) != t.NumSpecies() {
		return fmt.Errorf("%w: got %d diffusion coefficients, want %d",
			ErrBadEntry, len(e.Kappa), t.NumSpecies())
	}
	if e.Rho0 <= 0 || e.SoundSpeed < 0 || e.Cut <= 0 {
		return fmt.Errorf("%w: rho0=%g sound_speed=%g cut=%g", ErrBadEntry, e.Rho0, e.SoundSpeed, e.Cut)
	}
	if e.CutTransport < 0 || e.CutTransport > e.Cut {
		return fmt.Errorf("%w: cut_transport=%g must be in [0, cut=%g]", ErrBadEntry, e.CutTransport, e.Cut)
	}
	if e.Viscosity < 0 || e.HeatAlpha < 0 {
		return fmt.Errorf("%w: viscosity=%g heat_alpha=%g must not be negative", ErrBadEntry, e.Viscosity, e.HeatAlpha)
	}
	for k, kappa := range e.Kappa {
		if kappa < 0 {
			return fmt.Errorf("%w: negative diffusion coefficient %g for species %d", ErrBadEntry, kappa, k)
		}
	}

	count := 0
	for i := ilo; i <= ihi; i++ {
		tp := &t.types[i]
		tp.Rho0 = e.Rho0
		tp.SoundSpeed = e.SoundSpeed
		tp.B = eos.Stiffness(e.Rho0, e.SoundSpeed)
		tp.set = true
		for j := max(jlo, i); j <= jhi; j++ {
			p := &t.pairs[i][j]
			p.Cut = e.Cut
			p.CutSq = e.Cut * e.Cut
			p.CutTransport = e.CutTransport
			p.Viscosity = e.Viscosity
			p.HeatAlpha = e.HeatAlpha
			p.Kappa = append(p.Kappa[:0], e.Kappa...)
			p.set = true
			count++
		}
	}
	if count == 0 {
		return fmt.Errorf("%w: no pairs in %d*%d %d*%d", ErrBadRange, ilo, ihi, jlo, jhi)
	}
	t.finalized = false
	return nil
}

// SetTemperature assigns a fixed temperature to type itype. The random force
// of pairs whose first particle has this type uses k_B T instead of k_B e.
func (t *Table) SetTemperature(itype int, temperature float64) error {
	if err := t.checkRange(itype, itype); err != nil {
		return err
	}
	if temperature < 0 {
		return fmt.Errorf("%w: negative temperature %g for type %d", ErrBadEntry, temperature, itype)
	}
	t.types[itype].Temperature = temperature
	return nil
}

// Finalize verifies that every pair i <= j has been set, that every type
// involved in a nonzero cutoff has its single particle properties, and mirrors
// the upper triangle onto the lower one.
func (t *Table) Finalize() error {
	for i := 1; i <= t.ntypes; i++ {
		for j := i; j <= t.ntypes; j++ {
			p := &t.pairs[i][j]
			if !p.set {
				return fmt.Errorf("%w: types %d and %d", ErrMissingPair, i, j)
			}
			if p.CutSq > 1e-32 && (!t.types[i].set || !t.types[j].set) {
				return fmt.Errorf("%w: types %d and %d interact with cutoff %g",
					ErrMissingType, i, j, p.Cut)
			}
			q := &t.pairs[j][i]
			q.Cut = p.Cut
			q.CutSq = p.CutSq
			q.CutTransport = p.CutTransport
			q.Viscosity = p.Viscosity
			q.HeatAlpha = p.HeatAlpha
			q.Kappa = append(q.Kappa[:0], p.Kappa...)
			q.set = true
		}
	}
	t.finalized = true
	return nil
}

// Type returns the properties of type i. The table must be finalized.
func (t *Table) Type(i int) *TypeProps { return &t.types[i] }

// Pair returns the coefficients of the ordered pair (i,j).
func (t *Table) Pair(i, j int) *Pair { return &t.pairs[i][j] }

// MaxCut returns the largest hydrodynamic cutoff in the table.
func (t *Table) MaxCut() float64 {
	m := 0.0
	for i := 1; i <= t.ntypes; i++ {
		for j := 1; j <= t.ntypes; j++ {
			m = math.Max(m, t.pairs[i][j].Cut)
		}
	}
	return m
}

// MaxCutTransport returns the largest transport cutoff in the table.
func (t *Table) MaxCutTransport() float64 {
	m := 0.0
	for i := 1; i <= t.ntypes; i++ {
		for j := 1; j <= t.ntypes; j++ {
			m = math.Max(m, t.pairs[i][j].CutTransport)
		}
	}
	return m
}

// DiscreteKappa returns the diffusion coefficient of discrete species s for
// the pair (i,j).
func (p *Pair) DiscreteKappa(nContinuous, s int) float64 {
	return p.Kappa[nContinuous+s]
}

func (t *Table) checkRange(lo, hi int) error {
	if lo < 1 || hi > t.ntypes || lo > hi {
		return fmt.Errorf("%w: %d*%d with %d types", ErrBadRange, lo, hi, t.ntypes)
	}
	return nil
}

// ParseRange parses a type range in the usual input deck forms: "3", "*",
// "2*", "*4" and "2*4".
func ParseRange(s string, ntypes int) (lo, hi int, err error) {
	s = strings.TrimSpace(s)
	star := strings.IndexByte(s, '*')
	if star < 0 {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %q", ErrBadRange, s)
		}
		lo, hi = n, n
	} else {
		lo, hi = 1, ntypes
		if left := s[:star]; left != "" {
			if lo, err = strconv.Atoi(left); err != nil {
				return 0, 0, fmt.Errorf("%w: %q", ErrBadRange, s)
			}
		}
		if right := s[star+1:]; right != "" {
			if hi, err = strconv.Atoi(right); err != nil {
				return 0, 0, fmt.Errorf("%w: %q", ErrBadRange, s)
			}
		}
	}
	if lo < 1 || hi > ntypes || lo > hi {
		return 0, 0, fmt.Errorf("%w: %q with %d types", ErrBadRange, s, ntypes)
	}
	return lo, hi, nil
}
