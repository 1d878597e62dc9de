package coeff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(kappa ...float64) Entry {
	return Entry{
		Rho0:         1000,
		SoundSpeed:   10,
		Viscosity:    0.1,
		Cut:          1.0,
		CutTransport: 0.8,
		Kappa:        kappa,
	}
}

func TestFinalizeSymmetrizes(t *testing.T) {
	tab := NewTable(2, 1, 1)
	require.NoError(t, tab.Set(1, 1, 1, 2, entry(0.5, 2.0)))
	e := entry(0.1, 0.2)
	e.Rho0 = 500
	require.NoError(t, tab.Set(2, 2, 2, 2, e))
	require.NoError(t, tab.Finalize())

	assert.Equal(t, tab.Pair(1, 2).Cut, tab.Pair(2, 1).Cut)
	assert.Equal(t, tab.Pair(1, 2).Kappa, tab.Pair(2, 1).Kappa)
	assert.Equal(t, []float64{0.5, 2.0}, tab.Pair(2, 1).Kappa)
	assert.Equal(t, 2.0, tab.Pair(2, 1).DiscreteKappa(tab.NumContinuous(), 0))
	assert.Equal(t, 500.0, tab.Type(2).Rho0)
	assert.InDelta(t, 10*10*1000/7.0, tab.Type(1).B, 1e-9)
}

func TestFinalizeMissingPair(t *testing.T) {
	tab := NewTable(2, 0, 0)
	require.NoError(t, tab.Set(1, 1, 1, 1, entry()))
	require.NoError(t, tab.Set(2, 2, 2, 2, entry()))

	err := tab.Finalize()
	assert.ErrorIs(t, err, ErrMissingPair)
	assert.False(t, tab.Finalized())
}

func TestFinalizeMissingTypeProperties(t *testing.T) {
	tab := NewTable(2, 0, 0)
	// Pair 1-2 set from type 1's line, but type 2 never gets its own line.
	require.NoError(t, tab.Set(1, 1, 1, 2, entry()))
	tab.pairs[2][2] = Pair{Cut: 1, CutSq: 1, set: true}

	assert.ErrorIs(t, tab.Finalize(), ErrMissingType)
}

func TestSetValidation(t *testing.T) {
	tab := NewTable(2, 1, 0)

	assert.ErrorIs(t, tab.Set(1, 1, 1, 1, entry()), ErrBadEntry, "kappa count")
	assert.ErrorIs(t, tab.Set(0, 1, 1, 1, entry(1)), ErrBadRange)
	assert.ErrorIs(t, tab.Set(1, 3, 1, 1, entry(1)), ErrBadRange)

	e := entry(1)
	e.CutTransport = 2
	assert.ErrorIs(t, tab.Set(1, 1, 1, 1, e), ErrBadEntry, "transport cutoff above hydro cutoff")

	e = entry(1)
	e.Viscosity = -5
	assert.ErrorIs(t, tab.Set(1, 1, 1, 1, e), ErrBadEntry, "negative viscosity")

	e = entry(1)
	e.HeatAlpha = -1
	assert.ErrorIs(t, tab.Set(1, 1, 1, 1, e), ErrBadEntry, "negative heat conduction")

	assert.ErrorIs(t, tab.Set(1, 1, 1, 1, entry(-1)), ErrBadEntry, "negative diffusion")
	assert.False(t, tab.pairs[1][1].set, "rejected entries leave the table untouched")

	mixed := NewTable(1, 0, 2)
	assert.ErrorIs(t, mixed.Set(1, 1, 1, 1, entry(1, -2)), ErrBadEntry, "one negative discrete coefficient")

	// Lower triangle only: no pair with j >= i.
	assert.ErrorIs(t, tab.Set(2, 2, 1, 1, entry(1)), ErrBadRange)
}

func TestSetTwiceIsIdempotent(t *testing.T) {
	build := func(times int) *Table {
		tab := NewTable(1, 0, 1)
		for i := 0; i < times; i++ {
			require.NoError(t, tab.Set(1, 1, 1, 1, entry(3)))
			require.NoError(t, tab.Finalize())
		}
		return tab
	}
	a, b := build(1), build(2)
	assert.Equal(t, a.types, b.types)
	assert.Equal(t, a.pairs, b.pairs)
}

func TestSetInvalidatesFinalize(t *testing.T) {
	tab := NewTable(1, 0, 0)
	require.NoError(t, tab.Set(1, 1, 1, 1, entry()))
	require.NoError(t, tab.Finalize())
	require.True(t, tab.Finalized())

	require.NoError(t, tab.Set(1, 1, 1, 1, entry()))
	assert.False(t, tab.Finalized())
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		in     string
		lo, hi int
		ok     bool
	}{
		{"2", 2, 2, true},
		{"*", 1, 4, true},
		{"2*", 2, 4, true},
		{"*3", 1, 3, true},
		{"2*3", 2, 3, true},
		{"0", 0, 0, false},
		{"5", 0, 0, false},
		{"3*2", 0, 0, false},
		{"a", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			lo, hi, err := ParseRange(tt.in, 4)
			if !tt.ok {
				assert.ErrorIs(t, err, ErrBadRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lo, lo)
			assert.Equal(t, tt.hi, hi)
		})
	}
}

func TestMaxCuts(t *testing.T) {
	tab := NewTable(2, 0, 0)
	e := entry()
	require.NoError(t, tab.Set(1, 2, 1, 2, e))
	e.Cut, e.CutTransport = 2.0, 1.5
	require.NoError(t, tab.Set(2, 2, 2, 2, e))
	require.NoError(t, tab.Finalize())

	assert.Equal(t, 2.0, tab.MaxCut())
	assert.Equal(t, 1.5, tab.MaxCutTransport())
}
