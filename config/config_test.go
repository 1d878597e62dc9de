package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/tsdpd/coeff"
	"github.com/pthm-cable/tsdpd/kernel"
	"github.com/pthm-cable/tsdpd/pair"
)

func TestDefaultsLoad(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Simulation.Dimension)
	assert.Equal(t, kernel.Lucy, cfg.Model.Kernel)
	assert.Equal(t, pair.Diffusive, cfg.Model.Density)
	assert.True(t, cfg.Model.Hydro)
	assert.Equal(t, [3]int{8, 8, 8}, cfg.Lattice.Counts)
	assert.Equal(t, 1, cfg.Derived.NumContinuous)
	assert.Equal(t, 1, cfg.Derived.NumDiscrete)
	assert.InDelta(t, 0.8, cfg.Derived.BoxHi.X, 1e-12)

	tab, err := cfg.Table()
	require.NoError(t, err)
	assert.True(t, tab.Finalized())
	assert.Equal(t, 0.25, tab.MaxCut())
	assert.Equal(t, 0.01, tab.Pair(1, 1).DiscreteKappa(1, 0))
}

func TestUserFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	data := `
simulation:
  dimension: 2
  seed: 7
model:
  kernel: wendland_c6
  density: classical
  hydro: false
  heat: true
species:
  continuous: []
  discrete: [a, b]
types:
  - {name: wall, mass: 2}
  - {name: fluid, mass: 1, temperature: 0.5}
pairs:
  - {i: "*", j: "*", rho0: 1, sound_speed: 5, cut: 1, cut_transport: 0.5, kappa: [1, 2]}
  - {i: "1", j: "2", rho0: 1, sound_speed: 5, cut: 1, cut_transport: 0.25, kappa: [0, 0]}
lattice:
  counts: [4, 3, 1]
  type: 2
  concentration: []
  molecules: [5, 0]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 1e-4, cfg.Simulation.DT, "untouched fields keep defaults")
	assert.Equal(t, uint64(7), cfg.Simulation.Seed)
	assert.Equal(t, kernel.WendlandC6, cfg.Model.Kernel)
	assert.InDelta(t, 3*cfg.Lattice.Spacing, cfg.Derived.BoxHi.Y, 1e-12)
	assert.Equal(t, []float64{0, 2, 1}, cfg.Masses())

	opts := cfg.PairOptions()
	assert.True(t, opts.TransportOnly)
	assert.True(t, opts.Heat)
	assert.Equal(t, pair.Classical, opts.Density)
	assert.Equal(t, 2, opts.Dimension)

	tab, err := cfg.Table()
	require.NoError(t, err)
	assert.Equal(t, 0.25, tab.Pair(2, 1).CutTransport, "later line wins and is mirrored")
	assert.Equal(t, 0.5, tab.Pair(2, 2).CutTransport)
	assert.Equal(t, 0.5, tab.Type(2).Temperature)
	assert.Zero(t, tab.Type(1).Temperature)
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"dimension", "simulation: {dimension: 4}"},
		{"dt", "simulation: {dt: 0}"},
		{"mass", "types: [{name: x, mass: 0}]"},
		{"counts in 2D", "simulation: {dimension: 2}"},
		{"lattice type", "lattice: {type: 3}"},
		{"concentration length", "lattice: {concentration: [1, 2]}"},
		{"negative molecules", "lattice: {molecules: [-1]}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}

	_, err := Parse([]byte("model: {kernel: gaussian}"))
	assert.ErrorIs(t, err, kernel.ErrUnknownFamily)
}

func TestTableErrors(t *testing.T) {
	cfg, err := Parse([]byte(`
types: [{name: a, mass: 1}, {name: b, mass: 1}]
pairs:
  - {i: "1", j: "1", rho0: 1, sound_speed: 1, cut: 1, cut_transport: 0.5, kappa: [1, 1]}
`))
	require.NoError(t, err)
	_, err = cfg.Table()
	assert.ErrorIs(t, err, coeff.ErrMissingPair)

	cfg.Pairs[0].I = "5"
	_, err = cfg.Table()
	assert.ErrorIs(t, err, coeff.ErrBadRange)
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, cfg.WriteYAML(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Pairs, back.Pairs)
	assert.Equal(t, cfg.Model, back.Model)
	assert.Equal(t, cfg.Lattice, back.Lattice)
}

func TestInitAndCfg(t *testing.T) {
	global = nil
	assert.Panics(t, func() { Cfg() })
	MustInit("")
	assert.Equal(t, 3, Cfg().Simulation.Dimension)
	assert.Error(t, Init("/nonexistent/config.yaml"))
}
