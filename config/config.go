// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/pthm-cable/tsdpd/coeff"
	"github.com/pthm-cable/tsdpd/kernel"
	"github.com/pthm-cable/tsdpd/pair"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config holds all simulation configuration parameters.
type Config struct {
	Simulation SimulationConfig `yaml:"simulation"`
	Model      ModelConfig      `yaml:"model"`
	Species    SpeciesConfig    `yaml:"species"`
	Types      []TypeConfig     `yaml:"types"`
	Pairs      []PairConfig     `yaml:"pairs"`
	Lattice    LatticeConfig    `yaml:"lattice"`
	Parallel   ParallelConfig   `yaml:"parallel"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

// SimulationConfig holds run constants.
type SimulationConfig struct {
	Dimension    int     `yaml:"dimension"`
	DT           float64 `yaml:"dt"`
	Boltzmann    float64 `yaml:"boltzmann"`
	Steps        int     `yaml:"steps"`
	Seed         uint64  `yaml:"seed"`
	NewtonPair   bool    `yaml:"newton_pair"`
	MaxSSAEvents int     `yaml:"max_ssa_events"` // per species per step, 0 = solver default
}

// ModelConfig selects the kernel and force strategies.
type ModelConfig struct {
	Kernel  kernel.Family      `yaml:"kernel"`
	Density pair.DensityPolicy `yaml:"density"`
	XSPH    float64            `yaml:"xsph"`  // velocity smoothing epsilon, 0 = off
	Hydro   bool               `yaml:"hydro"` // false = transport only
	Heat    bool               `yaml:"heat"`  // diffuse internal energy across transport edges
}

// SpeciesConfig names the tracked species. Continuous species carry real
// concentrations, discrete species integer molecule counts.
type SpeciesConfig struct {
	Continuous []string `yaml:"continuous"`
	Discrete   []string `yaml:"discrete"`
}

// TypeConfig describes one particle type. Types are numbered from 1 in
// list order.
type TypeConfig struct {
	Name        string  `yaml:"name"`
	Mass        float64 `yaml:"mass"`
	Temperature float64 `yaml:"temperature"` // 0 = noise from internal energy
}

// PairConfig is one coefficient line applied to the type ranges I and J,
// written as "2", "*", "1*3", "2*" or "*2".
type PairConfig struct {
	I           string `yaml:"i"`
	J           string `yaml:"j"`
	coeff.Entry `yaml:",inline"`
}

// LatticeConfig sets up the initial particles of the reference host: a
// regular lattice inside a closed box.
type LatticeConfig struct {
	Counts        [3]int  `yaml:"counts"` // particles per axis
	Spacing       float64 `yaml:"spacing"`
	Type          int     `yaml:"type"`
	Rho           float64 `yaml:"rho"`
	Energy        float64 `yaml:"energy"`
	VelocitySigma float64 `yaml:"velocity_sigma"`
	// SourceFraction is the fraction of the box, along x, seeded with the
	// initial species amounts below.
	SourceFraction float64   `yaml:"source_fraction"`
	Concentration  []float64 `yaml:"concentration"`
	Molecules      []int     `yaml:"molecules"`
}

// ParallelConfig holds worker pool settings.
type ParallelConfig struct {
	Workers int `yaml:"workers"` // 0 = GOMAXPROCS
}

// TelemetryConfig holds output and monitoring parameters.
type TelemetryConfig struct {
	OutputDir   string `yaml:"output_dir"`   // empty = no files
	StatsEvery  int    `yaml:"stats_every"`  // steps between stats rows and log lines
	PerfWindow  int    `yaml:"perf_window"`  // ticks in the rolling perf window
	MetricsAddr string `yaml:"metrics_addr"` // empty = no metrics endpoint
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	NumTypes      int
	NumContinuous int
	NumDiscrete   int
	BoxLo         r3.Vec
	BoxHi         r3.Vec
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, merging with embedded defaults.
// If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}
	return Parse(data)
}

// Parse merges data over the embedded defaults. Lists such as pairs and
// types replace the defaults wholesale.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	if len(data) > 0 {
		// Unmarshal into same struct - only overwrites fields present in file
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) validate() error {
	sim := &c.Simulation
	if sim.Dimension < 1 || sim.Dimension > 3 {
		return fmt.Errorf("%w: simulation.dimension %d", ErrInvalid, sim.Dimension)
	}
	if sim.DT <= 0 {
		return fmt.Errorf("%w: simulation.dt %g", ErrInvalid, sim.DT)
	}
	if sim.Steps < 0 {
		return fmt.Errorf("%w: simulation.steps %d", ErrInvalid, sim.Steps)
	}
	if len(c.Types) == 0 {
		return fmt.Errorf("%w: no particle types", ErrInvalid)
	}
	for i, t := range c.Types {
		if t.Mass <= 0 {
			return fmt.Errorf("%w: type %d (%s) mass %g", ErrInvalid, i+1, t.Name, t.Mass)
		}
	}
	if len(c.Pairs) == 0 {
		return fmt.Errorf("%w: no pair coefficients", ErrInvalid)
	}

	lat := &c.Lattice
	if lat.Spacing <= 0 || lat.Rho <= 0 {
		return fmt.Errorf("%w: lattice spacing %g rho %g", ErrInvalid, lat.Spacing, lat.Rho)
	}
	for d, n := range lat.Counts {
		if n < 1 {
			return fmt.Errorf("%w: lattice.counts[%d] = %d", ErrInvalid, d, n)
		}
		if d >= sim.Dimension && n != 1 {
			return fmt.Errorf("%w: lattice.counts[%d] = %d in %dD", ErrInvalid, d, n, sim.Dimension)
		}
	}
	if lat.Type < 1 || lat.Type > len(c.Types) {
		return fmt.Errorf("%w: lattice.type %d outside 1..%d", ErrInvalid, lat.Type, len(c.Types))
	}
	if len(lat.Concentration) != len(c.Species.Continuous) {
		return fmt.Errorf("%w: lattice.concentration has %d values for %d continuous species",
			ErrInvalid, len(lat.Concentration), len(c.Species.Continuous))
	}
	if len(lat.Molecules) != len(c.Species.Discrete) {
		return fmt.Errorf("%w: lattice.molecules has %d values for %d discrete species",
			ErrInvalid, len(lat.Molecules), len(c.Species.Discrete))
	}
	for s, m := range lat.Molecules {
		if m < 0 {
			return fmt.Errorf("%w: negative molecule count for %s", ErrInvalid, c.Species.Discrete[s])
		}
	}
	if c.Telemetry.StatsEvery < 0 {
		return fmt.Errorf("%w: telemetry.stats_every %d", ErrInvalid, c.Telemetry.StatsEvery)
	}
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	c.Derived.NumTypes = len(c.Types)
	c.Derived.NumContinuous = len(c.Species.Continuous)
	c.Derived.NumDiscrete = len(c.Species.Discrete)

	lat := &c.Lattice
	c.Derived.BoxLo = r3.Vec{}
	c.Derived.BoxHi = r3.Vec{
		X: float64(lat.Counts[0]) * lat.Spacing,
		Y: float64(lat.Counts[1]) * lat.Spacing,
		Z: float64(lat.Counts[2]) * lat.Spacing,
	}
}

// Table builds and finalizes the coefficient table described by the pair
// and type sections.
func (c *Config) Table() (*coeff.Table, error) {
	ntypes := len(c.Types)
	t := coeff.NewTable(ntypes, len(c.Species.Continuous), len(c.Species.Discrete))
	for k, p := range c.Pairs {
		ilo, ihi, err := coeff.ParseRange(p.I, ntypes)
		if err != nil {
			return nil, fmt.Errorf("pairs[%d]: %w", k, err)
		}
		jlo, jhi, err := coeff.ParseRange(p.J, ntypes)
		if err != nil {
			return nil, fmt.Errorf("pairs[%d]: %w", k, err)
		}
		if err := t.Set(ilo, ihi, jlo, jhi, p.Entry); err != nil {
			return nil, fmt.Errorf("pairs[%d] %s %s: %w", k, p.I, p.J, err)
		}
	}
	for i, tc := range c.Types {
		if tc.Temperature == 0 {
			continue
		}
		if err := t.SetTemperature(i+1, tc.Temperature); err != nil {
			return nil, err
		}
	}
	if err := t.Finalize(); err != nil {
		return nil, err
	}
	return t, nil
}

// Masses returns the per-type mass table indexed from 1.
func (c *Config) Masses() []float64 {
	m := make([]float64, len(c.Types)+1)
	for i, t := range c.Types {
		m[i+1] = t.Mass
	}
	return m
}

// PairOptions returns the force kernel options.
func (c *Config) PairOptions() pair.Options {
	return pair.Options{
		Dimension:     c.Simulation.Dimension,
		Kernel:        c.Model.Kernel,
		Density:       c.Model.Density,
		XSPH:          c.Model.XSPH,
		TransportOnly: !c.Model.Hydro,
		Heat:          c.Model.Heat,
		Boltzmann:     c.Simulation.Boltzmann,
		DT:            c.Simulation.DT,
		Newton:        c.Simulation.NewtonPair,
		Seed:          c.Simulation.Seed,
		Workers:       c.Parallel.Workers,
		MaxSSAEvents:  c.Simulation.MaxSSAEvents,
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
