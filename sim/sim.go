// Package sim drives a headless run: each step rebuilds the neighbor list,
// evaluates pair forces and stochastic diffusion, integrates the particles
// and emits telemetry.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tsdpd/config"
	"github.com/pthm-cable/tsdpd/neighbor"
	"github.com/pthm-cable/tsdpd/pair"
	"github.com/pthm-cable/tsdpd/state"
	"github.com/pthm-cable/tsdpd/telemetry"
	"github.com/pthm-cable/tsdpd/world"
)

// Options holds run settings that are not part of the config file.
type Options struct {
	OutputDir string // overrides telemetry.output_dir when set
	Restore   string // snapshot to start from instead of the lattice
	LogStats  bool   // log step and perf stats every stats_every steps
}

// Sim is one simulation run.
type Sim struct {
	cfg *config.Config

	world *world.World
	store *state.Store
	grid  *neighbor.Grid
	list  neighbor.List
	style *pair.Style

	perf     *telemetry.PerfCollector
	output   *telemetry.OutputManager
	logStats bool

	step uint64
	time float64
	last pair.Result
}

// New builds a run from cfg. The caller must Close it.
func New(cfg *config.Config, opts Options) (*Sim, error) {
	table, err := cfg.Table()
	if err != nil {
		return nil, fmt.Errorf("building coefficient table: %w", err)
	}
	style, err := pair.New(table, cfg.PairOptions())
	if err != nil {
		return nil, fmt.Errorf("configuring pair style: %w", err)
	}

	s := &Sim{
		cfg:      cfg,
		style:    style,
		perf:     telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow),
		logStats: opts.LogStats,
	}
	if err := s.spawn(opts.Restore); err != nil {
		style.Close()
		return nil, err
	}

	d := cfg.Derived
	s.store = state.New(s.world.Len(), d.NumTypes, d.NumContinuous, d.NumDiscrete)
	copy(s.store.Mass, cfg.Masses())

	cut := style.Cutoff()
	if cut <= 0 {
		style.Close()
		return nil, fmt.Errorf("%w: interaction cutoff %g", config.ErrInvalid, cut)
	}
	lo, hi := s.world.Box()
	s.grid = neighbor.NewGrid(lo, hi, cut)

	dir := cfg.Telemetry.OutputDir
	if opts.OutputDir != "" {
		dir = opts.OutputDir
	}
	s.output, err = telemetry.NewOutputManager(dir)
	if err != nil {
		style.Close()
		return nil, err
	}
	if err := s.output.WriteConfig(cfg); err != nil {
		s.Close()
		return nil, err
	}

	slog.Info("simulation ready",
		"particles", s.world.Len(),
		"dimension", cfg.Simulation.Dimension,
		"kernel", cfg.Model.Kernel,
		"density", cfg.Model.Density,
		"cutoff", cut,
		"step", s.step,
		"output_dir", s.output.Dir(),
	)
	return s, nil
}

func (s *Sim) spawn(restore string) error {
	cfg := s.cfg
	d := cfg.Derived
	if restore == "" {
		s.world = world.New(cfg.Simulation.Dimension, d.BoxLo, d.BoxHi, d.NumContinuous, d.NumDiscrete)
		if err := s.world.SpawnLattice(cfg.Lattice, cfg.Simulation.Seed); err != nil {
			return fmt.Errorf("spawning lattice: %w", err)
		}
		return nil
	}

	snap, err := telemetry.LoadSnapshot(restore)
	if err != nil {
		return err
	}
	if snap.Dimension != cfg.Simulation.Dimension {
		return fmt.Errorf("%w: snapshot is %dD, config %dD", config.ErrInvalid, snap.Dimension, cfg.Simulation.Dimension)
	}
	s.world = world.New(snap.Dimension, snap.BoxLo, snap.BoxHi, d.NumContinuous, d.NumDiscrete)
	for i, p := range snap.Particles {
		if p.Type > d.NumTypes {
			return fmt.Errorf("%w: snapshot particle %d has type %d", config.ErrInvalid, i, p.Type)
		}
		fl := world.Fluid{Type: p.Type, Rho: p.Rho, E: p.E}
		if _, err := s.world.Spawn(p.X, p.V, fl, p.C, p.Cd); err != nil {
			return fmt.Errorf("restoring particle %d: %w", i, err)
		}
	}
	s.step, s.time = snap.Step, snap.Time
	return nil
}

// Step advances the run by one time step.
func (s *Sim) Step() error {
	dt := s.cfg.Simulation.DT
	s.perf.StartStep()

	s.perf.StartPhase(telemetry.PhaseNeighbor)
	s.world.Snapshot(s.store)
	s.store.ResetAccumulators()
	s.grid.Build(&s.list, s.store.X, s.store.NLocal, s.style.Cutoff())

	s.perf.StartPhase(telemetry.PhasePair)
	res, err := s.style.Compute(s.store, &s.list, s.step)
	s.perf.Split(telemetry.PhaseSSA, res.SolveTime)
	if err != nil {
		s.perf.EndStep()
		phase := telemetry.PhasePair
		if res.SolveTime > 0 {
			phase = telemetry.PhaseSSA
		}
		telemetry.ObserveError(phase)
		return fmt.Errorf("step %d: %w", s.step, err)
	}

	s.perf.StartPhase(telemetry.PhaseIntegrate)
	if err := s.world.Integrate(s.store, dt); err != nil {
		s.perf.EndStep()
		telemetry.ObserveError(telemetry.PhaseIntegrate)
		return fmt.Errorf("step %d: %w", s.step, err)
	}
	s.step++
	s.time += dt
	s.last = res

	s.perf.StartPhase(telemetry.PhaseTelemetry)
	every := uint64(s.cfg.Telemetry.StatsEvery)
	flush := every > 0 && s.step%every == 0
	if flush {
		s.flushTelemetry()
	}

	telemetry.ObserveStep(res, s.cfg.Species.Discrete, s.perf.EndStep())
	return nil
}

// flushTelemetry samples the integrated state and writes the stats rows.
func (s *Sim) flushTelemetry() {
	stats := s.Stats()
	perfStats := s.perf.Stats()
	if s.logStats {
		stats.LogStats()
		perfStats.LogStats()
	}
	if err := s.output.WriteStep(stats); err != nil {
		slog.Error("failed to write steps", "error", err)
	}
	if err := s.output.WritePerf(perfStats, s.step); err != nil {
		slog.Error("failed to write perf", "error", err)
	}
}

// Run advances the run by steps, stopping early when ctx is done, and then
// writes a final snapshot to the output directory.
func (s *Sim) Run(ctx context.Context, steps int) error {
	for k := 0; k < steps; k++ {
		if err := ctx.Err(); err != nil {
			slog.Info("run interrupted", "step", s.step)
			return errors.Join(err, s.saveSnapshot())
		}
		if err := s.Step(); err != nil {
			slog.Error("step failed", "step", s.step, "error", err)
			return err
		}
	}
	slog.Info("run finished", "step", s.step, "time", s.time)
	return s.saveSnapshot()
}

func (s *Sim) saveSnapshot() error {
	if s.output == nil {
		return nil
	}
	path, err := s.output.WriteSnapshot(s.Snapshot())
	if err != nil {
		return err
	}
	slog.Info("snapshot saved", "path", path)
	return nil
}

// Stats samples the current particle state.
func (s *Sim) Stats() telemetry.StepStats {
	s.world.Snapshot(s.store)
	return telemetry.ComputeStepStats(s.store, s.step, s.time, s.last)
}

// Snapshot captures the current particle state.
func (s *Sim) Snapshot() *telemetry.Snapshot {
	s.world.Snapshot(s.store)
	snap := telemetry.NewSnapshot(s.store, s.step, s.time)
	snap.Seed = s.cfg.Simulation.Seed
	snap.Dimension = s.cfg.Simulation.Dimension
	snap.BoxLo, snap.BoxHi = s.world.Box()
	return snap
}

// StepCount returns the number of completed steps.
func (s *Sim) StepCount() uint64 { return s.step }

// Time returns the simulated time.
func (s *Sim) Time() float64 { return s.time }

// Box returns the simulation box.
func (s *Sim) Box() (lo, hi r3.Vec) { return s.world.Box() }

// Close stops the worker pool and closes the output files.
func (s *Sim) Close() error {
	s.style.Close()
	return s.output.Close()
}
