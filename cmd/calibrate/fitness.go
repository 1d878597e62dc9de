package main

import (
	"context"
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/tsdpd/config"
	"github.com/pthm-cable/tsdpd/sim"
	"github.com/pthm-cable/tsdpd/telemetry"
)

// failedRun is the fitness of a run that could not complete.
const failedRun = 1e9

// FitnessEvaluator runs short simulations and scores how closely each
// discrete species follows the reference continuous species.
type FitnessEvaluator struct {
	params     *ParamVector
	baseConfig *config.Config
	steps      int
	seeds      []uint64
	bins       int
	reference  int // continuous species index

	mu          sync.Mutex
	bestFitness float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, baseCfg *config.Config, steps int, seeds []uint64, bins, reference int) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		baseConfig:  baseCfg,
		steps:       steps,
		seeds:       seeds,
		bins:        bins,
		reference:   reference,
		bestFitness: math.Inf(1),
	}
}

// BestFitness returns the lowest fitness seen so far.
func (fe *FitnessEvaluator) BestFitness() float64 {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestFitness
}

// Evaluate returns the profile mismatch averaged over seeds (lower = better).
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	results := make([]float64, len(fe.seeds))
	var wg sync.WaitGroup
	for i, seed := range fe.seeds {
		wg.Add(1)
		go func(idx int, seed uint64) {
			defer wg.Done()
			results[idx] = fe.runSimulation(x, seed)
		}(i, seed)
	}
	wg.Wait()

	avg := floats.Sum(results) / float64(len(results))
	fe.mu.Lock()
	fe.bestFitness = min(fe.bestFitness, avg)
	fe.mu.Unlock()
	return avg
}

// runSimulation runs one seed and scores its final state.
func (fe *FitnessEvaluator) runSimulation(x []float64, seed uint64) float64 {
	cfg := fe.copyConfig()
	fe.params.ApplyToConfig(cfg, x)
	cfg.Simulation.Seed = seed

	s, err := sim.New(cfg, sim.Options{})
	if err != nil {
		return failedRun
	}
	defer s.Close()
	if err := s.Run(context.Background(), fe.steps); err != nil {
		return failedRun
	}
	return fe.mismatch(s.Snapshot())
}

// mismatch sums, over discrete species, the squared difference between the
// normalized molecule profile and the normalized reference profile.
func (fe *FitnessEvaluator) mismatch(snap *telemetry.Snapshot) float64 {
	ref := profile(snap, fe.bins, func(p telemetry.ParticleState) float64 { return p.C[fe.reference] })
	var total float64
	for _, spec := range fe.params.Specs {
		s := spec.Species
		d := profile(snap, fe.bins, func(p telemetry.ParticleState) float64 { return float64(p.Cd[s]) })
		total += floats.Distance(d, ref, 2) * floats.Distance(d, ref, 2)
	}
	return total
}

// profile bins value along x and normalizes the bins to unit sum. An empty
// profile stays zero.
func profile(snap *telemetry.Snapshot, bins int, value func(telemetry.ParticleState) float64) []float64 {
	out := make([]float64, bins)
	width := (snap.BoxHi.X - snap.BoxLo.X) / float64(bins)
	for _, p := range snap.Particles {
		b := int((p.X.X - snap.BoxLo.X) / width)
		b = min(max(b, 0), bins-1)
		out[b] += value(p)
	}
	if sum := floats.Sum(out); sum > 0 {
		floats.Scale(1/sum, out)
	}
	return out
}

// copyConfig returns a config copy whose pair lines can be edited freely.
func (fe *FitnessEvaluator) copyConfig() *config.Config {
	cfg := *fe.baseConfig
	cfg.Pairs = append([]config.PairConfig(nil), fe.baseConfig.Pairs...)
	cfg.Telemetry.OutputDir = ""
	cfg.Telemetry.StatsEvery = 0
	return &cfg
}
