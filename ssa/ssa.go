// Package ssa moves whole molecules of discretely tracked species across the
// transport graph with an exact stochastic simulation algorithm.
//
// Each species is an independent continuous-time Markov jump process. A
// molecule at node i leaves along edge (i,j) with rate kappa_ij * w_ij; the
// total hazard is a0 = sum_i prop_i * n_i with prop_i the row sum of those
// rates. Every hop that occurs inside one macroscopic step is simulated and
// committed to the discrete flux accumulator.
package ssa

import (
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"

	"github.com/pthm-cable/tsdpd/graph"
	"github.com/pthm-cable/tsdpd/rng"
	"github.com/pthm-cable/tsdpd/state"
)

// DefaultMaxEvents bounds the hops of one species in one step.
const DefaultMaxEvents = 10_000_000

var (
	// ErrEventLimit is returned when a species exceeds the event bound,
	// which indicates exploding propensities in the configuration.
	ErrEventLimit = errors.New("ssa: event limit exceeded")
	// ErrPropensity is returned for a negative or NaN total propensity or a
	// negative molecule count.
	ErrPropensity = errors.New("ssa: invalid propensity")
)

// Solver runs the per-species event loops. It keeps per-species scratch
// buffers between steps.
type Solver struct {
	seed      uint64
	maxEvents int
	workers   int
	scratch   []*scratch
}

type scratch struct {
	prop   []float64
	load   []float64
	count  []int
	stream *rng.Stream
}

// New creates a solver for nspecies discrete species. maxEvents <= 0 selects
// DefaultMaxEvents; workers <= 0 uses GOMAXPROCS.
func New(nspecies int, seed uint64, maxEvents, workers int) *Solver {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	sv := &Solver{seed: seed, maxEvents: maxEvents, workers: workers}
	sv.scratch = make([]*scratch, nspecies)
	for s := range sv.scratch {
		sv.scratch[s] = &scratch{stream: rng.NewStream(seed, 0)}
	}
	return sv
}

// Run simulates every species over [0, dt) for the given step. Species run
// concurrently, each on its own stream keyed by (seed, step, species), so the
// outcome does not depend on scheduling. It returns the hop count per species.
func (sv *Solver) Run(g *graph.Graph, st *state.Store, dt float64, step uint64) ([]int, error) {
	events := make([]int, len(sv.scratch))

	var eg errgroup.Group
	eg.SetLimit(sv.workers)
	for s := range sv.scratch {
		eg.Go(func() error {
			sc := sv.scratch[s]
			sc.stream.Reseed(sv.seed, rng.Key(step, rng.DomainSpecies, uint64(s)))
			n, err := run(g, st, s, dt, sc.stream, sc, sv.maxEvents)
			events[s] = n
			if err != nil {
				return fmt.Errorf("species %d: %w", s, err)
			}
			return nil
		})
	}
	return events, eg.Wait()
}

// Species runs the event loop of species s with an explicit random source.
func Species(g *graph.Graph, st *state.Store, s int, dt float64, src rng.Source, maxEvents int) (int, error) {
	if maxEvents <= 0 {
		maxEvents = DefaultMaxEvents
	}
	return run(g, st, s, dt, src, &scratch{}, maxEvents)
}

// WaitTime returns the exponential waiting time -ln(1-r1)/a0. A zero total
// propensity means no event can ever fire and yields +Inf.
func WaitTime(r1, a0 float64) float64 {
	if a0 <= 0 {
		return math.Inf(1)
	}
	return -math.Log1p(-r1) / a0
}

func run(g *graph.Graph, st *state.Store, s int, dt float64, src rng.Source, sc *scratch, maxEvents int) (int, error) {
	prop, err := g.Propensity(sc.prop, s)
	sc.prop = prop
	if err != nil {
		return 0, err
	}

	n := g.NumNodes()
	sc.load = grow(sc.load, n)
	sc.count = grow(sc.count, n)
	load, count := sc.load, sc.count
	for i := 0; i < n; i++ {
		c := st.Count(i, s)
		if c < 0 {
			return 0, fmt.Errorf("%w: particle %d holds %d molecules", ErrPropensity, i, c)
		}
		count[i] = c
		load[i] = prop[i] * float64(c)
	}

	a0 := floats.Sum(load)
	if math.IsNaN(a0) || a0 < 0 {
		return 0, fmt.Errorf("%w: a0 = %g", ErrPropensity, a0)
	}

	rates := g.Rates(s)
	events := 0
	t := WaitTime(src.Uniform(), a0)
	for t < dt {
		if events >= maxEvents {
			return events, fmt.Errorf("%w: %d hops before t=%g of dt=%g", ErrEventLimit, events, t, dt)
		}

		from := pick(load, a0*src.Uniform())
		if from < 0 {
			break
		}
		lo, hi := g.Row(from)
		e := pick(rates[lo:hi], prop[from]*src.Uniform())
		if e < 0 {
			break
		}
		to := g.To(lo + e)

		before := load[from] + load[to]
		count[from]--
		count[to]++
		st.Qd[from][s]--
		st.Qd[to][s]++
		load[from] = prop[from] * float64(count[from])
		load[to] = prop[to] * float64(count[to])
		a0 += load[from] + load[to] - before
		if a0 < 0 {
			// cancellation drift
			a0 = floats.Sum(load)
		}
		events++

		t += WaitTime(src.Uniform(), a0)
	}
	return events, nil
}

// pick returns the first index whose running sum of w exceeds r. When
// rounding leaves r at or above the total, the last positive entry is chosen.
// It returns -1 if every weight is zero.
func pick(w []float64, r float64) int {
	sum := 0.0
	last := -1
	for k, v := range w {
		sum += v
		if v > 0 {
			last = k
		}
		if sum > r {
			return k
		}
	}
	return last
}

func grow[T any](b []T, n int) []T {
	if cap(b) < n {
		return make([]T, n)
	}
	return b[:n]
}
