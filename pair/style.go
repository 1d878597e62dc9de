// Package pair is the force and flux kernel of the transport SDPD model.
//
// One pass over a half neighbor list accumulates, per pair, the Tait pressure
// force, the Espanol dissipative and random viscous forces, the density and
// energy rates and the continuous species flux. The same pass records the
// transport graph, which the exact stochastic solver then uses to move whole
// molecules of the discretely tracked species.
package pair

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tsdpd/coeff"
	"github.com/pthm-cable/tsdpd/graph"
	"github.com/pthm-cable/tsdpd/kernel"
	"github.com/pthm-cable/tsdpd/neighbor"
	"github.com/pthm-cable/tsdpd/ssa"
	"github.com/pthm-cable/tsdpd/state"
)

// ErrNoiseDomain is returned when the random force prefactor would be the
// square root of a negative or NaN value. It points to a sign or unit error
// in the viscosity, the kernel derivative or the particle energy.
var ErrNoiseDomain = errors.New("pair: random force prefactor outside its domain")

// PairError locates a failure at the pair (I, J).
type PairError struct {
	I, J int
	Err  error
}

func (e *PairError) Error() string {
	return fmt.Sprintf("pair (%d,%d): %v", e.I, e.J, e.Err)
}

func (e *PairError) Unwrap() error { return e.Err }

// Result summarizes one Compute call.
type Result struct {
	// Pairs is the number of pairs inside the loop cutoff.
	Pairs int
	// TransportPairs is the number of pairs inside the transport cutoff.
	TransportPairs int
	// GraphEdges is the number of directed transport graph edges.
	GraphEdges int
	// SSAEvents is the number of hops per discrete species.
	SSAEvents []int
	// SolveTime is the wall time spent in the stochastic solver.
	SolveTime time.Duration
}

// Style evaluates the pair interactions for one run. It is not safe for
// concurrent use; Compute parallelizes internally.
type Style struct {
	opts     Options
	table    *coeff.Table
	kernels  kernel.Set
	computed bool

	graph    *graph.Graph
	solver   *ssa.Solver
	parallel *parallelState
	qdSaved  []int
}

// New creates a Style for a finalized coefficient table.
func New(table *coeff.Table, opts Options) (*Style, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	ks, err := kernel.NewSet(opts.Kernel, opts.Dimension)
	if err != nil {
		return nil, err
	}
	s := &Style{opts: opts, kernels: ks}
	if err := s.Configure(table); err != nil {
		return nil, err
	}
	return s, nil
}

// Configure installs a new coefficient table. The table must be finalized.
// Configuring twice with equal tables leaves the results unchanged.
func (s *Style) Configure(table *coeff.Table) error {
	if table == nil || !table.Finalized() {
		return coeff.ErrNotFinalized
	}
	nd := table.NumDiscrete()
	if s.table == nil || s.table.NumDiscrete() != nd {
		s.parallel.close()
		s.graph = graph.New(nd)
		s.solver = ssa.New(nd, s.opts.Seed, s.opts.MaxSSAEvents, s.opts.Workers)
		s.parallel = newParallelState(s.opts.Workers, nd)
	}
	s.table = table
	return nil
}

// SetKernel selects the kernel family. After the first Compute only the
// current family is accepted.
func (s *Style) SetKernel(f kernel.Family) error {
	if s.computed && f != s.kernels.Family() {
		return fmt.Errorf("%w: %s to %s", kernel.ErrFamilyChanged, s.kernels.Family(), f)
	}
	ks, err := kernel.NewSet(f, s.opts.Dimension)
	if err != nil {
		return err
	}
	s.kernels = ks
	s.opts.Kernel = f
	return nil
}

// Options returns the options the Style was built with.
func (s *Style) Options() Options { return s.opts }

// Cutoff returns the neighbor list cutoff the host must provide.
func (s *Style) Cutoff() float64 {
	if s.opts.TransportOnly {
		return s.table.MaxCutTransport()
	}
	return s.table.MaxCut()
}

// Compute adds the contributions of every pair in nl to the accumulators of
// st and then runs the stochastic solver for each discrete species over one
// time step. The host resets the accumulators beforehand. On a pair error
// nothing is merged into st. On a solver error the pair contributions stay
// merged but the discrete moves of the step are rolled back.
func (s *Style) Compute(st *state.Store, nl *neighbor.List, step uint64) (Result, error) {
	var res Result
	if err := s.check(st); err != nil {
		return res, err
	}
	s.computed = true

	edges := 0
	if s.table.NumDiscrete() > 0 {
		edges = nl.Pairs()
	}
	s.graph.Reset(st.N, edges)
	defer s.graph.Release()

	accums := s.parallel.run(s, st, nl, step)
	defer func() {
		for _, a := range accums {
			a.edges.Release()
		}
	}()
	for _, a := range accums {
		if a.err != nil {
			return res, a.err
		}
	}
	for _, a := range accums {
		a.mergeInto(st)
		s.graph.Append(a.edges)
		res.Pairs += a.pairs
		res.TransportPairs += a.transport
	}

	if s.table.NumDiscrete() == 0 {
		return res, nil
	}
	if err := s.graph.Build(); err != nil {
		return res, err
	}
	res.GraphEdges = s.graph.NumEdges()
	s.saveDiscreteFlux(st)
	start := time.Now()
	events, err := s.solver.Run(s.graph, st, s.opts.DT, step)
	res.SSAEvents = events
	res.SolveTime = time.Since(start)
	if err != nil {
		s.restoreDiscreteFlux(st)
	}
	return res, err
}

// Close stops the worker pool.
func (s *Style) Close() {
	s.parallel.close()
}

func (s *Style) check(st *state.Store) error {
	if !s.table.Finalized() {
		return coeff.ErrNotFinalized
	}
	if st.NumContinuous != s.table.NumContinuous() || st.NumDiscrete != s.table.NumDiscrete() {
		return fmt.Errorf("pair: store tracks %d+%d species, table %d+%d",
			st.NumContinuous, st.NumDiscrete, s.table.NumContinuous(), s.table.NumDiscrete())
	}
	return st.Validate(s.table.NumTypes())
}

// computeChunk evaluates the rows [chunk.start, chunk.end) into a. The
// random stream is reseeded per owned particle so draws do not depend on how
// rows are split across workers.
func (s *Style) computeChunk(chunk workChunk, a *accum) {
	st, nl := chunk.st, chunk.nl
	nc := st.NumContinuous
	for ii := chunk.start; ii < chunk.end; ii++ {
		i, neigh := nl.Row(ii)
		a.stream.Reseed(s.opts.Seed, pairKey(chunk.step, i))
		for _, j := range neigh {
			del := r3.Sub(st.X[i], st.X[j])
			rsq := r3.Dot(del, del)
			p := s.table.Pair(st.Type[i], st.Type[j])
			cutsq := p.CutSq
			if s.opts.TransportOnly {
				cutsq = p.CutTransport * p.CutTransport
			}
			if rsq >= cutsq {
				continue
			}
			if err := s.interact(&a.c, st, p, i, j, del, rsq, a.stream); err != nil {
				a.err = &PairError{I: i, J: j, Err: err}
				return
			}
			if a.c.transport {
				for sp := range a.kappa {
					a.kappa[sp] = p.DiscreteKappa(nc, sp)
				}
			}
			a.add(&a.c, i, j, s.opts.Newton || j < st.NLocal, nc)
		}
	}
}

func (s *Style) saveDiscreteFlux(st *state.Store) {
	s.qdSaved = s.qdSaved[:0]
	for _, row := range st.Qd[:st.N] {
		s.qdSaved = append(s.qdSaved, row...)
	}
}

func (s *Style) restoreDiscreteFlux(st *state.Store) {
	off := 0
	for _, row := range st.Qd[:st.N] {
		off += copy(row, s.qdSaved[off:])
	}
}
