// Package world is the reference particle host: an ECS of fluid particles in
// a closed box with reflecting walls.
//
// Each step the host copies the ECS into a state.Store (snapshot), the force
// kernel fills the store accumulators, and Integrate applies them back to the
// components in one single-threaded pass.
package world

import (
	"errors"
	"fmt"

	"github.com/mlange-42/ark/ecs"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tsdpd/config"
	"github.com/pthm-cable/tsdpd/rng"
	"github.com/pthm-cable/tsdpd/state"
)

// ErrState is returned when integration produces an unphysical particle.
var ErrState = errors.New("world: invalid particle state")

// World holds the particles of one run.
type World struct {
	world *ecs.World

	mapper *ecs.Map5[Index, Position, Velocity, Fluid, Species]
	filter *ecs.Filter5[Index, Position, Velocity, Fluid, Species]

	dim    int
	lo, hi r3.Vec
	nc, nd int
	n      int
}

// New creates an empty world of dimension dim in the box [lo, hi] tracking
// nc continuous and nd discrete species.
func New(dim int, lo, hi r3.Vec, nc, nd int) *World {
	w := ecs.NewWorld()
	return &World{
		world:  w,
		mapper: ecs.NewMap5[Index, Position, Velocity, Fluid, Species](w),
		filter: ecs.NewFilter5[Index, Position, Velocity, Fluid, Species](w),
		dim:    dim,
		lo:     lo,
		hi:     hi,
		nc:     nc,
		nd:     nd,
	}
}

// Len returns the number of particles.
func (w *World) Len() int { return w.n }

// Box returns the box corners.
func (w *World) Box() (lo, hi r3.Vec) { return w.lo, w.hi }

// Spawn adds one particle. The species slices are copied.
func (w *World) Spawn(x, v r3.Vec, fl Fluid, c []float64, cd []int) (ecs.Entity, error) {
	if len(c) != w.nc || len(cd) != w.nd {
		return ecs.Entity{}, fmt.Errorf("world: particle carries %d+%d species, want %d+%d",
			len(c), len(cd), w.nc, w.nd)
	}
	if fl.Rho <= 0 || fl.Type < 1 {
		return ecs.Entity{}, fmt.Errorf("%w: type %d rho %g", ErrState, fl.Type, fl.Rho)
	}
	idx := Index{I: w.n}
	pos := Position{x}
	vel := Velocity{v}
	sp := Species{C: append([]float64(nil), c...), Cd: append([]int(nil), cd...)}
	e := w.mapper.NewEntity(&idx, &pos, &vel, &fl, &sp)
	w.n++
	return e, nil
}

// SpawnLattice fills the box with the particles described by lat. Particles
// sit at cell centers; those in the first SourceFraction of the box along x
// receive the initial species amounts. Initial velocities are drawn from a
// stream keyed by seed.
func (w *World) SpawnLattice(lat config.LatticeConfig, seed uint64) error {
	src := rng.NewStream(seed, rng.Key(0, rng.DomainInit, 0))
	zeroC := make([]float64, w.nc)
	zeroCd := make([]int, w.nd)
	cut := w.lo.X + lat.SourceFraction*(w.hi.X-w.lo.X)

	for a := 0; a < lat.Counts[0]; a++ {
		for b := 0; b < lat.Counts[1]; b++ {
			for c := 0; c < lat.Counts[2]; c++ {
				x := r3.Vec{
					X: w.lo.X + (float64(a)+0.5)*lat.Spacing,
					Y: w.lo.Y + (float64(b)+0.5)*lat.Spacing,
					Z: w.lo.Z + (float64(c)+0.5)*lat.Spacing,
				}
				var v r3.Vec
				if lat.VelocitySigma > 0 {
					for d := 0; d < w.dim; d++ {
						*axis(&v, d) = lat.VelocitySigma * src.Normal()
					}
				}
				for d := w.dim; d < 3; d++ {
					*axis(&x, d) = 0
				}

				conc, mol := zeroC, zeroCd
				if x.X < cut {
					conc, mol = lat.Concentration, lat.Molecules
				}
				fl := Fluid{Type: lat.Type, Rho: lat.Rho, E: lat.Energy}
				if _, err := w.Spawn(x, v, fl, conc, mol); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Snapshot copies the particle state into st, resizing it to Len. All
// particles are local.
func (w *World) Snapshot(st *state.Store) {
	if st.N != w.n {
		st.Resize(w.n)
	}
	query := w.filter.Query()
	for query.Next() {
		idx, pos, vel, fl, sp := query.Get()
		i := idx.I
		st.X[i] = pos.Vec
		st.V[i] = vel.Vec
		st.Type[i] = fl.Type
		st.Rho[i] = fl.Rho
		st.E[i] = fl.E
		copy(st.C[i], sp.C)
		copy(st.Cd[i], sp.Cd)
	}
}

// Integrate advances every particle by dt from the accumulators in st with a
// symplectic Euler step, reflects particles at the walls and commits the
// discrete species moves. Particles are updated even when one of them fails;
// the first failure is returned.
func (w *World) Integrate(st *state.Store, dt float64) error {
	var firstErr error
	query := w.filter.Query()
	for query.Next() {
		idx, pos, vel, fl, sp := query.Get()
		i := idx.I
		m := st.Mass[fl.Type]

		vel.Vec = r3.Add(vel.Vec, r3.Scale(dt/m, st.F[i]))
		pos.Vec = r3.Add(pos.Vec, r3.Scale(dt, vel.Vec))
		w.reflect(&pos.Vec, &vel.Vec)

		fl.Rho += dt * st.DRho[i]
		fl.E += dt * st.DE[i]
		for k := range sp.C {
			sp.C[k] += dt * st.Q[i][k]
		}
		for s := range sp.Cd {
			sp.Cd[s] += st.Qd[i][s]
		}

		if firstErr == nil {
			firstErr = w.check(i, fl, sp)
		}
	}
	return firstErr
}

func (w *World) check(i int, fl *Fluid, sp *Species) error {
	if !(fl.Rho > 0) {
		return fmt.Errorf("%w: particle %d density %g", ErrState, i, fl.Rho)
	}
	for s, n := range sp.Cd {
		if n < 0 {
			return fmt.Errorf("%w: particle %d holds %d molecules of species %d", ErrState, i, n, s)
		}
	}
	return nil
}

// reflect mirrors a particle that crossed a wall back into the box and
// reverses the normal velocity.
func (w *World) reflect(x, v *r3.Vec) {
	for d := 0; d < w.dim; d++ {
		lo, hi := *axis(&w.lo, d), *axis(&w.hi, d)
		p, u := axis(x, d), axis(v, d)
		switch {
		case *p < lo:
			*p = 2*lo - *p
			*u = -*u
		case *p > hi:
			*p = 2*hi - *p
			*u = -*u
		}
		// a particle faster than one box width per step ends up outside again
		*p = min(max(*p, lo), hi)
	}
}

func axis(v *r3.Vec, d int) *float64 {
	switch d {
	case 0:
		return &v.X
	case 1:
		return &v.Y
	default:
		return &v.Z
	}
}
