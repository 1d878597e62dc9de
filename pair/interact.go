package pair

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tsdpd/coeff"
	"github.com/pthm-cable/tsdpd/eos"
	"github.com/pthm-cable/tsdpd/rng"
	"github.com/pthm-cable/tsdpd/state"
)

// contribution is everything one pair adds to i and removes from j. It is
// filled completely before any accumulator is touched.
type contribution struct {
	force      r3.Vec
	drhoI      float64
	drhoJ      float64
	de         float64
	hydro      bool
	transport  bool
	base       float64 // transport base weight, negative inside the cutoff
	heat       float64
	continuous []float64
}

// interact evaluates the pair (i,j). The caller has already checked that
// the separation is inside the loop cutoff.
func (s *Style) interact(c *contribution, st *state.Store, p *coeff.Pair, i, j int, del r3.Vec, rsq float64, src rng.Source) error {
	r := math.Sqrt(rsq)
	ti, tj := st.Type[i], st.Type[j]
	mi, mj := st.Mass[ti], st.Mass[tj]
	rhoi, rhoj := st.Rho[i], st.Rho[j]

	c.hydro = false
	c.transport = false
	c.force = r3.Vec{}
	c.drhoI, c.drhoJ, c.de, c.heat, c.base = 0, 0, 0, 0, 0

	if !s.opts.TransportOnly {
		if err := s.hydro(c, st, p, i, j, del, r, rsq, src); err != nil {
			return err
		}
		c.hydro = true
	}

	if r >= p.CutTransport {
		return nil
	}
	c.transport = true
	hc := p.CutTransport
	_, wfd := s.kernels.Transport.Eval(r, hc)
	mred := mi * mj / (mi + mj)
	rhoSum := (rhoi + rhoj) / (rhoi * rhoj)
	c.base = 2 * mred * rhoSum * (rsq / (rsq + 0.01*hc*hc)) * wfd

	nc := st.NumContinuous
	c.continuous = c.continuous[:0]
	for k := 0; k < nc; k++ {
		c.continuous = append(c.continuous, p.Kappa[k]*(st.C[i][k]-st.C[j][k])*c.base)
	}
	if s.opts.Heat {
		c.heat = p.HeatAlpha * 2 * mred * rhoSum * (st.E[i] - st.E[j]) * wfd
	}
	return nil
}

func (s *Style) hydro(c *contribution, st *state.Store, p *coeff.Pair, i, j int, del r3.Vec, r, rsq float64, src rng.Source) error {
	ti, tj := st.Type[i], st.Type[j]
	mi, mj := st.Mass[ti], st.Mass[tj]
	rhoi, rhoj := st.Rho[i], st.Rho[j]
	tpi, tpj := s.table.Type(ti), s.table.Type(tj)

	h := p.Cut
	hsq := h * h
	wf, wfd := s.kernels.Hydro.Eval(r, h)

	fi := eos.PressureTerm(rhoi, tpi.Rho0, tpi.B)
	fj := eos.PressureTerm(rhoj, tpj.Rho0, tpj.B)

	vel := r3.Sub(st.V[i], st.V[j])
	dvdr := r3.Dot(del, vel)

	fvisc := wfd / (rhoi * rhoj) * mi * mj
	fpair := -mi * mj * (fi + fj) * wfd

	kT := s.opts.Boltzmann * st.E[i]
	if tpi.Temperature > 0 {
		kT = s.opts.Boltzmann * tpi.Temperature
	}
	arg := -4 * kT * fvisc / s.opts.DT
	if arg < 0 || math.IsNaN(arg) {
		return fmt.Errorf("%w: -4 kT fvisc/dt = %g (kT=%g, W'=%g)", ErrNoiseDomain, arg, kT, wfd)
	}
	prefactor := math.Sqrt(arg) / (r + 0.01*h)
	frand := r3.Scale(prefactor, wiener(s.opts.Dimension, src, del))

	fvisc *= 5.0 / 3.0 * p.Viscosity
	if dvdr > 0 {
		fvisc = 0
	}

	f := r3.Scale(fpair, del)
	f = r3.Add(f, r3.Scale(fvisc, r3.Add(vel, r3.Scale(dvdr/(rsq+0.01*hsq), del))))
	f = r3.Add(f, frand)
	if eps := s.opts.XSPH; eps > 0 {
		f = r3.Sub(f, r3.Scale(eps*mi*mj*wf/(0.5*(rhoi+rhoj)), vel))
	}
	c.force = f

	c.drhoI = mj * dvdr * wfd
	c.drhoJ = mi * dvdr * wfd
	if s.opts.Density == Diffusive {
		reg := rsq / (rsq + 0.01*hsq)
		c.drhoI -= 0.1 * h * tpi.SoundSpeed * mj * 2 * ((mi/rhoi)/(mj/rhoj) - 1) * reg * wfd
		c.drhoJ -= 0.1 * h * tpj.SoundSpeed * mi * 2 * ((mj/rhoj)/(mi/rhoi) - 1) * reg * wfd
	}

	c.de = -0.5 * (fpair*dvdr + fvisc*r3.Dot(vel, vel))
	return nil
}

// wiener draws a dim x dim matrix of standard normals in row-major order,
// makes it symmetric and traceless, and applies it to del.
func wiener(dim int, src rng.Source, del r3.Vec) r3.Vec {
	var w [3][3]float64
	for l := 0; l < dim; l++ {
		for m := 0; m < dim; m++ {
			w[l][m] = src.Normal()
		}
	}
	for l := 0; l < dim; l++ {
		for m := l + 1; m < dim; m++ {
			avg := 0.5 * (w[l][m] + w[m][l])
			w[l][m], w[m][l] = avg, avg
		}
	}
	tr := 0.0
	for l := 0; l < dim; l++ {
		tr += w[l][l]
	}
	tr /= float64(dim)
	for l := 0; l < dim; l++ {
		w[l][l] -= tr
	}

	d := [3]float64{del.X, del.Y, del.Z}
	var out [3]float64
	for l := 0; l < dim; l++ {
		out[l] = w[l][0]*d[0] + w[l][1]*d[1] + w[l][2]*d[2]
	}
	return r3.Vec{X: out[0], Y: out[1], Z: out[2]}
}
