package telemetry

import (
	"log/slog"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"github.com/pthm-cable/tsdpd/pair"
	"github.com/pthm-cable/tsdpd/state"
)

// StepStats is one steps.csv row, sampled after a step.
type StepStats struct {
	Step uint64  `csv:"step"`
	Time float64 `csv:"time"`

	Particles      int `csv:"particles"`
	Pairs          int `csv:"pairs"`
	TransportPairs int `csv:"transport_pairs"`
	GraphEdges     int `csv:"graph_edges"`
	SSAEvents      int `csv:"ssa_events"`

	// Energy pools, for conservation checks
	KineticEnergy  float64 `csv:"kinetic_energy"`
	InternalEnergy float64 `csv:"internal_energy"` // sum of m*e
	TotalEnergy    float64 `csv:"total_energy"`

	MomentumX float64 `csv:"momentum_x"`
	MomentumY float64 `csv:"momentum_y"`
	MomentumZ float64 `csv:"momentum_z"`

	RhoMean float64 `csv:"rho_mean"`
	RhoStd  float64 `csv:"rho_std"`
	RhoMin  float64 `csv:"rho_min"`
	RhoMax  float64 `csv:"rho_max"`

	// Species inventories summed over particles
	ContinuousTotal float64 `csv:"continuous_total"`
	DiscreteTotal   int     `csv:"discrete_total"`
}

// ComputeStepStats samples the particle state in st. res is the force
// result of the step that produced it.
func ComputeStepStats(st *state.Store, step uint64, time float64, res pair.Result) StepStats {
	s := StepStats{
		Step:           step,
		Time:           time,
		Particles:      st.NLocal,
		Pairs:          res.Pairs,
		TransportPairs: res.TransportPairs,
		GraphEdges:     res.GraphEdges,
	}
	for _, n := range res.SSAEvents {
		s.SSAEvents += n
	}

	n := st.NLocal
	if n == 0 {
		return s
	}

	var p r3.Vec
	ke := make([]float64, n)
	ie := make([]float64, n)
	for i := 0; i < n; i++ {
		m := st.Mass[st.Type[i]]
		ke[i] = 0.5 * m * r3.Norm2(st.V[i])
		ie[i] = m * st.E[i]
		p = r3.Add(p, r3.Scale(m, st.V[i]))
		s.ContinuousTotal += floats.Sum(st.C[i])
		for _, c := range st.Cd[i] {
			s.DiscreteTotal += c
		}
	}
	s.KineticEnergy = floats.Sum(ke)
	s.InternalEnergy = floats.Sum(ie)
	s.TotalEnergy = s.KineticEnergy + s.InternalEnergy
	s.MomentumX, s.MomentumY, s.MomentumZ = p.X, p.Y, p.Z

	rho := st.Rho[:n]
	s.RhoMean, s.RhoStd = stat.PopMeanStdDev(rho, nil)
	s.RhoMin = floats.Min(rho)
	s.RhoMax = floats.Max(rho)
	return s
}

// LogValue implements slog.LogValuer.
func (s StepStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("step", s.Step),
		slog.Float64("time", s.Time),
		slog.Int("pairs", s.Pairs),
		slog.Int("transport_pairs", s.TransportPairs),
		slog.Int("graph_edges", s.GraphEdges),
		slog.Int("ssa_events", s.SSAEvents),
		slog.Float64("kinetic_energy", s.KineticEnergy),
		slog.Float64("internal_energy", s.InternalEnergy),
		slog.Float64("total_energy", s.TotalEnergy),
		slog.Float64("rho_mean", s.RhoMean),
		slog.Float64("rho_std", s.RhoStd),
		slog.Float64("continuous_total", s.ContinuousTotal),
		slog.Int("discrete_total", s.DiscreteTotal),
	)
}

// LogStats logs the step stats using slog.
func (s StepStats) LogStats() {
	slog.Info("stats", "step", s)
}
