package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tsdpd/pair"
	"github.com/pthm-cable/tsdpd/state"
)

func sampleStore() *state.Store {
	st := state.New(3, 2, 1, 1)
	st.Mass[1], st.Mass[2] = 1, 2
	st.Type[0], st.Type[1], st.Type[2] = 1, 1, 2
	st.V[0] = r3.Vec{X: 2}
	st.V[1] = r3.Vec{X: -2}
	st.V[2] = r3.Vec{Y: 1}
	st.Rho[0], st.Rho[1], st.Rho[2] = 1, 2, 3
	st.E[0], st.E[1], st.E[2] = 1, 1, 0.5
	st.C[0][0], st.C[2][0] = 0.5, 1.5
	st.Cd[1][0], st.Cd[2][0] = 3, 4
	return st
}

func TestComputeStepStats(t *testing.T) {
	res := pair.Result{Pairs: 3, TransportPairs: 2, GraphEdges: 4, SSAEvents: []int{5, 6}}
	s := ComputeStepStats(sampleStore(), 10, 0.01, res)

	assert.Equal(t, uint64(10), s.Step)
	assert.Equal(t, 3, s.Particles)
	assert.Equal(t, 11, s.SSAEvents)
	assert.Equal(t, 4, s.GraphEdges)

	assert.InDelta(t, 5.0, s.KineticEnergy, 1e-12)
	assert.InDelta(t, 3.0, s.InternalEnergy, 1e-12)
	assert.InDelta(t, 8.0, s.TotalEnergy, 1e-12)
	assert.InDelta(t, 0.0, s.MomentumX, 1e-12)
	assert.InDelta(t, 2.0, s.MomentumY, 1e-12)

	assert.InDelta(t, 2.0, s.RhoMean, 1e-12)
	assert.InDelta(t, 0.816496580927726, s.RhoStd, 1e-12)
	assert.Equal(t, 1.0, s.RhoMin)
	assert.Equal(t, 3.0, s.RhoMax)

	assert.InDelta(t, 2.0, s.ContinuousTotal, 1e-12)
	assert.Equal(t, 7, s.DiscreteTotal)
}

func TestComputeStepStatsIgnoresGhosts(t *testing.T) {
	st := sampleStore()
	st.NLocal = 2
	s := ComputeStepStats(st, 0, 0, pair.Result{})

	assert.Equal(t, 2, s.Particles)
	assert.InDelta(t, 4.0, s.KineticEnergy, 1e-12)
	assert.Equal(t, 3, s.DiscreteTotal)
	assert.Equal(t, 2.0, s.RhoMax)
}

func TestComputeStepStatsEmpty(t *testing.T) {
	s := ComputeStepStats(state.New(0, 1, 0, 0), 1, 0, pair.Result{})
	assert.Zero(t, s.Particles)
	assert.Zero(t, s.RhoMean)
}
