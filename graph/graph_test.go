package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildIsSymmetric(t *testing.T) {
	g := New(2)
	g.Reset(4, 3)
	g.AddUndirected(0, 2, 1.5, []float64{1, 10})
	g.AddUndirected(0, 1, 0.5, []float64{2, 20})
	g.AddUndirected(2, 3, 2.0, []float64{3, 30})
	require.NoError(t, g.Build())

	assert.Equal(t, 6, g.NumEdges())

	to, w := g.neighbors(0)
	assert.Equal(t, []int{1, 2}, to, "row sorted by neighbor index")
	assert.Equal(t, []float64{0.5, 1.5}, w)

	to, w = g.neighbors(2)
	assert.Equal(t, []int{0, 3}, to)
	assert.Equal(t, []float64{1.5, 2.0}, w)

	// every (i,j) has a mirror (j,i) with equal weight and coefficients
	for i := 0; i < g.NumNodes(); i++ {
		lo, hi := g.Row(i)
		for e := lo; e < hi; e++ {
			j := g.To(e)
			jlo, jhi := g.Row(j)
			found := false
			for f := jlo; f < jhi; f++ {
				if g.To(f) != i {
					continue
				}
				found = true
				assert.Equal(t, g.weight[e], g.weight[f])
				for s := 0; s < g.NumSpecies(); s++ {
					assert.Equal(t, g.kappa[s][e], g.kappa[s][f])
				}
			}
			assert.True(t, found, "missing mirror of (%d,%d)", i, j)
		}
	}
}

func TestPropensitySumsCoefficientTimesWeight(t *testing.T) {
	g := New(2)
	g.Reset(3, 2)
	g.AddUndirected(0, 1, 2.0, []float64{0.5, 3})
	g.AddUndirected(0, 2, 4.0, []float64{0.25, 1})
	require.NoError(t, g.Build())

	p, err := g.Propensity(nil, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5*2 + 0.25*4, 0.5 * 2, 0.25 * 4}, p)

	p, err = g.Propensity(p, 1)
	require.NoError(t, err)
	assert.Equal(t, []float64{3*2 + 1*4, 3 * 2, 1 * 4}, p)
}

func TestDuplicateEdgeKeepsLast(t *testing.T) {
	g := New(1)
	g.Reset(2, 2)
	g.AddUndirected(0, 1, 1.0, []float64{1})
	g.AddUndirected(1, 0, 3.0, []float64{2})
	require.NoError(t, g.Build())

	assert.Equal(t, 2, g.NumEdges())
	_, w := g.neighbors(0)
	assert.Equal(t, []float64{3.0}, w)
	assert.Equal(t, []float64{6.0, 6.0}, g.Rates(0))
}

func TestResetDropsEdges(t *testing.T) {
	g := New(1)
	g.Reset(2, 1)
	g.AddUndirected(0, 1, 1.0, []float64{1})
	require.NoError(t, g.Build())
	require.Equal(t, 2, g.NumEdges())

	g.Release()
	assert.False(t, g.built)
	_, err := g.Propensity(nil, 0)
	assert.ErrorIs(t, err, ErrNotBuilt)

	g.Reset(3, 1)
	require.NoError(t, g.Build())
	assert.Zero(t, g.NumEdges())
	to, _ := g.neighbors(1)
	assert.Empty(t, to)
}

func TestAppendMergesWorkerBuffers(t *testing.T) {
	merged, w1, w2 := New(1), New(1), New(1)
	merged.Reset(4, 0)
	w1.Reset(4, 0)
	w2.Reset(4, 0)
	w1.AddUndirected(0, 1, 1, []float64{5})
	w2.AddUndirected(2, 3, 2, []float64{7})

	merged.Append(w1)
	merged.Append(w2)
	require.NoError(t, merged.Build())

	assert.Equal(t, 4, merged.NumEdges())
	assert.Equal(t, []float64{5, 5, 7, 7}, merged.kappa[0])
}

func TestBuildRejectsOutOfRangeEdge(t *testing.T) {
	g := New(0)
	g.Reset(2, 1)
	g.AddUndirected(0, 5, 1, nil)
	assert.Error(t, g.Build())
}
