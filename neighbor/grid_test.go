package neighbor

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func bruteForce(x []r3.Vec, nlocal int, cutoff float64) map[[2]int]bool {
	pairs := make(map[[2]int]bool)
	for i := 0; i < nlocal; i++ {
		for j := range x {
			if j == i || (j < nlocal && j < i) {
				continue
			}
			if r3.Norm(r3.Sub(x[i], x[j])) < cutoff {
				pairs[[2]int{i, j}] = true
			}
		}
	}
	return pairs
}

func TestGridMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	lo, hi := r3.Vec{}, r3.Vec{X: 5, Y: 4, Z: 3}
	x := make([]r3.Vec, 400)
	for i := range x {
		x[i] = r3.Vec{X: rng.Float64() * hi.X, Y: rng.Float64() * hi.Y, Z: rng.Float64() * hi.Z}
	}

	const cutoff = 0.7
	for _, nlocal := range []int{len(x), 300} {
		g := NewGrid(lo, hi, cutoff)
		var l List
		g.Build(&l, x, nlocal, cutoff)

		want := bruteForce(x, nlocal, cutoff)
		got := make(map[[2]int]bool)
		require.Equal(t, nlocal, l.Len())
		for ii := 0; ii < l.Len(); ii++ {
			i, neigh := l.Row(ii)
			assert.Equal(t, ii, i)
			for k, j := range neigh {
				if k > 0 {
					assert.Less(t, neigh[k-1], j, "row %d not sorted", i)
				}
				got[[2]int{i, j}] = true
			}
		}
		assert.Equal(t, want, got, "nlocal=%d", nlocal)
		assert.Equal(t, len(want), l.Pairs())
	}
}

func TestGridRebuildReusesList(t *testing.T) {
	x := []r3.Vec{{X: 0.1}, {X: 0.5}, {X: 2.5}}
	g := NewGrid(r3.Vec{}, r3.Vec{X: 3, Y: 1, Z: 1}, 1)
	var l List

	g.Build(&l, x, len(x), 1)
	assert.Equal(t, 1, l.Pairs())

	x[2].X = 0.9
	g.Build(&l, x, len(x), 1)
	assert.Equal(t, 3, l.Pairs())
	_, n0 := l.Row(0)
	assert.Equal(t, []int{1, 2}, n0)
}

func TestListAdd(t *testing.T) {
	var l List
	l.Add(0, 1, 2)
	l.Add(1)
	l.Add(2, 3)

	assert.Equal(t, 3, l.Len())
	i, n := l.Row(2)
	assert.Equal(t, 2, i)
	assert.Equal(t, []int{3}, n)
	_, n = l.Row(1)
	assert.Empty(t, n)
}
