// Package graph holds the per-step transport graph: a sparse symmetric
// adjacency between particles closer than the transport cutoff, with a base
// weight per edge and one diffusion coefficient per discrete species.
//
// The graph is an arena. Reset truncates every buffer without freeing it, the
// pair loop appends undirected edges, and Build compacts them into per-node
// rows sorted by neighbor index. A graph never carries edges from one step
// into the next.
package graph

import (
	"errors"
	"fmt"
	"slices"
)

// ErrNotBuilt is returned when rows are requested before Build.
var ErrNotBuilt = errors.New("graph: not built")

type entry struct {
	from, to int
	weight   float64
	coeff    int // offset into pending coefficient buffer
}

// Graph is the transport adjacency. The zero value is not usable; call New.
type Graph struct {
	nspecies int
	n        int
	built    bool

	// build phase
	pending  []entry
	pendingK []float64

	// compressed rows
	start  []int
	to     []int
	weight []float64
	rates  [][]float64 // [species][edge] = coefficient * weight
	kappa  [][]float64 // [species][edge]
}

// New returns an empty graph for nspecies discrete species.
func New(nspecies int) *Graph {
	return &Graph{
		nspecies: nspecies,
		rates:    make([][]float64, nspecies),
		kappa:    make([][]float64, nspecies),
	}
}

// Reset empties the graph for n nodes, reserving room for about edges
// undirected edges. Buffers are only grown, never shrunk.
func (g *Graph) Reset(n, edges int) {
	g.n = n
	g.built = false
	g.pending = slices.Grow(g.pending[:0], 2*edges)
	g.pendingK = slices.Grow(g.pendingK[:0], 2*edges*g.nspecies)
	g.start = g.start[:0]
	g.to = g.to[:0]
	g.weight = g.weight[:0]
	for s := range g.rates {
		g.rates[s] = g.rates[s][:0]
		g.kappa[s] = g.kappa[s][:0]
	}
}

// Release drops the contents of the graph at the end of a step.
func (g *Graph) Release() { g.Reset(0, 0) }

// NumNodes returns the node count given to Reset.
func (g *Graph) NumNodes() int { return g.n }

// NumSpecies returns the number of discrete species carried per edge.
func (g *Graph) NumSpecies() int { return g.nspecies }

// AddUndirected records the edge (i,j) and its mirror (j,i) with the same
// weight and per-species coefficients.
func (g *Graph) AddUndirected(i, j int, weight float64, kappa []float64) {
	g.add(i, j, weight, kappa)
	g.add(j, i, weight, kappa)
}

func (g *Graph) add(i, j int, weight float64, kappa []float64) {
	off := len(g.pendingK)
	g.pendingK = append(g.pendingK, kappa[:g.nspecies]...)
	g.pending = append(g.pending, entry{from: i, to: j, weight: weight, coeff: off})
}

// Append moves the pending edges of other onto g, preserving their order.
// Used to merge per-worker edge buffers.
func (g *Graph) Append(other *Graph) {
	base := len(g.pendingK)
	g.pendingK = append(g.pendingK, other.pendingK...)
	for _, e := range other.pending {
		e.coeff += base
		g.pending = append(g.pending, e)
	}
}

// Build compacts the pending edges into rows. Within a row, edges are sorted
// by neighbor index; a duplicate (i,j) keeps the last recorded values.
func (g *Graph) Build() error {
	for _, e := range g.pending {
		if e.from < 0 || e.from >= g.n || e.to < 0 || e.to >= g.n {
			return fmt.Errorf("graph: edge (%d,%d) outside %d nodes", e.from, e.to, g.n)
		}
	}

	// Stable sort keeps insertion order among duplicates so the last one wins.
	slices.SortStableFunc(g.pending, func(a, b entry) int {
		if a.from != b.from {
			return a.from - b.from
		}
		return a.to - b.to
	})

	g.to = g.to[:0]
	g.weight = g.weight[:0]
	for s := range g.rates {
		g.rates[s] = g.rates[s][:0]
		g.kappa[s] = g.kappa[s][:0]
	}
	g.start = slices.Grow(g.start[:0], g.n+1)
	g.start = append(g.start, 0)
	node := 0
	for k, e := range g.pending {
		if k+1 < len(g.pending) && g.pending[k+1].from == e.from && g.pending[k+1].to == e.to {
			continue
		}
		for node < e.from {
			g.start = append(g.start, len(g.to))
			node++
		}
		g.to = append(g.to, e.to)
		g.weight = append(g.weight, e.weight)
		for s := 0; s < g.nspecies; s++ {
			kp := g.pendingK[e.coeff+s]
			g.kappa[s] = append(g.kappa[s], kp)
			g.rates[s] = append(g.rates[s], kp*e.weight)
		}
	}
	for node < g.n {
		g.start = append(g.start, len(g.to))
		node++
	}
	g.built = true
	return nil
}

// NumEdges returns the number of directed edges after Build.
func (g *Graph) NumEdges() int { return len(g.to) }

// Row returns the edge index range [lo, hi) of node i.
func (g *Graph) Row(i int) (lo, hi int) {
	return g.start[i], g.start[i+1]
}

// neighbors returns the destinations and base weights of node i.
func (g *Graph) neighbors(i int) (to []int, weight []float64) {
	lo, hi := g.Row(i)
	return g.to[lo:hi], g.weight[lo:hi]
}

// To returns the destination of edge e.
func (g *Graph) To(e int) int { return g.to[e] }

// Rates returns coefficient*weight for every edge of species s.
func (g *Graph) Rates(s int) []float64 { return g.rates[s] }

// Propensity fills dst with the per-molecule hazard of leaving each node for
// species s: the sum over outgoing edges of coefficient times base weight.
func (g *Graph) Propensity(dst []float64, s int) ([]float64, error) {
	if !g.built {
		return dst, ErrNotBuilt
	}
	dst = slices.Grow(dst[:0], g.n)[:g.n]
	rates := g.rates[s]
	for i := 0; i < g.n; i++ {
		sum := 0.0
		for e := g.start[i]; e < g.start[i+1]; e++ {
			sum += rates[e]
		}
		dst[i] = sum
	}
	return dst, nil
}
