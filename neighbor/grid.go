package neighbor

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// Grid bins particles into cubic cells of at least the cutoff length so that
// neighbor candidates lie in the 27 surrounding cells.
type Grid struct {
	cellSize float64
	lo       r3.Vec
	dims     [3]int
	cells    [][]int // flat grid of particle lists

	scratch []int
}

// NewGrid creates a grid covering the box [lo, hi] with cells no smaller
// than cellSize.
func NewGrid(lo, hi r3.Vec, cellSize float64) *Grid {
	ext := r3.Sub(hi, lo)
	g := &Grid{cellSize: cellSize, lo: lo}
	for d, e := range [3]float64{ext.X, ext.Y, ext.Z} {
		n := int(math.Floor(e / cellSize))
		if n < 1 {
			n = 1
		}
		g.dims[d] = n
	}

	cells := make([][]int, g.dims[0]*g.dims[1]*g.dims[2])
	for i := range cells {
		cells[i] = make([]int, 0, 8) // pre-allocate small capacity
	}
	g.cells = cells
	return g
}

// Clear removes all particles from the grid.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

// Insert adds particle idx at position p.
func (g *Grid) Insert(idx int, p r3.Vec) {
	c := g.coords(p)
	g.cells[g.flat(c)] = append(g.cells[g.flat(c)], idx)
}

// Build rebins x and fills dst with a half list of all pairs closer than
// cutoff. Rows are emitted for the first nlocal particles in index order and
// neighbors within a row are sorted ascending. Pairs between two owned
// particles appear once under the lower index; pairs with a ghost (index >=
// nlocal) appear under the owned particle.
func (g *Grid) Build(dst *List, x []r3.Vec, nlocal int, cutoff float64) {
	g.Clear()
	for i, p := range x {
		g.Insert(i, p)
	}

	cutSq := cutoff * cutoff
	dst.Reset()
	for i := 0; i < nlocal; i++ {
		c := g.coords(x[i])
		g.scratch = g.scratch[:0]
		for dz := -1; dz <= 1; dz++ {
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					n := [3]int{c[0] + dx, c[1] + dy, c[2] + dz}
					if !g.inside(n) {
						continue
					}
					for _, j := range g.cells[g.flat(n)] {
						if j == i || (j < nlocal && j < i) {
							continue
						}
						if r3.Norm2(r3.Sub(x[i], x[j])) < cutSq {
							g.scratch = append(g.scratch, j)
						}
					}
				}
			}
		}
		slices.Sort(g.scratch)
		dst.Add(i, g.scratch...)
	}
}

func (g *Grid) coords(p r3.Vec) [3]int {
	rel := r3.Sub(p, g.lo)
	var c [3]int
	for d, v := range [3]float64{rel.X, rel.Y, rel.Z} {
		k := int(v / g.cellSize)
		// Clamp to valid range
		if k < 0 {
			k = 0
		} else if k >= g.dims[d] {
			k = g.dims[d] - 1
		}
		c[d] = k
	}
	return c
}

func (g *Grid) inside(c [3]int) bool {
	for d := range c {
		if c[d] < 0 || c[d] >= g.dims[d] {
			return false
		}
	}
	return true
}

func (g *Grid) flat(c [3]int) int {
	return (c[2]*g.dims[1]+c[1])*g.dims[0] + c[0]
}
