// Package neighbor supplies the neighbor pairs consumed by the force kernel:
// a compact half list (each unordered pair stored once, under its lower
// index) and a cell grid that builds it.
package neighbor

// List is a half neighbor list in compressed row form. Row ii belongs to
// owned particle Index[ii]; its neighbors are Neigh[Start[ii]:Start[ii+1]].
type List struct {
	Index []int
	Start []int
	Neigh []int
}

// Reset empties the list, keeping its buffers.
func (l *List) Reset() {
	l.Index = l.Index[:0]
	l.Start = append(l.Start[:0], 0)
	l.Neigh = l.Neigh[:0]
}

// Add appends a row for particle i.
func (l *List) Add(i int, neigh ...int) {
	if len(l.Start) == 0 {
		l.Start = append(l.Start, 0)
	}
	l.Index = append(l.Index, i)
	l.Neigh = append(l.Neigh, neigh...)
	l.Start = append(l.Start, len(l.Neigh))
}

// Len returns the number of rows.
func (l *List) Len() int { return len(l.Index) }

// Row returns the owned particle and its neighbors for row ii.
func (l *List) Row(ii int) (i int, neigh []int) {
	return l.Index[ii], l.Neigh[l.Start[ii]:l.Start[ii+1]]
}

// Pairs returns the total number of stored pairs.
func (l *List) Pairs() int { return len(l.Neigh) }
