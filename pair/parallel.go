package pair

import (
	"runtime"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/tsdpd/graph"
	"github.com/pthm-cable/tsdpd/neighbor"
	"github.com/pthm-cable/tsdpd/rng"
	"github.com/pthm-cable/tsdpd/state"
)

// parallelThreshold is the minimum number of neighbor rows to use the worker
// pool. Below this a single chunk runs on the calling goroutine.
const parallelThreshold = 256

// accum is the partial result of one chunk of neighbor rows. Chunks never
// share an accum, so workers write without locks; the owner merges them in
// chunk order afterwards.
type accum struct {
	f     []r3.Vec
	drho  []float64
	de    []float64
	q     []float64 // [i*nc+k]
	edges *graph.Graph
	kappa []float64

	stream *rng.Stream
	c      contribution

	pairs     int
	transport int
	err       error
}

func newAccum(nspecies int) *accum {
	return &accum{
		edges:  graph.New(nspecies),
		kappa:  make([]float64, nspecies),
		stream: rng.NewStream(0, 0),
	}
}

func (a *accum) reset(n, nc int) {
	a.f = resize(a.f, n)
	a.drho = resize(a.drho, n)
	a.de = resize(a.de, n)
	a.q = resize(a.q, n*nc)
	a.edges.Reset(n, 0)
	a.pairs, a.transport, a.err = 0, 0, nil
}

// add applies contribution c of the pair (i,j). Reactions on j are applied
// only when own is set.
func (a *accum) add(c *contribution, i, j int, own bool, nc int) {
	a.pairs++
	if c.hydro {
		a.f[i] = r3.Add(a.f[i], c.force)
		a.drho[i] += c.drhoI
		a.de[i] += c.de
		if own {
			a.f[j] = r3.Sub(a.f[j], c.force)
			a.drho[j] += c.drhoJ
			a.de[j] += c.de
		}
	}
	if !c.transport {
		return
	}
	a.transport++
	for k, dq := range c.continuous {
		a.q[i*nc+k] += dq
		if own {
			a.q[j*nc+k] -= dq
		}
	}
	if c.heat != 0 {
		a.de[i] += c.heat
		if own {
			a.de[j] -= c.heat
		}
	}
	if a.edges.NumSpecies() > 0 {
		a.edges.AddUndirected(i, j, -c.base, a.kappa)
	}
}

// mergeInto adds the partial sums onto the store accumulators.
func (a *accum) mergeInto(st *state.Store) {
	nc := st.NumContinuous
	for i := 0; i < st.N; i++ {
		st.F[i] = r3.Add(st.F[i], a.f[i])
		st.DRho[i] += a.drho[i]
		st.DE[i] += a.de[i]
		for k := 0; k < nc; k++ {
			st.Q[i][k] += a.q[i*nc+k]
		}
	}
}

// workChunk is a range of neighbor rows and the accum it writes to.
type workChunk struct {
	start, end int
	slot       int
	st         *state.Store
	nl         *neighbor.List
	step       uint64
}

// parallelState holds the persistent worker pool of a Style.
type parallelState struct {
	accums     []*accum
	numWorkers int

	// Worker pool channels
	workChan chan workChunk // sends work to workers
	doneChan chan struct{}  // workers signal completion
	stopChan chan struct{}  // signals workers to exit
	wg       sync.WaitGroup // tracks active workers
	running  bool           // true if workers are running
}

func newParallelState(workers, nspecies int) *parallelState {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	accums := make([]*accum, workers)
	for i := range accums {
		accums[i] = newAccum(nspecies)
	}
	return &parallelState{numWorkers: workers, accums: accums}
}

// startWorkers launches persistent worker goroutines.
func (p *parallelState) startWorkers(s *Style) {
	if p.running {
		return
	}

	p.workChan = make(chan workChunk, p.numWorkers)
	p.doneChan = make(chan struct{}, p.numWorkers)
	p.stopChan = make(chan struct{})
	p.running = true

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(s)
	}
}

// stopWorkers signals all workers to exit and waits for them.
func (p *parallelState) stopWorkers() {
	if !p.running {
		return
	}

	close(p.stopChan)
	p.wg.Wait()
	close(p.workChan)
	close(p.doneChan)
	p.running = false
}

func (p *parallelState) close() {
	if p != nil {
		p.stopWorkers()
	}
}

func (p *parallelState) worker(s *Style) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopChan:
			return
		case chunk, ok := <-p.workChan:
			if !ok {
				return
			}
			s.computeChunk(chunk, p.accums[chunk.slot])
			p.doneChan <- struct{}{}
		}
	}
}

// run evaluates every row of nl and returns the accums that were used, in
// row order.
func (p *parallelState) run(s *Style, st *state.Store, nl *neighbor.List, step uint64) []*accum {
	n := nl.Len()
	if n < parallelThreshold || p.numWorkers == 1 {
		p.accums[0].reset(st.N, st.NumContinuous)
		s.computeChunk(workChunk{start: 0, end: n, st: st, nl: nl, step: step}, p.accums[0])
		return p.accums[:1]
	}

	if !p.running {
		p.startWorkers(s)
	}

	chunkSize := (n + p.numWorkers - 1) / p.numWorkers
	dispatched := 0
	for w := 0; w < p.numWorkers; w++ {
		start := w * chunkSize
		end := min(start+chunkSize, n)
		if start >= end {
			break
		}
		p.accums[w].reset(st.N, st.NumContinuous)
		p.workChan <- workChunk{start: start, end: end, slot: w, st: st, nl: nl, step: step}
		dispatched++
	}

	for i := 0; i < dispatched; i++ {
		<-p.doneChan
	}
	return p.accums[:dispatched]
}

func pairKey(step uint64, i int) uint64 {
	return rng.Key(step, rng.DomainPair, uint64(i))
}

func resize[T any](b []T, n int) []T {
	if cap(b) < n {
		return make([]T, n)
	}
	b = b[:n]
	clear(b)
	return b
}
