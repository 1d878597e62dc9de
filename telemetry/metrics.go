package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/pthm-cable/tsdpd/pair"
)

var (
	// pairsTotal counts pairs inside the loop cutoff ("loop") and the
	// transport cutoff ("transport")
	pairsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tsdpd_pairs_total",
		Help: "Total pairs evaluated inside the loop or transport cutoff",
	}, []string{"kind"})

	// graphEdges tracks the transport graph size per step
	graphEdges = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tsdpd_graph_edges",
		Help: "Directed edges in the transport graph of the last step",
	})

	// ssaEventsTotal counts molecule hops by discrete species
	ssaEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tsdpd_ssa_events_total",
		Help: "Total stochastic diffusion events by discrete species",
	}, []string{"species"})

	// stepDuration tracks wall time per step
	stepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tsdpd_step_duration_seconds",
		Help:    "Simulation step duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14), // 0.1ms to ~1.6s
	})

	// stepErrors counts failed steps by phase
	stepErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tsdpd_step_errors_total",
		Help: "Total failed steps by phase",
	}, []string{"phase"})
)

// ObserveStep records the force result and wall time of one step. species
// names the discrete species in solver order; missing names fall back to the
// species index.
func ObserveStep(res pair.Result, species []string, d time.Duration) {
	pairsTotal.WithLabelValues("loop").Add(float64(res.Pairs))
	pairsTotal.WithLabelValues("transport").Add(float64(res.TransportPairs))
	graphEdges.Set(float64(res.GraphEdges))
	for s, n := range res.SSAEvents {
		name := strconv.Itoa(s)
		if s < len(species) {
			name = species[s]
		}
		ssaEventsTotal.WithLabelValues(name).Add(float64(n))
	}
	stepDuration.Observe(d.Seconds())
}

// ObserveError counts a step that failed in phase.
func ObserveError(phase string) {
	stepErrors.WithLabelValues(phase).Inc()
}
