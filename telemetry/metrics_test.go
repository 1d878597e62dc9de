package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/pthm-cable/tsdpd/pair"
)

func TestObserveStep(t *testing.T) {
	loop := testutil.ToFloat64(pairsTotal.WithLabelValues("loop"))
	hydro := testutil.ToFloat64(pairsTotal.WithLabelValues("hydro"))
	hops := testutil.ToFloat64(ssaEventsTotal.WithLabelValues("m"))
	other := testutil.ToFloat64(ssaEventsTotal.WithLabelValues("1"))

	res := pair.Result{Pairs: 7, TransportPairs: 5, GraphEdges: 10, SSAEvents: []int{3, 2}}
	ObserveStep(res, []string{"m"}, time.Millisecond)

	assert.Equal(t, loop+7, testutil.ToFloat64(pairsTotal.WithLabelValues("loop")))
	assert.Equal(t, hydro, testutil.ToFloat64(pairsTotal.WithLabelValues("hydro")), "loop pairs are not labelled hydrodynamic")
	assert.Equal(t, 10.0, testutil.ToFloat64(graphEdges))
	assert.Equal(t, hops+3, testutil.ToFloat64(ssaEventsTotal.WithLabelValues("m")))
	assert.Equal(t, other+2, testutil.ToFloat64(ssaEventsTotal.WithLabelValues("1")), "unnamed species use the index")
}

func TestObserveError(t *testing.T) {
	before := testutil.ToFloat64(stepErrors.WithLabelValues(PhasePair))
	ObserveError(PhasePair)
	assert.Equal(t, before+1, testutil.ToFloat64(stepErrors.WithLabelValues(PhasePair)))
}
