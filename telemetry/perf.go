package telemetry

import (
	"log/slog"
	"time"
)

// Phase names for the simulation step.
const (
	PhaseNeighbor  = "neighbor"
	PhasePair      = "pair"
	PhaseSSA       = "ssa"
	PhaseIntegrate = "integrate"
	PhaseTelemetry = "telemetry"
)

var phases = []string{PhaseNeighbor, PhasePair, PhaseSSA, PhaseIntegrate, PhaseTelemetry}

// PerfSample holds timing data for a single step.
type PerfSample struct {
	StepDuration time.Duration
	Phases       map[string]time.Duration
}

// PerfCollector tracks step timings over a rolling window.
type PerfCollector struct {
	windowSize    int
	samples       []PerfSample
	writeIndex    int
	sampleCount   int
	currentPhases map[string]time.Duration
	stepStart     time.Time
	phaseStart    time.Time
	lastPhase     string
}

// NewPerfCollector creates a collector averaging over windowSize steps.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 100
	}
	return &PerfCollector{
		windowSize:    windowSize,
		samples:       make([]PerfSample, windowSize),
		currentPhases: make(map[string]time.Duration),
	}
}

// StartStep begins timing a new step.
func (p *PerfCollector) StartStep() {
	p.stepStart = time.Now()
	p.currentPhases = make(map[string]time.Duration)
	p.lastPhase = ""
}

// StartPhase ends the running phase, if any, and begins timing phase.
func (p *PerfCollector) StartPhase(phase string) {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}
	p.phaseStart = now
	p.lastPhase = phase
}

// Split moves d of the running phase into phase, for work timed inside a
// single call.
func (p *PerfCollector) Split(phase string, d time.Duration) {
	if p.lastPhase == "" || d <= 0 {
		return
	}
	p.currentPhases[phase] += d
	p.phaseStart = p.phaseStart.Add(d)
}

// EndStep finishes the current step, records the sample and returns the
// step duration.
func (p *PerfCollector) EndStep() time.Duration {
	now := time.Now()
	if p.lastPhase != "" {
		p.currentPhases[p.lastPhase] += now.Sub(p.phaseStart)
	}

	sample := PerfSample{
		StepDuration: now.Sub(p.stepStart),
		Phases:       p.currentPhases,
	}
	p.samples[p.writeIndex] = sample
	p.writeIndex = (p.writeIndex + 1) % p.windowSize
	if p.sampleCount < p.windowSize {
		p.sampleCount++
	}
	return sample.StepDuration
}

// PerfStats holds aggregated performance statistics.
type PerfStats struct {
	AvgStepDuration time.Duration
	MinStepDuration time.Duration
	MaxStepDuration time.Duration

	// Average duration and share of the step per phase
	PhaseAvg map[string]time.Duration
	PhasePct map[string]float64

	StepsPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	if p.sampleCount == 0 {
		return PerfStats{
			PhaseAvg: make(map[string]time.Duration),
			PhasePct: make(map[string]float64),
		}
	}

	var total, minStep, maxStep time.Duration
	phaseSum := make(map[string]time.Duration)
	for i := 0; i < p.sampleCount; i++ {
		s := p.samples[i]
		total += s.StepDuration
		if i == 0 || s.StepDuration < minStep {
			minStep = s.StepDuration
		}
		if s.StepDuration > maxStep {
			maxStep = s.StepDuration
		}
		for phase, dur := range s.Phases {
			phaseSum[phase] += dur
		}
	}

	avg := total / time.Duration(p.sampleCount)
	phaseAvg := make(map[string]time.Duration)
	phasePct := make(map[string]float64)
	for phase, sum := range phaseSum {
		phaseAvg[phase] = sum / time.Duration(p.sampleCount)
		if avg > 0 {
			phasePct[phase] = float64(phaseAvg[phase]) / float64(avg) * 100
		}
	}

	var perSec float64
	if avg > 0 {
		perSec = float64(time.Second) / float64(avg)
	}

	return PerfStats{
		AvgStepDuration: avg,
		MinStepDuration: minStep,
		MaxStepDuration: maxStep,
		PhaseAvg:        phaseAvg,
		PhasePct:        phasePct,
		StepsPerSecond:  perSec,
	}
}

// LogStats logs performance statistics.
func (s PerfStats) LogStats() {
	attrs := []any{
		"avg_step_us", s.AvgStepDuration.Microseconds(),
		"min_step_us", s.MinStepDuration.Microseconds(),
		"max_step_us", s.MaxStepDuration.Microseconds(),
		"steps_per_sec", int(s.StepsPerSecond),
	}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok && pct > 0.1 {
			attrs = append(attrs, phase+"_pct", int(pct*10)/10.0)
		}
	}
	slog.Info("perf", attrs...)
}

// LogValue implements slog.LogValuer.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_step_us", s.AvgStepDuration.Microseconds()),
		slog.Int64("min_step_us", s.MinStepDuration.Microseconds()),
		slog.Int64("max_step_us", s.MaxStepDuration.Microseconds()),
		slog.Float64("steps_per_sec", s.StepsPerSecond),
	}
	for _, phase := range phases {
		if pct, ok := s.PhasePct[phase]; ok {
			attrs = append(attrs, slog.Float64(phase+"_pct", pct))
		}
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is the flat perf.csv row.
type PerfStatsCSV struct {
	WindowEnd    uint64  `csv:"window_end"`
	AvgStepUS    int64   `csv:"avg_step_us"`
	MinStepUS    int64   `csv:"min_step_us"`
	MaxStepUS    int64   `csv:"max_step_us"`
	StepsPerSec  float64 `csv:"steps_per_sec"`
	NeighborPct  float64 `csv:"neighbor_pct"`
	PairPct      float64 `csv:"pair_pct"`
	SSAPct       float64 `csv:"ssa_pct"`
	IntegratePct float64 `csv:"integrate_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s into a perf.csv row ending at step windowEnd.
func (s PerfStats) ToCSV(windowEnd uint64) PerfStatsCSV {
	return PerfStatsCSV{
		WindowEnd:    windowEnd,
		AvgStepUS:    s.AvgStepDuration.Microseconds(),
		MinStepUS:    s.MinStepDuration.Microseconds(),
		MaxStepUS:    s.MaxStepDuration.Microseconds(),
		StepsPerSec:  s.StepsPerSecond,
		NeighborPct:  s.PhasePct[PhaseNeighbor],
		PairPct:      s.PhasePct[PhasePair],
		SSAPct:       s.PhasePct[PhaseSSA],
		IntegratePct: s.PhasePct[PhaseIntegrate],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
