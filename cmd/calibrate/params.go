package main

import (
	"fmt"
	"math"

	"github.com/pthm-cable/tsdpd/config"
)

// ParamSpec defines one calibrated hop coefficient, searched in log10 space.
type ParamSpec struct {
	Name    string
	Species int     // discrete species index
	Min     float64 // log10 lower bound
	Max     float64 // log10 upper bound
	Default float64 // log10 starting value
}

// ParamVector holds the discrete kappa of every discrete species.
type ParamVector struct {
	Specs []ParamSpec
	nc    int
}

// NewParamVector builds one parameter per discrete species of cfg, starting
// from the value on the first pair line.
func NewParamVector(cfg *config.Config) (*ParamVector, error) {
	nc, nd := cfg.Derived.NumContinuous, cfg.Derived.NumDiscrete
	if nd == 0 {
		return nil, fmt.Errorf("%w: no discrete species to calibrate", config.ErrInvalid)
	}
	pv := &ParamVector{nc: nc}
	for s, name := range cfg.Species.Discrete {
		start := -2.0
		if k := cfg.Pairs[0].Kappa; len(k) > nc+s && k[nc+s] > 0 {
			start = math.Log10(k[nc+s])
		}
		pv.Specs = append(pv.Specs, ParamSpec{
			Name:    "kappa_" + name,
			Species: s,
			Min:     -5,
			Max:     1,
			Default: min(max(start, -5), 1),
		})
	}
	return pv, nil
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the starting values.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// Normalize converts raw values to the [0,1] search range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp limits values to their bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes 10^value into the discrete kappa of every pair line.
// Kappa slices are replaced, never modified in place.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	clamped := pv.Clamp(values)
	for p := range cfg.Pairs {
		kappa := append([]float64(nil), cfg.Pairs[p].Kappa...)
		for i, spec := range pv.Specs {
			if k := pv.nc + spec.Species; k < len(kappa) {
				kappa[k] = math.Pow(10, clamped[i])
			}
		}
		cfg.Pairs[p].Kappa = kappa
	}
}
