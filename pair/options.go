package pair

import (
	"fmt"
	"strings"

	"github.com/pthm-cable/tsdpd/kernel"
)

// DensityPolicy selects the continuity update.
type DensityPolicy uint8

const (
	// Diffusive adds the Molteni artificial density diffusion term.
	Diffusive DensityPolicy = iota
	// Classical uses m_j (v_ij . x_ij) W' only.
	Classical
)

var densityNames = [...]string{
	Diffusive: "diffusive",
	Classical: "classical",
}

func (d DensityPolicy) String() string {
	if int(d) < len(densityNames) {
		return densityNames[d]
	}
	return fmt.Sprintf("density(%d)", d)
}

// ParseDensityPolicy maps a configuration name to a DensityPolicy.
func ParseDensityPolicy(s string) (DensityPolicy, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for d, n := range densityNames {
		if n == name {
			return DensityPolicy(d), nil
		}
	}
	return 0, fmt.Errorf("pair: unknown density policy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (d DensityPolicy) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *DensityPolicy) UnmarshalText(b []byte) error {
	v, err := ParseDensityPolicy(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Options are the run constants and strategy choices of a Style.
type Options struct {
	Dimension int
	Kernel    kernel.Family
	Density   DensityPolicy

	// XSPH is the epsilon of the velocity smoothing term; 0 disables it.
	XSPH float64

	// TransportOnly skips the hydrodynamic terms and walks pairs out to the
	// transport cutoff only.
	TransportOnly bool
	// Heat diffuses internal energy across transport edges with the pair
	// heat coefficient.
	Heat bool

	Boltzmann float64
	DT        float64

	// Newton applies reactions to ghost neighbors as well.
	Newton bool

	Seed         uint64
	Workers      int
	MaxSSAEvents int
}

func (o Options) validate() error {
	if o.Dimension < 1 || o.Dimension > 3 {
		return fmt.Errorf("%w: got %d", kernel.ErrDimension, o.Dimension)
	}
	if o.DT <= 0 {
		return fmt.Errorf("pair: time step must be positive, got %g", o.DT)
	}
	if o.Boltzmann < 0 {
		return fmt.Errorf("pair: negative Boltzmann constant %g", o.Boltzmann)
	}
	if o.XSPH < 0 {
		return fmt.Errorf("pair: negative XSPH epsilon %g", o.XSPH)
	}
	return nil
}
