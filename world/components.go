package world

import "gonum.org/v1/gonum/spatial/r3"

// Index is the stable particle number, used as the row in the force store.
type Index struct {
	I int
}

// Position is a particle position.
type Position struct {
	r3.Vec
}

// Velocity is a particle velocity.
type Velocity struct {
	r3.Vec
}

// Fluid holds the thermodynamic state of a particle.
type Fluid struct {
	Type int // 1-based
	Rho  float64
	E    float64 // specific internal energy
}

// Species holds the transported species of a particle.
type Species struct {
	C  []float64 // continuous concentrations
	Cd []int     // discrete molecule counts
}
