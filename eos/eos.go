// Package eos implements the Tait-type equation of state used by the pair force.
package eos

// Exponent of the Tait equation.
const Gamma = 7

// Stiffness returns the Tait constant B = c^2 rho0 / 7 for a sound speed c.
func Stiffness(rho0, soundSpeed float64) float64 {
	return soundSpeed * soundSpeed * rho0 / Gamma
}

// Pressure returns P(rho) = B ((rho/rho0)^7 - 1).
func Pressure(rho, rho0, b float64) float64 {
	t := rho / rho0
	t3 := t * t * t
	return b * (t3*t3*t - 1)
}

// PressureTerm returns P(rho)/rho^2, the per-particle factor entering the
// symmetric pressure force. Negative pressures are passed through unclamped.
func PressureTerm(rho, rho0, b float64) float64 {
	return Pressure(rho, rho0, b) / (rho * rho)
}
