package model

import "math"

// Defaults substituted for absent or invalid orbital elements.
const (
	DefaultEccentricity       = 0.1
	DefaultInclinationDegrees = 10.0
	DefaultPerihelionDistance = 1.0
)

// OrbitalElements are the simplified conic parameters attached to a
// selected object. They bias the trajectory shape and carry no physical
// guarantees.
type OrbitalElements struct {
	Eccentricity       float64 `json:"eccentricity" yaml:"eccentricity"`
	InclinationDegrees float64 `json:"inclination" yaml:"inclination"`
	PerihelionDistance float64 `json:"perihelion_distance" yaml:"perihelion_distance"`
}

// DefaultOrbitalElements returns the documented fallback elements.
func DefaultOrbitalElements() OrbitalElements {
	return OrbitalElements{
		Eccentricity:       DefaultEccentricity,
		InclinationDegrees: DefaultInclinationDegrees,
		PerihelionDistance: DefaultPerihelionDistance,
	}
}

// Sanitized replaces each invalid field with its default and reports
// whether any substitution happened. Eccentricity must be finite and
// non-negative, inclination finite, perihelion distance finite and positive.
func (e OrbitalElements) Sanitized() (OrbitalElements, bool) {
	out := e
	substituted := false
	if !finite(out.Eccentricity) || out.Eccentricity < 0 {
		out.Eccentricity = DefaultEccentricity
		substituted = true
	}
	if !finite(out.InclinationDegrees) {
		out.InclinationDegrees = DefaultInclinationDegrees
		substituted = true
	}
	if !finite(out.PerihelionDistance) || out.PerihelionDistance <= 0 {
		out.PerihelionDistance = DefaultPerihelionDistance
		substituted = true
	}
	return out, substituted
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
