package model

// DefaultSpeedKmS is the reference approach speed; a body travelling at
// this speed advances along its path at the base animation rate.
const DefaultSpeedKmS = 20.0

// DefaultDiameterM is used when the selected object carries no diameter.
const DefaultDiameterM = 100.0

// SelectedObject is the near-Earth object the host currently has selected.
// It arrives already deserialized from the host's data layer.
type SelectedObject struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	DiameterM float64 `json:"diameter_m,omitempty"` // optional; <= 0 means unknown
	SpeedKmS  float64 `json:"speed_km_s,omitempty"` // optional travel speed hint; <= 0 means unknown

	// Elements is nil when the catalogue entry has no orbital data.
	Elements *OrbitalElements `json:"orbital_elements,omitempty"`
}

// SimulationResult is the subset of the physics service output the scene
// consumes. Radii are in kilometres; non-positive values are treated as
// absent.
type SimulationResult struct {
	CraterRadiusKm     float64 `json:"crater_radius_km"`
	ThermalRadiusKm    float64 `json:"thermal_radius_km"`
	ShockwaveRadiusKm  float64 `json:"shockwave_radius_km"`
	EarthquakeRadiusKm float64 `json:"earthquake_radius_km"`
	EjectaRadiusKm     float64 `json:"ejecta_radius_km"`

	EnergyMegatons   float64 `json:"energy_megatons"`
	SeismicMagnitude float64 `json:"seismic_magnitude"`
	ImpactType       string  `json:"impact_type"`
}
