package model

import (
	"strings"
	"time"
)

// DetailTier names one of the fixed quality tiers.
type DetailTier string

const (
	TierHigh   DetailTier = "high"
	TierMedium DetailTier = "medium"
	TierLow    DetailTier = "low"
)

// ParseDetailTier maps a tier name onto a DetailTier. Unknown names resolve
// to TierHigh.
func ParseDetailTier(s string) DetailTier {
	switch DetailTier(strings.ToLower(strings.TrimSpace(s))) {
	case TierMedium:
		return TierMedium
	case TierLow:
		return TierLow
	default:
		return TierHigh
	}
}

// DetailProfile is the session-wide rendering configuration for a tier.
// It is chosen once per session and is not changed mid-animation.
type DetailProfile struct {
	Tier DetailTier `yaml:"-"`

	SampleResolution    int     `yaml:"sample_resolution"`
	OverlayOpacity      float64 `yaml:"overlay_opacity"`
	TessellationDensity int     `yaml:"tessellation_density"`
	ShadowsEnabled      bool    `yaml:"shadows_enabled"`
	AtmosphereStrength  float64 `yaml:"atmosphere_strength"`
	CloudLayer          bool    `yaml:"cloud_layer"`

	// RotationStep is the planet spin per tick, in radians.
	RotationStep float64 `yaml:"rotation_step"`
	// PulseInterval is the glow pulse spawn period; zero disables pulses.
	PulseInterval time.Duration `yaml:"pulse_interval"`

	CraterSegments int     `yaml:"crater_segments"`
	CraterOpacity  float64 `yaml:"crater_opacity"`
	PathOpacity    float64 `yaml:"path_opacity"`
	PathWidth      float64 `yaml:"path_width"`
	StarCount      int     `yaml:"star_count"`
	StarSize       float64 `yaml:"star_size"`
	BodySegments   int     `yaml:"body_segments"`
	BodyEmissive   float64 `yaml:"body_emissive"`
	MarkerSegments int     `yaml:"marker_segments"`
}

// PulsesEnabled reports whether the profile spawns glow pulses.
func (p DetailProfile) PulsesEnabled() bool {
	return p.PulseInterval > 0
}

// DefaultProfiles returns the built-in tier table.
func DefaultProfiles() map[DetailTier]DetailProfile {
	return map[DetailTier]DetailProfile{
		TierHigh: {
			Tier:                TierHigh,
			SampleResolution:    2048,
			OverlayOpacity:      0.3,
			TessellationDensity: 64,
			ShadowsEnabled:      true,
			AtmosphereStrength:  1.0,
			CloudLayer:          true,
			RotationStep:        0.0005,
			PulseInterval:       time.Second,
			CraterSegments:      16,
			CraterOpacity:       0.7,
			PathOpacity:         0.8,
			PathWidth:           2,
			StarCount:           1000,
			StarSize:            0.02,
			BodySegments:        8,
			BodyEmissive:        0.5,
			MarkerSegments:      8,
		},
		TierMedium: {
			Tier:                TierMedium,
			SampleResolution:    1024,
			OverlayOpacity:      0.2,
			TessellationDensity: 32,
			ShadowsEnabled:      true,
			AtmosphereStrength:  0.7,
			RotationStep:        0.0003,
			PulseInterval:       1500 * time.Millisecond,
			CraterSegments:      12,
			CraterOpacity:       0.5,
			PathOpacity:         0.6,
			PathWidth:           1,
			StarCount:           500,
			StarSize:            0.015,
			BodySegments:        6,
			BodyEmissive:        0.3,
			MarkerSegments:      6,
		},
		TierLow: {
			Tier:                TierLow,
			SampleResolution:    512,
			OverlayOpacity:      0.1,
			TessellationDensity: 16,
			AtmosphereStrength:  0.5,
			RotationStep:        0.0003,
			CraterSegments:      8,
			CraterOpacity:       0.5,
			PathOpacity:         0.6,
			PathWidth:           1,
			StarCount:           200,
			StarSize:            0.015,
			BodySegments:        4,
			BodyEmissive:        0.3,
			MarkerSegments:      6,
		},
	}
}

// ProfileFor returns the built-in profile for tier.
func ProfileFor(tier DetailTier) DetailProfile {
	profiles := DefaultProfiles()
	if p, ok := profiles[tier]; ok {
		return p
	}
	return profiles[TierHigh]
}
