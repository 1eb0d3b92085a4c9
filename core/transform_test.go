package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestToCartesianAxes(t *testing.T) {
	cases := []struct {
		lat, lon float64
		want     r3.Vec
	}{
		{0, 0, r3.Vec{X: 1}},
		{0, 90, r3.Vec{Z: 1}},
		{90, 0, r3.Vec{Y: 1}},
		{0, 180, r3.Vec{X: -1}},
	}
	for _, tc := range cases {
		got := ToCartesian(tc.lat, tc.lon, 1)
		assert.InDelta(t, tc.want.X, got.X, 1e-12, "x for (%v,%v)", tc.lat, tc.lon)
		assert.InDelta(t, tc.want.Y, got.Y, 1e-12, "y for (%v,%v)", tc.lat, tc.lon)
		assert.InDelta(t, tc.want.Z, got.Z, 1e-12, "z for (%v,%v)", tc.lat, tc.lon)
	}
}

func TestGeographicRoundTrip(t *testing.T) {
	for _, r := range []float64{0.5, 1, 1.02, 7.5} {
		for lat := -89.5; lat < 90; lat += 7.25 {
			for lon := -179.5; lon <= 180; lon += 11.5 {
				p := ToCartesian(lat, lon, r)
				gotLat, gotLon := ToGeographic(r3.Unit(p))
				require.Truef(t, scalar.EqualWithinAbs(gotLat, lat, 1e-9), "lat %v -> %v (r=%v)", lat, gotLat, r)
				require.Truef(t, scalar.EqualWithinAbs(gotLon, lon, 1e-9), "lon %v -> %v (r=%v)", lon, gotLon, r)
			}
		}
	}
}

func TestGeographicPoles(t *testing.T) {
	for _, lat := range []float64{90, -90} {
		for _, lon := range []float64{-120, 0, 45, 170} {
			gotLat, gotLon := ToGeographic(r3.Unit(ToCartesian(lat, lon, 1)))
			assert.InDelta(t, lat, gotLat, 1e-6)
			// Longitude is unstable at the poles; it only has to stay a valid angle.
			assert.False(t, math.IsNaN(gotLon))
			assert.LessOrEqual(t, math.Abs(gotLon), 180.0)
		}
	}
	// An exact polar vector collapses longitude to zero.
	_, lon := ToGeographic(r3.Vec{Y: 1})
	assert.Equal(t, 0.0, lon)
}

func TestToGeographicClampsRounding(t *testing.T) {
	lat, _ := ToGeographic(r3.Vec{Y: 1 + 1e-15})
	assert.Equal(t, 90.0, lat)
}

func TestLerp(t *testing.T) {
	a := r3.Vec{X: 1}
	b := r3.Vec{X: 3, Y: 2}
	assert.Equal(t, r3.Vec{X: 2, Y: 1}, Lerp(a, b, 0.5))
	assert.Equal(t, a, Lerp(a, b, 0))
	assert.Equal(t, b, Lerp(a, b, 1))
}
