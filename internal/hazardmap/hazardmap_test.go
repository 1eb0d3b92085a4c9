package hazardmap

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/impact-globe/model"
)

func sampleResult() *model.SimulationResult {
	return &model.SimulationResult{
		CraterRadiusKm:     2,
		ThermalRadiusKm:    40,
		ShockwaveRadiusKm:  120,
		EarthquakeRadiusKm: 0,
		EjectaRadiusKm:     15,
	}
}

func TestBuildOrdersLargestFirstAndSkipsEmpty(t *testing.T) {
	impact := model.GeoCoordinate{Lat: 40, Lon: -74}
	ov, err := Build(impact, sampleResult())
	require.NoError(t, err)

	require.Len(t, ov.Zones, 4)
	assert.Equal(t, ZoneShockwave, ov.Zones[0].Kind)
	assert.Equal(t, ZoneThermal, ov.Zones[1].Kind)
	assert.Equal(t, ZoneEjecta, ov.Zones[2].Kind)
	assert.Equal(t, ZoneCrater, ov.Zones[3].Kind)
	for _, z := range ov.Zones {
		assert.Len(t, z.Ring, DefaultRingVertices)
		assert.Equal(t, StyleFor(z.Kind), z.Style)
	}
	assert.Equal(t, "#ff8800", ov.Zones[0].Style.Color)
}

func TestBuildErrors(t *testing.T) {
	_, err := Build(model.GeoCoordinate{Lat: 95}, sampleResult())
	assert.True(t, errors.Is(err, model.ErrInvalidCoordinate))

	_, err = Build(model.GeoCoordinate{}, nil)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestRingVerticesLieOnRadius(t *testing.T) {
	center := model.GeoCoordinate{Lat: 10, Lon: 20}
	for _, v := range Ring(center, 100, 36) {
		// Ring uses a sphere, classification an ellipsoid; allow 1%.
		assert.InEpsilon(t, 100, DistanceKm(center, v), 0.01)
	}
}

func TestRingWrapsAntimeridian(t *testing.T) {
	ring := Ring(model.GeoCoordinate{Lat: 0, Lon: 179.9}, 200, 8)
	for _, v := range ring {
		assert.NoError(t, v.Validate())
	}
}

func TestClassifyInnermost(t *testing.T) {
	impact := model.GeoCoordinate{Lat: 0, Lon: 0}
	ov, err := Build(impact, sampleResult())
	require.NoError(t, err)

	z, ok := ov.Classify(impact)
	require.True(t, ok)
	assert.Equal(t, ZoneCrater, z.Kind)

	// ~0.27 deg of latitude is ~30 km: inside thermal, outside ejecta.
	z, ok = ov.Classify(model.GeoCoordinate{Lat: 0.27, Lon: 0})
	require.True(t, ok)
	assert.Equal(t, ZoneThermal, z.Kind)

	_, ok = ov.Classify(model.GeoCoordinate{Lat: 10, Lon: 10})
	assert.False(t, ok)

	var empty *Overlay
	_, ok = empty.Classify(impact)
	assert.False(t, ok)
}

func TestDistanceKm(t *testing.T) {
	a := model.GeoCoordinate{Lat: 0, Lon: 0}
	assert.Zero(t, DistanceKm(a, a))
	// One degree of longitude on the equator.
	assert.InDelta(t, 111.3, DistanceKm(a, model.GeoCoordinate{Lat: 0, Lon: 1}), 0.5)
	// West and east are symmetric.
	assert.InDelta(t,
		DistanceKm(a, model.GeoCoordinate{Lat: 5, Lon: 3}),
		DistanceKm(a, model.GeoCoordinate{Lat: 5, Lon: -3}), 1e-9)
}

func TestDistanceKmDegenerateGeometry(t *testing.T) {
	antipodal := DistanceKm(model.GeoCoordinate{Lat: 0, Lon: 0}, model.GeoCoordinate{Lat: 0, Lon: 180})
	require.False(t, math.IsNaN(antipodal))
	assert.InDelta(t, math.Pi*6371, antipodal, 50)

	p := model.GeoCoordinate{Lat: 10, Lon: 10}
	near := DistanceKm(p, model.GeoCoordinate{Lat: 10, Lon: 10 + 1e-9})
	require.False(t, math.IsNaN(near))
	assert.InDelta(t, 0, near, 1e-3)
}

func TestProjectionRoundTrip(t *testing.T) {
	p := Projection{Width: 720, Height: 360}
	c := p.ToGeo(360, 180)
	assert.InDelta(t, 0, c.Lat, 1e-12)
	assert.InDelta(t, 0, c.Lon, 1e-12)

	c = p.ToGeo(0, 0)
	assert.Equal(t, model.GeoCoordinate{Lat: 90, Lon: -180}, c)

	c = p.ToGeo(-50, 9999)
	assert.Equal(t, model.GeoCoordinate{Lat: -90, Lon: -180}, c)

	x, y := p.ToPixel(model.GeoCoordinate{Lat: 45, Lon: 90})
	back := p.ToGeo(x, y)
	assert.InDelta(t, 45, back.Lat, 1e-9)
	assert.InDelta(t, 90, back.Lon, 1e-9)

	assert.Equal(t, model.GeoCoordinate{}, Projection{}.ToGeo(1, 1))
}
