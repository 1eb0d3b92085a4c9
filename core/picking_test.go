package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/impact-globe/model"
)

func TestIntersectSphereNearestFirst(t *testing.T) {
	ray := Ray{Origin: r3.Vec{Z: 3}, Dir: r3.Vec{Z: -1}}
	hits := IntersectSphere(ray, 1)
	require.Len(t, hits, 2)
	assert.InDelta(t, 2, hits[0], 1e-12)
	assert.InDelta(t, 4, hits[1], 1e-12)
}

func TestIntersectSphereMissAndBehind(t *testing.T) {
	miss := Ray{Origin: r3.Vec{X: 2, Z: 3}, Dir: r3.Vec{Z: -1}}
	assert.Empty(t, IntersectSphere(miss, 1))

	away := Ray{Origin: r3.Vec{Z: 3}, Dir: r3.Vec{Z: 1}}
	assert.Empty(t, IntersectSphere(away, 1))

	inside := Ray{Origin: r3.Vec{}, Dir: r3.Vec{X: 1}}
	hits := IntersectSphere(inside, 1)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1, hits[0], 1e-12)
}

func TestPickSurfaceCentre(t *testing.T) {
	cam := NewCamera(800, 600)
	got, ok := PickSurface(cam, 0, 0, PlanetRadius)
	require.True(t, ok)
	// Default camera sits on +Z, which is longitude 90 on the equator.
	assert.InDelta(t, 0, got.Lat, 1e-9)
	assert.InDelta(t, 90, got.Lon, 1e-9)
}

func TestPickSurfaceMiss(t *testing.T) {
	cam := NewCamera(800, 600)
	_, ok := PickSurface(cam, 0.99, 0.99, PlanetRadius)
	assert.False(t, ok)
}

func TestPickSurfaceMatchesProjection(t *testing.T) {
	cam := NewCamera(1024, 768)
	cam.Orbit(0.4, 0.2)
	cam.Zoom(0.8)

	want := model.GeoCoordinate{Lat: 20, Lon: 100}
	x, y, ok := cam.Project(SurfacePosition(want, PlanetRadius))
	require.True(t, ok)

	got, hit := PickSurface(cam, x, y, PlanetRadius)
	require.True(t, hit)
	assert.InDelta(t, want.Lat, got.Lat, 1e-6)
	assert.InDelta(t, want.Lon, got.Lon, 1e-6)
}

func TestCameraZoomClamps(t *testing.T) {
	cam := NewCamera(0, 0)
	assert.Equal(t, 1.0, cam.Aspect)
	cam.Zoom(0.01)
	assert.Equal(t, DefaultMinDistance, cam.Distance())
	cam.Zoom(1000)
	assert.Equal(t, DefaultMaxDistance, cam.Distance())
	cam.Zoom(-1)
	assert.Equal(t, DefaultMaxDistance, cam.Distance())
}

func TestPixelToNDC(t *testing.T) {
	x, y := PixelToNDC(400, 300, 800, 600)
	assert.InDelta(t, 0, x, 1e-12)
	assert.InDelta(t, 0, y, 1e-12)
	x, y = PixelToNDC(0, 0, 800, 600)
	assert.Equal(t, -1.0, x)
	assert.Equal(t, 1.0, y)
}

func TestOccluded(t *testing.T) {
	eye := r3.Vec{Z: 3}
	assert.False(t, Occluded(eye, r3.Vec{Z: 1}, 1), "near side must be visible")
	assert.True(t, Occluded(eye, r3.Vec{Z: -1}, 1), "far side must be hidden")
	assert.True(t, Occluded(eye, r3.Vec{X: 1}, 1), "beyond the horizon")
	assert.False(t, Occluded(eye, r3.Vec{X: 5, Z: 3}, 1))
}
