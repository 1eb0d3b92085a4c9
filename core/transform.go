package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/impact-globe/model"
)

// DegToRad converts degrees at the API boundary into the radians used
// internally. Angles are never validated; callers supply degrees.
const DegToRad = math.Pi / 180

// RadToDeg is the inverse of DegToRad.
const RadToDeg = 180 / math.Pi

// PlanetRadius is the scene radius of the globe.
const PlanetRadius = 1.0

// AltitudeScale converts trajectory altitude (scene-scaled) into a radial
// offset above the planet surface: radius = 1 + altitude/AltitudeScale.
const AltitudeScale = 800.0

// ToCartesian maps a latitude/longitude in degrees onto a sphere of the
// given radius. Latitude drives the vertical (Y) axis and longitude sweeps
// the X/Z plane.
func ToCartesian(lat, lon, radius float64) r3.Vec {
	phi := lat * DegToRad
	lambda := lon * DegToRad
	return r3.Vec{
		X: radius * math.Cos(phi) * math.Cos(lambda),
		Y: radius * math.Sin(phi),
		Z: radius * math.Cos(phi) * math.Sin(lambda),
	}
}

// ToGeographic recovers latitude/longitude in degrees from a unit
// direction. The vector must already be normalised; use r3.Unit on raw
// hit points first.
func ToGeographic(dir r3.Vec) (lat, lon float64) {
	y := dir.Y
	// Rounding on a normalised vector can push |y| a hair past 1.
	if y > 1 {
		y = 1
	} else if y < -1 {
		y = -1
	}
	return math.Asin(y) * RadToDeg, math.Atan2(dir.Z, dir.X) * RadToDeg
}

// CoordinateAt returns the geographic coordinate under a unit direction.
func CoordinateAt(dir r3.Vec) model.GeoCoordinate {
	lat, lon := ToGeographic(dir)
	return model.GeoCoordinate{Lat: lat, Lon: lon}
}

// SurfacePosition places a coordinate on a sphere of the given radius.
func SurfacePosition(c model.GeoCoordinate, radius float64) r3.Vec {
	return ToCartesian(c.Lat, c.Lon, radius)
}

// PointPosition returns the scene position of a trajectory sample.
func PointPosition(p model.TrajectoryPoint) r3.Vec {
	return ToCartesian(p.Lat, p.Lon, PlanetRadius+p.Altitude/AltitudeScale)
}

// PathPositions projects every sample of a trajectory into scene space.
func PathPositions(t *model.Trajectory) []r3.Vec {
	if t == nil {
		return nil
	}
	out := make([]r3.Vec, len(t.Points))
	for i, p := range t.Points {
		out[i] = PointPosition(p)
	}
	return out
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}
