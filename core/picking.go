package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/impact-globe/model"
)

// Ray is a half-line with a unit direction.
type Ray struct {
	Origin r3.Vec
	Dir    r3.Vec
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) r3.Vec {
	return r3.Add(r.Origin, r3.Scale(t, r.Dir))
}

// IntersectSphere returns the non-negative ray distances at which the ray
// meets a sphere centred at the origin, nearest first. A tangent ray
// yields one hit; a miss yields none.
func IntersectSphere(ray Ray, radius float64) []float64 {
	// |o + t d|^2 = R^2 with |d| = 1  =>  t^2 + 2 b t + c = 0.
	b := r3.Dot(ray.Origin, ray.Dir)
	c := r3.Dot(ray.Origin, ray.Origin) - radius*radius
	disc := b*b - c
	if disc < 0 || math.IsNaN(disc) {
		return nil
	}
	sq := math.Sqrt(disc)
	t0, t1 := -b-sq, -b+sq

	hits := make([]float64, 0, 2)
	if t0 >= 0 {
		hits = append(hits, t0)
	}
	if t1 >= 0 && t1 != t0 {
		hits = append(hits, t1)
	}
	return hits
}

// PickSurface casts a ray from the camera through a normalised device
// coordinate and returns the geographic coordinate of the nearest surface
// hit. ok is false on a miss.
func PickSurface(cam *Camera, ndcX, ndcY, radius float64) (model.GeoCoordinate, bool) {
	if cam == nil {
		return model.GeoCoordinate{}, false
	}
	ray := cam.Ray(ndcX, ndcY)
	hits := IntersectSphere(ray, radius)
	if len(hits) == 0 {
		return model.GeoCoordinate{}, false
	}
	return CoordinateAt(r3.Unit(ray.At(hits[0]))), true
}

// Occluded reports whether the straight segment from eye to target passes
// through the sphere of the given radius. Targets on the surface facing
// the eye are not occluded.
func Occluded(eye, target r3.Vec, radius float64) bool {
	v := r3.Sub(target, eye)
	a := r3.Dot(v, v)
	if a == 0 {
		return r3.Dot(eye, eye) < radius*radius
	}

	// Closest point on the segment to the sphere centre, excluding a small
	// neighbourhood of the target so surface points do not occlude themselves.
	t := -r3.Dot(eye, v) / a
	const surfaceEps = 1e-6
	if t < 0 {
		t = 0
	} else if t > 1-surfaceEps {
		t = 1 - surfaceEps
	}
	closest := r3.Add(eye, r3.Scale(t, v))
	return r3.Dot(closest, closest) < radius*radius*(1-surfaceEps)
}
