package core

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera defaults for the globe view.
const (
	DefaultFOVDegrees  = 75.0
	DefaultNear        = 0.1
	DefaultFar         = 2000.0
	DefaultDistance    = 3.0
	DefaultMinDistance = 1.5
	DefaultMaxDistance = 10.0

	// maxElevation keeps the orbit camera off the poles where the up
	// vector degenerates.
	maxElevation = math.Pi/2 - 0.01
)

// Camera is a perspective camera orbiting a target point.
type Camera struct {
	FOVDegrees float64
	Near, Far  float64
	Aspect     float64
	Target     r3.Vec
	Up         r3.Vec

	MinDistance, MaxDistance float64

	distance  float64
	azimuth   float64
	elevation float64
}

// NewCamera returns the default globe camera: on +Z at distance 3,
// looking at the origin.
func NewCamera(width, height int) *Camera {
	c := &Camera{
		FOVDegrees:  DefaultFOVDegrees,
		Near:        DefaultNear,
		Far:         DefaultFar,
		Aspect:      1,
		Up:          r3.Vec{Y: 1},
		MinDistance: DefaultMinDistance,
		MaxDistance: DefaultMaxDistance,
		distance:    DefaultDistance,
	}
	c.SetViewport(width, height)
	return c
}

// SetViewport recomputes the aspect ratio. Non-positive sizes are ignored.
func (c *Camera) SetViewport(width, height int) {
	if width > 0 && height > 0 {
		c.Aspect = float64(width) / float64(height)
	}
}

// Distance returns the current distance from the target.
func (c *Camera) Distance() float64 { return c.distance }

// Position returns the camera eye position in world space.
func (c *Camera) Position() r3.Vec {
	cosEl := math.Cos(c.elevation)
	offset := r3.Vec{
		X: c.distance * math.Sin(c.azimuth) * cosEl,
		Y: c.distance * math.Sin(c.elevation),
		Z: c.distance * math.Cos(c.azimuth) * cosEl,
	}
	return r3.Add(c.Target, offset)
}

// Orbit rotates the eye around the target by the given angles (radians).
func (c *Camera) Orbit(dAzimuth, dElevation float64) {
	c.azimuth = math.Mod(c.azimuth+dAzimuth, 2*math.Pi)
	c.elevation = math.Max(-maxElevation, math.Min(maxElevation, c.elevation+dElevation))
}

// Zoom scales the eye distance by factor, clamped to [MinDistance, MaxDistance].
func (c *Camera) Zoom(factor float64) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return
	}
	c.distance = math.Max(c.MinDistance, math.Min(c.MaxDistance, c.distance*factor))
}

// basis returns the orthonormal view basis (forward, right, up).
func (c *Camera) basis() (forward, right, up r3.Vec) {
	forward = r3.Unit(r3.Sub(c.Target, c.Position()))
	right = r3.Unit(r3.Cross(forward, c.Up))
	up = r3.Cross(right, forward)
	return forward, right, up
}

func (c *Camera) tanHalfFOV() float64 {
	return math.Tan(c.FOVDegrees * DegToRad / 2)
}

// Ray returns the world-space ray through a normalised device
// coordinate (x, y in [-1, 1], +y up).
func (c *Camera) Ray(ndcX, ndcY float64) Ray {
	forward, right, up := c.basis()
	th := c.tanHalfFOV()
	dir := r3.Add(forward, r3.Add(
		r3.Scale(ndcX*th*c.Aspect, right),
		r3.Scale(ndcY*th, up),
	))
	return Ray{Origin: c.Position(), Dir: r3.Unit(dir)}
}

// Project maps a world point to normalised device coordinates. ok is
// false when the point is behind the camera.
func (c *Camera) Project(p r3.Vec) (ndcX, ndcY float64, ok bool) {
	forward, right, up := c.basis()
	v := r3.Sub(p, c.Position())
	depth := r3.Dot(v, forward)
	if depth <= 0 {
		return 0, 0, false
	}
	th := c.tanHalfFOV()
	return r3.Dot(v, right) / (depth * th * c.Aspect), r3.Dot(v, up) / (depth * th), true
}

// PixelToNDC converts drawable-region pixel coordinates (origin top-left)
// into normalised device coordinates.
func PixelToNDC(x, y float64, width, height int) (float64, float64) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	return x/float64(width)*2 - 1, -(y/float64(height))*2 + 1
}
