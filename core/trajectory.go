package core

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/impact-globe/model"
)

// Visually tuned synthesis constants. They have no physical derivation.
const (
	OrbitalSamples       = 30
	OrbitalAngularScale  = 0.3   // degrees of lat/lon per in-plane unit
	OrbitalAltitudeScale = 800.0 // altitude units per cross-plane unit

	HeuristicSamples         = 15
	HeuristicLatOffset       = 25.0
	HeuristicLonOffset       = -35.0
	HeuristicBulge           = 0.3
	HeuristicAltitudeCeiling = 800.0
)

var (
	// ErrOrbitDegenerate indicates the conic produced a non-finite or
	// non-positive radius (for example eccentricity >= 1).
	ErrOrbitDegenerate = errors.New("degenerate orbit")
	// ErrTooFewSamples indicates a path with fewer than two samples.
	ErrTooFewSamples = errors.New("trajectory needs at least two samples")
)

// Strategy builds the sample path for an approach toward impact.
type Strategy interface {
	Build(impact model.GeoCoordinate) ([]model.TrajectoryPoint, error)
}

// OrbitalStrategy sweeps the true anomaly through one revolution of the
// conic described by Elements and projects it around the impact point.
type OrbitalStrategy struct {
	Elements      model.OrbitalElements
	Samples       int
	AngularScale  float64
	AltitudeScale float64
}

// Build implements Strategy. Panics raised during computation are
// recovered and reported as ErrOrbitDegenerate.
func (s OrbitalStrategy) Build(impact model.GeoCoordinate) (pts []model.TrajectoryPoint, err error) {
	defer func() {
		if r := recover(); r != nil {
			pts = nil
			err = fmt.Errorf("%w: %v", ErrOrbitDegenerate, r)
		}
	}()

	el, _ := s.Elements.Sanitized()
	n := s.Samples
	if n < 1 {
		n = OrbitalSamples
	}
	angular := s.AngularScale
	if angular == 0 {
		angular = OrbitalAngularScale
	}
	altScale := s.AltitudeScale
	if altScale == 0 {
		altScale = OrbitalAltitudeScale
	}

	e := el.Eccentricity
	p := el.PerihelionDistance
	inc := el.InclinationDegrees * DegToRad
	sinInc, cosInc := math.Sin(inc), math.Cos(inc)

	pts = make([]model.TrajectoryPoint, 0, n+1)
	for i := 0; i <= n; i++ {
		nu := 2 * math.Pi * float64(i) / float64(n)
		r := p * (1 + e) / (1 + e*math.Cos(nu))
		if math.IsNaN(r) || math.IsInf(r, 0) || r <= 0 {
			return nil, fmt.Errorf("%w: radius %v at sample %d", ErrOrbitDegenerate, r, i)
		}

		planeX := r * math.Cos(nu)
		planeZ := r * math.Sin(nu)
		// Tilt the orbital plane about the X axis by the inclination.
		crossY := planeZ * sinInc
		tiltedZ := planeZ * cosInc

		c := model.GeoCoordinate{
			Lat: impact.Lat + planeX*angular,
			Lon: impact.Lon + tiltedZ*angular,
		}.Normalized()
		pts = append(pts, model.TrajectoryPoint{
			Lat:      c.Lat,
			Lon:      c.Lon,
			Altitude: math.Max(0, crossY*altScale),
		})
	}
	return pts, nil
}

// HeuristicStrategy interpolates from a fixed offset above and west of
// the impact down to the impact point, with a sinusoidal lateral bulge
// and linearly decaying altitude.
type HeuristicStrategy struct {
	Samples   int
	LatOffset float64
	LonOffset float64
	Bulge     float64
	Ceiling   float64
}

// DefaultHeuristic returns the standard fallback strategy.
func DefaultHeuristic() HeuristicStrategy {
	return HeuristicStrategy{
		Samples:   HeuristicSamples,
		LatOffset: HeuristicLatOffset,
		LonOffset: HeuristicLonOffset,
		Bulge:     HeuristicBulge,
		Ceiling:   HeuristicAltitudeCeiling,
	}
}

// Build implements Strategy. It cannot fail for finite input.
func (s HeuristicStrategy) Build(impact model.GeoCoordinate) ([]model.TrajectoryPoint, error) {
	m := s.Samples
	if m < 1 {
		m = HeuristicSamples
	}
	pts := make([]model.TrajectoryPoint, 0, m+1)
	for i := 0; i <= m; i++ {
		t := float64(i) / float64(m)
		remain := 1 - t
		c := model.GeoCoordinate{
			Lat: impact.Lat + s.LatOffset*remain,
			Lon: impact.Lon + s.LonOffset*remain + math.Sin(math.Pi*t)*s.Bulge,
		}.Normalized()
		pts = append(pts, model.TrajectoryPoint{
			Lat:      c.Lat,
			Lon:      c.Lon,
			Altitude: s.Ceiling * remain,
		})
	}
	// sin(pi) is not exactly zero; pin the terminal sample to the impact.
	pts[m].Lat, pts[m].Lon, pts[m].Altitude = impact.Lat, impact.Lon, 0
	return pts, nil
}

// NewStrategy chooses a strategy for the selected object: orbital when it
// carries elements, heuristic otherwise.
func NewStrategy(obj *model.SelectedObject) Strategy {
	if obj != nil && obj.Elements != nil {
		return OrbitalStrategy{Elements: *obj.Elements}
	}
	return DefaultHeuristic()
}

// Synthesizer turns a selected object and impact coordinate into a
// Trajectory. It never fails: any orbital failure falls back to the
// heuristic path.
type Synthesizer struct {
	Orbital   OrbitalStrategy
	Heuristic HeuristicStrategy

	// OnFallback, when set, observes every orbital failure absorbed by
	// the heuristic.
	OnFallback func(error)
}

// NewSynthesizer returns a Synthesizer with the standard constants.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{
		Orbital: OrbitalStrategy{
			Samples:       OrbitalSamples,
			AngularScale:  OrbitalAngularScale,
			AltitudeScale: OrbitalAltitudeScale,
		},
		Heuristic: DefaultHeuristic(),
	}
}

// Synthesize builds a fresh trajectory toward impact.
func (s *Synthesizer) Synthesize(impact model.GeoCoordinate, obj *model.SelectedObject) *model.Trajectory {
	traj := &model.Trajectory{
		Impact: impact,
		Source: model.SourceHeuristic,
	}
	if obj != nil {
		traj.SpeedHint = obj.SpeedKmS
		traj.DiameterHint = obj.DiameterM
	}

	if obj != nil && obj.Elements != nil {
		el, _ := obj.Elements.Sanitized()
		orbital := s.Orbital
		orbital.Elements = el
		pts, err := finishPath(orbital.Build(impact))
		if err == nil {
			traj.Points = pts
			traj.Source = model.SourceOrbital
			traj.Elements = &el
			return traj
		}
		if s.OnFallback != nil {
			s.OnFallback(err)
		}
	}

	pts, err := finishPath(s.Heuristic.Build(impact))
	if err != nil {
		// Only reachable with non-finite impact input; emit the minimal
		// two-sample path so callers are never left without one.
		pts, _ = finishPath(DefaultHeuristic().Build(impact.Normalized()))
		if len(pts) < 2 {
			pts = []model.TrajectoryPoint{
				{Altitude: HeuristicAltitudeCeiling},
				{CumulativeDistance: HeuristicAltitudeCeiling / AltitudeScale},
			}
		}
	}
	traj.Points = pts
	return traj
}

// finishPath validates sample count and fills CumulativeDistance with
// the running chord length in scene units.
func finishPath(pts []model.TrajectoryPoint, err error) ([]model.TrajectoryPoint, error) {
	if err != nil {
		return nil, err
	}
	if len(pts) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrTooFewSamples, len(pts))
	}
	seg := make([]float64, len(pts))
	prev := PointPosition(pts[0])
	for i := 1; i < len(pts); i++ {
		cur := PointPosition(pts[i])
		seg[i] = r3.Norm(r3.Sub(cur, prev))
		prev = cur
	}
	cum := floats.CumSum(make([]float64, len(seg)), seg)
	for i := range pts {
		if math.IsNaN(cum[i]) {
			return nil, fmt.Errorf("%w: non-finite distance at sample %d", ErrOrbitDegenerate, i)
		}
		pts[i].CumulativeDistance = cum[i]
	}
	return pts, nil
}
