// Package hazardmap builds the flat 2D companion view of an impact: the
// concentric hazard zones of a simulation result drawn as geodesic rings
// on an equirectangular map.
package hazardmap

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/soniakeys/meeus/v3/globe"
	"github.com/soniakeys/unit"

	"github.com/signalsfoundry/impact-globe/model"
)

// DefaultRingVertices is the polygon resolution of each zone ring.
const DefaultRingVertices = 72

// meanEarthRadiusKm is used for the forward (destination point) problem.
const meanEarthRadiusKm = 6371.0

// ErrNoResult indicates an overlay was requested without a simulation result.
var ErrNoResult = errors.New("no simulation result")

// ZoneKind identifies one hazard zone.
type ZoneKind int

const (
	ZoneCrater ZoneKind = iota
	ZoneThermal
	ZoneShockwave
	ZoneEarthquake
	ZoneEjecta
)

func (k ZoneKind) String() string {
	switch k {
	case ZoneCrater:
		return "crater"
	case ZoneThermal:
		return "thermal"
	case ZoneShockwave:
		return "shockwave"
	case ZoneEarthquake:
		return "earthquake"
	case ZoneEjecta:
		return "ejecta"
	default:
		return fmt.Sprintf("zone(%d)", int(k))
	}
}

// Style is the fill for a zone.
type Style struct {
	Color   string
	Opacity float64
}

var styles = map[ZoneKind]Style{
	ZoneCrater:     {Color: "#ff4444", Opacity: 0.3},
	ZoneThermal:    {Color: "#ff4400", Opacity: 0.25},
	ZoneShockwave:  {Color: "#ff8800", Opacity: 0.2},
	ZoneEarthquake: {Color: "#ffaa00", Opacity: 0.15},
	ZoneEjecta:     {Color: "#ffff00", Opacity: 0.1},
}

// StyleFor returns the fill for kind.
func StyleFor(kind ZoneKind) Style {
	return styles[kind]
}

// Zone is one concentric hazard ring.
type Zone struct {
	Kind     ZoneKind
	RadiusKm float64
	Style    Style
	// Ring is a closed polygon; the first vertex is not repeated.
	Ring []model.GeoCoordinate
}

// Overlay is the set of zones around an impact, largest first.
type Overlay struct {
	Center model.GeoCoordinate
	Zones  []Zone
}

type options struct {
	vertices int
}

// Option customises Build.
type Option func(*options)

// WithRingVertices sets the ring polygon resolution.
func WithRingVertices(n int) Option {
	return func(o *options) {
		if n >= 3 {
			o.vertices = n
		}
	}
}

// Build derives the hazard overlay for an impact. Zones with a
// non-positive or non-finite radius are omitted.
func Build(impact model.GeoCoordinate, result *model.SimulationResult, opts ...Option) (*Overlay, error) {
	if err := impact.Validate(); err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrNoResult
	}
	o := options{vertices: DefaultRingVertices}
	for _, opt := range opts {
		opt(&o)
	}

	radii := []struct {
		kind ZoneKind
		km   float64
	}{
		{ZoneCrater, result.CraterRadiusKm},
		{ZoneThermal, result.ThermalRadiusKm},
		{ZoneShockwave, result.ShockwaveRadiusKm},
		{ZoneEarthquake, result.EarthquakeRadiusKm},
		{ZoneEjecta, result.EjectaRadiusKm},
	}

	ov := &Overlay{Center: impact}
	for _, r := range radii {
		if !(r.km > 0) || math.IsInf(r.km, 0) {
			continue
		}
		ov.Zones = append(ov.Zones, Zone{
			Kind:     r.kind,
			RadiusKm: r.km,
			Style:    StyleFor(r.kind),
			Ring:     Ring(impact, r.km, o.vertices),
		})
	}
	sort.SliceStable(ov.Zones, func(i, j int) bool {
		return ov.Zones[i].RadiusKm > ov.Zones[j].RadiusKm
	})
	return ov, nil
}

// Classify returns the innermost zone containing p.
func (o *Overlay) Classify(p model.GeoCoordinate) (Zone, bool) {
	if o == nil || len(o.Zones) == 0 {
		return Zone{}, false
	}
	d := DistanceKm(o.Center, p)
	for i := len(o.Zones) - 1; i >= 0; i-- {
		if d <= o.Zones[i].RadiusKm {
			return o.Zones[i], true
		}
	}
	return Zone{}, false
}

// DistanceKm is the surface distance between two coordinates on the
// Earth76 ellipsoid. Coincident and near-antipodal points, where the
// ellipsoidal formula is undefined, fall back to the spherical estimate.
func DistanceKm(a, b model.GeoCoordinate) float64 {
	if a == b {
		return 0
	}
	ca, cb := toGlobe(a), toGlobe(b)
	d := globe.Earth76.Distance(ca, cb)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		cos := math.Max(-1, math.Min(1, globe.ApproxAngularDistance(ca, cb)))
		return globe.ApproxLinearDistance(unit.Angle(math.Acos(cos)))
	}
	return d
}

// toGlobe converts to meeus coordinates, which measure longitude
// positive westward.
func toGlobe(c model.GeoCoordinate) globe.Coord {
	return globe.Coord{
		Lat: unit.AngleFromDeg(c.Lat),
		Lon: unit.AngleFromDeg(-c.Lon),
	}
}

// Ring returns n vertices at a constant great-circle distance from
// center, starting due north and proceeding clockwise.
func Ring(center model.GeoCoordinate, radiusKm float64, n int) []model.GeoCoordinate {
	if n < 3 {
		n = DefaultRingVertices
	}
	delta := radiusKm / meanEarthRadiusKm
	phi1 := center.Lat * math.Pi / 180
	lambda1 := center.Lon * math.Pi / 180
	sinPhi1, cosPhi1 := math.Sincos(phi1)
	sinDelta, cosDelta := math.Sincos(delta)

	ring := make([]model.GeoCoordinate, n)
	for i := range ring {
		theta := 2 * math.Pi * float64(i) / float64(n)
		sinTheta, cosTheta := math.Sincos(theta)
		sinPhi2 := sinPhi1*cosDelta + cosPhi1*sinDelta*cosTheta
		phi2 := math.Asin(math.Max(-1, math.Min(1, sinPhi2)))
		lambda2 := lambda1 + math.Atan2(sinTheta*sinDelta*cosPhi1, cosDelta-sinPhi1*sinPhi2)
		ring[i] = model.GeoCoordinate{
			Lat: phi2 * 180 / math.Pi,
			Lon: lambda2 * 180 / math.Pi,
		}.Normalized()
	}
	return ring
}
