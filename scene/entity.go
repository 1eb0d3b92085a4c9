package scene

import (
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/impact-globe/model"
)

// Kind tags the payload carried by an Entity.
type Kind int

const (
	KindPlanet Kind = iota
	KindStarField
	KindAtmosphereShell
	KindImpactMarker
	KindGlowPulse
	KindCraterRing
	KindTrajectoryPath
	KindMovingBody
)

// Kinds lists every entity kind in render order.
var Kinds = []Kind{
	KindStarField,
	KindPlanet,
	KindAtmosphereShell,
	KindCraterRing,
	KindTrajectoryPath,
	KindImpactMarker,
	KindGlowPulse,
	KindMovingBody,
}

func (k Kind) String() string {
	switch k {
	case KindPlanet:
		return "planet"
	case KindStarField:
		return "star_field"
	case KindAtmosphereShell:
		return "atmosphere_shell"
	case KindImpactMarker:
		return "impact_marker"
	case KindGlowPulse:
		return "glow_pulse"
	case KindCraterRing:
		return "crater_ring"
	case KindTrajectoryPath:
		return "trajectory_path"
	case KindMovingBody:
		return "moving_body"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Singleton reports whether at most one entity of this kind may exist.
// Glow pulses are the only kind allowed to coexist.
func (k Kind) Singleton() bool {
	return k != KindGlowPulse
}

// Side selects which faces of a surface are drawn.
type Side int

const (
	SideFront Side = iota
	SideBack
	SideDouble
)

// Material describes how an entity is shaded. Colors are 0xRRGGBB.
type Material struct {
	Color             uint32
	Specular          uint32
	Emissive          uint32
	EmissiveIntensity float64
	Shininess         float64
	Opacity           float64
	Transparent       bool
	Side              Side

	// Texture is the imagery source for textured materials.
	Texture string
	// Procedural marks the flat fallback used when imagery is unavailable.
	Procedural bool
}

// Entity is a visual object owned by the scene. Exactly one payload
// pointer, matching Kind, is non-nil.
type Entity struct {
	ID          uuid.UUID
	Kind        Kind
	Position    r3.Vec
	Orientation r3.Rotation
	Scale       float64
	Visible     bool
	Material    Material

	Planet     *Planet
	Stars      *StarField
	Atmosphere *AtmosphereShell
	Marker     *ImpactMarker
	Pulse      *GlowPulse
	Crater     *CraterRing
	Path       *TrajectoryPath
	Body       *MovingBody
}

// Planet is the globe mesh.
type Planet struct {
	Radius         float64
	Segments       int
	Spin           float64 // radians about +Y
	ShadowsEnabled bool
}

// StarField is the ambient point cloud. Points are shared between
// snapshots and must not be modified.
type StarField struct {
	Points []r3.Vec
	Size   float64
}

// AtmosphereShell is the translucent halo, with an optional cloud layer.
type AtmosphereShell struct {
	Radius       float64
	Segments     int
	CloudRadius  float64
	CloudOpacity float64 // zero when the profile has no cloud layer
}

// ImpactMarker pins the impact coordinate on the surface.
type ImpactMarker struct {
	Coordinate model.GeoCoordinate
	Size       float64
	Segments   int

	spawner *RepeatingTask
}

// GlowPulse is a short-lived expanding halo spawned by a marker.
type GlowPulse struct {
	Owner   uuid.UUID
	Steps   int
	Size    float64
	Opacity float64
}

// CraterRing is the crater footprint drawn flat on the surface.
type CraterRing struct {
	Coordinate       model.GeoCoordinate
	PhysicalRadiusKm float64
	InnerRadius      float64
	OuterRadius      float64
	Segments         int
	Normal           r3.Vec
}

// TrajectoryPath is the polyline of an approach path.
type TrajectoryPath struct {
	Trajectory *model.Trajectory
	Vertices   []r3.Vec
	Width      float64
}

// MovingBody is the object travelling along a trajectory path.
type MovingBody struct {
	Path       []r3.Vec
	Progress   float64 // normalised [0, 1] along Path
	SpeedRatio float64
	Finished   bool
	Size       float64
	Segments   int
}

// Validate checks that the payload matches Kind.
func (e *Entity) Validate() error {
	var ok bool
	switch e.Kind {
	case KindPlanet:
		ok = e.Planet != nil
	case KindStarField:
		ok = e.Stars != nil
	case KindAtmosphereShell:
		ok = e.Atmosphere != nil
	case KindImpactMarker:
		ok = e.Marker != nil
	case KindGlowPulse:
		ok = e.Pulse != nil
	case KindCraterRing:
		ok = e.Crater != nil
	case KindTrajectoryPath:
		ok = e.Path != nil
	case KindMovingBody:
		ok = e.Body != nil
	default:
		return fmt.Errorf("%w: %v", ErrUnknownKind, e.Kind)
	}
	if !ok {
		return fmt.Errorf("%w: %v entity without payload", ErrPayloadMismatch, e.Kind)
	}
	return nil
}

// Clone returns a copy whose payload structs are detached from e.
// Point slices are shared; they are never mutated after creation.
func (e *Entity) Clone() Entity {
	c := *e
	switch e.Kind {
	case KindPlanet:
		p := *e.Planet
		c.Planet = &p
	case KindStarField:
		s := *e.Stars
		c.Stars = &s
	case KindAtmosphereShell:
		a := *e.Atmosphere
		c.Atmosphere = &a
	case KindImpactMarker:
		m := *e.Marker
		m.spawner = nil
		c.Marker = &m
	case KindGlowPulse:
		p := *e.Pulse
		c.Pulse = &p
	case KindCraterRing:
		r := *e.Crater
		c.Crater = &r
	case KindTrajectoryPath:
		p := *e.Path
		c.Path = &p
	case KindMovingBody:
		b := *e.Body
		c.Body = &b
	}
	return c
}
