package scene

import (
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/impact-globe/core"
	"github.com/signalsfoundry/impact-globe/model"
)

// Scene constants shared by every detail tier.
const (
	Background uint32 = 0x000011

	AtmosphereRadius = 1.02
	CloudRadius      = 1.01

	MarkerRadius = 1.02
	MarkerSize   = 0.015

	PulseSize          = 0.02
	PulseStartOpacity  = 0.4
	PulseGrowth        = 0.02
	PulseFade          = 0.01
	PulseLifetimeSteps = 25 // scale reaches 1.5
	MaxLivePulses      = 8

	CraterScale           = 0.008
	CraterCap             = 0.3
	DefaultCraterRadiusKm = 0.1
	CraterInnerRatio      = 0.6

	// BaseStep is the body advance per tick, in path samples, at the
	// default travel speed.
	BaseStep      = 0.02
	BodySizeScale = 0.001
	BodySizeCap   = 0.05
)

// PlanetSurface selects the planet material.
type PlanetSurface struct {
	// Texture names the imagery source; empty with Degraded set means the
	// procedural fallback.
	Texture  string
	Degraded bool
}

// Manager reconciles scene entities against the latest impact location,
// simulation result and trajectory. It is not safe for concurrent use;
// the owning session serialises every call.
type Manager struct {
	reg     *Registry
	profile model.DetailProfile
	seed    uint64
	surface PlanetSurface

	impact *model.GeoCoordinate
	result *model.SimulationResult
	traj   *model.Trajectory
}

// ManagerOption customises Manager construction.
type ManagerOption func(*Manager)

// WithSeed fixes the star field RNG seed.
func WithSeed(seed uint64) ManagerOption {
	return func(m *Manager) {
		m.seed = seed
	}
}

// NewManager returns a manager writing into reg.
func NewManager(reg *Registry, profile model.DetailProfile, opts ...ManagerOption) *Manager {
	m := &Manager{
		reg:     reg,
		profile: profile,
		seed:    1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Registry returns the backing entity store.
func (m *Manager) Registry() *Registry { return m.reg }

// Profile returns the active detail profile.
func (m *Manager) Profile() model.DetailProfile { return m.profile }

// Impact returns the current impact coordinate, or nil.
func (m *Manager) Impact() *model.GeoCoordinate { return m.impact }

// Result returns the current simulation result, or nil.
func (m *Manager) Result() *model.SimulationResult { return m.result }

// Trajectory returns the current trajectory, or nil.
func (m *Manager) Trajectory() *model.Trajectory { return m.traj }

// Init creates the session-lifetime entities: planet, star field and
// atmosphere.
func (m *Manager) Init(surface PlanetSurface) error {
	m.surface = surface
	for _, e := range []*Entity{m.newPlanet(), m.newStarField(), m.newAtmosphere()} {
		if err := m.add(e); err != nil {
			return err
		}
	}
	return nil
}

// SetProfile swaps the detail profile and rebuilds every entity under it.
// Animation state is reset.
func (m *Manager) SetProfile(p model.DetailProfile) error {
	if p == m.profile {
		return nil
	}
	return m.Rebuild(p, m.surface)
}

// Rebuild discards every entity and recreates the scene under p and
// surface, replaying the current inputs.
func (m *Manager) Rebuild(p model.DetailProfile, surface PlanetSurface) error {
	impact, result, traj := m.impact, m.result, m.traj
	m.Dispose()
	m.profile = p
	if err := m.Init(surface); err != nil {
		return err
	}
	m.SetImpact(impact)
	m.SetResult(result)
	m.SetTrajectory(traj)
	return nil
}

// SetImpact reconciles the marker (and crater) against a new impact
// coordinate. It reports whether anything changed.
func (m *Manager) SetImpact(c *model.GeoCoordinate) bool {
	if sameCoordinate(m.impact, c) {
		return false
	}
	m.removeMarker()
	if c == nil {
		m.impact = nil
	} else {
		v := *c
		m.impact = &v
		m.addMarker(v)
	}
	m.reconcileCrater()
	return true
}

// SetResult reconciles the crater against a new simulation result.
func (m *Manager) SetResult(r *model.SimulationResult) bool {
	if m.result == r {
		return false
	}
	m.result = r
	m.reconcileCrater()
	return true
}

// SetTrajectory retires the current path and body and creates new ones
// for t. A nil trajectory leaves neither.
func (m *Manager) SetTrajectory(t *model.Trajectory) bool {
	if m.traj == t {
		return false
	}
	m.removeKind(KindMovingBody)
	m.removeKind(KindTrajectoryPath)
	m.traj = t
	if t == nil || t.Len() < 2 {
		return true
	}

	verts := core.PathPositions(t)
	_ = m.add(&Entity{
		Kind:        KindTrajectoryPath,
		Orientation: identity(),
		Scale:       1,
		Visible:     true,
		Material: Material{
			Color:       0xffff00,
			Opacity:     m.profile.PathOpacity,
			Transparent: true,
		},
		Path: &TrajectoryPath{Trajectory: t, Vertices: verts, Width: m.profile.PathWidth},
	})
	_ = m.add(&Entity{
		Kind:        KindMovingBody,
		Position:    verts[0],
		Orientation: identity(),
		Scale:       1,
		Visible:     true,
		Material: Material{
			Color:             0xffaa00,
			Emissive:          0xff6600,
			EmissiveIntensity: m.profile.BodyEmissive,
			Opacity:           1,
		},
		Body: &MovingBody{
			Path:       verts,
			SpeedRatio: speedRatio(t.SpeedHint),
			Size:       BodySize(t.DiameterHint),
			Segments:   m.profile.BodySegments,
		},
	})
	return true
}

// Advance runs one animation step: planet spin, body progress, then
// glow pulses. delta is the frame time since the previous step.
func (m *Manager) Advance(delta time.Duration) {
	if p := m.reg.Singleton(KindPlanet); p != nil {
		p.Planet.Spin = math.Mod(p.Planet.Spin+m.profile.RotationStep, 2*math.Pi)
		p.Orientation = r3.NewRotation(p.Planet.Spin, r3.Vec{Y: 1})
	}

	if b := m.reg.Singleton(KindMovingBody); b != nil {
		if pos, moved := b.Body.Advance(); moved {
			b.Position = pos
		}
		if b.Body.Finished {
			b.Visible = false
		}
	}

	m.advancePulses(delta)
}

// Snapshot returns detached copies of every entity in render order.
func (m *Manager) Snapshot() []Entity {
	list := m.reg.List()
	rank := make(map[Kind]int, len(Kinds))
	for i, k := range Kinds {
		rank[k] = i
	}
	sort.SliceStable(list, func(i, j int) bool {
		return rank[list[i].Kind] < rank[list[j].Kind]
	})
	out := make([]Entity, len(list))
	for i, e := range list {
		out[i] = e.Clone()
	}
	return out
}

// Dispose cancels owned tasks and removes every entity.
func (m *Manager) Dispose() {
	m.removeMarker()
	m.reg.Clear()
	m.impact, m.result, m.traj = nil, nil, nil
}

// Advance moves the body one step along its path and returns the new
// position. A finished body never moves again.
func (b *MovingBody) Advance() (r3.Vec, bool) {
	if b.Finished {
		return r3.Vec{}, false
	}
	if len(b.Path) < 2 {
		b.Finished = true
		return r3.Vec{}, false
	}
	segs := float64(len(b.Path) - 1)
	b.Progress += BaseStep * b.SpeedRatio / segs
	if b.Progress >= 1 {
		b.Progress = 1
		b.Finished = true
		return b.Path[len(b.Path)-1], true
	}
	idx := b.Progress * segs
	i := int(math.Floor(idx))
	return core.Lerp(b.Path[i], b.Path[i+1], idx-float64(i)), true
}

// CraterVisualRadius maps a physical crater radius (km) to scene units,
// capped so large craters never swamp the globe. Missing radii use the
// default crater size.
func CraterVisualRadius(radiusKm float64) float64 {
	if radiusKm <= 0 || math.IsNaN(radiusKm) {
		radiusKm = DefaultCraterRadiusKm
	}
	return math.Min(radiusKm*CraterScale, CraterCap)
}

// BodySize maps a diameter in metres to the moving body radius.
func BodySize(diameterM float64) float64 {
	if diameterM <= 0 || math.IsNaN(diameterM) {
		diameterM = model.DefaultDiameterM
	}
	return math.Min(diameterM*BodySizeScale, BodySizeCap)
}

func speedRatio(hint float64) float64 {
	if hint <= 0 || math.IsNaN(hint) || math.IsInf(hint, 0) {
		return 1
	}
	return hint / model.DefaultSpeedKmS
}

func (m *Manager) newPlanet() *Entity {
	mat := Material{
		Color:     0xffffff,
		Specular:  0x333333,
		Shininess: 10,
		Opacity:   1,
		Texture:   m.surface.Texture,
	}
	if m.profile.Tier == model.TierHigh {
		mat.Shininess = 15
	}
	if m.surface.Degraded || m.surface.Texture == "" {
		mat = Material{
			Color:      0x1e90ff,
			Specular:   0x111111,
			Shininess:  10,
			Opacity:    1,
			Procedural: true,
		}
	}
	return &Entity{
		Kind:        KindPlanet,
		Orientation: identity(),
		Scale:       1,
		Visible:     true,
		Material:    mat,
		Planet: &Planet{
			Radius:         core.PlanetRadius,
			Segments:       m.profile.TessellationDensity,
			ShadowsEnabled: m.profile.ShadowsEnabled,
		},
	}
}

func (m *Manager) newStarField() *Entity {
	rng := rand.New(rand.NewPCG(m.seed, m.seed^0x9e3779b97f4a7c15))
	pts := make([]r3.Vec, m.profile.StarCount)
	for i := range pts {
		radius := 100 + rng.Float64()*900
		theta := rng.Float64() * 2 * math.Pi
		phi := math.Acos(2*rng.Float64() - 1)
		pts[i] = r3.Vec{
			X: radius * math.Sin(phi) * math.Cos(theta),
			Y: radius * math.Sin(phi) * math.Sin(theta),
			Z: radius * math.Cos(phi),
		}
	}
	return &Entity{
		Kind:        KindStarField,
		Orientation: identity(),
		Scale:       1,
		Visible:     true,
		Material:    Material{Color: 0xffffff, Opacity: 1},
		Stars:       &StarField{Points: pts, Size: m.profile.StarSize},
	}
}

func (m *Manager) newAtmosphere() *Entity {
	shell := &AtmosphereShell{Radius: AtmosphereRadius, Segments: 32}
	if m.profile.CloudLayer && m.profile.OverlayOpacity > 0 {
		shell.CloudRadius = CloudRadius
		shell.CloudOpacity = m.profile.OverlayOpacity
	}
	return &Entity{
		Kind:        KindAtmosphereShell,
		Orientation: identity(),
		Scale:       1,
		Visible:     true,
		Material: Material{
			Color:       0x88ccff,
			Opacity:     0.1 * m.profile.AtmosphereStrength,
			Transparent: true,
			Side:        SideBack,
		},
		Atmosphere: shell,
	}
}

func (m *Manager) addMarker(c model.GeoCoordinate) {
	marker := &ImpactMarker{
		Coordinate: c,
		Size:       MarkerSize,
		Segments:   m.profile.MarkerSegments,
	}
	e := &Entity{
		Kind:        KindImpactMarker,
		Position:    core.SurfacePosition(c, MarkerRadius),
		Orientation: identity(),
		Scale:       1,
		Visible:     true,
		Material: Material{
			Color:             0xff0000,
			Emissive:          0xff4444,
			EmissiveIntensity: 0.8,
			Opacity:           1,
		},
		Marker: marker,
	}
	if err := m.add(e); err != nil {
		return
	}
	if m.profile.PulsesEnabled() {
		marker.spawner = NewRepeatingTask(m.profile.PulseInterval)
		m.spawnPulse(e)
	}
}

func (m *Manager) removeMarker() {
	e := m.reg.Singleton(KindImpactMarker)
	if e == nil {
		return
	}
	e.Marker.spawner.Cancel()
	owner := e.ID
	m.reg.RemoveWhere(func(p *Entity) bool {
		return p.Kind == KindGlowPulse && p.Pulse.Owner == owner
	})
	_ = m.reg.Remove(owner)
}

func (m *Manager) spawnPulse(marker *Entity) {
	if m.reg.Count(KindGlowPulse) >= MaxLivePulses {
		return
	}
	_ = m.reg.Add(&Entity{
		Kind:        KindGlowPulse,
		Position:    marker.Position,
		Orientation: identity(),
		Scale:       1,
		Visible:     true,
		Material: Material{
			Color:       0xff0000,
			Opacity:     PulseStartOpacity,
			Transparent: true,
		},
		Pulse: &GlowPulse{Owner: marker.ID, Size: PulseSize, Opacity: PulseStartOpacity},
	})
}

func (m *Manager) advancePulses(delta time.Duration) {
	for _, e := range m.reg.List() {
		if e.Kind != KindGlowPulse {
			continue
		}
		e.Pulse.Steps++
		e.Scale = 1 + float64(e.Pulse.Steps)*PulseGrowth
		e.Pulse.Opacity = math.Max(0, PulseStartOpacity-float64(e.Pulse.Steps)*PulseFade)
		e.Material.Opacity = e.Pulse.Opacity
	}
	m.reg.RemoveWhere(func(e *Entity) bool {
		return e.Kind == KindGlowPulse && e.Pulse.Steps >= PulseLifetimeSteps
	})

	if marker := m.reg.Singleton(KindImpactMarker); marker != nil {
		if marker.Marker.spawner.Advance(delta) {
			m.spawnPulse(marker)
		}
	}
}

func (m *Manager) reconcileCrater() {
	m.removeKind(KindCraterRing)
	if m.impact == nil || m.result == nil {
		return
	}
	outer := CraterVisualRadius(m.result.CraterRadiusKm)
	normal := r3.Unit(core.SurfacePosition(*m.impact, 1))
	_ = m.add(&Entity{
		Kind:        KindCraterRing,
		Position:    core.SurfacePosition(*m.impact, core.PlanetRadius),
		Orientation: facing(normal),
		Scale:       1,
		Visible:     true,
		Material: Material{
			Color:       0xff4444,
			Opacity:     m.profile.CraterOpacity,
			Transparent: true,
			Side:        SideDouble,
		},
		Crater: &CraterRing{
			Coordinate:       *m.impact,
			PhysicalRadiusKm: m.result.CraterRadiusKm,
			InnerRadius:      outer * CraterInnerRatio,
			OuterRadius:      outer,
			Segments:         m.profile.CraterSegments,
			Normal:           normal,
		},
	})
}

func (m *Manager) add(e *Entity) error {
	return m.reg.Add(e)
}

func (m *Manager) removeKind(kind Kind) {
	if e := m.reg.Singleton(kind); e != nil {
		_ = m.reg.Remove(e.ID)
	}
}

func sameCoordinate(a, b *model.GeoCoordinate) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func identity() r3.Rotation {
	return r3.NewRotation(0, r3.Vec{Y: 1})
}

// facing returns the rotation taking the ring's local +Z normal onto n.
func facing(n r3.Vec) r3.Rotation {
	z := r3.Vec{Z: 1}
	cos := math.Max(-1, math.Min(1, r3.Dot(z, n)))
	axis := r3.Cross(z, n)
	if r3.Norm(axis) < 1e-12 {
		if cos > 0 {
			return identity()
		}
		return r3.NewRotation(math.Pi, r3.Vec{X: 1})
	}
	return r3.NewRotation(math.Acos(cos), r3.Unit(axis))
}
