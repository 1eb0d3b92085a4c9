// Package session owns one live globe scene: its entities, camera, frame
// loop and drawable region. Sessions are independent; any number may
// coexist in a process.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/impact-globe/core"
	"github.com/signalsfoundry/impact-globe/internal/hazardmap"
	"github.com/signalsfoundry/impact-globe/internal/logging"
	"github.com/signalsfoundry/impact-globe/internal/observability"
	"github.com/signalsfoundry/impact-globe/internal/surface"
	"github.com/signalsfoundry/impact-globe/model"
	"github.com/signalsfoundry/impact-globe/scene"
	"github.com/signalsfoundry/impact-globe/timectrl"
)

var (
	// ErrContextUnavailable indicates the drawing context could not be
	// created. The session is terminal.
	ErrContextUnavailable = errors.New("drawing context unavailable")
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("session closed")
	// ErrStaleResult indicates a simulation result for superseded input.
	ErrStaleResult = errors.New("stale simulation result")
	// ErrProfileLocked indicates a detail profile change after the first frame.
	ErrProfileLocked = errors.New("detail profile locked after first frame")
	// ErrInvalidViewport indicates a non-positive drawable size.
	ErrInvalidViewport = errors.New("invalid viewport size")
)

// Status is the lifecycle state of a session.
type Status int

const (
	StatusRunning Status = iota
	StatusFailed
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFailed:
		return "failed"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Ticket binds an asynchronous simulation request to the input that
// triggered it.
type Ticket struct {
	generation uint64
}

// Generation returns the input generation the ticket was issued for.
func (t Ticket) Generation() uint64 { return t.generation }

// TicketFor rebuilds a ticket from a generation carried over the wire.
func TicketFor(generation uint64) Ticket { return Ticket{generation: generation} }

// Session is a live scene bound to one drawable region.
type Session struct {
	mu sync.Mutex

	id       string
	ctx      context.Context
	log      logging.Logger
	metrics  MetricsRecorder
	drawable surface.Surface

	profiles map[model.DetailTier]model.DetailProfile
	tier     model.DetailTier
	profile  model.DetailProfile
	seed     uint64

	imagery  ImageryLoader
	chain    func(model.DetailProfile) []string
	degraded bool
	texture  string

	reg         *scene.Registry
	mgr         *scene.Manager
	cam         *core.Camera
	synth       *core.Synthesizer
	sched       *timectrl.FrameScheduler
	refresh     timectrl.RefreshSource
	unsubscribe func()
	loopDone    <-chan struct{}

	impact     *model.GeoCoordinate
	object     *model.SelectedObject
	generation uint64

	width, height int
	frames        uint64

	onPicked func(model.GeoCoordinate)

	status Status
	err    error
}

// New attaches a session to drawable. When the drawing context cannot be
// created the returned session is in StatusFailed and the error wraps
// ErrContextUnavailable.
func New(ctx context.Context, drawable surface.Surface, opts ...Option) (*Session, error) {
	s := &Session{
		log:      logging.Noop(),
		metrics:  noopMetrics{},
		drawable: drawable,
		profiles: model.DefaultProfiles(),
		tier:     model.TierHigh,
		seed:     1,
		synth:    core.NewSynthesizer(),
		refresh:  timectrl.TickerSource{Interval: 16 * time.Millisecond},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.log = logging.WithSessionLogger(ctx, s.log)
	s.id = logging.SessionIDFromContext(s.ctx)
	s.profile = s.profileFor(s.tier)

	ctx, span := observability.Tracer().Start(s.ctx, "session.Init")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", s.id),
		attribute.String("detail.tier", string(s.profile.Tier)),
	)

	if drawable == nil {
		return s.fail(ctx, errors.New("no drawable region"))
	}
	if err := drawable.Init(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "drawing context unavailable")
		return s.fail(ctx, err)
	}

	s.loadImagery(ctx)

	s.reg = scene.NewRegistry()
	s.unsubscribe = s.reg.Subscribe(func(ev scene.Event) {
		if ev.Type == scene.EventEntityRemoved {
			s.drawable.Release(ev.Entity.ID)
		}
	})
	s.mgr = scene.NewManager(s.reg, s.profile, scene.WithSeed(s.seed))
	if err := s.mgr.Init(s.planetSurface()); err != nil {
		return s.fail(ctx, err)
	}

	s.width, s.height = drawable.Size()
	s.cam = core.NewCamera(s.width, s.height)
	s.synth.OnFallback = func(err error) {
		s.log.Warn(s.ctx, "orbital synthesis failed; using heuristic path", logging.Err(err))
	}
	s.sched = timectrl.NewFrameScheduler(s.refresh)
	s.sched.AddListener(s.onTick)

	s.log.Info(ctx, "session started",
		logging.String("tier", string(s.profile.Tier)),
		logging.Int("width", s.width),
		logging.Int("height", s.height),
		logging.Bool("degraded", s.degraded),
	)
	return s, nil
}

func (s *Session) fail(ctx context.Context, cause error) (*Session, error) {
	s.status = StatusFailed
	s.err = fmt.Errorf("%w: %v", ErrContextUnavailable, cause)
	s.log.Error(ctx, "session initialization failed", logging.Err(cause))
	return s, s.err
}

func (s *Session) profileFor(tier model.DetailTier) model.DetailProfile {
	if p, ok := s.profiles[tier]; ok {
		return p
	}
	if p, ok := s.profiles[model.TierHigh]; ok {
		return p
	}
	return model.ProfileFor(tier)
}

func (s *Session) loadImagery(ctx context.Context) {
	s.texture = ""
	s.degraded = true
	if s.imagery != nil && s.chain != nil {
		img, err := s.imagery.Load(ctx, s.chain(s.profile))
		if err != nil {
			s.log.Warn(ctx, "surface imagery unavailable; using procedural material", logging.Err(err))
		} else {
			s.texture = img.Source
			s.degraded = false
		}
	}
	s.metrics.SetImageryDegraded(s.degraded)
}

func (s *Session) planetSurface() scene.PlanetSurface {
	return scene.PlanetSurface{Texture: s.texture, Degraded: s.degraded}
}

// ID returns the session identifier attached to every log line.
func (s *Session) ID() string { return s.id }

// Status returns the lifecycle state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Err returns the terminal error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Degraded reports whether the planet uses the procedural fallback.
func (s *Session) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.degraded
}

// Profile returns the active detail profile.
func (s *Session) Profile() model.DetailProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

// Frames returns the number of frames rendered.
func (s *Session) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Entities returns a snapshot of the scene in render order.
func (s *Session) Entities() []scene.Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr == nil {
		return nil
	}
	return s.mgr.Snapshot()
}

// usableLocked returns the error every input gets when the session is not
// running.
func (s *Session) usableLocked() error {
	switch s.status {
	case StatusClosed:
		return ErrClosed
	case StatusFailed:
		return s.err
	}
	return nil
}

// SetImpactLocation sets or clears the impact coordinate.
func (s *Session) SetImpactLocation(c *model.GeoCoordinate) error {
	if c != nil {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if !s.mgr.SetImpact(c) {
		return nil
	}
	s.impact = s.mgr.Impact()
	s.generation++
	s.reconcileTrajectoryLocked()
	return nil
}

// SetSelectedObject sets or clears the selected object. Objects are
// compared by identity; pass a new value to force a new trajectory.
func (s *Session) SetSelectedObject(o *model.SelectedObject) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if s.object == o {
		return nil
	}
	s.object = o
	s.generation++
	s.reconcileTrajectoryLocked()
	return nil
}

// SetSimulationResult applies r immediately, regardless of generation.
func (s *Session) SetSimulationResult(r *model.SimulationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	s.mgr.SetResult(r)
	return nil
}

// BeginSimulation returns a ticket for an asynchronous simulation of the
// current input.
func (s *Session) BeginSimulation() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Ticket{generation: s.generation}
}

// DeliverSimulationResult applies r if no input changed since t was
// issued; otherwise it returns ErrStaleResult and leaves the scene alone.
func (s *Session) DeliverSimulationResult(t Ticket, r *model.SimulationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if t.generation != s.generation {
		s.metrics.IncStaleResults()
		s.log.Debug(s.ctx, "discarding stale simulation result")
		return ErrStaleResult
	}
	s.mgr.SetResult(r)
	return nil
}

// SetDetailProfile selects the detail tier. It is only allowed before the
// first frame.
func (s *Session) SetDetailProfile(tier model.DetailTier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	if s.frames > 0 {
		return ErrProfileLocked
	}
	p := s.profileFor(tier)
	if p == s.profile {
		return nil
	}
	s.tier = tier
	s.profile = p
	s.loadImagery(s.ctx)
	return s.mgr.Rebuild(p, s.planetSurface())
}

func (s *Session) reconcileTrajectoryLocked() {
	if s.impact == nil || s.object == nil {
		s.mgr.SetTrajectory(nil)
		return
	}
	_, span := observability.Tracer().Start(s.ctx, "trajectory.Synthesize")
	traj := s.synth.Synthesize(*s.impact, s.object)
	span.SetAttributes(
		attribute.String("trajectory.source", traj.Source.String()),
		attribute.Int("trajectory.points", traj.Len()),
	)
	span.End()

	s.metrics.ObserveSynthesis(traj.Source.String())
	s.log.Debug(s.ctx, "trajectory synthesized",
		logging.String("source", traj.Source.String()),
		logging.Int("points", traj.Len()),
		logging.String("impact", s.impact.String()),
	)
	s.mgr.SetTrajectory(traj)
}

// HazardOverlay builds the flat-map hazard zones for the current impact
// and result.
func (s *Session) HazardOverlay() (*hazardmap.Overlay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return nil, err
	}
	if s.impact == nil {
		return nil, fmt.Errorf("%w: no impact location", hazardmap.ErrNoResult)
	}
	return hazardmap.Build(*s.impact, s.mgr.Result())
}

// Pick resolves a normalised device coordinate against the planet. On a
// hit the pick callback is invoked once.
func (s *Session) Pick(ndcX, ndcY float64) (model.GeoCoordinate, bool, error) {
	s.mu.Lock()
	if err := s.usableLocked(); err != nil {
		s.mu.Unlock()
		return model.GeoCoordinate{}, false, err
	}
	coord, hit := core.PickSurface(s.cam, ndcX, ndcY, core.PlanetRadius)
	cb := s.onPicked
	s.metrics.ObservePick(hit)
	s.mu.Unlock()

	if hit && cb != nil {
		cb(coord)
	}
	return coord, hit, nil
}

// PickPixel resolves a drawable-region pixel (origin top-left).
func (s *Session) PickPixel(x, y float64) (model.GeoCoordinate, bool, error) {
	s.mu.Lock()
	w, h := s.width, s.height
	s.mu.Unlock()
	ndcX, ndcY := core.PixelToNDC(x, y, w, h)
	return s.Pick(ndcX, ndcY)
}

// Resize adapts the projection to a new drawable size without
// restarting the scene.
func (s *Session) Resize(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidViewport, width, height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	s.width, s.height = width, height
	s.cam.SetViewport(width, height)
	return nil
}

// Orbit rotates the camera around the planet.
func (s *Session) Orbit(dAzimuth, dElevation float64) error {
	if math.IsNaN(dAzimuth) || math.IsNaN(dElevation) || math.IsInf(dAzimuth, 0) || math.IsInf(dElevation, 0) {
		return fmt.Errorf("orbit: non-finite delta (%v, %v)", dAzimuth, dElevation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	s.cam.Orbit(dAzimuth, dElevation)
	return nil
}

// Zoom scales the camera distance, clamped to the orbit limits.
func (s *Session) Zoom(factor float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return err
	}
	s.cam.Zoom(factor)
	return nil
}

// Step runs one frame at now. Hosts without a refresh source, and tests,
// drive the session this way.
func (s *Session) Step(now time.Time) error {
	if err := s.Err(); err != nil {
		return err
	}
	if s.Status() == StatusClosed {
		return ErrClosed
	}
	s.sched.Step(now)
	return nil
}

// Start runs the frame loop on the refresh source until ctx is done or
// the session is closed. The returned channel closes when the loop exits.
func (s *Session) Start(ctx context.Context) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.usableLocked(); err != nil {
		return nil, err
	}
	s.loopDone = s.sched.Start(ctx)
	return s.loopDone, nil
}

func (s *Session) onTick(t timectrl.Tick) {
	start := time.Now()
	s.mu.Lock()
	if s.status != StatusRunning {
		s.mu.Unlock()
		return
	}
	s.mgr.Advance(t.Delta)
	frame := s.frameLocked(t)
	s.frames++
	counts := s.reg.Counts()
	s.mu.Unlock()

	if err := s.drawable.Render(frame); err != nil {
		s.log.Warn(s.ctx, "render failed", logging.Err(err), logging.Any("seq", t.Seq))
	}

	byName := make(map[string]int, len(counts))
	for k, n := range counts {
		byName[k.String()] = n
	}
	s.metrics.SetEntityCounts(byName)
	s.metrics.ObserveFrame(time.Since(start))
}

func (s *Session) frameLocked(t timectrl.Tick) surface.Frame {
	eye := s.cam.Position()
	f := surface.Frame{
		Seq:        t.Seq,
		Time:       t.Time,
		Width:      s.width,
		Height:     s.height,
		Background: scene.Background,
		Degraded:   s.degraded,
		Camera: surface.CameraState{
			Position:   eye,
			Target:     s.cam.Target,
			FOVDegrees: s.cam.FOVDegrees,
			Near:       s.cam.Near,
			Far:        s.cam.Far,
		},
		Entities: s.mgr.Snapshot(),
	}
	if s.impact != nil {
		f.ImpactOccluded = core.Occluded(eye, core.SurfacePosition(*s.impact, scene.MarkerRadius), core.PlanetRadius)
	}
	return f
}

// Close stops the loop, disposes every entity (releasing its drawable
// resources) and closes the drawable region. It is idempotent.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.status == StatusClosed {
		s.mu.Unlock()
		return nil
	}
	wasRunning := s.status == StatusRunning
	s.status = StatusClosed
	s.mu.Unlock()

	if !wasRunning {
		if s.drawable != nil {
			return s.drawable.Close()
		}
		return nil
	}

	s.sched.Stop()
	s.mu.Lock()
	done := s.loopDone
	s.mu.Unlock()
	if done != nil {
		<-done
	}

	s.mu.Lock()
	s.mgr.Dispose()
	s.unsubscribe()
	s.impact, s.object = nil, nil
	s.mu.Unlock()

	s.log.Info(s.ctx, "session closed", logging.Any("frames", s.Frames()))
	return s.drawable.Close()
}
