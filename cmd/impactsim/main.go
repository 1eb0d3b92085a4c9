package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/signalsfoundry/impact-globe/internal/config"
	"github.com/signalsfoundry/impact-globe/internal/imagery"
	"github.com/signalsfoundry/impact-globe/internal/logging"
	"github.com/signalsfoundry/impact-globe/internal/session"
	"github.com/signalsfoundry/impact-globe/internal/surface"
	"github.com/signalsfoundry/impact-globe/model"
	"github.com/signalsfoundry/impact-globe/scene"
)

// runOptions describes one headless scene run.
type runOptions struct {
	Frames     int
	Tick       time.Duration
	Impact     model.GeoCoordinate
	Object     *model.SelectedObject
	Result     *model.SimulationResult
	Tier       model.DetailTier
	Width      int
	Height     int
	Seed       uint64
	Every      int
	ImageryDir string
	Remote     []string
	Timeout    time.Duration
}

// summary is what a run reports once it completes.
type summary struct {
	Frames            uint64
	Source            string
	PathPoints        int
	BodyFinished      bool
	Pulses            int
	Craters           int
	Degraded          bool
	FinalEntities     int
	ReleasedDuringRun int
	ReleasedOnStop    int
}

func main() {
	configPath := flag.String("config", "", "Optional config file")
	frames := flag.Int("frames", 120, "number of frames to step")
	tick := flag.Duration("tick", 16*time.Millisecond, "simulated time between frames")
	lat := flag.Float64("lat", 40.7, "impact latitude in degrees")
	lon := flag.Float64("lon", -74.0, "impact longitude in degrees")
	objectPath := flag.String("object", "", "JSON file describing the selected object")
	name := flag.String("name", "Impactor", "object name when -object is not set")
	diameter := flag.Float64("diameter", model.DefaultDiameterM, "object diameter in metres")
	speed := flag.Float64("speed", model.DefaultSpeedKmS, "object speed in km/s")
	crater := flag.Float64("crater-km", 0, "crater radius to apply as a simulation result; 0 skips")
	every := flag.Int("every", 30, "print a status line every N frames")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}

	obj := &model.SelectedObject{Name: *name, DiameterM: *diameter, SpeedKmS: *speed}
	if *objectPath != "" {
		if obj, err = loadObject(*objectPath); err != nil {
			log.Error(ctx, "failed to load object", logging.String("path", *objectPath), logging.Err(err))
			os.Exit(1)
		}
	}
	var result *model.SimulationResult
	if *crater > 0 {
		result = &model.SimulationResult{CraterRadiusKm: *crater}
	}

	opts := runOptions{
		Frames:     *frames,
		Tick:       *tick,
		Impact:     model.GeoCoordinate{Lat: *lat, Lon: *lon},
		Object:     obj,
		Result:     result,
		Tier:       cfg.Tier,
		Width:      1280,
		Height:     720,
		Seed:       cfg.Seed,
		Every:      *every,
		ImageryDir: cfg.ImageryDir,
		Remote:     cfg.ImageryRemote,
		Timeout:    cfg.ImageryTimeout,
	}

	sum, err := simulate(ctx, opts, log, os.Stdout)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
	fmt.Printf("Simulation complete: frames=%d source=%s points=%d finished=%v degraded=%v released=%d\n",
		sum.Frames, sum.Source, sum.PathPoints, sum.BodyFinished, sum.Degraded, sum.ReleasedOnStop)
}

func loadObject(path string) (*model.SelectedObject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var obj model.SelectedObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &obj, nil
}

// simulate drives a session against an in-memory surface with simulated
// time and writes periodic status lines to out.
func simulate(ctx context.Context, opts runOptions, log logging.Logger, out io.Writer) (summary, error) {
	if opts.Frames <= 0 {
		return summary{}, fmt.Errorf("frames must be positive, got %d", opts.Frames)
	}
	if opts.Tick <= 0 {
		opts.Tick = 16 * time.Millisecond
	}

	rec := surface.NewRecorder(opts.Width, opts.Height)
	rec.Keep = 1
	loader := imagery.NewLoader(nil, opts.Timeout, log)
	chain := func(p model.DetailProfile) []string {
		return imagery.Chain(p, opts.ImageryDir, opts.Remote)
	}

	sess, err := session.New(ctx, rec,
		session.WithLogger(log),
		session.WithTier(opts.Tier),
		session.WithSeed(opts.Seed),
		session.WithImagery(loader, chain),
	)
	if err != nil {
		return summary{}, err
	}
	defer sess.Close()

	impact := opts.Impact
	if err := sess.SetImpactLocation(&impact); err != nil {
		return summary{}, err
	}
	if err := sess.SetSelectedObject(opts.Object); err != nil {
		return summary{}, err
	}
	if opts.Result != nil {
		ticket := sess.BeginSimulation()
		if err := sess.DeliverSimulationResult(ticket, opts.Result); err != nil {
			return summary{}, err
		}
	}

	fmt.Fprintf(out, "Starting scene: frames=%d tick=%s tier=%s impact=%s\n",
		opts.Frames, opts.Tick, sess.Profile().Tier, impact)

	var sum summary
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < opts.Frames; i++ {
		if err := sess.Step(now); err != nil {
			return sum, err
		}
		now = now.Add(opts.Tick)
		if opts.Every > 0 && (i+1)%opts.Every == 0 {
			printStatus(out, sess.Entities(), uint64(i+1))
		}
	}

	entities := sess.Entities()
	sum = summarize(entities)
	sum.Frames = sess.Frames()
	sum.Degraded = sess.Degraded()
	sum.FinalEntities = len(entities)
	sum.ReleasedDuringRun = len(rec.Released())

	if err := sess.Close(); err != nil {
		return sum, err
	}
	sum.ReleasedOnStop = len(rec.Released()) - sum.ReleasedDuringRun
	return sum, nil
}

func summarize(entities []scene.Entity) summary {
	var sum summary
	for _, e := range entities {
		switch e.Kind {
		case scene.KindTrajectoryPath:
			if e.Path.Trajectory != nil {
				sum.Source = e.Path.Trajectory.Source.String()
			}
			sum.PathPoints = len(e.Path.Vertices)
		case scene.KindMovingBody:
			sum.BodyFinished = e.Body.Finished
		case scene.KindGlowPulse:
			sum.Pulses++
		case scene.KindCraterRing:
			sum.Craters++
		}
	}
	return sum
}

func printStatus(out io.Writer, entities []scene.Entity, frame uint64) {
	for _, e := range entities {
		if e.Kind != scene.KindMovingBody {
			continue
		}
		fmt.Fprintf(out, "[frame %4d] body progress=%.3f visible=%-5v pos=(%.3f, %.3f, %.3f)\n",
			frame, e.Body.Progress, e.Visible, e.Position.X, e.Position.Y, e.Position.Z)
		return
	}
	fmt.Fprintf(out, "[frame %4d] no body in flight\n", frame)
}
