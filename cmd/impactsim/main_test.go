package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/impact-globe/core"
	"github.com/signalsfoundry/impact-globe/internal/logging"
	"github.com/signalsfoundry/impact-globe/model"
)

// TestSimulateHeuristicApproach runs a short headless scene end to end.
func TestSimulateHeuristicApproach(t *testing.T) {
	var out bytes.Buffer
	opts := runOptions{
		Frames:     400,
		Tick:       16 * time.Millisecond,
		Impact:     model.GeoCoordinate{Lat: 40.7, Lon: -74},
		Object:     &model.SelectedObject{Name: "Apophis", DiameterM: 370, SpeedKmS: 40},
		Result:     &model.SimulationResult{CraterRadiusKm: 5},
		Tier:       model.TierHigh,
		Width:      800,
		Height:     600,
		Seed:       42,
		Every:      100,
		ImageryDir: t.TempDir(),
	}

	sum, err := simulate(context.Background(), opts, logging.Noop(), &out)
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if sum.Frames != 400 {
		t.Fatalf("expected 400 frames, got %d", sum.Frames)
	}
	if sum.Source != model.SourceHeuristic.String() {
		t.Fatalf("expected heuristic path, got %q", sum.Source)
	}
	if sum.PathPoints != core.HeuristicSamples+1 {
		t.Fatalf("expected %d path points, got %d", core.HeuristicSamples+1, sum.PathPoints)
	}
	if !sum.BodyFinished {
		t.Fatalf("expected body to reach the impact site")
	}
	if sum.Craters != 1 {
		t.Fatalf("expected one crater, got %d", sum.Craters)
	}
	if !sum.Degraded {
		t.Fatalf("expected procedural planet without imagery")
	}
	if sum.ReleasedDuringRun == 0 {
		t.Fatalf("expected expired glow pulses to be released while running")
	}
	if sum.ReleasedOnStop != sum.FinalEntities {
		t.Fatalf("expected %d releases on close, got %d", sum.FinalEntities, sum.ReleasedOnStop)
	}
	if got := strings.Count(out.String(), "[frame"); got != 4 {
		t.Fatalf("expected 4 status lines, got %d:\n%s", got, out.String())
	}
}

func TestSimulateOrbitalApproach(t *testing.T) {
	opts := runOptions{
		Frames: 10,
		Impact: model.GeoCoordinate{Lat: -10, Lon: 120},
		Object: &model.SelectedObject{
			Name: "Bennu",
			Elements: &model.OrbitalElements{
				Eccentricity:       0.204,
				InclinationDegrees: 6.03,
				PerihelionDistance: 0.897,
			},
		},
		Tier:       model.TierLow,
		ImageryDir: t.TempDir(),
		Width:      640,
		Height:     480,
	}
	sum, err := simulate(context.Background(), opts, logging.Noop(), &bytes.Buffer{})
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if sum.Source != model.SourceOrbital.String() {
		t.Fatalf("expected orbital path, got %q", sum.Source)
	}
	if sum.PathPoints != core.OrbitalSamples+1 {
		t.Fatalf("expected %d path points, got %d", core.OrbitalSamples+1, sum.PathPoints)
	}
	if sum.Pulses != 0 {
		t.Fatalf("low tier should not spawn pulses, got %d", sum.Pulses)
	}
}

func TestSimulateRejectsZeroFrames(t *testing.T) {
	if _, err := simulate(context.Background(), runOptions{}, logging.Noop(), &bytes.Buffer{}); err == nil {
		t.Fatalf("expected error for zero frames")
	}
}
