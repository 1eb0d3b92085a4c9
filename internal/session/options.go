package session

import (
	"context"
	"time"

	"github.com/signalsfoundry/impact-globe/core"
	"github.com/signalsfoundry/impact-globe/internal/imagery"
	"github.com/signalsfoundry/impact-globe/internal/logging"
	"github.com/signalsfoundry/impact-globe/model"
	"github.com/signalsfoundry/impact-globe/timectrl"
)

// MetricsRecorder captures scene metrics. *observability.SceneCollector
// satisfies it; a nil recorder disables metrics.
type MetricsRecorder interface {
	ObserveFrame(d time.Duration)
	SetEntityCounts(counts map[string]int)
	ObservePick(hit bool)
	ObserveSynthesis(source string)
	IncStaleResults()
	SetImageryDegraded(degraded bool)
}

type noopMetrics struct{}

func (noopMetrics) ObserveFrame(time.Duration)     {}
func (noopMetrics) SetEntityCounts(map[string]int) {}
func (noopMetrics) ObservePick(bool)               {}
func (noopMetrics) ObserveSynthesis(string)        {}
func (noopMetrics) IncStaleResults()               {}
func (noopMetrics) SetImageryDegraded(bool)        {}

// ImageryLoader fetches surface imagery from an ordered source chain.
type ImageryLoader interface {
	Load(ctx context.Context, sources []string) (*imagery.Image, error)
}

// Option customises a Session.
type Option func(*Session)

// WithLogger sets the base logger; the session annotates it with its ID.
func WithLogger(l logging.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetricsRecorder wires a metrics recorder.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(s *Session) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithProfiles replaces the detail tier table.
func WithProfiles(profiles map[model.DetailTier]model.DetailProfile) Option {
	return func(s *Session) {
		if len(profiles) > 0 {
			s.profiles = profiles
		}
	}
}

// WithTier selects the initial detail tier.
func WithTier(tier model.DetailTier) Option {
	return func(s *Session) {
		s.tier = tier
	}
}

// WithImagery loads surface imagery through loader using the source
// chain chain returns for the active profile.
func WithImagery(loader ImageryLoader, chain func(model.DetailProfile) []string) Option {
	return func(s *Session) {
		s.imagery = loader
		s.chain = chain
	}
}

// WithRefreshSource sets the display refresh signal used by Start.
func WithRefreshSource(src timectrl.RefreshSource) Option {
	return func(s *Session) {
		if src != nil {
			s.refresh = src
		}
	}
}

// WithOnSurfacePicked registers the pick callback. It is invoked once per
// successful pick, outside the session lock.
func WithOnSurfacePicked(fn func(model.GeoCoordinate)) Option {
	return func(s *Session) {
		s.onPicked = fn
	}
}

// WithSynthesizer replaces the trajectory synthesizer.
func WithSynthesizer(synth *core.Synthesizer) Option {
	return func(s *Session) {
		if synth != nil {
			s.synth = synth
		}
	}
}

// WithSeed fixes the star field seed.
func WithSeed(seed uint64) Option {
	return func(s *Session) {
		s.seed = seed
	}
}
