package observability

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SceneCollector bundles Prometheus metrics for rendering sessions and the
// HTTP host that serves them.
type SceneCollector struct {
	gatherer prometheus.Gatherer

	Frames           prometheus.Counter
	FrameDuration    prometheus.Histogram
	Entities         *prometheus.GaugeVec
	Picks            *prometheus.CounterVec
	Synthesis        *prometheus.CounterVec
	StaleResults     prometheus.Counter
	ImageryDegraded  prometheus.Gauge
	HTTPRequests     *prometheus.CounterVec
	DroppedBroadcast prometheus.Counter
}

// NewSceneCollector registers scene metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSceneCollector(reg prometheus.Registerer) (*SceneCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_frames_total",
		Help: "Total number of frames rendered.",
	}), "scene_frames_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "scene_frame_duration_seconds",
		Help:    "Time spent advancing and rendering one frame.",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.016, 0.033, 0.05, 0.1, 0.25},
	}), "scene_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	entities, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scene_entities",
		Help: "Current number of scene entities, labeled by kind.",
	}, []string{"kind"}), "scene_entities")
	if err != nil {
		return nil, err
	}

	picks, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scene_picks_total",
		Help: "Pointer picks resolved against the planet, labeled by result (hit or miss).",
	}, []string{"result"}), "scene_picks_total")
	if err != nil {
		return nil, err
	}

	synthesis, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trajectory_synthesis_total",
		Help: "Trajectories synthesised, labeled by the strategy that produced them.",
	}, []string{"source"}), "trajectory_synthesis_total")
	if err != nil {
		return nil, err
	}

	stale, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scene_stale_results_total",
		Help: "Simulation results discarded because a newer input superseded them.",
	}), "scene_stale_results_total")
	if err != nil {
		return nil, err
	}

	degraded, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scene_imagery_degraded",
		Help: "1 when the most recent session fell back to procedural planet material.",
	}), "scene_imagery_degraded")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests handled by the globe server, labeled by route and status code.",
	}, []string{"route", "code"}), "http_requests_total")
	if err != nil {
		return nil, err
	}

	dropped, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "surface_frames_dropped_total",
		Help: "Frames not delivered to a websocket client because its queue was full.",
	}), "surface_frames_dropped_total")
	if err != nil {
		return nil, err
	}

	return &SceneCollector{
		gatherer:         gatherer,
		Frames:           frames,
		FrameDuration:    duration,
		Entities:         entities,
		Picks:            picks,
		Synthesis:        synthesis,
		StaleResults:     stale,
		ImageryDegraded:  degraded,
		HTTPRequests:     requests,
		DroppedBroadcast: dropped,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SceneCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SceneCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveFrame records one rendered frame.
func (c *SceneCollector) ObserveFrame(d time.Duration) {
	if c == nil {
		return
	}
	c.Frames.Inc()
	c.FrameDuration.Observe(d.Seconds())
}

// SetEntityCounts replaces the per-kind entity gauges.
func (c *SceneCollector) SetEntityCounts(counts map[string]int) {
	if c == nil {
		return
	}
	for kind, n := range counts {
		c.Entities.WithLabelValues(kind).Set(float64(n))
	}
}

// ObservePick counts a resolved pick.
func (c *SceneCollector) ObservePick(hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.Picks.WithLabelValues(result).Inc()
}

// ObserveSynthesis counts a synthesised trajectory by source.
func (c *SceneCollector) ObserveSynthesis(source string) {
	if c == nil {
		return
	}
	c.Synthesis.WithLabelValues(source).Inc()
}

// IncStaleResults counts a superseded simulation result.
func (c *SceneCollector) IncStaleResults() {
	if c == nil {
		return
	}
	c.StaleResults.Inc()
}

// SetImageryDegraded records whether the planet uses procedural material.
func (c *SceneCollector) SetImageryDegraded(degraded bool) {
	if c == nil {
		return
	}
	v := 0.0
	if degraded {
		v = 1
	}
	c.ImageryDegraded.Set(v)
}

// IncDroppedFrames counts a frame dropped for a slow client.
func (c *SceneCollector) IncDroppedFrames() {
	if c == nil {
		return
	}
	c.DroppedBroadcast.Inc()
}

// Middleware records request counts for the named route.
func (c *SceneCollector) Middleware(route string, next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		c.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.code)).Inc()
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack passes through to the underlying writer so websocket upgrades
// work behind the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	w.code = http.StatusSwitchingProtocols
	return h.Hijack()
}
