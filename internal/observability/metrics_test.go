package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestSceneCollectorRecordsFrames(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSceneCollector(reg)
	if err != nil {
		t.Fatalf("NewSceneCollector: %v", err)
	}

	collector.ObserveFrame(4 * time.Millisecond)
	collector.ObserveFrame(6 * time.Millisecond)

	if got := testutil.ToFloat64(collector.Frames); got != 2 {
		t.Fatalf("scene_frames_total = %v, want 2", got)
	}
	if count := histogramSampleCount(t, reg, "scene_frame_duration_seconds", nil); count != 2 {
		t.Fatalf("scene_frame_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestSceneCollectorLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSceneCollector(reg)
	if err != nil {
		t.Fatalf("NewSceneCollector: %v", err)
	}

	collector.ObservePick(true)
	collector.ObservePick(false)
	collector.ObservePick(false)
	collector.ObserveSynthesis("orbital")
	collector.SetEntityCounts(map[string]int{"planet": 1, "glow_pulse": 3})
	collector.IncStaleResults()
	collector.SetImageryDegraded(true)

	if got := testutil.ToFloat64(collector.Picks.WithLabelValues("miss")); got != 2 {
		t.Fatalf("scene_picks_total{result=miss} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.Synthesis.WithLabelValues("orbital")); got != 1 {
		t.Fatalf("trajectory_synthesis_total{source=orbital} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.Entities.WithLabelValues("glow_pulse")); got != 3 {
		t.Fatalf("scene_entities{kind=glow_pulse} = %v, want 3", got)
	}
	if got := testutil.ToFloat64(collector.StaleResults); got != 1 {
		t.Fatalf("scene_stale_results_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.ImageryDegraded); got != 1 {
		t.Fatalf("scene_imagery_degraded = %v, want 1", got)
	}
}

func TestSceneCollectorReregisterReturnsExisting(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewSceneCollector(reg)
	if err != nil {
		t.Fatalf("first NewSceneCollector: %v", err)
	}
	second, err := NewSceneCollector(reg)
	if err != nil {
		t.Fatalf("second NewSceneCollector: %v", err)
	}
	second.ObserveFrame(time.Millisecond)
	if got := testutil.ToFloat64(first.Frames); got != 1 {
		t.Fatalf("collectors do not share counters: %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *SceneCollector
	c.ObserveFrame(time.Millisecond)
	c.ObservePick(true)
	c.ObserveSynthesis("heuristic")
	c.SetEntityCounts(map[string]int{"planet": 1})
	c.IncStaleResults()
	c.SetImageryDegraded(false)
	c.IncDroppedFrames()
	if c.Gatherer() != nil {
		t.Fatalf("nil collector returned a gatherer")
	}
}

func TestMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewSceneCollector(reg)
	if err != nil {
		t.Fatalf("NewSceneCollector: %v", err)
	}

	h := collector.Middleware("/healthz", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := testutil.ToFloat64(collector.HTTPRequests.WithLabelValues("/healthz", "418")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}

	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{"scene_frames_total", "http_requests_total", "scene_imagery_degraded"} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output", metric)
		}
	}
}

func histogramSampleCount(t *testing.T, gatherer prometheus.Gatherer, name string, labels map[string]string) uint64 {
	t.Helper()

	metrics, err := gatherer.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.Metric {
			if matchLabels(m.GetLabel(), labels) && m.GetHistogram() != nil {
				return m.GetHistogram().GetSampleCount()
			}
		}
	}
	return 0
}

func matchLabels(got []*dto.LabelPair, want map[string]string) bool {
	if len(got) < len(want) {
		return false
	}
	matched := 0
	for _, lp := range got {
		if val, ok := want[lp.GetName()]; ok && val == lp.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
