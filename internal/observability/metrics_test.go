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

	"github.com/signalsfoundry/geotrack/core"
)

func TestTrackCollectorRecordsFrames(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackCollector: %v", err)
	}

	collector.ObserveFrame(12*time.Millisecond, 7)
	collector.ObserveFrame(3*time.Millisecond, 4)

	if got := testutil.ToFloat64(collector.Frames); got != 2 {
		t.Fatalf("geotrack_frames_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.FrameEntities); got != 4 {
		t.Fatalf("geotrack_frame_entities = %v, want 4", got)
	}
	if count := histogramSampleCount(t, reg, "geotrack_frame_duration_seconds", nil); count != 2 {
		t.Fatalf("geotrack_frame_duration_seconds sample_count = %d, want 2", count)
	}
}

func TestTrackCollectorRecordsOutcomesAndDataQuality(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackCollector: %v", err)
	}

	collector.ObserveEntity("aircraft", core.ComponentRoute, core.OutcomeUnresolved)
	collector.ObserveEntity("aircraft", core.ComponentRoute, core.OutcomeUnresolved)
	collector.ObserveEntity("satellite", core.ComponentGroundTrack, core.OutcomeOK)
	collector.ObserveDataQuality("wildlife", core.FieldConfidence, 3)
	collector.ObserveDataQuality("wildlife", core.FieldConfidence, 0)

	if got := testutil.ToFloat64(collector.EntityOutcomes.WithLabelValues("aircraft", "route", "unresolved")); got != 2 {
		t.Fatalf("aircraft/route/unresolved = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.EntityOutcomes.WithLabelValues("satellite", "ground_track", "ok")); got != 1 {
		t.Fatalf("satellite/ground_track/ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.DataQualityIssues.WithLabelValues("wildlife", "confidence")); got != 3 {
		t.Fatalf("data quality = %v, want 3", got)
	}
}

func TestNewTrackCollectorReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewTrackCollector(reg)
	if err != nil {
		t.Fatalf("first NewTrackCollector: %v", err)
	}
	second, err := NewTrackCollector(reg)
	if err != nil {
		t.Fatalf("second NewTrackCollector: %v", err)
	}
	second.ObserveFrame(time.Millisecond, 1)
	if got := testutil.ToFloat64(first.Frames); got != 1 {
		t.Fatalf("collectors should share registered metrics, got %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *TrackCollector
	c.ObserveFrame(time.Second, 1)
	c.ObserveEntity("aircraft", core.ComponentRoute, core.OutcomeOK)
	c.ObserveDataQuality("aircraft", core.FieldUncertainty, 1)
}

func TestMetricsHandlerExposesEngineMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewTrackCollector(reg)
	if err != nil {
		t.Fatalf("NewTrackCollector: %v", err)
	}
	collector.ObserveFrame(time.Millisecond, 5)
	collector.ObserveEntity("vessel", core.ComponentRoute, core.OutcomeArrived)
	collector.ObserveDataQuality("aircraft", core.FieldUncertainty, 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d, want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, metric := range []string{
		"geotrack_frames_total",
		"geotrack_frame_duration_seconds",
		"geotrack_frame_entities 5",
		`geotrack_entity_computations_total{component="route",kind="vessel",outcome="arrived"} 1`,
		`geotrack_data_quality_observations_total{field="uncertainty_radius_m",kind="aircraft"} 1`,
	} {
		if !strings.Contains(body, metric) {
			t.Fatalf("expected %q in /metrics output:\n%s", metric, body)
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
