package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalsfoundry/geotrack/core"
)

// TrackCollector bundles Prometheus metrics for the trajectory engine. It
// satisfies core.Recorder.
type TrackCollector struct {
	gatherer prometheus.Gatherer

	Frames            prometheus.Counter
	FrameDurations    prometheus.Histogram
	FrameEntities     prometheus.Gauge
	EntityOutcomes    *prometheus.CounterVec
	DataQualityIssues *prometheus.CounterVec
}

var _ core.Recorder = (*TrackCollector)(nil)

// NewTrackCollector registers engine metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewTrackCollector(reg prometheus.Registerer) (*TrackCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geotrack_frames_total",
		Help: "Total number of frames produced by the trajectory engine.",
	}), "geotrack_frames_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geotrack_frame_duration_seconds",
		Help:    "Time taken to compute one frame for all entities.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}), "geotrack_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	entities, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geotrack_frame_entities",
		Help: "Number of entities in the most recent frame.",
	}), "geotrack_frame_entities")
	if err != nil {
		return nil, err
	}

	outcomes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotrack_entity_computations_total",
		Help: "Per-entity computations, labeled by entity kind, component, and outcome.",
	}, []string{"kind", "component", "outcome"}), "geotrack_entity_computations_total")
	if err != nil {
		return nil, err
	}

	quality, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geotrack_data_quality_observations_total",
		Help: "Upstream prediction points that broke the confidence/uncertainty decay contract.",
	}, []string{"kind", "field"}), "geotrack_data_quality_observations_total")
	if err != nil {
		return nil, err
	}

	return &TrackCollector{
		gatherer:          gatherer,
		Frames:            frames,
		FrameDurations:    durations,
		FrameEntities:     entities,
		EntityOutcomes:    outcomes,
		DataQualityIssues: quality,
	}, nil
}

// ObserveFrame records one completed frame.
func (c *TrackCollector) ObserveFrame(d time.Duration, entities int) {
	if c == nil {
		return
	}
	c.Frames.Inc()
	c.FrameDurations.Observe(d.Seconds())
	c.FrameEntities.Set(float64(entities))
}

// ObserveEntity records the outcome of one component for one entity.
func (c *TrackCollector) ObserveEntity(kind, component string, outcome core.Outcome) {
	if c == nil {
		return
	}
	c.EntityOutcomes.WithLabelValues(kind, component, string(outcome)).Inc()
}

// ObserveDataQuality adds count observations for kind and field.
func (c *TrackCollector) ObserveDataQuality(kind, field string, count int) {
	if c == nil || count <= 0 {
		return
	}
	c.DataQualityIssues.WithLabelValues(kind, field).Add(float64(count))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *TrackCollector) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if c != nil && c.gatherer != nil {
		gatherer = c.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
