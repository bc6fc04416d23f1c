package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/geotrack/internal/logging"
	"github.com/signalsfoundry/geotrack/model"
)

const tracerName = "github.com/signalsfoundry/geotrack/core"

// Component labels used when reporting per-entity outcomes.
const (
	ComponentRoute       = "route"
	ComponentGroundTrack = "ground_track"
	ComponentPredictions = "predictions"
)

// Recorder receives counts from Engine.Tick. The observability package's
// collector satisfies it; a nil Recorder disables recording.
type Recorder interface {
	ObserveFrame(duration time.Duration, entities int)
	ObserveEntity(kind, component string, outcome Outcome)
	ObserveDataQuality(kind, field string, count int)
}

// EngineConfig holds the resolutions and worker count used by Engine.
type EngineConfig struct {
	RoutePoints           int
	GroundTrackResolution int
	DecayStride           int
	DecayMode             DecayMode
	Workers               int
}

// DefaultEngineConfig returns the defaults used by the demo host.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		RoutePoints:           DefaultRoutePoints,
		GroundTrackResolution: DefaultGroundTrackResolution,
		DecayStride:           1,
		DecayMode:             DecayReport,
		Workers:               8,
	}
}

// Validate checks the configuration for values the engine cannot use.
func (c EngineConfig) Validate() error {
	if c.RoutePoints < 2 {
		return fmt.Errorf("%w: route points must be >= 2, got %d", ErrInvalidInput, c.RoutePoints)
	}
	if c.GroundTrackResolution < 2 || c.GroundTrackResolution%2 != 0 {
		return fmt.Errorf("%w: ground track resolution must be an even number >= 2, got %d", ErrInvalidInput, c.GroundTrackResolution)
	}
	if c.DecayStride < 0 {
		return fmt.Errorf("%w: decay stride must be >= 0, got %d", ErrInvalidInput, c.DecayStride)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be >= 1, got %d", ErrInvalidInput, c.Workers)
	}
	return nil
}

// Snapshot is the input to one tick: entity snapshots from the feed and the
// upstream predictions keyed by entity ID. The engine reads it and never
// retains or modifies it.
type Snapshot struct {
	Entities    []model.Entity
	Predictions map[string]model.Trajectory
}

// EntityFrame is everything the map layer needs to draw one entity.
type EntityFrame struct {
	EntityID     string                   `json:"entity_id"`
	Kind         string                   `json:"kind"`
	Position     model.GeoPoint           `json:"position"`
	Route        model.Route              `json:"route,omitempty"`
	GroundTrack  model.GroundTrack        `json:"ground_track,omitempty"`
	Predictions  model.Trajectory         `json:"predictions,omitempty"`
	Marker       *model.PredictedPosition `json:"marker,omitempty"`
	Observations []Observation            `json:"observations,omitempty"`
	Error        string                   `json:"error,omitempty"`

	// Err is the failure that stopped this entity's computation, if any.
	Err error `json:"-"`
}

// Frame is the immutable result of one tick.
type Frame struct {
	At       time.Time     `json:"at"`
	Entities []EntityFrame `json:"entities"`
}

// Engine turns entity snapshots into drawable paths. It holds only
// configuration and collaborators, so one Engine may serve concurrent ticks.
type Engine struct {
	cfg      EngineConfig
	builder  TrajectoryBuilder
	log      logging.Logger
	recorder Recorder
	tracer   trace.Tracer
}

// EngineOption customises NewEngine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) { e.recorder = r }
}

// WithTracerProvider sets the tracer provider used for tick spans.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewEngine validates cfg and returns an engine resolving destinations with
// reg.
func NewEngine(reg Registry, cfg EngineConfig, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:     cfg,
		builder: TrajectoryBuilder{Registry: reg, Points: cfg.RoutePoints},
		log:     logging.Noop(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() EngineConfig { return e.cfg }

// Tick computes a frame for every entity in snap at time at. Entities are
// processed in parallel; a failure for one entity is recorded on its
// EntityFrame and never fails the frame.
//
// If ctx is cancelled before the frame is complete, Tick returns ctx.Err()
// and no frame, so the caller never applies results for entities that have
// since gone away.
func (e *Engine) Tick(ctx context.Context, at time.Time, snap Snapshot) (*Frame, error) {
	ctx, span := e.tracer.Start(ctx, "engine.Tick", trace.WithAttributes(
		attribute.Int("entities", len(snap.Entities)),
		attribute.String("at", at.UTC().Format(time.RFC3339)),
	))
	defer span.End()

	start := time.Now()
	frames := make([]EntityFrame, len(snap.Entities))

	workers := e.cfg.Workers
	if workers > len(snap.Entities) {
		workers = len(snap.Entities)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				ent := snap.Entities[i]
				var preds model.Trajectory
				if ent != nil {
					preds = snap.Predictions[ent.State().ID]
				}
				frames[i] = e.computeEntity(ctx, at, ent, preds)
			}
		}()
	}

feed:
	for i := range snap.Entities {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "tick cancelled")
		e.log.Debug(ctx, "tick discarded", logging.Err(err))
		return nil, err
	}

	if e.recorder != nil {
		e.recorder.ObserveFrame(time.Since(start), len(frames))
	}
	return &Frame{At: at, Entities: frames}, nil
}

func (e *Engine) computeEntity(ctx context.Context, at time.Time, ent model.Entity, preds model.Trajectory) EntityFrame {
	if ent == nil {
		return EntityFrame{Kind: model.KindUnknown.String(), Err: fmt.Errorf("%w: nil entity", ErrInvalidInput), Error: "invalid input: nil entity"}
	}

	st := ent.State()
	kind := ent.Kind().String()
	_, span := e.tracer.Start(ctx, "engine.entity", trace.WithAttributes(
		attribute.String("entity.id", st.ID),
		attribute.String("entity.kind", kind),
	))
	defer span.End()

	log := e.log.With(logging.String("entity_id", st.ID), logging.String("kind", kind))
	out := EntityFrame{
		EntityID: st.ID,
		Kind:     kind,
		Position: st.Position,
	}

	if err := validatePoint("position", st.Position); err != nil {
		span.RecordError(err)
		log.Warn(ctx, "skipping entity with invalid position", logging.Err(err))
		return e.fail(out, err)
	}
	out.Position = st.Position.Canonical()

	if r, ok := ent.(model.Routed); ok {
		pos := st.Position
		route, outcome, err := e.builder.remainingRoute(&pos, r.Destination())
		e.observe(kind, ComponentRoute, outcome)
		switch outcome {
		case OutcomeInvalid:
			span.RecordError(err)
			log.Warn(ctx, "route not computed", logging.Err(err))
			return e.fail(out, err)
		case OutcomeUnresolved:
			log.Debug(ctx, "no route", logging.Err(fmt.Errorf("%w: destination %q", ErrUnresolvedReference, r.Destination())))
		case OutcomeDegenerate:
			log.Debug(ctx, "route collapsed to start point", logging.Err(fmt.Errorf("%w: destination %q", ErrDegenerateGeometry, r.Destination())))
		}
		out.Route = route
	}

	if o, ok := ent.(model.Orbiting); ok {
		track, err := ProjectGroundTrack(st.Position, o.Orbit(), e.cfg.GroundTrackResolution, WithHeading(st.HeadingDeg))
		switch {
		case err != nil:
			e.observe(kind, ComponentGroundTrack, OutcomeInvalid)
			span.RecordError(err)
			log.Warn(ctx, "ground track not computed", logging.Err(err))
			return e.fail(out, err)
		case len(track) == 0:
			e.observe(kind, ComponentGroundTrack, OutcomeEmpty)
			log.Debug(ctx, "ground track omitted: orbit lacks period or inclination")
		default:
			e.observe(kind, ComponentGroundTrack, OutcomeOK)
		}
		out.GroundTrack = track
	}

	if len(preds) > 0 {
		res, err := ApplyDecay(preds, DecayOptions{Stride: e.cfg.DecayStride, Mode: e.cfg.DecayMode})
		if err != nil {
			e.observe(kind, ComponentPredictions, OutcomeInvalid)
			span.RecordError(err)
			log.Warn(ctx, "predictions rejected", logging.Err(err))
			return e.fail(out, err)
		}
		e.observe(kind, ComponentPredictions, OutcomeOK)
		out.Predictions = res.Positions
		out.Observations = res.Observations
		if m, ok := Nearest(res.Positions, at); ok {
			out.Marker = &m
		}
		e.reportObservations(ctx, log, kind, res.Observations)
	}

	return out
}

func (e *Engine) fail(out EntityFrame, err error) EntityFrame {
	out.Err = err
	out.Error = err.Error()
	out.Route = nil
	out.GroundTrack = nil
	out.Predictions = nil
	out.Marker = nil
	out.Observations = nil
	return out
}

func (e *Engine) observe(kind, component string, outcome Outcome) {
	if e.recorder != nil {
		e.recorder.ObserveEntity(kind, component, outcome)
	}
}

func (e *Engine) reportObservations(ctx context.Context, log logging.Logger, kind string, obs []Observation) {
	if len(obs) == 0 {
		return
	}
	counts := map[string]int{}
	for _, o := range obs {
		counts[o.Field]++
		log.Warn(ctx, "prediction decay contract violated",
			logging.String("field", o.Field),
			logging.Int("index", o.Index),
			logging.Float64("previous", o.Previous),
			logging.Float64("value", o.Value),
			logging.Bool("repaired", o.Repaired),
		)
	}
	if e.recorder == nil {
		return
	}
	for field, n := range counts {
		e.recorder.ObserveDataQuality(kind, field, n)
	}
}

// IsInvalidInput reports whether err was caused by malformed input.
func IsInvalidInput(err error) bool { return errors.Is(err, ErrInvalidInput) }
