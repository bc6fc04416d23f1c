// Package feed normalises upstream entity snapshots into the tagged entity
// variants the trajectory engine reads.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/signalsfoundry/geotrack/core"
	"github.com/signalsfoundry/geotrack/model"
)

// ErrInvalidEntity marks a snapshot entry that was skipped.
var ErrInvalidEntity = errors.New("feed: invalid entity")

// EntityRecord is the wire form of one tracked entity. Kind selects which of
// the variant-specific fields apply. Exactly one speed field is read, in the
// order speed_mps, speed_knots, speed_kmps.
type EntityRecord struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`

	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	AltitudeM  *float64 `json:"alt_m,omitempty"`
	AltitudeFt *float64 `json:"alt_ft,omitempty"`

	SpeedMps   *float64 `json:"speed_mps,omitempty"`
	SpeedKnots *float64 `json:"speed_knots,omitempty"`
	SpeedKmps  *float64 `json:"speed_kmps,omitempty"`
	HeadingDeg *float64 `json:"heading_deg,omitempty"`

	Destination string `json:"destination,omitempty"`

	// aircraft
	ICAO24          string   `json:"icao24,omitempty"`
	Callsign        string   `json:"callsign,omitempty"`
	Origin          string   `json:"origin,omitempty"`
	OnGround        bool     `json:"on_ground,omitempty"`
	VerticalRateMps *float64 `json:"vertical_rate_mps,omitempty"`

	// vessel
	MMSI      string   `json:"mmsi,omitempty"`
	Name      string   `json:"name,omitempty"`
	ShipType  string   `json:"ship_type,omitempty"`
	CourseDeg *float64 `json:"course_deg,omitempty"`

	// satellite
	NoradID uint32       `json:"norad_id,omitempty"`
	Orbit   *OrbitRecord `json:"orbit,omitempty"`
	TLE     []string     `json:"tle,omitempty"`

	// wildlife
	TagID   string `json:"tag_id,omitempty"`
	Species string `json:"species,omitempty"`
}

// OrbitRecord is the wire form of model.OrbitalParameters. Mean motion, when
// given, takes precedence over period.
type OrbitRecord struct {
	PeriodMinutes  float64  `json:"period_min,omitempty"`
	MeanMotion     float64  `json:"mean_motion,omitempty"`
	InclinationDeg *float64 `json:"inclination_deg,omitempty"`
	ApogeeKm       *float64 `json:"apogee_km,omitempty"`
	PerigeeKm      *float64 `json:"perigee_km,omitempty"`
}

// PredictionRecord is the wire form of one predicted position.
type PredictionRecord struct {
	Timestamp          time.Time `json:"timestamp"`
	Lat                float64   `json:"lat"`
	Lng                float64   `json:"lng"`
	AltitudeM          *float64  `json:"alt_m,omitempty"`
	SpeedMps           *float64  `json:"speed_mps,omitempty"`
	Confidence         float64   `json:"confidence"`
	UncertaintyRadiusM float64   `json:"uncertainty_radius_m"`
	Source             string    `json:"source,omitempty"`
}

// Document is the top-level snapshot file.
type Document struct {
	GeneratedAt time.Time                     `json:"generated_at"`
	Entities    []EntityRecord                `json:"entities"`
	Predictions map[string][]PredictionRecord `json:"predictions,omitempty"`
}

// Result is a decoded snapshot plus the entries that could not be used.
type Result struct {
	GeneratedAt time.Time
	Snapshot    core.Snapshot
	Skipped     []error
}

// Decode reads a JSON snapshot document. Satellites described only by a TLE
// are positioned at their sub-satellite point at the given time, or at the
// document's generated_at when at is zero. Malformed entries are skipped and
// reported in Result.Skipped; only an undecodable document is an error.
func Decode(r io.Reader, at time.Time) (Result, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return Result{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if at.IsZero() {
		at = doc.GeneratedAt
	}
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return doc.Normalise(at), nil
}

// LoadFile decodes the snapshot at path.
func LoadFile(path string, at time.Time) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("open snapshot %q: %w", path, err)
	}
	defer f.Close()
	return Decode(f, at)
}

// Normalise converts every record, collecting the ones it rejects.
func (d Document) Normalise(at time.Time) Result {
	res := Result{GeneratedAt: d.GeneratedAt}
	seen := make(map[string]bool, len(d.Entities))
	for i, rec := range d.Entities {
		ent, err := rec.Entity(at)
		if err != nil {
			res.Skipped = append(res.Skipped, fmt.Errorf("entity %d (%q): %w", i, rec.ID, err))
			continue
		}
		id := ent.State().ID
		if seen[id] {
			res.Skipped = append(res.Skipped, fmt.Errorf("entity %d (%q): %w: duplicate id", i, id, ErrInvalidEntity))
			continue
		}
		seen[id] = true
		res.Snapshot.Entities = append(res.Snapshot.Entities, ent)
	}

	if len(d.Predictions) > 0 {
		res.Snapshot.Predictions = make(map[string]model.Trajectory, len(d.Predictions))
		for id, recs := range d.Predictions {
			res.Snapshot.Predictions[id] = trajectory(id, recs)
		}
	}
	return res
}

// Entity converts the record into its tagged variant.
func (r EntityRecord) Entity(at time.Time) (model.Entity, error) {
	kind := model.ParseKind(r.Kind)
	if kind == model.KindUnknown {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidEntity, r.Kind)
	}
	if kind == model.KindSatellite && len(r.TLE) > 0 {
		return r.satelliteFromTLE(at)
	}
	if r.ID == "" {
		return nil, fmt.Errorf("%w: missing id", ErrInvalidEntity)
	}

	state, err := r.state()
	if err != nil {
		return nil, err
	}

	switch kind {
	case model.KindAircraft:
		return model.Aircraft{
			EntityState:     state,
			ICAO24:          r.ICAO24,
			Callsign:        r.Callsign,
			Origin:          r.Origin,
			DestinationCode: r.Destination,
			OnGround:        r.OnGround,
			VerticalRateMps: optional(r.VerticalRateMps),
		}, nil
	case model.KindVessel:
		return model.Vessel{
			EntityState:     state,
			MMSI:            r.MMSI,
			Name:            r.Name,
			ShipType:        r.ShipType,
			DestinationCode: r.Destination,
			CourseDeg:       optional(r.CourseDeg),
		}, nil
	case model.KindSatellite:
		return model.Satellite{
			EntityState: state,
			NoradID:     r.NoradID,
			Name:        r.Name,
			Orbital:     r.Orbit.parameters(),
		}, nil
	default:
		return model.Wildlife{
			EntityState: state,
			TagID:       r.TagID,
			Species:     r.Species,
		}, nil
	}
}

func (r EntityRecord) state() (model.EntityState, error) {
	if r.Lat == nil || r.Lng == nil {
		return model.EntityState{}, fmt.Errorf("%w: missing position", ErrInvalidEntity)
	}
	pos, err := model.NewGeoPoint(*r.Lat, *r.Lng)
	if err != nil {
		return model.EntityState{}, fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}
	switch {
	case r.AltitudeM != nil:
		pos = pos.WithAltitude(*r.AltitudeM)
	case r.AltitudeFt != nil:
		pos = pos.WithAltitude(FeetToMetres(*r.AltitudeFt))
	}

	heading := optional(r.HeadingDeg)
	if !heading.Valid && r.CourseDeg != nil {
		heading = model.Some(*r.CourseDeg)
	}
	return model.EntityState{
		ID:         r.ID,
		Position:   pos,
		SpeedMps:   r.speed(),
		HeadingDeg: heading,
	}, nil
}

func (r EntityRecord) speed() model.OptionalFloat {
	switch {
	case r.SpeedMps != nil:
		return optional(r.SpeedMps)
	case r.SpeedKnots != nil:
		return optional(ptr(KnotsToMps(*r.SpeedKnots)))
	case r.SpeedKmps != nil:
		return optional(ptr(KmpsToMps(*r.SpeedKmps)))
	default:
		return model.None()
	}
}

func (r EntityRecord) satelliteFromTLE(at time.Time) (model.Entity, error) {
	if len(r.TLE) != 2 {
		return nil, fmt.Errorf("%w: tle needs exactly two lines, got %d", ErrInvalidEntity, len(r.TLE))
	}
	sat, err := SatelliteFromTLE(r.ID, r.Name, TLE{Line1: r.TLE[0], Line2: r.TLE[1]}, at)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidEntity, err)
	}
	if r.HeadingDeg != nil {
		sat.HeadingDeg = model.Some(*r.HeadingDeg)
	}
	return sat, nil
}

func (o *OrbitRecord) parameters() model.OrbitalParameters {
	if o == nil {
		return model.OrbitalParameters{}
	}
	period := o.PeriodMinutes
	if o.MeanMotion > 0 {
		period = model.PeriodFromMeanMotion(o.MeanMotion)
	}
	return model.OrbitalParameters{
		PeriodMinutes:  period,
		InclinationDeg: optional(o.InclinationDeg),
		ApogeeKm:       optional(o.ApogeeKm),
		PerigeeKm:      optional(o.PerigeeKm),
	}
}

// trajectory converts prediction records without validating them; the decay
// model rejects malformed sequences per entity.
func trajectory(id string, recs []PredictionRecord) model.Trajectory {
	out := make(model.Trajectory, 0, len(recs))
	for _, rec := range recs {
		pos := model.GeoPoint{Lat: rec.Lat, Lng: rec.Lng}
		if rec.AltitudeM != nil {
			pos = pos.WithAltitude(*rec.AltitudeM)
		}
		out = append(out, model.PredictedPosition{
			EntityID:           id,
			Timestamp:          rec.Timestamp,
			Position:           pos,
			SpeedMps:           optional(rec.SpeedMps),
			Confidence:         rec.Confidence,
			UncertaintyRadiusM: rec.UncertaintyRadiusM,
			Source:             rec.Source,
		})
	}
	return out
}

func optional(v *float64) model.OptionalFloat {
	if v == nil || math.IsNaN(*v) {
		return model.None()
	}
	return model.Some(*v)
}

func ptr(v float64) *float64 { return &v }
