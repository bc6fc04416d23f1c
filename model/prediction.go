package model

import (
	"encoding/json"
	"time"
)

// PredictedPosition is one forecast point for an entity. Confidence is a
// fraction in [0, 1] and UncertaintyRadiusM is a radius in metres; both are
// assigned by the upstream predictor.
type PredictedPosition struct {
	EntityID           string        `json:"entity_id"`
	Timestamp          time.Time     `json:"timestamp"`
	Position           GeoPoint      `json:"position"`
	SpeedMps           OptionalFloat `json:"-"`
	Confidence         float64       `json:"confidence"`
	UncertaintyRadiusM float64       `json:"uncertainty_radius_m"`
	Source             string        `json:"source"`
}

// MarshalJSON writes SpeedMps as speed_mps when it is present.
func (p PredictedPosition) MarshalJSON() ([]byte, error) {
	type plain PredictedPosition
	wire := struct {
		plain
		SpeedMps *float64 `json:"speed_mps,omitempty"`
	}{plain: plain(p)}
	if p.SpeedMps.Valid {
		wire.SpeedMps = &p.SpeedMps.Value
	}
	return json.Marshal(wire)
}

// Trajectory is an ordered path of predicted positions with strictly
// increasing timestamps.
type Trajectory []PredictedPosition

// Route is an ordered path of points, such as the remaining great-circle
// route to a destination.
type Route []GeoPoint

// GroundTrack is the approximate ground projection of one orbital period,
// centred on the entity's current position. Its length is resolution+1.
type GroundTrack []GeoPoint

// Center returns the middle point of the track and false when the track is
// empty.
func (g GroundTrack) Center() (GeoPoint, bool) {
	if len(g) == 0 {
		return GeoPoint{}, false
	}
	return g[len(g)/2], true
}
