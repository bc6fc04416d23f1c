package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinate is returned when a latitude or longitude is outside
// its valid range or is not a finite number.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// OptionalFloat is a float64 that may be absent, in the manner of
// sql.NullFloat64.
type OptionalFloat struct {
	Value float64
	Valid bool
}

// Some returns a present OptionalFloat.
func Some(v float64) OptionalFloat { return OptionalFloat{Value: v, Valid: true} }

// None returns an absent OptionalFloat.
func None() OptionalFloat { return OptionalFloat{} }

// GeoPoint is a geodetic position in degrees. Latitude lies in [-90, 90] and
// longitude in (-180, 180]. Altitude, when present, is in metres.
//
// GeoPoint is a value type; nothing in this module mutates a GeoPoint once
// it has been constructed.
type GeoPoint struct {
	Lat      float64
	Lng      float64
	Altitude OptionalFloat
}

// NewGeoPoint validates lat/lng and returns the canonical point. A longitude
// of exactly -180 is folded onto 180.
func NewGeoPoint(lat, lng float64) (GeoPoint, error) {
	p := GeoPoint{Lat: lat, Lng: lng}
	if err := p.Validate(); err != nil {
		return GeoPoint{}, err
	}
	return p.Canonical(), nil
}

// WithAltitude returns a copy of p carrying the given altitude in metres.
func (p GeoPoint) WithAltitude(metres float64) GeoPoint {
	p.Altitude = Some(metres)
	return p
}

// Validate reports whether p lies within the coordinate ranges.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, p.Lat)
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// Canonical returns p with its longitude wrapped into (-180, 180].
func (p GeoPoint) Canonical() GeoPoint {
	p.Lng = WrapLongitude(p.Lng)
	return p
}

// String implements fmt.Stringer.
func (p GeoPoint) String() string {
	if p.Altitude.Valid {
		return fmt.Sprintf("(%.6f, %.6f, %.1fm)", p.Lat, p.Lng, p.Altitude.Value)
	}
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lng)
}

// MarshalJSON encodes p as {"lat":..,"lng":..,"alt_m":..} for the map layer.
func (p GeoPoint) MarshalJSON() ([]byte, error) {
	type wire struct {
		Lat       float64  `json:"lat"`
		Lng       float64  `json:"lng"`
		AltitudeM *float64 `json:"alt_m,omitempty"`
	}
	w := wire{Lat: p.Lat, Lng: p.Lng}
	if p.Altitude.Valid {
		alt := p.Altitude.Value
		w.AltitudeM = &alt
	}
	return json.Marshal(w)
}

// WrapLongitude folds any finite longitude in degrees into (-180, 180].
func WrapLongitude(lng float64) float64 {
	w := math.Mod(lng+180, 360)
	if w < 0 {
		w += 360
	}
	w -= 180
	if w <= -180 {
		w += 360
	}
	return w
}
