package feed

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/geotrack/core"
	"github.com/signalsfoundry/geotrack/model"
)

// ErrInvalidTLE is returned for two-line element sets that cannot be parsed.
var ErrInvalidTLE = errors.New("feed: invalid TLE")

const (
	earthRadiusKm = 6371.0
	kmToM         = 1000.0
)

// TLE is a two-line element set.
type TLE struct {
	Line1 string
	Line2 string
}

// Elements are the orbital elements the ground track needs, read straight
// from line 2.
type Elements struct {
	NoradID        uint32
	InclinationDeg float64
	MeanMotion     float64 // revolutions per day
	Eccentricity   float64
}

// ParseElements reads inclination, eccentricity and mean motion from the
// fixed columns of line 2.
func (t TLE) ParseElements() (Elements, error) {
	l1 := strings.TrimRight(t.Line1, " \r\n")
	l2 := strings.TrimRight(t.Line2, " \r\n")
	if len(l1) < 63 || !strings.HasPrefix(l1, "1 ") {
		return Elements{}, fmt.Errorf("%w: line 1 malformed", ErrInvalidTLE)
	}
	if len(l2) < 63 || !strings.HasPrefix(l2, "2 ") {
		return Elements{}, fmt.Errorf("%w: line 2 malformed", ErrInvalidTLE)
	}

	field := func(line string, from, to int) string {
		if to > len(line) {
			to = len(line)
		}
		return strings.TrimSpace(line[from:to])
	}

	norad, err := strconv.ParseUint(field(l2, 2, 7), 10, 32)
	if err != nil {
		return Elements{}, fmt.Errorf("%w: catalog number: %v", ErrInvalidTLE, err)
	}
	incl, err := strconv.ParseFloat(field(l2, 8, 16), 64)
	if err != nil {
		return Elements{}, fmt.Errorf("%w: inclination: %v", ErrInvalidTLE, err)
	}
	ecc, err := strconv.ParseFloat("0."+field(l2, 26, 33), 64)
	if err != nil {
		return Elements{}, fmt.Errorf("%w: eccentricity: %v", ErrInvalidTLE, err)
	}
	mm, err := strconv.ParseFloat(field(l2, 52, 63), 64)
	if err != nil {
		return Elements{}, fmt.Errorf("%w: mean motion: %v", ErrInvalidTLE, err)
	}
	if mm <= 0 {
		return Elements{}, fmt.Errorf("%w: mean motion must be positive, got %v", ErrInvalidTLE, mm)
	}
	return Elements{NoradID: uint32(norad), InclinationDeg: incl, MeanMotion: mm, Eccentricity: ecc}, nil
}

// Orbit converts the elements into the parameters the ground-track
// projector reads. Apogee and perigee are derived from the mean motion and
// eccentricity for display.
func (e Elements) Orbit() model.OrbitalParameters {
	period := model.PeriodFromMeanMotion(e.MeanMotion)
	out := model.OrbitalParameters{
		PeriodMinutes:  period,
		InclinationDeg: model.Some(e.InclinationDeg),
	}
	// Kepler's third law with mu in km^3/s^2.
	const mu = 398600.4418
	n := e.MeanMotion * 2 * math.Pi / 86400
	if n > 0 {
		a := math.Cbrt(mu / (n * n))
		out.ApogeeKm = model.Some(a*(1+e.Eccentricity) - earthRadiusKm)
		out.PerigeeKm = model.Some(a*(1-e.Eccentricity) - earthRadiusKm)
	}
	return out
}

// SubSatellitePoint propagates the TLE with SGP4 to at and returns the
// geocentric point beneath the satellite, with altitude in metres, and its
// inertial speed in metres per second.
func (t TLE) SubSatellitePoint(at time.Time) (model.GeoPoint, float64, error) {
	if _, err := t.ParseElements(); err != nil {
		return model.GeoPoint{}, 0, err
	}
	sat := satellite.TLEToSat(t.Line1, t.Line2, satellite.GravityWGS72)

	at = at.UTC()
	year, month, day := at.Date()
	hour, min, sec := at.Clock()

	posECI, velECI := satellite.Propagate(sat, year, int(month), day, hour, min, sec)
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)
	posECEF := satellite.ECIToECEF(posECI, gmst)

	r := math.Sqrt(posECEF.X*posECEF.X + posECEF.Y*posECEF.Y + posECEF.Z*posECEF.Z)
	if r == 0 || math.IsNaN(r) || math.IsInf(r, 0) {
		return model.GeoPoint{}, 0, fmt.Errorf("%w: propagation diverged at %s", ErrInvalidTLE, at.Format(time.RFC3339))
	}

	lat := math.Atan2(posECEF.Z, math.Hypot(posECEF.X, posECEF.Y)) * 180 / math.Pi
	lng := math.Atan2(posECEF.Y, posECEF.X) * 180 / math.Pi
	p, err := model.NewGeoPoint(lat, model.WrapLongitude(lng))
	if err != nil {
		return model.GeoPoint{}, 0, err
	}
	p = p.WithAltitude((r - earthRadiusKm) * kmToM)

	speed := math.Sqrt(velECI.X*velECI.X+velECI.Y*velECI.Y+velECI.Z*velECI.Z) * kmToM
	return p, speed, nil
}

// headingStep is how far ahead GroundHeading propagates to find the
// direction of travel.
const headingStep = 10 * time.Second

// GroundHeading returns the direction the sub-satellite point is moving at
// at, in degrees clockwise from true north. It is the bearing from the point
// at at to the point headingStep later.
func (t TLE) GroundHeading(at time.Time) (float64, error) {
	from, _, err := t.SubSatellitePoint(at)
	if err != nil {
		return 0, err
	}
	to, _, err := t.SubSatellitePoint(at.Add(headingStep))
	if err != nil {
		return 0, err
	}
	return core.InitialBearingDeg(from, to), nil
}

// SatelliteFromTLE builds a Satellite positioned at its sub-satellite point
// at the given time, heading along its ground track.
func SatelliteFromTLE(id, name string, tle TLE, at time.Time) (model.Satellite, error) {
	elems, err := tle.ParseElements()
	if err != nil {
		return model.Satellite{}, err
	}
	pos, speed, err := tle.SubSatellitePoint(at)
	if err != nil {
		return model.Satellite{}, err
	}
	heading, err := tle.GroundHeading(at)
	if err != nil {
		return model.Satellite{}, err
	}
	if id == "" {
		id = strconv.FormatUint(uint64(elems.NoradID), 10)
	}
	return model.Satellite{
		EntityState: model.EntityState{
			ID:         id,
			Position:   pos,
			SpeedMps:   model.Some(speed),
			HeadingDeg: model.Some(heading),
		},
		NoradID: elems.NoradID,
		Name:    name,
		Orbital: elems.Orbit(),
	}, nil
}
