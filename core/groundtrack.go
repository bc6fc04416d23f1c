package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/geotrack/model"
)

const (
	// EarthRotationDegPerMin is the rate at which the ground moves under an
	// orbit, in degrees of longitude per minute.
	EarthRotationDegPerMin = 360.0 / model.MinutesPerDay

	// MaxGroundTrackLatitude bounds projected latitudes so the map projection
	// stays numerically stable near the poles.
	MaxGroundTrackLatitude = 85.0

	// DefaultGroundTrackResolution is the number of segments drawn for one
	// orbital period.
	DefaultGroundTrackResolution = 100
)

type groundTrackOptions struct {
	heading model.OptionalFloat
}

// GroundTrackOption customises ProjectGroundTrack.
type GroundTrackOption func(*groundTrackOptions)

// WithHeading supplies the body's current heading. A southbound heading
// places the current position on the descending half of the track.
func WithHeading(h model.OptionalFloat) GroundTrackOption {
	return func(o *groundTrackOptions) { o.heading = h }
}

// ProjectGroundTrack approximates the ground projection of one orbital
// period centred in time on current. The result has resolution+1 points and
// its middle point is current.
//
// The projection assumes a circular orbit: latitude follows
// inclination*sin(orbitAngle) and longitude drifts by the difference between
// the orbital rate and the Earth's rotation. Apogee and perigee are ignored.
//
// resolution must be a positive even number. A non-positive period or a
// missing inclination yields an empty track and no error, since the track
// is only a visual aid.
func ProjectGroundTrack(current model.GeoPoint, orbit model.OrbitalParameters, resolution int, opts ...GroundTrackOption) (model.GroundTrack, error) {
	if resolution < 2 || resolution%2 != 0 {
		return nil, fmt.Errorf("%w: ground track resolution must be an even number >= 2, got %d", ErrInvalidInput, resolution)
	}
	if err := validatePoint("current position", current); err != nil {
		return nil, err
	}

	var o groundTrackOptions
	for _, opt := range opts {
		opt(&o)
	}

	period := orbit.PeriodMinutes
	if !(period > 0) || math.IsInf(period, 0) {
		return nil, nil
	}
	if !orbit.InclinationDeg.Valid {
		return nil, nil
	}
	incl := math.Abs(orbit.InclinationDeg.Value)
	if math.IsNaN(incl) || incl > 180 {
		return nil, nil
	}

	// A retrograde orbit reaches the same latitude band as its prograde
	// supplement.
	maxLat := incl
	if maxLat > 90 {
		maxLat = 180 - maxLat
	}

	orbitalRate := 360.0 / period
	effectiveRate := orbitalRate - EarthRotationDegPerMin

	phase := 0.0
	if maxLat > 0 {
		phase = math.Asin(clamp(current.Lat/maxLat, -1, 1)) * radToDeg
		if southbound(o.heading) {
			phase = 180 - phase
		}
	}

	half := resolution / 2
	track := make(model.GroundTrack, resolution+1)
	for i := -half; i <= half; i++ {
		t := float64(i) / float64(half)
		orbitAngle := t * 180
		lat := maxLat * math.Sin((phase+orbitAngle)*degToRad)
		lat = clamp(lat, -MaxGroundTrackLatitude, MaxGroundTrackLatitude)
		lngOffset := (orbitAngle / orbitalRate) * effectiveRate
		track[i+half] = model.GeoPoint{
			Lat: lat,
			Lng: model.WrapLongitude(current.Lng + lngOffset),
		}
	}
	band := math.Min(maxLat, MaxGroundTrackLatitude)
	track[half] = model.GeoPoint{Lat: clamp(current.Lat, -band, band), Lng: model.WrapLongitude(current.Lng)}
	return track, nil
}

func southbound(h model.OptionalFloat) bool {
	if !h.Valid || math.IsNaN(h.Value) {
		return false
	}
	deg := math.Mod(h.Value, 360)
	if deg < 0 {
		deg += 360
	}
	return deg > 90 && deg < 270
}
