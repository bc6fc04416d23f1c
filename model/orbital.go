package model

// MinutesPerDay is the length of a solar day in minutes.
const MinutesPerDay = 1440.0

// OrbitalParameters describes the orbit of a satellite well enough to draw
// an approximate ground track.
//
// Apogee and perigee are carried for display but the ground-track
// projection assumes a circular orbit and ignores them.
type OrbitalParameters struct {
	PeriodMinutes  float64
	InclinationDeg OptionalFloat
	ApogeeKm       OptionalFloat
	PerigeeKm      OptionalFloat
}

// PeriodFromMeanMotion converts a mean motion in revolutions per day into an
// orbital period in minutes. It returns 0 for non-positive mean motion.
func PeriodFromMeanMotion(revsPerDay float64) float64 {
	if revsPerDay <= 0 {
		return 0
	}
	return MinutesPerDay / revsPerDay
}
