package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/geotrack/model"
)

// EarthRadiusM is the mean Earth radius used for all spherical geometry
// (metres).
const EarthRadiusM = 6371000.0

const (
	// angleEpsilon is the central angle (radians) below which two points
	// are treated as coincident, roughly six millimetres on the ground.
	angleEpsilon = 1e-9
	// antipodalEpsilon is how close to pi a central angle may get before the
	// great circle is treated as undefined. The haversine loses precision
	// near pi, so this is wider than angleEpsilon.
	antipodalEpsilon = 1e-6
)

const (
	degToRad = math.Pi / 180
	radToDeg = 180 / math.Pi
)

// Vec3 is a Cartesian vector on or around the unit sphere.
type Vec3 struct {
	X, Y, Z float64
}

// Norm returns the Euclidean norm of the vector.
func (v Vec3) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

// Dot returns the dot product of two vectors.
func (v Vec3) Dot(other Vec3) float64 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

// Add returns v + other.
func (v Vec3) Add(other Vec3) Vec3 {
	return Vec3{X: v.X + other.X, Y: v.Y + other.Y, Z: v.Z + other.Z}
}

// Scale returns v * k.
func (v Vec3) Scale(k float64) Vec3 {
	return Vec3{X: v.X * k, Y: v.Y * k, Z: v.Z * k}
}

// unitVector returns the unit Cartesian vector for a geodetic point on a
// spherical Earth.
func unitVector(p model.GeoPoint) Vec3 {
	lat := p.Lat * degToRad
	lng := p.Lng * degToRad
	cosLat := math.Cos(lat)
	return Vec3{
		X: cosLat * math.Cos(lng),
		Y: cosLat * math.Sin(lng),
		Z: math.Sin(lat),
	}
}

// pointFromVector converts a Cartesian direction back into latitude and
// longitude. The vector need not be normalised.
func pointFromVector(v Vec3) model.GeoPoint {
	lat := math.Atan2(v.Z, math.Sqrt(v.X*v.X+v.Y*v.Y)) * radToDeg
	lng := math.Atan2(v.Y, v.X) * radToDeg
	return model.GeoPoint{Lat: lat, Lng: model.WrapLongitude(lng)}
}

// CentralAngle returns the angle in radians subtended at the Earth's centre
// by a and b, using the haversine formulation.
func CentralAngle(a, b model.GeoPoint) float64 {
	lat1 := a.Lat * degToRad
	lat2 := b.Lat * degToRad
	dLat := lat2 - lat1
	dLng := (b.Lng - a.Lng) * degToRad

	sinLat := math.Sin(dLat / 2)
	sinLng := math.Sin(dLng / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLng*sinLng
	if h > 1 {
		h = 1
	} else if h < 0 {
		h = 0
	}
	return 2 * math.Asin(math.Sqrt(h))
}

// DistanceMeters returns the great-circle distance between a and b.
func DistanceMeters(a, b model.GeoPoint) float64 {
	return CentralAngle(a, b) * EarthRadiusM
}

// PathLengthMeters sums the great-circle distances between consecutive
// points of a path.
func PathLengthMeters(path []model.GeoPoint) float64 {
	total := 0.0
	for i := 1; i < len(path); i++ {
		total += DistanceMeters(path[i-1], path[i])
	}
	return total
}

// InitialBearingDeg returns the great-circle bearing from a towards b in
// degrees clockwise from true north, in [0, 360).
func InitialBearingDeg(a, b model.GeoPoint) float64 {
	lat1, lat2 := a.Lat*degToRad, b.Lat*degToRad
	dLng := (b.Lng - a.Lng) * degToRad
	y := math.Sin(dLng) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLng)
	deg := math.Mod(math.Atan2(y, x)*radToDeg+360, 360)
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// Degenerate reports whether the great circle through a and b is undefined
// because the points coincide or are antipodal.
func Degenerate(a, b model.GeoPoint) bool {
	return degenerateAngle(CentralAngle(a, b))
}

func degenerateAngle(d float64) bool {
	return d < angleEpsilon || math.Pi-d < antipodalEpsilon
}

func validatePoint(name string, p model.GeoPoint) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidInput, name, err)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
