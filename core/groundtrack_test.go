package core

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/geotrack/model"
)

var capeCanaveral = model.GeoPoint{Lat: 28.5, Lng: -80.6}

func issOrbit() model.OrbitalParameters {
	return model.OrbitalParameters{
		PeriodMinutes:  92,
		InclinationDeg: model.Some(51.6),
		ApogeeKm:       model.Some(422),
		PerigeeKm:      model.Some(418),
	}
}

func maxAbsLat(track model.GroundTrack) float64 {
	m := 0.0
	for _, p := range track {
		m = math.Max(m, math.Abs(p.Lat))
	}
	return m
}

func TestGroundTrackISSScenario(t *testing.T) {
	track, err := ProjectGroundTrack(capeCanaveral, issOrbit(), 100)
	if err != nil {
		t.Fatalf("ProjectGroundTrack: %v", err)
	}
	if len(track) != 101 {
		t.Fatalf("len = %d, want 101", len(track))
	}
	center, _ := track.Center()
	if math.Abs(center.Lat-28.5) > 1e-9 || math.Abs(center.Lng+80.6) > 1e-9 {
		t.Fatalf("center = %v, want %v", center, capeCanaveral)
	}
	if m := maxAbsLat(track); m > 51.6+1e-9 || m < 51.5 {
		t.Fatalf("max |lat| = %v, want ≈ 51.6", m)
	}

	orbitalRate := 360.0 / 92
	wantFirst := model.WrapLongitude(-80.6 - 180/orbitalRate*(orbitalRate-EarthRotationDegPerMin))
	if math.Abs(track[0].Lng-wantFirst) > 1e-9 {
		t.Fatalf("first lng = %v, want %v", track[0].Lng, wantFirst)
	}
}

func TestGroundTrackLengthAndBounds(t *testing.T) {
	cases := []struct {
		name        string
		current     model.GeoPoint
		inclination float64
		resolution  int
		maxLat      float64
	}{
		{"equatorial", model.GeoPoint{Lat: 0, Lng: 10}, 0, 2, 0},
		{"leo", model.GeoPoint{Lat: -20, Lng: 170}, 53, 64, 53},
		{"near polar clamped", model.GeoPoint{Lat: 40, Lng: -179}, 89, 200, MaxGroundTrackLatitude},
		{"sun synchronous", model.GeoPoint{Lat: 60, Lng: 0}, 98.2, 120, 180 - 98.2},
		{"negative inclination", model.GeoPoint{Lat: 5, Lng: 45}, -30, 10, 30},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orbit := model.OrbitalParameters{PeriodMinutes: 95, InclinationDeg: model.Some(tc.inclination)}
			track, err := ProjectGroundTrack(tc.current, orbit, tc.resolution)
			if err != nil {
				t.Fatalf("ProjectGroundTrack: %v", err)
			}
			if len(track) != tc.resolution+1 {
				t.Fatalf("len = %d, want %d", len(track), tc.resolution+1)
			}
			center, _ := track.Center()
			if center.Lat != tc.current.Lat || center.Lng != tc.current.Lng {
				t.Fatalf("center = %v, want %v", center, tc.current)
			}
			for i, p := range track {
				if i == tc.resolution/2 {
					continue
				}
				if math.Abs(p.Lat) > tc.maxLat+1e-9 {
					t.Fatalf("point %d lat %v exceeds %v", i, p.Lat, tc.maxLat)
				}
				if p.Lng <= -180 || p.Lng > 180 {
					t.Fatalf("point %d lng %v not wrapped", i, p.Lng)
				}
			}
		})
	}
}

func TestGroundTrackHeadingSelectsBranch(t *testing.T) {
	asc, err := ProjectGroundTrack(capeCanaveral, issOrbit(), 100, WithHeading(model.Some(45)))
	if err != nil {
		t.Fatalf("ProjectGroundTrack: %v", err)
	}
	if !(asc[51].Lat > asc[50].Lat) {
		t.Fatalf("northbound track should climb after center: %v -> %v", asc[50], asc[51])
	}

	desc, err := ProjectGroundTrack(capeCanaveral, issOrbit(), 100, WithHeading(model.Some(135)))
	if err != nil {
		t.Fatalf("ProjectGroundTrack: %v", err)
	}
	if !(desc[51].Lat < desc[50].Lat) {
		t.Fatalf("southbound track should descend after center: %v -> %v", desc[50], desc[51])
	}
	if math.Abs(desc[49].Lat-asc[51].Lat) > 1e-9 {
		t.Fatalf("descending branch should mirror ascending in time: %v vs %v", desc[49].Lat, asc[51].Lat)
	}
}

func TestGroundTrackOmittedForIncompleteOrbit(t *testing.T) {
	cases := []struct {
		name  string
		orbit model.OrbitalParameters
	}{
		{"zero period", model.OrbitalParameters{PeriodMinutes: 0, InclinationDeg: model.Some(51.6)}},
		{"negative period", model.OrbitalParameters{PeriodMinutes: -90, InclinationDeg: model.Some(51.6)}},
		{"nan period", model.OrbitalParameters{PeriodMinutes: math.NaN(), InclinationDeg: model.Some(51.6)}},
		{"missing inclination", model.OrbitalParameters{PeriodMinutes: 92}},
		{"nan inclination", model.OrbitalParameters{PeriodMinutes: 92, InclinationDeg: model.Some(math.NaN())}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			track, err := ProjectGroundTrack(capeCanaveral, tc.orbit, 100)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(track) != 0 {
				t.Fatalf("expected empty track, got %d points", len(track))
			}
		})
	}
}

func TestGroundTrackRejectsBadInput(t *testing.T) {
	for _, res := range []int{0, 1, -4, 99} {
		if _, err := ProjectGroundTrack(capeCanaveral, issOrbit(), res); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("resolution %d: error = %v, want ErrInvalidInput", res, err)
		}
	}
	if _, err := ProjectGroundTrack(model.GeoPoint{Lat: 95}, issOrbit(), 100); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("invalid position: error = %v, want ErrInvalidInput", err)
	}
}

func TestGroundTrackIgnoresApogeePerigee(t *testing.T) {
	circular := issOrbit()
	eccentric := issOrbit()
	eccentric.ApogeeKm = model.Some(40000)
	eccentric.PerigeeKm = model.Some(500)

	a, err := ProjectGroundTrack(capeCanaveral, circular, 20)
	if err != nil {
		t.Fatalf("ProjectGroundTrack: %v", err)
	}
	b, err := ProjectGroundTrack(capeCanaveral, eccentric, 20)
	if err != nil {
		t.Fatalf("ProjectGroundTrack: %v", err)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestGroundTrackCenterStaysInBand(t *testing.T) {
	cases := []struct {
		name        string
		current     model.GeoPoint
		inclination float64
		band        float64
	}{
		{"just above inclination", model.GeoPoint{Lat: 51.8, Lng: 10}, 51.6, 51.6},
		{"below negative inclination", model.GeoPoint{Lat: -53, Lng: 10}, 51.6, 51.6},
		{"beyond projection clamp", model.GeoPoint{Lat: 88, Lng: -30}, 89, MaxGroundTrackLatitude},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orbit := model.OrbitalParameters{PeriodMinutes: 95, InclinationDeg: model.Some(tc.inclination)}
			track, err := ProjectGroundTrack(tc.current, orbit, 100)
			if err != nil {
				t.Fatalf("ProjectGroundTrack: %v", err)
			}
			if got := maxAbsLat(track); got > tc.band+1e-9 {
				t.Fatalf("max |lat| = %v, want <= %v", got, tc.band)
			}
			center, _ := track.Center()
			if math.Abs(center.Lat) != tc.band || center.Lng != tc.current.Lng {
				t.Fatalf("center = %v, want lat clamped to ±%v at lng %v", center, tc.band, tc.current.Lng)
			}
		})
	}
}
