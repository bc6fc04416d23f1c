package feed

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/geotrack/model"
)

const sampleSnapshot = `{
  "generated_at": "2021-10-02T00:00:00Z",
  "entities": [
    {"id": "a1", "kind": "aircraft", "lat": 51.47, "lng": -0.45, "alt_ft": 35000,
     "speed_knots": 450, "heading_deg": 285, "destination": "JFK",
     "icao24": "4ca1fa", "callsign": "BAW117", "origin": "LHR"},
    {"id": "v1", "kind": "ship", "lat": 1.26, "lng": 103.82, "speed_mps": 6.2,
     "course_deg": 120, "destination": "SGSIN", "mmsi": "563012345", "name": "EVER GIVEN"},
    {"id": "s1", "kind": "satellite", "lat": 10, "lng": 20,
     "speed_kmps": 7.66, "norad_id": 48274,
     "orbit": {"mean_motion": 15.5, "inclination_deg": 41.47}},
    {"id": "iss", "kind": "satellite", "name": "ISS",
     "tle": ["1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990",
             "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"]},
    {"id": "w1", "kind": "wildlife", "lat": -20.5, "lng": 150.1, "tag_id": "T-88", "species": "Chelonia mydas"},
    {"id": "bad", "kind": "aircraft", "lat": 95, "lng": 0},
    {"id": "odd", "kind": "balloon", "lat": 0, "lng": 0},
    {"id": "a1", "kind": "aircraft", "lat": 1, "lng": 1},
    {"kind": "vessel", "lat": 1, "lng": 1}
  ],
  "predictions": {
    "w1": [
      {"timestamp": "2021-10-02T00:00:00Z", "lat": -20.5, "lng": 150.1, "confidence": 0.9, "uncertainty_radius_m": 100, "source": "kalman"},
      {"timestamp": "2021-10-02T01:00:00Z", "lat": -20.6, "lng": 150.3, "confidence": 0.8, "uncertainty_radius_m": 400, "source": "kalman"}
    ]
  }
}`

func TestDecodeSnapshot(t *testing.T) {
	res, err := Decode(strings.NewReader(sampleSnapshot), time.Time{})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if want := time.Date(2021, 10, 2, 0, 0, 0, 0, time.UTC); !res.GeneratedAt.Equal(want) {
		t.Fatalf("GeneratedAt = %v, want %v", res.GeneratedAt, want)
	}
	if got := len(res.Snapshot.Entities); got != 5 {
		t.Fatalf("entities = %d, want 5", got)
	}
	if got := len(res.Skipped); got != 4 {
		t.Fatalf("skipped = %d, want 4: %v", got, res.Skipped)
	}
	for _, err := range res.Skipped {
		if !errors.Is(err, ErrInvalidEntity) {
			t.Fatalf("skipped error %v should wrap ErrInvalidEntity", err)
		}
	}

	byID := make(map[string]model.Entity)
	for _, e := range res.Snapshot.Entities {
		byID[e.State().ID] = e
	}

	ac, ok := byID["a1"].(model.Aircraft)
	if !ok {
		t.Fatalf("a1 = %T, want model.Aircraft", byID["a1"])
	}
	if ac.Destination() != "JFK" || ac.Callsign != "BAW117" || ac.Origin != "LHR" {
		t.Fatalf("unexpected aircraft %+v", ac)
	}
	if math.Abs(ac.SpeedMps.Value-231.5) > 0.1 {
		t.Fatalf("aircraft speed = %v m/s, want ~231.5", ac.SpeedMps.Value)
	}
	if math.Abs(ac.Position.Altitude.Value-10668) > 1 {
		t.Fatalf("aircraft altitude = %v m, want 10668", ac.Position.Altitude.Value)
	}

	vs, ok := byID["v1"].(model.Vessel)
	if !ok {
		t.Fatalf("v1 = %T, want model.Vessel", byID["v1"])
	}
	if !vs.HeadingDeg.Valid || vs.HeadingDeg.Value != 120 {
		t.Fatalf("vessel heading should fall back to course, got %+v", vs.HeadingDeg)
	}

	s1, ok := byID["s1"].(model.Satellite)
	if !ok {
		t.Fatalf("s1 = %T, want model.Satellite", byID["s1"])
	}
	if math.Abs(s1.Orbit().PeriodMinutes-1440/15.5) > 1e-9 {
		t.Fatalf("period = %v, want %v", s1.Orbit().PeriodMinutes, 1440/15.5)
	}
	if s1.SpeedMps.Value != 7660 {
		t.Fatalf("satellite speed = %v, want 7660", s1.SpeedMps.Value)
	}

	iss, ok := byID["iss"].(model.Satellite)
	if !ok {
		t.Fatalf("iss = %T, want model.Satellite", byID["iss"])
	}
	if iss.NoradID != 25544 || !iss.Orbit().InclinationDeg.Valid {
		t.Fatalf("unexpected TLE satellite %+v", iss)
	}

	if _, ok := byID["w1"].(model.Wildlife); !ok {
		t.Fatalf("w1 = %T, want model.Wildlife", byID["w1"])
	}

	traj := res.Snapshot.Predictions["w1"]
	if len(traj) != 2 || traj[1].EntityID != "w1" || traj[1].UncertaintyRadiusM != 400 {
		t.Fatalf("unexpected predictions %+v", traj)
	}
}

func TestDecodeRejectsMalformedDocument(t *testing.T) {
	if _, err := Decode(strings.NewReader(`{"entities": [`), time.Time{}); err == nil {
		t.Fatalf("expected error for truncated document")
	}
}

func TestTLESatelliteNeedsTwoLines(t *testing.T) {
	rec := EntityRecord{ID: "x", Kind: "satellite", TLE: []string{issTLE.Line1}}
	if _, err := rec.Entity(time.Now()); !errors.Is(err, ErrInvalidEntity) {
		t.Fatalf("Entity = %v, want ErrInvalidEntity", err)
	}
}

func TestUnitConversions(t *testing.T) {
	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"knots", KnotsToMps(1), 0.514444},
		{"kmps", KmpsToMps(7.66), 7660},
		{"feet", FeetToMetres(1000), 304.8},
	}
	for _, tt := range tests {
		if math.Abs(tt.got-tt.want) > 1e-5 {
			t.Fatalf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}
