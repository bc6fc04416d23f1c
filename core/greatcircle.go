package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/geotrack/model"
)

// Interpolate returns n points evenly spaced by central angle along the
// minor great-circle arc from start to end. The first point is start and
// the last is end.
//
// Coincident or antipodal endpoints have no unique great circle; every
// returned point then equals start. Altitude is interpolated linearly when
// both endpoints carry one.
func Interpolate(start, end model.GeoPoint, n int) (model.Route, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: interpolation needs at least 2 points, got %d", ErrInvalidInput, n)
	}
	if err := validatePoint("start", start); err != nil {
		return nil, err
	}
	if err := validatePoint("end", end); err != nil {
		return nil, err
	}
	start = start.Canonical()
	end = end.Canonical()

	out := make(model.Route, n)
	d := CentralAngle(start, end)
	if degenerateAngle(d) {
		for i := range out {
			out[i] = start
		}
		return out, nil
	}

	a := unitVector(start)
	b := unitVector(end)
	sinD := math.Sin(d)
	withAlt := start.Altitude.Valid && end.Altitude.Valid

	for i := 0; i < n; i++ {
		f := float64(i) / float64(n-1)
		wa := math.Sin((1-f)*d) / sinD
		wb := math.Sin(f*d) / sinD
		p := pointFromVector(a.Scale(wa).Add(b.Scale(wb)))
		if withAlt {
			p.Altitude = model.Some(start.Altitude.Value + f*(end.Altitude.Value-start.Altitude.Value))
		}
		out[i] = p
	}
	out[0] = start
	out[n-1] = end
	return out, nil
}
