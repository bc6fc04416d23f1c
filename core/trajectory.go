package core

import (
	"fmt"
	"strings"

	"github.com/signalsfoundry/geotrack/model"
)

// DefaultRoutePoints is the number of points used for a remaining route
// when the builder is not told otherwise.
const DefaultRoutePoints = 24

// Registry resolves destination codes (airports, ports) to positions. It is
// read-only and must be safe for concurrent use.
type Registry interface {
	Lookup(code string) (model.GeoPoint, bool)
}

// RegistryFunc adapts a plain function to Registry.
type RegistryFunc func(code string) (model.GeoPoint, bool)

// Lookup calls f(code).
func (f RegistryFunc) Lookup(code string) (model.GeoPoint, bool) { return f(code) }

// Outcome classifies how a single computation for one entity ended.
type Outcome string

const (
	OutcomeOK         Outcome = "ok"
	OutcomeEmpty      Outcome = "empty"
	OutcomeUnresolved Outcome = "unresolved"
	OutcomeArrived    Outcome = "arrived"
	OutcomeDegenerate Outcome = "degenerate"
	OutcomeInvalid    Outcome = "invalid"
)

// TrajectoryBuilder draws the remaining great-circle route from an entity's
// current position to its filed destination. It holds no mutable state and
// can be shared across goroutines.
type TrajectoryBuilder struct {
	Registry Registry
	// Points is the route resolution; zero means DefaultRoutePoints.
	Points int
}

// NewTrajectoryBuilder returns a builder with the default resolution.
func NewTrajectoryBuilder(reg Registry) TrajectoryBuilder {
	return TrajectoryBuilder{Registry: reg, Points: DefaultRoutePoints}
}

// RemainingRoute returns the route from current to the destination named by
// code. It returns an empty route and no error when current is nil, the code
// is unknown, or the entity has already arrived.
func (b TrajectoryBuilder) RemainingRoute(current *model.GeoPoint, code string) (model.Route, error) {
	route, _, err := b.remainingRoute(current, code)
	return route, err
}

// RouteFor is RemainingRoute for a routed entity snapshot.
func (b TrajectoryBuilder) RouteFor(e model.Routed) (model.Route, error) {
	if e == nil {
		return nil, nil
	}
	pos := e.State().Position
	return b.RemainingRoute(&pos, e.Destination())
}

func (b TrajectoryBuilder) remainingRoute(current *model.GeoPoint, code string) (model.Route, Outcome, error) {
	n := b.Points
	if n == 0 {
		n = DefaultRoutePoints
	}
	if n < 2 {
		return nil, OutcomeInvalid, fmt.Errorf("%w: route needs at least 2 points, got %d", ErrInvalidInput, n)
	}
	if current == nil {
		return nil, OutcomeEmpty, nil
	}
	if err := validatePoint("current position", *current); err != nil {
		return nil, OutcomeInvalid, err
	}

	code = strings.TrimSpace(code)
	if code == "" || b.Registry == nil {
		return nil, OutcomeUnresolved, nil
	}
	dest, ok := b.Registry.Lookup(code)
	if !ok {
		return nil, OutcomeUnresolved, nil
	}
	if err := validatePoint("destination "+code, dest); err != nil {
		return nil, OutcomeInvalid, err
	}
	if CentralAngle(*current, dest) < angleEpsilon {
		return nil, OutcomeArrived, nil
	}

	route, err := Interpolate(*current, dest, n)
	if err != nil {
		return nil, OutcomeInvalid, err
	}
	if Degenerate(*current, dest) {
		return route, OutcomeDegenerate, nil
	}
	return route, OutcomeOK, nil
}
