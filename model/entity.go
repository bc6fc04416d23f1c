package model

// Kind discriminates the entity variants.
type Kind int

const (
	KindUnknown Kind = iota
	KindAircraft
	KindVessel
	KindSatellite
	KindWildlife
)

func (k Kind) String() string {
	switch k {
	case KindAircraft:
		return "aircraft"
	case KindVessel:
		return "vessel"
	case KindSatellite:
		return "satellite"
	case KindWildlife:
		return "wildlife"
	default:
		return "unknown"
	}
}

// ParseKind maps a feed label onto a Kind. Unrecognised labels yield
// KindUnknown.
func ParseKind(s string) Kind {
	switch s {
	case "aircraft", "AIRCRAFT", "flight":
		return KindAircraft
	case "vessel", "VESSEL", "ship":
		return KindVessel
	case "satellite", "SATELLITE":
		return KindSatellite
	case "wildlife", "WILDLIFE", "animal":
		return KindWildlife
	default:
		return KindUnknown
	}
}

// EntityState is the part of every tracked entity that the trajectory
// engine reads: identity, current position and motion. Speed is in metres
// per second, heading in degrees clockwise from true north.
type EntityState struct {
	ID         string
	Position   GeoPoint
	SpeedMps   OptionalFloat
	HeadingDeg OptionalFloat
}

// State returns s. It lets every variant that embeds EntityState satisfy
// Entity.
func (s EntityState) State() EntityState { return s }

// Entity is a read-only snapshot of a tracked object as delivered by the
// data feed. Implementations are Aircraft, Vessel, Satellite and Wildlife.
type Entity interface {
	Kind() Kind
	State() EntityState
}

// Routed is implemented by entities that may carry a filed destination.
type Routed interface {
	Entity
	Destination() string
}

// Orbiting is implemented by entities whose path is periodic.
type Orbiting interface {
	Entity
	Orbit() OrbitalParameters
}

// Aircraft is a flight reported by an ADS-B style feed.
type Aircraft struct {
	EntityState
	ICAO24          string
	Callsign        string
	Origin          string
	DestinationCode string
	OnGround        bool
	VerticalRateMps OptionalFloat
}

func (Aircraft) Kind() Kind            { return KindAircraft }
func (a Aircraft) Destination() string { return a.DestinationCode }

// Vessel is a ship reported by an AIS style feed.
type Vessel struct {
	EntityState
	MMSI            string
	Name            string
	ShipType        string
	DestinationCode string
	CourseDeg       OptionalFloat
}

func (Vessel) Kind() Kind            { return KindVessel }
func (v Vessel) Destination() string { return v.DestinationCode }

// Satellite is an orbiting body with enough orbital elements to draw a
// ground track.
type Satellite struct {
	EntityState
	NoradID uint32
	Name    string
	Orbital OrbitalParameters
}

func (Satellite) Kind() Kind                 { return KindSatellite }
func (s Satellite) Orbit() OrbitalParameters { return s.Orbital }

// Wildlife is a tagged animal.
type Wildlife struct {
	EntityState
	TagID   string
	Species string
}

func (Wildlife) Kind() Kind { return KindWildlife }
