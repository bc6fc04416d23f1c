// Package kb holds the read-only destination registry used to resolve the
// destination codes filed by aircraft and vessels.
package kb

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/geotrack/model"
)

// DestinationType distinguishes airports from ports.
type DestinationType string

const (
	DestinationAirport DestinationType = "airport"
	DestinationPort    DestinationType = "port"
)

var (
	// ErrDuplicateCode is returned when two destinations claim the same code.
	ErrDuplicateCode = errors.New("duplicate destination code")
	// ErrInvalidDestination is returned for entries without a code or with
	// out-of-range coordinates.
	ErrInvalidDestination = errors.New("invalid destination")
)

// Destination is one registry entry. Aliases let an airport be found by
// both its IATA and ICAO codes, or a port by its UN/LOCODE and name.
type Destination struct {
	Code     string          `yaml:"code"`
	Aliases  []string        `yaml:"aliases,omitempty"`
	Name     string          `yaml:"name,omitempty"`
	Type     DestinationType `yaml:"type,omitempty"`
	Lat      float64         `yaml:"lat"`
	Lng      float64         `yaml:"lng"`
	Altitude *float64        `yaml:"altitude_m,omitempty"`
}

// Position returns the destination as a canonical GeoPoint.
func (d Destination) Position() model.GeoPoint {
	p := model.GeoPoint{Lat: d.Lat, Lng: d.Lng}.Canonical()
	if d.Altitude != nil {
		p = p.WithAltitude(*d.Altitude)
	}
	return p
}

// Registry is an immutable code-to-position table. All methods are safe for
// concurrent use because nothing mutates the registry after NewRegistry
// returns.
type Registry struct {
	byCode  map[string]model.GeoPoint
	entries []Destination
}

// NewRegistry validates dests and builds a registry. Codes and aliases are
// matched case-insensitively.
func NewRegistry(dests ...Destination) (*Registry, error) {
	r := &Registry{
		byCode:  make(map[string]model.GeoPoint, len(dests)),
		entries: make([]Destination, 0, len(dests)),
	}
	for _, d := range dests {
		if strings.TrimSpace(d.Code) == "" {
			return nil, fmt.Errorf("%w: code is required", ErrInvalidDestination)
		}
		if err := (model.GeoPoint{Lat: d.Lat, Lng: d.Lng}).Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDestination, d.Code, err)
		}
		pos := d.Position()
		own := make(map[string]bool, len(d.Aliases)+1)
		for _, code := range append([]string{d.Code}, d.Aliases...) {
			key := normalizeCode(code)
			if key == "" || own[key] {
				continue
			}
			own[key] = true
			if _, exists := r.byCode[key]; exists {
				return nil, fmt.Errorf("%w: %q", ErrDuplicateCode, code)
			}
			r.byCode[key] = pos
		}
		r.entries = append(r.entries, d)
	}
	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].Code < r.entries[j].Code })
	return r, nil
}

// Lookup resolves a code. It satisfies core.Registry.
func (r *Registry) Lookup(code string) (model.GeoPoint, bool) {
	if r == nil {
		return model.GeoPoint{}, false
	}
	p, ok := r.byCode[normalizeCode(code)]
	return p, ok
}

// Len returns the number of destinations, not counting aliases.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// List returns a copy of all destinations sorted by code.
func (r *Registry) List() []Destination {
	if r == nil {
		return nil
	}
	return append([]Destination(nil), r.entries...)
}

type registryFile struct {
	Destinations []Destination `yaml:"destinations"`
}

// LoadYAML reads a registry document of the form
//
//	destinations:
//	  - code: JFK
//	    aliases: [KJFK]
//	    type: airport
//	    lat: 40.6413
//	    lng: -73.7781
func LoadYAML(r io.Reader) (*Registry, error) {
	var doc registryFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return NewRegistry(doc.Destinations...)
}

// LoadFile reads a YAML registry from path.
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open registry %q: %w", path, err)
	}
	defer f.Close()
	return LoadYAML(f)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
