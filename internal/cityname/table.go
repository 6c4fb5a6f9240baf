package cityname

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joanabot/joana-weather/internal/geo"
)

//go:embed cities.yaml
var defaultTable []byte

// Alias maps an alternative city name to its canonical name.
type Alias struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// KnownCity is a canonical city with reference coordinates.
type KnownCity struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

// Point returns the city's coordinates.
func (c KnownCity) Point() geo.Point {
	return geo.Point{Lat: c.Lat, Lon: c.Lon}
}

// Table is the static vocabulary consulted by the Normalizer.
// Aliases and Cities are ordered; order decides ties.
type Table struct {
	ProximityRadiusKm float64         `yaml:"proximity_radius_km"`
	Bounds            geo.BoundingBox `yaml:"bounds"`
	Cities            []KnownCity     `yaml:"cities"`
	Canonical         []string        `yaml:"canonical"`
	Aliases           []Alias         `yaml:"aliases"`
}

// DefaultTable returns the embedded Mozambique table.
func DefaultTable() (Table, error) {
	return ParseTable(defaultTable)
}

// LoadTable reads a table from a YAML file.
func LoadTable(path string) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read city table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable decodes and validates a YAML table.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Table{}, fmt.Errorf("decode city table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate checks that every alias target and known city is canonical
// and that the proximity settings are usable.
func (t Table) Validate() error {
	if t.ProximityRadiusKm <= 0 {
		return errors.New("city table: proximity_radius_km must be positive")
	}
	if t.Bounds.IsZero() {
		return errors.New("city table: bounds are required")
	}
	if t.Bounds.MinLat > t.Bounds.MaxLat || t.Bounds.MinLon > t.Bounds.MaxLon {
		return errors.New("city table: bounds are inverted")
	}

	canonical := make(map[string]struct{}, len(t.Canonical))
	for _, name := range t.Canonical {
		canonical[name] = struct{}{}
	}

	var errs []error
	for _, c := range t.Cities {
		if _, ok := canonical[c.Name]; !ok {
			errs = append(errs, fmt.Errorf("city table: known city %q is not canonical", c.Name))
		}
		if !c.Point().Valid() {
			errs = append(errs, fmt.Errorf("city table: known city %q has invalid coordinates", c.Name))
		}
	}
	for _, a := range t.Aliases {
		if strings.TrimSpace(a.From) == "" {
			errs = append(errs, errors.New("city table: alias with empty name"))
			continue
		}
		if _, ok := canonical[a.To]; !ok {
			errs = append(errs, fmt.Errorf("city table: alias %q targets non-canonical %q", a.From, a.To))
		}
	}
	return errors.Join(errs...)
}
