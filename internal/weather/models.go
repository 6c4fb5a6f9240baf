package weather

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joanabot/joana-weather/internal/geo"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Units is the display unit requested by the caller. Temperatures are kept
// in the unit they were requested in.
type Units string

const (
	UnitsCelsius    Units = "celsius"
	UnitsFahrenheit Units = "fahrenheit"
)

// ParseUnits accepts "celsius" or "fahrenheit" in any case. Empty means celsius.
func ParseUnits(s string) (Units, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(UnitsCelsius):
		return UnitsCelsius, nil
	case string(UnitsFahrenheit):
		return UnitsFahrenheit, nil
	default:
		return "", fmt.Errorf("%w: unknown units %q", ErrInvalidQuery, s)
	}
}

// Valid reports whether u is a known unit.
func (u Units) Valid() bool {
	return u == UnitsCelsius || u == UnitsFahrenheit
}

// Symbol returns the temperature suffix for display.
func (u Units) Symbol() string {
	if u == UnitsFahrenheit {
		return "°F"
	}
	return "°C"
}

// Source identifies the provider a reading came from.
type Source string

const (
	SourceOpenWeather Source = "openweathermap"
	SourceWeatherAPI  Source = "weatherapi"
	SourceOpenMeteo   Source = "openmeteo"
)

// ParseSource maps a provider name to a Source.
func ParseSource(s string) (Source, error) {
	switch src := Source(strings.ToLower(strings.TrimSpace(s))); src {
	case SourceOpenWeather, SourceWeatherAPI, SourceOpenMeteo:
		return src, nil
	default:
		return "", fmt.Errorf("unknown weather provider %q", s)
	}
}

// Query identifies a location by name or by coordinates.
// Coordinates take precedence when set.
type Query struct {
	City        string     `json:"city,omitempty"`
	Country     string     `json:"country,omitempty"`
	Coordinates *geo.Point `json:"coordinates,omitempty"`
}

// CityQuery looks a location up by name.
func CityQuery(city string) Query {
	return Query{City: city}
}

// CoordinatesQuery looks a location up by position.
func CoordinatesQuery(lat, lon float64) Query {
	return Query{Coordinates: &geo.Point{Lat: lat, Lon: lon}}
}

// ByCoordinates reports whether the query carries a position.
func (q Query) ByCoordinates() bool {
	return q.Coordinates != nil
}

// Key returns the query exactly as given. Names are not canonicalized, so
// "Beira" and "beira" produce different keys.
func (q Query) Key() string {
	if q.Coordinates != nil {
		return formatFloat(q.Coordinates.Lat) + "," + formatFloat(q.Coordinates.Lon)
	}
	if q.Country != "" {
		return q.City + "," + q.Country
	}
	return q.City
}

func (q Query) String() string {
	return q.Key()
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Reading is a single point-in-time observation for one location.
// Treat it as immutable once returned by a provider.
type Reading struct {
	City          string     `json:"city"`
	Country       string     `json:"country"`
	Temperature   float64    `json:"temperature"`
	FeelsLike     float64    `json:"feelsLike"`
	HumidityPct   float64    `json:"humidityPct"`
	Description   string     `json:"description"`
	Icon          string     `json:"icon,omitempty"`
	Condition     Condition  `json:"condition"`
	WindSpeedKph  float64    `json:"windSpeedKph"`
	PressureHpa   *float64   `json:"pressureHpa,omitempty"`
	VisibilityKm  *float64   `json:"visibilityKm,omitempty"`
	CloudinessPct *float64   `json:"cloudinessPct,omitempty"`
	Units         Units      `json:"units"`
	Coordinates   *geo.Point `json:"coordinates,omitempty"`
	Source        Source     `json:"source"`
	ObservedAt    time.Time  `json:"observedAt"` // always UTC

	// OriginalCity holds the provider's name when normalization replaced it.
	OriginalCity string `json:"originalCity,omitempty"`
}

// DailyForecast is one day of a forecast, aggregated from finer samples
// where the provider has no daily endpoint.
type DailyForecast struct {
	Date            string    `json:"date"` // YYYY-MM-DD, location-local
	MinTemp         float64   `json:"minTemp"`
	MaxTemp         float64   `json:"maxTemp"`
	AvgTemp         float64   `json:"avgTemp"`
	HumidityPct     float64   `json:"humidityPct"`
	WindSpeedKph    float64   `json:"windSpeedKph"`
	ChanceOfRainPct *float64  `json:"chanceOfRainPct,omitempty"`
	Description     string    `json:"description"`
	Icon            string    `json:"icon,omitempty"`
	Condition       Condition `json:"condition"`
}

// Forecast is a multi-day sequence of daily readings for one location,
// ordered by date ascending.
type Forecast struct {
	City         string          `json:"city"`
	Country      string          `json:"country"`
	Coordinates  *geo.Point      `json:"coordinates,omitempty"`
	Units        Units           `json:"units"`
	Source       Source          `json:"source"`
	Days         []DailyForecast `json:"days"`
	OriginalCity string          `json:"originalCity,omitempty"`
}

// Float returns a pointer to v, for the optional Reading fields.
func Float(v float64) *float64 {
	return &v
}
