package weather

import (
	"context"

	"github.com/joanabot/joana-weather/internal/geo"
)

// Provider abstracts a weather data source (e.g. OpenWeatherMap, WeatherAPI, Open-Meteo).
// Each call makes its own outbound request and maps the payload to the
// shared types. Failures are returned as *ProviderError; partial data is
// never returned.
type Provider interface {
	Name() Source
	FetchCurrent(ctx context.Context, q Query, units Units) (Reading, error)
	FetchForecast(ctx context.Context, city string, days int, units Units) (Forecast, error)
}

// ReadingCache stores current-weather readings by lookup key.
type ReadingCache interface {
	Get(key string) (Reading, bool)
	Set(key string, r Reading)
}

// ForecastCache stores forecasts by lookup key.
type ForecastCache interface {
	Get(key string) (Forecast, bool)
	Set(key string, f Forecast)
}

// CityNormalizer maps provider city names to canonical names.
type CityNormalizer interface {
	Normalize(raw string, coords *geo.Point) string
}

type noCache[V any] struct{}

func (noCache[V]) Get(string) (V, bool) {
	var zero V
	return zero, false
}

func (noCache[V]) Set(string, V) {}

type identityNormalizer struct{}

func (identityNormalizer) Normalize(raw string, _ *geo.Point) string { return raw }
