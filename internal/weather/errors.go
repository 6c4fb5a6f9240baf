package weather

import (
	"errors"
	"fmt"
)

// Provider operations, used in errors, logs and metrics.
const (
	OpCurrent  = "current"
	OpForecast = "forecast"
	OpGeocode  = "geocode"
)

var (
	// ErrAllProvidersFailed is returned when every provider failed a lookup.
	ErrAllProvidersFailed = errors.New("weather unavailable from all providers")

	// ErrNoProviders is returned when the resolver has nothing to try.
	ErrNoProviders = errors.New("no weather providers configured")

	// ErrInvalidQuery is returned for empty names, bad coordinates or units.
	ErrInvalidQuery = errors.New("invalid weather query")

	// ErrCityNotFound is returned when a provider does not know the location.
	ErrCityNotFound = errors.New("city not found")

	// ErrGeocodeNotFound is returned when a name-to-coordinates step finds nothing.
	ErrGeocodeNotFound = errors.New("geocoding returned no results")

	// ErrMalformedResponse is returned when a provider payload cannot be mapped.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// ProviderError reports a failed call to a single provider.
type ProviderError struct {
	Provider   Source
	Op         string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: status %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}
