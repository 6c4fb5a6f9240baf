package providers

import (
	"context"
	"fmt"
	"sync"

	"github.com/kelvins/geocoder"

	"github.com/joanabot/joana-weather/internal/geo"
	"github.com/joanabot/joana-weather/internal/weather"
)

// googleKeyMu guards the geocoder package's global API key.
var googleKeyMu sync.Mutex

// GoogleGeocoder resolves names with the Google Geocoding API.
type GoogleGeocoder struct {
	apiKey  string
	country string
}

// NewGoogleGeocoder returns a Geocoder that biases lookups to country,
// e.g. "Mozambique". An empty country disables the bias.
func NewGoogleGeocoder(apiKey, country string) *GoogleGeocoder {
	return &GoogleGeocoder{apiKey: apiKey, country: country}
}

// Geocode looks city up. The underlying client has no context support, so
// ctx is only checked before the call.
func (g *GoogleGeocoder) Geocode(ctx context.Context, city string) (geo.Point, error) {
	if err := ctx.Err(); err != nil {
		return geo.Point{}, err
	}
	if g.apiKey == "" {
		return geo.Point{}, errMissingAPIKey
	}

	googleKeyMu.Lock()
	geocoder.ApiKey = g.apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: city, Country: g.country})
	googleKeyMu.Unlock()
	if err != nil {
		return geo.Point{}, fmt.Errorf("%w: %q: %v", weather.ErrGeocodeNotFound, city, err)
	}
	return locationPoint(city, loc)
}

// ReverseGeocode returns the first city name Google reports for p.
func (g *GoogleGeocoder) ReverseGeocode(ctx context.Context, p geo.Point) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}
	if g.apiKey == "" {
		return "", "", errMissingAPIKey
	}

	googleKeyMu.Lock()
	geocoder.ApiKey = g.apiKey
	addrs, err := geocoder.GeocodingReverse(geocoder.Location{Latitude: p.Lat, Longitude: p.Lon})
	googleKeyMu.Unlock()
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", weather.ErrGeocodeNotFound, err)
	}
	return firstCity(addrs)
}

// locationPoint rejects out-of-range positions and the zero point, which
// the client returns for an empty result.
func locationPoint(city string, loc geocoder.Location) (geo.Point, error) {
	p := geo.Point{Lat: loc.Latitude, Lon: loc.Longitude}
	if !p.Valid() || (p.Lat == 0 && p.Lon == 0) {
		return geo.Point{}, fmt.Errorf("%w: %q", weather.ErrGeocodeNotFound, city)
	}
	return p, nil
}

func firstCity(addrs []geocoder.Address) (string, string, error) {
	for _, a := range addrs {
		if a.City != "" {
			return a.City, a.Country, nil
		}
	}
	return "", "", fmt.Errorf("%w: no city at position", weather.ErrGeocodeNotFound)
}
