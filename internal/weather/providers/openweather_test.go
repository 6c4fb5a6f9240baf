package providers

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joanabot/joana-weather/internal/weather"
)

const owmCurrentBody = `{
  "coord": {"lon": 34.8389, "lat": -19.8436},
  "weather": [{"id": 500, "main": "Rain", "description": "chuva fraca", "icon": "10d"}],
  "main": {"temp": 27.4, "feels_like": 30.1, "pressure": 1009, "humidity": 78},
  "visibility": 10000,
  "wind": {"speed": 5},
  "clouds": {"all": 75},
  "dt": 1704110400,
  "sys": {"country": "MZ"},
  "timezone": 7200,
  "name": "Sofala"
}`

func TestOpenWeather_FetchCurrentByName(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"/data/2.5/weather": jsonHandler(t, http.StatusOK, owmCurrentBody, nil, func(r *http.Request) {
			q := r.URL.Query()
			assert.Equal(t, "Beira", q.Get("q"))
			assert.Equal(t, "metric", q.Get("units"))
			assert.Equal(t, "pt", q.Get("lang"))
			assert.Equal(t, testKey, q.Get("appid"))
		}),
	})

	p := NewOpenWeatherProvider(testHTTPClient(), testKey, WithBaseURL(srv.URL))
	r, err := p.FetchCurrent(context.Background(), weather.CityQuery("Beira"), weather.UnitsCelsius)
	require.NoError(t, err)

	assert.Equal(t, "Sofala", r.City, "provider name is returned as-is")
	assert.Equal(t, "MZ", r.Country)
	assert.Equal(t, 27.4, r.Temperature)
	assert.Equal(t, 30.1, r.FeelsLike)
	assert.Equal(t, 78.0, r.HumidityPct)
	assert.Equal(t, "chuva fraca", r.Description)
	assert.Equal(t, "10d", r.Icon)
	assert.Equal(t, weather.ConditionRain, r.Condition)
	assert.InDelta(t, 18.0, r.WindSpeedKph, 0.01)
	require.NotNil(t, r.PressureHpa)
	assert.Equal(t, 1009.0, *r.PressureHpa)
	require.NotNil(t, r.VisibilityKm)
	assert.Equal(t, 10.0, *r.VisibilityKm)
	require.NotNil(t, r.CloudinessPct)
	assert.Equal(t, 75.0, *r.CloudinessPct)
	require.NotNil(t, r.Coordinates)
	assert.Equal(t, -19.8436, r.Coordinates.Lat)
	assert.Equal(t, weather.SourceOpenWeather, r.Source)
	assert.Equal(t, weather.UnitsCelsius, r.Units)
	assert.Equal(t, time.Unix(1704110400, 0).UTC(), r.ObservedAt)
}

func TestOpenWeather_FetchCurrentByCoordinatesImperial(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"/data/2.5/weather": jsonHandler(t, http.StatusOK, owmCurrentBody, nil, func(r *http.Request) {
			q := r.URL.Query()
			assert.Empty(t, q.Get("q"))
			assert.Equal(t, "-19.8436", q.Get("lat"))
			assert.Equal(t, "34.8389", q.Get("lon"))
			assert.Equal(t, "imperial", q.Get("units"))
		}),
	})

	p := NewOpenWeatherProvider(testHTTPClient(), testKey, WithBaseURL(srv.URL))
	r, err := p.FetchCurrent(context.Background(), weather.CoordinatesQuery(-19.8436, 34.8389), weather.UnitsFahrenheit)
	require.NoError(t, err)

	// 5 mph
	assert.InDelta(t, 8.0, r.WindSpeedKph, 0.01)
	assert.Equal(t, weather.UnitsFahrenheit, r.Units)
}

func TestOpenWeather_NotFound(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"/data/2.5/weather": jsonHandler(t, http.StatusNotFound, `{"cod":"404","message":"city not found"}`, nil, nil),
	})

	p := NewOpenWeatherProvider(testHTTPClient(), testKey, WithBaseURL(srv.URL))
	_, err := p.FetchCurrent(context.Background(), weather.CityQuery("Atlantis"), weather.UnitsCelsius)
	require.Error(t, err)

	var pe *weather.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, weather.SourceOpenWeather, pe.Provider)
	assert.Equal(t, weather.OpCurrent, pe.Op)
	assert.Equal(t, http.StatusNotFound, pe.StatusCode)
	assert.ErrorIs(t, err, weather.ErrCityNotFound)
}

func TestOpenWeather_MalformedPayload(t *testing.T) {
	for name, body := range map[string]string{
		"invalid json": `{"main": `,
		"no main":      `{"name": "Beira", "weather": []}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, map[string]http.HandlerFunc{
				"/data/2.5/weather": jsonHandler(t, http.StatusOK, body, nil, nil),
			})

			p := NewOpenWeatherProvider(testHTTPClient(), testKey, WithBaseURL(srv.URL))
			_, err := p.FetchCurrent(context.Background(), weather.CityQuery("Beira"), weather.UnitsCelsius)
			assert.ErrorIs(t, err, weather.ErrMalformedResponse)
		})
	}
}

func TestOpenWeather_MissingAPIKey(t *testing.T) {
	var hits atomic.Int32
	srv := newServer(t, map[string]http.HandlerFunc{
		"/": jsonHandler(t, http.StatusOK, owmCurrentBody, &hits, nil),
	})

	p := NewOpenWeatherProvider(testHTTPClient(), "", WithBaseURL(srv.URL))
	_, err := p.FetchCurrent(context.Background(), weather.CityQuery("Beira"), weather.UnitsCelsius)

	var pe *weather.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.ErrorIs(t, err, errMissingAPIKey)
	assert.Zero(t, hits.Load())
}

// Samples straddle local midnight at UTC+2: 19:00Z is still Jan 1 locally,
// 22:00Z and 01:00Z are Jan 2.
const owmForecastBody = `{
  "list": [
    {"dt": 1704135600, "main": {"temp": 26, "temp_min": 25, "temp_max": 26, "humidity": 80},
     "weather": [{"main": "Clouds", "description": "nublado", "icon": "04n"}], "wind": {"speed": 2}, "pop": 0.1},
    {"dt": 1704146400, "main": {"temp": 24, "temp_min": 23, "temp_max": 24, "humidity": 90},
     "weather": [{"main": "Rain", "description": "chuva", "icon": "10n"}], "wind": {"speed": 4}, "pop": 0.8},
    {"dt": 1704157200, "main": {"temp": 22, "temp_min": 22, "temp_max": 23, "humidity": 94},
     "weather": [{"main": "Rain", "description": "chuva", "icon": "10n"}], "wind": {"speed": 6}, "pop": 0.5}
  ],
  "city": {"name": "Beira", "coord": {"lat": -19.8436, "lon": 34.8389}, "country": "MZ", "timezone": 7200}
}`

const owmGeocodeBody = `[{"name": "Beira", "lat": -19.8436, "lon": 34.8389, "country": "MZ"}]`

func TestOpenWeather_FetchForecastAggregatesLocalDays(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"/geo/1.0/direct": jsonHandler(t, http.StatusOK, owmGeocodeBody, nil, func(r *http.Request) {
			assert.Equal(t, "Beira", r.URL.Query().Get("q"))
			assert.Equal(t, "1", r.URL.Query().Get("limit"))
		}),
		"/data/2.5/forecast": jsonHandler(t, http.StatusOK, owmForecastBody, nil, func(r *http.Request) {
			assert.Equal(t, "-19.8436", r.URL.Query().Get("lat"))
			assert.Equal(t, "34.8389", r.URL.Query().Get("lon"))
		}),
	})

	p := NewOpenWeatherProvider(testHTTPClient(), testKey, WithBaseURL(srv.URL))
	f, err := p.FetchForecast(context.Background(), "Beira", 5, weather.UnitsCelsius)
	require.NoError(t, err)

	assert.Equal(t, "Beira", f.City)
	assert.Equal(t, weather.SourceOpenWeather, f.Source)
	require.Len(t, f.Days, 2)

	first := f.Days[0]
	assert.Equal(t, "2024-01-01", first.Date)
	assert.Equal(t, 25.0, first.MinTemp)
	assert.Equal(t, "nublado", first.Description)

	second := f.Days[1]
	assert.Equal(t, "2024-01-02", second.Date)
	assert.Equal(t, 22.0, second.MinTemp)
	assert.Equal(t, 24.0, second.MaxTemp)
	assert.Equal(t, 23.0, second.AvgTemp)
	assert.Equal(t, 92.0, second.HumidityPct)
	assert.InDelta(t, 18.0, second.WindSpeedKph, 0.01)
	require.NotNil(t, second.ChanceOfRainPct)
	assert.InDelta(t, 80.0, *second.ChanceOfRainPct, 0.001)
	assert.Equal(t, "chuva", second.Description)
	assert.Equal(t, "10n", second.Icon)
	assert.Equal(t, weather.ConditionRain, second.Condition)
}

func TestOpenWeather_FetchForecastLimitsDays(t *testing.T) {
	srv := newServer(t, map[string]http.HandlerFunc{
		"/geo/1.0/direct":    jsonHandler(t, http.StatusOK, owmGeocodeBody, nil, nil),
		"/data/2.5/forecast": jsonHandler(t, http.StatusOK, owmForecastBody, nil, nil),
	})

	p := NewOpenWeatherProvider(testHTTPClient(), testKey, WithBaseURL(srv.URL))
	f, err := p.FetchForecast(context.Background(), "Beira", 1, weather.UnitsCelsius)
	require.NoError(t, err)
	require.Len(t, f.Days, 1)
	assert.Equal(t, "2024-01-01", f.Days[0].Date)
}

func TestOpenWeather_FetchForecastGeocodeNotFound(t *testing.T) {
	var forecastHits atomic.Int32
	srv := newServer(t, map[string]http.HandlerFunc{
		"/geo/1.0/direct":    jsonHandler(t, http.StatusOK, `[]`, nil, nil),
		"/data/2.5/forecast": jsonHandler(t, http.StatusOK, owmForecastBody, &forecastHits, nil),
	})

	p := NewOpenWeatherProvider(testHTTPClient(), testKey, WithBaseURL(srv.URL))
	_, err := p.FetchForecast(context.Background(), "Atlantis", 3, weather.UnitsCelsius)

	var pe *weather.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, weather.OpGeocode, pe.Op)
	assert.ErrorIs(t, err, weather.ErrGeocodeNotFound)
	assert.Zero(t, forecastHits.Load())
}
