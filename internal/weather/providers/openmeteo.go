package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/joanabot/joana-weather/internal/geo"
	"github.com/joanabot/joana-weather/internal/weather"
)

const openMeteoBaseURL = "https://api.open-meteo.com"

// Geocoder resolves a city name to coordinates. Open-Meteo only accepts
// positions, so named lookups go through one.
type Geocoder interface {
	Geocode(ctx context.Context, city string) (geo.Point, error)
}

// ReverseGeocoder names a position. A Geocoder that also implements it
// fills City and Country on coordinate readings.
type ReverseGeocoder interface {
	ReverseGeocode(ctx context.Context, p geo.Point) (city, country string, err error)
}

// OpenMeteoProvider implements weather.Provider for Open-Meteo. It needs no
// API key but depends on a Geocoder for named lookups.
type OpenMeteoProvider struct {
	geocoder Geocoder
	baseURL  string
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
}

func NewOpenMeteoProvider(client *http.Client, geocoder Geocoder, opts ...Option) *OpenMeteoProvider {
	s := newSettings(openMeteoBaseURL, opts)
	return &OpenMeteoProvider{
		geocoder: geocoder,
		baseURL:  s.baseURL,
		httpCfg:  HTTPClientConfig{Client: client, Backoff: s.backoff},
		circuit:  newCircuitBreaker("openmeteo"),
	}
}

func (p *OpenMeteoProvider) Name() weather.Source {
	return weather.SourceOpenMeteo
}

type omCurrent struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   *struct {
		Time                int64    `json:"time"`
		Temperature         float64  `json:"temperature_2m"`
		RelativeHumidity    float64  `json:"relative_humidity_2m"`
		ApparentTemperature float64  `json:"apparent_temperature"`
		WeatherCode         int      `json:"weather_code"`
		WindSpeed           float64  `json:"wind_speed_10m"`
		SurfacePressure     *float64 `json:"surface_pressure"`
		CloudCover          *float64 `json:"cloud_cover"`
		Visibility          *float64 `json:"visibility"` // metres
	} `json:"current"`
}

type omDaily struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Daily     *struct {
		Time         []string   `json:"time"`
		WeatherCode  []int      `json:"weather_code"`
		TempMax      []float64  `json:"temperature_2m_max"`
		TempMin      []float64  `json:"temperature_2m_min"`
		TempMean     []float64  `json:"temperature_2m_mean"`
		HumidityMean []float64  `json:"relative_humidity_2m_mean"`
		WindMax      []float64  `json:"wind_speed_10m_max"`
		PrecipProb   []*float64 `json:"precipitation_probability_max"`
	} `json:"daily"`
}

// FetchCurrent returns the current reading. Coordinate readings carry an
// empty City when the geocoder cannot name the position.
func (p *OpenMeteoProvider) FetchCurrent(ctx context.Context, q weather.Query, units weather.Units) (weather.Reading, error) {
	pos, err := p.position(ctx, q)
	if err != nil {
		return weather.Reading{}, providerErr(p.Name(), weather.OpGeocode, err)
	}

	values := p.values(pos, units)
	values.Set("current", strings.Join([]string{
		"temperature_2m", "relative_humidity_2m", "apparent_temperature", "weather_code",
		"wind_speed_10m", "surface_pressure", "cloud_cover", "visibility",
	}, ","))
	values.Set("timeformat", "unixtime")

	var payload omCurrent
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.baseURL, "/v1/forecast", values), &payload); err != nil {
		return weather.Reading{}, providerErr(p.Name(), weather.OpCurrent, err)
	}
	cur := payload.Current
	if cur == nil {
		return weather.Reading{}, providerErr(p.Name(), weather.OpCurrent,
			fmt.Errorf("%w: missing current block", weather.ErrMalformedResponse))
	}

	r := weather.Reading{
		City:          q.City,
		Country:       q.Country,
		Temperature:   cur.Temperature,
		FeelsLike:     cur.ApparentTemperature,
		HumidityPct:   cur.RelativeHumidity,
		Description:   wmoDescription(cur.WeatherCode),
		Icon:          strconv.Itoa(cur.WeatherCode),
		Condition:     mapOpenMeteoCondition(cur.WeatherCode),
		WindSpeedKph:  cur.WindSpeed,
		PressureHpa:   cur.SurfacePressure,
		CloudinessPct: cur.CloudCover,
		Units:         units,
		Coordinates:   &geo.Point{Lat: pos.Lat, Lon: pos.Lon},
		Source:        p.Name(),
		ObservedAt:    observedAt(cur.Time),
	}
	if cur.Visibility != nil {
		r.VisibilityKm = weather.Float(*cur.Visibility / 1000)
	}
	if q.ByCoordinates() {
		r.City, r.Country = p.placeName(ctx, pos)
	}
	return r, nil
}

func (p *OpenMeteoProvider) FetchForecast(ctx context.Context, city string, days int, units weather.Units) (weather.Forecast, error) {
	pos, err := p.position(ctx, weather.CityQuery(city))
	if err != nil {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpGeocode, err)
	}

	values := p.values(pos, units)
	values.Set("daily", strings.Join([]string{
		"weather_code", "temperature_2m_max", "temperature_2m_min", "temperature_2m_mean",
		"relative_humidity_2m_mean", "wind_speed_10m_max", "precipitation_probability_max",
	}, ","))
	values.Set("forecast_days", strconv.Itoa(days))

	var payload omDaily
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.baseURL, "/v1/forecast", values), &payload); err != nil {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpForecast, err)
	}
	d := payload.Daily
	if d == nil || len(d.Time) == 0 {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpForecast,
			fmt.Errorf("%w: missing daily block", weather.ErrMalformedResponse))
	}
	n := len(d.Time)
	if len(d.WeatherCode) < n || len(d.TempMax) < n || len(d.TempMin) < n {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpForecast,
			fmt.Errorf("%w: daily series lengths differ", weather.ErrMalformedResponse))
	}

	out := make([]weather.DailyForecast, 0, n)
	for i := 0; i < n && len(out) < days; i++ {
		code := d.WeatherCode[i]
		day := weather.DailyForecast{
			Date:        d.Time[i],
			MinTemp:     d.TempMin[i],
			MaxTemp:     d.TempMax[i],
			AvgTemp:     round1((d.TempMin[i] + d.TempMax[i]) / 2),
			Description: wmoDescription(code),
			Icon:        strconv.Itoa(code),
			Condition:   mapOpenMeteoCondition(code),
		}
		if i < len(d.TempMean) {
			day.AvgTemp = d.TempMean[i]
		}
		if i < len(d.HumidityMean) {
			day.HumidityPct = d.HumidityMean[i]
		}
		if i < len(d.WindMax) {
			day.WindSpeedKph = d.WindMax[i]
		}
		if i < len(d.PrecipProb) {
			day.ChanceOfRainPct = d.PrecipProb[i]
		}
		out = append(out, day)
	}

	return weather.Forecast{
		City:        city,
		Coordinates: &geo.Point{Lat: pos.Lat, Lon: pos.Lon},
		Units:       units,
		Source:      p.Name(),
		Days:        out,
	}, nil
}

func (p *OpenMeteoProvider) position(ctx context.Context, q weather.Query) (geo.Point, error) {
	if q.ByCoordinates() {
		return *q.Coordinates, nil
	}
	if p.geocoder == nil {
		return geo.Point{}, fmt.Errorf("%w: no geocoder configured", weather.ErrGeocodeNotFound)
	}
	return p.geocoder.Geocode(ctx, q.City)
}

// placeName is best effort; a failed lookup leaves the reading unnamed.
func (p *OpenMeteoProvider) placeName(ctx context.Context, pos geo.Point) (string, string) {
	rg, ok := p.geocoder.(ReverseGeocoder)
	if !ok {
		return "", ""
	}
	city, country, err := rg.ReverseGeocode(ctx, pos)
	if err != nil {
		return "", ""
	}
	return city, country
}

func (p *OpenMeteoProvider) values(pos geo.Point, units weather.Units) url.Values {
	values := url.Values{}
	values.Set("latitude", formatCoord(pos.Lat))
	values.Set("longitude", formatCoord(pos.Lon))
	values.Set("wind_speed_unit", "kmh")
	values.Set("timezone", "auto")
	if units == weather.UnitsFahrenheit {
		values.Set("temperature_unit", "fahrenheit")
	}
	return values
}
