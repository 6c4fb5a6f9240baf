package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"github.com/joanabot/joana-weather/internal/geo"
	"github.com/joanabot/joana-weather/internal/weather"
)

const openWeatherBaseURL = "https://api.openweathermap.org"

// OpenWeatherProvider implements weather.Provider for OpenWeatherMap.
// Forecasts are built from the 3-hour feed, geocoding the name first.
type OpenWeatherProvider struct {
	apiKey  string
	baseURL string
	lang    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey string, opts ...Option) *OpenWeatherProvider {
	s := newSettings(openWeatherBaseURL, opts)
	return &OpenWeatherProvider{
		apiKey:  apiKey,
		baseURL: s.baseURL,
		lang:    s.lang,
		httpCfg: HTTPClientConfig{Client: client, Backoff: s.backoff},
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherProvider) Name() weather.Source {
	return weather.SourceOpenWeather
}

type owmCondition struct {
	Main        string `json:"main"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

type owmCurrent struct {
	Coord struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"coord"`
	Weather []owmCondition `json:"weather"`
	Main    *struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Pressure  float64 `json:"pressure"`
		Humidity  float64 `json:"humidity"`
	} `json:"main"`
	Visibility *float64 `json:"visibility"` // metres
	Wind       struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Clouds *struct {
		All float64 `json:"all"`
	} `json:"clouds"`
	Dt  int64 `json:"dt"`
	Sys struct {
		Country string `json:"country"`
	} `json:"sys"`
	Name string `json:"name"`
}

type owmGeocode struct {
	Name    string  `json:"name"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Country string  `json:"country"`
}

type owmForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp     float64 `json:"temp"`
			TempMin  float64 `json:"temp_min"`
			TempMax  float64 `json:"temp_max"`
			Humidity float64 `json:"humidity"`
		} `json:"main"`
		Weather []owmCondition `json:"weather"`
		Wind    struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Pop float64 `json:"pop"` // 0..1
	} `json:"list"`
	City struct {
		Name  string `json:"name"`
		Coord struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
		Country  string `json:"country"`
		Timezone int    `json:"timezone"` // seconds east of UTC
	} `json:"city"`
}

func (p *OpenWeatherProvider) FetchCurrent(ctx context.Context, q weather.Query, units weather.Units) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, providerErr(p.Name(), weather.OpCurrent, errMissingAPIKey)
	}

	values := p.values(units)
	if q.ByCoordinates() {
		values.Set("lat", formatCoord(q.Coordinates.Lat))
		values.Set("lon", formatCoord(q.Coordinates.Lon))
	} else {
		values.Set("q", q.Key())
	}

	var payload owmCurrent
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.baseURL, "/data/2.5/weather", values), &payload); err != nil {
		return weather.Reading{}, providerErr(p.Name(), weather.OpCurrent, err)
	}
	if payload.Main == nil {
		return weather.Reading{}, providerErr(p.Name(), weather.OpCurrent,
			fmt.Errorf("%w: missing main block", weather.ErrMalformedResponse))
	}

	r := weather.Reading{
		City:         payload.Name,
		Country:      payload.Sys.Country,
		Temperature:  payload.Main.Temp,
		FeelsLike:    payload.Main.FeelsLike,
		HumidityPct:  payload.Main.Humidity,
		Condition:    weather.ConditionUnknown,
		WindSpeedKph: round1(p.windKph(payload.Wind.Speed, units)),
		PressureHpa:  weather.Float(payload.Main.Pressure),
		Units:        units,
		Coordinates:  &geo.Point{Lat: payload.Coord.Lat, Lon: payload.Coord.Lon},
		Source:       p.Name(),
		ObservedAt:   observedAt(payload.Dt),
	}
	if len(payload.Weather) > 0 {
		r.Description = payload.Weather[0].Description
		r.Icon = payload.Weather[0].Icon
		r.Condition = mapOpenWeatherCondition(payload.Weather[0].Main)
	}
	if payload.Visibility != nil {
		r.VisibilityKm = weather.Float(*payload.Visibility / 1000)
	}
	if payload.Clouds != nil {
		r.CloudinessPct = weather.Float(payload.Clouds.All)
	}
	return r, nil
}

func (p *OpenWeatherProvider) FetchForecast(ctx context.Context, city string, days int, units weather.Units) (weather.Forecast, error) {
	if p.apiKey == "" {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpForecast, errMissingAPIKey)
	}

	loc, err := p.geocode(ctx, city)
	if err != nil {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpGeocode, err)
	}

	values := p.values(units)
	values.Set("lat", formatCoord(loc.Lat))
	values.Set("lon", formatCoord(loc.Lon))

	var payload owmForecast
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.baseURL, "/data/2.5/forecast", values), &payload); err != nil {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpForecast, err)
	}
	if len(payload.List) == 0 {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpForecast,
			fmt.Errorf("%w: empty forecast list", weather.ErrMalformedResponse))
	}

	zone := time.FixedZone("", payload.City.Timezone)
	samples := make([]weather.Sample, 0, len(payload.List))
	for _, item := range payload.List {
		s := weather.Sample{
			LocalTime:       time.Unix(item.Dt, 0).In(zone),
			Temp:            item.Main.Temp,
			TempMin:         item.Main.TempMin,
			TempMax:         item.Main.TempMax,
			HumidityPct:     item.Main.Humidity,
			WindSpeedKph:    p.windKph(item.Wind.Speed, units),
			ChanceOfRainPct: item.Pop * 100,
			Condition:       weather.ConditionUnknown,
		}
		if len(item.Weather) > 0 {
			s.Description = item.Weather[0].Description
			s.Icon = item.Weather[0].Icon
			s.Condition = mapOpenWeatherCondition(item.Weather[0].Main)
		}
		samples = append(samples, s)
	}

	name := payload.City.Name
	if name == "" {
		name = loc.Name
	}
	country := payload.City.Country
	if country == "" {
		country = loc.Country
	}

	return weather.Forecast{
		City:        name,
		Country:     country,
		Coordinates: &geo.Point{Lat: loc.Lat, Lon: loc.Lon},
		Units:       units,
		Source:      p.Name(),
		Days:        weather.AggregateDays(samples, days),
	}, nil
}

func (p *OpenWeatherProvider) geocode(ctx context.Context, city string) (owmGeocode, error) {
	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("q", city)
	values.Set("limit", "1")

	var results []owmGeocode
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.baseURL, "/geo/1.0/direct", values), &results); err != nil {
		return owmGeocode{}, err
	}
	if len(results) == 0 {
		return owmGeocode{}, fmt.Errorf("%w: %q", weather.ErrGeocodeNotFound, city)
	}
	return results[0], nil
}

func (p *OpenWeatherProvider) values(units weather.Units) url.Values {
	values := url.Values{}
	values.Set("appid", p.apiKey)
	values.Set("units", "metric")
	if units == weather.UnitsFahrenheit {
		values.Set("units", "imperial")
	}
	if p.lang != "" {
		values.Set("lang", p.lang)
	}
	return values
}

// windKph converts wind speed: metric is m/s, imperial is mph.
func (p *OpenWeatherProvider) windKph(speed float64, units weather.Units) float64 {
	if units == weather.UnitsFahrenheit {
		return mphToKph(speed)
	}
	return msToKph(speed)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func observedAt(unix int64) time.Time {
	if unix <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(unix, 0).UTC()
}
