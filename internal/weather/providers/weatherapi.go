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

const weatherAPIBaseURL = "https://api.weatherapi.com/v1"

// WeatherAPIProvider implements weather.Provider for WeatherAPI.com.
// Both unit systems come back in every payload; the requested one is picked.
type WeatherAPIProvider struct {
	apiKey  string
	baseURL string
	lang    string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewWeatherAPIProvider(client *http.Client, apiKey string, opts ...Option) *WeatherAPIProvider {
	s := newSettings(weatherAPIBaseURL, opts)
	return &WeatherAPIProvider{
		apiKey:  apiKey,
		baseURL: s.baseURL,
		lang:    s.lang,
		httpCfg: HTTPClientConfig{Client: client, Backoff: s.backoff},
		circuit: newCircuitBreaker("weatherapi"),
	}
}

func (p *WeatherAPIProvider) Name() weather.Source {
	return weather.SourceWeatherAPI
}

type wapiCondition struct {
	Text string `json:"text"`
	Icon string `json:"icon"`
	Code int    `json:"code"`
}

type wapiLocation struct {
	Name           string  `json:"name"`
	Country        string  `json:"country"`
	Lat            float64 `json:"lat"`
	Lon            float64 `json:"lon"`
	LocaltimeEpoch int64   `json:"localtime_epoch"`
}

type wapiCurrent struct {
	Location wapiLocation `json:"location"`
	Current  *struct {
		LastUpdatedEpoch int64         `json:"last_updated_epoch"`
		TempC            float64       `json:"temp_c"`
		TempF            float64       `json:"temp_f"`
		FeelsLikeC       float64       `json:"feelslike_c"`
		FeelsLikeF       float64       `json:"feelslike_f"`
		Humidity         float64       `json:"humidity"`
		WindKph          float64       `json:"wind_kph"`
		PressureMb       float64       `json:"pressure_mb"`
		VisKm            *float64      `json:"vis_km"`
		Cloud            *float64      `json:"cloud"`
		Condition        wapiCondition `json:"condition"`
	} `json:"current"`
}

type wapiForecast struct {
	Location wapiLocation `json:"location"`
	Forecast *struct {
		ForecastDay []struct {
			Date string `json:"date"`
			Day  struct {
				MaxTempC     float64       `json:"maxtemp_c"`
				MaxTempF     float64       `json:"maxtemp_f"`
				MinTempC     float64       `json:"mintemp_c"`
				MinTempF     float64       `json:"mintemp_f"`
				AvgTempC     float64       `json:"avgtemp_c"`
				AvgTempF     float64       `json:"avgtemp_f"`
				MaxWindKph   float64       `json:"maxwind_kph"`
				AvgHumidity  float64       `json:"avghumidity"`
				ChanceOfRain *float64      `json:"daily_chance_of_rain"`
				Condition    wapiCondition `json:"condition"`
			} `json:"day"`
		} `json:"forecastday"`
	} `json:"forecast"`
}

func (p *WeatherAPIProvider) FetchCurrent(ctx context.Context, q weather.Query, units weather.Units) (weather.Reading, error) {
	if p.apiKey == "" {
		return weather.Reading{}, providerErr(p.Name(), weather.OpCurrent, errMissingAPIKey)
	}

	// WeatherAPI uses "q" for location; it accepts "city,country" or "lat,lon".
	values := p.values(q.Key())

	var payload wapiCurrent
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.baseURL, "/current.json", values), &payload); err != nil {
		return weather.Reading{}, providerErr(p.Name(), weather.OpCurrent, err)
	}
	cur := payload.Current
	if cur == nil {
		return weather.Reading{}, providerErr(p.Name(), weather.OpCurrent,
			fmt.Errorf("%w: missing current block", weather.ErrMalformedResponse))
	}

	temp, feels := cur.TempC, cur.FeelsLikeC
	if units == weather.UnitsFahrenheit {
		temp, feels = cur.TempF, cur.FeelsLikeF
	}

	epoch := cur.LastUpdatedEpoch
	if epoch <= 0 {
		epoch = payload.Location.LocaltimeEpoch
	}

	return weather.Reading{
		City:          payload.Location.Name,
		Country:       payload.Location.Country,
		Temperature:   temp,
		FeelsLike:     feels,
		HumidityPct:   cur.Humidity,
		Description:   cur.Condition.Text,
		Icon:          iconURL(cur.Condition.Icon),
		Condition:     mapWeatherAPICondition(cur.Condition.Code, cur.Condition.Text),
		WindSpeedKph:  cur.WindKph,
		PressureHpa:   weather.Float(cur.PressureMb),
		VisibilityKm:  cur.VisKm,
		CloudinessPct: cur.Cloud,
		Units:         units,
		Coordinates:   &geo.Point{Lat: payload.Location.Lat, Lon: payload.Location.Lon},
		Source:        p.Name(),
		ObservedAt:    observedAt(epoch),
	}, nil
}

func (p *WeatherAPIProvider) FetchForecast(ctx context.Context, city string, days int, units weather.Units) (weather.Forecast, error) {
	if p.apiKey == "" {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpForecast, errMissingAPIKey)
	}

	values := p.values(city)
	values.Set("days", strconv.Itoa(days))
	values.Set("aqi", "no")
	values.Set("alerts", "no")

	var payload wapiForecast
	if err := getJSON(ctx, p.httpCfg, p.circuit, getRequest(p.baseURL, "/forecast.json", values), &payload); err != nil {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpForecast, err)
	}
	if payload.Forecast == nil || len(payload.Forecast.ForecastDay) == 0 {
		return weather.Forecast{}, providerErr(p.Name(), weather.OpForecast,
			fmt.Errorf("%w: missing forecast days", weather.ErrMalformedResponse))
	}

	out := make([]weather.DailyForecast, 0, len(payload.Forecast.ForecastDay))
	for _, fd := range payload.Forecast.ForecastDay {
		if len(out) == days {
			break
		}
		d := fd.Day
		day := weather.DailyForecast{
			Date:            fd.Date,
			MinTemp:         d.MinTempC,
			MaxTemp:         d.MaxTempC,
			AvgTemp:         d.AvgTempC,
			HumidityPct:     d.AvgHumidity,
			WindSpeedKph:    d.MaxWindKph,
			ChanceOfRainPct: d.ChanceOfRain,
			Description:     d.Condition.Text,
			Icon:            iconURL(d.Condition.Icon),
			Condition:       mapWeatherAPICondition(d.Condition.Code, d.Condition.Text),
		}
		if units == weather.UnitsFahrenheit {
			day.MinTemp, day.MaxTemp, day.AvgTemp = d.MinTempF, d.MaxTempF, d.AvgTempF
		}
		out = append(out, day)
	}

	return weather.Forecast{
		City:        payload.Location.Name,
		Country:     payload.Location.Country,
		Coordinates: &geo.Point{Lat: payload.Location.Lat, Lon: payload.Location.Lon},
		Units:       units,
		Source:      p.Name(),
		Days:        out,
	}, nil
}

func (p *WeatherAPIProvider) values(q string) url.Values {
	values := url.Values{}
	values.Set("key", p.apiKey)
	values.Set("q", q)
	if p.lang != "" {
		values.Set("lang", p.lang)
	}
	return values
}

// iconURL makes WeatherAPI's protocol-relative icon links absolute.
func iconURL(icon string) string {
	if strings.HasPrefix(icon, "//") {
		return "https:" + icon
	}
	return icon
}
