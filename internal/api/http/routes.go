package httpapi

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/joanabot/joana-weather/internal/cityname"
	"github.com/joanabot/joana-weather/internal/geo"
	"github.com/joanabot/joana-weather/internal/weather"
)

// msgWeatherUnavailable is the only failure text clients see when every
// provider failed.
const msgWeatherUnavailable = "could not find weather for this city"

var validate = validator.New()

// WeatherService is the lookup surface the routes need.
type WeatherService interface {
	GetCurrentWeather(ctx context.Context, city string, units weather.Units) (weather.Reading, error)
	GetCurrentWeatherByCoordinates(ctx context.Context, lat, lon float64, units weather.Units) (weather.Reading, error)
	GetWeatherForecast(ctx context.Context, city string, days int, units weather.Units) (weather.Forecast, error)
}

// CityResolver normalizes a city name and reports the rule used.
type CityResolver interface {
	Resolve(raw string, coords *geo.Point) (string, cityname.Rule)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service WeatherService, names CityResolver) {
	v1 := app.Group("/api/v1")

	v1.Get("/weather/current", func(c *fiber.Ctx) error {
		q, err := parseCurrentQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		var reading weather.Reading
		if q.Coordinates != nil {
			reading, err = service.GetCurrentWeatherByCoordinates(c.UserContext(), q.Coordinates.Lat, q.Coordinates.Lon, q.units)
		} else {
			reading, err = service.GetCurrentWeather(c.UserContext(), q.City, q.units)
		}
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(reading)
	})

	v1.Get("/weather/forecast", func(c *fiber.Ctx) error {
		q, err := parseForecastQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		forecast, err := service.GetWeatherForecast(c.UserContext(), q.City, q.Days, q.units)
		if err != nil {
			return lookupError(err)
		}
		return c.JSON(forecast)
	})

	v1.Get("/cities/normalize", func(c *fiber.Ctx) error {
		q, err := parseNormalizeQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		city, rule := names.Resolve(q.Name, q.Coordinates)
		return c.JSON(normalizeResponse{
			Input:   q.Name,
			City:    city,
			Rule:    rule,
			Changed: city != q.Name,
		})
	})
}

// lookupError maps resolver errors to HTTP errors without leaking
// provider detail.
func lookupError(err error) error {
	switch {
	case errors.Is(err, weather.ErrInvalidQuery):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fiber.NewError(fiber.StatusGatewayTimeout, "weather lookup timed out")
	case errors.Is(err, weather.ErrAllProvidersFailed):
		return fiber.NewError(fiber.StatusBadGateway, msgWeatherUnavailable)
	default:
		return fiber.NewError(fiber.StatusInternalServerError, "failed to fetch weather data")
	}
}

type normalizeResponse struct {
	Input   string        `json:"input"`
	City    string        `json:"city"`
	Rule    cityname.Rule `json:"rule"`
	Changed bool          `json:"changed"`
}

// coordsQuery holds an optional lat/lon pair.
type coordsQuery struct {
	Lat float64 `validate:"gte=-90,lte=90"`
	Lon float64 `validate:"gte=-180,lte=180"`
}

// currentQuery identifies a location by name or by coordinates.
type currentQuery struct {
	City        string
	Coordinates *geo.Point `validate:"-"`
	Coords      coordsQuery
	Units       string `validate:"omitempty,oneof=celsius fahrenheit"`

	units weather.Units
}

func parseCurrentQuery(c *fiber.Ctx) (currentQuery, error) {
	var q currentQuery
	q.City = strings.TrimSpace(c.Query("city"))
	q.Units = strings.ToLower(c.Query("units"))

	coords, err := parseCoords(c)
	if err != nil {
		return q, err
	}
	if coords == nil && q.City == "" {
		return q, errors.New("city or lat and lon query parameters are required")
	}
	if coords != nil {
		q.Coordinates = coords
		q.Coords = coordsQuery{Lat: coords.Lat, Lon: coords.Lon}
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	q.units, err = weather.ParseUnits(q.Units)
	return q, err
}

// forecastQuery holds query parameters for the forecast endpoint.
type forecastQuery struct {
	City  string `validate:"required"`
	Days  int    `validate:"required,gte=1,lte=7"`
	Units string `validate:"omitempty,oneof=celsius fahrenheit"`

	units weather.Units
}

func parseForecastQuery(c *fiber.Ctx) (forecastQuery, error) {
	var q forecastQuery
	q.City = strings.TrimSpace(c.Query("city"))
	q.Units = strings.ToLower(c.Query("units"))

	daysStr := c.Query("days")
	if daysStr == "" {
		return q, errors.New("days query parameter is required")
	}
	days, err := strconv.Atoi(daysStr)
	if err != nil {
		return q, errors.New("days must be an integer")
	}
	q.Days = days

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	q.units, err = weather.ParseUnits(q.Units)
	return q, err
}

// normalizeQuery holds the raw name and optional coordinates to normalize.
type normalizeQuery struct {
	Name        string     `validate:"required"`
	Coordinates *geo.Point `validate:"-"`
	Coords      coordsQuery
}

func parseNormalizeQuery(c *fiber.Ctx) (normalizeQuery, error) {
	var q normalizeQuery
	q.Name = c.Query("name")

	coords, err := parseCoords(c)
	if err != nil {
		return q, err
	}
	if coords != nil {
		q.Coordinates = coords
		q.Coords = coordsQuery{Lat: coords.Lat, Lon: coords.Lon}
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}
	return q, nil
}

// parseCoords returns nil when neither lat nor lon is given.
func parseCoords(c *fiber.Ctx) (*geo.Point, error) {
	latStr, lonStr := c.Query("lat"), c.Query("lon")
	if latStr == "" && lonStr == "" {
		return nil, nil
	}
	if latStr == "" || lonStr == "" {
		return nil, errors.New("lat and lon must be given together")
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, errors.New("lon must be a number")
	}
	return &geo.Point{Lat: lat, Lon: lon}, nil
}
