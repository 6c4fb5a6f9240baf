package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/joanabot/joana-weather/internal/common"
	"github.com/joanabot/joana-weather/internal/weather"
)

type AppConfig struct {
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	GeocoderAPIKey    string // enables Open-Meteo

	// ProviderOrder is the fixed fallback order for every lookup.
	ProviderOrder []weather.Source

	// Lang is the description language requested from providers.
	Lang string

	HTTPTimeout time.Duration
	MaxRetries  int // same-provider retries; 0 = fallback only

	// Resolver caches.
	CacheTTL           time.Duration // 0 = entries never go stale
	CacheMaxEntries    int           // 0 = unbounded
	CacheSweepInterval time.Duration // 0 = no background purge

	// Warm-up refreshes these cities on a timer.
	WarmupCities   []string
	WarmupInterval time.Duration // 0 = disabled

	// CityTablePath replaces the embedded alias table when set.
	CityTablePath string

	Port      string
	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the environment.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	return FromEnv()
}

// FromEnv reads configuration from the environment with defaults.
func FromEnv() (*AppConfig, error) {
	cfg := &AppConfig{
		OpenWeatherAPIKey: os.Getenv("OPENWEATHER_API_KEY"),
		WeatherAPIKey:     os.Getenv("WEATHERAPI_API_KEY"),
		GeocoderAPIKey:    os.Getenv("GEOCODER_API_KEY"),
		Lang:              getenvDefault("WEATHER_LANG", "pt"),
		CityTablePath:     os.Getenv("CITY_TABLE_PATH"),
		Port:              getenvDefault("PORT", "8080"),
		LogLevel:          strings.ToLower(getenvDefault("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getenvDefault("LOG_FORMAT", "json")),
		WarmupCities:      common.SplitList(os.Getenv("WARMUP_CITIES")),
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	order, err := parseProviderOrder(getenvDefault("PROVIDER_ORDER", "openweathermap,weatherapi"))
	collect(err)
	cfg.ProviderOrder = order

	cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", 10*time.Second)
	collect(err)
	cfg.MaxRetries, err = getenvInt("PROVIDER_MAX_RETRIES", 0)
	collect(err)
	cfg.CacheTTL, err = getenvDuration("CACHE_TTL", 10*time.Minute)
	collect(err)
	cfg.CacheMaxEntries, err = getenvInt("CACHE_MAX_ENTRIES", 1000)
	collect(err)
	cfg.CacheSweepInterval, err = getenvDuration("CACHE_SWEEP_INTERVAL", 5*time.Minute)
	collect(err)
	cfg.WarmupInterval, err = getenvDuration("WARMUP_INTERVAL", 0)
	collect(err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	// Open-Meteo joins the end of the order when a geocoder key is present.
	if cfg.GeocoderAPIKey != "" && !slices.Contains(cfg.ProviderOrder, weather.SourceOpenMeteo) {
		cfg.ProviderOrder = append(cfg.ProviderOrder, weather.SourceOpenMeteo)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges and cross-field rules.
func (c *AppConfig) Validate() error {
	var errs []error
	if len(c.ProviderOrder) == 0 {
		errs = append(errs, errors.New("PROVIDER_ORDER must name at least one provider"))
	}
	if slices.Contains(c.ProviderOrder, weather.SourceOpenMeteo) && c.GeocoderAPIKey == "" {
		errs = append(errs, errors.New("PROVIDER_ORDER includes openmeteo but GEOCODER_API_KEY is empty"))
	}
	if c.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_TIMEOUT must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("PROVIDER_MAX_RETRIES must not be negative"))
	}
	if c.CacheTTL < 0 || c.CacheSweepInterval < 0 || c.WarmupInterval < 0 {
		errs = append(errs, errors.New("CACHE_TTL, CACHE_SWEEP_INTERVAL and WARMUP_INTERVAL must not be negative"))
	}
	if c.CacheMaxEntries < 0 {
		errs = append(errs, errors.New("CACHE_MAX_ENTRIES must not be negative"))
	}
	if c.WarmupInterval > 0 && len(c.WarmupCities) == 0 {
		errs = append(errs, errors.New("WARMUP_INTERVAL is set but WARMUP_CITIES is empty"))
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Errorf("invalid PORT %q", c.Port))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, c.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q", c.LogLevel))
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("invalid LOG_FORMAT %q", c.LogFormat))
	}
	return errors.Join(errs...)
}

func parseProviderOrder(s string) ([]weather.Source, error) {
	var order []weather.Source
	for _, name := range common.SplitList(s) {
		src, err := weather.ParseSource(name)
		if err != nil {
			return nil, fmt.Errorf("invalid PROVIDER_ORDER: %w", err)
		}
		if slices.Contains(order, src) {
			return nil, fmt.Errorf("invalid PROVIDER_ORDER: %q listed twice", src)
		}
		order = append(order, src)
	}
	return order, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
