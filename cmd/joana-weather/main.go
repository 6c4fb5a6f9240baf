package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joanabot/joana-weather/internal/cityname"
	"github.com/joanabot/joana-weather/internal/cli"
	"github.com/joanabot/joana-weather/internal/config"
	"github.com/joanabot/joana-weather/internal/observability"
	"github.com/joanabot/joana-weather/internal/scheduler"
	"github.com/joanabot/joana-weather/internal/store"
	"github.com/joanabot/joana-weather/internal/weather"
	"github.com/joanabot/joana-weather/internal/weather/providers"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	table, err := loadCityTable(cfg.CityTablePath)
	if err != nil {
		return err
	}
	names := cityname.New(table, cityname.WithMetrics(metrics))

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	provs, err := buildProviders(cfg, httpClient)
	if err != nil {
		return err
	}

	readings := store.NewMemoryCache[weather.Reading](cfg.CacheTTL, cfg.CacheMaxEntries)
	forecasts := store.NewMemoryCache[weather.Forecast](cfg.CacheTTL, cfg.CacheMaxEntries)

	resolver := weather.NewResolver(provs, readings, forecasts, names,
		weather.WithLogger(logger),
		weather.WithMetrics(metrics),
		weather.WithFetchTimeout(cfg.HTTPTimeout*time.Duration((cfg.MaxRetries+1)*len(provs))),
	)

	sched := scheduler.New(logger, metrics)
	if err := sched.AddSweep("current", cfg.CacheSweepInterval, readings); err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	if err := sched.AddSweep("forecast", cfg.CacheSweepInterval, forecasts); err != nil {
		return fmt.Errorf("scheduling sweep: %w", err)
	}
	if err := sched.AddWarmup(cfg.WarmupInterval, cfg.WarmupCities, weather.UnitsCelsius, resolver); err != nil {
		return fmt.Errorf("scheduling warm-up: %w", err)
	}

	providerNames := make([]string, 0, len(provs))
	for _, src := range resolver.Providers() {
		providerNames = append(providerNames, string(src))
	}

	app := &cli.App{
		Weather:    resolver,
		Names:      names,
		Providers:  providerNames,
		Logger:     logger,
		Port:       cfg.Port,
		Background: sched,
		Metrics:    true,
	}

	return cli.NewRootCmd(app).ExecuteContext(context.Background())
}

func loadCityTable(path string) (cityname.Table, error) {
	if path == "" {
		return cityname.DefaultTable()
	}
	table, err := cityname.LoadTable(path)
	if err != nil {
		return cityname.Table{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return table, nil
}

// buildProviders creates providers in the configured priority order.
func buildProviders(cfg *config.AppConfig, client *http.Client) ([]weather.Provider, error) {
	opts := []providers.Option{providers.WithLang(cfg.Lang)}
	if cfg.MaxRetries > 0 {
		opts = append(opts, providers.WithRetries(cfg.MaxRetries, providers.DefaultRetryInterval, providers.DefaultMaxRetryInterval))
	}

	provs := make([]weather.Provider, 0, len(cfg.ProviderOrder))
	for _, src := range cfg.ProviderOrder {
		switch src {
		case weather.SourceOpenWeather:
			provs = append(provs, providers.NewOpenWeatherProvider(client, cfg.OpenWeatherAPIKey, opts...))
		case weather.SourceWeatherAPI:
			provs = append(provs, providers.NewWeatherAPIProvider(client, cfg.WeatherAPIKey, opts...))
		case weather.SourceOpenMeteo:
			// Open-Meteo does not require an API key, but geocoding requires a Google API key.
			gc := providers.NewGoogleGeocoder(cfg.GeocoderAPIKey, "Mozambique")
			provs = append(provs, providers.NewOpenMeteoProvider(client, gc, opts...))
		default:
			return nil, fmt.Errorf("unsupported provider %q", src)
		}
	}
	return provs, nil
}
