package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/joanabot/joana-weather/internal/geo"
	"github.com/joanabot/joana-weather/internal/observability"
)

// Resolver answers weather lookups from the cache or, on a miss, from the
// first provider in priority order that succeeds. Current-weather and
// forecast lookups use the same order.
type Resolver struct {
	providers  []Provider
	readings   ReadingCache
	forecasts  ForecastCache
	normalizer CityNormalizer
	logger     *slog.Logger
	metrics    *observability.Metrics

	// Bounds one coalesced fetch across the whole provider chain. The
	// fetch is detached from any single caller's cancellation.
	fetchTimeout time.Duration

	// Coalesces concurrent misses for the same key.
	group singleflight.Group
}

// DefaultFetchTimeout bounds a coalesced provider fetch when
// WithFetchTimeout is not given.
const DefaultFetchTimeout = 30 * time.Second

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithMetrics records provider calls, cache lookups and failures.
func WithMetrics(m *observability.Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithFetchTimeout bounds a single provider fetch, shared by every caller
// waiting on the same key. Non-positive values keep the default.
func WithFetchTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.fetchTimeout = d
		}
	}
}

// NewResolver creates a Resolver. Nil caches disable caching and a nil
// normalizer leaves provider city names untouched.
func NewResolver(providers []Provider, readings ReadingCache, forecasts ForecastCache, normalizer CityNormalizer, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		providers:  providers,
		readings:   readings,
		forecasts:  forecasts,
		normalizer: normalizer,
		logger:     slog.Default(),

		fetchTimeout: DefaultFetchTimeout,
	}
	if r.readings == nil {
		r.readings = noCache[Reading]{}
	}
	if r.forecasts == nil {
		r.forecasts = noCache[Forecast]{}
	}
	if r.normalizer == nil {
		r.normalizer = identityNormalizer{}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Providers returns the provider names in priority order.
func (r *Resolver) Providers() []Source {
	names := make([]Source, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

// GetCurrentWeather returns the current reading for a city name.
func (r *Resolver) GetCurrentWeather(ctx context.Context, city string, units Units) (Reading, error) {
	if strings.TrimSpace(city) == "" {
		return Reading{}, fmt.Errorf("%w: city is required", ErrInvalidQuery)
	}
	return r.current(ctx, CityQuery(city), units, false)
}

// GetCurrentWeatherByCoordinates returns the current reading for a position.
func (r *Resolver) GetCurrentWeatherByCoordinates(ctx context.Context, lat, lon float64, units Units) (Reading, error) {
	if !(geo.Point{Lat: lat, Lon: lon}).Valid() {
		return Reading{}, fmt.Errorf("%w: coordinates out of range", ErrInvalidQuery)
	}
	return r.current(ctx, CoordinatesQuery(lat, lon), units, false)
}

// RefreshCurrentWeather fetches a city's reading without consulting the
// cache and overwrites the cached entry on success.
func (r *Resolver) RefreshCurrentWeather(ctx context.Context, city string, units Units) (Reading, error) {
	if strings.TrimSpace(city) == "" {
		return Reading{}, fmt.Errorf("%w: city is required", ErrInvalidQuery)
	}
	return r.current(ctx, CityQuery(city), units, true)
}

// GetWeatherForecast returns a daily forecast for a city name.
func (r *Resolver) GetWeatherForecast(ctx context.Context, city string, days int, units Units) (Forecast, error) {
	if strings.TrimSpace(city) == "" {
		return Forecast{}, fmt.Errorf("%w: city is required", ErrInvalidQuery)
	}
	if days <= 0 {
		return Forecast{}, fmt.Errorf("%w: days must be greater than zero", ErrInvalidQuery)
	}
	if !units.Valid() {
		return Forecast{}, fmt.Errorf("%w: unknown units %q", ErrInvalidQuery, units)
	}

	key := forecastKey(city, days, units)
	if f, ok := r.forecasts.Get(key); ok {
		r.cacheLookup("forecast", true)
		r.logger.Debug("forecast cache hit", "key", key)
		return f, nil
	}
	r.cacheLookup("forecast", false)

	v, err := r.coalesce(ctx, key, func(ctx context.Context) (any, error) {
		f, err := fetchFirst(ctx, r, OpForecast, key, func(p Provider) (Forecast, error) {
			return p.FetchForecast(ctx, city, days, units)
		})
		if err != nil {
			return nil, err
		}
		f = NormalizeForecast(r.normalizer, f)
		r.forecasts.Set(key, f)
		return f, nil
	})
	if err != nil {
		return Forecast{}, err
	}
	return v.(Forecast), nil
}

func (r *Resolver) current(ctx context.Context, q Query, units Units, refresh bool) (Reading, error) {
	if !units.Valid() {
		return Reading{}, fmt.Errorf("%w: unknown units %q", ErrInvalidQuery, units)
	}

	key := currentKey(q, units)
	if !refresh {
		if reading, ok := r.readings.Get(key); ok {
			r.cacheLookup("current", true)
			r.logger.Debug("current weather cache hit", "key", key)
			return reading, nil
		}
		r.cacheLookup("current", false)
	}

	v, err := r.coalesce(ctx, key, func(ctx context.Context) (any, error) {
		reading, err := fetchFirst(ctx, r, OpCurrent, key, func(p Provider) (Reading, error) {
			return p.FetchCurrent(ctx, q, units)
		})
		if err != nil {
			return nil, err
		}
		reading = NormalizeReading(r.normalizer, reading)
		r.readings.Set(key, reading)
		return reading, nil
	})
	if err != nil {
		return Reading{}, err
	}
	return v.(Reading), nil
}

// coalesce runs fn once per key for all concurrent callers. The shared
// fetch keeps ctx values but not its cancellation, so a caller that gives
// up returns its own ctx error while the others keep waiting.
func (r *Resolver) coalesce(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ch := r.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.fetchTimeout)
		defer cancel()
		return fn(fetchCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetchFirst calls each provider in order and returns the first success.
// Provider failures are logged and skipped; only total failure is returned.
func fetchFirst[T any](ctx context.Context, r *Resolver, op, key string, call func(Provider) (T, error)) (T, error) {
	var zero T
	if len(r.providers) == 0 {
		r.logger.Error("no weather providers configured", "op", op, "key", key)
		r.failure(op)
		return zero, fmt.Errorf("%w: %w", ErrAllProvidersFailed, ErrNoProviders)
	}

	errs := make([]error, 0, len(r.providers))
	for _, p := range r.providers {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		start := time.Now()
		result, err := call(p)
		r.observe(p.Name(), op, start, err)
		if err == nil {
			r.logger.Debug("provider succeeded", "provider", p.Name(), "op", op, "key", key)
			return result, nil
		}

		r.logger.Warn("provider failed, trying next",
			"provider", p.Name(),
			"op", op,
			"key", key,
			"error", err,
		)
		errs = append(errs, err)
	}

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	r.logger.Error("all weather providers failed", "op", op, "key", key, "error", errors.Join(errs...))
	r.failure(op)
	return zero, fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

func (r *Resolver) observe(provider Source, op string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.metrics.ProviderRequests.WithLabelValues(string(provider), op, outcome).Inc()
	r.metrics.ProviderDuration.WithLabelValues(string(provider), op).Observe(time.Since(start).Seconds())
}

func (r *Resolver) cacheLookup(cache string, hit bool) {
	if r.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.metrics.CacheLookups.WithLabelValues(cache, result).Inc()
}

func (r *Resolver) failure(op string) {
	if r.metrics != nil {
		r.metrics.ResolverFailures.WithLabelValues(op).Inc()
	}
}

func currentKey(q Query, units Units) string {
	kind := "city="
	if q.ByCoordinates() {
		kind = "coords="
	}
	return "current|" + kind + q.Key() + "|" + string(units)
}

func forecastKey(city string, days int, units Units) string {
	return "forecast|" + city + "|" + strconv.Itoa(days) + "|" + string(units)
}
