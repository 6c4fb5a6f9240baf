package weather

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joanabot/joana-weather/internal/geo"
	"github.com/joanabot/joana-weather/internal/observability"
)

// --- fakes ---

type fakeProvider struct {
	name Source

	mu            sync.Mutex
	currentCalls  int
	forecastCalls int
	lastQuery     Query
	lastUnits     Units

	reading  Reading
	forecast Forecast
	err      error
	delay    time.Duration
}

func (f *fakeProvider) Name() Source { return f.name }

func (f *fakeProvider) FetchCurrent(ctx context.Context, q Query, units Units) (Reading, error) {
	f.mu.Lock()
	f.currentCalls++
	f.lastQuery = q
	f.lastUnits = units
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Reading{}, ctx.Err()
		}
	}
	if f.err != nil {
		return Reading{}, &ProviderError{Provider: f.name, Op: OpCurrent, Err: f.err}
	}
	r := f.reading
	r.Source = f.name
	r.Units = units
	return r, nil
}

func (f *fakeProvider) FetchForecast(_ context.Context, _ string, days int, units Units) (Forecast, error) {
	f.mu.Lock()
	f.forecastCalls++
	f.mu.Unlock()

	if f.err != nil {
		return Forecast{}, &ProviderError{Provider: f.name, Op: OpForecast, Err: f.err}
	}
	fc := f.forecast
	fc.Source = f.name
	fc.Units = units
	if len(fc.Days) > days {
		fc.Days = fc.Days[:days]
	}
	return fc, nil
}

func (f *fakeProvider) calls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.currentCalls, f.forecastCalls
}

type mapCache[V any] struct {
	mu   sync.Mutex
	data map[string]V
}

func newMapCache[V any]() *mapCache[V] {
	return &mapCache[V]{data: make(map[string]V)}
}

func (c *mapCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
}

func (c *mapCache[V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

type aliasNormalizer map[string]string

func (a aliasNormalizer) Normalize(raw string, _ *geo.Point) string {
	if c, ok := a[raw]; ok {
		return c
	}
	return raw
}

func newTestResolver(providers []Provider, readings *mapCache[Reading], forecasts *mapCache[Forecast], opts ...ResolverOption) *Resolver {
	opts = append([]ResolverOption{WithLogger(observability.DiscardLogger())}, opts...)
	return NewResolver(providers, readings, forecasts, aliasNormalizer{"Lourenco Marques": "Maputo"}, opts...)
}

// --- current weather ---

func TestResolver_CacheHitSkipsProvider(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, reading: Reading{City: "Beira", Temperature: 28}}
	r := newTestResolver([]Provider{a}, newMapCache[Reading](), newMapCache[Forecast]())

	first, err := r.GetCurrentWeather(context.Background(), "Beira", UnitsCelsius)
	require.NoError(t, err)
	second, err := r.GetCurrentWeather(context.Background(), "Beira", UnitsCelsius)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	current, _ := a.calls()
	assert.Equal(t, 1, current, "second call should be served from cache")
}

func TestResolver_CacheKeyIsExactInput(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, reading: Reading{City: "Beira"}}
	r := newTestResolver([]Provider{a}, newMapCache[Reading](), newMapCache[Forecast]())

	_, err := r.GetCurrentWeather(context.Background(), "Beira", UnitsCelsius)
	require.NoError(t, err)
	_, err = r.GetCurrentWeather(context.Background(), "beira", UnitsCelsius)
	require.NoError(t, err)
	_, err = r.GetCurrentWeather(context.Background(), "Beira", UnitsFahrenheit)
	require.NoError(t, err)

	current, _ := a.calls()
	assert.Equal(t, 3, current)
}

func TestResolver_FallsBackToNextProvider(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, err: errors.New("boom")}
	b := &fakeProvider{name: SourceWeatherAPI, reading: Reading{City: "Tete", Temperature: 33}}
	r := newTestResolver([]Provider{a, b}, newMapCache[Reading](), newMapCache[Forecast]())

	reading, err := r.GetCurrentWeather(context.Background(), "Tete", UnitsCelsius)
	require.NoError(t, err)

	assert.Equal(t, SourceWeatherAPI, reading.Source)
	assert.Equal(t, 33.0, reading.Temperature)
	ca, _ := a.calls()
	cb, _ := b.calls()
	assert.Equal(t, 1, ca)
	assert.Equal(t, 1, cb)
}

func TestResolver_StopsAtFirstSuccess(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, reading: Reading{City: "Tete"}}
	b := &fakeProvider{name: SourceWeatherAPI, reading: Reading{City: "Tete"}}
	r := newTestResolver([]Provider{a, b}, newMapCache[Reading](), newMapCache[Forecast]())

	_, err := r.GetCurrentWeather(context.Background(), "Tete", UnitsCelsius)
	require.NoError(t, err)

	cb, _ := b.calls()
	assert.Equal(t, 0, cb)
}

func TestResolver_AllProvidersFailed(t *testing.T) {
	errA := errors.New("a down")
	errB := errors.New("b down")
	a := &fakeProvider{name: SourceOpenWeather, err: errA}
	b := &fakeProvider{name: SourceWeatherAPI, err: errB}
	readings := newMapCache[Reading]()
	m := observability.NewMetricsForTesting()
	r := newTestResolver([]Provider{a, b}, readings, newMapCache[Forecast](), WithMetrics(m))

	_, err := r.GetCurrentWeather(context.Background(), "Atlantis", UnitsCelsius)
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, errA, "per-provider detail is preserved")
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, 0, readings.len(), "failures are not cached")

	cb, _ := b.calls()
	assert.Equal(t, 1, cb, "provider B is attempted before giving up")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ResolverFailures.WithLabelValues(OpCurrent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues(string(SourceWeatherAPI), OpCurrent, "error")))
}

func TestResolver_NoProviders(t *testing.T) {
	r := newTestResolver(nil, newMapCache[Reading](), newMapCache[Forecast]())

	_, err := r.GetCurrentWeather(context.Background(), "Beira", UnitsCelsius)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, ErrNoProviders)
}

func TestResolver_NormalizesAndKeepsOriginal(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, reading: Reading{City: "Lourenco Marques"}}
	r := newTestResolver([]Provider{a}, newMapCache[Reading](), newMapCache[Forecast]())

	reading, err := r.GetCurrentWeather(context.Background(), "Maputo", UnitsCelsius)
	require.NoError(t, err)

	assert.Equal(t, "Maputo", reading.City)
	assert.Equal(t, "Lourenco Marques", reading.OriginalCity)
}

func TestResolver_ByCoordinates(t *testing.T) {
	a := &fakeProvider{name: SourceWeatherAPI, reading: Reading{City: "Beira"}}
	r := newTestResolver([]Provider{a}, newMapCache[Reading](), newMapCache[Forecast]())

	_, err := r.GetCurrentWeatherByCoordinates(context.Background(), -19.8436, 34.8389, UnitsFahrenheit)
	require.NoError(t, err)
	_, err = r.GetCurrentWeatherByCoordinates(context.Background(), -19.8436, 34.8389, UnitsFahrenheit)
	require.NoError(t, err)

	current, _ := a.calls()
	assert.Equal(t, 1, current)
	require.NotNil(t, a.lastQuery.Coordinates)
	assert.Equal(t, -19.8436, a.lastQuery.Coordinates.Lat)
	assert.Equal(t, UnitsFahrenheit, a.lastUnits)
}

func TestResolver_InvalidInput(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather}
	r := newTestResolver([]Provider{a}, newMapCache[Reading](), newMapCache[Forecast]())
	ctx := context.Background()

	_, err := r.GetCurrentWeather(ctx, "  ", UnitsCelsius)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = r.GetCurrentWeather(ctx, "Beira", Units("kelvin"))
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = r.GetCurrentWeatherByCoordinates(ctx, 123, 0, UnitsCelsius)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	_, err = r.GetWeatherForecast(ctx, "Beira", 0, UnitsCelsius)
	assert.ErrorIs(t, err, ErrInvalidQuery)

	current, forecast := a.calls()
	assert.Zero(t, current)
	assert.Zero(t, forecast)
}

func TestResolver_RefreshBypassesCache(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, reading: Reading{City: "Pemba", Temperature: 30}}
	readings := newMapCache[Reading]()
	r := newTestResolver([]Provider{a}, readings, newMapCache[Forecast]())

	_, err := r.GetCurrentWeather(context.Background(), "Pemba", UnitsCelsius)
	require.NoError(t, err)

	a.mu.Lock()
	a.reading.Temperature = 31
	a.mu.Unlock()

	refreshed, err := r.RefreshCurrentWeather(context.Background(), "Pemba", UnitsCelsius)
	require.NoError(t, err)
	assert.Equal(t, 31.0, refreshed.Temperature)

	cached, err := r.GetCurrentWeather(context.Background(), "Pemba", UnitsCelsius)
	require.NoError(t, err)
	assert.Equal(t, 31.0, cached.Temperature, "refresh overwrites the entry")

	current, _ := a.calls()
	assert.Equal(t, 2, current)
}

func TestResolver_CoalescesConcurrentMisses(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, reading: Reading{City: "Nampula"}, delay: 50 * time.Millisecond}
	r := newTestResolver([]Provider{a}, newMapCache[Reading](), newMapCache[Forecast]())

	var (
		wg       sync.WaitGroup
		failures atomic.Int32
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.GetCurrentWeather(context.Background(), "Nampula", UnitsCelsius); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	current, _ := a.calls()
	assert.Equal(t, 1, current)
}

func TestResolver_CanceledContextStopsLoop(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, err: errors.New("down")}
	b := &fakeProvider{name: SourceWeatherAPI, reading: Reading{City: "Beira"}}
	r := newTestResolver([]Provider{a, b}, newMapCache[Reading](), newMapCache[Forecast]())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.GetCurrentWeather(ctx, "Beira", UnitsCelsius)
	assert.ErrorIs(t, err, context.Canceled)
	ca, _ := a.calls()
	assert.Zero(t, ca)
}

func TestResolver_CanceledCallerDoesNotFailSharedFetch(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, reading: Reading{City: "Quelimane"}, delay: 200 * time.Millisecond}
	r := newTestResolver([]Provider{a}, newMapCache[Reading](), newMapCache[Forecast]())

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()

	errA := make(chan error, 1)
	go func() {
		_, err := r.GetCurrentWeather(ctxA, "Quelimane", UnitsCelsius)
		errA <- err
	}()
	require.Eventually(t, func() bool {
		current, _ := a.calls()
		return current == 1
	}, time.Second, 5*time.Millisecond)

	type result struct {
		reading Reading
		err     error
	}
	resB := make(chan result, 1)
	go func() {
		reading, err := r.GetCurrentWeather(context.Background(), "Quelimane", UnitsCelsius)
		resB <- result{reading, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, "Quelimane", b.reading.City)
	current, _ := a.calls()
	assert.Equal(t, 1, current)
}

func TestResolver_FetchTimeoutIsNotProviderFailure(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, reading: Reading{City: "Tete"}, delay: 200 * time.Millisecond}
	m := observability.NewMetricsForTesting()
	r := newTestResolver([]Provider{a}, newMapCache[Reading](), newMapCache[Forecast](),
		WithMetrics(m), WithFetchTimeout(20*time.Millisecond))

	_, err := r.GetCurrentWeather(context.Background(), "Tete", UnitsCelsius)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NotErrorIs(t, err, ErrAllProvidersFailed)
	assert.Zero(t, testutil.ToFloat64(m.ResolverFailures.WithLabelValues(OpCurrent)))
}

func TestResolver_CacheMetrics(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, reading: Reading{City: "Beira"}}
	m := observability.NewMetricsForTesting()
	r := newTestResolver([]Provider{a}, newMapCache[Reading](), newMapCache[Forecast](), WithMetrics(m))

	for i := 0; i < 3; i++ {
		_, err := r.GetCurrentWeather(context.Background(), "Beira", UnitsCelsius)
		require.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("current", "miss")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("current", "hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequests.WithLabelValues(string(SourceOpenWeather), OpCurrent, "success")))
}

func TestResolver_NilCachesAndNormalizer(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, reading: Reading{City: "Lourenco Marques"}}
	r := NewResolver([]Provider{a}, nil, nil, nil, WithLogger(observability.DiscardLogger()))

	reading, err := r.GetCurrentWeather(context.Background(), "Maputo", UnitsCelsius)
	require.NoError(t, err)
	assert.Equal(t, "Lourenco Marques", reading.City)
	assert.Empty(t, reading.OriginalCity)

	_, err = r.GetCurrentWeather(context.Background(), "Maputo", UnitsCelsius)
	require.NoError(t, err)
	current, _ := a.calls()
	assert.Equal(t, 2, current)
	assert.Equal(t, []Source{SourceOpenWeather}, r.Providers())
}

// --- forecast ---

func sampleForecast(city string) Forecast {
	return Forecast{
		City: city,
		Days: []DailyForecast{
			{Date: "2026-10-14", MaxTemp: 30},
			{Date: "2026-10-15", MaxTemp: 31},
			{Date: "2026-10-16", MaxTemp: 29},
		},
	}
}

func TestResolver_ForecastCacheAndFallback(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, err: ErrGeocodeNotFound}
	b := &fakeProvider{name: SourceWeatherAPI, forecast: sampleForecast("Lourenco Marques")}
	forecasts := newMapCache[Forecast]()
	r := newTestResolver([]Provider{a, b}, newMapCache[Reading](), forecasts)

	f, err := r.GetWeatherForecast(context.Background(), "Maputo", 2, UnitsCelsius)
	require.NoError(t, err)

	assert.Equal(t, SourceWeatherAPI, f.Source)
	assert.Equal(t, "Maputo", f.City)
	assert.Equal(t, "Lourenco Marques", f.OriginalCity)
	assert.Len(t, f.Days, 2)

	_, err = r.GetWeatherForecast(context.Background(), "Maputo", 2, UnitsCelsius)
	require.NoError(t, err)
	_, fa := a.calls()
	_, fb := b.calls()
	assert.Equal(t, 1, fa, "same provider order as current weather")
	assert.Equal(t, 1, fb)

	_, err = r.GetWeatherForecast(context.Background(), "Maputo", 3, UnitsCelsius)
	require.NoError(t, err)
	_, fb = b.calls()
	assert.Equal(t, 2, fb, "day count is part of the cache key")
	assert.Equal(t, 2, forecasts.len())
}

func TestResolver_ForecastAllFailed(t *testing.T) {
	a := &fakeProvider{name: SourceOpenWeather, err: ErrGeocodeNotFound}
	b := &fakeProvider{name: SourceWeatherAPI, err: ErrCityNotFound}
	forecasts := newMapCache[Forecast]()
	r := newTestResolver([]Provider{a, b}, newMapCache[Reading](), forecasts)

	_, err := r.GetWeatherForecast(context.Background(), "Atlantis", 3, UnitsCelsius)
	assert.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.ErrorIs(t, err, ErrGeocodeNotFound)
	assert.Equal(t, 0, forecasts.len())
}
