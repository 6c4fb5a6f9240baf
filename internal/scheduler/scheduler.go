package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/joanabot/joana-weather/internal/observability"
	"github.com/joanabot/joana-weather/internal/weather"
)

const warmupTimeout = 30 * time.Second

// Purger drops expired entries and reports how many were removed.
type Purger interface {
	Purge() int
}

// Refresher fetches a city's current weather, bypassing the cache.
type Refresher interface {
	RefreshCurrentWeather(ctx context.Context, city string, units weather.Units) (weather.Reading, error)
}

// Scheduler runs background cache maintenance jobs.
type Scheduler struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a Scheduler. metrics may be nil.
func New(logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	// A slow run is skipped rather than stacked.
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		logger:    logger,
		metrics:   metrics,
	}
}

// AddSweep purges p every interval. A non-positive interval is a no-op.
func (s *Scheduler) AddSweep(cache string, interval time.Duration, p Purger) error {
	if interval <= 0 {
		s.logger.Info("scheduler: cache sweep disabled", "cache", cache)
		return nil
	}
	_, err := s.scheduler.Every(interval).Tag("sweep", cache).WaitForSchedule().Do(s.sweep, cache, p)
	return err
}

// AddWarmup refreshes cities every interval, starting immediately.
// A non-positive interval or empty city list is a no-op.
func (s *Scheduler) AddWarmup(interval time.Duration, cities []string, units weather.Units, r Refresher) error {
	if interval <= 0 || len(cities) == 0 {
		s.logger.Info("scheduler: cache warm-up disabled")
		return nil
	}
	_, err := s.scheduler.Every(interval).Tag("warmup").Do(s.warmup, r, cities, units)
	return err
}

// Jobs returns the number of scheduled jobs.
func (s *Scheduler) Jobs() int {
	return s.scheduler.Len()
}

// Start starts the underlying scheduler if any job was added.
func (s *Scheduler) Start() {
	if s.scheduler.Len() == 0 {
		s.logger.Info("scheduler: no jobs configured; nothing to schedule")
		return
	}
	s.scheduler.StartAsync()
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}

func (s *Scheduler) sweep(cache string, p Purger) {
	n := p.Purge()
	if s.metrics != nil {
		s.metrics.CacheExpired.WithLabelValues(cache).Add(float64(n))
	}
	s.logger.Debug("scheduler: cache sweep", "cache", cache, "removed", n)
}

func (s *Scheduler) warmup(r Refresher, cities []string, units weather.Units) {
	s.logger.Info("scheduler: running cache warm-up", "cities", len(cities))

	var wg sync.WaitGroup
	for _, city := range cities {
		city := city
		wg.Add(1)
		go func() {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(context.Background(), warmupTimeout)
			defer cancel()

			if _, err := r.RefreshCurrentWeather(ctx, city, units); err != nil {
				s.logger.Warn("scheduler: warm-up failed", "city", city, "error", err)
			}
		}()
	}
	wg.Wait()
	s.logger.Info("scheduler: completed cache warm-up")
}
