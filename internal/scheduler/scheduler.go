package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/MiX1964/wforecast/internal/observability"
	"github.com/MiX1964/wforecast/internal/weather"
)

const runTimeout = 30 * time.Second

// Resolver is the part of weather.Service the warmer drives.
type Resolver interface {
	ResolveByName(ctx context.Context, name string) (weather.Resolution, error)
}

// Scheduler periodically resolves configured place names so they stay in the place cache.
type Scheduler struct {
	scheduler *gocron.Scheduler
	resolver  Resolver
	places    []string
	interval  time.Duration
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// New creates a new Scheduler.
func New(places []string, interval time.Duration, resolver Resolver, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		resolver:  resolver,
		places:    places,
		interval:  interval,
		logger:    logger,
		metrics:   metrics,
	}
}

// Start schedules the warm-up job, which also runs once immediately.
func (s *Scheduler) Start() error {
	if len(s.places) == 0 {
		s.logger.Info("scheduler: no places configured; nothing to warm")
		return nil
	}

	interval := s.interval
	if interval <= 0 {
		interval = 30 * time.Minute
	}

	_, err := s.scheduler.Every(interval).Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// RunOnce resolves every configured place concurrently and reports how many resolved.
func (s *Scheduler) RunOnce(ctx context.Context) int {
	s.logger.Debug("scheduler: running cache warm-up", "places", len(s.places))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		resolved int
	)
	for _, name := range s.places {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := s.resolver.ResolveByName(ctx, name)
			if err != nil {
				s.logger.Warn("scheduler: warm-up failed", "name", name, "error", err)
				return
			}
			s.logger.Debug("scheduler: place warm", "name", name, "place_id", res.Place.ID, "source", string(res.Source))

			mu.Lock()
			resolved++
			mu.Unlock()
		}()
	}
	wg.Wait()

	s.metrics.WarmupRuns.Inc()
	s.logger.Info("scheduler: completed cache warm-up", "resolved", resolved, "places", len(s.places))
	return resolved
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
