package weather

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MiX1964/wforecast/internal/observability"
)

// Service exposes place resolution and weather lookups to the presentation layer.
type Service struct {
	resolver *Resolver
	cache    PlaceCache
	provider Provider
	settings Settings
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates a Service and its Resolver.
func NewService(cache PlaceCache, provider Provider, geocoder Geocoder, settings Settings, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Service {
	resolver := NewResolver(cache, provider, geocoder, settings, logger, metrics, opts...)
	return &Service{
		resolver: resolver,
		cache:    cache,
		provider: provider,
		settings: resolver.settings,
		logger:   logger,
		metrics:  metrics,
	}
}

// ResolveByName delegates to the resolver.
func (s *Service) ResolveByName(ctx context.Context, name string) (Resolution, error) {
	return s.resolver.ResolveByName(ctx, name)
}

// ResolveByPosition delegates to the resolver.
func (s *Service) ResolveByPosition(ctx context.Context, pos GeoPosition) (Resolution, error) {
	return s.resolver.ResolveByPosition(ctx, pos)
}

// GetCurrentWeather fetches and decodes the current weather for a place name.
// Every failure satisfies errors.Is(err, ErrNotFound).
func (s *Service) GetCurrentWeather(ctx context.Context, placeName string) (WeatherObservation, error) {
	name := strings.TrimSpace(placeName)
	if !validQuery(name) {
		return WeatherObservation{}, fmt.Errorf("%w: %q", ErrInvalidQuery, placeName)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.settings.ProviderTimeout)
	defer cancel()

	rec, err := s.provider.CurrentWeather(callCtx, name)
	if err != nil {
		requestLogger(ctx, s.logger).Warn("current weather failed", "name", name, "reason", Classify(err), "error", err)
		return WeatherObservation{}, fmt.Errorf("current weather for %q: %w", name, asNotFound(err))
	}
	return DecodeObservation(rec), nil
}

// GetForecast fetches and decodes the forecast for a provider place id.
// Every failure satisfies errors.Is(err, ErrNotFound).
func (s *Service) GetForecast(ctx context.Context, placeID int64) (ForecastBundle, error) {
	if placeID <= 0 {
		return ForecastBundle{}, fmt.Errorf("%w: place id %d", ErrInvalidQuery, placeID)
	}

	callCtx, cancel := context.WithTimeout(ctx, s.settings.ProviderTimeout)
	defer cancel()

	raw, err := s.provider.Forecast(callCtx, placeID)
	if err != nil {
		requestLogger(ctx, s.logger).Warn("forecast failed", "place_id", placeID, "reason", Classify(err), "error", err)
		return ForecastBundle{}, fmt.Errorf("forecast for place %d: %w", placeID, asNotFound(err))
	}

	bundle := AggregateForecast(raw)
	s.metrics.ForecastEntries.Add(float64(len(bundle.Entries)))
	return bundle, nil
}

// GetPlace returns a cached place by id.
func (s *Service) GetPlace(ctx context.Context, id int64) (Place, error) {
	place, found, err := s.cache.GetByID(ctx, id)
	if err != nil {
		return Place{}, fmt.Errorf("get place %d: %w", id, err)
	}
	if !found {
		return Place{}, fmt.Errorf("%w: place %d", ErrNotFound, id)
	}
	return place, nil
}

// ListPlaces returns every cached place.
func (s *Service) ListPlaces(ctx context.Context) ([]Place, error) {
	return s.cache.List(ctx)
}

// DeletePlace removes a cached place. Deleting an unknown id is ErrNotFound.
func (s *Service) DeletePlace(ctx context.Context, id int64) error {
	exists, err := s.cache.ExistsByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete place %d: %w", id, err)
	}
	if !exists {
		return fmt.Errorf("%w: place %d", ErrNotFound, id)
	}
	if err := s.cache.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete place %d: %w", id, err)
	}
	requestLogger(ctx, s.logger).Info("place deleted", "place_id", id)
	return nil
}

// StationsNear lists weather stations around a position, nearest first.
func (s *Service) StationsNear(ctx context.Context, pos GeoPosition, limit int) ([]WeatherStation, error) {
	if !validPosition(pos) {
		return nil, fmt.Errorf("%w: position (%v, %v)", ErrInvalidQuery, pos.Latitude, pos.Longitude)
	}
	if limit <= 0 {
		limit = s.settings.StationLimit
	}

	callCtx, cancel := context.WithTimeout(ctx, s.settings.StationTimeout)
	defer cancel()

	stations, err := s.provider.StationsNear(callCtx, pos.Latitude, pos.Longitude, limit)
	if err != nil {
		return nil, fmt.Errorf("stations near (%v, %v): %w", pos.Latitude, pos.Longitude, err)
	}
	if stations == nil {
		stations = []WeatherStation{}
	}
	return stations, nil
}

func asNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNotFound, err)
}
