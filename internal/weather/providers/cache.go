package providers

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/MiX1964/wforecast/internal/observability"
	"github.com/MiX1964/wforecast/internal/weather"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed on
// coordinates rounded to roughly 11 m.
type CachedGeocoder struct {
	inner   weather.Geocoder
	cache   *lru.Cache[string, weather.GeocodedLocation]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner weather.Geocoder, maxEntries int, metrics *observability.Metrics) (*CachedGeocoder, error) {
	cache, err := lru.New[string, weather.GeocodedLocation](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("geocoder cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}, nil
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (weather.GeocodedLocation, error) {
	key := fmt.Sprintf("%.4f,%.4f", lat, lon)
	if loc, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return loc, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	loc, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return loc, err
	}
	// Only cache results that name a city so empty answers can be retried.
	if loc.City != "" {
		c.cache.Add(key, loc)
	}
	return loc, nil
}

// Len reports the number of cached positions.
func (c *CachedGeocoder) Len() int {
	return c.cache.Len()
}
