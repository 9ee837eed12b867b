package weather

import (
	"context"
)

// ProviderPlace is the provider's answer to a place-name lookup.
type ProviderPlace struct {
	ID          int64
	Name        string
	CountryCode string
	Latitude    float64
	Longitude   float64
}

// RawForecast is an undecoded forecast payload. Entries are in upstream order.
type RawForecast struct {
	CityName    string
	CountryCode string
	Entries     []RawRecord
}

// GeocodedLocation is the result of reverse geocoding a position.
type GeocodedLocation struct {
	City        string
	CountryCode string
	Latitude    float64
	Longitude   float64
}

// Provider abstracts the external weather service (e.g. OpenWeatherMap).
// Errors wrap ErrNotFound, ErrSourceUnavailable or ErrParse.
type Provider interface {
	Name() string
	FindByName(ctx context.Context, name string) (ProviderPlace, error)
	CurrentWeather(ctx context.Context, name string) (RawRecord, error)
	Forecast(ctx context.Context, id int64) (RawForecast, error)
	// StationsNear returns candidates ordered nearest first. No stations is an empty slice.
	StationsNear(ctx context.Context, lat, lon float64, limit int) ([]WeatherStation, error)
}

// Geocoder turns coordinates into a city and country.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (GeocodedLocation, error)
}

// PlaceCache is the contract the persistent place store must satisfy.
// InsertIfAbsent must be atomic at the storage layer and return false,
// without error, when a row with the same id already exists.
type PlaceCache interface {
	GetByName(ctx context.Context, name string) (Place, bool, error)
	GetByID(ctx context.Context, id int64) (Place, bool, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	InsertIfAbsent(ctx context.Context, place Place) (bool, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context) ([]Place, error)
}

// PlaceEvents receives a notification each time a new place row is stored.
type PlaceEvents interface {
	PlaceCached(ctx context.Context, res Resolution) error
}
