package weather

import (
	"time"
)

// Source identifies which stage of the fallback chain produced a Place.
type Source string

const (
	SourceCache    Source = "cache"
	SourceProvider Source = "provider"
	SourceStation  Source = "station"
)

// Place is a resolved location keyed by the provider-assigned id.
// Rows are immutable once stored.
type Place struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	CountryCode string  `json:"countryCode"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
}

// GeoPosition is a caller-supplied device position. It is never persisted.
type GeoPosition struct {
	Latitude       float64  `json:"latitude"`
	Longitude      float64  `json:"longitude"`
	AccuracyMeters *float64 `json:"accuracyMeters,omitempty"`
}

// Resolution is the outcome of a successful resolve.
type Resolution struct {
	Place      Place     `json:"place"`
	Source     Source    `json:"source"`
	ResolvedAt time.Time `json:"resolvedAt"` // always UTC
}

// WeatherObservation is the normalized current weather for a place.
// A nil field means the provider did not report it.
type WeatherObservation struct {
	Description       string   `json:"description"`
	TemperatureC      *float64 `json:"temperatureC,omitempty"`
	PressureHPa       *float64 `json:"pressureHpa,omitempty"`
	HumidityPct       *float64 `json:"humidityPercent,omitempty"`
	WindSpeedMS       *float64 `json:"windSpeedMs,omitempty"`
	WindSpeedBeaufort *int     `json:"windSpeedBeaufort,omitempty"`
	WindDirectionDeg  *float64 `json:"windDirectionDeg,omitempty"`
}

// ForecastEntry is one decoded 3-hour forecast slot.
// Hour12 is 0 and DateLabel empty when the record carried no usable timestamp.
type ForecastEntry struct {
	DateLabel         string   `json:"date"`
	Hour12            int      `json:"hour12,omitempty"`
	IsDaytime         bool     `json:"isDaytime"`
	WeatherCode       *int     `json:"weatherCode,omitempty"`
	TemperatureC      *float64 `json:"temperatureC,omitempty"`
	PressureHPa       *int     `json:"pressureHpa,omitempty"`
	HumidityPct       *int     `json:"humidityPercent,omitempty"`
	WindSpeedBeaufort *int     `json:"windSpeedBeaufort,omitempty"`
	WindDirectionDeg  *int     `json:"windDirectionDeg,omitempty"`
	RainMm3h          *float64 `json:"rainMm3h,omitempty"`
}

// ForecastBundle is a decoded forecast. Entries keep the upstream order.
type ForecastBundle struct {
	CityName        string          `json:"cityName"`
	CountryCode     string          `json:"countryCode"`
	BasePressureHPa *int            `json:"basePressureHpa,omitempty"`
	Entries         []ForecastEntry `json:"entries"`
}

// WeatherStation is a fixed observation point reported by the provider.
type WeatherStation struct {
	ID        int64   `json:"id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
