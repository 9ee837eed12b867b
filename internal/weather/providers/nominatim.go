package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/MiX1964/wforecast/internal/weather"
)

// cityKeys are the Nominatim address fields that can name a settlement, most specific first.
var cityKeys = []string{"city", "town", "village", "municipality"}

// NominatimGeocoder implements weather.Geocoder using the OpenStreetMap Nominatim reverse API.
type NominatimGeocoder struct {
	baseURL   string
	userAgent string
	client    *http.Client
	circuit   *gobreaker.CircuitBreaker
}

// NewNominatimGeocoder creates a reverse geocoder. Nominatim's usage policy
// requires an identifying User-Agent.
func NewNominatimGeocoder(client *http.Client, baseURL, userAgent string) *NominatimGeocoder {
	return &NominatimGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: userAgent,
		client:    client,
		circuit:   newBreaker("nominatim", DefaultBreakerSettings),
	}
}

func (g *NominatimGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (weather.GeocodedLocation, error) {
	params := url.Values{
		"format": {"jsonv2"},
		"lat":    {formatCoord(lat)},
		"lon":    {formatCoord(lon)},
	}
	buildRequest := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/reverse?"+params.Encode(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", g.userAgent)
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	body, err := doRequest(ctx, g.client, g.circuit, buildRequest)
	if err != nil {
		return weather.GeocodedLocation{}, err
	}
	rec, err := weather.ParseRawRecord(body)
	if err != nil {
		return weather.GeocodedLocation{}, err
	}
	if msg, ok := rec.Text("error"); ok {
		return weather.GeocodedLocation{}, fmt.Errorf("%w: %s", weather.ErrNotFound, msg)
	}

	addr := rec.Object("address")
	if addr == nil {
		return weather.GeocodedLocation{}, fmt.Errorf("%w: no address at position", weather.ErrNotFound)
	}

	loc := weather.GeocodedLocation{Latitude: lat, Longitude: lon}
	for _, key := range cityKeys {
		if city, ok := addr.Text(key); ok && strings.TrimSpace(city) != "" {
			loc.City = strings.TrimSpace(city)
			break
		}
	}
	if cc, ok := addr.Text("country_code"); ok {
		loc.CountryCode = strings.ToUpper(strings.TrimSpace(cc))
	}
	if v := rec.Float("lat"); v != nil {
		loc.Latitude = *v
	}
	if v := rec.Float("lon"); v != nil {
		loc.Longitude = *v
	}
	return loc, nil
}
