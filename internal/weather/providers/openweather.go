package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/MiX1964/wforecast/internal/weather"
)

// OpenWeatherProvider implements weather.Provider against the OpenWeatherMap 2.5 API.
// Temperatures are requested in Kelvin (the API default); decoding converts them.
type OpenWeatherProvider struct {
	name    string
	apiKey  string
	baseURL string
	client  *http.Client
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherProvider(client *http.Client, apiKey, baseURL string) *OpenWeatherProvider {
	return &OpenWeatherProvider{
		name:    "openweathermap",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		circuit: newBreaker("openweather", DefaultBreakerSettings),
	}
}

func (p *OpenWeatherProvider) Name() string {
	return p.name
}

// FindByName looks a place up by name and returns the provider's canonical record.
func (p *OpenWeatherProvider) FindByName(ctx context.Context, name string) (weather.ProviderPlace, error) {
	rec, err := p.getRecord(ctx, "/weather", url.Values{"q": {name}})
	if err != nil {
		return weather.ProviderPlace{}, err
	}

	id, ok := rec.Int64("id")
	if !ok {
		return weather.ProviderPlace{}, fmt.Errorf("%w: place %q without id", weather.ErrParse, name)
	}
	place := weather.ProviderPlace{ID: id}
	place.Name, _ = rec.Text("name")
	if sys := rec.Object("sys"); sys != nil {
		place.CountryCode, _ = sys.Text("country")
	}
	if coord := rec.Object("coord"); coord != nil {
		if lat := coord.Float("lat"); lat != nil {
			place.Latitude = *lat
		}
		if lon := coord.Float("lon"); lon != nil {
			place.Longitude = *lon
		}
	}
	return place, nil
}

// CurrentWeather returns the undecoded current-conditions record for a place name.
func (p *OpenWeatherProvider) CurrentWeather(ctx context.Context, name string) (weather.RawRecord, error) {
	return p.getRecord(ctx, "/weather", url.Values{"q": {name}})
}

// Forecast returns the undecoded 3-hourly forecast for a provider place id.
func (p *OpenWeatherProvider) Forecast(ctx context.Context, id int64) (weather.RawForecast, error) {
	rec, err := p.getRecord(ctx, "/forecast", url.Values{"id": {strconv.FormatInt(id, 10)}})
	if err != nil {
		return weather.RawForecast{}, err
	}

	entries, ok := rec.Items("list")
	if !ok {
		return weather.RawForecast{}, fmt.Errorf("%w: forecast %d without list", weather.ErrParse, id)
	}
	out := weather.RawForecast{Entries: entries}
	if city := rec.Object("city"); city != nil {
		out.CityName, _ = city.Text("name")
		out.CountryCode, _ = city.Text("country")
	}
	return out, nil
}

// StationsNear lists stations around a position in the order the API returns
// them (nearest first). Records without station details are skipped.
func (p *OpenWeatherProvider) StationsNear(ctx context.Context, lat, lon float64, limit int) ([]weather.WeatherStation, error) {
	if limit <= 0 {
		limit = 1
	}
	params := url.Values{
		"lat": {formatCoord(lat)},
		"lon": {formatCoord(lon)},
		"cnt": {strconv.Itoa(limit)},
	}
	body, err := p.get(ctx, "/station/find", params)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		// Errors come back as an object with a cod field.
		if rec, recErr := weather.ParseRawRecord(body); recErr == nil {
			if codErr := checkCod(rec); codErr != nil {
				return nil, codErr
			}
		}
		return nil, fmt.Errorf("%w: station list: %v", weather.ErrParse, err)
	}

	stations := make([]weather.WeatherStation, 0, len(items))
	for _, item := range items {
		rec, err := weather.ParseRawRecord(item)
		if err != nil {
			continue
		}
		st := rec.Object("station")
		if st == nil {
			continue
		}
		id, ok := st.Int64("id")
		if !ok {
			continue
		}
		station := weather.WeatherStation{ID: id}
		if coord := st.Object("coord"); coord != nil {
			if v := coord.Float("lat"); v != nil {
				station.Latitude = *v
			}
			if v := coord.Float("lon"); v != nil {
				station.Longitude = *v
			}
		}
		stations = append(stations, station)
		if len(stations) == limit {
			break
		}
	}
	return stations, nil
}

func (p *OpenWeatherProvider) getRecord(ctx context.Context, path string, params url.Values) (weather.RawRecord, error) {
	body, err := p.get(ctx, path, params)
	if err != nil {
		return nil, err
	}
	rec, err := weather.ParseRawRecord(body)
	if err != nil {
		return nil, err
	}
	if err := checkCod(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (p *OpenWeatherProvider) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("%w: openweather api key is not configured", weather.ErrSourceUnavailable)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		for k, v := range params {
			values[k] = v
		}
		values.Set("appid", p.apiKey)
		return http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+path+"?"+values.Encode(), nil)
	}
	return doRequest(ctx, p.client, p.circuit, buildRequest)
}

// checkCod inspects the status code OpenWeatherMap embeds in its payloads,
// which is a number on some endpoints and a string on others.
func checkCod(rec weather.RawRecord) error {
	cod, ok := rec.Text("cod")
	if !ok {
		return nil
	}
	cod = strings.TrimSpace(cod)
	switch cod {
	case "", "200":
		return nil
	case "404":
		msg, _ := rec.Text("message")
		return fmt.Errorf("%w: %s", weather.ErrNotFound, msg)
	default:
		msg, _ := rec.Text("message")
		return fmt.Errorf("%w: cod %s: %s", weather.ErrSourceUnavailable, cod, msg)
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
