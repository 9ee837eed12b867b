package weather

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testSettings = Settings{
	ProviderTimeout: time.Second,
	GeocoderTimeout: time.Second,
	StationTimeout:  time.Second,
	StationLimit:    5,
}

// fakeCache is a minimal PlaceCache with injectable failures.
type fakeCache struct {
	mu        sync.Mutex
	places    map[int64]Place
	getErr    error
	insertErr error
	inserts   int
}

func newFakeCache(places ...Place) *fakeCache {
	c := &fakeCache{places: map[int64]Place{}}
	for _, p := range places {
		c.places[p.ID] = p
	}
	return c
}

func (c *fakeCache) GetByName(_ context.Context, name string) (Place, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return Place{}, false, c.getErr
	}
	for _, p := range c.places {
		if p.Name == name {
			return p, true, nil
		}
	}
	return Place{}, false, nil
}

func (c *fakeCache) GetByID(_ context.Context, id int64) (Place, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.places[id]
	return p, ok, nil
}

func (c *fakeCache) ExistsByID(_ context.Context, id int64) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.places[id]
	return ok, nil
}

func (c *fakeCache) InsertIfAbsent(_ context.Context, p Place) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inserts++
	if c.insertErr != nil {
		return false, c.insertErr
	}
	if _, ok := c.places[p.ID]; ok {
		return false, nil
	}
	c.places[p.ID] = p
	return true, nil
}

func (c *fakeCache) Delete(_ context.Context, id int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.places, id)
	return nil
}

func (c *fakeCache) List(_ context.Context) ([]Place, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Place, 0, len(c.places))
	for _, p := range c.places {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeProvider answers from fixed tables and counts every call.
type fakeProvider struct {
	mu        sync.Mutex
	places    map[string]ProviderPlace
	findErr   error
	current   RawRecord
	forecast  RawForecast
	stations  []WeatherStation
	err       error
	block     bool
	calls     map[string]int
	lastLimit int
}

func (p *fakeProvider) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[call]++
}

func (p *fakeProvider) count(call string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[call]
}

func (p *fakeProvider) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) FindByName(ctx context.Context, name string) (ProviderPlace, error) {
	p.record("find")
	if p.block {
		<-ctx.Done()
		return ProviderPlace{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, ctx.Err())
	}
	if p.findErr != nil {
		return ProviderPlace{}, p.findErr
	}
	place, ok := p.places[name]
	if !ok {
		return ProviderPlace{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return place, nil
}

func (p *fakeProvider) CurrentWeather(_ context.Context, _ string) (RawRecord, error) {
	p.record("current")
	if p.err != nil {
		return nil, p.err
	}
	return p.current, nil
}

func (p *fakeProvider) Forecast(_ context.Context, _ int64) (RawForecast, error) {
	p.record("forecast")
	if p.err != nil {
		return RawForecast{}, p.err
	}
	return p.forecast, nil
}

func (p *fakeProvider) StationsNear(_ context.Context, _, _ float64, limit int) ([]WeatherStation, error) {
	p.record("stations")
	p.mu.Lock()
	p.lastLimit = limit
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	return p.stations, nil
}

type fakeGeocoder struct {
	loc   GeocodedLocation
	err   error
	calls int
}

func (g *fakeGeocoder) ReverseGeocode(_ context.Context, _, _ float64) (GeocodedLocation, error) {
	g.calls++
	return g.loc, g.err
}

type recordingEvents struct {
	got []Resolution
	err error
}

func (e *recordingEvents) PlaceCached(_ context.Context, res Resolution) error {
	e.got = append(e.got, res)
	return e.err
}

var errBoom = errors.New("boom")
