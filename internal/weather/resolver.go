package weather

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/MiX1964/wforecast/internal/observability"
)

// placeholderQuery is the hint text the search form submits when left untouched.
const placeholderQuery = "Place to get forecast"

// State is a step of the resolution fallback chain.
type State int

const (
	StateInit State = iota
	StateCacheCheck
	StateProviderQuery
	StateGeocode
	StateStationSearch
	StateResolved
	StateUnresolved
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateCacheCheck:
		return "cache_check"
	case StateProviderQuery:
		return "provider_query"
	case StateGeocode:
		return "geocode"
	case StateStationSearch:
		return "station_search"
	case StateResolved:
		return "resolved"
	case StateUnresolved:
		return "unresolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Settings bounds the external calls made by the resolver and service.
type Settings struct {
	ProviderTimeout time.Duration
	GeocoderTimeout time.Duration
	StationTimeout  time.Duration
	StationLimit    int
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithClock replaces the real clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(r *Resolver) { r.clock = c }
}

// WithEvents notifies p whenever a new place row is stored.
func WithEvents(p PlaceEvents) Option {
	return func(r *Resolver) { r.events = p }
}

// Resolver runs the cache -> provider -> geocoder -> station fallback chain.
// It only ever returns success, ErrInvalidQuery or ErrNotFound.
type Resolver struct {
	cache    PlaceCache
	provider Provider
	geocoder Geocoder
	events   PlaceEvents
	settings Settings
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewResolver creates a Resolver. A nil geocoder disables the position path.
func NewResolver(cache PlaceCache, provider Provider, geocoder Geocoder, settings Settings, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Resolver {
	if settings.StationLimit <= 0 {
		settings.StationLimit = 1
	}
	r := &Resolver{
		cache:    cache,
		provider: provider,
		geocoder: geocoder,
		settings: settings,
		clock:    clockwork.NewRealClock(),
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run tracks one pass through the state machine.
type run struct {
	method string
	state  State
	logger *slog.Logger
}

func (r *Resolver) begin(ctx context.Context, method string) *run {
	return &run{
		method: method,
		state:  StateInit,
		logger: requestLogger(ctx, r.logger).With("method", method),
	}
}

func (rn *run) to(s State) {
	rn.logger.Debug("resolver transition", "from", rn.state.String(), "to", s.String())
	rn.state = s
}

// ResolveByName resolves a place name through the cache and then the provider.
func (r *Resolver) ResolveByName(ctx context.Context, name string) (Resolution, error) {
	query := strings.TrimSpace(name)
	if !validQuery(query) {
		r.metrics.Resolutions.WithLabelValues("name", "invalid").Inc()
		return Resolution{}, fmt.Errorf("%w: %q", ErrInvalidQuery, name)
	}

	rn := r.begin(ctx, "name")
	if place, source, ok := r.resolveName(ctx, rn, query); ok {
		return r.resolved(rn, place, source), nil
	}
	return Resolution{}, r.unresolved(rn, query)
}

// ResolveByPosition reverse geocodes a position, retries the name path with the
// derived city and finally falls back to the nearest weather station.
func (r *Resolver) ResolveByPosition(ctx context.Context, pos GeoPosition) (Resolution, error) {
	if !validPosition(pos) {
		r.metrics.Resolutions.WithLabelValues("position", "invalid").Inc()
		return Resolution{}, fmt.Errorf("%w: position (%v, %v)", ErrInvalidQuery, pos.Latitude, pos.Longitude)
	}

	rn := r.begin(ctx, "position")
	what := fmt.Sprintf("(%.4f, %.4f)", pos.Latitude, pos.Longitude)

	loc, ok := r.geocode(ctx, rn, pos)
	if !ok {
		return Resolution{}, r.unresolved(rn, what)
	}

	if place, source, ok := r.resolveName(ctx, rn, loc.City); ok {
		return r.resolved(rn, place, source), nil
	}

	if place, ok := r.stationSearch(ctx, rn, pos, loc); ok {
		return r.resolved(rn, place, SourceStation), nil
	}
	return Resolution{}, r.unresolved(rn, what)
}

func (r *Resolver) resolveName(ctx context.Context, rn *run, name string) (Place, Source, bool) {
	if place, ok := r.cacheCheck(ctx, rn, name); ok {
		return place, SourceCache, true
	}
	if place, ok := r.providerQuery(ctx, rn, name); ok {
		return place, SourceProvider, true
	}
	return Place{}, "", false
}

func (r *Resolver) cacheCheck(ctx context.Context, rn *run, name string) (Place, bool) {
	rn.to(StateCacheCheck)

	place, found, err := r.cache.GetByName(ctx, name)
	switch {
	case err != nil:
		// A broken cache is a miss; the provider can still answer.
		rn.logger.Warn("place cache lookup failed", "name", name, "error", err)
		r.metrics.CacheLookups.WithLabelValues("error").Inc()
		r.metrics.StageErrors.WithLabelValues("cache", "unavailable").Inc()
		return Place{}, false
	case !found:
		r.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return Place{}, false
	default:
		r.metrics.CacheLookups.WithLabelValues("hit").Inc()
		return place, true
	}
}

func (r *Resolver) providerQuery(ctx context.Context, rn *run, name string) (Place, bool) {
	rn.to(StateProviderQuery)
	if r.provider == nil {
		return Place{}, false
	}

	callCtx, cancel := context.WithTimeout(ctx, r.settings.ProviderTimeout)
	defer cancel()

	start := r.clock.Now()
	found, err := r.provider.FindByName(callCtx, name)
	r.observeCall("find_by_name", start)
	if err == nil && found.ID == 0 {
		err = fmt.Errorf("%w: provider returned place without id", ErrParse)
	}
	if err != nil {
		r.stageFailed(rn, "provider", err, "name", name)
		return Place{}, false
	}

	place := Place{
		ID:          found.ID,
		Name:        found.Name,
		CountryCode: found.CountryCode,
		Latitude:    found.Latitude,
		Longitude:   found.Longitude,
	}
	if place.Name == "" {
		place.Name = name
	}
	r.store(ctx, rn, place, SourceProvider)
	return place, true
}

func (r *Resolver) geocode(ctx context.Context, rn *run, pos GeoPosition) (GeocodedLocation, bool) {
	rn.to(StateGeocode)
	if r.geocoder == nil {
		rn.logger.Debug("geocoder disabled")
		return GeocodedLocation{}, false
	}

	callCtx, cancel := context.WithTimeout(ctx, r.settings.GeocoderTimeout)
	defer cancel()

	start := r.clock.Now()
	loc, err := r.geocoder.ReverseGeocode(callCtx, pos.Latitude, pos.Longitude)
	r.observeCall("reverse_geocode", start)
	if err == nil && strings.TrimSpace(loc.City) == "" {
		err = fmt.Errorf("%w: no city at position", ErrNotFound)
	}
	if err != nil {
		r.stageFailed(rn, "geocode", err, "lat", pos.Latitude, "lon", pos.Longitude)
		return GeocodedLocation{}, false
	}

	loc.City = strings.TrimSpace(loc.City)
	rn.logger.Debug("position geocoded", "city", loc.City, "country", loc.CountryCode)
	return loc, true
}

func (r *Resolver) stationSearch(ctx context.Context, rn *run, pos GeoPosition, loc GeocodedLocation) (Place, bool) {
	rn.to(StateStationSearch)
	if r.provider == nil {
		return Place{}, false
	}

	callCtx, cancel := context.WithTimeout(ctx, r.settings.StationTimeout)
	defer cancel()

	start := r.clock.Now()
	stations, err := r.provider.StationsNear(callCtx, pos.Latitude, pos.Longitude, r.settings.StationLimit)
	r.observeCall("stations_near", start)
	if err == nil && len(stations) == 0 {
		err = fmt.Errorf("%w: no stations near position", ErrNotFound)
	}
	if err != nil {
		r.stageFailed(rn, "station", err, "lat", pos.Latitude, "lon", pos.Longitude)
		return Place{}, false
	}

	nearest := stations[0]
	place := Place{
		ID:          nearest.ID,
		Name:        loc.City,
		CountryCode: loc.CountryCode,
		Latitude:    nearest.Latitude,
		Longitude:   nearest.Longitude,
	}
	r.store(ctx, rn, place, SourceStation)
	return place, true
}

// store caches a freshly resolved place. Failures are logged, never returned:
// the resolution itself already succeeded.
func (r *Resolver) store(ctx context.Context, rn *run, place Place, source Source) {
	inserted, err := r.cache.InsertIfAbsent(ctx, place)
	switch {
	case err != nil:
		rn.logger.Warn("place cache insert failed", "place_id", place.ID, "error", err)
		r.metrics.PlaceInserts.WithLabelValues("error").Inc()
		r.metrics.StageErrors.WithLabelValues("insert", "unavailable").Inc()
		return
	case !inserted:
		rn.logger.Debug("place already cached", "place_id", place.ID)
		r.metrics.PlaceInserts.WithLabelValues("duplicate").Inc()
		return
	}

	r.metrics.PlaceInserts.WithLabelValues("inserted").Inc()
	if r.events == nil {
		return
	}
	res := Resolution{Place: place, Source: source, ResolvedAt: r.clock.Now().UTC()}
	if err := r.events.PlaceCached(ctx, res); err != nil {
		rn.logger.Warn("place event publish failed", "place_id", place.ID, "error", err)
	}
}

func (r *Resolver) resolved(rn *run, place Place, source Source) Resolution {
	rn.to(StateResolved)
	r.metrics.Resolutions.WithLabelValues(rn.method, string(source)).Inc()
	rn.logger.Info("place resolved", "place_id", place.ID, "name", place.Name, "source", string(source))
	return Resolution{Place: place, Source: source, ResolvedAt: r.clock.Now().UTC()}
}

func (r *Resolver) unresolved(rn *run, what string) error {
	rn.to(StateUnresolved)
	r.metrics.Resolutions.WithLabelValues(rn.method, "not_found").Inc()
	rn.logger.Info("place unresolved", "query", what)
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func (r *Resolver) stageFailed(rn *run, stage string, err error, attrs ...any) {
	reason := Classify(err)
	r.metrics.StageErrors.WithLabelValues(stage, reason).Inc()
	args := append([]any{"stage", stage, "reason", reason, "error", err}, attrs...)
	if reason == "not_found" {
		rn.logger.Debug("fallback stage found nothing", args...)
		return
	}
	rn.logger.Warn("fallback stage failed", args...)
}

func (r *Resolver) observeCall(call string, start time.Time) {
	r.metrics.ExternalCallDuration.WithLabelValues(call).Observe(r.clock.Since(start).Seconds())
}

func validQuery(q string) bool {
	return q != "" && !strings.EqualFold(q, placeholderQuery)
}

func validPosition(pos GeoPosition) bool {
	lat, lon := pos.Latitude, pos.Longitude
	if math.IsNaN(lat) || math.IsNaN(lon) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
