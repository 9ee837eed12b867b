package weather

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiX1964/wforecast/internal/observability"
)

var (
	barcelona = ProviderPlace{ID: 3128760, Name: "Barcelona", CountryCode: "ES", Latitude: 41.38, Longitude: 2.18}
	fixedNow  = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
)

type resolverFixture struct {
	cache    *fakeCache
	provider *fakeProvider
	geocoder *fakeGeocoder
	events   *recordingEvents
	metrics  *observability.Metrics
	resolver *Resolver
}

func newResolverFixture(settings Settings) *resolverFixture {
	f := &resolverFixture{
		cache:    newFakeCache(),
		provider: &fakeProvider{places: map[string]ProviderPlace{"Barcelona": barcelona}},
		geocoder: &fakeGeocoder{loc: GeocodedLocation{City: "Barcelona", CountryCode: "ES", Latitude: 41.39, Longitude: 2.16}},
		events:   &recordingEvents{},
		metrics:  observability.NewMetricsForTesting(),
	}
	f.resolver = NewResolver(f.cache, f.provider, f.geocoder, settings, discardLogger(), f.metrics,
		WithClock(clockwork.NewFakeClockAt(fixedNow)),
		WithEvents(f.events),
	)
	return f
}

func wantBarcelona() Place {
	return Place{ID: 3128760, Name: "Barcelona", CountryCode: "ES", Latitude: 41.38, Longitude: 2.18}
}

func TestResolveByName_ProviderThenCache(t *testing.T) {
	f := newResolverFixture(testSettings)
	ctx := context.Background()

	res, err := f.resolver.ResolveByName(ctx, "Barcelona")
	require.NoError(t, err)
	assert.Equal(t, Resolution{Place: wantBarcelona(), Source: SourceProvider, ResolvedAt: fixedNow}, res)
	assert.Equal(t, 1, f.provider.count("find"))

	stored, found, err := f.cache.GetByID(ctx, 3128760)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, wantBarcelona(), stored)

	res, err = f.resolver.ResolveByName(ctx, "Barcelona")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, wantBarcelona(), res.Place)
	assert.Equal(t, 1, f.provider.total(), "cache hit must not call the provider")
	assert.Zero(t, f.geocoder.calls)

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Resolutions.WithLabelValues("name", "provider")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Resolutions.WithLabelValues("name", "cache")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PlaceInserts.WithLabelValues("inserted")))
}

func TestResolveByName_CachedPlaceMakesNoExternalCalls(t *testing.T) {
	f := newResolverFixture(testSettings)
	_, _ = f.cache.InsertIfAbsent(context.Background(), Place{ID: 7, Name: "Oslo", CountryCode: "NO"})

	res, err := f.resolver.ResolveByName(context.Background(), "  Oslo ")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Equal(t, int64(7), res.Place.ID)
	assert.Zero(t, f.provider.total())
	assert.Zero(t, f.geocoder.calls)
	assert.Empty(t, f.events.got)
}

func TestResolveByName_Exhaustion(t *testing.T) {
	f := newResolverFixture(testSettings)

	_, err := f.resolver.ResolveByName(context.Background(), "Atlantis")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, f.provider.count("find"))
	assert.Zero(t, f.provider.count("stations"), "name path never searches stations")
	assert.Zero(t, f.geocoder.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Resolutions.WithLabelValues("name", "not_found")))
}

func TestResolveByName_ProviderUnavailableIsNotFound(t *testing.T) {
	f := newResolverFixture(testSettings)
	f.provider.findErr = ErrSourceUnavailable

	_, err := f.resolver.ResolveByName(context.Background(), "Barcelona")
	require.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrSourceUnavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StageErrors.WithLabelValues("provider", "unavailable")))
}

func TestResolveByName_ProviderWithoutIDIsRejected(t *testing.T) {
	f := newResolverFixture(testSettings)
	f.provider.places["Nowhere"] = ProviderPlace{Name: "Nowhere"}

	_, err := f.resolver.ResolveByName(context.Background(), "Nowhere")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.cache.inserts)
}

func TestResolveByName_InvalidQuery(t *testing.T) {
	f := newResolverFixture(testSettings)

	for _, q := range []string{"", "   ", "Place to get forecast", "place to get forecast"} {
		_, err := f.resolver.ResolveByName(context.Background(), q)
		assert.ErrorIs(t, err, ErrInvalidQuery, "query %q", q)
	}
	assert.Zero(t, f.provider.total())
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.Resolutions.WithLabelValues("name", "invalid")))
}

func TestResolveByName_CacheErrorIsMiss(t *testing.T) {
	f := newResolverFixture(testSettings)
	f.cache.getErr = errBoom

	res, err := f.resolver.ResolveByName(context.Background(), "Barcelona")
	require.NoError(t, err)
	assert.Equal(t, SourceProvider, res.Source)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheLookups.WithLabelValues("error")))
}

func TestResolveByName_InsertErrorStillResolves(t *testing.T) {
	f := newResolverFixture(testSettings)
	f.cache.insertErr = errBoom

	res, err := f.resolver.ResolveByName(context.Background(), "Barcelona")
	require.NoError(t, err)
	assert.Equal(t, wantBarcelona(), res.Place)
	assert.Empty(t, f.events.got)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PlaceInserts.WithLabelValues("error")))
}

func TestResolveByName_DuplicateInsertIsBenign(t *testing.T) {
	f := newResolverFixture(testSettings)
	// a concurrent resolver stored the row between our cache check and insert
	f.cache.places[3128760] = Place{ID: 3128760, Name: "Barcelona (other)"}

	res, err := f.resolver.ResolveByName(context.Background(), "Barcelona")
	require.NoError(t, err)
	assert.Equal(t, SourceProvider, res.Source)
	assert.Empty(t, f.events.got, "no event when the row already existed")
	assert.Equal(t, "Barcelona (other)", f.cache.places[3128760].Name, "existing row is never overwritten")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PlaceInserts.WithLabelValues("duplicate")))
}

func TestResolveByName_EmitsEventOnInsert(t *testing.T) {
	f := newResolverFixture(testSettings)
	f.events.err = errBoom

	_, err := f.resolver.ResolveByName(context.Background(), "Barcelona")
	require.NoError(t, err, "event failures never fail resolution")
	require.Len(t, f.events.got, 1)
	assert.Equal(t, Resolution{Place: wantBarcelona(), Source: SourceProvider, ResolvedAt: fixedNow}, f.events.got[0])
}

func TestResolveByName_ProviderTimeoutAdvances(t *testing.T) {
	settings := testSettings
	settings.ProviderTimeout = 20 * time.Millisecond
	f := newResolverFixture(settings)
	f.provider.block = true

	start := time.Now()
	_, err := f.resolver.ResolveByName(context.Background(), "Barcelona")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.StageErrors.WithLabelValues("provider", "timeout")))
}

func TestResolveByPosition_GeocodeThenProvider(t *testing.T) {
	f := newResolverFixture(testSettings)

	res, err := f.resolver.ResolveByPosition(context.Background(), GeoPosition{Latitude: 41.39, Longitude: 2.16})
	require.NoError(t, err)
	assert.Equal(t, Resolution{Place: wantBarcelona(), Source: SourceProvider, ResolvedAt: fixedNow}, res)
	assert.Equal(t, 1, f.geocoder.calls)
	assert.Zero(t, f.provider.count("stations"))
}

func TestResolveByPosition_GeocodedCityAlreadyCached(t *testing.T) {
	f := newResolverFixture(testSettings)
	_, _ = f.cache.InsertIfAbsent(context.Background(), wantBarcelona())

	res, err := f.resolver.ResolveByPosition(context.Background(), GeoPosition{Latitude: 41.39, Longitude: 2.16})
	require.NoError(t, err)
	assert.Equal(t, SourceCache, res.Source)
	assert.Zero(t, f.provider.total())
}

func TestResolveByPosition_StationFallback(t *testing.T) {
	f := newResolverFixture(testSettings)
	f.provider.findErr = ErrSourceUnavailable
	f.provider.stations = []WeatherStation{
		{ID: 6352, Latitude: 41.4, Longitude: 2.17},
		{ID: 6353, Latitude: 41.5, Longitude: 2.3},
	}

	res, err := f.resolver.ResolveByPosition(context.Background(), GeoPosition{Latitude: 41.39, Longitude: 2.16})
	require.NoError(t, err)
	want := Place{ID: 6352, Name: "Barcelona", CountryCode: "ES", Latitude: 41.4, Longitude: 2.17}
	assert.Equal(t, Resolution{Place: want, Source: SourceStation, ResolvedAt: fixedNow}, res)
	assert.Equal(t, 5, f.provider.lastLimit)

	stored, found, err := f.cache.GetByID(context.Background(), 6352)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, want, stored)
	require.Len(t, f.events.got, 1)
	assert.Equal(t, SourceStation, f.events.got[0].Source)
}

func TestResolveByPosition_NoStations(t *testing.T) {
	f := newResolverFixture(testSettings)
	f.provider.findErr = ErrNotFound

	_, err := f.resolver.ResolveByPosition(context.Background(), GeoPosition{Latitude: 41.39, Longitude: 2.16})
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, f.provider.count("stations"))
	assert.Zero(t, f.cache.inserts)
}

func TestResolveByPosition_GeocodeFailures(t *testing.T) {
	tests := []struct {
		name string
		loc  GeocodedLocation
		err  error
	}{
		{name: "geocoder error", err: ErrSourceUnavailable},
		{name: "not found", err: ErrNotFound},
		{name: "empty city", loc: GeocodedLocation{City: "  ", CountryCode: "ES"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newResolverFixture(testSettings)
			f.geocoder.loc = tt.loc
			f.geocoder.err = tt.err

			_, err := f.resolver.ResolveByPosition(context.Background(), GeoPosition{Latitude: 1, Longitude: 1})
			require.ErrorIs(t, err, ErrNotFound)
			assert.Zero(t, f.provider.total())
		})
	}
}

func TestResolveByPosition_NilGeocoder(t *testing.T) {
	r := NewResolver(newFakeCache(), &fakeProvider{}, nil, testSettings, discardLogger(), observability.NewMetricsForTesting())

	_, err := r.ResolveByPosition(context.Background(), GeoPosition{Latitude: 1, Longitude: 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolveByPosition_InvalidPosition(t *testing.T) {
	f := newResolverFixture(testSettings)

	for _, pos := range []GeoPosition{
		{Latitude: 91, Longitude: 0},
		{Latitude: 0, Longitude: -181},
		{Latitude: nan(), Longitude: 0},
	} {
		_, err := f.resolver.ResolveByPosition(context.Background(), pos)
		assert.ErrorIs(t, err, ErrInvalidQuery)
	}
	assert.Zero(t, f.geocoder.calls)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "cache_check", StateCacheCheck.String())
	assert.Equal(t, "station_search", StateStationSearch.String())
	assert.Equal(t, "state(42)", State(42).String())
}
