package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wforecast"

// Metrics holds the Prometheus collectors for the resolution pipeline.
type Metrics struct {
	Resolutions  *prometheus.CounterVec // labels: method={name,position}, outcome={cache,provider,station,not_found,invalid}
	StageErrors  *prometheus.CounterVec // labels: stage={cache,provider,geocode,station,insert}, reason
	CacheLookups *prometheus.CounterVec // labels: result={hit,miss,error}
	PlaceInserts *prometheus.CounterVec // labels: result={inserted,duplicate,error}

	ExternalCallDuration *prometheus.HistogramVec // labels: call={find_by_name,reverse_geocode,stations_near,current_weather,forecast}

	GeocodeCache    *prometheus.CounterVec // labels: result={hit,miss}
	ForecastEntries prometheus.Counter
	WarmupRuns      prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)
	prometheus.MustRegister(
		m.Resolutions,
		m.StageErrors,
		m.CacheLookups,
		m.PlaceInserts,
		m.ExternalCallDuration,
		m.GeocodeCache,
		m.ForecastEntries,
		m.WarmupRuns,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics so tests can build as many as they like.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      help("Place resolutions by method and outcome."),
		}, []string{"method", "outcome"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_errors_total",
			Help:      help("Fallback stage failures that advanced the chain."),
		}, []string{"stage", "reason"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "place_cache_lookups_total",
			Help:      help("Place cache lookups by result."),
		}, []string{"result"}),
		PlaceInserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "place_inserts_total",
			Help:      help("Place cache insert attempts by result."),
		}, []string{"result"}),
		ExternalCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "external_call_duration_seconds",
			Help:      help("Duration of calls to the weather provider and geocoder."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"call"}),
		GeocodeCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_cache_total",
			Help:      help("Reverse geocoding cache lookups by result."),
		}, []string{"result"}),
		ForecastEntries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "forecast_entries_decoded_total",
			Help:      help("Forecast entries decoded."),
		}),
		WarmupRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warmup_runs_total",
			Help:      help("Completed cache warm-up runs."),
		}),
	}
}
