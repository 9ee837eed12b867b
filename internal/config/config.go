package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// HTTPTimeout bounds every outbound HTTP request at the transport level.
	HTTPTimeout time.Duration

	// Per-stage deadlines for the fallback chain.
	ProviderTimeout    time.Duration
	GeocoderTimeout    time.Duration
	StationTimeout     time.Duration
	StationSearchLimit int

	OpenWeatherAPIKey  string
	OpenWeatherBaseURL string

	NominatimBaseURL   string
	NominatimUserAgent string
	GeocoderCacheSize  int

	// Place cache storage.
	DBDriver       string // sqlite3, mysql or memory
	DBDSN          string
	SQLitePath     string
	DBMaxOpenConns int

	// Place events (disabled when no brokers are configured).
	KafkaBrokers     []string
	KafkaPlacesTopic string

	// Places kept warm in the cache by the scheduler.
	WarmPlaces   []string
	WarmInterval time.Duration

	ShutdownTimeout time.Duration
}

// Load reads configuration from environment with sensible defaults.
// A .env file in the working directory is loaded first when present.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.AppEnv = strings.TrimSpace(getenvDefault("APP_ENV", "prod"))
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level
	cfg.Port = getenvDefault("PORT", "8080")

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"HTTP_TIMEOUT", "10s", &cfg.HTTPTimeout},
		{"PROVIDER_TIMEOUT", "5s", &cfg.ProviderTimeout},
		{"GEOCODER_TIMEOUT", "5s", &cfg.GeocoderTimeout},
		{"STATION_TIMEOUT", "5s", &cfg.StationTimeout},
		{"WARM_INTERVAL", "30m", &cfg.WarmInterval},
		{"SHUTDOWN_TIMEOUT", "10s", &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		v, err := parsePositiveDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	cfg.StationSearchLimit = getenvInt("STATION_SEARCH_LIMIT", 5)
	if cfg.StationSearchLimit <= 0 {
		return nil, fmt.Errorf("invalid STATION_SEARCH_LIMIT: must be positive")
	}

	cfg.OpenWeatherAPIKey = os.Getenv("OPENWEATHER_API_KEY")
	cfg.OpenWeatherBaseURL = getenvDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5")

	cfg.NominatimBaseURL = getenvDefault("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org")
	cfg.NominatimUserAgent = getenvDefault("NOMINATIM_USER_AGENT", "wforecast/1.0")
	cfg.GeocoderCacheSize = getenvInt("GEOCODER_CACHE_SIZE", 1000)
	if cfg.GeocoderCacheSize <= 0 {
		return nil, fmt.Errorf("invalid GEOCODER_CACHE_SIZE: must be positive")
	}

	cfg.DBDriver = getenvDefault("DB_DRIVER", "sqlite3")
	switch cfg.DBDriver {
	case "sqlite3", "mysql", "memory":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q (allowed: sqlite3, mysql, memory)", cfg.DBDriver)
	}
	cfg.DBDSN = os.Getenv("DB_DSN")
	cfg.SQLitePath = getenvDefault("SQLITE_PATH", "data/places.db")
	cfg.DBMaxOpenConns = getenvInt("DB_MAX_OPEN_CONNS", 4)
	if cfg.DBDriver == "mysql" && cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required when DB_DRIVER is mysql")
	}

	cfg.KafkaBrokers = splitList(os.Getenv("KAFKA_BROKERS"))
	cfg.KafkaPlacesTopic = getenvDefault("KAFKA_PLACES_TOPIC", "places-cached")

	cfg.WarmPlaces = splitList(os.Getenv("WARM_PLACES"))

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(getenvDefault(key, def))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}
