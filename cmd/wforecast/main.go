package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpapi "github.com/MiX1964/wforecast/internal/api/http"
	"github.com/MiX1964/wforecast/internal/config"
	"github.com/MiX1964/wforecast/internal/events"
	"github.com/MiX1964/wforecast/internal/observability"
	"github.com/MiX1964/wforecast/internal/scheduler"
	"github.com/MiX1964/wforecast/internal/store"
	"github.com/MiX1964/wforecast/internal/weather"
	"github.com/MiX1964/wforecast/internal/weather/providers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Place cache.
	var (
		cache weather.PlaceCache
		db    *sql.DB
	)
	if cfg.DBDriver == "memory" {
		cache = store.NewMemoryStore()
		logger.Warn("using in-memory place cache; places are lost on restart")
	} else {
		db, err = store.Open(cfg)
		if err != nil {
			logger.Error("failed to open database", "driver", cfg.DBDriver, "error", err)
			os.Exit(1)
		}
		sqlStore, err := store.NewSQLStore(context.Background(), db, cfg.DBDriver)
		if err != nil {
			logger.Error("failed to prepare place cache", "error", err)
			os.Exit(1)
		}
		cache = sqlStore
		logger.Info("place cache ready", "driver", cfg.DBDriver)
	}

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{
		Timeout: cfg.HTTPTimeout,
	}

	// External sources behind circuit breakers.
	provider := providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey, cfg.OpenWeatherBaseURL)
	if cfg.OpenWeatherAPIKey == "" {
		logger.Warn("OPENWEATHER_API_KEY is not set; provider lookups will fail")
	}
	geocoder, err := providers.NewCachedGeocoder(
		providers.NewNominatimGeocoder(httpClient, cfg.NominatimBaseURL, cfg.NominatimUserAgent),
		cfg.GeocoderCacheSize,
		metrics,
	)
	if err != nil {
		logger.Error("failed to create geocoder", "error", err)
		os.Exit(1)
	}

	// Place events (feature-flagged via KAFKA_BROKERS).
	var opts []weather.Option
	var publisher *events.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewPublisher(cfg, logger)
		opts = append(opts, weather.WithEvents(publisher))
		logger.Info("place events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaPlacesTopic)
	} else {
		logger.Info("place events disabled")
	}

	settings := weather.Settings{
		ProviderTimeout: cfg.ProviderTimeout,
		GeocoderTimeout: cfg.GeocoderTimeout,
		StationTimeout:  cfg.StationTimeout,
		StationLimit:    cfg.StationSearchLimit,
	}
	service := weather.NewService(cache, provider, geocoder, settings, logger, metrics, opts...)

	// Scheduler that keeps configured places warm in the cache.
	sched := scheduler.New(cfg.WarmPlaces, cfg.WarmInterval, service, logger, metrics)
	if err := sched.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	app := fiber.New(fiber.Config{
		AppName:               "wforecast",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          cfg.HTTPTimeout + cfg.ProviderTimeout + cfg.GeocoderTimeout + cfg.StationTimeout,
		ErrorHandler:          httpapi.NewErrorHandler(logger),
	})

	// Global middleware
	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "wforecast",
		})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	httpapi.RegisterRoutes(app, service)

	go func() {
		logger.Info("http server listening", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			logger.Error("fiber server stopped", "error", err)
		}
	}()

	// Wait for termination signal
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	sched.Stop()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if db != nil {
		if err := db.Close(); err != nil {
			logger.Error("database close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
