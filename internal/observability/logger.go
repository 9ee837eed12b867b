package observability

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"

	"github.com/MiX1964/wforecast/internal/config"
)

const appName = "wforecast"

// NewLogger returns a colored text logger in dev and a JSON logger otherwise.
func NewLogger(cfg *config.AppConfig) *slog.Logger {
	return newLogger(os.Stdout, cfg)
}

func newLogger(w io.Writer, cfg *config.AppConfig) *slog.Logger {
	if cfg.AppEnv == "dev" {
		h := tint.NewHandler(w, &tint.Options{
			Level:      cfg.LogLevel,
			AddSource:  true,
			TimeFormat: time.Kitchen,
		})
		return slog.New(h).With("app", appName)
	}

	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})
	return slog.New(h).With(
		"app", appName,
		"env", cfg.AppEnv,
	)
}
