package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MiX1964/wforecast/internal/config"
)

func TestNewLogger_ProdIsJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.AppConfig{AppEnv: "prod", LogLevel: slog.LevelInfo})

	logger.Debug("hidden")
	logger.Info("place resolved", "place_id", 7)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "place resolved", line["msg"])
	assert.Equal(t, "wforecast", line["app"])
	assert.Equal(t, "prod", line["env"])
	assert.Equal(t, 7.0, line["place_id"])
}

func TestNewLogger_DevIsText(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &config.AppConfig{AppEnv: "dev", LogLevel: slog.LevelDebug})

	logger.Debug("resolver transition", "to", "cache_check")

	assert.Contains(t, buf.String(), "resolver transition")
	assert.Contains(t, buf.String(), "cache_check")
	assert.False(t, json.Valid(buf.Bytes()))
}

func TestNewMetricsForTesting_Independent(t *testing.T) {
	a := NewMetricsForTesting()
	b := NewMetricsForTesting()

	a.Resolutions.WithLabelValues("name", "cache").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Resolutions.WithLabelValues("name", "cache")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.Resolutions.WithLabelValues("name", "cache")))
}
