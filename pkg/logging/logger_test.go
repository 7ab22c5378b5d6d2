package logging_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/agentstation/statuspage/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := logging.DefaultConfig()
	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, "stderr", cfg.Output)
	assert.False(t, cfg.AddCaller)
}

func TestNewLoggerFromConfig(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(originalLevel)

	t.Run("json to file with fields", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "out.log")
		logger := logging.NewLoggerFromConfig(&logging.Config{
			Level:  "info",
			Format: "json",
			Output: path,
			Fields: map[string]any{"service": "statuspage", "replica": 2},
		})
		logger.Info().Msg("hello")
		logger.Debug().Msg("hidden")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		out := string(content)
		assert.Contains(t, out, `"message":"hello"`)
		assert.Contains(t, out, `"service":"statuspage"`)
		assert.Contains(t, out, `"replica":2`)
		assert.NotContains(t, out, "hidden")
	})

	t.Run("console format", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "console.log")
		logger := logging.NewLoggerFromConfig(&logging.Config{
			Level:   "warn",
			Format:  "console",
			Output:  path,
			NoColor: true,
		})
		logger.Warn().Str("room", "org-demo").Msg("console test")

		content, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(content), "WRN")
		assert.Contains(t, string(content), "console test")
	})

	t.Run("discard does not panic with auto format", func(t *testing.T) {
		logger := logging.NewLoggerFromConfig(&logging.Config{Format: "auto", Output: "discard"})
		logger.Info().Msg("dropped")
	})
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("STATUSPAGE_LOG_LEVEL", "debug")
	t.Setenv("STATUSPAGE_LOG_FORMAT", "json")
	t.Setenv("STATUSPAGE_LOG_FIELDS", "region=eu, az = b")

	cfg := logging.ConfigFromEnv()
	assert.Equal(t, "debug", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, map[string]any{"region": "eu", "az": "b"}, cfg.Fields)
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := logging.WithLogger(context.Background(), &base)
	ctx = logging.WithRequestID(ctx, "req-1")
	ctx = logging.WithOrganization(ctx, "demo")
	ctx = logging.WithConnection(ctx, "c1")
	ctx = logging.WithFields(ctx, map[string]any{"attempt": 3, "err": errors.New("boom"), "wait": time.Second})

	logging.FromContext(ctx).Info().Msg("ctx")

	out := buf.String()
	assert.Equal(t, "req-1", logging.RequestID(ctx))
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"org":"demo"`)
	assert.Contains(t, out, `"connection_id":"c1"`)
	assert.Contains(t, out, `"attempt":3`)
	assert.Contains(t, out, `"error":"boom"`)
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
	assert.Empty(t, logging.RequestID(context.Background()))
}

func TestComponentAndTestLogger(t *testing.T) {
	tl := logging.NewTestLogger(t)
	logging.Component(tl.Logger, "hub").Debug().Msg("started")

	require.Len(t, tl.Lines(), 1)
	assert.True(t, tl.Contains(`"component":"hub"`))
	assert.True(t, tl.Contains("started"))
}

func TestSetDefault(t *testing.T) {
	original := *logging.Default()
	defer logging.SetDefault(original)

	var buf bytes.Buffer
	logging.SetDefault(zerolog.New(&buf))
	logging.Default().Info().Msg("swapped")
	assert.Contains(t, buf.String(), "swapped")
}
