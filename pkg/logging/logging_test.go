package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/aliasmap/pkg/logging"
)

func TestContextLogger(t *testing.T) {
	testLogger := logging.NewTestLogger(t)

	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithProvider(ctx, "Microsoft.Web")
	ctx = logging.WithRequestID(ctx, "req-123")

	logging.Ctx(ctx).Info().Msg("test message")

	testLogger.AssertContains(t, `"namespace":"Microsoft.Web"`)
	testLogger.AssertContains(t, `"request_id":"req-123"`)
	assert.Equal(t, "req-123", logging.RequestID(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	assert.Same(t, logging.Default(), logging.FromContext(context.Background()))
	assert.Same(t, logging.Default(), logging.FromContext(logging.WithLogger(context.Background(), nil)))
	assert.Empty(t, logging.RequestID(context.Background()))
}

func TestWithSubscriptionMasksID(t *testing.T) {
	testLogger := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), testLogger.Logger)
	ctx = logging.WithSubscription(ctx, "12345678-aaaa-bbbb-cccc-ddddeeeeffff")

	logging.Ctx(ctx).Info().Msg("rebuild")

	testLogger.AssertContains(t, `"subscription":"12345678..."`)
	assert.NotContains(t, testLogger.Output(), "ddddeeeeffff")
}

func TestMaskID(t *testing.T) {
	assert.Equal(t, "12345678...", logging.MaskID("123456789abc"))
	assert.Equal(t, "abc...", logging.MaskID("abc"))
}

func TestNewLoggerFromConfig(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	t.Run("explicit level", func(t *testing.T) {
		logger := logging.NewLoggerFromConfig(&logging.Config{Level: "warn", Format: "json", Output: "discard"})
		assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	})

	t.Run("warning alias", func(t *testing.T) {
		logger := logging.NewLoggerFromConfig(&logging.Config{Level: "WARNING", Output: "discard"})
		assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	})

	t.Run("unknown level falls back to info", func(t *testing.T) {
		logger := logging.NewLoggerFromConfig(&logging.Config{Level: "chatty", Output: "discard"})
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		logger := logging.NewLoggerFromConfig(nil)
		assert.Equal(t, zerolog.InfoLevel, logger.GetLevel())
	})
}

func TestNewLoggerFromConfigWritesFile(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })
	path := filepath.Join(t.TempDir(), "aliasmap.log")

	logger := logging.NewLoggerFromConfig(&logging.Config{Level: "info", Format: "json", Output: path})
	logger.Info().Str("namespace", "Microsoft.Compute").Msg("fetching aliases")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"namespace":"Microsoft.Compute"`)
	assert.Contains(t, string(data), `"message":"fetching aliases"`)
}
