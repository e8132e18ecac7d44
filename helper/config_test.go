package helper

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/mjuillard/veil/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfiguration(t *testing.T) {
	t.Run("Valid configuration from environment", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "test.veil")
		SetTestConfigEnvs(t, dbPath)

		config, err := NewConfiguration()

		require.NoError(t, err, "Expected configuration to load")
		assert.Equal(t, dbPath, config.DBPath)
		assert.Equal(t, "correct horse battery staple", config.Passphrase)
		assert.Equal(t, "starwars", config.Theme)
		assert.Equal(t, slog.LevelError, config.LogLevel)
	})

	t.Run("Missing passphrase fails", func(t *testing.T) {
		SetTestConfigEnvs(t, filepath.Join(t.TempDir(), "test.veil"))
		t.Setenv("VEIL_PASSPHRASE", "")

		config, err := NewConfiguration()

		require.Error(t, err, "Expected missing passphrase to fail")
		assert.Nil(t, config)

		configErr := &model.ConfigError{}
		require.ErrorAs(t, err, &configErr)
		assert.Equal(t, "VEIL_PASSPHRASE", configErr.Field)
	})

	t.Run("Short passphrase fails", func(t *testing.T) {
		SetTestConfigEnvs(t, filepath.Join(t.TempDir(), "test.veil"))
		t.Setenv("VEIL_PASSPHRASE", "short")

		_, err := NewConfiguration()

		require.Error(t, err, "Expected short passphrase to fail")
		assert.Contains(t, err.Error(), "at least 8 characters")
	})

	t.Run("Defaults apply when optional envs are unset", func(t *testing.T) {
		SetTestConfigEnvs(t, filepath.Join(t.TempDir(), "test.veil"))
		t.Setenv("VEIL_THEME", "")
		t.Setenv("VEIL_LOG_LEVEL", "")

		config, err := NewConfiguration()

		require.NoError(t, err)
		assert.Equal(t, "starwars", config.Theme, "Expected default theme")
		assert.Equal(t, slog.LevelInfo, config.LogLevel, "Expected default log level")
		assert.Equal(t, "./models", config.ModelDir, "Expected default model directory")
	})
}

func TestParseLogLevel(t *testing.T) {
	t.Run("Known levels parse", func(t *testing.T) {
		assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
		assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARN"))
		assert.Equal(t, slog.LevelWarn, ParseLogLevel("warning"))
		assert.Equal(t, slog.LevelError, ParseLogLevel(" error "))
	})

	t.Run("Unknown levels default to info", func(t *testing.T) {
		assert.Equal(t, slog.LevelInfo, ParseLogLevel(""))
		assert.Equal(t, slog.LevelInfo, ParseLogLevel("verbose"))
	})
}
