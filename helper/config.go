package helper

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mjuillard/veil/model"
)

// MinPassphraseLength is the shortest passphrase accepted for a store.
const MinPassphraseLength = 8

// Configuration holds everything needed to open a store and run
// detection. Values come from the environment; a .env file in the
// working directory is honored when present.
type Configuration struct {
	DBPath     string
	Passphrase string
	Theme      string
	ModelDir   string
	LogLevel   slog.Level
}

// NewConfiguration loads the configuration from the environment.
func NewConfiguration() (*Configuration, error) {
	// A missing .env file is fine, the environment may be set directly.
	_ = godotenv.Load()

	config := &Configuration{
		DBPath:     envOrDefault("VEIL_DB_PATH", "veil.db"),
		Passphrase: os.Getenv("VEIL_PASSPHRASE"),
		Theme:      envOrDefault("VEIL_THEME", "starwars"),
		ModelDir:   envOrDefault("VEIL_MODEL_DIR", "./models"),
		LogLevel:   ParseLogLevel(os.Getenv("VEIL_LOG_LEVEL")),
	}

	if config.Passphrase == "" {
		return nil, model.NewConfigError("VEIL_PASSPHRASE", fmt.Errorf("passphrase is required"))
	}
	if len(config.Passphrase) < MinPassphraseLength {
		return nil, model.NewConfigError("VEIL_PASSPHRASE", fmt.Errorf("passphrase must be at least %d characters", MinPassphraseLength))
	}
	if config.DBPath == "" {
		return nil, model.NewConfigError("VEIL_DB_PATH", fmt.Errorf("store path must not be empty"))
	}

	return config, nil
}

// ParseLogLevel maps a level name to its slog level, defaulting to info.
func ParseLogLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOrDefault(key string, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
