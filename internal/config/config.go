// Package config loads client configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAPIURL is the loopback address the Ask Rumi API listens on locally.
const DefaultAPIURL = "http://127.0.0.1:8001"

// Config holds all configuration values.
type Config struct {
	// Remote API
	APIURL        string
	ClientTimeout time.Duration

	// Local preferences file (YAML)
	PreferencesFile string

	// Logging
	LogFile  string
	LogLevel slog.Level

	// Voice adapters (empty disables)
	TTSCommand string
	STTCommand string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first if present;
// variables already set in the environment win.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		APIURL:        strings.TrimRight(getEnv("RUMI_API_URL", DefaultAPIURL), "/"),
		ClientTimeout: parseDuration(getEnv("RUMI_CLIENT_TIMEOUT", ""), 5*time.Minute),

		PreferencesFile: getEnv("RUMI_PREFERENCES_FILE", defaultPreferencesFile()),

		LogFile:  getEnv("RUMI_LOG_FILE", "/tmp/askrumi.log"),
		LogLevel: parseLogLevel(getEnv("RUMI_LOG_LEVEL", "INFO")),

		TTSCommand: getEnv("RUMI_TTS_COMMAND", ""),
		STTCommand: getEnv("RUMI_STT_COMMAND", ""),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func defaultPreferencesFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "askrumi", "preferences.yaml")
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
