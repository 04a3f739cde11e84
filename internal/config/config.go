package config

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Server
	Port int

	// Storage
	DataDir string // recording file and settings database

	// Recording
	RecordRate       int     // capture sample rate
	MaxRecordSeconds int     // cap on one capture, 0 = unlimited
	DefaultVolume    float64 // used until a volume setting is stored

	// Logging
	LogLevel string // logrus level name
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		Port:             envInt("EARSHOT_PORT", 8080),
		DataDir:          envStr("EARSHOT_DATA_DIR", "./data"),
		RecordRate:       envInt("EARSHOT_RECORD_RATE", 44100),
		MaxRecordSeconds: envInt("EARSHOT_MAX_RECORD_SECONDS", 120),
		DefaultVolume:    unitRange(envFloat("EARSHOT_DEFAULT_VOLUME", 1.0), 1.0),
		LogLevel:         envStr("EARSHOT_LOG_LEVEL", "info"),
	}
}

// RecordingPath is the fixed capture destination.
func (c Config) RecordingPath() string {
	return filepath.Join(c.DataDir, "recording.wav")
}

// SettingsDir is where the settings database lives.
func (c Config) SettingsDir() string {
	return filepath.Join(c.DataDir, "settings")
}

// MaxRecordDuration is MaxRecordSeconds as a duration.
func (c Config) MaxRecordDuration() time.Duration {
	return time.Duration(c.MaxRecordSeconds) * time.Second
}

// unitRange clamps v to [0, 1]. NaN takes fallback.
func unitRange(v, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return math.Min(math.Max(v, 0), 1)
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
