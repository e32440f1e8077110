// Package config loads engine configuration from environment variables
// (via a .env file plus os.Getenv defaults). CLI flags, where present, always take
// precedence over the environment; the environment takes precedence over
// the defaults below.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config carries every environment-tunable setting the engine, adapters and
// CLI need.
type Config struct {
	EarthModel string // default "ak135"

	TravelTimeDir string // NetCDF travel-time grids
	CratonPath    string // craton polygon file
	ZoneKeyPath   string // zone-key binary
	ZoneStatPath  string // zone-stat binary
	CacheDir      string // gob-serialized auxiliary-data cache

	LogPath  string
	LogLevel string

	ServicePort int
	Workers     int
}

// Load reads a .env file if present (ignored if absent) and builds a
// Config from environment variables, falling back to defaults.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}

	return &Config{
		EarthModel:    getEnv("LOCATOR_EARTH_MODEL", "ak135"),
		TravelTimeDir: getEnv("LOCATOR_TRAVELTIME_DIR", "./data/traveltime"),
		CratonPath:    getEnv("LOCATOR_CRATON_PATH", "./data/cratons.json"),
		ZoneKeyPath:   getEnv("LOCATOR_ZONE_KEY_PATH", "./data/zonekey.dat"),
		ZoneStatPath:  getEnv("LOCATOR_ZONE_STAT_PATH", "./data/zonestat.dat"),
		CacheDir:      getEnv("LOCATOR_CACHE_DIR", "./data/cache"),
		LogPath:       getEnv("LOCATOR_LOG_PATH", ""),
		LogLevel:      getEnv("LOCATOR_LOG_LEVEL", "info"),
		ServicePort:   getEnvInt("LOCATOR_PORT", 8080),
		Workers:       getEnvInt("LOCATOR_WORKERS", 0),
	}
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default.
func getEnvInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logrus.WithField("key", key).WithError(err).Warn("invalid integer env var, using default")
		return defaultValue
	}
	return v
}
