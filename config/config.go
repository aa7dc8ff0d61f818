/*
Package config loads process configuration from the environment.

PURPOSE:
  One flat Config struct, parsed once at startup. A .env file is loaded
  first when present (dev convenience); real environments set variables
  directly. No package-level config state - main owns the Config value and
  hands it down.
*/
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	// Port the HTTP API listens on.
	Port int `env:"PORT" envDefault:"8080"`

	// DBPath is the SQLite database file. ":memory:" runs fully in-memory.
	DBPath string `env:"DB_PATH" envDefault:"./data/ops.db"`

	// LogLevel is a logrus level name (debug, info, warn, error).
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// LogJSON switches the log format to JSON (structured collectors).
	LogJSON bool `env:"LOG_JSON" envDefault:"false"`

	// CORSOrigins is the comma-separated allowed-origin list for the API.
	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	// SeedFile optionally points at a JSON scenario to load on startup.
	SeedFile string `env:"SEED_FILE"`

	// BatchChunkSize and BatchMaxRetries tune the record writer.
	BatchChunkSize  int `env:"BATCH_CHUNK_SIZE" envDefault:"25"`
	BatchMaxRetries int `env:"BATCH_MAX_RETRIES" envDefault:"3"`
}

// Load reads .env (if present) and then the environment.
func Load() (Config, error) {
	// Missing .env is fine; env vars alone are a complete configuration.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
