// Package config reads server settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sahithikokkula/sqlite-hll/pkg/aggregate"
)

const (
	EnvDBPath        = "HLL_DB_PATH"
	EnvPort          = "PORT"
	EnvRelativeError = "HLL_RELATIVE_ERROR"
	EnvLogLevel      = "HLL_LOG_LEVEL"
	EnvQueryTimeout  = "HLL_QUERY_TIMEOUT"
)

type Config struct {
	DBPath        string
	Port          string
	RelativeError float64
	LogLevel      slog.Level
	QueryTimeout  time.Duration
}

func Default() Config {
	return Config{
		DBPath:        "hll.sqlite",
		Port:          "8080",
		RelativeError: aggregate.DefaultRelativeError,
		LogLevel:      slog.LevelInfo,
		QueryTimeout:  120 * time.Second,
	}
}

// Load starts from Default and overrides every field whose variable is set.
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv(EnvDBPath); v != "" {
		cfg.DBPath = v
	}

	if v := os.Getenv(EnvPort); v != "" {
		if _, err := strconv.ParseUint(v, 10, 16); err != nil {
			return cfg, fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		cfg.Port = v
	}

	if v := os.Getenv(EnvRelativeError); v != "" {
		relErr, err := strconv.ParseFloat(v, 64)
		if err != nil || relErr <= 0 || relErr >= 1 {
			return cfg, fmt.Errorf("%s: expected a number in (0, 1), got %q", EnvRelativeError, v)
		}
		cfg.RelativeError = relErr
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(strings.ToUpper(v))); err != nil {
			return cfg, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}

	if v := os.Getenv(EnvQueryTimeout); v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil || timeout <= 0 {
			return cfg, fmt.Errorf("%s: invalid duration %q", EnvQueryTimeout, v)
		}
		cfg.QueryTimeout = timeout
	}

	return cfg, nil
}

func (c Config) Policy() aggregate.Policy {
	return aggregate.Policy{RelativeError: c.RelativeError}
}
