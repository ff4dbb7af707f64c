package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, name := range []string{EnvDBPath, EnvPort, EnvRelativeError, EnvLogLevel, EnvQueryTimeout} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 0.0081, cfg.Policy().RelativeError)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv(EnvDBPath, "/tmp/other.sqlite")
	t.Setenv(EnvPort, "9090")
	t.Setenv(EnvRelativeError, "0.02")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvQueryTimeout, "5s")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/other.sqlite", cfg.DBPath)
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, 0.02, cfg.RelativeError)
	require.Equal(t, slog.LevelDebug, cfg.LogLevel)
	require.Equal(t, 5*time.Second, cfg.QueryTimeout)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		EnvPort:          "http",
		EnvRelativeError: "1.5",
		EnvLogLevel:      "loud",
		EnvQueryTimeout:  "-1s",
	}

	for name, value := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(name, value)

			_, err := Load()
			require.Error(t, err)
		})
	}
}
