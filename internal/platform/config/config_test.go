package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coursedash/dashboard/internal/platform/apperr"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	require.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	require.Equal(t, DefaultSweepInterval, cfg.SweepInterval)
	require.Equal(t, 2*time.Second, cfg.VerifyDelay)
	require.Equal(t, 1500*time.Millisecond, cfg.JoinDelay)
	require.Equal(t, 200*time.Millisecond, cfg.DownloadTick)
	require.Equal(t, DefaultDownloadStep, cfg.DownloadStep)
	require.InDelta(t, 0.7, cfg.VerifySuccessRate, 1e-9)
	require.False(t, cfg.LegacyGlobalLevels)
	require.Empty(t, cfg.NATSURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SWEEP_INTERVAL", "5s")
	t.Setenv("DOWNLOAD_STEP", "25")
	t.Setenv("LEGACY_GLOBAL_LEVELS", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, cfg.SweepInterval)
	require.Equal(t, 25, cfg.DownloadStep)
	require.True(t, cfg.LegacyGlobalLevels)

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)
}

func TestLoad_DotenvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("HTTP_ADDR=:9191\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv("HTTP_ADDR") })

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9191", cfg.HTTPAddr)
}

func TestValidate_Rejects(t *testing.T) {
	base, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"zero sweep":     func(c *Config) { c.SweepInterval = 0 },
		"step too large": func(c *Config) { c.DownloadStep = 101 },
		"zero tick":      func(c *Config) { c.DownloadTick = 0 },
		"bad rate":       func(c *Config) { c.VerifySuccessRate = 1.5 },
		"bad level":      func(c *Config) { c.LogLevel = "loud" },
		"no password":    func(c *Config) { c.DemoPassword = " " },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := base
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.Equal(t, apperr.CategoryConfiguration, apperr.CategoryOf(err))
		})
	}
}
