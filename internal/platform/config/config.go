package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/coursedash/dashboard/internal/platform/apperr"
)

const (
	DefaultHTTPAddr      = ":8080"
	DefaultSweepInterval = 60 * time.Second
	DefaultDownloadStep  = 10
)

// Config is the process configuration, read from the environment.
type Config struct {
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	AllowedOrigin   string        `env:"UI_ORIGIN" envDefault:"*"`
	NATSURL         string        `env:"NATS_URL"`
	NATSTimeout     time.Duration `env:"NATS_CONNECT_TIMEOUT" envDefault:"20s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"60s"`
	VerifyDelay        time.Duration `env:"VERIFY_DELAY" envDefault:"2s"`
	VerifySuccessRate  float64       `env:"VERIFY_SUCCESS_RATE" envDefault:"0.7"`
	JoinDelay          time.Duration `env:"JOIN_DELAY" envDefault:"1500ms"`
	StoryJoinDelay     time.Duration `env:"STORY_JOIN_DELAY" envDefault:"2s"`
	DownloadTick       time.Duration `env:"DOWNLOAD_TICK" envDefault:"200ms"`
	DownloadStep       int           `env:"DOWNLOAD_STEP" envDefault:"10"`
	LegacyGlobalLevels bool          `env:"LEGACY_GLOBAL_LEVELS" envDefault:"false"`
	DemoPassword       string        `env:"DEMO_PASSWORD" envDefault:"dashboard-demo"`
}

// Load reads an optional .env file and then parses the environment.
func Load(dotenvFiles ...string) (Config, error) {
	if err := godotenv.Load(dotenvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load dotenv: %w", err)
	}
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no workflow can run with.
func (c Config) Validate() error {
	switch {
	case c.SweepInterval <= 0:
		return apperr.Configuration("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	case c.VerifyDelay < 0 || c.JoinDelay < 0 || c.StoryJoinDelay < 0:
		return apperr.Configuration("workflow delays must not be negative")
	case c.DownloadTick <= 0:
		return apperr.Configuration("DOWNLOAD_TICK must be positive, got %s", c.DownloadTick)
	case c.DownloadStep <= 0 || c.DownloadStep > 100:
		return apperr.Configuration("DOWNLOAD_STEP must be within 1..100, got %d", c.DownloadStep)
	case c.VerifySuccessRate < 0 || c.VerifySuccessRate > 1:
		return apperr.Configuration("VERIFY_SUCCESS_RATE must be within 0..1, got %v", c.VerifySuccessRate)
	case strings.TrimSpace(c.DemoPassword) == "":
		return apperr.Configuration("DEMO_PASSWORD is required")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps LOG_LEVEL onto a slog level.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo, apperr.WrapConfiguration(err, "invalid LOG_LEVEL %q", c.LogLevel)
	}
	return level, nil
}
