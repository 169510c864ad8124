package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coursedash/dashboard/internal/app/core"
	"github.com/coursedash/dashboard/internal/app/dashboard"
	"github.com/coursedash/dashboard/internal/app/mirror"
	"github.com/coursedash/dashboard/internal/platform/config"
	"github.com/coursedash/dashboard/internal/platform/logfields"
	"github.com/coursedash/dashboard/internal/platform/natsutil"
)

type CLI struct {
	EnvFile string `help:"Optional .env file read before the environment" default:".env" type:"path"`
	Verbose bool   `short:"v" help:"Enable debug logging"`
	Seed    string `help:"Seed YAML replacing the embedded sample data" type:"existingfile"`

	Serve    ServeCmd    `cmd:"" default:"1" help:"Serve the dashboard API and page"`
	Snapshot SnapshotCmd `cmd:"" help:"Print the initial snapshot and its selectors as JSON"`

	cfg    config.Config `kong:"-"`
	logger *slog.Logger  `kong:"-"`
}

// AfterApply loads configuration and sets up logging once.
func (c *CLI) AfterApply() error {
	cfg, err := config.Load(c.EnvFile)
	if err != nil {
		return err
	}
	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	if c.Verbose {
		level = slog.LevelDebug
	}
	c.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(c.logger)
	c.cfg = cfg
	return nil
}

func (c *CLI) seed() (io.ReadCloser, error) {
	if c.Seed == "" {
		return nil, nil
	}
	return os.Open(c.Seed)
}

type ServeCmd struct{}

func (ServeCmd) Run(cli *CLI) error {
	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := cli.logger

	opts := core.Options{Logger: logger}
	seed, err := cli.seed()
	if err != nil {
		return err
	}
	if seed != nil {
		defer seed.Close()
		opts.Seed = seed
	}

	var client *natsutil.Client
	if cli.cfg.NATSURL != "" {
		client, err = natsutil.ConnectWithRetry(runCtx, cli.cfg.NATSURL, cli.cfg.NATSTimeout, logger)
		if err != nil {
			return err
		}
		defer client.Close()
		opts.Publish = client.Publish
	}

	app, err := core.New(runCtx, cli.cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("close dashboard", logfields.Error(err))
		}
	}()

	if client != nil {
		sub, err := client.ConsumeCommands("dashboard", func(subject string, data []byte) natsutil.Disposition {
			err := app.Mirror.Handle(subject, data)
			disposition := mirror.Disposition(err)
			if err != nil {
				logger.Warn("command from bus failed", logfields.Subject(subject), logfields.Error(err))
			}
			return disposition
		})
		if err != nil {
			return err
		}
		defer func() { _ = sub.Drain() }()
		logger.Info("Consuming commands", logfields.Subject(sub.Subject))
	}

	app.Start()

	server := &http.Server{
		Addr:              cli.cfg.HTTPAddr,
		Handler:           app.Handler().Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Dashboard listening", slog.String("addr", cli.cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-runCtx.Done():
	case err := <-serverErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cli.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	logger.Info("Dashboard stopped")
	return nil
}

type SnapshotCmd struct {
	Pretty bool `help:"Indent the JSON output"`
}

func (s SnapshotCmd) Run(cli *CLI) error {
	opts := core.Options{Logger: cli.logger}
	seed, err := cli.seed()
	if err != nil {
		return err
	}
	if seed != nil {
		defer seed.Close()
		opts.Seed = seed
	}
	app, err := core.New(context.Background(), cli.cfg, opts)
	if err != nil {
		return err
	}
	defer func() { _ = app.Close() }()
	if err := app.Sweeper.RunOnce(); err != nil {
		return err
	}

	snap := app.Store.Snapshot()
	out := struct {
		Snapshot dashboard.Snapshot `json:"snapshot"`
		Summary  dashboard.Summary  `json:"summary"`
	}{snap, dashboard.Summarize(snap, app.Store.Version())}

	enc := json.NewEncoder(os.Stdout)
	if s.Pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(out)
}
