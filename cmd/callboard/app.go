package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/config"
	"github.com/alkime/callboard/internal/keyring"
	"github.com/alkime/callboard/internal/logger"
	"github.com/alkime/callboard/internal/poller"
	"github.com/alkime/callboard/internal/reconciler"
	"github.com/alkime/callboard/internal/stt"
)

// app is the wiring shared by every command that talks to the API.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	client *stt.Client
	calls  *reconciler.Reconciler
}

// loadConfig loads the configuration and resets the CLI log level from it.
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, logger.SetupTextLogger(os.Stderr, logger.Level(cfg)), nil
}

func newApp(cfg *config.Config, log *slog.Logger, query calls.Query) (*app, error) {
	token, err := keyring.ResolveToken(cfg.APIToken)
	if err != nil {
		return nil, err
	}
	if token == "" {
		log.Debug("no API token configured, sending unauthenticated requests")
	}

	client, err := stt.NewClient(stt.ClientConfig{
		BaseURL: cfg.APIBaseURL,
		Token:   token,
		Timeout: cfg.HTTPTimeout,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	rec := reconciler.New(client, poller.New(client, cfg.PollConcurrency, log), reconciler.Config{
		Interval: cfg.PollInterval,
		Query:    query,
		Logger:   log,
	})

	return &app{cfg: cfg, logger: log, client: client, calls: rec}, nil
}

func (a *app) Close() {
	a.calls.Close()
}
