package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/config"
	"github.com/alkime/callboard/internal/keyring"
	"github.com/alkime/callboard/internal/logger"
	"github.com/alkime/callboard/internal/poller"
	"github.com/alkime/callboard/internal/reconciler"
	"github.com/alkime/callboard/internal/server"
	"github.com/alkime/callboard/internal/stt"
)

// refreshEvery reloads the list so calls created elsewhere show up.
const refreshEvery = time.Minute

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup structured logging
	logger := logger.SetupLogger(cfg)

	// Log startup information
	logger.Info("Starting callboard relay",
		"env", cfg.Env,
		"port", cfg.Port,
		"api", cfg.APIBaseURL,
	)

	token, err := keyring.ResolveToken(cfg.APIToken)
	if err != nil {
		logger.Warn("Keychain lookup failed, continuing without token", "error", err)
	}

	client, err := stt.NewClient(stt.ClientConfig{
		BaseURL: cfg.APIBaseURL,
		Token:   token,
		Timeout: cfg.HTTPTimeout,
		Logger:  logger,
	})
	if err != nil {
		log.Fatalf("Fatal: %v", err)
	}

	rec := reconciler.New(client, poller.New(client, cfg.PollConcurrency, logger), reconciler.Config{
		Interval: cfg.PollInterval,
		Query:    calls.DefaultQuery(),
		Logger:   logger,
	})
	defer rec.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go refresh(ctx, rec)

	if err := server.Run(ctx, server.New(cfg, logger, rec)); err != nil {
		logger.Error("Server stopped", "error", err)
		stop()
		rec.Close()
		log.Fatalf("Fatal: %v", err)
	}
}

// refresh loads the list now and then every refreshEvery. Failures are
// kept in the snapshot for clients to show.
func refresh(ctx context.Context, rec *reconciler.Reconciler) {
	t := time.NewTicker(refreshEvery)
	defer t.Stop()

	for {
		_ = rec.LoadInitial(ctx)

		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
