package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/config"
	"github.com/alkime/callboard/internal/logger"
	"github.com/alkime/callboard/internal/playback"
	"github.com/alkime/callboard/internal/tui"
	"github.com/alkime/callboard/internal/upload"
	tea "github.com/charmbracelet/bubbletea"
)

// DashCmd is the default command that runs the TUI.
type DashCmd struct {
	LogFile string `flag:"" default:"callboard.log" help:"Log file while the dashboard owns the terminal"`
}

// Run executes the dashboard command.
func (c *DashCmd) Run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, logFile, err := logger.SetupFileLogger(c.LogFile, cfg)
	if err != nil {
		return err
	}
	defer logFile.Close()

	a, err := newApp(cfg, log, calls.DefaultQuery())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := newPlayer(cfg, log)
	defer player.Close()

	tracker := upload.New(a.client, a.calls, upload.Config{
		Timeout:  cfg.UploadTimeout,
		MaxBytes: cfg.MaxAudioBytes,
		Logger:   log,
	})

	m := tui.New(ctx, tui.Config{
		Cancel:   cancel,
		Calls:    a.calls,
		Uploader: tracker,
		Deleter:  a.client,
		Fetcher:  a.client,
		Player:   player,
	})

	log.Info("dashboard starting", "api", cfg.APIBaseURL)

	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("failed to run dashboard: %w", err)
	}

	return nil
}

// newPlayer builds the adapter over the sound card engine with the virtual
// clock as fallback.
func newPlayer(cfg *config.Config, log *slog.Logger) *playback.Adapter {
	return playback.NewAdapter(
		func() playback.Engine {
			return playback.NewDeviceEngine(playback.DeviceConfig{
				MaxBytes: cfg.MaxAudioBytes,
				Tick:     cfg.PlaybackTick,
			})
		},
		func() playback.Engine {
			return playback.NewClockEngine(playback.ClockConfig{
				Tick: cfg.PlaybackTick,
			})
		},
		playback.Config{Logger: log},
	)
}
