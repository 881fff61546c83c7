package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/upload"
)

// UploadCmd uploads recordings without the dashboard.
type UploadCmd struct {
	Files []string `arg:"" type:"existingfile" help:"Recordings to upload"`
	Wait  bool     `flag:"" help:"Keep running until the uploaded calls finish processing"`
}

// Run executes the upload command.
func (c *UploadCmd) Run() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(cfg, log, calls.DefaultQuery())
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracker := upload.New(a.client, a.calls, upload.Config{
		Timeout:  cfg.UploadTimeout,
		MaxBytes: cfg.MaxAudioBytes,
		Logger:   log,
	})

	var failed []error
	for _, path := range c.Files {
		rec, err := tracker.UploadPath(ctx, path, progressLogger(log, path))
		if err != nil {
			log.Error("Upload failed", "file", path, "error", err)
			failed = append(failed, err)

			if ctx.Err() != nil {
				break
			}
			continue
		}

		log.Info("Uploaded", "file", path, "id", rec.ID, "job", rec.JobID, "status", rec.Status)
	}

	if c.Wait && len(failed) < len(c.Files) && ctx.Err() == nil {
		if err := watchUntilSettled(ctx, a, log); err != nil {
			return err
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d uploads failed: %w", len(failed), len(c.Files), errors.Join(failed...))
	}

	return nil
}

// progressLogger logs every quarter of an upload.
func progressLogger(log *slog.Logger, path string) func(percent int) {
	next := 25
	return func(percent int) {
		if percent < next {
			return
		}
		log.Info("Uploading", "file", path, "percent", percent)
		for next <= percent {
			next += 25
		}
	}
}
