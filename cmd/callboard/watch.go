package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/reconciler"
)

// WatchCmd runs the reconciler headless and logs status changes.
type WatchCmd struct {
	Status string `flag:"" optional:"" help:"Only list calls with this status (pending, running, success, failed)"`
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	query := calls.DefaultQuery()
	if c.Status != "" {
		status, err := calls.ParseStatus(c.Status)
		if err != nil {
			return fmt.Errorf("invalid status: %w", err)
		}
		query = query.WithStatus(&status)
	}

	a, err := newApp(cfg, log, query)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.calls.LoadInitial(ctx); err != nil {
		return fmt.Errorf("failed to load calls: %w", err)
	}

	snap := a.calls.Snapshot()
	log.Info("Loaded calls", "count", len(snap.Rows), "query", snap.Query)
	for _, row := range snap.Rows {
		log.Info("Call", rowAttrs(row)...)
	}

	return watchUntilSettled(ctx, a, log)
}

// watchUntilSettled logs status changes until no job is pending or ctx ends.
func watchUntilSettled(ctx context.Context, a *app, log *slog.Logger) error {
	updates, unsubscribe := a.calls.Subscribe()
	defer unsubscribe()

	last := statuses(a.calls.Snapshot())
	if jobs := a.calls.PendingJobs(); len(jobs) > 0 {
		log.Info("Waiting for jobs", "count", len(jobs), "jobs", jobs)
	}

	for {
		if !a.calls.Polling() {
			log.Info("All jobs settled")
			return nil
		}

		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			for _, row := range snap.Rows {
				if prev, seen := last[row.ID]; seen && prev != row.Status {
					log.Info("Status changed", append(rowAttrs(row), "from", prev)...)
				}
			}
			last = statuses(snap)
		}
	}
}

func statuses(snap reconciler.Snapshot) map[string]calls.Status {
	m := make(map[string]calls.Status, len(snap.Rows))
	for _, row := range snap.Rows {
		m[row.ID] = row.Status
	}

	return m
}

func rowAttrs(row calls.Record) []any {
	attrs := []any{"id", row.ID, "file", row.FileName, "status", strings.ToLower(row.Status.String())}
	if row.StatusDetail != "" {
		attrs = append(attrs, "detail", row.StatusDetail)
	}

	return attrs
}
