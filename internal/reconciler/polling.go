package reconciler

import (
	"context"
	"errors"

	"github.com/alkime/callboard/internal/metrics"
)

// pollLoop is one run of the status polling goroutine. A stopped loop may
// still be finishing a cycle; its results are discarded because it is no
// longer the reconciler's current loop.
type pollLoop struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// syncPollingLocked starts the loop when a pollable row exists and stops it
// when none remain.
func (r *Reconciler) syncPollingLocked() {
	pending := r.hasPollableLocked()

	switch {
	case pending && r.loop == nil && !r.closed:
		r.startLoopLocked()
	case !pending && r.loop != nil:
		r.stopLoopLocked()
	}
}

func (r *Reconciler) hasPollableLocked() bool {
	for _, row := range r.rows {
		if row.Pollable() {
			return true
		}
	}

	return false
}

func (r *Reconciler) pollableJobsLocked() []string {
	var ids []string
	for _, row := range r.rows {
		if row.Pollable() {
			ids = append(ids, row.JobID)
		}
	}

	return ids
}

func (r *Reconciler) startLoopLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	loop := &pollLoop{cancel: cancel, done: make(chan struct{})}
	r.loop = loop

	metrics.PollingActive.Set(1)
	r.logger.Debug("status polling started", "interval", r.interval)

	tick, stop := r.ticker(r.interval)

	go func() {
		defer close(loop.done)
		defer stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-tick:
				r.pollCycle(ctx, loop)
			}
		}
	}()
}

// stopLoopLocked cancels the current loop without waiting for it, so it is
// safe to call from inside a cycle.
func (r *Reconciler) stopLoopLocked() {
	if r.loop == nil {
		return
	}

	r.loop.cancel()
	r.loop = nil

	metrics.PollingActive.Set(0)
	r.logger.Debug("status polling stopped")
}

// pollCycle runs one poll. Cycles of a loop are sequential, so a cycle never
// starts before the previous one was applied.
func (r *Reconciler) pollCycle(ctx context.Context, loop *pollLoop) {
	r.mu.Lock()
	if r.loop != loop {
		r.mu.Unlock()
		return
	}
	ids := r.pollableJobsLocked()
	r.mu.Unlock()

	if len(ids) == 0 {
		return
	}

	results, err := r.poller.Poll(ctx, ids)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			r.logger.Warn("status poll failed", "jobs", len(ids), "error", err)
		}
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loop != loop {
		r.logger.Debug("discarding results of stopped poll loop", "results", len(results))
		return
	}

	if r.applyPollLocked(results) {
		r.syncPollingLocked()
		r.publishLocked()
	}
}

// PendingJobs returns the job ids the next poll cycle would query.
func (r *Reconciler) PendingJobs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.pollableJobsLocked()
}
