// Package poller queries the processing status of a batch of jobs.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/metrics"
	"github.com/alkime/callboard/internal/stt"
	"github.com/alkime/callboard/pkg/collections"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds in-flight status queries when none is set.
const DefaultConcurrency = 8

// ErrTransportUnavailable is returned when every status query in a cycle
// failed without reaching the API.
var ErrTransportUnavailable = errors.New("status endpoint unreachable")

// StatusSource answers status queries for a single job.
type StatusSource interface {
	TaskStatus(ctx context.Context, jobID string) (calls.TaskStatus, error)
}

// Poller fans status queries out over a StatusSource. It keeps no state
// between calls.
type Poller struct {
	source      StatusSource
	concurrency int
	logger      *slog.Logger
}

// New creates a Poller. A concurrency below 1 selects DefaultConcurrency.
func New(source StatusSource, concurrency int, logger *slog.Logger) *Poller {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		source:      source,
		concurrency: concurrency,
		logger:      logger.With("component", "poller"),
	}
}

// Poll queries every distinct job id concurrently and returns the statuses
// that could be resolved. A failed query or an unrecognised status leaves
// its id out of the result. An error is returned only if ctx was cancelled
// or every query failed at the transport level.
func (p *Poller) Poll(ctx context.Context, jobIDs []string) (map[string]calls.TaskStatus, error) {
	ids := collections.Unique(collections.Filter(jobIDs, func(id string) bool { return id != "" }))
	result := make(map[string]calls.TaskStatus, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	start := time.Now()
	metrics.PollCycles.Inc()
	defer func() { metrics.PollDuration.Observe(time.Since(start).Seconds()) }()

	var (
		mu             sync.Mutex
		transportFails int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, id := range ids {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			status, err := p.source.TaskStatus(gctx, id)

			mu.Lock()
			defer mu.Unlock()

			switch {
			case err == nil:
				result[id] = status
				metrics.PollQueries.WithLabelValues(metrics.OutcomeOK).Inc()
			case errors.Is(err, calls.ErrUnknownStatus):
				p.logger.Warn("ignoring unrecognized job status", "job_id", id, "error", err)
				metrics.PollQueries.WithLabelValues(metrics.OutcomeUnknown).Inc()
			case stt.IsTransport(err):
				transportFails++
				p.logger.Debug("status query failed", "job_id", id, "error", err)
				metrics.PollQueries.WithLabelValues(metrics.OutcomeTransport).Inc()
			default:
				p.logger.Debug("status query rejected", "job_id", id, "error", err)
				metrics.PollQueries.WithLabelValues(metrics.OutcomeError).Inc()
			}

			return nil
		})
	}

	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if transportFails == len(ids) {
		return nil, ErrTransportUnavailable
	}

	return result, nil
}
