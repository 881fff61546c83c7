// Package reconciler keeps the call list consistent while uploads, list
// fetches and status polls race each other.
//
// All mutations go through a single mutex. Status changes only ever move
// forward (Pending, Running, then Success or Failed), so stale answers that
// arrive late can not undo newer state.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/metrics"
	"github.com/alkime/callboard/pkg/channels"
	"github.com/google/uuid"
)

// ErrClosed is returned by operations on a closed Reconciler.
var ErrClosed = errors.New("reconciler closed")

// DefaultInterval is the status poll period when none is configured.
const DefaultInterval = 3 * time.Second

// Lister fetches the call list from the server.
type Lister interface {
	ListCalls(ctx context.Context, q calls.Query) ([]calls.Record, error)
}

// Poller resolves the status of a batch of jobs.
type Poller interface {
	Poll(ctx context.Context, jobIDs []string) (map[string]calls.TaskStatus, error)
}

// TickerFunc starts a periodic tick and returns its channel and a stop func.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

// Config holds the optional collaborators of a Reconciler.
type Config struct {
	Interval time.Duration
	Query    calls.Query
	Logger   *slog.Logger

	// Ticker, NewID and Now are replaceable for tests.
	Ticker TickerFunc
	NewID  func() string
	Now    func() time.Time
}

// Snapshot is a consistent copy of the reconciler state.
type Snapshot struct {
	Rows    []calls.Record `json:"rows"`
	Query   string         `json:"query"`
	Polling bool           `json:"polling"`
	Loading bool           `json:"loading"`
	Err     error          `json:"-"`
	Error   string         `json:"error,omitempty"`
	Version uint64         `json:"version"`
}

// Reconciler owns the list of call records shown to the user.
type Reconciler struct {
	lister   Lister
	poller   Poller
	interval time.Duration
	ticker   TickerFunc
	newID    func() string
	now      func() time.Time
	logger   *slog.Logger
	updates  *channels.Broadcaster[Snapshot]

	mu      sync.Mutex
	rows    []calls.Record
	query   calls.Query
	err     error
	loading bool
	closed  bool
	version uint64

	// gen orders list fetches; only the latest one may apply its result.
	gen uint64
	// confirmed and removed stamp edits with the fetch generation that was
	// current when they happened, so a fetch already in flight does not
	// revert them.
	confirmed map[string]uint64
	removed   map[string]uint64

	loop *pollLoop
}

// New creates a Reconciler. Nothing is fetched until LoadInitial.
func New(lister Lister, poller Poller, cfg Config) *Reconciler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Query == (calls.Query{}) {
		cfg.Query = calls.DefaultQuery()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Ticker == nil {
		cfg.Ticker = func(d time.Duration) (<-chan time.Time, func()) {
			t := time.NewTicker(d)
			return t.C, t.Stop
		}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Reconciler{
		lister:    lister,
		poller:    poller,
		interval:  cfg.Interval,
		ticker:    cfg.Ticker,
		newID:     cfg.NewID,
		now:       cfg.Now,
		logger:    cfg.Logger.With("component", "reconciler"),
		updates:   channels.NewBroadcaster[Snapshot](1),
		query:     cfg.Query,
		confirmed: make(map[string]uint64),
		removed:   make(map[string]uint64),
	}
}

// LoadInitial fetches the list for the current query and replaces the rows,
// keeping upload placeholders at the head. When several fetches overlap only
// the most recently started one is applied. On failure the previous rows are
// kept, the error is recorded in the snapshot and returned.
func (r *Reconciler) LoadInitial(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.gen++
	gen := r.gen
	query := r.query
	r.loading = true
	r.publishLocked()
	r.mu.Unlock()

	fetched, err := r.lister.ListCalls(ctx, query)

	r.mu.Lock()
	defer r.mu.Unlock()

	if gen != r.gen {
		r.logger.Debug("discarding superseded fetch", "generation", gen, "latest", r.gen)
		return nil
	}

	r.loading = false

	if err != nil {
		metrics.FetchFailures.Inc()
		r.err = err
		r.publishLocked()

		return fmt.Errorf("failed to load calls: %w", err)
	}

	r.err = nil
	r.rows = r.mergeFetchLocked(gen, query, fetched)
	r.syncPollingLocked()
	r.publishLocked()

	return nil
}

// mergeFetchLocked builds the new row set: placeholders, then records
// confirmed while the fetch was in flight, then the fetched rows.
func (r *Reconciler) mergeFetchLocked(gen uint64, query calls.Query, fetched []calls.Record) []calls.Record {
	current := make(map[string]calls.Record, len(r.rows))
	for _, row := range r.rows {
		current[row.ID] = row
	}

	inFetch := make(map[string]bool, len(fetched))
	for _, row := range fetched {
		inFetch[row.ID] = true
	}

	merged := make([]calls.Record, 0, len(fetched)+len(r.rows))
	seen := make(map[string]bool, cap(merged))
	add := func(row calls.Record) {
		if seen[row.ID] {
			return
		}
		seen[row.ID] = true
		merged = append(merged, row)
	}

	for _, row := range r.rows {
		if row.IsUploading {
			add(row)
		}
	}

	for _, row := range r.rows {
		if r.confirmed[row.ID] == gen && !inFetch[row.ID] && query.Matches(row) {
			add(row)
		}
	}

	for _, row := range fetched {
		if r.removed[row.ID] == gen {
			continue
		}
		if prev, ok := current[row.ID]; ok && !prev.IsUploading {
			row = mergeRecord(prev, row)
		}
		add(row)
	}

	for id, stamp := range r.confirmed {
		if stamp <= gen {
			delete(r.confirmed, id)
		}
	}
	for id, stamp := range r.removed {
		if stamp <= gen {
			delete(r.removed, id)
		}
	}

	return merged
}

// ApplyUploadStart inserts a placeholder row at the head of the list and
// returns its temporary id.
func (r *Reconciler) ApplyUploadStart(fileName string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := calls.TempIDPrefix + r.newID()
	for r.indexLocked(id) >= 0 {
		id = calls.TempIDPrefix + r.newID()
	}

	r.rows = slices.Insert(r.rows, 0, calls.Placeholder(id, fileName, r.now()))
	r.publishLocked()

	return id
}

// ApplyUploadProgress updates the percentage of a placeholder. Values are
// clamped to 0..100. The highest value wins rather than the latest one, so a
// report arriving out of order never moves the bar backwards. Unknown ids are
// ignored.
func (r *Reconciler) ApplyUploadProgress(tempID string, percent int) {
	percent = min(max(percent, 0), 100)

	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(tempID)
	if i < 0 || !r.rows[i].IsUploading || percent <= r.rows[i].UploadProgress {
		return
	}

	r.rows[i].UploadProgress = percent
	r.publishLocked()
}

// ApplyUploadComplete replaces the placeholder with the server record. If the
// placeholder is gone the record is inserted at the head.
func (r *Reconciler) ApplyUploadComplete(tempID string, rec calls.Record) {
	rec.IsUploading = false
	rec.UploadProgress = 0

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}

	if j := r.indexLocked(rec.ID); j >= 0 {
		rec = mergeRecord(r.rows[j], rec)
		r.rows = slices.Delete(r.rows, j, j+1)
	}

	if i := r.indexLocked(tempID); i >= 0 && r.rows[i].IsUploading {
		r.rows[i] = rec
	} else {
		r.rows = slices.Insert(r.rows, 0, rec)
	}

	r.confirmed[rec.ID] = r.gen
	delete(r.removed, rec.ID)

	r.syncPollingLocked()
	r.publishLocked()
}

// ApplyUploadError drops the placeholder of a failed upload.
func (r *Reconciler) ApplyUploadError(tempID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexLocked(tempID)
	if i < 0 || !r.rows[i].IsUploading {
		return
	}

	r.rows = slices.Delete(r.rows, i, i+1)
	r.publishLocked()
}

// ApplyPollResult applies status answers keyed by job id. Only forward
// transitions are applied; results for rows that no longer exist are ignored.
func (r *Reconciler) ApplyPollResult(results map[string]calls.TaskStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.applyPollLocked(results) {
		r.syncPollingLocked()
		r.publishLocked()
	}
}

func (r *Reconciler) applyPollLocked(results map[string]calls.TaskStatus) bool {
	changed := false

	for i, row := range r.rows {
		if row.IsUploading || row.JobID == "" {
			continue
		}

		next, ok := results[row.JobID]
		if !ok {
			continue
		}

		switch {
		case row.Status.CanAdvanceTo(next.Status):
			r.logger.Info("call status changed",
				"id", row.ID,
				"job_id", row.JobID,
				"from", row.Status,
				"to", next.Status)
			metrics.StatusTransitions.WithLabelValues(next.Status.String()).Inc()

			r.rows[i].Status = next.Status
			r.rows[i].StatusDetail = next.Detail
			changed = true
		case row.Status == next.Status && !row.Status.IsTerminal() && next.Detail != row.StatusDetail:
			r.rows[i].StatusDetail = next.Detail
			changed = true
		}
	}

	return changed
}

// SetStatusFilter changes the status filter and refetches. A nil status
// removes the filter.
func (r *Reconciler) SetStatusFilter(ctx context.Context, status *calls.Status) error {
	r.mu.Lock()
	r.query = r.query.WithStatus(status)
	r.mu.Unlock()

	return r.LoadInitial(ctx)
}

// SetSort changes the server-side ordering and refetches.
func (r *Reconciler) SetSort(ctx context.Context, field calls.SortField, order calls.SortOrder) error {
	r.mu.Lock()
	r.query.SortBy = field
	r.query.Order = order
	r.mu.Unlock()

	return r.LoadInitial(ctx)
}

// Remove drops a row after the server confirmed its deletion.
func (r *Reconciler) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removed[id] = r.gen
	delete(r.confirmed, id)

	i := r.indexLocked(id)
	if i < 0 {
		return
	}

	r.rows = slices.Delete(r.rows, i, i+1)
	r.syncPollingLocked()
	r.publishLocked()
}

// Rows returns a copy of the current rows.
func (r *Reconciler) Rows() []calls.Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.rows)
}

// Row returns the row with the given id.
func (r *Reconciler) Row(id string) (calls.Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.indexLocked(id); i >= 0 {
		return r.rows[i], true
	}

	return calls.Record{}, false
}

// Query returns the active filter and sort options.
func (r *Reconciler) Query() calls.Query {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.query.WithStatus(r.query.Status)
}

// Polling reports whether a poll loop is active.
func (r *Reconciler) Polling() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.loop != nil
}

// Err returns the error of the last list fetch, or nil if it succeeded.
func (r *Reconciler) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.err
}

// Snapshot returns the current state.
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

// Subscribe returns a channel receiving a snapshot after every change. Slow
// readers only see the latest one. The cancel func releases the channel.
func (r *Reconciler) Subscribe() (<-chan Snapshot, func()) {
	return r.updates.Subscribe()
}

// Close stops polling, waits for the poll loop to exit and closes every
// subscription. Polling never restarts after Close.
func (r *Reconciler) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	loop := r.loop
	r.stopLoopLocked()
	r.mu.Unlock()

	if loop != nil {
		<-loop.done
	}

	r.logger.Debug("closing snapshot subscriptions",
		"subscribers", r.updates.Len(),
		"dropped", r.updates.Dropped())
	r.updates.Close()
}

func (r *Reconciler) indexLocked(id string) int {
	return slices.IndexFunc(r.rows, func(row calls.Record) bool { return row.ID == id })
}

func (r *Reconciler) snapshotLocked() Snapshot {
	snap := Snapshot{
		Rows:    slices.Clone(r.rows),
		Query:   r.query.String(),
		Polling: r.loop != nil,
		Loading: r.loading,
		Err:     r.err,
		Version: r.version,
	}
	if r.err != nil {
		snap.Error = r.err.Error()
	}

	return snap
}

func (r *Reconciler) publishLocked() {
	r.version++

	pending := 0
	for _, row := range r.rows {
		if row.Pollable() {
			pending++
		}
	}
	metrics.PendingJobs.Set(float64(pending))

	r.updates.Publish(r.snapshotLocked())
}

// mergeRecord takes next as the new value of a row but keeps the status of
// prev when next would move it backwards.
func mergeRecord(prev, next calls.Record) calls.Record {
	switch {
	case prev.Status == next.Status:
		if next.StatusDetail == "" {
			next.StatusDetail = prev.StatusDetail
		}
	case !prev.Status.CanAdvanceTo(next.Status):
		next.Status = prev.Status
		next.StatusDetail = prev.StatusDetail
	}

	return next
}
