package poller_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/poller"
	"github.com/alkime/callboard/internal/stt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu       sync.Mutex
	answers  map[string]calls.TaskStatus
	errs     map[string]error
	hits     map[string]int
	delay    time.Duration
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		answers: map[string]calls.TaskStatus{},
		errs:    map[string]error{},
		hits:    map[string]int{},
	}
}

func (f *fakeSource) TaskStatus(ctx context.Context, id string) (calls.TaskStatus, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return calls.TaskStatus{}, &stt.TransportError{Op: "task status", Err: ctx.Err()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.hits[id]++
	if err, ok := f.errs[id]; ok {
		return calls.TaskStatus{}, err
	}

	return f.answers[id], nil
}

func transportErr() error {
	return &stt.TransportError{Op: "task status", Err: errors.New("connection refused")}
}

func TestPollMixedOutcomes(t *testing.T) {
	src := newFakeSource()
	src.answers["a"] = calls.TaskStatus{Status: calls.StatusRunning, Detail: "Transcribing"}
	src.answers["b"] = calls.TaskStatus{Status: calls.StatusSuccess}
	src.errs["c"] = transportErr()
	src.errs["d"] = &stt.APIError{Op: "task status", StatusCode: 500}
	src.errs["e"] = calls.ErrUnknownStatus

	p := poller.New(src, 2, nil)

	got, err := p.Poll(context.Background(), []string{"a", "b", "c", "d", "e", "a", ""})
	require.NoError(t, err)

	assert.Equal(t, map[string]calls.TaskStatus{
		"a": {Status: calls.StatusRunning, Detail: "Transcribing"},
		"b": {Status: calls.StatusSuccess},
	}, got)
	assert.Equal(t, 1, src.hits["a"], "duplicate ids are queried once")
}

func TestPollEmpty(t *testing.T) {
	p := poller.New(newFakeSource(), 4, nil)

	got, err := p.Poll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPollAllTransportFailures(t *testing.T) {
	src := newFakeSource()
	src.errs["a"] = transportErr()
	src.errs["b"] = transportErr()

	_, err := poller.New(src, 4, nil).Poll(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, poller.ErrTransportUnavailable)
}

func TestPollAllRejectedIsNotAnError(t *testing.T) {
	src := newFakeSource()
	src.errs["a"] = &stt.APIError{Op: "task status", StatusCode: 404}

	got, err := poller.New(src, 4, nil).Poll(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPollRespectsConcurrencyLimit(t *testing.T) {
	src := newFakeSource()
	src.delay = 20 * time.Millisecond

	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	for _, id := range ids {
		src.answers[id] = calls.TaskStatus{Status: calls.StatusPending}
	}

	got, err := poller.New(src, 3, nil).Poll(context.Background(), ids)
	require.NoError(t, err)
	assert.Len(t, got, len(ids))
	assert.LessOrEqual(t, src.peak.Load(), int32(3))
}

func TestPollCancelled(t *testing.T) {
	src := newFakeSource()
	src.delay = time.Second
	src.answers["a"] = calls.TaskStatus{Status: calls.StatusRunning}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := poller.New(src, 1, nil).Poll(ctx, []string{"a"})
	require.ErrorIs(t, err, context.Canceled)
}
