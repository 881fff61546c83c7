package playback_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alkime/callboard/internal/playback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

// journal records engine lifecycle calls across engines in order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()

	return append([]string(nil), j.entries...)
}

type fakeEngine struct {
	name     string
	duration float64
	loadErr  error
	// gate, when set, blocks Load until closed.
	gate    chan struct{}
	journal *journal
	events  chan playback.Event

	mu      sync.Mutex
	seeks   []float64
	plays   int
	pauses  int
	volume  float64
	closed  int
	playing bool
}

func (f *fakeEngine) Name() string                  { return f.name }
func (f *fakeEngine) Events() <-chan playback.Event { return f.events }

func (f *fakeEngine) Load(ctx context.Context, src playback.Source) (float64, error) {
	f.journal.add("load %s %s", f.name, src.URL)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if f.loadErr != nil {
		return 0, f.loadErr
	}

	return f.duration, nil
}

func (f *fakeEngine) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.playing {
		f.plays++
	}
	f.playing = true
	return nil
}

func (f *fakeEngine) Pause() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playing {
		f.pauses++
	}
	f.playing = false
	return nil
}

func (f *fakeEngine) Seek(seconds float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seconds)
	return nil
}

func (f *fakeEngine) SetVolume(v float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
	return nil
}

func (f *fakeEngine) Close() error {
	f.journal.add("close %s", f.name)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeEngine) calls() (seeks []float64, plays, pauses int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]float64(nil), f.seeks...), f.plays, f.pauses
}

func (f *fakeEngine) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeEngine) lastSeek() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.seeks) == 0 {
		return -1
	}
	return f.seeks[len(f.seeks)-1]
}

type peakEngine struct {
	*fakeEngine
}

func (p peakEngine) Peaks(n int) []int16 {
	return make([]int16, n)
}

// rig builds engines on demand and remembers them.
type rig struct {
	journal *journal

	mu          sync.Mutex
	primaries   []*fakeEngine
	fallbacks   []*fakeEngine
	primaryErr  error
	fallbackErr error
	duration    float64
	gate        chan struct{}
}

func newRig() *rig {
	return &rig{journal: &journal{}, duration: 10}
}

func (r *rig) newEngine(kind string, err error) *fakeEngine {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.primaries) + len(r.fallbacks) + 1
	e := &fakeEngine{
		name:     fmt.Sprintf("%s%d", kind, n),
		duration: r.duration,
		loadErr:  err,
		gate:     r.gate,
		journal:  r.journal,
		events:   make(chan playback.Event, 8),
	}
	if kind == "primary" {
		r.primaries = append(r.primaries, e)
	} else {
		r.fallbacks = append(r.fallbacks, e)
	}

	return e
}

func (r *rig) adapter(t *testing.T) *playback.Adapter {
	t.Helper()

	a := playback.NewAdapter(
		func() playback.Engine {
			e := r.newEngine("primary", r.primaryErr)
			r.journal.add("new %s", e.name)
			return peakEngine{e}
		},
		func() playback.Engine {
			e := r.newEngine("fallback", r.fallbackErr)
			r.journal.add("new %s", e.name)
			return e
		},
		playback.Config{Volume: 0.8},
	)
	t.Cleanup(a.Close)

	return a
}

// setGate makes engines created from now on block in Load until gate is
// closed. nil lets them load right away.
func (r *rig) setGate(gate chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gate = gate
}

func (r *rig) primary(i int) *fakeEngine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.primaries[i]
}

func (r *rig) fallback(i int) *fakeEngine {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fallbacks[i]
}

var src = playback.Source{URL: "https://cdn/a.wav", DurationHint: 10}

func TestControlsBeforeLoad(t *testing.T) {
	a := newRig().adapter(t)

	assert.Equal(t, playback.PhaseUninitialized, a.State().Phase)
	assert.ErrorIs(t, a.SeekTo(3), playback.ErrNotReady)
	assert.ErrorIs(t, a.Play(), playback.ErrNotReady)
	assert.ErrorIs(t, a.Pause(), playback.ErrNotReady)
	assert.Nil(t, a.Peaks(10))
}

func TestLoadPrimary(t *testing.T) {
	r := newRig()
	a := r.adapter(t)

	require.NoError(t, a.Load(context.Background(), src))

	st := a.State()
	assert.Equal(t, playback.PhaseReady, st.Phase)
	assert.True(t, st.Ready())
	assert.False(t, st.UsingFallback())
	assert.InDelta(t, 10, st.Duration, 1e-9)
	assert.Len(t, a.Peaks(32), 32)
	assert.InDelta(t, 0.8, r.primary(0).volume, 1e-9, "volume is applied on attach")
	assert.Empty(t, r.fallbacks)
}

func TestLoadFallsBack(t *testing.T) {
	r := newRig()
	r.primaryErr = errors.New("not a wav")
	a := r.adapter(t)

	require.NoError(t, a.Load(context.Background(), src))

	st := a.State()
	assert.Equal(t, playback.PhaseFallback, st.Phase)
	assert.True(t, st.Ready())
	assert.True(t, st.UsingFallback())
	assert.Nil(t, a.Peaks(32), "no waveform from the fallback engine")

	assert.Equal(t, 1, r.primary(0).closed, "failed primary is released")
	assert.Equal(t, []string{
		"new primary1",
		"load primary1 https://cdn/a.wav",
		"close primary1",
		"new fallback2",
		"load fallback2 https://cdn/a.wav",
	}, r.journal.all(), "fallback loads the same source")
}

func TestControlsDriveFallbackEngine(t *testing.T) {
	r := newRig()
	r.primaryErr = errors.New("not a wav")
	a := r.adapter(t)
	require.NoError(t, a.Load(context.Background(), src))
	require.Equal(t, playback.PhaseFallback, a.State().Phase)
	fb := r.fallback(0)

	require.NoError(t, a.SeekTo(4))
	require.NoError(t, a.Play())
	assert.True(t, a.State().Playing)
	require.NoError(t, a.Pause())
	assert.False(t, a.State().Playing)
	require.NoError(t, a.Play())

	seeks, plays, pauses := fb.calls()
	assert.Equal(t, []float64{4}, seeks)
	assert.Equal(t, 2, plays)
	assert.Equal(t, 1, pauses)

	assert.InDelta(t, 0, a.CurrentTime(), 1e-9, "time waits for the engine")
	fb.events <- playback.Event{Time: 4, Playing: true}
	require.Eventually(t, func() bool { return a.CurrentTime() == 4 }, waitFor, time.Millisecond)

	require.NoError(t, a.SeekBy(1))
	seeks, _, _ = fb.calls()
	assert.Equal(t, []float64{4, 5}, seeks)

	seeks, plays, pauses = r.primary(0).calls()
	assert.Empty(t, seeks, "primary engine is never driven")
	assert.Zero(t, plays)
	assert.Zero(t, pauses)
}

func TestLoadBothFail(t *testing.T) {
	r := newRig()
	r.primaryErr = errors.New("not a wav")
	r.fallbackErr = errors.New("404")
	a := r.adapter(t)

	err := a.Load(context.Background(), src)
	require.ErrorIs(t, err, playback.ErrAudioUnavailable)

	st := a.State()
	assert.Equal(t, playback.PhaseError, st.Phase)
	assert.ErrorIs(t, st.Err, playback.ErrAudioUnavailable)
	assert.False(t, st.Ready())
	assert.ErrorIs(t, a.SeekTo(1), playback.ErrNotReady)
	assert.Equal(t, 1, r.fallback(0).closed)
}

func TestSeekClampsAndTimeComesFromEvents(t *testing.T) {
	r := newRig()
	a := r.adapter(t)
	require.NoError(t, a.Load(context.Background(), src))
	eng := r.primary(0)

	require.NoError(t, a.SeekTo(42))
	assert.InDelta(t, 10, eng.lastSeek(), 1e-9)

	require.NoError(t, a.SeekTo(-3))
	assert.InDelta(t, 0, eng.lastSeek(), 1e-9)

	require.NoError(t, a.SeekTo(4.5))
	assert.InDelta(t, 4.5, eng.lastSeek(), 1e-9)
	assert.InDelta(t, 0, a.CurrentTime(), 1e-9, "seek does not set the time itself")

	eng.events <- playback.Event{Time: 4.5}
	require.Eventually(t, func() bool { return a.CurrentTime() == 4.5 }, waitFor, time.Millisecond)

	require.NoError(t, a.SeekBy(2))
	assert.InDelta(t, 6.5, eng.lastSeek(), 1e-9)
}

func TestPlayPauseAreIdempotent(t *testing.T) {
	r := newRig()
	a := r.adapter(t)
	require.NoError(t, a.Load(context.Background(), src))
	eng := r.primary(0)

	require.NoError(t, a.Play())
	require.NoError(t, a.Play())
	assert.True(t, a.State().Playing)

	require.NoError(t, a.Pause())
	require.NoError(t, a.Pause())
	assert.False(t, a.State().Playing)

	require.NoError(t, a.Toggle())
	assert.True(t, a.State().Playing)

	assert.Equal(t, 2, eng.plays)
	assert.Equal(t, 1, eng.pauses)
}

func TestEndedEventStopsPlaying(t *testing.T) {
	r := newRig()
	a := r.adapter(t)
	require.NoError(t, a.Load(context.Background(), src))
	require.NoError(t, a.Play())

	r.primary(0).events <- playback.Event{Time: 10, Ended: true}

	require.Eventually(t, func() bool {
		st := a.State()
		return !st.Playing && st.CurrentTime == 10
	}, waitFor, time.Millisecond)
	assert.InDelta(t, 1, a.State().Progress(), 1e-9)
}

func TestSourceChangeTearsDownFirst(t *testing.T) {
	r := newRig()
	a := r.adapter(t)

	require.NoError(t, a.Load(context.Background(), src))
	first := r.primary(0)

	require.NoError(t, a.Load(context.Background(), playback.Source{URL: "https://cdn/b.wav"}))

	assert.Equal(t, 1, first.closed)
	assert.Equal(t, []string{
		"new primary1",
		"load primary1 https://cdn/a.wav",
		"close primary1",
		"new primary2",
		"load primary2 https://cdn/b.wav",
	}, r.journal.all())

	first.events <- playback.Event{Time: 7}
	assert.Never(t, func() bool { return a.CurrentTime() != 0 }, 30*time.Millisecond, time.Millisecond,
		"events from a torn down engine are ignored")

	a.Unload()
	assert.Equal(t, 1, r.primary(1).closed)
	assert.Equal(t, playback.PhaseUninitialized, a.State().Phase)
	assert.InDelta(t, 0.8, a.State().Volume, 1e-9, "volume survives unload")
}

func TestSupersededLoad(t *testing.T) {
	r := newRig()
	r.setGate(make(chan struct{}))
	a := r.adapter(t)

	states, cancel := a.Subscribe()
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- a.Load(context.Background(), src) }()

	require.Eventually(t, func() bool { return len(r.journal.all()) == 2 }, waitFor, time.Millisecond)
	a.Unload()

	assert.Equal(t, 1, r.primary(0).closeCount(), "Unload returns after the loading engine is released")
	require.ErrorIs(t, <-done, playback.ErrSuperseded)
	assert.Equal(t, playback.PhaseUninitialized, a.State().Phase)
	assert.Empty(t, r.fallbacks, "a cancelled load does not try the fallback")

	var phases []playback.Phase
	for _, st := range drain(states) {
		phases = append(phases, st.Phase)
	}
	assert.Contains(t, phases, playback.PhaseUninitialized)
}

func TestLoadDuringLoadClosesFirst(t *testing.T) {
	r := newRig()
	r.setGate(make(chan struct{}))
	a := r.adapter(t)

	first := make(chan error, 1)
	go func() { first <- a.Load(context.Background(), src) }()
	require.Eventually(t, func() bool { return len(r.journal.all()) == 2 }, waitFor, time.Millisecond)

	r.setGate(nil)
	require.NoError(t, a.Load(context.Background(), playback.Source{URL: "https://cdn/b.wav"}))
	require.ErrorIs(t, <-first, playback.ErrSuperseded)

	assert.Equal(t, []string{
		"new primary1",
		"load primary1 https://cdn/a.wav",
		"close primary1",
		"new primary2",
		"load primary2 https://cdn/b.wav",
	}, r.journal.all())
	assert.Equal(t, "https://cdn/b.wav", a.State().Source)
	assert.Equal(t, playback.PhaseReady, a.State().Phase)
}

func TestCloseWaitsForLoad(t *testing.T) {
	r := newRig()
	r.setGate(make(chan struct{}))
	a := r.adapter(t)

	done := make(chan error, 1)
	go func() { done <- a.Load(context.Background(), src) }()
	require.Eventually(t, func() bool { return len(r.journal.all()) == 2 }, waitFor, time.Millisecond)

	a.Close()

	assert.Equal(t, 1, r.primary(0).closeCount(), "no engine outlives Close")
	require.ErrorIs(t, <-done, playback.ErrSuperseded)
	assert.Empty(t, r.fallbacks)
}

// drain collects what is buffered on ch.
func drain[T any](ch <-chan T) []T {
	var out []T
	for {
		select {
		case v, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, v)
		case <-time.After(10 * time.Millisecond):
			return out
		}
	}
}

func TestVolume(t *testing.T) {
	r := newRig()
	a := r.adapter(t)

	require.NoError(t, a.SetVolume(2))
	assert.InDelta(t, 1, a.State().Volume, 1e-9)

	require.NoError(t, a.SetVolume(0.25))
	require.NoError(t, a.Load(context.Background(), src))
	assert.InDelta(t, 0.25, r.primary(0).volume, 1e-9)

	require.NoError(t, a.SetVolume(-1))
	assert.InDelta(t, 0, r.primary(0).volume, 1e-9)
}

func TestClose(t *testing.T) {
	r := newRig()
	a := r.adapter(t)
	require.NoError(t, a.Load(context.Background(), src))

	states, _ := a.Subscribe()
	a.Close()

	assert.Equal(t, 1, r.primary(0).closed)
	require.ErrorIs(t, a.Load(context.Background(), src), playback.ErrClosed)

	for range states {
	}
}
