package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alkime/callboard/pkg/channels"
)

// Phase is the lifecycle position of the current source.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseLoading
	PhaseReady
	PhaseFallback
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseFallback:
		return "fallback"
	case PhaseError:
		return "error"
	default:
		return "uninitialized"
	}
}

// State is the playback state. Only the Adapter writes it.
type State struct {
	Phase       Phase
	Source      string
	CurrentTime float64
	Duration    float64
	Playing     bool
	Volume      float64
	// Err is set in PhaseError.
	Err error
}

// Ready reports whether controls are accepted.
func (s State) Ready() bool {
	return s.Phase == PhaseReady || s.Phase == PhaseFallback
}

// UsingFallback reports whether the fallback engine is active.
func (s State) UsingFallback() bool {
	return s.Phase == PhaseFallback
}

// Progress returns CurrentTime as a fraction of Duration.
func (s State) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}

	return clamp(s.CurrentTime/s.Duration, 0, 1)
}

// Config configures an Adapter.
type Config struct {
	// Volume is the initial volume, 0..1. Zero selects full volume.
	Volume float64
	Logger *slog.Logger
}

// Adapter owns at most one engine at a time. Every Load starts a new
// generation: the previous engine is torn down before the next one is
// created, and events or load results of an older generation are dropped.
type Adapter struct {
	primary  Factory
	fallback Factory
	logger   *slog.Logger
	updates  *channels.Broadcaster[State]

	mu      sync.Mutex
	state   State
	gen     uint64
	current *session
	pending *pendingLoad
	closed  bool
}

// pendingLoad is a Load still opening engines. abort cancels it and waits
// until every engine it created is either attached or closed.
type pendingLoad struct {
	cancel context.CancelFunc
	done   chan struct{}
}

func (p *pendingLoad) abort() {
	if p == nil {
		return
	}

	p.cancel()
	<-p.done
}

// session is an engine attached to one generation together with its event
// watcher.
type session struct {
	engine Engine
	stop   chan struct{}
	done   chan struct{}
}

// NewAdapter creates an Adapter that tries primary first and falls back to
// fallback when the primary engine can not load a source.
func NewAdapter(primary, fallback Factory, cfg Config) *Adapter {
	if cfg.Volume <= 0 {
		cfg.Volume = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Adapter{
		primary:  primary,
		fallback: fallback,
		logger:   cfg.Logger.With("component", "playback"),
		updates:  channels.NewBroadcaster[State](4),
		state:    State{Volume: clamp(cfg.Volume, 0, 1)},
	}
}

// Load replaces the current source with src. It returns ErrAudioUnavailable
// when neither engine can play it and ErrSuperseded when another Load or
// Unload happened meanwhile. A Load in progress is cancelled and its engines
// are closed before the next engine is created.
func (a *Adapter) Load(ctx context.Context, src Source) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	a.gen++
	gen := a.gen
	old, prev := a.current, a.pending
	a.current = nil
	op := &pendingLoad{cancel: cancel, done: make(chan struct{})}
	a.pending = op
	a.state = State{Phase: PhaseLoading, Source: src.URL, Volume: a.state.Volume}
	a.publishLocked()
	a.mu.Unlock()

	defer close(op.done)

	prev.abort()
	teardown(old)

	engine, duration, fallback, err := a.open(ctx, src)

	a.mu.Lock()
	if a.pending == op {
		a.pending = nil
	}
	if gen != a.gen {
		a.mu.Unlock()
		if engine != nil {
			_ = engine.Close()
		}
		return ErrSuperseded
	}
	defer a.mu.Unlock()

	if err != nil {
		a.logger.Warn("audio unavailable", "source", src.URL, "error", err)
		a.state.Phase = PhaseError
		a.state.Err = err
		a.publishLocked()

		return err
	}

	a.state.Phase = PhaseReady
	if fallback {
		a.state.Phase = PhaseFallback
	}
	a.state.Duration = duration
	a.state.CurrentTime = 0
	a.state.Playing = false

	if err := engine.SetVolume(a.state.Volume); err != nil {
		a.logger.Debug("engine rejected volume", "engine", engine.Name(), "error", err)
	}

	sess := &session{engine: engine, stop: make(chan struct{}), done: make(chan struct{})}
	a.current = sess
	go a.watch(gen, sess)

	a.logger.Info("audio loaded",
		"source", src.URL,
		"engine", engine.Name(),
		"duration", duration)
	a.publishLocked()

	return nil
}

// open loads src on a fresh primary engine, then on a fresh fallback engine.
func (a *Adapter) open(ctx context.Context, src Source) (Engine, float64, bool, error) {
	primary := a.primary()
	duration, perr := primary.Load(ctx, src)
	if perr == nil {
		return primary, duration, false, nil
	}
	_ = primary.Close()

	if err := ctx.Err(); err != nil {
		return nil, 0, false, err
	}

	a.logger.Info("primary engine failed, using fallback", "source", src.URL, "error", perr)

	fallback := a.fallback()
	duration, ferr := fallback.Load(ctx, src)
	if ferr == nil {
		return fallback, duration, true, nil
	}
	_ = fallback.Close()

	return nil, 0, false, fmt.Errorf("%w: %w", ErrAudioUnavailable, errors.Join(perr, ferr))
}

func (a *Adapter) watch(gen uint64, sess *session) {
	defer close(sess.done)

	events := sess.engine.Events()
	for {
		select {
		case <-sess.stop:
			return
		case ev := <-events:
			a.apply(gen, ev)
		}
	}
}

func (a *Adapter) apply(gen uint64, ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if gen != a.gen || !a.state.Ready() {
		return
	}

	a.state.CurrentTime = clamp(ev.Time, 0, a.state.Duration)
	a.state.Playing = ev.Playing && !ev.Ended
	a.publishLocked()
}

// teardown stops the watcher, waits for it and closes the engine.
func teardown(sess *session) {
	if sess == nil {
		return
	}

	close(sess.stop)
	<-sess.done
	_ = sess.engine.Close()
}

// readyEngine returns the active engine, or ErrNotReady.
func (a *Adapter) readyEngine() (Engine, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.state.Ready() || a.current == nil {
		return nil, ErrNotReady
	}

	return a.current.engine, nil
}

// SeekTo moves the playhead to seconds, clamped to the recording. The
// current time changes once the engine reports the new position.
func (a *Adapter) SeekTo(seconds float64) error {
	a.mu.Lock()
	if !a.state.Ready() || a.current == nil {
		a.mu.Unlock()
		return ErrNotReady
	}
	engine := a.current.engine
	seconds = clamp(seconds, 0, a.state.Duration)
	a.mu.Unlock()

	return engine.Seek(seconds)
}

// SeekBy moves the playhead relative to the current time.
func (a *Adapter) SeekBy(delta float64) error {
	return a.SeekTo(a.CurrentTime() + delta)
}

// Play starts playback. Playing again is a no-op.
func (a *Adapter) Play() error {
	engine, err := a.readyEngine()
	if err != nil {
		return err
	}

	if err := engine.Play(); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	a.setPlaying(engine, true)

	return nil
}

// Pause stops playback. Pausing again is a no-op.
func (a *Adapter) Pause() error {
	engine, err := a.readyEngine()
	if err != nil {
		return err
	}

	if err := engine.Pause(); err != nil {
		return fmt.Errorf("failed to pause: %w", err)
	}

	a.setPlaying(engine, false)

	return nil
}

// Toggle switches between playing and paused.
func (a *Adapter) Toggle() error {
	if a.State().Playing {
		return a.Pause()
	}

	return a.Play()
}

func (a *Adapter) setPlaying(engine Engine, playing bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.current == nil || a.current.engine != engine || a.state.Playing == playing {
		return
	}

	a.state.Playing = playing
	a.publishLocked()
}

// SetVolume sets the volume, clamped to 0..1. It is remembered across
// sources and applied to the engine when one is active.
func (a *Adapter) SetVolume(v float64) error {
	v = clamp(v, 0, 1)

	a.mu.Lock()
	a.state.Volume = v
	var engine Engine
	if a.state.Ready() && a.current != nil {
		engine = a.current.engine
	}
	a.publishLocked()
	a.mu.Unlock()

	if engine == nil {
		return nil
	}

	return engine.SetVolume(v)
}

// CurrentTime returns the last position reported by the engine.
func (a *Adapter) CurrentTime() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state.CurrentTime
}

// State returns a copy of the playback state.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.state
}

// Peaks returns n waveform buckets when the primary engine is active.
func (a *Adapter) Peaks(n int) []int16 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.Phase != PhaseReady || a.current == nil {
		return nil
	}

	ps, ok := a.current.engine.(PeakSource)
	if !ok {
		return nil
	}

	return ps.Peaks(n)
}

// Subscribe returns a channel receiving the state after every change. The
// cancel func releases it.
func (a *Adapter) Subscribe() (<-chan State, func()) {
	return a.updates.Subscribe()
}

// Unload tears down the current engine and returns to PhaseUninitialized.
// A Load in progress is cancelled and fails with ErrSuperseded; Unload
// returns once its engines are closed.
func (a *Adapter) Unload() {
	a.mu.Lock()
	a.gen++
	old, prev := a.current, a.pending
	a.current = nil
	a.pending = nil
	a.state = State{Volume: a.state.Volume}
	a.publishLocked()
	a.mu.Unlock()

	prev.abort()
	teardown(old)
}

// Close unloads and closes every subscription.
func (a *Adapter) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.mu.Unlock()

	a.Unload()
	a.updates.Close()
}

func (a *Adapter) publishLocked() {
	a.updates.Publish(a.state)
}
