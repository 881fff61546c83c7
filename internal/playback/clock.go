package playback

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// ClockConfig configures a ClockEngine.
type ClockConfig struct {
	HTTPClient *http.Client
	// Tick is the period of time updates while loaded.
	Tick   time.Duration
	Ticker TickerFunc
	Now    func() time.Time
}

// ClockEngine is the fallback player. It confirms the source is reachable
// and then advances a virtual playhead in real time, which lets the
// transcript follow along when the recording can not be decoded locally.
type ClockEngine struct {
	client *http.Client
	tick   time.Duration
	ticker TickerFunc
	now    func() time.Time
	events chan Event

	mu       sync.Mutex
	duration float64
	base     float64
	anchor   time.Time
	playing  bool
	loaded   bool
	closed   bool
	stop     chan struct{}
	done     chan struct{}
}

// NewClockEngine creates a ClockEngine.
func NewClockEngine(cfg ClockConfig) *ClockEngine {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.Ticker == nil {
		cfg.Ticker = defaultTicker
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &ClockEngine{
		client: cfg.HTTPClient,
		tick:   cfg.Tick,
		ticker: cfg.Ticker,
		now:    cfg.Now,
		events: make(chan Event, 8),
	}
}

func (e *ClockEngine) Name() string { return "clock" }

func (e *ClockEngine) Events() <-chan Event { return e.events }

// Load checks the URL answers a HEAD request and takes the duration from
// src.DurationHint.
func (e *ClockEngine) Load(ctx context.Context, src Source) (float64, error) {
	if src.DurationHint <= 0 {
		return 0, ErrUnknownDuration
	}

	if err := e.probe(ctx, src.URL); err != nil {
		return 0, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return 0, ErrClosed
	}

	e.duration = src.DurationHint
	e.loaded = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})

	tick, stopTicker := e.ticker(e.tick)
	go e.run(tick, stopTicker, e.stop, e.done)

	return e.duration, nil
}

func (e *ClockEngine) probe(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return fmt.Errorf("invalid audio URL: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("audio source unreachable: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("audio source returned HTTP %d", resp.StatusCode)
	}

	return nil
}

func (e *ClockEngine) run(tick <-chan time.Time, stopTicker func(), stop, done chan struct{}) {
	defer close(done)
	defer stopTicker()

	for {
		select {
		case <-stop:
			return
		case <-tick:
			e.onTick()
		}
	}
}

func (e *ClockEngine) onTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.playing {
		return
	}

	pos := e.positionLocked()
	if pos >= e.duration {
		e.base = e.duration
		e.playing = false
		emit(e.events, Event{Time: e.duration, Ended: true})

		return
	}

	emit(e.events, Event{Time: pos, Playing: true})
}

func (e *ClockEngine) positionLocked() float64 {
	if !e.playing {
		return e.base
	}

	return min(e.base+e.now().Sub(e.anchor).Seconds(), e.duration)
}

func (e *ClockEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded || e.closed {
		return ErrNotReady
	}
	if e.playing {
		return nil
	}

	if e.base >= e.duration {
		e.base = 0
	}
	e.anchor = e.now()
	e.playing = true
	emit(e.events, Event{Time: e.base, Playing: true})

	return nil
}

func (e *ClockEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded || e.closed {
		return ErrNotReady
	}
	if !e.playing {
		return nil
	}

	e.base = e.positionLocked()
	e.playing = false
	emit(e.events, Event{Time: e.base})

	return nil
}

func (e *ClockEngine) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.loaded || e.closed {
		return ErrNotReady
	}

	e.base = clamp(seconds, 0, e.duration)
	e.anchor = e.now()
	emit(e.events, Event{Time: e.base, Playing: e.playing})

	return nil
}

// SetVolume is accepted and ignored; the clock produces no sound.
func (e *ClockEngine) SetVolume(float64) error { return nil }

func (e *ClockEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.playing = false
	stop, done := e.stop, e.done
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	return nil
}
