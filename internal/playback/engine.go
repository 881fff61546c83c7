// Package playback puts a waveform-capable primary player and a basic
// fallback player behind a single seek/play/pause/volume contract.
package playback

import (
	"context"
	"errors"
	"time"

	"github.com/alkime/callboard/pkg/channels"
)

var (
	// ErrNotReady is returned by controls used before a source is loaded.
	ErrNotReady = errors.New("playback not ready")
	// ErrAudioUnavailable is returned when no engine could load the source.
	ErrAudioUnavailable = errors.New("audio unavailable")
	// ErrSuperseded is returned by a Load that was overtaken by a newer
	// Load or Unload.
	ErrSuperseded = errors.New("load superseded")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("player closed")
	// ErrUnknownDuration is returned by engines that need a duration hint
	// and did not get one.
	ErrUnknownDuration = errors.New("recording duration unknown")
)

// Source identifies a recording to play.
type Source struct {
	URL string
	// DurationHint is the duration known from the call record, in seconds.
	// Zero means unknown.
	DurationHint float64
}

// Event is a notification from an engine.
type Event struct {
	// Time is the playhead position in seconds.
	Time    float64
	Playing bool
	// Ended is set once when playback reaches the end.
	Ended bool
}

// Engine plays one source. An engine is used for a single Load and then
// closed; a new source always gets a new engine.
type Engine interface {
	Name() string
	// Load prepares src and returns its duration in seconds.
	Load(ctx context.Context, src Source) (float64, error)
	Play() error
	Pause() error
	Seek(seconds float64) error
	SetVolume(v float64) error
	// Events delivers time updates. Engines never block sending to it and
	// never close it.
	Events() <-chan Event
	Close() error
}

// PeakSource is implemented by engines that can draw a waveform.
type PeakSource interface {
	Peaks(n int) []int16
}

// Factory builds a fresh engine.
type Factory func() Engine

// TickerFunc starts a periodic tick and returns its channel and a stop func.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func defaultTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// emit delivers ev without blocking. When the buffer is full the oldest
// queued event is dropped.
func emit(ch chan Event, ev Event) {
	channels.SendLatest(ch, ev)
}

func clamp(v, lo, hi float64) float64 {
	return min(max(v, lo), hi)
}
