package playback

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/alkime/callboard/internal/audio"
)

// DeviceFactory allocates a playback device for the given configuration.
type DeviceFactory func(conf audio.DeviceConfig) audio.Device

// DeviceConfig configures a DeviceEngine.
type DeviceConfig struct {
	HTTPClient *http.Client
	NewDevice  DeviceFactory
	// MaxBytes caps the downloaded recording size. Zero means no limit.
	MaxBytes int64
	Tick     time.Duration
	Ticker   TickerFunc
}

// DeviceEngine is the primary player. It downloads the recording, decodes
// it to PCM for waveform peaks and plays it through the sound card.
type DeviceEngine struct {
	client    *http.Client
	newDevice DeviceFactory
	maxBytes  int64
	tick      time.Duration
	ticker    TickerFunc
	events    chan Event

	mu      sync.Mutex
	pcm     *audio.PCM
	dev     audio.Device
	playing bool
	closed  bool
	stop    chan struct{}
	done    chan struct{}
}

// NewDeviceEngine creates a DeviceEngine.
func NewDeviceEngine(cfg DeviceConfig) *DeviceEngine {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	if cfg.NewDevice == nil {
		cfg.NewDevice = func(conf audio.DeviceConfig) audio.Device {
			return audio.NewDevice(&conf)
		}
	}
	if cfg.Tick <= 0 {
		cfg.Tick = 100 * time.Millisecond
	}
	if cfg.Ticker == nil {
		cfg.Ticker = defaultTicker
	}

	return &DeviceEngine{
		client:    cfg.HTTPClient,
		newDevice: cfg.NewDevice,
		maxBytes:  cfg.MaxBytes,
		tick:      cfg.Tick,
		ticker:    cfg.Ticker,
		events:    make(chan Event, 8),
	}
}

func (e *DeviceEngine) Name() string { return "device" }

func (e *DeviceEngine) Events() <-chan Event { return e.events }

// Load downloads and decodes src. WAV, MP3 and Ogg Vorbis are supported;
// anything else fails so the caller can fall back.
func (e *DeviceEngine) Load(ctx context.Context, src Source) (float64, error) {
	pcm, err := e.download(ctx, src.URL)
	if err != nil {
		return 0, err
	}
	if pcm.Frames() == 0 {
		return 0, fmt.Errorf("recording is empty")
	}

	dev := e.newDevice(audio.ConfigFor(pcm))
	if err := dev.Open(ctx, pcm); err != nil {
		dev.Dealloc(ctx)
		return 0, fmt.Errorf("failed to open playback device: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		dev.Dealloc(ctx)
		return 0, ErrClosed
	}

	e.pcm = pcm
	e.dev = dev
	e.stop = make(chan struct{})
	e.done = make(chan struct{})

	tick, stopTicker := e.ticker(e.tick)
	go e.run(tick, stopTicker, e.stop, e.done)

	return pcm.Seconds(), nil
}

func (e *DeviceEngine) download(ctx context.Context, url string) (*audio.PCM, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid audio URL: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("failed to download recording: HTTP %d", resp.StatusCode)
	}

	if e.maxBytes > 0 && resp.ContentLength > e.maxBytes {
		return nil, fmt.Errorf("recording is %d bytes, limit %d", resp.ContentLength, e.maxBytes)
	}

	var body io.Reader = resp.Body
	if e.maxBytes > 0 {
		body = io.LimitReader(resp.Body, e.maxBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to download recording: %w", err)
	}
	if e.maxBytes > 0 && int64(len(data)) > e.maxBytes {
		return nil, fmt.Errorf("recording exceeds %d bytes", e.maxBytes)
	}

	pcm, err := audio.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode recording: %w", err)
	}

	return pcm, nil
}

func (e *DeviceEngine) run(tick <-chan time.Time, stopTicker func(), stop, done chan struct{}) {
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

func (e *DeviceEngine) onTick() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.playing {
		return
	}

	pos := e.dev.Position()
	if pos >= e.pcm.Frames() {
		_ = e.dev.Stop(context.Background())
		e.playing = false
		emit(e.events, Event{Time: e.pcm.Seconds(), Ended: true})

		return
	}

	emit(e.events, Event{Time: e.secondsLocked(pos), Playing: true})
}

func (e *DeviceEngine) secondsLocked(frame int) float64 {
	return float64(frame) / float64(e.pcm.SampleRate)
}

func (e *DeviceEngine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dev == nil || e.closed {
		return ErrNotReady
	}
	if e.playing {
		return nil
	}

	if e.dev.Position() >= e.pcm.Frames() {
		e.dev.Seek(0)
	}
	if err := e.dev.Start(context.Background()); err != nil {
		return err
	}
	e.playing = true
	emit(e.events, Event{Time: e.secondsLocked(e.dev.Position()), Playing: true})

	return nil
}

func (e *DeviceEngine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dev == nil || e.closed {
		return ErrNotReady
	}
	if !e.playing {
		return nil
	}

	if err := e.dev.Stop(context.Background()); err != nil {
		return err
	}
	e.playing = false
	emit(e.events, Event{Time: e.secondsLocked(e.dev.Position())})

	return nil
}

func (e *DeviceEngine) Seek(seconds float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dev == nil || e.closed {
		return ErrNotReady
	}

	seconds = clamp(seconds, 0, e.pcm.Seconds())
	e.dev.Seek(int(seconds * float64(e.pcm.SampleRate)))
	emit(e.events, Event{Time: e.secondsLocked(e.dev.Position()), Playing: e.playing})

	return nil
}

func (e *DeviceEngine) SetVolume(v float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.dev == nil || e.closed {
		return ErrNotReady
	}

	e.dev.SetVolume(clamp(v, 0, 1))

	return nil
}

// Peaks returns n waveform buckets of the loaded recording.
func (e *DeviceEngine) Peaks(n int) []int16 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pcm == nil {
		return nil
	}

	return e.pcm.Peaks(n)
}

// Close stops the ticker and releases the device.
func (e *DeviceEngine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.playing = false
	stop, done, dev := e.stop, e.done, e.dev
	e.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}

	if dev != nil {
		if dev.IsStarted() {
			_ = dev.Stop(context.Background())
		}
		dev.Dealloc(context.Background())
	}

	return nil
}
