package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alkime/callboard/pkg/collections"
	"github.com/gen2brain/malgo"
)

// ErrNotOpen is returned when a device is used before Open.
var ErrNotOpen = errors.New("playback device not open")

type Device interface {
	// EnumerateDevices lists available playback devices.
	// It ignores any device configuration passed in.
	EnumerateDevices(ctx context.Context) ([]Info, error)

	// Open initializes the underlying device to play pcm from its first
	// frame. The device stays stopped until Start is called.
	Open(ctx context.Context, pcm *PCM) error

	// Start starts the audio device.
	Start(ctx context.Context) error
	// Stop stops the audio device.
	// if the underlying device has already been deallocated this is a no-op.
	Stop(ctx context.Context) error

	// IsStarted returns whether the audio device is currently started.
	IsStarted() bool

	// Seek moves the playhead to frame.
	Seek(frame int)
	// Position returns the next frame to be played.
	Position() int
	// SetVolume scales output samples by v in 0..1.
	SetVolume(v float64)

	// Dealloc deallocates the underlying audio device and frees resources.
	Dealloc(ctx context.Context)
}

type device struct {
	conf *DeviceConfig

	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device

	mu     sync.Mutex
	pcm    *PCM
	pos    int
	volume float64
}

func NewDevice(conf *DeviceConfig) Device {
	return &device{conf: conf, volume: 1}
}

func (d *device) EnumerateDevices(ctx context.Context) ([]Info, error) {
	// Initialize an empty context. AFAICT this is fine for just
	// enumrating the available devices.
	devCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer uninitializeContext(devCtx)

	playbackDevices, err := devCtx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to get playback devices: %w", err)
	}

	return collections.Apply(playbackDevices, malgoDeviceInfoToDeviceInfo), nil
}

func (d *device) Open(ctx context.Context, pcm *PCM) error {
	if pcm == nil || pcm.Channels < 1 {
		return fmt.Errorf("no audio to play")
	}

	d.mu.Lock()
	d.pcm = pcm
	d.pos = 0
	d.mu.Unlock()

	var err error
	d.mgCtx, d.mgDevice, err = d.allocMGDevice(malgo.Playback)
	if err != nil {
		return fmt.Errorf("failed to create malgo playback device: %w", err)
	}

	return nil
}

func (d *device) Start(ctx context.Context) error {
	if d.mgDevice == nil {
		return ErrNotOpen
	}

	if d.mgDevice.IsStarted() {
		// noop
		return nil
	}

	err := d.mgDevice.Start()
	if err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

func (d *device) Stop(ctx context.Context) error {
	if d.mgDevice == nil || !d.mgDevice.IsStarted() {
		// noop
		return nil
	}

	if err := d.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	return nil
}

func (d *device) IsStarted() bool {
	if d.mgDevice == nil {
		return false
	}

	return d.mgDevice.IsStarted()
}

func (d *device) Seek(frame int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pcm == nil {
		return
	}

	d.pos = min(max(frame, 0), d.pcm.Frames())
}

func (d *device) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.pos
}

func (d *device) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.volume = min(max(v, 0), 1)
}

func (d *device) Dealloc(ctx context.Context) {
	d.deallocMGDevice()
}

// fill is the malgo data callback. It runs on the audio thread.
func (d *device) fill(out []byte, frameCount uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pcm == nil {
		clear(out)
		return
	}

	d.pos = d.pcm.Render(out, d.pos, int(frameCount), d.volume)
}

func (d *device) allocMGDevice(devType malgo.DeviceType) (*malgo.AllocatedContext, *malgo.Device, error) {
	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	var devCnf malgo.DeviceConfig
	var callBacks malgo.DeviceCallbacks

	switch devType { //nolint:exhaustive // Only Playback is supported; others handled by default
	case malgo.Playback:
		devCnf = malgo.DefaultDeviceConfig(malgo.Playback)
		devCnf.Playback.Format = d.conf.Format
		devCnf.Playback.Channels = uint32(d.conf.PlaybackChannels)
		devCnf.SampleRate = uint32(d.conf.SampleRate)

		callBacks = malgo.DeviceCallbacks{
			Data: func(out, _ []byte, framecount uint32) {
				d.fill(out, framecount)
			},
		}

	default:
		uninitializeContext(mgCtx)
		return nil, nil, fmt.Errorf("unsupported device type: %v", devType)
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callBacks)
	if err != nil {
		uninitializeContext(mgCtx)
		return nil, nil, fmt.Errorf("failed to initialize malgo device: %w", err)
	}

	return mgCtx, mgDevice, nil
}

func (d *device) deallocMGDevice() {
	if d.mgDevice == nil {
		return
	}

	d.mgDevice.Uninit()
	uninitializeContext(d.mgCtx)
	d.mgDevice = nil
	d.mgCtx = nil
}

type Info struct {
	Name        string
	IsDefault   bool
	FormatCount int
	Formats     []string
}

func malgoDeviceInfoToDeviceInfo(mdi malgo.DeviceInfo) Info {
	formats := make([]string, len(mdi.Formats))
	for i, mf := range mdi.Formats {
		formats[i] = fmt.Sprintf("(SampleSizeBytes: %d, Channels: %d, SampleRate: %d)",
			malgo.SampleSizeInBytes(mf.Format),
			mf.Channels, mf.SampleRate)
	}
	return Info{
		Name:        mdi.Name(),
		IsDefault:   mdi.IsDefault != 0,
		FormatCount: int(mdi.FormatCount),
		Formats:     formats,
	}
}

func uninitializeContext(deviceCtx *malgo.AllocatedContext) {
	if deviceCtx == nil {
		return
	}

	if err := deviceCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	deviceCtx.Free()
}
