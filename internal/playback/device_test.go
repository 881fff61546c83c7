package playback_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/alkime/callboard/internal/audio"
	"github.com/alkime/callboard/internal/playback"
	mp3encoder "github.com/braheezy/shine-mp3/pkg/mp3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDevice is an audio.Device whose playhead only moves when told to.
type fakeDevice struct {
	mu        sync.Mutex
	conf      audio.DeviceConfig
	pcm       *audio.PCM
	pos       int
	volume    float64
	started   bool
	openErr   error
	dealloced int
}

func (d *fakeDevice) EnumerateDevices(context.Context) ([]audio.Info, error) {
	return []audio.Info{{Name: "fake", IsDefault: true}}, nil
}

func (d *fakeDevice) Open(_ context.Context, pcm *audio.PCM) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return d.openErr
	}
	d.pcm = pcm
	return nil
}

func (d *fakeDevice) Start(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = true
	return nil
}

func (d *fakeDevice) Stop(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = false
	return nil
}

func (d *fakeDevice) IsStarted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.started
}

func (d *fakeDevice) Seek(frame int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pos = min(max(frame, 0), d.pcm.Frames())
}

func (d *fakeDevice) Position() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pos
}

func (d *fakeDevice) SetVolume(v float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.volume = v
}

func (d *fakeDevice) Dealloc(context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dealloced++
}

// wavBytes encodes mono 16-bit PCM at rate.
func wavBytes(samples []int16, rate int) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, le, uint32(36+len(samples)*2))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, le, uint32(16))
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, uint16(1))
	_ = binary.Write(&buf, le, uint32(rate))
	_ = binary.Write(&buf, le, uint32(rate*2))
	_ = binary.Write(&buf, le, uint16(2))
	_ = binary.Write(&buf, le, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(&buf, le, uint32(len(samples)*2))
	_ = binary.Write(&buf, le, samples)

	return buf.Bytes()
}

func serveBytes(t *testing.T, body []byte, status int) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func newDeviceEngine(t *testing.T, dev *fakeDevice, maxBytes int64) (*playback.DeviceEngine, *manualTicker) {
	t.Helper()

	ticker := newManualTicker()
	e := playback.NewDeviceEngine(playback.DeviceConfig{
		NewDevice: func(conf audio.DeviceConfig) audio.Device {
			dev.conf = conf
			return dev
		},
		MaxBytes: maxBytes,
		Ticker:   ticker.Func,
	})
	t.Cleanup(func() { _ = e.Close() })

	return e, ticker
}

// tenSeconds is 10s of mono audio at 100Hz with a loud middle.
func tenSeconds() []int16 {
	samples := make([]int16, 1000)
	for i := 400; i < 600; i++ {
		samples[i] = 20000
	}
	return samples
}

func TestDeviceEngineLoad(t *testing.T) {
	srv := serveBytes(t, wavBytes(tenSeconds(), 100), http.StatusOK)
	dev := &fakeDevice{}
	e, _ := newDeviceEngine(t, dev, 0)

	d, err := e.Load(context.Background(), playback.Source{URL: srv.URL})
	require.NoError(t, err)
	assert.InDelta(t, 10, d, 1e-9)
	assert.Equal(t, 100, dev.conf.SampleRate)
	assert.Equal(t, 1, dev.conf.PlaybackChannels)

	peaks := e.Peaks(10)
	require.Len(t, peaks, 10)
	assert.Equal(t, int16(0), peaks[0])
	assert.Equal(t, int16(20000), peaks[5])
}

// toneMP3 encodes two seconds of a stereo 440Hz tone at 44.1kHz.
func toneMP3(t *testing.T) []byte {
	t.Helper()

	const rate = 44100
	samples := make([]int16, 2*rate*2)
	for i := range 2 * rate {
		v := int16(12000 * math.Sin(2*math.Pi*440*float64(i)/rate))
		samples[i*2] = v
		samples[i*2+1] = v
	}

	var buf bytes.Buffer
	require.NoError(t, mp3encoder.NewEncoder(rate, 2).Write(&buf, samples))

	return buf.Bytes()
}

func TestDeviceEngineLoadsMP3(t *testing.T) {
	srv := serveBytes(t, toneMP3(t), http.StatusOK)
	dev := &fakeDevice{}
	e, _ := newDeviceEngine(t, dev, 0)

	d, err := e.Load(context.Background(), playback.Source{URL: srv.URL})
	require.NoError(t, err)
	assert.InDelta(t, 2, d, 0.15)
	assert.Equal(t, 44100, dev.conf.SampleRate)
	assert.Equal(t, 2, dev.conf.PlaybackChannels)

	peaks := e.Peaks(8)
	require.Len(t, peaks, 8)
	assert.Greater(t, peaks[4], int16(6000))

	require.NoError(t, e.Play())
	assert.True(t, dev.IsStarted())
}

func TestDeviceEngineRejects(t *testing.T) {
	tests := []struct {
		name     string
		body     []byte
		status   int
		maxBytes int64
	}{
		{name: "broken mp3", body: []byte("ID3\x04 an mp3 file"), status: http.StatusOK},
		{name: "broken ogg", body: brokenOgg(), status: http.StatusOK},
		{name: "not audio", body: []byte("<html><body>login</body></html>"), status: http.StatusOK},
		{name: "http error", body: nil, status: http.StatusForbidden},
		{name: "too large", body: wavBytes(tenSeconds(), 100), status: http.StatusOK, maxBytes: 100},
		{name: "empty recording", body: wavBytes(nil, 100), status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serveBytes(t, tt.body, tt.status)
			dev := &fakeDevice{}
			e, _ := newDeviceEngine(t, dev, tt.maxBytes)

			_, err := e.Load(context.Background(), playback.Source{URL: srv.URL})
			require.Error(t, err)
			assert.Nil(t, e.Peaks(4))
			assert.ErrorIs(t, e.Play(), playback.ErrNotReady)
		})
	}
}

// brokenOgg announces a Vorbis stream that is not there.
func brokenOgg() []byte {
	b := make([]byte, 64)
	copy(b, "OggS\x00")
	copy(b[28:], "\x01vorbis")
	return b
}

func TestDeviceEngineControls(t *testing.T) {
	srv := serveBytes(t, wavBytes(tenSeconds(), 100), http.StatusOK)
	dev := &fakeDevice{}
	e, ticker := newDeviceEngine(t, dev, 0)

	_, err := e.Load(context.Background(), playback.Source{URL: srv.URL})
	require.NoError(t, err)

	require.NoError(t, e.Seek(2.5))
	assert.Equal(t, 250, dev.Position())
	assert.Equal(t, playback.Event{Time: 2.5}, nextEvent(t, e))

	require.NoError(t, e.Play())
	assert.True(t, dev.IsStarted())
	assert.Equal(t, playback.Event{Time: 2.5, Playing: true}, nextEvent(t, e))

	dev.Seek(400)
	ticker.Tick(t)
	assert.Equal(t, playback.Event{Time: 4, Playing: true}, nextEvent(t, e))

	require.NoError(t, e.SetVolume(3))
	assert.InDelta(t, 1, dev.volume, 1e-9)

	require.NoError(t, e.Pause())
	assert.False(t, dev.IsStarted())
	assert.Equal(t, playback.Event{Time: 4}, nextEvent(t, e))

	require.NoError(t, e.Play())
	nextEvent(t, e)
	dev.Seek(1000)
	ticker.Tick(t)
	assert.Equal(t, playback.Event{Time: 10, Ended: true}, nextEvent(t, e))
	assert.False(t, dev.IsStarted())
}

func TestDeviceEngineCloseDeallocs(t *testing.T) {
	srv := serveBytes(t, wavBytes(tenSeconds(), 100), http.StatusOK)
	dev := &fakeDevice{}
	e, ticker := newDeviceEngine(t, dev, 0)

	_, err := e.Load(context.Background(), playback.Source{URL: srv.URL})
	require.NoError(t, err)
	require.NoError(t, e.Play())

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	assert.Equal(t, 1, dev.dealloced)
	assert.False(t, dev.IsStarted())
	select {
	case <-ticker.stopped:
	default:
		t.Fatal("ticker still running after Close")
	}
}
