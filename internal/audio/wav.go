package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrUnsupportedFormat is returned for audio the decoder can not play.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

const (
	formatPCM        = 1
	formatExtensible = 0xFFFE
)

// PCM is decoded 16-bit audio with interleaved channels.
type PCM struct {
	SampleRate int
	Channels   int
	Samples    []int16
}

// Frames returns the number of sample frames.
func (p *PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}

	return len(p.Samples) / p.Channels
}

// Seconds returns the playing time.
func (p *PCM) Seconds() float64 {
	if p.SampleRate == 0 {
		return 0
	}

	return float64(p.Frames()) / float64(p.SampleRate)
}

// Duration returns the playing time as a time.Duration.
func (p *PCM) Duration() time.Duration {
	return time.Duration(p.Seconds() * float64(time.Second))
}

// DecodeWAV reads a RIFF/WAVE stream holding 16-bit PCM. Chunks other than
// "fmt " and "data" are skipped.
func DecodeWAV(r io.Reader) (*PCM, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read WAV header: %w", err)
	}
	if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
		return nil, fmt.Errorf("%w: not a RIFF/WAVE stream", ErrUnsupportedFormat)
	}

	var (
		pcm     PCM
		haveFmt bool
	)

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return nil, fmt.Errorf("failed to read WAV chunk: %w", err)
		}

		id := string(chunk[0:4])
		size := int64(binary.LittleEndian.Uint32(chunk[4:8]))

		switch id {
		case "fmt ":
			if err := readFmt(r, size, &pcm); err != nil {
				return nil, err
			}
			haveFmt = true
		case "data":
			if !haveFmt {
				return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrUnsupportedFormat)
			}

			data, err := io.ReadAll(io.LimitReader(r, size))
			if err != nil {
				return nil, fmt.Errorf("failed to read WAV data: %w", err)
			}
			pcm.Samples = decodeSamples(data)

			return &pcm, nil
		default:
			if _, err := io.CopyN(io.Discard, r, size+size%2); err != nil {
				return nil, fmt.Errorf("failed to skip %q chunk: %w", id, err)
			}
		}
	}
}

func readFmt(r io.Reader, size int64, pcm *PCM) error {
	if size < 16 {
		return fmt.Errorf("%w: fmt chunk too short", ErrUnsupportedFormat)
	}

	buf := make([]byte, size+size%2)
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("failed to read fmt chunk: %w", err)
	}

	format := binary.LittleEndian.Uint16(buf[0:2])
	channels := int(binary.LittleEndian.Uint16(buf[2:4]))
	sampleRate := int(binary.LittleEndian.Uint32(buf[4:8]))
	bits := binary.LittleEndian.Uint16(buf[14:16])

	if format != formatPCM && format != formatExtensible {
		return fmt.Errorf("%w: encoding %d", ErrUnsupportedFormat, format)
	}
	if bits != 16 {
		return fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bits)
	}
	if channels < 1 || sampleRate < 1 {
		return fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, channels, sampleRate)
	}

	pcm.Channels = channels
	pcm.SampleRate = sampleRate

	return nil
}

func decodeSamples(data []byte) []int16 {
	n := len(data) / 2
	samples := make([]int16, n)
	for i := range n {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}

	return samples
}

// Peaks reduces the recording to n buckets holding the largest absolute
// sample of each, for waveform rendering.
func (p *PCM) Peaks(n int) []int16 {
	frames := p.Frames()
	if n <= 0 || frames == 0 {
		return nil
	}

	peaks := make([]int16, n)
	for col := range n {
		start := col * frames / n
		end := max((col+1)*frames/n, start+1)
		end = min(end, frames)

		var peak int16
		for _, s := range p.Samples[start*p.Channels : end*p.Channels] {
			a := abs16(s)
			if a > peak {
				peak = a
			}
		}
		peaks[col] = peak
	}

	return peaks
}

// Render writes count frames starting at frame into out as little-endian
// 16-bit samples scaled by volume. Frames past the end are silent. It
// returns the frame following the last one written.
func (p *PCM) Render(out []byte, frame, count int, volume float64) int {
	frames := p.Frames()
	ch := p.Channels

	for i := range count {
		for c := range ch {
			var v int16
			if frame < frames {
				v = int16(float64(p.Samples[frame*ch+c]) * volume)
			}
			binary.LittleEndian.PutUint16(out[(i*ch+c)*2:], uint16(v))
		}
		if frame < frames {
			frame++
		}
	}

	return frame
}

func abs16(s int16) int16 {
	// -32768 has no positive counterpart
	if s == -32768 {
		return 32767
	}
	if s < 0 {
		return -s
	}

	return s
}
