package audio

import (
	"bytes"
	"fmt"
	"io"
	"math"

	"github.com/gabriel-vasile/mimetype"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Decode sniffs the container of data and decodes it to PCM. WAV (16-bit
// PCM), MP3 and Ogg Vorbis are supported.
func Decode(data []byte) (*PCM, error) {
	mtype := mimetype.Detect(data)

	switch {
	case mtype.Is("audio/wav"):
		return DecodeWAV(bytes.NewReader(data))
	case mtype.Is("audio/mpeg"):
		return DecodeMP3(bytes.NewReader(data))
	case mtype.Is("audio/ogg"), mtype.Is("application/ogg"):
		return DecodeVorbis(bytes.NewReader(data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mtype.String())
	}
}

// DecodeMP3 decodes an MPEG audio stream. The decoder always produces
// 16-bit stereo, mono sources included.
func DecodeMP3(r io.Reader) (*PCM, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read MP3 stream: %w", err)
	}

	data, err := io.ReadAll(dec)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	return &PCM{
		SampleRate: dec.SampleRate(),
		Channels:   2,
		Samples:    decodeSamples(data),
	}, nil
}

// DecodeVorbis decodes an Ogg Vorbis stream.
func DecodeVorbis(r io.Reader) (*PCM, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}
	if format.Channels < 1 || format.SampleRate < 1 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedFormat, format.Channels, format.SampleRate)
	}

	pcm := &PCM{
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Samples:    make([]int16, len(samples)),
	}
	for i, s := range samples {
		pcm.Samples[i] = floatToS16(s)
	}

	return pcm, nil
}

func floatToS16(s float32) int16 {
	return int16(math.Round(float64(min(max(s, -1), 1)) * math.MaxInt16))
}
