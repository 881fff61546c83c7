package audio

import (
	"github.com/gen2brain/malgo"
)

type DeviceConfig struct {
	Format           malgo.FormatType
	PlaybackChannels int
	SampleRate       int
}

// ConfigFor returns a device configuration matching pcm.
func ConfigFor(pcm *PCM) DeviceConfig {
	return DeviceConfig{
		Format:           malgo.FormatS16,
		PlaybackChannels: pcm.Channels,
		SampleRate:       pcm.SampleRate,
	}
}
