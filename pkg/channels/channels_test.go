package channels_test

import (
	"testing"
	"time"

	"github.com/alkime/callboard/pkg/channels"
	"github.com/stretchr/testify/assert"
)

func TestSendNonBlock(t *testing.T) {
	tests := []struct {
		name    string
		channel func() chan int
		want    error
	}{
		{
			name:    "buffered with room",
			channel: func() chan int { return make(chan int, 1) },
		},
		{
			name: "buffered and full",
			channel: func() chan int {
				ch := make(chan int, 1)
				ch <- 1
				return ch
			},
			want: channels.ErrChannelFull,
		},
		{
			name:    "unbuffered without receiver",
			channel: func() chan int { return make(chan int) },
			want:    channels.ErrChannelFull,
		},
		{
			name: "closed",
			channel: func() chan int {
				ch := make(chan int, 1)
				close(ch)
				return ch
			},
			want: channels.ErrChannelClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := channels.SendNonBlock(tt.channel(), 42)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSendLatest(t *testing.T) {
	t.Run("keeps the newest values", func(t *testing.T) {
		ch := make(chan int, 2)
		assert.Zero(t, channels.SendLatest(ch, 1))
		assert.Zero(t, channels.SendLatest(ch, 2))
		assert.Equal(t, 1, channels.SendLatest(ch, 3))

		assert.Equal(t, []int{2, 3}, receiveAll(ch, 5*time.Millisecond, 0))
	})

	t.Run("closed channel loses the value", func(t *testing.T) {
		ch := make(chan int, 1)
		close(ch)
		assert.Equal(t, 1, channels.SendLatest(ch, 1))
	})
}

// receiveAll collects values from ch until it is closed, nothing arrives
// within idle or limit values were received. A limit of 0 means no limit.
func receiveAll[T any](ch <-chan T, idle time.Duration, limit int) []T {
	var result []T

	for limit == 0 || len(result) < limit {
		select {
		case v, ok := <-ch:
			if !ok {
				return result
			}
			result = append(result, v)
		case <-time.After(idle):
			return result
		}
	}

	return result
}
