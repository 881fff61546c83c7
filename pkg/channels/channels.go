// Package channels provides non-blocking send helpers and a broadcaster for
// fanning state updates out to UI and network subscribers.
package channels

import (
	"errors"
)

var (
	ErrChannelClosed = errors.New("channel closed")
	ErrChannelFull   = errors.New("channel full")
)
