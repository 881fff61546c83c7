package channels

// SendNonBlock attempts to send a message without blocking.
// Returns error if the channel is full or closed.
func SendNonBlock[T any](ch chan<- T, msg T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ErrChannelClosed
		}
	}()

	select {
	case ch <- msg:
		return nil
	default:
		return ErrChannelFull
	}
}

// SendLatest delivers msg without blocking, discarding the oldest queued
// value when ch is full. It returns how many values were lost, counting msg
// itself when it could not be queued.
func SendLatest[T any](ch chan T, msg T) (dropped int) {
	switch SendNonBlock(ch, msg) {
	case nil:
		return 0
	case ErrChannelClosed:
		return 1
	}

	select {
	case <-ch:
		dropped++
	default:
	}

	if SendNonBlock(ch, msg) != nil {
		dropped++
	}

	return dropped
}
