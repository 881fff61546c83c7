package upload

import "sync"

// progress turns byte counts into integer percentages. Emitted values are
// strictly increasing and stop once the upload reached a terminal state.
type progress struct {
	mu   sync.Mutex
	last int
	done bool
	emit func(percent int)
}

func newProgress(emit func(percent int)) *progress {
	return &progress{last: -1, emit: emit}
}

func (p *progress) bytes(sent, total int64) {
	if total <= 0 {
		return
	}

	p.report(int(sent * 100 / total))
}

func (p *progress) report(percent int) {
	percent = min(max(percent, 0), 100)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done || percent <= p.last {
		return
	}

	p.last = percent
	p.emit(percent)
}

// finish ends the sequence. A successful upload always reports 100 first.
func (p *progress) finish(ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.done {
		return
	}

	if ok && p.last < 100 {
		p.last = 100
		p.emit(100)
	}
	p.done = true
}
