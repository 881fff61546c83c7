package calls

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus is returned when the pipeline reports a status string
// that has no mapping onto Status.
var ErrUnknownStatus = errors.New("unknown job status")

// Status is the processing state of a call record.
type Status int

const (
	// StatusPending means the job is queued but has not started.
	StatusPending Status = iota
	// StatusRunning means the pipeline is working on the job.
	StatusRunning
	// StatusSuccess means the analysis is available.
	StatusSuccess
	// StatusFailed means the pipeline gave up on the job.
	StatusFailed
)

// AllStatuses lists every status in lifecycle order.
func AllStatuses() []Status {
	return []Status{StatusPending, StatusRunning, StatusSuccess, StatusFailed}
}

// ParseStatus maps a wire status onto Status. Matching is case-insensitive
// and covers the worker states the pipeline reports in addition to the four
// canonical values.
func ParseStatus(s string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING", "RECEIVED":
		return StatusPending, nil
	case "STARTED", "RUNNING", "RETRY", "PROGRESS":
		return StatusRunning, nil
	case "SUCCESS":
		return StatusSuccess, nil
	case "FAILURE", "FAILED", "FAIL", "REVOKED":
		return StatusFailed, nil
	default:
		return StatusPending, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
}

// String returns the wire form of the status.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// rank orders statuses for forward-only transitions. Both terminal states
// share the top rank.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusRunning:
		return 1
	default:
		return 2
	}
}

// CanAdvanceTo reports whether moving from s to next is a forward
// transition. Terminal statuses never move.
func (s Status) CanAdvanceTo(next Status) bool {
	if s == next || s.IsTerminal() {
		return false
	}

	return next.rank() >= s.rank()
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}
