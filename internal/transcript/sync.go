// Package transcript keeps a diarized transcript in step with the playhead.
package transcript

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alkime/callboard/internal/calls"
)

// ErrNotClickable is returned by Click for an index that is out of range or
// refers to a segment without text.
var ErrNotClickable = errors.New("segment not clickable")

// ActiveIndex returns the index of the segment with start <= t < end, or -1
// when t falls before the first segment, after the last or in a gap. segs
// must be sorted by start. If segments overlap, the one starting last wins.
// Repeated lookups over the same segments should go through an Index.
func ActiveIndex(segs []calls.Segment, t float64) int {
	return NewIndex(segs).Active(t)
}

// Index answers active segment lookups for segments sorted by start.
type Index struct {
	segs []calls.Segment
	// reach[i] is the latest end among segs[:i+1].
	reach []float64
}

// NewIndex builds an Index over segs.
func NewIndex(segs []calls.Segment) Index {
	reach := make([]float64, len(segs))
	end := math.Inf(-1)
	for i, s := range segs {
		end = max(end, s.End)
		reach[i] = end
	}

	return Index{segs: segs, reach: reach}
}

// Active returns the index of the segment playing at t, or -1. See
// ActiveIndex.
func (x Index) Active(t float64) int {
	// first segment starting after t
	i := sort.Search(len(x.segs), func(i int) bool { return x.segs[i].Start > t })

	// no segment at or before j ends after t once reach[j] <= t
	for j := i - 1; j >= 0 && x.reach[j] > t; j-- {
		if x.segs[j].Contains(t) {
			return j
		}
	}

	return -1
}

// Renderable reports whether a segment has text to show and click.
func Renderable(s calls.Segment) bool {
	return strings.TrimSpace(s.Text) != ""
}

// Seeker moves the playhead. The playback adapter implements it.
type Seeker interface {
	SeekTo(seconds float64) error
}

// Scroller is the view holding one element per segment.
type Scroller interface {
	// FullyVisible reports whether segment i is entirely inside the visible
	// area.
	FullyVisible(i int) bool
	ScrollIntoView(i int)
}

// Controller tracks the active segment. It never changes the playback time
// itself: time only comes in through OnTimeUpdate. A Controller is driven
// from a single event loop and is not safe for concurrent use.
type Controller struct {
	segs     []calls.Segment
	index    Index
	seeker   Seeker
	scroller Scroller
	active   int
}

// NewController creates a Controller for segs, which must be sorted by start.
// scroller may be nil until the view exists.
func NewController(segs []calls.Segment, seeker Seeker, scroller Scroller) *Controller {
	return &Controller{
		segs:     segs,
		index:    NewIndex(segs),
		seeker:   seeker,
		scroller: scroller,
		active:   -1,
	}
}

// SetScroller attaches the view.
func (c *Controller) SetScroller(s Scroller) {
	c.scroller = s
}

// Segments returns the transcript. It must not be modified.
func (c *Controller) Segments() []calls.Segment {
	return c.segs
}

// Active returns the index of the active segment, or -1.
func (c *Controller) Active() int {
	return c.active
}

// OnTimeUpdate recomputes the active segment for t and reports whether it
// changed. On change the new segment is scrolled into view unless it is
// already fully visible. Forward ticks and seek jumps are handled alike.
func (c *Controller) OnTimeUpdate(t float64) bool {
	next := c.index.Active(t)
	if next == c.active {
		return false
	}
	c.active = next

	if next >= 0 && c.scroller != nil && Renderable(c.segs[next]) && !c.scroller.FullyVisible(next) {
		c.scroller.ScrollIntoView(next)
	}

	return true
}

// Click seeks to the start of segment i with a single SeekTo call.
func (c *Controller) Click(i int) error {
	if i < 0 || i >= len(c.segs) || !Renderable(c.segs[i]) {
		return fmt.Errorf("%w: %d", ErrNotClickable, i)
	}

	return c.seeker.SeekTo(c.segs[i].Start)
}

// Step returns the nearest renderable segment after from when dir > 0, or
// before it when dir < 0. It returns from when there is none.
func (c *Controller) Step(from, dir int) int {
	if dir == 0 {
		return from
	}
	step := 1
	if dir < 0 {
		step = -1
	}

	for i := from + step; i >= 0 && i < len(c.segs); i += step {
		if Renderable(c.segs[i]) {
			return i
		}
	}

	return from
}
