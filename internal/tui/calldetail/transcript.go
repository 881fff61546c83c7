package calldetail

import (
	"strings"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/transcript"
	"github.com/alkime/callboard/internal/tui/format"
	"github.com/alkime/callboard/internal/tui/style"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
)

// transcriptView lays the segments out in a viewport, one block per
// renderable segment. It is the Scroller of the transcript controller.
type transcriptView struct {
	vp   viewport.Model
	segs []calls.Segment
	// fallback is shown when there are no segments.
	fallback string

	// offsets and heights locate each segment's block; offsets are -1 for
	// segments that are not rendered.
	offsets []int
	heights []int

	active int
	focus  int
}

func newTranscriptView(segs []calls.Segment, fallback string, width, height int) *transcriptView {
	v := &transcriptView{
		vp:       viewport.New(width, height),
		segs:     segs,
		fallback: fallback,
		active:   -1,
		focus:    -1,
	}
	v.render()

	return v
}

func (v *transcriptView) resize(width, height int) {
	v.vp.Width = width
	v.vp.Height = height
	v.render()
}

// render rebuilds the content. Block heights depend only on the width.
func (v *transcriptView) render() {
	if len(v.segs) == 0 {
		text := v.fallback
		if strings.TrimSpace(text) == "" {
			text = "No transcript available."
		}
		v.vp.SetContent(style.Muted.Render(lipgloss.NewStyle().Width(v.vp.Width).Render(text)))

		return
	}

	v.offsets = make([]int, len(v.segs))
	v.heights = make([]int, len(v.segs))

	blocks := make([]string, 0, len(v.segs))
	line := 0
	for i, seg := range v.segs {
		if !transcript.Renderable(seg) {
			v.offsets[i] = -1
			continue
		}

		block := v.block(i, seg)
		v.offsets[i] = line
		v.heights[i] = lipgloss.Height(block)
		line += v.heights[i]
		blocks = append(blocks, block)
	}

	v.vp.SetContent(strings.Join(blocks, "\n"))
}

func (v *transcriptView) block(i int, seg calls.Segment) string {
	marker := "  "
	if i == v.focus {
		marker = style.Bullet.Render("▸ ")
	}

	head := format.Clock(seg.Start) + " " + seg.Speaker + ": "
	width := max(v.vp.Width-lipgloss.Width(marker), 10)
	body := lipgloss.NewStyle().Width(width).Render(style.Label.Render(head) + strings.TrimSpace(seg.Text))

	if i == v.active {
		body = style.Active.Render(body)
	}

	lines := strings.Split(body, "\n")
	for j := range lines {
		if j == 0 {
			lines[j] = marker + lines[j]
		} else {
			lines[j] = "  " + lines[j]
		}
	}

	return strings.Join(lines, "\n")
}

// FullyVisible reports whether segment i's block lies inside the viewport.
func (v *transcriptView) FullyVisible(i int) bool {
	if i < 0 || i >= len(v.offsets) || v.offsets[i] < 0 {
		return false
	}

	top := v.vp.YOffset
	return v.offsets[i] >= top && v.offsets[i]+v.heights[i] <= top+v.vp.Height
}

// ScrollIntoView scrolls the least distance that shows segment i. Blocks
// taller than the viewport are aligned to their first line.
func (v *transcriptView) ScrollIntoView(i int) {
	if i < 0 || i >= len(v.offsets) || v.offsets[i] < 0 {
		return
	}

	start, end := v.offsets[i], v.offsets[i]+v.heights[i]
	switch {
	case start < v.vp.YOffset || v.heights[i] > v.vp.Height:
		v.vp.SetYOffset(start)
	case end > v.vp.YOffset+v.vp.Height:
		v.vp.SetYOffset(end - v.vp.Height)
	}
}

func (v *transcriptView) setActive(i int) {
	if v.active == i {
		return
	}
	v.active = i
	v.render()
}

func (v *transcriptView) setFocus(i int) {
	if v.focus == i {
		return
	}
	v.focus = i
	v.render()
	if !v.FullyVisible(i) {
		v.ScrollIntoView(i)
	}
}

func (v *transcriptView) View() string {
	return v.vp.View()
}
