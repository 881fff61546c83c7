// Package waveform provides a TUI component that draws a recording's
// amplitude with a playhead.
package waveform

import (
	"math"
	"strings"

	"github.com/alkime/callboard/internal/tui/style"
	"github.com/alkime/callboard/pkg/uictl"
)

// Block characters for amplitude visualization (8 levels, bottom to top).
// Index 0 = empty (space), 1-8 = increasing fill levels.
const blockChars = " ▁▂▃▄▅▆▇█"

// playheadChar marks the playhead in columns with no amplitude.
const playheadChar = '│'

// Model displays a whole recording as vertical bars, one column per slice
// of time (left=start, right=end). Columns before the playhead are drawn
// as played.
type Model struct {
	peaks    uictl.Levels[int16]        // Data source for amplitudes
	playhead uictl.CappedDial[float64] // Position and duration in seconds
	width    int                       // Display width in characters
	height   int                       // Display height in rows
}

// New creates a new waveform model.
// The width parameter determines how many columns to render.
// The height parameter determines how many rows tall the waveform is.
// Peaks are aggregated to fit the display width.
func New(peaks uictl.Levels[int16], playhead uictl.CappedDial[float64], width, height int) Model {
	if height < 1 {
		height = 1
	}

	return Model{
		peaks:    peaks,
		playhead: playhead,
		width:    width,
		height:   height,
	}
}

// Width returns the number of columns drawn.
func (m Model) Width() int {
	return m.width
}

// SetWidth changes the number of columns drawn.
func (m Model) SetWidth(width int) Model {
	m.width = max(width, 1)
	return m
}

// PlayheadColumn returns the column holding the playhead, or -1 without one.
func (m Model) PlayheadColumn() int {
	if m.playhead == nil || m.width < 1 {
		return -1
	}

	return min(int(math.Floor(uictl.Fraction(m.playhead)*float64(m.width))), m.width-1)
}

// View renders the waveform as block characters.
func (m Model) View() string {
	if m.peaks == nil {
		return m.renderEmpty()
	}

	peaks := m.peaks.Read()
	if len(peaks) == 0 {
		return m.renderEmpty()
	}

	return m.renderWaveform(peaks)
}

// renderWaveform renders peaks as vertical bars across multiple rows.
func (m Model) renderWaveform(peaks []int16) string {
	// Calculate amplitude level (0 to height*8) for each column
	levels := m.calculateLevels(peaks)
	runes := []rune(blockChars)
	head := m.PlayheadColumn()

	var sb strings.Builder

	// Render row by row, from top to bottom
	for row := 0; row < m.height; row++ {
		if row > 0 {
			sb.WriteString("\n")
		}

		var played, current, rest strings.Builder

		for col := 0; col < m.width; col++ {
			r := runes[m.blockIndexForRow(levels[col], row)]

			switch {
			case col < head:
				played.WriteRune(r)
			case col == head:
				if r == ' ' {
					r = playheadChar
				}
				current.WriteRune(r)
			default:
				rest.WriteRune(r)
			}
		}

		sb.WriteString(style.Progress.Render(played.String()))
		sb.WriteString(style.Key.Render(current.String()))
		sb.WriteString(style.Muted.Render(rest.String()))
	}

	return sb.String()
}

// calculateLevels computes amplitude levels for each column.
// Returns a slice of levels from 0 to height*8.
func (m Model) calculateLevels(peaks []int16) []int {
	levels := make([]int, m.width)
	maxLevel := m.height * 8

	for col := 0; col < m.width; col++ {
		// Spread the peaks over the full width
		start := col * len(peaks) / m.width
		end := max((col+1)*len(peaks)/m.width, start+1)
		if start >= len(peaks) {
			continue
		}

		end = min(end, len(peaks))
		maxAmp := maxAbsAmplitude(peaks[start:end])

		// Map amplitude to 0..maxLevel using the perceptual curve
		levels[col] = amplitudeToMultiRowLevel(maxAmp, maxLevel)
	}

	return levels
}

// blockIndexForRow returns the block character index (0-8) for a given column level at a row.
// Row 0 is the top, row (height-1) is the bottom.
func (m Model) blockIndexForRow(level, row int) int {
	// Row 0 (top) covers levels [(height-1)*8, height*8]
	// Row (height-1) (bottom) covers [0, 8]
	rowFromBottom := m.height - 1 - row
	baseLevel := rowFromBottom * 8

	// How much of this row is filled?
	fillAmount := level - baseLevel

	if fillAmount <= 0 {
		return 0 // Empty (space)
	}

	if fillAmount >= 8 {
		return 8 // Full block
	}

	return fillAmount // Partial block (1-7)
}

// renderEmpty renders a flat baseline for when there are no peaks.
func (m Model) renderEmpty() string {
	var sb strings.Builder

	for row := 0; row < m.height; row++ {
		if row > 0 {
			sb.WriteString("\n")
		}

		line := strings.Repeat(" ", m.width)
		if row == m.height-1 {
			// Bottom row shows baseline
			line = strings.Repeat("▁", m.width)
		}

		sb.WriteString(style.Muted.Render(line))
	}

	return sb.String()
}

// maxAbsAmplitude returns the maximum absolute amplitude in a slice of samples.
func maxAbsAmplitude(samples []int16) int16 {
	var maxAmp int16

	for _, s := range samples {
		// Handle int16 overflow: -32768 has no positive equivalent
		if s == -32768 {
			return 32767 // Max possible amplitude
		}

		if s < 0 {
			s = -s
		}

		if s > maxAmp {
			maxAmp = s
		}
	}

	return maxAmp
}

// amplitudeToMultiRowLevel maps an amplitude (0-32767) to a display level (0-maxLevel).
// Uses a square root curve so quiet speech is still visible.
func amplitudeToMultiRowLevel(amp int16, maxLevel int) int {
	if amp == 0 {
		return 0
	}

	const maxAmp = 32767.0

	normalized := float64(amp) / maxAmp
	scaled := math.Sqrt(normalized) * float64(maxLevel)

	return min(int(scaled), maxLevel)
}
