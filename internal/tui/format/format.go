// Package format renders values for display in the TUI.
package format

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Clock formats seconds as m:ss, or h:mm:ss from an hour up. Negative
// values render as 0:00.
func Clock(seconds float64) string {
	total := int(math.Floor(max(seconds, 0)))
	h, m, s := total/3600, total/60%60, total%60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}

	return fmt.Sprintf("%d:%02d", m, s)
}

// Duration formats an optional duration, "-" when unknown.
func Duration(seconds *float64) string {
	if seconds == nil {
		return "-"
	}

	return Clock(*seconds)
}

// Timestamp formats t in local time.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	return t.Local().Format("2006-01-02 15:04")
}

// Truncate shortens s to width cells, ending with an ellipsis when cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}

	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}

	return string(runes) + "…"
}

// Pad truncates or right-pads s to exactly width cells.
func Pad(s string, width int) string {
	s = Truncate(s, width)
	if gap := width - lipgloss.Width(s); gap > 0 {
		return s + spaces(gap)
	}

	return s
}

func spaces(n int) string {
	return fmt.Sprintf("%*s", n, "")
}
