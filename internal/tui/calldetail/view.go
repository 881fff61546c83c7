package calldetail

import (
	"fmt"
	"strings"

	"github.com/alkime/callboard/internal/playback"
	"github.com/alkime/callboard/internal/tui/components/waveform"
	"github.com/alkime/callboard/internal/tui/format"
	"github.com/alkime/callboard/internal/tui/style"
	"github.com/charmbracelet/lipgloss"
)

// Lines taken by the player and the help footer.
const (
	playerHeight = waveHeight + 2
	helpHeight   = 2
)

// Summary lists are cut to this many entries.
const listLimit = 3

// View renders the call detail UI.
func (m Model) View() string {
	if m.detail == nil {
		return m.loading.View()
	}

	var sb strings.Builder

	sb.WriteString(m.header())
	sb.WriteString("\n")
	if s := m.summary(); s != "" {
		sb.WriteString(s)
		sb.WriteString("\n")
	}
	sb.WriteString(m.playerView())
	sb.WriteString("\n")
	sb.WriteString(style.Viewport.Render(m.tv.View()))
	sb.WriteString("\n")
	sb.WriteString(m.help.View(m.keys))

	return sb.String()
}

func (m Model) header() string {
	rec := m.record
	badge := style.Status(rec.Status).Render(rec.Status.String())

	return style.Title.Render(rec.FileName) + "  " + badge + "\n" +
		style.Subtitle.Render(format.Timestamp(rec.CreatedAt)+" · "+format.Duration(rec.Duration))
}

// summary renders the analysis, or why there is none.
func (m Model) summary() string {
	if m.detail == nil {
		return ""
	}

	a := m.detail.Analysis
	if a == nil {
		return style.Muted.Render(fmt.Sprintf("Analysis not available yet (%s)", strings.ToLower(m.record.Status.String())))
	}

	var lines []string
	add := func(label, value string) {
		if value != "" {
			lines = append(lines, style.Label.Render(label+":")+" "+value)
		}
	}

	add("Sentiment", joinNonEmpty(" · ",
		prefixed("customer ", a.CustomerSentiment),
		prefixed("agent ", a.AgentSentiment),
		prefixed("overall ", a.OverallSentiment)))
	add("Resolution", a.ResolutionStatus)
	add("Efficiency", a.CallEfficiency)
	add("Language", a.Language)

	intents := make([]string, 0, len(a.Intents))
	for _, in := range a.Intents {
		intents = append(intents, in.Intent+confidence(in.Confidence))
	}
	add("Intents", strings.Join(intents, ", "))

	entities := make([]string, 0, len(a.Entities))
	for _, e := range a.Entities {
		entities = append(entities, e.Type+"="+e.Value)
	}
	add("Entities", strings.Join(entities, ", "))

	lines = append(lines, bullets("Key points", a.Keypoints)...)

	issues := make([]string, 0, len(a.Issues))
	for _, is := range a.Issues {
		issues = append(issues, is.Type+": "+is.Description)
	}
	lines = append(lines, bullets("Issues", issues)...)

	actions := make([]string, 0, len(a.Actions))
	for _, ac := range a.Actions {
		actions = append(actions, ac.Type+": "+ac.Details)
	}
	lines = append(lines, bullets("Actions", actions)...)

	width := max(m.width-2, 20)
	for i, l := range lines {
		lines[i] = format.Truncate(l, width)
	}

	return strings.Join(lines, "\n")
}

func (m Model) playerWidth() int {
	return max(m.width-4, 20)
}

// playerView renders the waveform or the fallback progress bar followed by
// the transport line.
func (m Model) playerView() string {
	var body string

	switch {
	case m.audioErr != "":
		body = style.Warning.Render(m.audioErr)
	case m.state.Phase == playback.PhaseError:
		body = style.Warning.Render("Audio unavailable")
	case m.state.Phase == playback.PhaseReady:
		wf := waveform.New(peakLevels(m.peaks), playhead(m.state), m.playerWidth(), waveHeight)
		body = wf.View()
	case m.state.Phase == playback.PhaseFallback:
		body = m.bar.ViewAs(m.state.Progress()) + "\n" + style.Muted.Render("basic player, no waveform")
	default:
		body = style.Muted.Render("Loading audio…")
	}

	return padLines(body, waveHeight) + "\n" + m.transport()
}

func (m Model) transport() string {
	icon := "▶"
	if m.state.Playing {
		icon = "⏸"
	}

	line := fmt.Sprintf("%s %s / %s  vol %d%%",
		icon,
		format.Clock(m.state.CurrentTime),
		format.Clock(m.state.Duration),
		int(m.state.Volume*100+0.5))

	if m.flash != "" {
		line += "  " + style.Warning.Render(m.flash)
	}

	return style.Progress.Render(line)
}

// peakLevels adapts waveform peaks to uictl.Levels.
type peakLevels []int16

func (p peakLevels) Read() []int16 { return p }

// playheadDial adapts the playback state to uictl.CappedDial.
type playheadDial struct {
	pos, duration float64
}

func playhead(st playback.State) playheadDial {
	return playheadDial{pos: st.CurrentTime, duration: st.Duration}
}

func (p playheadDial) Read() float64            { return p.pos }
func (p playheadDial) Cap() (float64, float64) { return p.pos, p.duration }

func padLines(s string, n int) string {
	if missing := n - lipgloss.Height(s); missing > 0 {
		s += strings.Repeat("\n", missing)
	}

	return s
}

func lineCount(s string) int {
	if s == "" {
		return 0
	}

	return lipgloss.Height(s)
}

func bullets(label string, items []string) []string {
	if len(items) == 0 {
		return nil
	}

	lines := []string{style.Label.Render(label + ":")}
	for i, item := range items {
		if i == listLimit {
			lines = append(lines, style.Muted.Render(fmt.Sprintf("  … %d more", len(items)-listLimit)))
			break
		}
		lines = append(lines, "  "+style.Bullet.Render("•")+" "+item)
	}

	return lines
}

func prefixed(prefix, value string) string {
	if value == "" {
		return ""
	}

	return prefix + value
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}

	return strings.Join(kept, sep)
}

func confidence(c *float64) string {
	if c == nil {
		return ""
	}

	return fmt.Sprintf(" (%d%%)", int(*c*100+0.5))
}
