package calllist

import (
	"fmt"
	"strings"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/tui/format"
	"github.com/alkime/callboard/internal/tui/style"
)

// Column widths of a row.
const (
	nameWidth     = 30
	statusWidth   = 14
	detailWidth   = 26
	durationWidth = 8
)

// View renders the call list UI.
func (m Model) View() string {
	if !m.loaded && len(m.snap.Rows) == 0 && m.snap.Error == "" {
		return m.loading.View()
	}

	var sb strings.Builder

	sb.WriteString(m.header())
	sb.WriteString("\n\n")

	if m.snap.Error != "" {
		sb.WriteString(style.Banner.Render("Failed to load calls: " + m.snap.Error))
		sb.WriteString(" ")
		sb.WriteString(hint("r", "retry"))
		sb.WriteString("\n\n")
	}

	if m.note != nil {
		noteStyle := style.Success
		if m.note.Error {
			noteStyle = style.Error
		}
		sb.WriteString(noteStyle.Render(m.note.Text))
		sb.WriteString("  ")
		sb.WriteString(hint("x", "dismiss"))
		sb.WriteString("\n\n")
	}

	sb.WriteString(m.rows())
	sb.WriteString("\n\n")

	switch {
	case m.prompting:
		sb.WriteString(m.input.View())
		sb.WriteString("\n")
		sb.WriteString(hint("enter", "upload") + "  " + hint("esc", "cancel"))
	case m.confirmID != "":
		name := m.confirmID
		if row, ok := m.Selected(); ok {
			name = row.FileName
		}
		sb.WriteString(style.Warning.Render(fmt.Sprintf("Delete %s?", name)))
		sb.WriteString("  ")
		sb.WriteString(hint("y", "yes") + "  " + hint("n", "no"))
	default:
		sb.WriteString(m.help.View(m.keys))
		sb.WriteString("  ")
		sb.WriteString(hint("q", "quit"))
	}

	return sb.String()
}

func (m Model) header() string {
	q := m.calls.Query()

	status := "all"
	if q.Status != nil {
		status = strings.ToLower(q.Status.String())
	}
	arrow := "↓"
	if q.Order == calls.Ascending {
		arrow = "↑"
	}

	var sb strings.Builder
	sb.WriteString(style.Title.Render("Calls"))
	sb.WriteString("  ")
	sb.WriteString(style.Subtitle.Render(fmt.Sprintf("status: %s · sort: %s %s", status, q.SortBy.Label(), arrow)))

	switch {
	case m.snap.Loading:
		sb.WriteString("  ")
		sb.WriteString(m.spinner.View() + style.Muted.Render(" loading"))
	case m.snap.Polling:
		sb.WriteString("  ")
		sb.WriteString(m.spinner.View() + style.Muted.Render(" polling"))
	}

	return sb.String()
}

func (m Model) rows() string {
	if len(m.snap.Rows) == 0 {
		return style.Muted.Render("No calls yet. Press u to upload a recording.")
	}

	visible := max(m.height-chrome, 3)
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := min(start+visible, len(m.snap.Rows))

	lines := make([]string, 0, end-start+1)
	lines = append(lines, style.Label.Render("  "+
		format.Pad("FILE", nameWidth)+" "+
		format.Pad("STATUS", statusWidth)+" "+
		format.Pad("DETAIL", detailWidth)+" "+
		format.Pad("LENGTH", durationWidth)+" "+
		"CREATED"))

	for i := start; i < end; i++ {
		lines = append(lines, m.row(i))
	}

	if end < len(m.snap.Rows) {
		lines = append(lines, style.Muted.Render(fmt.Sprintf("  … %d more", len(m.snap.Rows)-end)))
	}

	return strings.Join(lines, "\n")
}

func (m Model) row(i int) string {
	rec := m.snap.Rows[i]

	marker := "  "
	if i == m.cursor {
		marker = style.Bullet.Render("▸ ")
	}

	name := format.Pad(rec.FileName, nameWidth)
	if i == m.cursor {
		name = style.Selected.Render(name)
	}

	return marker + name + " " +
		statusCell(rec) + " " +
		style.Muted.Render(format.Pad(rec.StatusDetail, detailWidth)) + " " +
		format.Pad(format.Duration(rec.Duration), durationWidth) + " " +
		style.Muted.Render(format.Timestamp(rec.CreatedAt))
}

func statusCell(rec calls.Record) string {
	if rec.IsUploading {
		return style.Progress.Render(format.Pad(fmt.Sprintf("uploading %d%%", rec.UploadProgress), statusWidth))
	}

	return style.Status(rec.Status).Render(format.Pad(strings.ToLower(rec.Status.String()), statusWidth))
}

func hint(k, desc string) string {
	return style.Help.Render("[") + style.Key.Render(k) + style.Help.Render("] "+desc)
}
