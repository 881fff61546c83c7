// Package labeledspinner provides a spinner with a title and help text that
// can turn into a failure notice once loading gives up.
package labeledspinner

import (
	"github.com/alkime/callboard/internal/tui/style"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model is shown while the call list or a call detail loads.
type Model struct {
	Spinner  spinner.Model
	Title    string
	Subtitle string
	Help     string
	// Failure replaces the spinner and subtitle once set.
	Failure string
}

// New creates a labeled spinner.
func New(s spinner.Spinner, title, subtitle, help string) Model {
	sp := spinner.New()
	sp.Spinner = s

	return Model{
		Spinner:  sp,
		Title:    title,
		Subtitle: subtitle,
		Help:     help,
	}
}

// Init returns the initial command for the spinner.
func (ls Model) Init() tea.Cmd {
	return ls.Spinner.Tick
}

// Fail stops the spinner and shows reason instead.
func (ls Model) Fail(reason string) Model {
	ls.Failure = reason
	return ls
}

// Failed reports whether Fail was called.
func (ls Model) Failed() bool {
	return ls.Failure != ""
}

// Update advances the spinner. A failed spinner stops ticking.
func (ls Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	tickMsg, ok := teaMsg.(spinner.TickMsg)
	if !ok || ls.Failed() {
		return ls, nil
	}

	var cmd tea.Cmd
	ls.Spinner, cmd = ls.Spinner.Update(tickMsg)

	return ls, cmd
}

// View renders the labeled spinner with static help text.
func (ls Model) View() string {
	return ls.ViewWithHelp(ls.Help)
}

// ViewWithHelp renders the labeled spinner with dynamic help text.
func (ls Model) ViewWithHelp(help string) string {
	head := ls.Spinner.View() + " " + style.Title.Render(ls.Title)
	body := style.Subtitle.Render(ls.Subtitle)

	if ls.Failed() {
		head = style.Error.Render("✗") + " " + style.Title.Render(ls.Title)
		body = style.Banner.Render(ls.Failure)
	}

	return lipgloss.JoinVertical(lipgloss.Left, head, "", body, "", style.Help.Render(help))
}
