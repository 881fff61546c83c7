// Package tui is the terminal dashboard: a call list and a detail view
// for one call at a time.
package tui

import (
	"context"

	"github.com/alkime/callboard/internal/tui/calldetail"
	"github.com/alkime/callboard/internal/tui/calllist"
	"github.com/alkime/callboard/internal/tui/msg"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Config holds the dependencies of the dashboard.
type Config struct {
	// Cancel is called on quit.
	Cancel   context.CancelFunc
	Calls    calllist.Calls
	Uploader calllist.Uploader
	Deleter  calllist.Deleter
	Fetcher  calldetail.Fetcher
	Player   calldetail.Player
}

type view int

const (
	viewList view = iota
	viewDetail
)

// Model routes messages between the list and the open call.
type Model struct {
	ctx    context.Context
	config Config
	keys   KeyMap

	view   view
	list   calllist.Model
	detail *calldetail.Model

	windowWidth  int
	windowHeight int
}

// New creates the dashboard model.
func New(ctx context.Context, config Config) *Model {
	return &Model{
		ctx:          ctx,
		config:       config,
		keys:         DefaultKeyMap(),
		list:         calllist.New(ctx, config.Calls, config.Uploader, config.Deleter),
		windowWidth:  80,
		windowHeight: 24,
	}
}

// Init returns the initial command.
func (m *Model) Init() tea.Cmd {
	return m.list.Init()
}

// Update handles all messages.
func (m *Model) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	switch teaMsg := teaMsg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = teaMsg.Width
		m.windowHeight = teaMsg.Height

	case tea.KeyMsg:
		switch {
		case key.Matches(teaMsg, m.keys.ForceQuit):
			return m, m.quit()
		case key.Matches(teaMsg, m.keys.Quit) && m.view == viewList && !m.list.Typing():
			return m, m.quit()
		}

		return m, m.updateActive(teaMsg)

	case msg.OpenCallMsg:
		return m, m.open(teaMsg)

	case msg.BackMsg:
		m.detail = nil
		m.view = viewList

		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd

	m.list, cmd = m.list.Update(teaMsg)
	cmds = append(cmds, cmd)

	if m.detail != nil {
		d, cmd := m.detail.Update(teaMsg)
		m.detail = &d
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// updateActive sends a key to the visible view only.
func (m *Model) updateActive(km tea.KeyMsg) tea.Cmd {
	if m.view == viewDetail && m.detail != nil {
		d, cmd := m.detail.Update(km)
		m.detail = &d

		return cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(km)

	return cmd
}

func (m *Model) open(open msg.OpenCallMsg) tea.Cmd {
	if m.detail != nil {
		m.detail.Close()
	}

	d := calldetail.New(m.ctx, open.Record, m.config.Fetcher, m.config.Player, m.windowWidth, m.windowHeight)
	m.detail = &d
	m.view = viewDetail

	return d.Init()
}

func (m *Model) quit() tea.Cmd {
	if m.detail != nil {
		m.detail.Close()
		m.detail = nil
	}
	m.list.Close()

	if m.config.Cancel != nil {
		m.config.Cancel()
	}

	return tea.Quit
}

// View renders the visible view.
func (m *Model) View() string {
	if m.view == viewDetail && m.detail != nil {
		return m.detail.View()
	}

	return m.list.View()
}
