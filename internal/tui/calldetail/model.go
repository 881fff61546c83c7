// Package calldetail provides the TUI view of one call: its analysis, an
// audio player and a transcript that follows the playhead.
package calldetail

import (
	"context"
	"errors"
	"fmt"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/playback"
	"github.com/alkime/callboard/internal/transcript"
	"github.com/alkime/callboard/internal/tui/components/labeledspinner"
	"github.com/alkime/callboard/internal/tui/msg"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Fetcher loads a call with its analysis.
type Fetcher interface {
	GetCall(ctx context.Context, id string) (calls.Detail, error)
}

// Player is the playback adapter as seen by the detail view.
type Player interface {
	Load(ctx context.Context, src playback.Source) error
	Toggle() error
	SeekTo(seconds float64) error
	SeekBy(delta float64) error
	SetVolume(v float64) error
	State() playback.State
	Peaks(n int) []int16
	Subscribe() (<-chan playback.State, func())
	Unload()
}

const (
	seekStep   = 5.0
	volumeStep = 0.1
	waveHeight = 3
)

type detailMsg struct {
	id     string
	detail calls.Detail
	err    error
}

type audioMsg struct {
	err error
}

type stateMsg struct {
	state playback.State
}

// Model represents the call detail UI state.
type Model struct {
	ctx     context.Context
	cancel  context.CancelFunc
	record  calls.Record
	fetcher Fetcher
	player  Player

	keys    KeyMap
	help    help.Model
	loading labeledspinner.Model
	bar     progress.Model

	states      <-chan playback.State
	unsubscribe func()

	detail   *calls.Detail
	audioErr string
	state    playback.State
	peaks    []int16
	ctrl     *transcript.Controller
	tv       *transcriptView
	flash    string
	width    int
	height   int
}

// New creates a detail model for rec. It subscribes to the player right
// away; Close releases the player and the subscription.
func New(ctx context.Context, rec calls.Record, fetcher Fetcher, player Player, width, height int) Model {
	ctx, cancel := context.WithCancel(ctx)
	states, unsubscribe := player.Subscribe()

	m := Model{
		ctx:         ctx,
		cancel:      cancel,
		record:      rec,
		fetcher:     fetcher,
		player:      player,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		loading:     labeledspinner.New(spinner.Dot, rec.FileName, "Fetching analysis and transcript", "[esc] back"),
		bar:         progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		states:      states,
		unsubscribe: unsubscribe,
		state:       player.State(),
		width:       max(width, 40),
		height:      max(height, 20),
	}
	m.help.Width = m.width
	m.bar.Width = m.playerWidth()

	return m
}

// Init fetches the call and listens for player state.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchCmd(),
		waitForState(m.states),
		m.loading.Init(),
	)
}

// Close cancels pending work and unloads the player. It is safe to call
// more than once.
func (m Model) Close() {
	m.cancel()
	m.unsubscribe()
	m.player.Unload()
}

// Record returns the call shown.
func (m Model) Record() calls.Record {
	return m.record
}

func waitForState(states <-chan playback.State) tea.Cmd {
	return func() tea.Msg {
		st, ok := <-states
		if !ok {
			return nil
		}

		return stateMsg{state: st}
	}
}

func (m Model) fetchCmd() tea.Cmd {
	ctx, fetcher, id := m.ctx, m.fetcher, m.record.ID
	return func() tea.Msg {
		d, err := fetcher.GetCall(ctx, id)
		return detailMsg{id: id, detail: d, err: err}
	}
}

func (m Model) loadCmd(src playback.Source) tea.Cmd {
	ctx, player := m.ctx, m.player
	return func() tea.Msg {
		return audioMsg{err: player.Load(ctx, src)}
	}
}

// Update handles messages for the call detail.
func (m Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	switch teaMsg := teaMsg.(type) {
	case tea.WindowSizeMsg:
		m.width = teaMsg.Width
		m.height = teaMsg.Height
		m.help.Width = teaMsg.Width
		m.bar.Width = m.playerWidth()
		m.layout()
		if m.peaks != nil {
			m.peaks = m.player.Peaks(m.playerWidth())
		}

	case detailMsg:
		if teaMsg.id != m.record.ID {
			return m, nil
		}
		return m.onDetail(teaMsg)

	case audioMsg:
		switch {
		case errors.Is(teaMsg.err, playback.ErrSuperseded), errors.Is(teaMsg.err, context.Canceled):
		case teaMsg.err != nil:
			m.audioErr = "Audio unavailable"
		default:
			m.peaks = m.player.Peaks(m.playerWidth())
		}

	case stateMsg:
		m.state = teaMsg.state
		if m.ctrl != nil && m.ctrl.OnTimeUpdate(m.state.CurrentTime) {
			m.tv.setActive(m.ctrl.Active())
		}

		return m, waitForState(m.states)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.loading, cmd = m.loading.Update(teaMsg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(teaMsg)
	}

	return m, nil
}

func (m Model) onDetail(dm detailMsg) (Model, tea.Cmd) {
	if dm.err != nil {
		if errors.Is(dm.err, context.Canceled) {
			return m, nil
		}
		m.loading = m.loading.Fail("Could not load call: " + dm.err.Error())
		return m, nil
	}

	d := dm.detail
	m.detail = &d
	m.record = d.Record

	var segs []calls.Segment
	fallback := ""
	if d.Analysis != nil {
		segs = d.Analysis.Segments
		fallback = d.Analysis.Transcript
	}

	m.tv = newTranscriptView(segs, fallback, 10, 5)
	m.ctrl = transcript.NewController(segs, m.player, m.tv)
	m.layout()

	if d.AudioURL == "" {
		m.audioErr = "No recording for this call"
		return m, nil
	}

	return m, m.loadCmd(playback.Source{URL: d.AudioURL, DurationHint: d.DurationSeconds()})
}

// layout sizes the transcript to the space left below the header.
func (m *Model) layout() {
	if m.tv == nil {
		return
	}

	used := lineCount(m.header()) + lineCount(m.summary()) + playerHeight + helpHeight
	m.tv.resize(max(m.width-4, 20), max(m.height-used-2, 3))
	if i := m.ctrl.Active(); i >= 0 && !m.tv.FullyVisible(i) {
		m.tv.ScrollIntoView(i)
	}
}

func (m Model) handleKey(km tea.KeyMsg) (Model, tea.Cmd) {
	if key.Matches(km, m.keys.Back) {
		m.Close()
		return m, func() tea.Msg { return msg.BackMsg{} }
	}

	if m.tv == nil {
		return m, nil
	}

	m.flash = ""
	var err error

	switch {
	case key.Matches(km, m.keys.Toggle):
		err = m.player.Toggle()
	case key.Matches(km, m.keys.Back5):
		err = m.player.SeekBy(-seekStep)
	case key.Matches(km, m.keys.Forward5):
		err = m.player.SeekBy(seekStep)
	case key.Matches(km, m.keys.VolumeUp):
		err = m.player.SetVolume(m.player.State().Volume + volumeStep)
	case key.Matches(km, m.keys.VolumeDown):
		err = m.player.SetVolume(m.player.State().Volume - volumeStep)
	case key.Matches(km, m.keys.Next):
		m.tv.setFocus(m.ctrl.Step(m.tv.focus, 1))
	case key.Matches(km, m.keys.Prev):
		m.tv.setFocus(m.ctrl.Step(m.tv.focus, -1))
	case key.Matches(km, m.keys.Seek):
		if m.tv.focus >= 0 {
			err = m.ctrl.Click(m.tv.focus)
		}
	case key.Matches(km, m.keys.Up), key.Matches(km, m.keys.Down):
		var cmd tea.Cmd
		m.tv.vp, cmd = m.tv.vp.Update(km)
		return m, cmd
	}

	if err != nil {
		m.flash = controlMessage(err)
	}

	return m, nil
}

func controlMessage(err error) string {
	switch {
	case errors.Is(err, playback.ErrNotReady):
		return "Audio is not ready"
	case errors.Is(err, transcript.ErrNotClickable):
		return ""
	default:
		return fmt.Sprintf("Playback error: %v", err)
	}
}
