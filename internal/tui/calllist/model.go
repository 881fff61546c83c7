// Package calllist provides the TUI view of the reconciled call list.
package calllist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/reconciler"
	"github.com/alkime/callboard/internal/stt"
	"github.com/alkime/callboard/internal/tui/components/labeledspinner"
	"github.com/alkime/callboard/internal/tui/msg"
	"github.com/alkime/callboard/internal/upload"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Calls is the reconciler as seen by the list view.
type Calls interface {
	Snapshot() reconciler.Snapshot
	Subscribe() (<-chan reconciler.Snapshot, func())
	LoadInitial(ctx context.Context) error
	SetStatusFilter(ctx context.Context, status *calls.Status) error
	SetSort(ctx context.Context, field calls.SortField, order calls.SortOrder) error
	Query() calls.Query
	Row(id string) (calls.Record, bool)
	Remove(id string)
}

// Uploader uploads a local recording.
type Uploader interface {
	UploadPath(ctx context.Context, path string, onProgress func(percent int)) (calls.Record, error)
}

// Deleter deletes a call on the server.
type Deleter interface {
	DeleteCall(ctx context.Context, id string) (string, error)
}

type snapshotMsg struct {
	snap reconciler.Snapshot
}

type queryDoneMsg struct {
	err error
}

type uploadDoneMsg struct {
	path string
	rec  calls.Record
	err  error
}

type deleteDoneMsg struct {
	id      string
	name    string
	message string
	err     error
}

// chrome is the number of lines around the rows.
const chrome = 8

// Model represents the call list UI state.
type Model struct {
	ctx      context.Context
	calls    Calls
	uploader Uploader
	deleter  Deleter

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	loading labeledspinner.Model
	input   textinput.Model

	updates     <-chan reconciler.Snapshot
	unsubscribe func()

	snap      reconciler.Snapshot
	loaded    bool
	cursor    int
	selected  string
	prompting bool
	confirmID string
	note      *msg.NotifyMsg
	width     int
	height    int
}

// New creates a call list model. It subscribes to c right away; Close
// releases the subscription.
func New(ctx context.Context, c Calls, uploader Uploader, deleter Deleter) Model {
	updates, unsubscribe := c.Subscribe()

	sp := spinner.New()
	sp.Spinner = spinner.MiniDot

	input := textinput.New()
	input.Placeholder = "/path/to/recording.wav"
	input.Prompt = "Upload file: "
	input.CharLimit = 4096

	return Model{
		ctx:         ctx,
		calls:       c,
		uploader:    uploader,
		deleter:     deleter,
		keys:        DefaultKeyMap(),
		help:        help.New(),
		spinner:     sp,
		loading:     labeledspinner.New(spinner.Dot, "Loading calls", "Fetching the call list", "[q] quit"),
		input:       input,
		updates:     updates,
		unsubscribe: unsubscribe,
		snap:        c.Snapshot(),
		width:       80,
		height:      24,
	}
}

// Init starts the first fetch and listens for reconciler snapshots.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForSnapshot(m.updates),
		m.runQuery(m.calls.LoadInitial),
		m.spinner.Tick,
		m.loading.Init(),
	)
}

// Close releases the snapshot subscription.
func (m Model) Close() {
	m.unsubscribe()
}

// Typing reports whether keys go to the upload prompt.
func (m Model) Typing() bool {
	return m.prompting
}

// Selected returns the row under the cursor.
func (m Model) Selected() (calls.Record, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Rows) {
		return calls.Record{}, false
	}

	return m.snap.Rows[m.cursor], true
}

func waitForSnapshot(updates <-chan reconciler.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return nil
		}

		return snapshotMsg{snap: snap}
	}
}

func (m Model) runQuery(fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return queryDoneMsg{err: fn(ctx)}
	}
}

// Update handles messages for the call list.
func (m Model) Update(teaMsg tea.Msg) (Model, tea.Cmd) {
	switch teaMsg := teaMsg.(type) {
	case tea.WindowSizeMsg:
		m.width = teaMsg.Width
		m.height = teaMsg.Height
		m.help.Width = teaMsg.Width
		m.input.Width = max(teaMsg.Width-len(m.input.Prompt)-2, 10)

	case snapshotMsg:
		m.applySnapshot(teaMsg.snap)
		return m, waitForSnapshot(m.updates)

	case queryDoneMsg:
		m.loaded = true
		m.applySnapshot(m.calls.Snapshot())

	case uploadDoneMsg:
		m.note = uploadNote(teaMsg)

	case deleteDoneMsg:
		if stt.IsNotFound(teaMsg.err) {
			m.calls.Remove(teaMsg.id)
			m.note = &msg.NotifyMsg{Text: teaMsg.name + " was already deleted"}
			break
		}
		if teaMsg.err != nil {
			m.note = &msg.NotifyMsg{
				Text:  fmt.Sprintf("Delete of %s failed: %s", teaMsg.name, stt.UserMessage(teaMsg.err)),
				Error: true,
			}
			break
		}
		m.calls.Remove(teaMsg.id)
		text := teaMsg.message
		if text == "" {
			text = "Deleted " + teaMsg.name
		}
		m.note = &msg.NotifyMsg{Text: text}

	case msg.NotifyMsg:
		note := teaMsg
		m.note = &note

	case spinner.TickMsg:
		var cmds []tea.Cmd
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(teaMsg)
		cmds = append(cmds, cmd)
		m.loading, cmd = m.loading.Update(teaMsg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)

	case tea.KeyMsg:
		return m.handleKey(teaMsg)
	}

	if m.prompting {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(teaMsg)
		return m, cmd
	}

	return m, nil
}

func (m *Model) applySnapshot(snap reconciler.Snapshot) {
	if snap.Version < m.snap.Version {
		return
	}
	m.snap = snap

	for i, row := range snap.Rows {
		if row.ID == m.selected {
			m.cursor = i
			return
		}
	}

	m.cursor = min(m.cursor, len(snap.Rows)-1)
	m.cursor = max(m.cursor, 0)
	m.selected = ""
	if row, ok := m.Selected(); ok {
		m.selected = row.ID
	}
}

func (m Model) handleKey(km tea.KeyMsg) (Model, tea.Cmd) {
	if m.prompting {
		return m.handlePromptKey(km)
	}

	if m.confirmID != "" {
		id := m.confirmID
		m.confirmID = ""
		if key.Matches(km, m.keys.Confirm) {
			return m, m.deleteCmd(id)
		}

		return m, nil
	}

	switch {
	case key.Matches(km, m.keys.Up):
		m.moveCursor(-1)
	case key.Matches(km, m.keys.Down):
		m.moveCursor(1)
	case key.Matches(km, m.keys.Open):
		row, ok := m.Selected()
		if !ok || row.IsUploading {
			return m, nil
		}
		return m, func() tea.Msg { return msg.OpenCallMsg{Record: row} }
	case key.Matches(km, m.keys.Filter):
		next := nextStatus(m.calls.Query().Status)
		return m, m.runQuery(func(ctx context.Context) error {
			return m.calls.SetStatusFilter(ctx, next)
		})
	case key.Matches(km, m.keys.Sort):
		q := m.calls.Query()
		field := nextField(q.SortBy)
		return m, m.runQuery(func(ctx context.Context) error {
			return m.calls.SetSort(ctx, field, q.Order)
		})
	case key.Matches(km, m.keys.Order):
		q := m.calls.Query()
		return m, m.runQuery(func(ctx context.Context) error {
			return m.calls.SetSort(ctx, q.SortBy, q.Order.Toggle())
		})
	case key.Matches(km, m.keys.Reload):
		return m, m.runQuery(m.calls.LoadInitial)
	case key.Matches(km, m.keys.Upload):
		m.prompting = true
		return m, m.input.Focus()
	case key.Matches(km, m.keys.Delete):
		if row, ok := m.Selected(); ok && !calls.IsTempID(row.ID) {
			m.confirmID = row.ID
		}
	case key.Matches(km, m.keys.Dismiss):
		m.note = nil
	}

	return m, nil
}

func (m Model) handlePromptKey(km tea.KeyMsg) (Model, tea.Cmd) {
	switch km.Type {
	case tea.KeyEsc:
		m.prompting = false
		m.input.Blur()
		m.input.Reset()

		return m, nil

	case tea.KeyEnter:
		path := strings.TrimSpace(m.input.Value())
		if path == "" {
			return m, nil
		}
		m.prompting = false
		m.input.Blur()
		m.input.Reset()

		return m, m.uploadCmd(path)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(km)

	return m, cmd
}

func (m *Model) moveCursor(delta int) {
	if len(m.snap.Rows) == 0 {
		return
	}

	m.cursor = min(max(m.cursor+delta, 0), len(m.snap.Rows)-1)
	m.selected = m.snap.Rows[m.cursor].ID
}

func (m Model) uploadCmd(path string) tea.Cmd {
	ctx, uploader := m.ctx, m.uploader
	return func() tea.Msg {
		rec, err := uploader.UploadPath(ctx, path, nil)
		return uploadDoneMsg{path: path, rec: rec, err: err}
	}
}

func (m Model) deleteCmd(id string) tea.Cmd {
	name := id
	if row, ok := m.calls.Row(id); ok {
		name = row.FileName
	}

	ctx, deleter := m.ctx, m.deleter
	return func() tea.Msg {
		message, err := deleter.DeleteCall(ctx, id)
		return deleteDoneMsg{id: id, name: name, message: message, err: err}
	}
}

func uploadNote(done uploadDoneMsg) *msg.NotifyMsg {
	if done.err == nil {
		return &msg.NotifyMsg{Text: "Uploaded " + done.rec.FileName}
	}

	var uerr *upload.Error
	if errors.As(done.err, &uerr) {
		return &msg.NotifyMsg{Text: fmt.Sprintf("Upload of %s failed: %s", uerr.FileName, uerr.Message), Error: true}
	}

	return &msg.NotifyMsg{Text: fmt.Sprintf("Upload of %s failed: %v", done.path, done.err), Error: true}
}

// nextStatus cycles all, then every status in lifecycle order.
func nextStatus(cur *calls.Status) *calls.Status {
	all := calls.AllStatuses()
	if cur == nil {
		return &all[0]
	}

	for i, s := range all {
		if s == *cur && i+1 < len(all) {
			return &all[i+1]
		}
	}

	return nil
}

func nextField(cur calls.SortField) calls.SortField {
	fields := calls.SortFields()
	for i, f := range fields {
		if f == cur {
			return fields[(i+1)%len(fields)]
		}
	}

	return fields[0]
}
