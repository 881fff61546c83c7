package calllist_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/alkime/callboard/internal/calls"
	"github.com/alkime/callboard/internal/reconciler"
	"github.com/alkime/callboard/internal/stt"
	"github.com/alkime/callboard/internal/tui/calllist"
	"github.com/alkime/callboard/internal/tui/msg"
	"github.com/alkime/callboard/internal/upload"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	lipgloss.SetColorProfile(termenv.Ascii)
}

type fakeLister struct {
	mu      sync.Mutex
	rows    []calls.Record
	err     error
	queries []calls.Query
}

func (f *fakeLister) ListCalls(_ context.Context, q calls.Query) ([]calls.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return append([]calls.Record(nil), f.rows...), f.err
}

func (f *fakeLister) lastQuery() calls.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

type idlePoller struct{}

func (idlePoller) Poll(context.Context, []string) (map[string]calls.TaskStatus, error) {
	return nil, nil
}

type fakeUploader struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (f *fakeUploader) UploadPath(_ context.Context, path string, _ func(int)) (calls.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, path)
	return calls.Record{ID: "9", FileName: "new.wav"}, f.err
}

type fakeDeleter struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (f *fakeDeleter) DeleteCall(_ context.Context, id string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ids = append(f.ids, id)
	if f.err != nil {
		return "", f.err
	}
	return "Call deleted successfully", nil
}

func (f *fakeDeleter) deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ids...)
}

// harness adapts the list model to tea.Model.
type harness struct {
	m calllist.Model
}

func (h harness) Init() tea.Cmd { return h.m.Init() }

func (h harness) Update(teaMsg tea.Msg) (tea.Model, tea.Cmd) {
	if km, ok := teaMsg.(tea.KeyMsg); ok && km.String() == "ctrl+c" {
		return h, tea.Quit
	}
	var cmd tea.Cmd
	h.m, cmd = h.m.Update(teaMsg)
	return h, cmd
}

func (h harness) View() string { return h.m.View() }

func sampleRows() []calls.Record {
	return []calls.Record{
		{ID: "1", FileName: "billing-dispute.wav", Status: calls.StatusSuccess},
		{ID: "2", FileName: "refund-request.wav", Status: calls.StatusRunning, JobID: "job-2", StatusDetail: "Transcribing"},
	}
}

func newReconciler(t *testing.T, lister *fakeLister) *reconciler.Reconciler {
	t.Helper()

	r := reconciler.New(lister, idlePoller{}, reconciler.Config{
		Ticker: func(time.Duration) (<-chan time.Time, func()) {
			return make(chan time.Time), func() {}
		},
	})
	t.Cleanup(r.Close)

	return r
}

func waitFor(t *testing.T, tm *teatest.TestModel, substr string) {
	t.Helper()
	teatest.WaitFor(t, tm.Output(), func(buf []byte) bool {
		return bytes.Contains(buf, []byte(substr))
	}, teatest.WithCheckInterval(20*time.Millisecond), teatest.WithDuration(3*time.Second))
}

func start(t *testing.T, r *reconciler.Reconciler, up calllist.Uploader, del calllist.Deleter) *teatest.TestModel {
	t.Helper()

	m := calllist.New(context.Background(), r, up, del)
	t.Cleanup(m.Close)

	tm := teatest.NewTestModel(t, harness{m}, teatest.WithInitialTermSize(120, 30))
	t.Cleanup(func() { _ = tm.Quit() })

	return tm
}

func TestListShowsRows(t *testing.T) {
	r := newReconciler(t, &fakeLister{rows: sampleRows()})
	tm := start(t, r, &fakeUploader{}, &fakeDeleter{})

	waitFor(t, tm, "refund-request.wav")
	waitFor(t, tm, "Transcribing")
	waitFor(t, tm, "polling")
}

func TestListFilterCyclesStatus(t *testing.T) {
	lister := &fakeLister{rows: sampleRows()}
	r := newReconciler(t, lister)
	tm := start(t, r, &fakeUploader{}, &fakeDeleter{})
	waitFor(t, tm, "billing-dispute.wav")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	waitFor(t, tm, "status: pending")

	q := lister.lastQuery()
	require.NotNil(t, q.Status)
	assert.Equal(t, calls.StatusPending, *q.Status)
}

func TestListSortAndOrder(t *testing.T) {
	lister := &fakeLister{rows: sampleRows()}
	r := newReconciler(t, lister)
	tm := start(t, r, &fakeUploader{}, &fakeDeleter{})
	waitFor(t, tm, "sort: date ↓")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("s")})
	waitFor(t, tm, "sort: duration ↓")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("o")})
	waitFor(t, tm, "sort: duration ↑")
	assert.Equal(t, calls.Ascending, lister.lastQuery().Order)
}

func TestListFetchErrorIsRetryable(t *testing.T) {
	lister := &fakeLister{err: errors.New("connection refused")}
	r := newReconciler(t, lister)
	tm := start(t, r, &fakeUploader{}, &fakeDeleter{})

	waitFor(t, tm, "Failed to load calls")
	waitFor(t, tm, "retry")

	lister.mu.Lock()
	lister.err = nil
	lister.rows = sampleRows()
	lister.mu.Unlock()

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	waitFor(t, tm, "billing-dispute.wav")
}

func TestListUploadFailureNotifies(t *testing.T) {
	r := newReconciler(t, &fakeLister{rows: sampleRows()})
	up := &fakeUploader{err: &upload.Error{FileName: "notes.txt", Message: "file is not an audio recording"}}
	tm := start(t, r, up, &fakeDeleter{})
	waitFor(t, tm, "billing-dispute.wav")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("u")})
	waitFor(t, tm, "Upload file:")
	tm.Type("/tmp/notes.txt")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	waitFor(t, tm, "Upload of notes.txt failed: file is not an audio recording")

	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Equal(t, []string{"/tmp/notes.txt"}, up.paths)
}

func TestListDeleteAfterConfirm(t *testing.T) {
	r := newReconciler(t, &fakeLister{rows: sampleRows()})
	del := &fakeDeleter{}
	tm := start(t, r, &fakeUploader{}, del)
	waitFor(t, tm, "billing-dispute.wav")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	waitFor(t, tm, "Delete billing-dispute.wav?")
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})

	waitFor(t, tm, "Call deleted successfully")
	assert.Equal(t, []string{"1"}, del.deleted())
	_, ok := r.Row("1")
	assert.False(t, ok, "deleted row is removed locally")
}

func TestListDeleteOfMissingCallRemovesRow(t *testing.T) {
	r := newReconciler(t, &fakeLister{rows: sampleRows()})
	del := &fakeDeleter{err: &stt.APIError{Op: "delete call", StatusCode: http.StatusNotFound, Detail: "Call not found"}}
	tm := start(t, r, &fakeUploader{}, del)
	waitFor(t, tm, "billing-dispute.wav")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	waitFor(t, tm, "Delete billing-dispute.wav?")
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})

	waitFor(t, tm, "billing-dispute.wav was already deleted")
	_, ok := r.Row("1")
	assert.False(t, ok)
}

func TestListDeleteFailureKeepsRow(t *testing.T) {
	r := newReconciler(t, &fakeLister{rows: sampleRows()})
	del := &fakeDeleter{err: &stt.APIError{Op: "delete call", StatusCode: http.StatusInternalServerError, Detail: "database locked"}}
	tm := start(t, r, &fakeUploader{}, del)
	waitFor(t, tm, "billing-dispute.wav")

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	waitFor(t, tm, "Delete billing-dispute.wav?")
	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("y")})

	waitFor(t, tm, "Delete of billing-dispute.wav failed: database locked")
	_, ok := r.Row("1")
	assert.True(t, ok)
}

func TestListPlaceholdersCanNotBeDeleted(t *testing.T) {
	r := newReconciler(t, &fakeLister{})
	require.NoError(t, r.LoadInitial(context.Background()))
	r.ApplyUploadStart("pending.wav")

	m := calllist.New(context.Background(), r, &fakeUploader{}, &fakeDeleter{})
	defer m.Close()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	assert.NotContains(t, m.View(), "Delete pending.wav?")
}

func TestListDeleteCancelled(t *testing.T) {
	r := newReconciler(t, &fakeLister{rows: sampleRows()})
	require.NoError(t, r.LoadInitial(context.Background()))
	del := &fakeDeleter{}
	m := calllist.New(context.Background(), r, &fakeUploader{}, del)
	defer m.Close()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})

	assert.Nil(t, cmd)
	assert.Empty(t, del.deleted())
	assert.NotContains(t, m.View(), "Delete billing-dispute.wav?")
}

func TestListOpenSelected(t *testing.T) {
	r := newReconciler(t, &fakeLister{rows: sampleRows()})
	require.NoError(t, r.LoadInitial(context.Background()))
	m := calllist.New(context.Background(), r, &fakeUploader{}, &fakeDeleter{})
	defer m.Close()

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	row, ok := m.Selected()
	require.True(t, ok)
	assert.Equal(t, "2", row.ID)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, msg.OpenCallMsg{Record: row}, cmd())
}

func TestListIgnoresOpenOnUpload(t *testing.T) {
	r := newReconciler(t, &fakeLister{})
	require.NoError(t, r.LoadInitial(context.Background()))
	r.ApplyUploadStart("pending.wav")

	m := calllist.New(context.Background(), r, &fakeUploader{}, &fakeDeleter{})
	defer m.Close()

	assert.Contains(t, m.View(), "uploading 0%")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "placeholders can not be opened")
}
