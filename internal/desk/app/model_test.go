package app

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/snarg/case-register/internal/capture"
	"github.com/snarg/case-register/internal/client"
	"github.com/snarg/case-register/internal/desk"
	"github.com/snarg/case-register/internal/localstore"
	"github.com/snarg/case-register/internal/session"
)

type fakeDictation struct {
	state      capture.State
	continuous bool
	toggles    int
	stops      int
	err        error
	events     chan desk.Event
}

func (f *fakeDictation) Toggle(context.Context) error {
	f.toggles++
	if f.err != nil {
		return f.err
	}
	if f.state == capture.Recording {
		f.state = capture.Paused
	} else {
		f.state = capture.Recording
	}
	return nil
}

func (f *fakeDictation) Stop() error {
	f.stops++
	f.state = capture.Idle
	return f.err
}

func (f *fakeDictation) State() capture.State      { return f.state }
func (f *fakeDictation) Continuous() bool          { return f.continuous }
func (f *fakeDictation) SetContinuous(on bool)     { f.continuous = on }
func (f *fakeDictation) Events() <-chan desk.Event { return f.events }

func newTestModel(t *testing.T) (Model, *fakeDictation, *session.Store) {
	t.Helper()
	sessions, err := session.Open(localstore.NewMemory())
	if err != nil {
		t.Fatal(err)
	}
	dict := &fakeDictation{events: make(chan desk.Event, 4)}
	m := New(dict, sessions, t.TempDir())
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return updated.(Model), dict, sessions
}

func press(t *testing.T, m Model, key string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch key {
	case KeySpace:
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case KeyTab:
		msg = tea.KeyMsg{Type: tea.KeyTab}
	case KeyEnter:
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case KeyEsc:
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func TestNewModel(t *testing.T) {
	m, _, _ := newTestModel(t)
	if m.focusedPanel != FocusCases {
		t.Error("new model should focus the case list")
	}
	if len(m.cases) != 0 {
		t.Errorf("cases = %d, want 0", len(m.cases))
	}
	if !strings.Contains(m.View(), "CASE REGISTER") {
		t.Error("view missing header")
	}
}

func TestSpaceTogglesRecording(t *testing.T) {
	m, dict, _ := newTestModel(t)
	m, _ = press(t, m, KeySpace)
	if dict.toggles != 1 || dict.state != capture.Recording {
		t.Errorf("toggles = %d state = %v", dict.toggles, dict.state)
	}
	if !strings.Contains(m.View(), "REC") {
		t.Error("view should show recording indicator")
	}

	m, _ = press(t, m, KeyStop)
	if dict.stops != 1 {
		t.Errorf("stops = %d, want 1", dict.stops)
	}
}

func TestToggleErrorShown(t *testing.T) {
	m, dict, _ := newTestModel(t)
	dict.err = desk.ErrBusy
	m, cmd := press(t, m, KeySpace)
	if !strings.Contains(m.errorMessage, "Still transcribing") {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}
	if cmd == nil {
		t.Error("error should schedule a clear")
	}
}

func TestContinuousKey(t *testing.T) {
	m, dict, _ := newTestModel(t)
	m, _ = press(t, m, KeyContinuous)
	if !dict.continuous {
		t.Error("continuous should be on")
	}
	if !strings.Contains(m.View(), "CONTINUOUS") {
		t.Error("view missing continuous badge")
	}
	press(t, m, KeyContinuous)
	if dict.continuous {
		t.Error("continuous should be off")
	}
}

func TestNewCaseAndLoad(t *testing.T) {
	m, _, sessions := newTestModel(t)
	m, _ = press(t, m, KeyNewCase)
	first, _ := sessions.Active()
	sessions.AppendTranscript("first case text")

	m, _ = press(t, m, KeyNewCase)
	if len(m.cases) != 2 {
		t.Fatalf("cases = %d, want 2", len(m.cases))
	}
	if m.editor.Value() != "" {
		t.Errorf("editor = %q, want empty after new case", m.editor.Value())
	}
	if m.selected != 1 {
		t.Errorf("selected = %d, want newest case", m.selected)
	}

	m, _ = press(t, m, KeyK)
	m, _ = press(t, m, KeyEnter)
	if a, _ := sessions.Active(); a.ID != first.ID {
		t.Errorf("active = %s, want %s", a.ID, first.ID)
	}
	if m.editor.Value() != "first case text" {
		t.Errorf("editor = %q", m.editor.Value())
	}
}

func TestRename(t *testing.T) {
	m, _, sessions := newTestModel(t)
	m, _ = press(t, m, KeyNewCase)
	m, _ = press(t, m, KeyRename)
	if !m.renaming {
		t.Fatal("should be renaming")
	}
	m.rename.SetValue("Smith hearing")
	m, _ = press(t, m, KeyEnter)

	a, _ := sessions.Active()
	if a.Title != "Smith hearing" {
		t.Errorf("Title = %q", a.Title)
	}

	m, _ = press(t, m, KeyRename)
	m.rename.SetValue("   ")
	m, _ = press(t, m, KeyEnter)
	if !strings.Contains(m.errorMessage, "cannot be empty") {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}
	if a, _ := sessions.Active(); a.Title != "Smith hearing" {
		t.Errorf("Title = %q after rejected rename", a.Title)
	}
}

func TestRenameWithoutCase(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = press(t, m, KeyRename)
	if m.renaming {
		t.Error("rename should not start without an active case")
	}
	if m.errorMessage == "" {
		t.Error("expected an error message")
	}
}

func TestTranscribedEvent(t *testing.T) {
	m, _, sessions := newTestModel(t)
	m, _ = press(t, m, KeyNewCase)

	updated, _ := m.Update(DeskEventMsg{Event: desk.Event{Kind: desk.EventTranscribing}})
	m = updated.(Model)
	if !m.transcribing {
		t.Error("should be transcribing")
	}

	sessions.AppendTranscript("hello there")
	updated, _ = m.Update(DeskEventMsg{Event: desk.Event{Kind: desk.EventTranscribed, Text: "hello there"}})
	m = updated.(Model)
	if m.transcribing {
		t.Error("should not be transcribing")
	}
	if m.editor.Value() != "hello there" {
		t.Errorf("editor = %q", m.editor.Value())
	}
	if m.statusText != "Transcription added successfully!" {
		t.Errorf("statusText = %q", m.statusText)
	}
}

func TestFailedEvent(t *testing.T) {
	m, _, _ := newTestModel(t)
	err := &client.NoResponseError{Err: errors.New("connection refused")}
	updated, _ := m.Update(DeskEventMsg{Event: desk.Event{Kind: desk.EventFailed, Err: err}})
	m = updated.(Model)
	if m.errorMessage != "No response from server. Is the backend running?" {
		t.Errorf("errorMessage = %q", m.errorMessage)
	}
}

func TestClearStatusOnlyLatest(t *testing.T) {
	m, _, _ := newTestModel(t)
	m, _ = press(t, m, KeyContinuous)
	stale := m.statusSeq
	m, _ = press(t, m, KeyContinuous)

	updated, _ := m.Update(ClearStatusMsg{Seq: stale})
	m = updated.(Model)
	if m.statusText == "" {
		t.Error("stale clear should not remove newer status")
	}
	updated, _ = m.Update(ClearStatusMsg{Seq: m.statusSeq})
	m = updated.(Model)
	if m.statusText != "" {
		t.Errorf("statusText = %q, want cleared", m.statusText)
	}
}

func TestEditAndClear(t *testing.T) {
	m, _, sessions := newTestModel(t)
	m, _ = press(t, m, KeyTab)
	if m.focusedPanel != FocusEditor {
		t.Fatal("tab should focus the editor")
	}
	m, _ = press(t, m, "ab")
	if sessions.Buffer() != "ab" {
		t.Errorf("Buffer = %q, want typed text", sessions.Buffer())
	}
	m, _ = press(t, m, KeyTab)
	if m.focusedPanel != FocusCases {
		t.Fatal("tab should return to the case list")
	}

	m, _ = press(t, m, KeyClear)
	if sessions.Buffer() != "" || m.editor.Value() != "" {
		t.Errorf("buffer %q editor %q, want both empty", sessions.Buffer(), m.editor.Value())
	}
}

func TestExport(t *testing.T) {
	m, _, sessions := newTestModel(t)
	sessions.SetBuffer("exported text")
	_, cmd := press(t, m, KeyExport)
	if cmd == nil {
		t.Fatal("export should return a command")
	}
	msg, ok := cmd().(ExportedMsg)
	if !ok {
		t.Fatalf("cmd produced %T, want ExportedMsg", cmd())
	}
	if msg.Err != nil {
		t.Fatalf("export: %v", msg.Err)
	}
	if _, err := os.Stat(msg.Path); err != nil {
		t.Errorf("exported file missing: %v", err)
	}

	updated, _ := m.Update(msg)
	if got := updated.(Model).statusText; !strings.HasPrefix(got, "Document exported successfully!") {
		t.Errorf("statusText = %q", got)
	}
}

func TestEventsClosed(t *testing.T) {
	m, dict, _ := newTestModel(t)
	close(dict.events)
	msg := waitForEventCmd(dict.Events())()
	if _, ok := msg.(EventsClosedMsg); !ok {
		t.Errorf("msg = %T, want EventsClosedMsg", msg)
	}
	if _, cmd := m.Update(msg); cmd != nil {
		t.Error("closed events should not be re-awaited")
	}
}
