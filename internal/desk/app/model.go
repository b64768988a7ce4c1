// Package app is the case-desk terminal UI.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/lipgloss"
	"github.com/snarg/case-register/internal/capture"
	"github.com/snarg/case-register/internal/client"
	"github.com/snarg/case-register/internal/desk"
	"github.com/snarg/case-register/internal/export"
	"github.com/snarg/case-register/internal/session"
	"github.com/snarg/case-register/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

const statusTimeout = 5 * time.Second

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusCases PanelFocus = iota
	FocusEditor
)

// Dictation is the part of desk.Controller the UI drives.
type Dictation interface {
	Toggle(ctx context.Context) error
	Stop() error
	State() capture.State
	Continuous() bool
	SetContinuous(on bool)
	Events() <-chan desk.Event
}

// Model is the root bubbletea model for the desk.
type Model struct {
	dict      Dictation
	sessions  *session.Store
	exportDir string
	now       func() time.Time

	cases    []session.Case
	selected int

	editor   textarea.Model
	renaming bool
	rename   textinput.Model

	transcribing bool

	focusedPanel PanelFocus
	width        int
	height       int

	statusText   string
	errorMessage string
	statusSeq    int
}

// New creates a model over an open session store and a running
// dictation controller. Exports are written to exportDir.
func New(dict Dictation, sessions *session.Store, exportDir string) Model {
	editor := textarea.New()
	editor.Placeholder = "Transcriptions appear here. Tab to edit."
	editor.ShowLineNumbers = false
	editor.CharLimit = 0
	editor.MaxHeight = 0
	editor.SetValue(sessions.Buffer())
	editor.Blur()

	rename := textinput.New()
	rename.Prompt = "Title: "
	rename.CharLimit = 120

	m := Model{
		dict:         dict,
		sessions:     sessions,
		exportDir:    exportDir,
		now:          time.Now,
		editor:       editor,
		rename:       rename,
		focusedPanel: FocusCases,
	}
	m.refreshCases()
	return m
}

// Init starts listening for controller events.
func (m Model) Init() tea.Cmd {
	return waitForEventCmd(m.dict.Events())
}

// waitForEventCmd blocks on the next controller event.
func waitForEventCmd(ch <-chan desk.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return EventsClosedMsg{}
		}
		return DeskEventMsg{Event: ev}
	}
}

// exportCmd renders text and saves it into dir.
func exportCmd(text, dir string, now time.Time) tea.Cmd {
	return func() tea.Msg {
		f, err := export.Export(text, now)
		if err != nil {
			return ExportedMsg{Err: err}
		}
		path, err := export.Save(dir, f)
		return ExportedMsg{Path: path, Err: err}
	}
}

func clearStatusCmd(seq int) tea.Cmd {
	return tea.Tick(statusTimeout, func(time.Time) tea.Msg {
		return ClearStatusMsg{Seq: seq}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.editor.SetWidth(m.editorPanelWidth() - 2)
		m.editor.SetHeight(max(3, m.contentHeight()-1))
		return m, nil

	case DeskEventMsg:
		cmd := m.handleEvent(msg.Event)
		return m, tea.Batch(cmd, waitForEventCmd(m.dict.Events()))

	case EventsClosedMsg:
		return m, nil

	case ExportedMsg:
		if msg.Err != nil {
			return m, m.setError("Error exporting document. Please try again.")
		}
		return m, m.setStatus("Document exported successfully! " + msg.Path)

	case ClearStatusMsg:
		if msg.Seq == m.statusSeq {
			m.statusText = ""
			m.errorMessage = ""
		}
		return m, nil
	}

	return m, nil
}

// handleEvent processes a controller event and returns any resulting command.
func (m *Model) handleEvent(ev desk.Event) tea.Cmd {
	switch ev.Kind {
	case desk.EventRecording:
		return m.setStatus("Recording started - you can pause anytime and continue the same case")

	case desk.EventPaused:
		return m.setStatus("Recording paused")

	case desk.EventStopped:
		return m.setStatus("Recording stopped")

	case desk.EventTranscribing:
		m.transcribing = true

	case desk.EventTranscribed:
		m.transcribing = false
		m.editor.SetValue(m.sessions.Buffer())
		m.editor.CursorEnd()
		m.refreshCases()
		return m.setStatus("Transcription added successfully!")

	case desk.EventFailed:
		m.transcribing = false
		return m.setError(client.Describe(ev.Err))
	}
	return nil
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == KeyCtrlC {
		return m, tea.Quit
	}

	if m.renaming {
		return m.handleRenameKey(msg)
	}

	if m.focusedPanel == FocusEditor {
		if key == KeyTab || key == KeyEsc {
			m.focusCases()
			return m, nil
		}
		var cmd tea.Cmd
		m.editor, cmd = m.editor.Update(msg)
		m.sessions.SetBuffer(m.editor.Value())
		return m, cmd
	}

	switch key {
	case KeyQuit:
		return m, tea.Quit

	case KeyTab:
		m.focusedPanel = FocusEditor
		return m, m.editor.Focus()

	case KeySpace:
		if err := m.dict.Toggle(context.Background()); err != nil {
			return m, m.setError(describeControl(err))
		}
		return m, nil

	case KeyStop:
		if err := m.dict.Stop(); err != nil {
			return m, m.setError(describeControl(err))
		}
		return m, nil

	case KeyContinuous:
		on := !m.dict.Continuous()
		m.dict.SetContinuous(on)
		if on {
			return m, m.setStatus("Continuous mode on")
		}
		return m, m.setStatus("Continuous mode off")

	case KeyNewCase:
		c, err := m.sessions.CreateCase()
		if err != nil {
			return m, m.setError("Error: " + err.Error())
		}
		m.editor.Reset()
		m.refreshCases()
		return m, m.setStatus("New case created: " + c.Title)

	case KeyRename:
		c, ok := m.sessions.Active()
		if !ok {
			return m, m.setError("No active case to rename")
		}
		m.renaming = true
		m.rename.SetValue(c.Title)
		m.rename.CursorEnd()
		return m, m.rename.Focus()

	case KeyExport:
		return m, exportCmd(m.sessions.Buffer(), m.exportDir, m.now())

	case KeyClear:
		m.sessions.ClearBuffer()
		m.editor.Reset()
		m.statusText = ""
		m.errorMessage = ""
		return m, nil

	case KeyJ, KeyDown:
		if m.selected < len(m.cases)-1 {
			m.selected++
		}
		return m, nil

	case KeyK, KeyUp:
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case KeyEnter:
		if m.selected >= len(m.cases) {
			return m, nil
		}
		c, err := m.sessions.LoadCase(m.cases[m.selected].ID)
		if err != nil {
			return m, m.setError("Error: " + err.Error())
		}
		m.editor.SetValue(c.Transcript)
		return m, m.setStatus("Loaded case: " + c.Title)
	}

	return m, nil
}

func (m Model) handleRenameKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyEsc:
		m.renaming = false
		m.rename.Blur()
		return m, nil

	case KeyEnter:
		c, ok := m.sessions.Active()
		m.renaming = false
		m.rename.Blur()
		if !ok {
			return m, nil
		}
		renamed, err := m.sessions.RenameCase(c.ID, m.rename.Value())
		if errors.Is(err, session.ErrEmptyTitle) {
			return m, m.setError("Case title cannot be empty")
		}
		if err != nil {
			return m, m.setError("Error: " + err.Error())
		}
		m.refreshCases()
		return m, m.setStatus("Case renamed: " + renamed.Title)
	}

	var cmd tea.Cmd
	m.rename, cmd = m.rename.Update(msg)
	return m, cmd
}

func (m *Model) focusCases() {
	m.focusedPanel = FocusCases
	m.editor.Blur()
	m.sessions.SetBuffer(m.editor.Value())
}

// refreshCases reloads the case list and keeps the active case selected.
func (m *Model) refreshCases() {
	m.cases = m.sessions.Cases()
	if a, ok := m.sessions.Active(); ok {
		for i, c := range m.cases {
			if c.ID == a.ID {
				m.selected = i
			}
		}
	}
	if m.selected >= len(m.cases) {
		m.selected = max(0, len(m.cases)-1)
	}
}

func (m *Model) setStatus(text string) tea.Cmd {
	m.statusSeq++
	m.statusText = text
	m.errorMessage = ""
	return clearStatusCmd(m.statusSeq)
}

func (m *Model) setError(text string) tea.Cmd {
	m.statusSeq++
	m.errorMessage = text
	m.statusText = ""
	return clearStatusCmd(m.statusSeq)
}

// describeControl renders recorder errors for the status line.
func describeControl(err error) string {
	switch {
	case errors.Is(err, capture.ErrNoAudio):
		return "No audio recorded. Please record some audio first."
	case errors.Is(err, desk.ErrBusy):
		return "Still transcribing the previous segment. Try again in a moment."
	case errors.Is(err, capture.ErrNotRecording):
		return "Not recording"
	default:
		return "Error accessing microphone. Please ensure a capture device is available."
	}
}

func (m Model) contentHeight() int {
	if m.height == 0 {
		return 20
	}
	// header, status, two dividers, message line, footer
	return max(5, m.height-6)
}

func (m Model) casePanelWidth() int {
	if m.width == 0 {
		return 30
	}
	return max(20, m.width*30/100)
}

func (m Model) editorPanelWidth() int {
	if m.width == 0 {
		return 60
	}
	return max(30, m.width-m.casePanelWidth()-1)
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	sections := []string{
		m.renderHeader(),
		m.renderStatusBar(),
		ui.DividerStyle.Render(strings.Repeat("─", m.width)),
		m.renderMainContent(),
		ui.DividerStyle.Render(strings.Repeat("─", m.width)),
		m.renderMessage(),
		m.renderFooter(),
	}
	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("CASE REGISTER")
	if c, ok := m.sessions.Active(); ok {
		title += ui.DimStyle.Render(" · " + c.Title)
	}
	return title
}

func (m Model) renderStatusBar() string {
	var dot string
	switch m.dict.State() {
	case capture.Recording:
		dot = ui.RecordingDotStyle.Render("● REC")
	case capture.Paused:
		dot = ui.PausedDotStyle.Render("❚❚ PAUSED")
	default:
		dot = ui.IdleDotStyle.Render("○ IDLE")
	}
	if m.dict.Continuous() {
		dot += "  " + ui.ContinuousBadgeStyle.Render("CONTINUOUS")
	}
	if m.transcribing {
		dot += "  " + ui.SpinnerStyle.Render("⟳ Transcribing...")
	}
	return dot
}

func (m Model) renderMainContent() string {
	caseW := m.casePanelWidth()
	height := m.contentHeight()

	left := strings.Split(m.renderCasePanel(caseW, height), "\n")
	right := strings.Split(m.renderEditorPanel(height), "\n")
	for len(right) < height {
		right = append(right, "")
	}

	divider := ui.DividerStyle.Render("│")
	rows := make([]string, height)
	for i := range rows {
		rows[i] = left[i] + divider + right[i]
	}
	return strings.Join(rows, "\n")
}

func (m Model) renderCasePanel(width, height int) string {
	label := fmt.Sprintf("CASES (%d)", len(m.cases))
	var lines []string
	if m.focusedPanel == FocusCases {
		lines = append(lines, ui.PanelTitleActiveStyle.Render(label))
	} else {
		lines = append(lines, ui.PanelTitleStyle.Render(label))
	}

	active, _ := m.sessions.Active()
	if len(m.cases) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No cases yet"))
		lines = append(lines, ui.DimStyle.Render("  Press n to create one"))
	}
	for i, c := range m.cases {
		marker := "  "
		if c.ID == active.ID {
			marker = ui.ActiveCaseStyle.Render("● ")
		}
		line := c.Title
		if i == m.selected && m.focusedPanel == FocusCases {
			line = ui.SelectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		lines = append(lines, truncateToWidth(marker+line, width))
		lines = append(lines, ui.TimestampStyle.Render(
			fmt.Sprintf("    %d segments · %s", len(c.Segments), c.LastUpdated.Local().Format("Jan 2 15:04"))))
	}

	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	for i, l := range lines {
		lines[i] = padRight(l, width)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEditorPanel(height int) string {
	var header string
	if m.focusedPanel == FocusEditor {
		header = ui.PanelTitleActiveStyle.Render("TRANSCRIPT") + ui.DimStyle.Render(" editing")
	} else {
		header = ui.PanelTitleStyle.Render("TRANSCRIPT")
	}
	if m.renaming {
		header = m.rename.View()
	}
	body := m.editor.View()
	lines := append([]string{header}, strings.Split(body, "\n")...)
	if len(lines) > height {
		lines = lines[:height]
	}
	for i, l := range lines {
		lines[i] = " " + l
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderMessage() string {
	if m.errorMessage != "" {
		return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(strings.TrimPrefix(m.errorMessage, "Error: "))
	}
	if m.statusText != "" {
		return ui.SuccessTextStyle.Render(m.statusText)
	}
	return ""
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return ui.FooterKeyStyle.Render(k) + ui.FooterDescStyle.Render(" "+desc)
	}

	if m.renaming {
		return strings.Join([]string{key("Enter", "Save"), key("Esc", "Cancel")}, "  ")
	}
	if m.focusedPanel == FocusEditor {
		return strings.Join([]string{key("Tab", "Done editing"), key("Ctrl+C", "Quit")}, "  ")
	}

	record := "Record"
	switch m.dict.State() {
	case capture.Recording:
		record = "Pause"
	case capture.Paused:
		record = "Resume"
	}
	parts := []string{
		key("Space", record),
		key("s", "Stop"),
		key("c", "Continuous"),
		key("n", "New"),
		key("r", "Rename"),
		key("e", "Export"),
		key("x", "Clear"),
		key("Tab", "Edit"),
		key("j/k", "Nav"),
		key("q", "Quit"),
	}
	return strings.Join(parts, "  ")
}

// Helpers

func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncateToWidth(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}
