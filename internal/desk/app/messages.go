package app

import "github.com/snarg/case-register/internal/desk"

// DeskEventMsg wraps an event from the dictation controller.
type DeskEventMsg struct {
	Event desk.Event
}

// EventsClosedMsg is sent once the controller's event channel closes.
type EventsClosedMsg struct{}

// ExportedMsg carries the outcome of an export.
type ExportedMsg struct {
	Path string
	Err  error
}

// ClearStatusMsg clears the transient status line if it is still the one
// identified by Seq.
type ClearStatusMsg struct {
	Seq int
}
