package tui

import (
	"github.com/nerrad567/area-fans/internal/aggregate"
	"github.com/nerrad567/area-fans/internal/configflow"
)

// FormLoadedMsg carries the form to edit.
type FormLoadedMsg struct {
	Form    *configflow.Form
	EntryID string
}

// SubmittedMsg is sent after the service accepted the selection.
type SubmittedMsg struct {
	Entry *configflow.Entry
}

// AggregatesLoadedMsg carries the current aggregate snapshots.
type AggregatesLoadedMsg struct {
	Aggregates []aggregate.Snapshot
}

// SwitchedMsg is sent after an aggregate switch command returned.
type SwitchedMsg struct {
	Snapshot *aggregate.Snapshot
}

// ErrorMsg reports a failed API call.
type ErrorMsg struct {
	Err error
}
