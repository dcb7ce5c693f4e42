package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nerrad567/area-fans/internal/configflow"
)

func loadFormCmd(c *Client) tea.Cmd {
	return func() tea.Msg {
		form, entryID, err := c.LoadForm(context.Background())
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return FormLoadedMsg{Form: form, EntryID: entryID}
	}
}

func submitCmd(c *Client, entryID string, input configflow.Input) tea.Cmd {
	return func() tea.Msg {
		entry, err := c.Submit(context.Background(), entryID, input)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return SubmittedMsg{Entry: entry}
	}
}

func loadAggregatesCmd(c *Client) tea.Cmd {
	return func() tea.Msg {
		snaps, err := c.Aggregates(context.Background())
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return AggregatesLoadedMsg{Aggregates: snaps}
	}
}

func switchCmd(c *Client, entityID string, on bool) tea.Cmd {
	return func() tea.Msg {
		snap, err := c.SetSwitch(context.Background(), entityID, on)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return SwitchedMsg{Snapshot: snap}
	}
}
