package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nerrad567/area-fans/internal/aggregate"
	"github.com/nerrad567/area-fans/internal/configflow"
)

// Screen identifies the active view.
type Screen int

const (
	ScreenForm Screen = iota
	ScreenAggregates
)

// item is one selectable fan on the form screen.
type item struct {
	field  int
	option int
}

// Model is the root bubbletea model.
type Model struct {
	client *Client
	screen Screen

	form     *configflow.Form
	entryID  string
	items    []item
	excluded map[string]map[string]bool
	cursor   int

	aggregates []aggregate.Snapshot
	aggCursor  int

	loading bool
	status  string
	err     error
	width   int
	height  int
}

// NewModel creates the root model.
func NewModel(client *Client) Model {
	return Model{
		client:   client,
		screen:   ScreenForm,
		excluded: make(map[string]map[string]bool),
		loading:  true,
	}
}

// Init starts loading the form and the aggregates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.SetWindowTitle(configflow.Title),
		loadFormCmd(m.client),
		loadAggregatesCmd(m.client),
	)
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case FormLoadedMsg:
		m.loading = false
		m.err = nil
		m.setForm(msg.Form, msg.EntryID)

	case SubmittedMsg:
		m.loading = false
		m.err = nil
		if msg.Entry != nil {
			m.entryID = msg.Entry.ID
			m.status = fmt.Sprintf("Saved: %d fan(s) excluded", len(msg.Entry.Data.ExcludedEntities))
		}
		return m, loadAggregatesCmd(m.client)

	case AggregatesLoadedMsg:
		m.aggregates = msg.Aggregates
		if m.aggCursor >= len(m.aggregates) {
			m.aggCursor = max(len(m.aggregates)-1, 0)
		}

	case SwitchedMsg:
		if msg.Snapshot != nil {
			m.status = fmt.Sprintf("%s is %s", msg.Snapshot.Name, msg.Snapshot.State)
		}
		return m, loadAggregatesCmd(m.client)

	case ErrorMsg:
		m.loading = false
		m.err = msg.Err
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "tab":
		if m.screen == ScreenForm {
			m.screen = ScreenAggregates
		} else {
			m.screen = ScreenForm
		}
		return m, nil
	case "r":
		m.status = ""
		return m, tea.Batch(loadFormCmd(m.client), loadAggregatesCmd(m.client))
	}

	if m.screen == ScreenAggregates {
		return m.handleAggregateKey(msg)
	}
	return m.handleFormKey(msg)
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(m.items)-1 {
			m.cursor++
		}
	case " ":
		if m.cursor < len(m.items) {
			field, value := m.itemAt(m.cursor)
			m.excluded[field][value] = !m.excluded[field][value]
		}
	case "enter":
		if m.form == nil || m.loading {
			return m, nil
		}
		m.loading = true
		m.status = ""
		return m, submitCmd(m.client, m.entryID, m.Input())
	}
	return m, nil
}

func (m Model) handleAggregateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.aggCursor > 0 {
			m.aggCursor--
		}
	case "down", "j":
		if m.aggCursor < len(m.aggregates)-1 {
			m.aggCursor++
		}
	case " ", "enter":
		if m.aggCursor >= len(m.aggregates) {
			return m, nil
		}
		snap := m.aggregates[m.aggCursor]
		if snap.Kind != aggregate.KindSwitch {
			return m, nil
		}
		return m, switchCmd(m.client, snap.EntityID, !snap.IsOn())
	}
	return m, nil
}

// setForm replaces the form and seeds the selection from its defaults.
func (m *Model) setForm(form *configflow.Form, entryID string) {
	m.form = form
	m.entryID = entryID
	m.items = nil
	m.excluded = make(map[string]map[string]bool)
	m.cursor = 0
	if form == nil {
		return
	}
	for fi, field := range form.Fields {
		selected := make(map[string]bool, len(field.Default))
		for _, v := range field.Default {
			selected[v] = true
		}
		m.excluded[field.Key] = selected
		for oi := range field.Options {
			m.items = append(m.items, item{field: fi, option: oi})
		}
	}
}

func (m Model) itemAt(i int) (string, string) {
	it := m.items[i]
	field := m.form.Fields[it.field]
	return field.Key, field.Options[it.option].Value
}

// Input returns the current selection in the shape the flow expects: every
// field key present, values in option order.
func (m Model) Input() configflow.Input {
	input := make(configflow.Input)
	if m.form == nil {
		return input
	}
	for _, field := range m.form.Fields {
		values := make([]string, 0, len(field.Options))
		for _, opt := range field.Options {
			if m.excluded[field.Key][opt.Value] {
				values = append(values, opt.Value)
			}
		}
		input[field.Key] = values
	}
	return input
}

// View renders the active screen.
func (m Model) View() string {
	var b strings.Builder

	switch m.screen {
	case ScreenAggregates:
		b.WriteString(styleHeader.Render(configflow.Title + " · Aggregates"))
		b.WriteString("\n")
		b.WriteString(m.viewAggregates())
		b.WriteString(styleHelp.Render("↑/↓ move · space toggle switch · tab form · r refresh · q quit"))
	default:
		b.WriteString(styleHeader.Render(configflow.Title + " · Exclusions"))
		b.WriteString("\n")
		b.WriteString(m.viewForm())
		b.WriteString(styleHelp.Render("↑/↓ move · space exclude · enter save · tab aggregates · r refresh · q quit"))
	}

	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(styleStatus.Render(m.status))
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(styleError.Render("Error: " + m.err.Error()))
	}
	return b.String()
}

func (m Model) viewForm() string {
	if m.loading && m.form == nil {
		return "Loading...\n"
	}
	if m.form == nil {
		return "No form available.\n"
	}
	if len(m.form.Fields) == 0 {
		return "No fans found in any area.\n"
	}

	var b strings.Builder
	idx := 0
	for _, field := range m.form.Fields {
		b.WriteString(styleArea.Render(field.Label))
		b.WriteString("\n")
		for _, opt := range field.Options {
			cursor := "  "
			if idx == m.cursor {
				cursor = styleCursor.Render("> ")
			}
			box := "[ ]"
			label := styleFan.Render(opt.Label)
			if m.excluded[field.Key][opt.Value] {
				box = "[x]"
				label = styleExcluded.Render(opt.Label)
			}
			fmt.Fprintf(&b, "%s%s %s\n", cursor, box, label)
			idx++
		}
	}
	return b.String()
}

func (m Model) viewAggregates() string {
	if len(m.aggregates) == 0 {
		return "No aggregates.\n"
	}

	var b strings.Builder
	for i, snap := range m.aggregates {
		cursor := "  "
		if i == m.aggCursor {
			cursor = styleCursor.Render("> ")
		}
		state := styleOff.Render(snap.State)
		if snap.IsOn() {
			state = styleOn.Render(snap.State)
		}
		fmt.Fprintf(&b, "%s%-7s %-24s %-5s %s\n",
			cursor, snap.Kind, snap.Name, snap.Attributes.CountOf, state)
	}
	return b.String()
}
