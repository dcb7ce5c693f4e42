package configflow

import "time"

// Identity of the single configuration entry.
const (
	Domain  = "area_fans"
	Title   = "Area Fans"
	Version = 1
)

// Step ids.
const (
	StepUser = "user"
	StepInit = "init"
)

// ReasonSingleInstance is the abort reason when an entry already exists.
const ReasonSingleInstance = "single_instance_allowed"

// DefaultAreaPrefix is stripped from area names in field labels.
const DefaultAreaPrefix = "area_"

// Data is the persisted configuration.
type Data struct {
	ExcludedEntities []string `json:"excluded_entities"`
}

// Entry is a persisted configuration record.
type Entry struct {
	ID        string    `json:"entry_id"`
	Domain    string    `json:"domain"`
	Title     string    `json:"title"`
	Version   int       `json:"version"`
	Data      Data      `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ResultType says what a step produced.
type ResultType string

// Step result types.
const (
	ResultForm        ResultType = "form"
	ResultCreateEntry ResultType = "create_entry"
	ResultAbort       ResultType = "abort"
)

// Result is the outcome of one step call.
type Result struct {
	Type   ResultType `json:"type"`
	StepID string     `json:"step_id,omitempty"`
	Form   *Form      `json:"form,omitempty"`
	Entry  *Entry     `json:"entry,omitempty"`
	Reason string     `json:"reason,omitempty"`
}

// Form is the selection form of both steps.
type Form struct {
	StepID      string  `json:"step_id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Fields      []Field `json:"fields"`
}

// Field is one multi-select, one per area with fans.
type Field struct {
	// Key is the area name and is what input must use.
	Key     string   `json:"key"`
	Label   string   `json:"label"`
	Options []Option `json:"options"`
	Default []string `json:"default"`
}

// Option is one selectable fan.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Input maps field keys to the selected option values.
type Input map[string][]string
