package configflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nerrad567/area-fans/internal/registry"
	"github.com/nerrad567/area-fans/internal/resolver"
)

// Directory supplies the registry snapshot the form is built from.
type Directory interface {
	Snapshot(ctx context.Context) (registry.Snapshot, error)
}

// ChangeFunc applies a new exclusion list to the running service.
type ChangeFunc func(ctx context.Context, excluded []string) error

// Logger is the logging surface of the flow.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}

// Options tune how fans are found and how areas are labelled.
type Options struct {
	// DomainPrefix selects fan entities; empty means "fan.".
	DomainPrefix string
	// AreaPrefix is stripped from labels; empty means "area_".
	AreaPrefix string
}

// Flow runs the setup and options steps. Steps are serialised.
type Flow struct {
	dir      Directory
	repo     Repository
	opts     Options
	onChange ChangeFunc
	logger   Logger
	newID    func() string

	mu sync.Mutex
}

// NewFlow creates a flow over dir and repo.
func NewFlow(dir Directory, repo Repository, opts Options) *Flow {
	if opts.AreaPrefix == "" {
		opts.AreaPrefix = DefaultAreaPrefix
	}
	return &Flow{
		dir:    dir,
		repo:   repo,
		opts:   opts,
		logger: noopLogger{},
		newID:  func() string { return uuid.New().String() },
	}
}

// SetLogger sets the logger for flow events.
func (f *Flow) SetLogger(logger Logger) {
	f.logger = logger
}

// SetOnChange sets the hook run after an entry is created or its options
// are saved.
func (f *Flow) SetOnChange(fn ChangeFunc) {
	f.onChange = fn
}

// StepUser is the one-time setup step. It aborts when an entry exists.
// Without input it returns the form with nothing preselected; with input
// it creates the entry and applies it.
func (f *Flow) StepUser(ctx context.Context, input Input) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, err := f.repo.GetEntryByDomain(ctx, Domain)
	switch {
	case err == nil:
		return &Result{Type: ResultAbort, StepID: StepUser, Reason: ReasonSingleInstance}, nil
	case !errors.Is(err, ErrEntryNotFound):
		return nil, err
	}

	buckets, err := f.populated(ctx)
	if err != nil {
		return nil, err
	}

	if input == nil {
		return &Result{Type: ResultForm, StepID: StepUser, Form: f.buildForm(StepUser, buckets, nil)}, nil
	}

	excluded, err := collect(buckets, input)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		ID:      f.newID(),
		Domain:  Domain,
		Title:   Title,
		Version: Version,
		Data:    Data{ExcludedEntities: excluded},
	}
	if err := f.repo.CreateEntry(ctx, entry); err != nil {
		if errors.Is(err, ErrEntryExists) {
			return &Result{Type: ResultAbort, StepID: StepUser, Reason: ReasonSingleInstance}, nil
		}
		return nil, err
	}
	f.logger.Info("config entry created", "entry_id", entry.ID, "excluded", len(excluded))

	if err := f.apply(ctx, excluded); err != nil {
		return nil, err
	}
	return &Result{Type: ResultCreateEntry, StepID: StepUser, Entry: entry}, nil
}

// StepInit is the options step of an existing entry. Without input it
// returns the form preselected with the persisted exclusions; ids that no
// longer belong to any listed fan are dropped from the defaults. With
// input it overwrites the exclusion list and applies it.
func (f *Flow) StepInit(ctx context.Context, entryID string, input Input) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.repo.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}

	buckets, err := f.populated(ctx)
	if err != nil {
		return nil, err
	}

	if input == nil {
		form := f.buildForm(StepInit, buckets, entry.Data.ExcludedEntities)
		return &Result{Type: ResultForm, StepID: StepInit, Form: form}, nil
	}

	excluded, err := collect(buckets, input)
	if err != nil {
		return nil, err
	}

	entry.Data.ExcludedEntities = excluded
	if err := f.repo.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}
	f.logger.Info("config entry options saved", "entry_id", entry.ID, "excluded", len(excluded))

	if err := f.apply(ctx, excluded); err != nil {
		return nil, err
	}
	return &Result{Type: ResultCreateEntry, StepID: StepInit, Entry: entry}, nil
}

// Entries returns every persisted entry.
func (f *Flow) Entries(ctx context.Context) ([]Entry, error) {
	return f.repo.ListEntries(ctx)
}

// Current returns the entry of the domain or ErrEntryNotFound.
func (f *Flow) Current(ctx context.Context) (*Entry, error) {
	return f.repo.GetEntryByDomain(ctx, Domain)
}

// Reload re-applies the persisted exclusion list of an entry.
func (f *Flow) Reload(ctx context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.repo.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	return f.apply(ctx, entry.Data.ExcludedEntities)
}

// RemoveEntry deletes an entry. A later StepUser can create a new one.
func (f *Flow) RemoveEntry(ctx context.Context, entryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.repo.DeleteEntry(ctx, entryID); err != nil {
		return err
	}
	f.logger.Info("config entry removed", "entry_id", entryID)
	return nil
}

func (f *Flow) apply(ctx context.Context, excluded []string) error {
	if f.onChange == nil {
		return nil
	}
	if err := f.onChange(ctx, excluded); err != nil {
		return fmt.Errorf("applying configuration: %w", err)
	}
	return nil
}

// populated resolves every fan, nothing excluded, and keeps the areas that
// hold at least one.
func (f *Flow) populated(ctx context.Context) ([]resolver.AreaFans, error) {
	snap, err := f.dir.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading entity directory: %w", err)
	}
	buckets := resolver.Populated(resolver.Resolve(snap, nil, resolver.Options{DomainPrefix: f.opts.DomainPrefix}))
	f.logger.Debug("fans found for configuration", "areas", len(buckets), "fans", resolver.Count(buckets))
	return buckets, nil
}

func (f *Flow) buildForm(stepID string, buckets []resolver.AreaFans, excluded []string) *Form {
	skip := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}

	form := &Form{
		StepID:      stepID,
		Title:       Title,
		Description: Describe(buckets),
		Fields:      make([]Field, 0, len(buckets)),
	}
	for _, b := range buckets {
		field := Field{
			Key:     b.Area,
			Label:   DisplayName(b.Area, f.opts.AreaPrefix),
			Options: make([]Option, 0, len(b.Included)),
			Default: []string{},
		}
		for _, fan := range b.Included {
			field.Options = append(field.Options, Option{
				Value: fan.ID,
				Label: fan.Name + " (" + fan.ID + ")",
			})
			if _, ok := skip[fan.ID]; ok {
				field.Default = append(field.Default, fan.ID)
			}
		}
		form.Fields = append(form.Fields, field)
	}
	return form
}

// collect flattens input into one exclusion list, area by area in form
// order. Unknown fields and values not offered by their field are
// rejected.
func collect(buckets []resolver.AreaFans, input Input) ([]string, error) {
	offered := make(map[string]map[string]struct{}, len(buckets))
	for _, b := range buckets {
		ids := make(map[string]struct{}, len(b.Included))
		for _, fan := range b.Included {
			ids[fan.ID] = struct{}{}
		}
		offered[b.Area] = ids
	}

	for key, values := range input {
		ids, ok := offered[key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown field %q", ErrInvalidSelection, key)
		}
		for _, v := range values {
			if _, ok := ids[v]; !ok {
				return nil, fmt.Errorf("%w: %q is not a fan of %q", ErrInvalidSelection, v, key)
			}
		}
	}

	excluded := []string{}
	seen := make(map[string]struct{})
	for _, b := range buckets {
		for _, v := range input[b.Area] {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			excluded = append(excluded, v)
		}
	}
	return excluded, nil
}

// DisplayName strips prefix from area, ignoring case.
func DisplayName(area, prefix string) string {
	if prefix != "" && len(area) >= len(prefix) && strings.EqualFold(area[:len(prefix)], prefix) {
		return area[len(prefix):]
	}
	return area
}

// Describe renders the fan listing shown above the form:
//
//	Fans detected by room (Total: 2):
//
//	Kitchen:
//	  • Ceiling (fan.k1)
//	  • Extractor (fan.k2)
func Describe(buckets []resolver.AreaFans) string {
	var lines []string
	total := 0
	for _, b := range buckets {
		lines = append(lines, "\n"+b.Area+":")
		for _, fan := range append(append([]resolver.Fan(nil), b.Included...), b.Excluded...) {
			lines = append(lines, "  • "+fan.Name+" ("+fan.ID+")")
			total++
		}
	}
	return "Fans detected by room (Total: " + strconv.Itoa(total) + "):\n" + strings.Join(lines, "\n")
}
