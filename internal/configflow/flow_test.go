package configflow

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/nerrad567/area-fans/internal/registry"
)

type changeRecorder struct {
	calls [][]string
	err   error
}

func (c *changeRecorder) apply(_ context.Context, excluded []string) error {
	c.calls = append(c.calls, append([]string(nil), excluded...))
	return c.err
}

// newTestFlow seeds Kitchen (fan.k1 direct, fan.k2 via device), Bedroom
// (fan.b1), an empty Garage and an "area_Loft" area with fan.l1.
func newTestFlow(t *testing.T) (*Flow, *changeRecorder) {
	t.Helper()
	db := setupTestDB(t)
	reg := registry.NewRegistry(registry.NewSQLiteRepository(db))
	ctx := context.Background()

	for _, a := range []registry.Area{
		{ID: "kitchen", Name: "Kitchen"},
		{ID: "bedroom", Name: "Bedroom"},
		{ID: "garage", Name: "Garage"},
		{ID: "loft", Name: "area_Loft"},
	} {
		if err := reg.CreateArea(ctx, &a); err != nil {
			t.Fatalf("CreateArea(%s): %v", a.ID, err)
		}
	}
	if err := reg.CreateDevice(ctx, &registry.Device{ID: "dev-k2", Name: "Extractor", AreaID: registry.StrPtr("kitchen")}); err != nil {
		t.Fatalf("CreateDevice: %v", err)
	}
	for _, e := range []registry.Entity{
		{ID: "fan.k1", Platform: "esphome", Name: registry.StrPtr("Ceiling"), AreaID: registry.StrPtr("kitchen")},
		{ID: "fan.k2", Platform: "esphome", OriginalName: registry.StrPtr("Extractor"), DeviceID: registry.StrPtr("dev-k2")},
		{ID: "fan.b1", Platform: "esphome", Name: registry.StrPtr("Bedroom Fan"), AreaID: registry.StrPtr("bedroom")},
		{ID: "fan.l1", Platform: "esphome", AreaID: registry.StrPtr("loft")},
		{ID: "light.k1", Platform: "esphome", AreaID: registry.StrPtr("kitchen")},
	} {
		if err := reg.RegisterEntity(ctx, &e); err != nil {
			t.Fatalf("RegisterEntity(%s): %v", e.ID, err)
		}
	}

	flow := NewFlow(reg, NewSQLiteRepository(db), Options{})
	rec := &changeRecorder{}
	flow.SetOnChange(rec.apply)
	return flow, rec
}

func fieldKeys(form *Form) []string {
	keys := make([]string, 0, len(form.Fields))
	for _, f := range form.Fields {
		keys = append(keys, f.Key)
	}
	return keys
}

func TestStepUser_ShowsForm(t *testing.T) {
	flow, rec := newTestFlow(t)

	res, err := flow.StepUser(context.Background(), nil)
	if err != nil {
		t.Fatalf("StepUser: %v", err)
	}
	if res.Type != ResultForm || res.Form == nil {
		t.Fatalf("result = %+v, want form", res)
	}
	if len(rec.calls) != 0 {
		t.Error("showing the form should not apply anything")
	}

	if got, want := fieldKeys(res.Form), []string{"Bedroom", "Kitchen", "area_Loft"}; !reflect.DeepEqual(got, want) {
		t.Errorf("field keys = %v, want %v", got, want)
	}

	loft := res.Form.Fields[2]
	if loft.Label != "Loft" {
		t.Errorf("loft label = %q, want %q", loft.Label, "Loft")
	}
	kitchen := res.Form.Fields[1]
	wantOptions := []Option{
		{Value: "fan.k1", Label: "Ceiling (fan.k1)"},
		{Value: "fan.k2", Label: "Extractor (fan.k2)"},
	}
	if !reflect.DeepEqual(kitchen.Options, wantOptions) {
		t.Errorf("kitchen options = %+v, want %+v", kitchen.Options, wantOptions)
	}
	if len(kitchen.Default) != 0 {
		t.Errorf("kitchen default = %v, want empty", kitchen.Default)
	}

	if !strings.HasPrefix(res.Form.Description, "Fans detected by room (Total: 4):") {
		t.Errorf("description = %q", res.Form.Description)
	}
	if !strings.Contains(res.Form.Description, "\nKitchen:\n  • Ceiling (fan.k1)\n  • Extractor (fan.k2)") {
		t.Errorf("description missing kitchen listing: %q", res.Form.Description)
	}
}

func TestStepUser_CreatesEntry(t *testing.T) {
	flow, rec := newTestFlow(t)
	ctx := context.Background()

	res, err := flow.StepUser(ctx, Input{
		"Kitchen":   {"fan.k2"},
		"area_Loft": {"fan.l1"},
		"Bedroom":   {},
	})
	if err != nil {
		t.Fatalf("StepUser: %v", err)
	}
	if res.Type != ResultCreateEntry || res.Entry == nil {
		t.Fatalf("result = %+v, want create_entry", res)
	}
	want := []string{"fan.k2", "fan.l1"}
	if !reflect.DeepEqual(res.Entry.Data.ExcludedEntities, want) {
		t.Errorf("ExcludedEntities = %v, want %v", res.Entry.Data.ExcludedEntities, want)
	}
	if res.Entry.Title != Title || res.Entry.Domain != Domain {
		t.Errorf("entry = %+v", res.Entry)
	}
	if len(rec.calls) != 1 || !reflect.DeepEqual(rec.calls[0], want) {
		t.Errorf("change calls = %v, want [%v]", rec.calls, want)
	}

	current, err := flow.Current(ctx)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if current.ID != res.Entry.ID {
		t.Errorf("Current ID = %q, want %q", current.ID, res.Entry.ID)
	}
}

func TestStepUser_SingleInstance(t *testing.T) {
	flow, _ := newTestFlow(t)
	ctx := context.Background()

	if _, err := flow.StepUser(ctx, Input{}); err != nil {
		t.Fatalf("first StepUser: %v", err)
	}

	for _, input := range []Input{nil, {}} {
		res, err := flow.StepUser(ctx, input)
		if err != nil {
			t.Fatalf("second StepUser: %v", err)
		}
		if res.Type != ResultAbort || res.Reason != ReasonSingleInstance {
			t.Errorf("result = %+v, want abort %s", res, ReasonSingleInstance)
		}
	}

	entries, err := flow.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("entries = %d, want 1", len(entries))
	}
}

func TestStepUser_InvalidSelection(t *testing.T) {
	tests := []struct {
		name  string
		input Input
	}{
		{"unknown field", Input{"Garage": {"fan.k1"}}},
		{"fan of another area", Input{"Kitchen": {"fan.b1"}}},
		{"not a fan", Input{"Kitchen": {"light.k1"}}},
		{"label instead of key", Input{"Loft": {"fan.l1"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow, rec := newTestFlow(t)
			_, err := flow.StepUser(context.Background(), tt.input)
			if !errors.Is(err, ErrInvalidSelection) {
				t.Errorf("StepUser error = %v, want ErrInvalidSelection", err)
			}
			if len(rec.calls) != 0 {
				t.Error("invalid input should not apply anything")
			}
		})
	}
}

func TestStepInit_RoundTrip(t *testing.T) {
	flow, rec := newTestFlow(t)
	ctx := context.Background()

	created, err := flow.StepUser(ctx, Input{"Kitchen": {"fan.k1"}})
	if err != nil {
		t.Fatalf("StepUser: %v", err)
	}
	entryID := created.Entry.ID

	res, err := flow.StepInit(ctx, entryID, nil)
	if err != nil {
		t.Fatalf("StepInit form: %v", err)
	}
	if res.Type != ResultForm || res.StepID != StepInit {
		t.Fatalf("result = %+v, want init form", res)
	}
	for _, f := range res.Form.Fields {
		want := []string{}
		if f.Key == "Kitchen" {
			want = []string{"fan.k1"}
		}
		if !reflect.DeepEqual(f.Default, want) {
			t.Errorf("%s default = %v, want %v", f.Key, f.Default, want)
		}
	}

	res, err = flow.StepInit(ctx, entryID, Input{"Bedroom": {"fan.b1"}})
	if err != nil {
		t.Fatalf("StepInit submit: %v", err)
	}
	if res.Type != ResultCreateEntry {
		t.Fatalf("result = %+v, want create_entry", res)
	}
	if got := res.Entry.Data.ExcludedEntities; !reflect.DeepEqual(got, []string{"fan.b1"}) {
		t.Errorf("ExcludedEntities = %v, want [fan.b1]", got)
	}
	if len(rec.calls) != 2 || !reflect.DeepEqual(rec.calls[1], []string{"fan.b1"}) {
		t.Errorf("change calls = %v", rec.calls)
	}

	if err := flow.Reload(ctx, entryID); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if len(rec.calls) != 3 || !reflect.DeepEqual(rec.calls[2], []string{"fan.b1"}) {
		t.Errorf("change calls after reload = %v", rec.calls)
	}
}

func TestStepInit_DropsStaleDefaults(t *testing.T) {
	flow, _ := newTestFlow(t)
	ctx := context.Background()

	entry := &Entry{
		ID:      "entry-1",
		Domain:  Domain,
		Title:   Title,
		Version: Version,
		Data:    Data{ExcludedEntities: []string{"fan.gone", "fan.b1"}},
	}
	if err := flow.repo.CreateEntry(ctx, entry); err != nil {
		t.Fatalf("CreateEntry: %v", err)
	}

	res, err := flow.StepInit(ctx, "entry-1", nil)
	if err != nil {
		t.Fatalf("StepInit: %v", err)
	}
	var defaults []string
	for _, f := range res.Form.Fields {
		defaults = append(defaults, f.Default...)
	}
	if !reflect.DeepEqual(defaults, []string{"fan.b1"}) {
		t.Errorf("defaults = %v, want [fan.b1]", defaults)
	}
}

func TestStepInit_Errors(t *testing.T) {
	flow, rec := newTestFlow(t)
	ctx := context.Background()

	if _, err := flow.StepInit(ctx, "missing", nil); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("StepInit missing error = %v, want ErrEntryNotFound", err)
	}

	created, err := flow.StepUser(ctx, Input{})
	if err != nil {
		t.Fatalf("StepUser: %v", err)
	}

	rec.err = errors.New("reload failed")
	if _, err := flow.StepInit(ctx, created.Entry.ID, Input{}); !errors.Is(err, rec.err) {
		t.Errorf("StepInit error = %v, want wrapped %v", err, rec.err)
	}
}

func TestRemoveEntry(t *testing.T) {
	flow, _ := newTestFlow(t)
	ctx := context.Background()

	created, err := flow.StepUser(ctx, Input{})
	if err != nil {
		t.Fatalf("StepUser: %v", err)
	}
	if err := flow.RemoveEntry(ctx, created.Entry.ID); err != nil {
		t.Fatalf("RemoveEntry: %v", err)
	}
	if _, err := flow.Current(ctx); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("Current error = %v, want ErrEntryNotFound", err)
	}

	res, err := flow.StepUser(ctx, nil)
	if err != nil {
		t.Fatalf("StepUser after remove: %v", err)
	}
	if res.Type != ResultForm {
		t.Errorf("result type = %q, want form", res.Type)
	}
}

func TestDisplayName(t *testing.T) {
	tests := []struct {
		area, prefix, want string
	}{
		{"area_Kitchen", "area_", "Kitchen"},
		{"AREA_Kitchen", "area_", "Kitchen"},
		{"Kitchen", "area_", "Kitchen"},
		{"area", "area_", "area"},
		{"zone-Loft", "zone-", "Loft"},
		{"Kitchen", "", "Kitchen"},
	}
	for _, tt := range tests {
		if got := DisplayName(tt.area, tt.prefix); got != tt.want {
			t.Errorf("DisplayName(%q, %q) = %q, want %q", tt.area, tt.prefix, got, tt.want)
		}
	}
}
