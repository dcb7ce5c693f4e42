// Package configflow implements the two-step configuration of the service:
// the one-time setup step that creates the single "area_fans" entry, and
// the options step that edits its exclusion list afterwards.
//
// Both steps present the same form: one multi-select field per area that
// holds fans, keyed by the area name, listing every fan of that area. A
// step called without input returns the form; called with input it
// validates the selection, persists it, and hands the new exclusion list
// to the change hook (normally aggregate.Manager.Reload).
//
// Entries are stored in the config_entries table with their data as JSON:
//
//	{"excluded_entities": ["fan.k1", "fan.b2"]}
package configflow
