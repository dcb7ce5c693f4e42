package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Logger is the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry caches the three directories over a Repository. Writes go to
// the repository first and update the cache on success.
//
// All methods are safe for concurrent use.
type Registry struct {
	repo   Repository
	logger Logger

	mu       sync.RWMutex
	loaded   bool
	areas    map[string]Area
	devices  map[string]Device
	entities map[string]Entity
}

// NewRegistry creates a Registry backed by repo. Call RefreshCache before
// the first Snapshot, or let Snapshot load lazily.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:     repo,
		logger:   noopLogger{},
		areas:    make(map[string]Area),
		devices:  make(map[string]Device),
		entities: make(map[string]Entity),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// RefreshCache reloads every directory from the repository.
func (r *Registry) RefreshCache(ctx context.Context) error {
	areas, err := r.repo.ListAreas(ctx)
	if err != nil {
		return fmt.Errorf("loading areas: %w", err)
	}
	devices, err := r.repo.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}
	entities, err := r.repo.ListEntities(ctx)
	if err != nil {
		return fmt.Errorf("loading entities: %w", err)
	}

	r.mu.Lock()
	r.areas = make(map[string]Area, len(areas))
	for _, a := range areas {
		r.areas[a.ID] = a
	}
	r.devices = make(map[string]Device, len(devices))
	for _, d := range devices {
		r.devices[d.ID] = d.clone()
	}
	r.entities = make(map[string]Entity, len(entities))
	for _, e := range entities {
		r.entities[e.ID] = e.clone()
	}
	r.loaded = true
	r.mu.Unlock()

	r.logger.Info("registry cache refreshed",
		"areas", len(areas), "devices", len(devices), "entities", len(entities))
	return nil
}

func (r *Registry) ensureLoaded(ctx context.Context) error {
	r.mu.RLock()
	loaded := r.loaded
	r.mu.RUnlock()
	if loaded {
		return nil
	}
	return r.RefreshCache(ctx)
}

// Snapshot returns a copy of all directories, each sorted by ID.
func (r *Registry) Snapshot(ctx context.Context) (Snapshot, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return Snapshot{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := Snapshot{
		Areas:    make([]Area, 0, len(r.areas)),
		Devices:  make([]Device, 0, len(r.devices)),
		Entities: make([]Entity, 0, len(r.entities)),
	}
	for _, a := range r.areas {
		snap.Areas = append(snap.Areas, a)
	}
	for _, d := range r.devices {
		snap.Devices = append(snap.Devices, d.clone())
	}
	for _, e := range r.entities {
		snap.Entities = append(snap.Entities, e.clone())
	}

	sort.Slice(snap.Areas, func(i, j int) bool { return snap.Areas[i].ID < snap.Areas[j].ID })
	sort.Slice(snap.Devices, func(i, j int) bool { return snap.Devices[i].ID < snap.Devices[j].ID })
	sort.Slice(snap.Entities, func(i, j int) bool { return snap.Entities[i].ID < snap.Entities[j].ID })
	return snap, nil
}

// ─── Areas ─────────────────────────────────────────────────────────

// ListAreas returns all areas sorted by name.
func (r *Registry) ListAreas(ctx context.Context) ([]Area, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(snap.Areas, func(i, j int) bool { return snap.Areas[i].Name < snap.Areas[j].Name })
	return snap.Areas, nil
}

// GetArea returns an area by ID or ErrAreaNotFound.
func (r *Registry) GetArea(ctx context.Context, id string) (*Area, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	a, ok := r.areas[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrAreaNotFound
	}
	return &a, nil
}

// CreateArea validates and stores a new area.
func (r *Registry) CreateArea(ctx context.Context, area *Area) error {
	if err := ValidateArea(area); err != nil {
		return err
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := r.repo.CreateArea(ctx, area); err != nil {
		return err
	}

	r.mu.Lock()
	r.areas[area.ID] = *area
	r.mu.Unlock()

	r.logger.Debug("area created", "id", area.ID, "name", area.Name)
	return nil
}

// DeleteArea removes an area. Devices that pointed at it lose their area.
func (r *Registry) DeleteArea(ctx context.Context, id string) error {
	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := r.repo.DeleteArea(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.areas, id)
	for devID, d := range r.devices {
		if d.AreaID != nil && *d.AreaID == id {
			d.AreaID = nil
			r.devices[devID] = d
		}
	}
	r.mu.Unlock()

	r.logger.Debug("area deleted", "id", id)
	return nil
}

// ─── Devices ───────────────────────────────────────────────────────

// ListDevices returns all devices sorted by name.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(snap.Devices, func(i, j int) bool { return snap.Devices[i].Name < snap.Devices[j].Name })
	return snap.Devices, nil
}

// GetDevice returns a device by ID or ErrDeviceNotFound.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	d, ok := r.devices[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrDeviceNotFound
	}
	d = d.clone()
	return &d, nil
}

// CreateDevice validates and stores a new device. A non-nil AreaID must
// reference an existing area.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	if err := ValidateDevice(device); err != nil {
		return err
	}
	if device.AreaID != nil {
		if _, err := r.GetArea(ctx, *device.AreaID); err != nil {
			return fmt.Errorf("device %s: %w", device.ID, err)
		}
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := r.repo.CreateDevice(ctx, device); err != nil {
		return err
	}

	r.mu.Lock()
	r.devices[device.ID] = device.clone()
	r.mu.Unlock()

	r.logger.Debug("device created", "id", device.ID)
	return nil
}

// DeleteDevice removes a device. Entities that pointed at it lose their device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := r.repo.DeleteDevice(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.devices, id)
	for entID, e := range r.entities {
		if e.DeviceID != nil && *e.DeviceID == id {
			e.DeviceID = nil
			r.entities[entID] = e
		}
	}
	r.mu.Unlock()

	r.logger.Debug("device deleted", "id", id)
	return nil
}

// ─── Entities ──────────────────────────────────────────────────────

// ListEntities returns all entities sorted by entity id.
func (r *Registry) ListEntities(ctx context.Context) ([]Entity, error) {
	snap, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Entities, nil
}

// GetEntity returns an entity by id or ErrEntityNotFound.
func (r *Registry) GetEntity(ctx context.Context, id string) (*Entity, error) {
	if err := r.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	e, ok := r.entities[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrEntityNotFound
	}
	e = e.clone()
	return &e, nil
}

// RegisterEntity creates or replaces an entity entry. A registration
// without a name keeps the name already stored. The referenced area is not
// checked: an entity pointing at a missing area is stored and later
// treated as unresolved.
func (r *Registry) RegisterEntity(ctx context.Context, entity *Entity) error {
	if err := ValidateEntity(entity); err != nil {
		return err
	}
	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}

	r.mu.RLock()
	if existing, ok := r.entities[entity.ID]; ok {
		if entity.CreatedAt.IsZero() {
			entity.CreatedAt = existing.CreatedAt
		}
		if entity.Name == nil && existing.Name != nil {
			entity.Name = StrPtr(*existing.Name)
		}
	}
	r.mu.RUnlock()

	if err := r.repo.UpsertEntity(ctx, entity); err != nil {
		return err
	}

	r.mu.Lock()
	r.entities[entity.ID] = entity.clone()
	r.mu.Unlock()

	r.logger.Debug("entity registered", "entity_id", entity.ID, "platform", entity.Platform)
	return nil
}

// RemoveEntity deletes an entity entry or returns ErrEntityNotFound.
func (r *Registry) RemoveEntity(ctx context.Context, id string) error {
	if err := r.ensureLoaded(ctx); err != nil {
		return err
	}
	if err := r.repo.DeleteEntity(ctx, id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.entities, id)
	r.mu.Unlock()

	r.logger.Debug("entity removed", "entity_id", id)
	return nil
}
