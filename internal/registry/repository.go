package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Repository persists the three directories.
type Repository interface {
	ListAreas(ctx context.Context) ([]Area, error)
	GetArea(ctx context.Context, id string) (*Area, error)
	CreateArea(ctx context.Context, area *Area) error
	DeleteArea(ctx context.Context, id string) error

	ListDevices(ctx context.Context) ([]Device, error)
	GetDevice(ctx context.Context, id string) (*Device, error)
	CreateDevice(ctx context.Context, device *Device) error
	DeleteDevice(ctx context.Context, id string) error

	ListEntities(ctx context.Context) ([]Entity, error)
	GetEntity(ctx context.Context, id string) (*Entity, error)
	UpsertEntity(ctx context.Context, entity *Entity) error
	DeleteEntity(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the areas, devices and
// entities tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ─── Areas ─────────────────────────────────────────────────────────

// ListAreas returns all areas ordered by name.
func (r *SQLiteRepository) ListAreas(ctx context.Context) ([]Area, error) {
	const query = `SELECT id, name, created_at, updated_at FROM areas ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying areas: %w", err)
	}
	defer rows.Close()

	var areas []Area
	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning area row: %w", err)
		}
		areas = append(areas, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating area rows: %w", err)
	}
	return areas, nil
}

// GetArea returns one area by ID.
func (r *SQLiteRepository) GetArea(ctx context.Context, id string) (*Area, error) {
	const query = `SELECT id, name, created_at, updated_at FROM areas WHERE id = ?`
	a, err := scanArea(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAreaNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting area %s: %w", id, err)
	}
	return a, nil
}

// CreateArea inserts an area, stamping its timestamps.
func (r *SQLiteRepository) CreateArea(ctx context.Context, area *Area) error {
	now := time.Now().UTC()
	area.CreatedAt, area.UpdatedAt = now, now

	const query = `INSERT INTO areas (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		area.ID, area.Name, formatTime(now), formatTime(now)); err != nil {
		return fmt.Errorf("inserting area %s: %w", area.ID, err)
	}
	return nil
}

// DeleteArea removes an area. Devices keep existing with no area.
func (r *SQLiteRepository) DeleteArea(ctx context.Context, id string) error {
	return r.deleteByID(ctx, `DELETE FROM areas WHERE id = ?`, id, ErrAreaNotFound)
}

func scanArea(s rowScanner) (*Area, error) {
	var (
		a                    Area
		createdAt, updatedAt string
	)
	if err := s.Scan(&a.ID, &a.Name, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	return &a, nil
}

// ─── Devices ───────────────────────────────────────────────────────

const deviceColumns = `id, name, area_id, manufacturer, model, created_at, updated_at`

// ListDevices returns all devices ordered by name.
func (r *SQLiteRepository) ListDevices(ctx context.Context) ([]Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return devices, nil
}

// GetDevice returns one device by ID.
func (r *SQLiteRepository) GetDevice(ctx context.Context, id string) (*Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`
	d, err := scanDevice(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDeviceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting device %s: %w", id, err)
	}
	return d, nil
}

// CreateDevice inserts a device, stamping its timestamps.
func (r *SQLiteRepository) CreateDevice(ctx context.Context, device *Device) error {
	now := time.Now().UTC()
	device.CreatedAt, device.UpdatedAt = now, now

	query := `INSERT INTO devices (` + deviceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query,
		device.ID, device.Name, nullStr(device.AreaID),
		nullStr(device.Manufacturer), nullStr(device.Model),
		formatTime(now), formatTime(now)); err != nil {
		return fmt.Errorf("inserting device %s: %w", device.ID, err)
	}
	return nil
}

// DeleteDevice removes a device. Its entities keep existing with no device.
func (r *SQLiteRepository) DeleteDevice(ctx context.Context, id string) error {
	return r.deleteByID(ctx, `DELETE FROM devices WHERE id = ?`, id, ErrDeviceNotFound)
}

func scanDevice(s rowScanner) (*Device, error) {
	var (
		d                         Device
		areaID, manufacturer, mdl sql.NullString
		createdAt, updatedAt      string
	)
	if err := s.Scan(&d.ID, &d.Name, &areaID, &manufacturer, &mdl, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.AreaID = strPtr(areaID)
	d.Manufacturer = strPtr(manufacturer)
	d.Model = strPtr(mdl)
	d.CreatedAt = parseTime(createdAt)
	d.UpdatedAt = parseTime(updatedAt)
	return &d, nil
}

// ─── Entities ──────────────────────────────────────────────────────

const entityColumns = `entity_id, unique_id, platform, name, original_name, area_id, device_id, created_at, updated_at`

// ListEntities returns all entities ordered by entity id.
func (r *SQLiteRepository) ListEntities(ctx context.Context) ([]Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities ORDER BY entity_id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity row: %w", err)
		}
		entities = append(entities, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entity rows: %w", err)
	}
	return entities, nil
}

// GetEntity returns one entity by entity id.
func (r *SQLiteRepository) GetEntity(ctx context.Context, id string) (*Entity, error) {
	query := `SELECT ` + entityColumns + ` FROM entities WHERE entity_id = ?`
	e, err := scanEntity(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting entity %s: %w", id, err)
	}
	return e, nil
}

// UpsertEntity inserts an entity or updates the existing row with the same
// entity id. The original created_at is kept on update, and so is a user
// name when the incoming entity has none.
func (r *SQLiteRepository) UpsertEntity(ctx context.Context, entity *Entity) error {
	now := time.Now().UTC()
	if entity.CreatedAt.IsZero() {
		entity.CreatedAt = now
	}
	entity.UpdatedAt = now

	query := `INSERT INTO entities (` + entityColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_id) DO UPDATE SET
			unique_id = excluded.unique_id,
			platform = excluded.platform,
			name = COALESCE(excluded.name, entities.name),
			original_name = excluded.original_name,
			area_id = excluded.area_id,
			device_id = excluded.device_id,
			updated_at = excluded.updated_at`
	if _, err := r.db.ExecContext(ctx, query,
		entity.ID, nullStr(entity.UniqueID), entity.Platform,
		nullStr(entity.Name), nullStr(entity.OriginalName),
		nullStr(entity.AreaID), nullStr(entity.DeviceID),
		formatTime(entity.CreatedAt), formatTime(now)); err != nil {
		return fmt.Errorf("upserting entity %s: %w", entity.ID, err)
	}
	return nil
}

// DeleteEntity removes an entity.
func (r *SQLiteRepository) DeleteEntity(ctx context.Context, id string) error {
	return r.deleteByID(ctx, `DELETE FROM entities WHERE entity_id = ?`, id, ErrEntityNotFound)
}

func scanEntity(s rowScanner) (*Entity, error) {
	var (
		e                            Entity
		uniqueID, name, originalName sql.NullString
		areaID, deviceID             sql.NullString
		createdAt, updatedAt         string
	)
	if err := s.Scan(&e.ID, &uniqueID, &e.Platform, &name, &originalName,
		&areaID, &deviceID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	e.UniqueID = strPtr(uniqueID)
	e.Name = strPtr(name)
	e.OriginalName = strPtr(originalName)
	e.AreaID = strPtr(areaID)
	e.DeviceID = strPtr(deviceID)
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

// ─── Helpers ───────────────────────────────────────────────────────

func (r *SQLiteRepository) deleteByID(ctx context.Context, query, id string, notFound error) error {
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deleting %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullStr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
