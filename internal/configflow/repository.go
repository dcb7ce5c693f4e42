package configflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

// Repository persists configuration entries.
type Repository interface {
	ListEntries(ctx context.Context) ([]Entry, error)
	GetEntry(ctx context.Context, id string) (*Entry, error)
	GetEntryByDomain(ctx context.Context, domain string) (*Entry, error)
	CreateEntry(ctx context.Context, entry *Entry) error
	UpdateEntry(ctx context.Context, entry *Entry) error
	DeleteEntry(ctx context.Context, id string) error
}

// SQLiteRepository implements Repository on the config_entries table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = `id, domain, title, version, data, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// ListEntries returns every entry ordered by creation time.
func (r *SQLiteRepository) ListEntries(ctx context.Context) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM config_entries ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying config entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning config entry row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating config entry rows: %w", err)
	}
	return entries, nil
}

// GetEntry returns one entry by id.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM config_entries WHERE id = ?`
	return r.getOne(ctx, query, id)
}

// GetEntryByDomain returns the entry of domain.
func (r *SQLiteRepository) GetEntryByDomain(ctx context.Context, domain string) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM config_entries WHERE domain = ?`
	return r.getOne(ctx, query, domain)
}

func (r *SQLiteRepository) getOne(ctx context.Context, query, arg string) (*Entry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting config entry %s: %w", arg, err)
	}
	return e, nil
}

// CreateEntry inserts an entry, stamping its timestamps. A second entry
// for the same domain fails with ErrEntryExists.
func (r *SQLiteRepository) CreateEntry(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encoding entry data: %w", err)
	}
	now := time.Now().UTC()
	entry.CreatedAt, entry.UpdatedAt = now, now

	const query = `INSERT INTO config_entries (` + entryColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, query,
		entry.ID, entry.Domain, entry.Title, entry.Version, string(data),
		formatTime(now), formatTime(now))
	if isUniqueViolation(err) {
		return ErrEntryExists
	}
	if err != nil {
		return fmt.Errorf("inserting config entry %s: %w", entry.ID, err)
	}
	return nil
}

// UpdateEntry replaces title, version and data of an existing entry.
func (r *SQLiteRepository) UpdateEntry(ctx context.Context, entry *Entry) error {
	data, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("encoding entry data: %w", err)
	}
	now := time.Now().UTC()

	const query = `UPDATE config_entries SET title = ?, version = ?, data = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		entry.Title, entry.Version, string(data), formatTime(now), entry.ID)
	if err != nil {
		return fmt.Errorf("updating config entry %s: %w", entry.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	entry.UpdatedAt = now
	return nil
}

// DeleteEntry removes an entry.
func (r *SQLiteRepository) DeleteEntry(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM config_entries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting config entry %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func scanEntry(s rowScanner) (*Entry, error) {
	var (
		e                    Entry
		data                 string
		createdAt, updatedAt string
	)
	if err := s.Scan(&e.ID, &e.Domain, &e.Title, &e.Version, &data, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(data), &e.Data); err != nil {
		return nil, fmt.Errorf("decoding data of entry %s: %w", e.ID, err)
	}
	if e.Data.ExcludedEntities == nil {
		e.Data.ExcludedEntities = []string{}
	}
	e.CreatedAt = parseTime(createdAt)
	e.UpdatedAt = parseTime(updatedAt)
	return &e, nil
}

func isUniqueViolation(err error) bool {
	var sqlErr sqlite3.Error
	if !errors.As(err, &sqlErr) {
		return false
	}
	return sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
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
