// Package history records completed generations in SQLite so they can be
// listed and fetched again by id.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"fluxd/internal/common/fsutil"
	"fluxd/pkg/types"
)

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("generation not found")

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 20

// Store is a generation history backed by one SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or upgrades the database at path.
func Open(path string) (*Store, error) {
	path, err := fsutil.ExpandHome(strings.TrimSpace(path))
	if err != nil {
		return nil, err
	}
	if path == "" {
		return nil, errors.New("history: database path is required")
	}
	if _, err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, err
	}

	mdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrateUp(mdb); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts rec. A missing id or creation time is filled in; the
// stored record is returned.
func (s *Store) Record(ctx context.Context, rec types.ImageRecord) (types.ImageRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = s.now().UTC().Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO generations (id, prompt, variant, seed, steps, guidance, width, height,
			duration_ms, image_path, thumbnail_path, sidecar_path, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Prompt, rec.Variant, rec.Seed, rec.Steps, rec.Guidance, rec.Width, rec.Height,
		rec.DurationMillis, rec.ImagePath, rec.ThumbnailPath, rec.SidecarPath, rec.CreatedAt)
	if err != nil {
		return types.ImageRecord{}, fmt.Errorf("insert generation: %w", err)
	}
	return rec, nil
}

const selectColumns = `id, prompt, variant, seed, steps, guidance, width, height,
	duration_ms, image_path, thumbnail_path, sidecar_path, created_at`

// List returns up to limit records, newest first. limit <= 0 means
// DefaultListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]types.ImageRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM generations ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()
	var out []types.ImageRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Get returns the record with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (types.ImageRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM generations WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.ImageRecord{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (types.ImageRecord, error) {
	var r types.ImageRecord
	err := sc.Scan(&r.ID, &r.Prompt, &r.Variant, &r.Seed, &r.Steps, &r.Guidance, &r.Width, &r.Height,
		&r.DurationMillis, &r.ImagePath, &r.ThumbnailPath, &r.SidecarPath, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return r, err
		}
		return r, fmt.Errorf("scan generation: %w", err)
	}
	return r, nil
}
