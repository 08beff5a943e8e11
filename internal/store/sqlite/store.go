// Package sqlite persists named points, resume descriptors and usage
// statistics in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"spectate/server/internal/camera"
	"spectate/server/internal/session"
	"spectate/server/internal/store/sqlite/migrations"
)

// ErrNotConfigured is returned by methods on a nil or closed store.
var ErrNotConfigured = errors.New("store: not configured")

// Store is a SQLite-backed persistence collaborator.
type Store struct {
	db *sql.DB
}

// Usage is the number of sessions a viewer started on one target.
type Usage struct {
	Target   string    `json:"target"`
	Kind     string    `json:"kind"`
	Count    int       `json:"count"`
	LastUsed time.Time `json:"lastUsed"`
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens the database at path and applies embedded migrations. The
// special path ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := path
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	// Closing m would close db as well.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Version reports the applied schema version.
func (s *Store) Version(ctx context.Context) (uint, error) {
	if s == nil || s.db == nil {
		return 0, ErrNotConfigured
	}
	var version uint
	err := s.db.QueryRowContext(ctx, `SELECT version FROM schema_migrations LIMIT 1`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return version, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SavePoint inserts or replaces a named point.
func (s *Store) SavePoint(ctx context.Context, p session.Point, createdBy string) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return fmt.Errorf("point name is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO points (name, world, x, y, z, yaw, pitch, grp, created_by, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			world = excluded.world, x = excluded.x, y = excluded.y, z = excluded.z,
			yaw = excluded.yaw, pitch = excluded.pitch, grp = excluded.grp,
			updated_at = excluded.updated_at`,
		name, p.World, p.Position.X(), p.Position.Y(), p.Position.Z(), p.Yaw, p.Pitch, p.Group, createdBy, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("save point %s: %w", name, err)
	}
	return nil
}

// DeletePoint removes a named point and reports whether it existed.
func (s *Store) DeletePoint(ctx context.Context, name string) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrNotConfigured
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM points WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete point %s: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete point %s: %w", name, err)
	}
	return n > 0, nil
}

// LoadPoints returns every stored point ordered by name.
func (s *Store) LoadPoints(ctx context.Context) ([]session.Point, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.db.QueryContext(ctx, `SELECT name, world, x, y, z, yaw, pitch, grp FROM points ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("load points: %w", err)
	}
	defer rows.Close()

	var points []session.Point
	for rows.Next() {
		var (
			p       session.Point
			x, y, z float64
		)
		if err := rows.Scan(&p.Name, &p.World, &x, &y, &z, &p.Yaw, &p.Pitch, &p.Group); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p.Position = mgl64.Vec3{x, y, z}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load points: %w", err)
	}
	return points, nil
}

// SaveDescriptor stores what viewer was watching when it disconnected,
// replacing any earlier descriptor.
func (s *Store) SaveDescriptor(ctx context.Context, viewer string, d session.Descriptor) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	text, err := d.MarshalText()
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resume_descriptors (viewer, descriptor, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(viewer) DO UPDATE SET descriptor = excluded.descriptor, saved_at = excluded.saved_at`,
		viewer, string(text), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("save descriptor for %s: %w", viewer, err)
	}
	return nil
}

// TakeDescriptor returns and deletes viewer's stored descriptor. A descriptor
// that no longer parses is deleted and reported as absent.
func (s *Store) TakeDescriptor(ctx context.Context, viewer string) (session.Descriptor, bool, error) {
	if s == nil || s.db == nil {
		return session.Descriptor{}, false, ErrNotConfigured
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return session.Descriptor{}, false, fmt.Errorf("begin take descriptor: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var text string
	err = tx.QueryRowContext(ctx, `SELECT descriptor FROM resume_descriptors WHERE viewer = ?`, viewer).Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Descriptor{}, false, nil
	}
	if err != nil {
		return session.Descriptor{}, false, fmt.Errorf("read descriptor for %s: %w", viewer, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM resume_descriptors WHERE viewer = ?`, viewer); err != nil {
		return session.Descriptor{}, false, fmt.Errorf("delete descriptor for %s: %w", viewer, err)
	}
	if err := tx.Commit(); err != nil {
		return session.Descriptor{}, false, fmt.Errorf("commit take descriptor: %w", err)
	}

	var d session.Descriptor
	if err := d.UnmarshalText([]byte(text)); err != nil {
		return session.Descriptor{}, false, nil
	}
	return d, true, nil
}

// RecordUsage logs one session start.
func (s *Store) RecordUsage(ctx context.Context, viewer string, target session.Target, mode camera.ViewMode, at time.Time) error {
	if s == nil || s.db == nil {
		return ErrNotConfigured
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO usage_events (id, viewer, target, kind, mode, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), viewer, target.Key(), target.Kind.String(), mode.String(), toMillis(at))
	if err != nil {
		return fmt.Errorf("record usage for %s: %w", viewer, err)
	}
	return nil
}

// Usage aggregates viewer's session starts per target, most used first.
func (s *Store) Usage(ctx context.Context, viewer string) ([]Usage, error) {
	if s == nil || s.db == nil {
		return nil, ErrNotConfigured
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT target, kind, COUNT(*), MAX(started_at)
		FROM usage_events WHERE viewer = ?
		GROUP BY target, kind
		ORDER BY COUNT(*) DESC, target ASC`, viewer)
	if err != nil {
		return nil, fmt.Errorf("query usage for %s: %w", viewer, err)
	}
	defer rows.Close()

	var out []Usage
	for rows.Next() {
		var (
			u    Usage
			last int64
		)
		if err := rows.Scan(&u.Target, &u.Kind, &u.Count, &last); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		u.LastUsed = fromMillis(last)
		out = append(out, u)
	}
	return out, rows.Err()
}
