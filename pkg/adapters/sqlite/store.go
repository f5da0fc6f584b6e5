// Package sqlite provides a core.SpaceStore backed by a single SQLite file
// (pure Go driver, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aretw0/loci/pkg/core"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Config holds the configuration for the SQLite store.
type Config struct {
	Path     string
	ReadOnly bool
	Logger   *slog.Logger
}

// Store implements core.SpaceStore using SQLite.
//
// Anchors reference their space with ON DELETE CASCADE. Writes therefore
// upsert with ON CONFLICT DO UPDATE; INSERT OR REPLACE would delete the
// old space row and take its anchors with it.
type Store struct {
	db     *sql.DB
	config Config
	logger *slog.Logger
}

// NewStore creates a store. Call Initialize before use.
func NewStore(config Config) *Store {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		config: config,
		logger: config.Logger.With("component", "sqlite"),
	}
}

// Initialize opens the database and creates the schema if needed. Parent
// directories are created if needed.
func (s *Store) Initialize(ctx context.Context) error {
	if s.db != nil {
		return nil
	}

	path := s.config.Path
	if path == "" {
		return errors.New("sqlite store path is empty")
	}
	if path != MemoryPath && !s.config.ReadOnly {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("creating database directory: %w", err)
		}
	}
	if path != MemoryPath && s.config.ReadOnly {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("opening read-only database: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	// One connection: pragmas are per connection, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)

	pragmas := []string{"PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"}
	if path != MemoryPath && !s.config.ReadOnly {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return fmt.Errorf("applying %q: %w", p, err)
		}
	}

	s.db = db
	if !s.config.ReadOnly {
		if err := s.createSchema(ctx); err != nil {
			db.Close()
			s.db = nil
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	s.logger.Info("SQLite store initialized", "path", path, "read_only", s.config.ReadOnly)
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS spaces (
			id         TEXT PRIMARY KEY,
			world_map  BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_spaces_recent ON spaces(updated_at DESC, id);

		CREATE TABLE IF NOT EXISTS anchors (
			id            TEXT PRIMARY KEY,
			space_id      TEXT NOT NULL REFERENCES spaces(id) ON DELETE CASCADE,
			transform     TEXT NOT NULL,
			metadata_json TEXT NOT NULL,
			created_at    INTEGER NOT NULL,
			updated_at    INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_anchors_space ON anchors(space_id);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	s.logger.Debug("closing SQLite store")
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) SaveSpace(ctx context.Context, sp core.Space) error {
	if err := s.writable("save space", sp.ID); err != nil {
		return err
	}
	worldMap := sp.Map
	if worldMap == nil {
		worldMap = []byte{}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spaces (id, world_map, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			world_map = excluded.world_map,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, sp.ID, worldMap, toNanos(sp.CreatedAt), toNanos(sp.UpdatedAt))
	if err != nil {
		return fmt.Errorf("upserting space %s: %w", sp.ID, err)
	}
	s.logger.Debug("saved space", "id", sp.ID, "map_bytes", len(worldMap))
	return nil
}

const spaceColumns = `id, world_map, created_at, updated_at`

func (s *Store) LoadSpace(ctx context.Context, id string) (core.Space, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+spaceColumns+` FROM spaces WHERE id = ?`, id)
	sp, err := scanSpace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Space{}, fmt.Errorf("space %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Space{}, fmt.Errorf("querying space %s: %w", id, err)
	}
	return sp, nil
}

func (s *Store) LoadAllSpaces(ctx context.Context) ([]core.Space, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+spaceColumns+` FROM spaces ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying spaces: %w", err)
	}
	defer rows.Close()

	var spaces []core.Space
	for rows.Next() {
		sp, err := scanSpace(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning space: %w", err)
		}
		spaces = append(spaces, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating spaces: %w", err)
	}
	return spaces, nil
}

// LoadMostRecentSpace lets the index pick the winner; ties go to the
// smallest ID, as in core.MostRecent.
func (s *Store) LoadMostRecentSpace(ctx context.Context) (core.Space, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+spaceColumns+` FROM spaces
		ORDER BY updated_at DESC, id ASC
		LIMIT 1
	`)
	sp, err := scanSpace(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Space{}, fmt.Errorf("no saved space: %w", core.ErrNotFound)
	}
	if err != nil {
		return core.Space{}, fmt.Errorf("querying most recent space: %w", err)
	}
	return sp, nil
}

func (s *Store) SaveAnchor(ctx context.Context, a core.Anchor) error {
	if err := s.writable("save anchor", a.ID); err != nil {
		return err
	}

	transform, err := json.Marshal(a.Transform[:])
	if err != nil {
		return fmt.Errorf("encoding transform of anchor %s: %w", a.ID, err)
	}
	metadata, err := json.Marshal(a.Metadata.ToMap())
	if err != nil {
		return fmt.Errorf("encoding metadata of anchor %s: %w", a.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO anchors (id, space_id, transform, metadata_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			space_id = excluded.space_id,
			transform = excluded.transform,
			metadata_json = excluded.metadata_json,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at
	`, a.ID, a.SpaceID, string(transform), string(metadata), toNanos(a.CreatedAt), toNanos(a.UpdatedAt))
	if err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("anchor %s references unknown space %q: %w", a.ID, a.SpaceID, err)
		}
		return fmt.Errorf("upserting anchor %s: %w", a.ID, err)
	}
	return nil
}

const anchorColumns = `id, space_id, transform, metadata_json, created_at, updated_at`

func (s *Store) LoadAnchor(ctx context.Context, id string) (core.Anchor, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+anchorColumns+` FROM anchors WHERE id = ?`, id)
	a, err := scanAnchor(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Anchor{}, fmt.Errorf("anchor %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Anchor{}, fmt.Errorf("querying anchor %s: %w", id, err)
	}
	return a, nil
}

func (s *Store) LoadAnchors(ctx context.Context, spaceID string) ([]core.Anchor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+anchorColumns+` FROM anchors
		WHERE space_id = ?
		ORDER BY created_at, id
	`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("querying anchors of space %s: %w", spaceID, err)
	}
	defer rows.Close()

	var anchors []core.Anchor
	for rows.Next() {
		a, err := scanAnchor(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning anchor: %w", err)
		}
		anchors = append(anchors, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating anchors: %w", err)
	}
	return anchors, nil
}

func (s *Store) DeleteAnchor(ctx context.Context, id string) error {
	if err := s.writable("delete anchor", id); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM anchors WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting anchor %s: %w", id, err)
	}
	return nil
}

// ClearAll deletes every anchor and space in one transaction.
func (s *Store) ClearAll(ctx context.Context) error {
	if s.config.ReadOnly {
		return fmt.Errorf("clear all: %w", core.ErrReadOnly)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM anchors`, `DELETE FROM spaces`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("clearing store: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing clear: %w", err)
	}
	s.logger.Info("store cleared")
	return nil
}

func (s *Store) writable(op, id string) error {
	if s.config.ReadOnly {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrReadOnly)
	}
	if id == "" {
		return fmt.Errorf("%s: id cannot be empty", op)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSpace(row scanner) (core.Space, error) {
	var (
		sp               core.Space
		created, updated int64
	)
	if err := row.Scan(&sp.ID, &sp.Map, &created, &updated); err != nil {
		return core.Space{}, err
	}
	sp.CreatedAt = fromNanos(created)
	sp.UpdatedAt = fromNanos(updated)
	return sp, nil
}

func scanAnchor(row scanner) (core.Anchor, error) {
	var (
		a                   core.Anchor
		transform, metadata string
		created, updated    int64
	)
	if err := row.Scan(&a.ID, &a.SpaceID, &transform, &metadata, &created, &updated); err != nil {
		return core.Anchor{}, err
	}

	var values []float64
	if err := json.Unmarshal([]byte(transform), &values); err != nil {
		return core.Anchor{}, fmt.Errorf("decoding transform of anchor %s: %w", a.ID, err)
	}
	if len(values) != len(a.Transform) {
		return core.Anchor{}, fmt.Errorf("anchor %s: transform has %d values, want %d", a.ID, len(values), len(a.Transform))
	}
	copy(a.Transform[:], values)

	var raw map[string]string
	if err := json.Unmarshal([]byte(metadata), &raw); err != nil {
		return core.Anchor{}, fmt.Errorf("decoding metadata of anchor %s: %w", a.ID, err)
	}
	a.Metadata = core.MetadataFromMap(raw)
	a.CreatedAt = fromNanos(created)
	a.UpdatedAt = fromNanos(updated)
	return a, nil
}

// Times are stored as Unix nanoseconds so ordering in SQL is exact.
func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func isConstraintViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}

var _ core.SpaceStore = (*Store)(nil)
