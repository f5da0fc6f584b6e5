package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/aretw0/loci/pkg/core"
)

const (
	spacesDir  = "spaces"
	anchorsDir = "anchors"

	recordExt = ".yaml"
	mapExt    = ".map"

	// DefaultSystemDir holds the index and other bookkeeping files.
	DefaultSystemDir = ".loci"
)

// Repository implements core.SpaceStore on a directory tree:
//
//	spaces/<id>.yaml   space record
//	spaces/<id>.map    opaque world map
//	anchors/<id>.yaml  anchor record
//	.loci/index.json   anchor -> space index
//
// Every file is replaced atomically. A space record is written after its
// map, so a crash never leaves a record pointing at a missing map.
type Repository struct {
	Path   string
	config Config
	cache  *cache

	mu            sync.RWMutex
	readOnly      bool
	watcherActive bool
	lastScan      *time.Time
}

// Config holds the configuration for the filesystem repository.
type Config struct {
	Path      string
	MustExist bool
	ReadOnly  bool
	SystemDir string // defaults to ".loci"
	Logger    *slog.Logger
	// ErrorHandler receives errors from background work such as the
	// watcher. Nil means log only.
	ErrorHandler func(error)
}

// NewRepository creates a new filesystem-backed repository. Call
// Initialize before use.
func NewRepository(config Config) *Repository {
	if config.SystemDir == "" {
		config.SystemDir = DefaultSystemDir
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Repository{
		Path:     config.Path,
		config:   config,
		cache:    newCache(config.Path, config.SystemDir),
		readOnly: config.ReadOnly,
	}
}

// Initialize prepares the directory layout. In read-only mode, or with
// MustExist, the root must already exist.
func (r *Repository) Initialize(ctx context.Context) error {
	if r.config.MustExist || r.readOnly {
		info, err := os.Stat(r.Path)
		if os.IsNotExist(err) {
			return fmt.Errorf("store path does not exist: %s", r.Path)
		}
		if err != nil {
			return fmt.Errorf("failed to stat store path: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("store path is not a directory: %s", r.Path)
		}
	}

	if !r.readOnly {
		for _, dir := range []string{r.Path, r.dir(spacesDir), r.dir(anchorsDir)} {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create store directory: %w", err)
			}
		}
	}

	if err := r.cache.Load(); err != nil {
		r.config.Logger.Warn("anchor index unreadable, rebuilding", "error", err)
	}
	return nil
}

// Close flushes the anchor index.
func (r *Repository) Close() error {
	if r.readOnly {
		return nil
	}
	return r.cache.Save()
}

func (r *Repository) SaveSpace(ctx context.Context, sp core.Space) error {
	if err := r.writable("save space", sp.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	mapName := sp.ID + mapExt
	if err := writeFileAtomic(r.dir(spacesDir, mapName), sp.Map, 0644); err != nil {
		return fmt.Errorf("failed to write map of space %s: %w", sp.ID, err)
	}

	data, err := encodeSpace(sp, mapName)
	if err != nil {
		return fmt.Errorf("failed to encode space %s: %w", sp.ID, err)
	}
	if err := writeFileAtomic(r.dir(spacesDir, sp.ID+recordExt), data, 0644); err != nil {
		return fmt.Errorf("failed to write space %s: %w", sp.ID, err)
	}
	return nil
}

func (r *Repository) LoadSpace(ctx context.Context, id string) (core.Space, error) {
	if err := validID(id); err != nil {
		return core.Space{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readSpace(id)
}

// LoadAllSpaces returns every space, ordered by ID. Unreadable records
// are skipped with a warning.
func (r *Repository) LoadAllSpaces(ctx context.Context) ([]core.Space, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids, err := r.list(spacesDir)
	if err != nil {
		return nil, err
	}

	spaces := make([]core.Space, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sp, err := r.readSpace(id)
		if err != nil {
			r.config.Logger.Warn("skipping unreadable space", "space", id, "error", err)
			continue
		}
		spaces = append(spaces, sp)
	}
	return spaces, nil
}

func (r *Repository) LoadMostRecentSpace(ctx context.Context) (core.Space, error) {
	spaces, err := r.LoadAllSpaces(ctx)
	if err != nil {
		return core.Space{}, err
	}
	sp, ok := core.MostRecent(spaces)
	if !ok {
		return core.Space{}, fmt.Errorf("no saved space: %w", core.ErrNotFound)
	}
	return sp, nil
}

// SaveAnchor writes an anchor record. The referenced space must exist.
func (r *Repository) SaveAnchor(ctx context.Context, a core.Anchor) error {
	if err := r.writable("save anchor", a.ID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := os.Stat(r.dir(spacesDir, a.SpaceID+recordExt)); err != nil || validID(a.SpaceID) != nil {
		return fmt.Errorf("anchor %s references unknown space %q", a.ID, a.SpaceID)
	}

	data, err := encodeAnchor(a)
	if err != nil {
		return fmt.Errorf("failed to encode anchor %s: %w", a.ID, err)
	}
	rel := path.Join(anchorsDir, a.ID+recordExt)
	full := filepath.Join(r.Path, filepath.FromSlash(rel))
	if err := writeFileAtomic(full, data, 0644); err != nil {
		return fmt.Errorf("failed to write anchor %s: %w", a.ID, err)
	}

	if info, err := os.Stat(full); err == nil {
		r.cache.Set(rel, &indexEntry{ID: a.ID, SpaceID: a.SpaceID, LastModified: info.ModTime()})
	}
	return nil
}

func (r *Repository) LoadAnchor(ctx context.Context, id string) (core.Anchor, error) {
	if err := validID(id); err != nil {
		return core.Anchor{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.readAnchor(id)
}

// LoadAnchors returns the anchors of one space. The anchor index lets it
// skip parsing records that belong to other spaces.
func (r *Repository) LoadAnchors(ctx context.Context, spaceID string) ([]core.Anchor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.list(anchorsDir)
	if err != nil {
		return nil, err
	}

	var (
		anchors []core.Anchor
		seen    = make(map[string]bool, len(ids))
		hits    int
	)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel := path.Join(anchorsDir, id+recordExt)
		seen[rel] = true

		info, err := os.Stat(filepath.Join(r.Path, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		entry, hit := r.cache.Get(rel, info.ModTime())
		if hit {
			hits++
			if entry.SpaceID != spaceID {
				continue
			}
		}

		a, err := r.readAnchor(id)
		if err != nil {
			r.config.Logger.Warn("skipping unreadable anchor", "anchor", id, "error", err)
			continue
		}
		if !hit {
			r.cache.Set(rel, &indexEntry{ID: a.ID, SpaceID: a.SpaceID, LastModified: info.ModTime()})
		}
		if a.SpaceID == spaceID {
			anchors = append(anchors, a)
		}
	}
	r.cache.Prune(seen)

	now := time.Now()
	r.lastScan = &now
	r.config.Logger.Debug("anchors loaded", "space", spaceID, "count", len(anchors), "index_hits", hits)

	if !r.readOnly {
		if err := r.cache.Save(); err != nil {
			r.config.Logger.Warn("failed to save anchor index", "error", err)
		}
	}
	return anchors, nil
}

// DeleteAnchor removes an anchor record. A missing record is not an error.
func (r *Repository) DeleteAnchor(ctx context.Context, id string) error {
	if err := r.writable("delete anchor", id); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rel := path.Join(anchorsDir, id+recordExt)
	if err := removeIfExists(filepath.Join(r.Path, filepath.FromSlash(rel))); err != nil {
		return fmt.Errorf("failed to delete anchor %s: %w", id, err)
	}
	r.cache.Delete(rel)
	return nil
}

// ClearAll removes every space, map and anchor, then recreates the empty
// layout.
func (r *Repository) ClearAll(ctx context.Context) error {
	if r.readOnly {
		return fmt.Errorf("clear all: %w", core.ErrReadOnly)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, dir := range []string{anchorsDir, spacesDir} {
		if err := os.RemoveAll(r.dir(dir)); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove %s: %w", dir, err))
			continue
		}
		if err := os.MkdirAll(r.dir(dir), 0755); err != nil {
			errs = append(errs, fmt.Errorf("failed to recreate %s: %w", dir, err))
		}
	}
	r.cache.Reset()
	if err := r.cache.Save(); err != nil {
		errs = append(errs, fmt.Errorf("failed to save anchor index: %w", err))
	}
	return errors.Join(errs...)
}

func (r *Repository) readSpace(id string) (core.Space, error) {
	data, err := os.ReadFile(r.dir(spacesDir, id+recordExt))
	if os.IsNotExist(err) {
		return core.Space{}, fmt.Errorf("space %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Space{}, fmt.Errorf("failed to read space %s: %w", id, err)
	}

	rec, err := decodeSpace(data)
	if err != nil {
		return core.Space{}, fmt.Errorf("space %s: %w", id, err)
	}

	mapName := rec.MapFile
	if mapName == "" || validID(strings.TrimSuffix(mapName, mapExt)) != nil {
		mapName = id + mapExt
	}
	blob, err := os.ReadFile(r.dir(spacesDir, mapName))
	if err != nil {
		return core.Space{}, fmt.Errorf("failed to read map of space %s: %w", id, err)
	}

	return core.Space{
		ID:        rec.ID,
		Map:       blob,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

func (r *Repository) readAnchor(id string) (core.Anchor, error) {
	data, err := os.ReadFile(r.dir(anchorsDir, id+recordExt))
	if os.IsNotExist(err) {
		return core.Anchor{}, fmt.Errorf("anchor %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Anchor{}, fmt.Errorf("failed to read anchor %s: %w", id, err)
	}
	return decodeAnchor(data)
}

// list returns the IDs of the records in a collection directory, sorted.
func (r *Repository) list(collection string) ([]string, error) {
	if _, err := os.Stat(r.dir(collection)); os.IsNotExist(err) {
		return nil, nil
	}

	matches, err := doublestar.Glob(os.DirFS(r.Path), collection+"/*"+recordExt)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, strings.TrimSuffix(path.Base(m), recordExt))
	}
	return ids, nil
}

func (r *Repository) dir(elem ...string) string {
	return filepath.Join(append([]string{r.Path}, elem...)...)
}

func (r *Repository) writable(op, id string) error {
	if r.readOnly {
		return fmt.Errorf("%s %s: %w", op, id, core.ErrReadOnly)
	}
	return validID(id)
}

// validID rejects IDs that cannot be used as a single file name.
func validID(id string) error {
	switch {
	case id == "":
		return errors.New("id cannot be empty")
	case id == "." || id == "..", strings.ContainsAny(id, `/\`), strings.HasPrefix(id, "."):
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}

// relPath converts an absolute path under the root to a slash-separated
// relative path.
func (r *Repository) relPath(abs string) (string, bool) {
	rel, err := filepath.Rel(r.Path, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return filepath.ToSlash(rel), true
}

var _ core.SpaceStore = (*Repository)(nil)
