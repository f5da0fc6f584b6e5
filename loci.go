package loci

import (
	"context"
	_ "embed"
	"log/slog"

	"github.com/aretw0/loci/internal/platform"
	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/session"
)

// Version is the release of the library, read from the VERSION file.
//
//go:embed VERSION
var Version string

// --- Types ---

// Session is the running note session.
type Session = session.Session

// NoteDraft describes a note to place.
type NoteDraft = session.NoteDraft

// Snapshot is a point-in-time view of a session.
type Snapshot = session.Snapshot

// --- Configuration ---

// Option defines a functional option for opening stores and sessions.
type Option = platform.Option

// WithLogger sets the logger for the store and the session.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithStore injects a custom storage adapter.
func WithStore(store core.SpaceStore) Option {
	return platform.WithStore(store)
}

// WithAdapter selects the storage adapter by name ("fs", "sqlite", "memory").
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithSystemDir sets the hidden directory of the fs store (e.g. ".loci").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithReadOnly opens the store in read-only mode.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety controls the temp dir sandbox used under `go run`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist ensures the store location must already exist.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithSessionBuffers sets the session inbox and event buffer sizes.
func WithSessionBuffers(inbox, events int) Option {
	return platform.WithSessionBuffers(inbox, events)
}

// --- Factory ---

// Open creates and initializes a store.
func Open(ctx context.Context, uri string, opts ...Option) (core.SpaceStore, error) {
	return platform.OpenStore(ctx, uri, opts...)
}

// New opens a store and builds a session on top of it. The tracker and
// scene connect the session to the outside world; Start it to begin.
func New(ctx context.Context, uri string, tracker core.Tracker, scene core.Scene, opts ...Option) (*Session, core.SpaceStore, error) {
	return platform.NewSession(ctx, uri, tracker, scene, opts...)
}

// --- Safety & Utils ---

// ResolveStorePath determines the actual store location based on safety rules.
func ResolveStorePath(userPath string, forceTemp bool) string {
	return platform.ResolveStorePath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot recursively looks upwards for a store root indicator.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
