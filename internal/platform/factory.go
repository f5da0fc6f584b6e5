package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/loci/internal/config"
	"github.com/aretw0/loci/pkg/adapters/fs"
	"github.com/aretw0/loci/pkg/adapters/memory"
	"github.com/aretw0/loci/pkg/adapters/sqlite"
	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/session"
)

// OpenStore builds and initializes the store selected by the options.
// The uri is adapter-specific: a directory for "fs", a database file for
// "sqlite", ignored for "memory".
//
//	store, err := platform.OpenStore("./notes", platform.WithAdapter("sqlite"))
func OpenStore(ctx context.Context, uri string, opts ...Option) (core.SpaceStore, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	if o.store != nil {
		return o.store, nil
	}

	var store core.SpaceStore
	switch o.adapter {
	case config.AdapterFS:
		store = fs.NewRepository(fs.Config{
			Path:         resolvePath(uri, o),
			MustExist:    o.mustExist,
			ReadOnly:     o.readOnly,
			SystemDir:    o.systemDir,
			Logger:       o.logger,
			ErrorHandler: o.errorHandler,
		})
	case config.AdapterSQLite:
		path := uri
		if path != sqlite.MemoryPath {
			path = resolvePath(uri, o)
			if o.mustExist {
				if _, err := os.Stat(path); err != nil {
					return nil, fmt.Errorf("database must exist: %w", err)
				}
			}
		}
		store = sqlite.NewStore(sqlite.Config{
			Path:     path,
			ReadOnly: o.readOnly,
			Logger:   o.logger,
		})
	case config.AdapterMemory:
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown adapter: %s", o.adapter)
	}

	if err := store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("initializing %s store: %w", o.adapter, err)
	}
	return store, nil
}

// NewSession opens the store and wires a session on top of it. The caller
// owns both: Stop the session, then Close the store.
func NewSession(ctx context.Context, uri string, tracker core.Tracker, scene core.Scene, opts ...Option) (*session.Session, core.SpaceStore, error) {
	store, err := OpenStore(ctx, uri, opts...)
	if err != nil {
		return nil, nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	sessOpts := []session.Option{
		session.WithInboxBuffer(o.inboxBuffer),
		session.WithEventBuffer(o.eventBuffer),
	}
	if o.logger != nil {
		sessOpts = append(sessOpts, session.WithLogger(o.logger))
	}

	return session.New(store, tracker, scene, sessOpts...), store, nil
}

// resolvePath applies the dev sandbox to a store location.
func resolvePath(uri string, o *options) string {
	// Read-only access is inherently safe.
	bypassSafety := o.readOnly || !o.devSafety
	useTemp := o.forceTemp || (IsDevRun() && !bypassSafety)
	resolved := ResolveStorePath(uri, useTemp)

	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	switch {
	case useTemp:
		logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", uri, "resolved_path", resolved)
	case IsDevRun() && o.readOnly:
		logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolved)
	case IsDevRun():
		logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
	}
	return resolved
}
