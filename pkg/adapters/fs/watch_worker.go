package fs

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"runtime/debug"
	"strings"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/loci/pkg/core"
)

// watchPatterns select the files whose changes are reported. Temp files
// from atomic writes never match.
var watchPatterns = []string{
	spacesDir + "/*" + recordExt,
	spacesDir + "/*" + mapExt,
	anchorsDir + "/*" + recordExt,
}

type watchWorker struct {
	*worker.BaseWorker
	repo    *Repository
	events  chan<- core.Change
	watcher *fsnotify.Watcher
	known   map[string]bool
	cancel  context.CancelFunc
}

func newWatchWorker(repo *Repository, events chan<- core.Change) *watchWorker {
	return &watchWorker{
		BaseWorker: worker.NewBaseWorker("fs-watcher"),
		repo:       repo,
		events:     events,
	}
}

func (w *watchWorker) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	for _, dir := range []string{spacesDir, anchorsDir} {
		if err := watcher.Add(w.repo.dir(dir)); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.known = w.snapshotKnown()
	w.watcher = watcher
	w.repo.setWatcherActive(true)

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watchWorker) Stop(ctx context.Context) error {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}

	return w.BaseWorker.Stop(ctx)
}

func (w *watchWorker) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// snapshotKnown records the records present at start, so that an atomic
// replace (which surfaces as a create) of an existing record is reported
// as a modification.
func (w *watchWorker) snapshotKnown() map[string]bool {
	known := make(map[string]bool)
	for _, collection := range []string{spacesDir, anchorsDir} {
		ids, err := w.repo.list(collection)
		if err != nil {
			continue
		}
		for _, id := range ids {
			known[collection+"/"+id] = true
		}
	}
	return known
}

// toChange maps a filesystem event to a record change. It reports false
// for events that are not about a record.
func (w *watchWorker) toChange(event fsnotify.Event) (core.Change, bool) {
	rel, ok := w.repo.relPath(event.Name)
	if !ok || !matchesAny(rel) {
		return core.Change{}, false
	}

	dir, file := path.Split(rel)
	collection := core.Collection(strings.TrimSuffix(dir, "/"))
	id := strings.TrimSuffix(strings.TrimSuffix(file, recordExt), mapExt)
	key := string(collection) + "/" + id

	var kind core.ChangeKind
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		// The map file going away alone does not delete a space.
		if path.Ext(file) == mapExt {
			return core.Change{}, false
		}
		kind = core.ChangeDelete
		delete(w.known, key)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		kind = core.ChangeModify
		if !w.known[key] && path.Ext(file) == mapExt {
			// Maps are written ahead of a new space's record.
			return core.Change{}, false
		}
		if !w.known[key] {
			kind = core.ChangeCreate
			w.known[key] = true
		}
	default:
		return core.Change{}, false
	}

	return core.Change{
		Kind:       kind,
		Collection: collection,
		ID:         id,
		Timestamp:  time.Now().Unix(),
	}, true
}

func matchesAny(rel string) bool {
	for _, pattern := range watchPatterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// processFilesystemEvent filters, maps and forwards one fsnotify event.
func (w *watchWorker) processFilesystemEvent(ctx context.Context, event fsnotify.Event) bool {
	w.repo.config.Logger.Debug("event received", "name", event.Name, "op", event.Op.String())

	change, ok := w.toChange(event)
	if !ok {
		return false
	}
	w.sendEvent(ctx, change)
	return true
}

// sendEvent forwards a change, protecting against channel closure during
// shutdown.
func (w *watchWorker) sendEvent(ctx context.Context, change core.Change) {
	defer func() {
		_ = recover()
	}()
	select {
	case w.events <- change:
	case <-ctx.Done():
	}
}

func (w *watchWorker) handleWatcherError(err error) {
	w.repo.config.Logger.Error("fsnotify error", "error", err)
	if w.repo.config.ErrorHandler != nil {
		w.repo.config.ErrorHandler(err)
	}
}

// run is the main event loop for the watcher worker.
func (w *watchWorker) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("watcher panic: %v", recovered)

			// Stack traces only at debug level.
			if w.repo.config.Logger.Enabled(ctx, slog.LevelDebug) {
				w.repo.config.Logger.Error("watcher panic", "error", err, "stack", string(debug.Stack()))
			} else {
				w.repo.config.Logger.Error("watcher panic", "error", err)
			}
		}
	}()
	defer w.repo.setWatcherActive(false)
	defer w.watcher.Close()

	return w.mainEventLoop(ctx)
}

func (w *watchWorker) mainEventLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.processFilesystemEvent(ctx, event)

		case wErr, ok := <-w.watcher.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(wErr)
		}
	}
}
