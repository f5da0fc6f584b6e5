package fs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"

	"github.com/aretw0/loci/pkg/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo := NewRepository(Config{Path: t.TempDir()})
	if err := repo.Initialize(context.Background()); err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	return repo
}

func TestWatch_ReportsRecordChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := newTestRepo(t)
	changes, err := repo.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}
	waitForWatcher(t, repo, true)

	space := core.Space{ID: "s1", Map: []byte("m"), CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := repo.SaveSpace(ctx, space); err != nil {
		t.Fatal(err)
	}
	expectChange(t, changes, core.Change{Kind: core.ChangeCreate, Collection: core.CollectionSpaces, ID: "s1"})

	anchor := core.Anchor{ID: "a1", SpaceID: "s1", Metadata: core.Metadata{Text: "milk"}}
	if err := repo.SaveAnchor(ctx, anchor); err != nil {
		t.Fatal(err)
	}
	expectChange(t, changes, core.Change{Kind: core.ChangeCreate, Collection: core.CollectionAnchors, ID: "a1"})

	anchor.Metadata.Text = "oat milk"
	if err := repo.SaveAnchor(ctx, anchor); err != nil {
		t.Fatal(err)
	}
	expectChange(t, changes, core.Change{Kind: core.ChangeModify, Collection: core.CollectionAnchors, ID: "a1"})

	if err := repo.DeleteAnchor(ctx, "a1"); err != nil {
		t.Fatal(err)
	}
	expectChange(t, changes, core.Change{Kind: core.ChangeDelete, Collection: core.CollectionAnchors, ID: "a1"})

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("changes channel not closed after cancel")
		}
	}
}

func TestWatch_IgnoresUnrelatedFiles(t *testing.T) {
	repo := newTestRepo(t)
	w := newWatchWorker(repo, nil)
	w.known = map[string]bool{"anchors/a1": true}

	cases := []struct {
		name string
		op   fsnotify.Op
		want bool
	}{
		{filepath.Join(repo.Path, "anchors", TempFilePrefix+"123"), fsnotify.Create, false},
		{filepath.Join(repo.Path, "notes.txt"), fsnotify.Write, false},
		{filepath.Join(repo.Path, DefaultSystemDir, "index.json"), fsnotify.Write, false},
		{filepath.Join(repo.Path, "spaces", "new.map"), fsnotify.Create, false},
		{filepath.Join(repo.Path, "spaces", "gone.map"), fsnotify.Remove, false},
		{filepath.Join(repo.Path, "anchors", "a1.yaml"), fsnotify.Chmod, false},
		{filepath.Join(repo.Path, "anchors", "a1.yaml"), fsnotify.Write, true},
	}
	for _, tc := range cases {
		_, got := w.toChange(fsnotify.Event{Name: tc.name, Op: tc.op})
		if got != tc.want {
			t.Errorf("%s %s: got %v, want %v", tc.op, tc.name, got, tc.want)
		}
	}
}

func TestWatch_MissingLayout(t *testing.T) {
	repo := NewRepository(Config{Path: filepath.Join(t.TempDir(), "never-initialized")})
	if _, err := repo.Watch(context.Background()); err == nil {
		t.Fatal("expected Watch to fail without a store layout")
	}
}

func TestWatcherSupervisorRestarts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := newTestRepo(t)
	events := make(chan core.Change, 8)
	created := make(chan *watchWorker, 2)

	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			w := newWatchWorker(repo, events)
			created <- w
			return w, nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      1,
			ResetDuration:   50 * time.Millisecond,
			MaxRestarts:     2,
			MaxDuration:     200 * time.Millisecond,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("test-watcher", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		t.Fatalf("failed to start supervisor: %v", err)
	}

	first := waitForWorker(t, created, "first")
	waitForWatcher(t, repo, true)
	waitForWatcherInit(t, first)
	_ = first.watcher.Close()

	second := waitForWorker(t, created, "second")
	if first == second {
		t.Fatalf("expected supervisor to restart watcher with a new instance")
	}
	waitForWatcher(t, repo, true)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := sup.Stop(stopCtx); err != nil {
		t.Fatalf("failed to stop supervisor: %v", err)
	}
}

func expectChange(t *testing.T, ch <-chan core.Change, want core.Change) {
	t.Helper()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case got, ok := <-ch:
			if !ok {
				t.Fatalf("channel closed while waiting for %s", want)
			}
			if got.Kind == want.Kind && got.Collection == want.Collection && got.ID == want.ID {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func waitForWorker(t *testing.T, ch <-chan *watchWorker, label string) *watchWorker {
	t.Helper()

	select {
	case w := <-ch:
		return w
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s worker", label)
		return nil
	}
}

func waitForWatcherInit(t *testing.T, w *watchWorker) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		if w.watcher != nil {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for watcher initialization")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func waitForWatcher(t *testing.T, repo *Repository, expected bool) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		state, ok := repo.State().(RepositoryState)
		if ok && state.WatcherActive == expected {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for watcher state = %v", expected)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
