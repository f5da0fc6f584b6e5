package platform

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loci/internal/config"
	"github.com/aretw0/loci/pkg/adapters/fs"
	"github.com/aretw0/loci/pkg/adapters/memory"
	"github.com/aretw0/loci/pkg/adapters/sim"
	"github.com/aretw0/loci/pkg/adapters/sqlite"
	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/session"
)

func TestIsDevRun(t *testing.T) {
	// Tests run from a *.test binary.
	assert.True(t, IsDevRun())
}

func TestResolveStorePath(t *testing.T) {
	assert.Equal(t, ".", ResolveStorePath("", false))
	assert.Equal(t, "notes", ResolveStorePath("notes", false))

	sandboxed := ResolveStorePath("../../home/me/notes", true)
	assert.Equal(t, filepath.Join(os.TempDir(), devDirName, "notes"), sandboxed)
	assert.Equal(t, filepath.Join(os.TempDir(), devDirName, "default"), ResolveStorePath(".", true))

	inside := filepath.Join(t.TempDir(), "store")
	assert.Equal(t, inside, ResolveStorePath(inside, true))
}

func TestOpenStore_Adapters(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	t.Run("fs", func(t *testing.T) {
		store, err := OpenStore(ctx, filepath.Join(dir, "fs"))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &fs.Repository{}, store)
		assert.DirExists(t, filepath.Join(dir, "fs", "anchors"))
	})

	t.Run("sqlite", func(t *testing.T) {
		path := filepath.Join(dir, "db", "loci.db")
		store, err := OpenStore(ctx, path, WithAdapter(config.AdapterSQLite))
		require.NoError(t, err)
		defer store.Close()
		assert.IsType(t, &sqlite.Store{}, store)
		assert.FileExists(t, path)
	})

	t.Run("memory", func(t *testing.T) {
		store, err := OpenStore(ctx, "", WithAdapter(config.AdapterMemory))
		require.NoError(t, err)
		assert.IsType(t, &memory.Store{}, store)
	})

	t.Run("injected", func(t *testing.T) {
		injected := memory.NewStore()
		store, err := OpenStore(ctx, "ignored", WithAdapter("nonsense"), WithStore(injected))
		require.NoError(t, err)
		assert.Same(t, injected, store)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := OpenStore(ctx, dir, WithAdapter("s3"))
		assert.ErrorContains(t, err, "unknown adapter")
	})

	t.Run("must exist", func(t *testing.T) {
		_, err := OpenStore(ctx, filepath.Join(dir, "missing"), WithMustExist(true))
		assert.Error(t, err)
		_, err = OpenStore(ctx, filepath.Join(dir, "missing.db"), WithAdapter(config.AdapterSQLite), WithMustExist(true))
		assert.Error(t, err)
	})
}

func TestOpenStore_FromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Adapter = config.AdapterSQLite
	cfg.Store.Path = filepath.Join(t.TempDir(), "cfg.db")

	store, err := OpenStore(context.Background(), cfg.Store.Path, FromConfig(cfg)...)
	require.NoError(t, err)
	defer store.Close()
	assert.IsType(t, &sqlite.Store{}, store)
}

func TestNewSession(t *testing.T) {
	ctx := context.Background()
	tracker := sim.NewTracker()

	sess, store, err := NewSession(ctx, filepath.Join(t.TempDir(), "notes"), tracker, sim.NewScene(),
		WithSessionBuffers(4, 4))
	require.NoError(t, err)
	defer store.Close()

	tracker.Attach(sess.Deliver)
	require.NoError(t, sess.Start(ctx))
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_ = sess.Stop(stopCtx)
	}()
	require.NoError(t, sess.Flush(ctx))

	snap := sess.Snapshot()
	assert.False(t, snap.HasActiveSpace)
	assert.Equal(t, session.Idle, snap.Phase)

	_, err = sess.SaveMap(ctx)
	assert.ErrorIs(t, err, core.ErrMapUnavailable, "tracking has not stabilized")
}

func TestNewSession_SharedStore(t *testing.T) {
	ctx := context.Background()
	shared := memory.NewStore()
	require.NoError(t, shared.Initialize(ctx))

	for i := range 2 {
		tracker := sim.NewTracker()
		sess, store, err := NewSession(ctx, "ignored", tracker, sim.NewScene(), WithStore(shared))
		require.NoError(t, err)
		assert.Same(t, shared, store)

		tracker.Attach(sess.Deliver)
		require.NoError(t, sess.Start(ctx))
		if i == 0 {
			tracker.Stabilize()
		} else {
			tracker.Relocalize()
		}
		_, err = sess.Background(ctx)
		require.NoError(t, err)

		stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		require.NoError(t, sess.Stop(stopCtx))
		cancel()
	}

	// The second session relocalized against the first one's space and refreshed it.
	assert.Len(t, shared.SpaceIDs(), 1)
}
