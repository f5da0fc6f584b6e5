// Package coretest holds a behavioural contract suite every core.SpaceStore
// engine must pass.
package coretest

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/geom"
)

// Factory returns a fresh, initialized store for one subtest.
type Factory func(t *testing.T) core.SpaceStore

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Space builds a space fixture.
func Space(id string, updated time.Time, worldMap string) core.Space {
	return core.Space{ID: id, Map: []byte(worldMap), CreatedAt: base, UpdatedAt: updated}
}

// Anchor builds an anchor fixture.
func Anchor(id, spaceID, text string, color core.Color) core.Anchor {
	pose := geom.Pose{
		Position:    geom.Vec3{0.25, 1.5, -2},
		Orientation: geom.OrientationFromSurfaceNormal(geom.Vec3{1, 0, 0}),
	}
	return core.Anchor{
		ID:        id,
		SpaceID:   spaceID,
		Transform: pose.Transform(),
		Metadata:  core.Metadata{Text: text, Color: color, Kind: core.KindNote},
		CreatedAt: base,
		UpdatedAt: base,
	}
}

// Run executes the contract suite against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	ctx := context.Background()

	t.Run("space round trip", func(t *testing.T) {
		s := newStore(t)
		in := Space("s1", base.Add(time.Second), "\x00\x01map\xff")
		require.NoError(t, s.SaveSpace(ctx, in))

		got, err := s.LoadSpace(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, in.ID, got.ID)
		assert.Equal(t, in.Map, got.Map)
		assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
		assert.True(t, in.UpdatedAt.Equal(got.UpdatedAt))
	})

	t.Run("missing space", func(t *testing.T) {
		s := newStore(t)
		_, err := s.LoadSpace(ctx, "nope")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("most recent with no spaces", func(t *testing.T) {
		s := newStore(t)
		_, err := s.LoadMostRecentSpace(ctx)
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("most recent picks max updatedAt", func(t *testing.T) {
		rng := rand.New(rand.NewSource(3))
		for n := 1; n <= 6; n++ {
			s := newStore(t)
			order := rng.Perm(n)
			for _, i := range order {
				id := fmt.Sprintf("space-%d", i)
				require.NoError(t, s.SaveSpace(ctx, Space(id, base.Add(time.Duration(i)*time.Minute), id)))
			}
			got, err := s.LoadMostRecentSpace(ctx)
			require.NoError(t, err)
			assert.Equal(t, fmt.Sprintf("space-%d", n-1), got.ID, "n=%d", n)
		}
	})

	t.Run("most recent tie is stable", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveSpace(ctx, Space("b", base, "")))
		require.NoError(t, s.SaveSpace(ctx, Space("a", base, "")))
		first, err := s.LoadMostRecentSpace(ctx)
		require.NoError(t, err)
		second, err := s.LoadMostRecentSpace(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a", first.ID)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("space upsert keeps anchors", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveSpace(ctx, Space("s1", base, "v1")))
		require.NoError(t, s.SaveAnchor(ctx, Anchor("a1", "s1", "milk", core.ColorYellow)))
		require.NoError(t, s.SaveSpace(ctx, Space("s1", base.Add(time.Hour), "v2")))

		sp, err := s.LoadSpace(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), sp.Map)

		anchors, err := s.LoadAnchors(ctx, "s1")
		require.NoError(t, err)
		assert.Len(t, anchors, 1)
	})

	t.Run("anchor round trip", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveSpace(ctx, Space("s1", base, "m")))
		in := Anchor("a1", "s1", "buy milk", core.ColorBlue)
		in.Metadata.Extra = map[string]string{"font": "serif"}
		require.NoError(t, s.SaveAnchor(ctx, in))

		got, err := s.LoadAnchor(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "s1", got.SpaceID)
		assert.Equal(t, "buy milk", got.Metadata.Text)
		assert.Equal(t, core.ColorBlue, got.Metadata.Color)
		assert.Equal(t, core.KindNote, got.Metadata.Kind)
		assert.Equal(t, "serif", got.Metadata.Extra["font"])
		assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
		for i := range in.Transform {
			assert.InDelta(t, in.Transform[i], got.Transform[i], 1e-9)
		}
	})

	t.Run("missing anchor", func(t *testing.T) {
		s := newStore(t)
		_, err := s.LoadAnchor(ctx, "nope")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("anchors are scoped to their space", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveSpace(ctx, Space("s1", base, "")))
		require.NoError(t, s.SaveSpace(ctx, Space("s2", base, "")))
		require.NoError(t, s.SaveAnchor(ctx, Anchor("a1", "s1", "one", core.ColorPink)))
		require.NoError(t, s.SaveAnchor(ctx, Anchor("a2", "s1", "two", core.ColorPink)))
		require.NoError(t, s.SaveAnchor(ctx, Anchor("b1", "s2", "other", core.ColorPink)))

		anchors, err := s.LoadAnchors(ctx, "s1")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a1", "a2"}, ids(anchors))

		none, err := s.LoadAnchors(ctx, "missing")
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveSpace(ctx, Space("s1", base, "")))
		require.NoError(t, s.SaveAnchor(ctx, Anchor("a1", "s1", "x", core.ColorGreen)))

		require.NoError(t, s.DeleteAnchor(ctx, "a1"))
		require.NoError(t, s.DeleteAnchor(ctx, "a1"))
		require.NoError(t, s.DeleteAnchor(ctx, "never-existed"))

		_, err := s.LoadAnchor(ctx, "a1")
		assert.ErrorIs(t, err, core.ErrNotFound)
	})

	t.Run("clear all", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.SaveSpace(ctx, Space("s1", base, "")))
		require.NoError(t, s.SaveAnchor(ctx, Anchor("a1", "s1", "milk", core.ColorYellow)))

		anchors, err := s.LoadAnchors(ctx, "s1")
		require.NoError(t, err)
		require.Equal(t, []string{"a1"}, ids(anchors))

		require.NoError(t, s.ClearAll(ctx))

		spaces, err := s.LoadAllSpaces(ctx)
		require.NoError(t, err)
		assert.Empty(t, spaces)
		anchors, err = s.LoadAnchors(ctx, "s1")
		require.NoError(t, err)
		assert.Empty(t, anchors)

		// Usable again afterwards.
		require.NoError(t, s.SaveSpace(ctx, Space("s2", base, "")))
		_, err = s.LoadMostRecentSpace(ctx)
		assert.NoError(t, err)
	})
}

func ids(anchors []core.Anchor) []string {
	out := make([]string, 0, len(anchors))
	for _, a := range anchors {
		out = append(out, a.ID)
	}
	return out
}
