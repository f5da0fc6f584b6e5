package core_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/geom"
)

func TestMetadata_With(t *testing.T) {
	m := core.Metadata{Text: "milk", Color: core.ColorYellow, Kind: core.KindNote}

	got := m.With(
		core.ColorAttr(core.ColorPurple),
		core.ExtensionAttr{Key: "font", Value: "mono"},
		core.ExtensionAttr{Key: core.KeyText, Value: "ignored"},
	)
	assert.Equal(t, "milk", got.Text)
	assert.Equal(t, core.ColorPurple, got.Color)
	assert.Equal(t, map[string]string{"font": "mono"}, got.Extra)

	// The receiver is untouched.
	assert.Equal(t, core.ColorYellow, m.Color)
	assert.Nil(t, m.Extra)
}

func TestMetadata_UnknownColorFallsBack(t *testing.T) {
	got := core.Metadata{}.With(core.ColorAttr("chartreuse"))
	assert.Equal(t, core.DefaultColor, got.Color)
	assert.Equal(t, core.ColorBlue, core.ParseColor(" Blue "))
	assert.Equal(t, core.DefaultColor, core.ParseColor(""))
}

func TestMetadata_MapRoundTrip(t *testing.T) {
	raw := map[string]string{
		"text":     "hello",
		"color":    "green",
		"kind":     "sketch",
		"x-future": "42",
	}
	m := core.MetadataFromMap(raw)
	assert.Equal(t, "hello", m.Text)
	assert.Equal(t, core.ColorGreen, m.Color)
	assert.Equal(t, core.Kind("sketch"), m.Kind)
	assert.Equal(t, map[string]string{"x-future": "42"}, m.Extra)

	assert.Equal(t, raw, m.ToMap())
}

func TestMetadata_EmptyMapDefaults(t *testing.T) {
	m := core.MetadataFromMap(nil)
	assert.Equal(t, core.DefaultColor, m.Color)
	assert.Equal(t, core.KindNote, m.Kind)
	assert.Nil(t, m.Extra)
}

func TestNoteAnchorProjection(t *testing.T) {
	created := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	n := core.Note{
		ID:          "n1",
		Text:        "keys",
		Color:       core.ColorOrange,
		Position:    geom.Vec3{1, 2, 3},
		Orientation: geom.OrientationFacingCamera(geom.Vec3{1, 2, 3}, geom.Vec3{0, 1.6, 0}),
		CreatedAt:   created,
	}

	a := core.AnchorFromNote(n, "space-1")
	assert.Equal(t, "n1", a.ID)
	assert.Equal(t, "space-1", a.SpaceID)
	assert.Equal(t, core.KindNote, a.Metadata.Kind)

	back := core.NoteFromAnchor(a)
	assert.Equal(t, n.ID, back.ID)
	assert.Equal(t, n.Text, back.Text)
	assert.Equal(t, n.Color, back.Color)
	assert.True(t, back.CreatedAt.Equal(created))
	for i := 0; i < 3; i++ {
		assert.InDelta(t, n.Position[i], back.Position[i], 1e-9)
	}
	want := geom.Canonical(n.Orientation)
	assert.InDelta(t, want.W, back.Orientation.W, 1e-9)
}

func TestMostRecent(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, ok := core.MostRecent(nil)
	assert.False(t, ok)

	got, ok := core.MostRecent([]core.Space{
		{ID: "b", UpdatedAt: t0},
		{ID: "c", UpdatedAt: t0.Add(time.Second)},
		{ID: "a", UpdatedAt: t0.Add(time.Second)},
	})
	assert.True(t, ok)
	assert.Equal(t, "a", got.ID)
}

func TestStorageError(t *testing.T) {
	err := &core.StorageError{Op: "load space", ID: "s1", Err: core.ErrNotFound}
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Equal(t, "storage: load space s1: not found", err.Error())
	assert.True(t, core.IsStorageError(err))
	assert.False(t, core.IsStorageError(core.ErrMapUnavailable))
}

func TestEventString(t *testing.T) {
	assert.Equal(t, "NOTE_SAVED n1", core.Event{Type: core.EventNoteSaved, ID: "n1"}.String())
	assert.Equal(t, "TRACKING_CHANGED  (normal)", core.Event{Type: core.EventTrackingChanged, Detail: "normal"}.String())
	assert.Equal(t, "DELETE anchors/a1", core.Change{Kind: core.ChangeDelete, Collection: core.CollectionAnchors, ID: "a1"}.String())
}
