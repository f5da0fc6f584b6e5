// Package core defines the spatial note domain: spaces, anchors, notes, the
// persistence port they flow through, and the ports for the external
// tracking and scene subsystems.
package core

import (
	"time"

	"github.com/aretw0/loci/pkg/geom"
)

// Space is one captured environment: an opaque map produced by the tracking
// subsystem plus bookkeeping. The map bytes are never interpreted here.
type Space struct {
	ID        string
	Map       []byte
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Anchor is the persisted form of a note: a pose in the frame of its
// Space's map plus typed metadata.
type Anchor struct {
	ID        string
	SpaceID   string
	Transform geom.Mat4
	Metadata  Metadata
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Note is the in-memory projection of an Anchor used by the rest of the
// application. It is never persisted directly.
type Note struct {
	ID          string
	Text        string
	Color       Color
	Position    geom.Vec3
	Orientation geom.Quat
	CreatedAt   time.Time
}

// NoteFromAnchor projects a stored anchor into a note.
func NoteFromAnchor(a Anchor) Note {
	pos, q := geom.TransformToPose(a.Transform)
	return Note{
		ID:          a.ID,
		Text:        a.Metadata.Text,
		Color:       a.Metadata.Color.OrDefault(),
		Position:    pos,
		Orientation: q,
		CreatedAt:   a.CreatedAt,
	}
}

// AnchorFromNote builds the anchor record for n inside the given space.
// Timestamps are left for the Service to stamp.
func AnchorFromNote(n Note, spaceID string) Anchor {
	return Anchor{
		ID:        n.ID,
		SpaceID:   spaceID,
		Transform: geom.PoseToTransform(n.Position, n.Orientation),
		Metadata: Metadata{
			Text:  n.Text,
			Color: n.Color.OrDefault(),
			Kind:  KindNote,
		},
		CreatedAt: n.CreatedAt,
	}
}

// MostRecent returns the space with the greatest UpdatedAt. Ties go to the
// smallest ID so repeated calls over the same set agree.
func MostRecent(spaces []Space) (Space, bool) {
	if len(spaces) == 0 {
		return Space{}, false
	}
	best := spaces[0]
	for _, s := range spaces[1:] {
		switch {
		case s.UpdatedAt.After(best.UpdatedAt):
			best = s
		case s.UpdatedAt.Equal(best.UpdatedAt) && s.ID < best.ID:
			best = s
		}
	}
	return best, true
}
