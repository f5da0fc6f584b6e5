package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/geom"
)

// NoteDraft describes a note about to be placed. Orientation is chosen
// from the first available of: Orientation, SurfaceNormal, facing the last
// known camera position, identity.
type NoteDraft struct {
	Text          string
	Color         core.Color
	Position      geom.Vec3
	Orientation   *geom.Quat
	SurfaceNormal *geom.Vec3
}

// Controller persists note edits and keeps the current Space's map fresh.
// It runs inside the session loop.
type Controller struct {
	svc     *core.Service
	tracker core.Tracker
	scene   core.Scene
	ws      *workspace
	coord   *Coordinator
	logger  *slog.Logger
	emit    func(core.Event)
	now     func() time.Time
}

// SaveMap captures the tracker's map into the current Space, creating the
// Space on first use. It fails with core.ErrMapUnavailable while tracking
// cannot produce a reliable map, and while a restore is pending so the
// saved map is not replaced by one in an unrelated frame.
func (c *Controller) SaveMap(ctx context.Context) (core.Space, error) {
	if c.coord.Phase() == AttemptingRelocalization {
		return core.Space{}, fmt.Errorf("%w: %w", core.ErrMapUnavailable, ErrRelocalizing)
	}
	if err := c.ws.machine.CheckCapture(); err != nil {
		c.logger.Info("map save skipped", "reason", err)
		return core.Space{}, err
	}

	blob, err := c.tracker.CaptureMap(ctx)
	if err != nil {
		return core.Space{}, fmt.Errorf("%w: capture failed: %w", core.ErrMapUnavailable, err)
	}

	if c.ws.current == nil {
		sp, err := c.svc.CreateSpace(ctx, blob)
		if err != nil {
			return core.Space{}, err
		}
		c.ws.current = &sp
		c.logger.Info("space created", "space", sp.ID, "map_bytes", len(blob))
		c.emit(core.Event{Type: core.EventSpaceCreated, ID: sp.ID})
		return sp, nil
	}

	sp, err := c.svc.RefreshSpace(ctx, *c.ws.current, blob)
	if err != nil {
		return core.Space{}, err
	}
	c.ws.current = &sp
	c.logger.Debug("space map refreshed", "space", sp.ID, "map_bytes", len(blob))
	c.emit(core.Event{Type: core.EventSpaceUpdated, ID: sp.ID})
	return sp, nil
}

// CreateNote places a new note. The note is kept in memory and in the
// scene even if persisting it fails; the error reports the failure.
//
// The map is saved first so that a Space exists before the anchor that
// references it is written. While a restore is pending the note is
// rejected outright with ErrRelocalizing.
func (c *Controller) CreateNote(ctx context.Context, d NoteDraft) (core.Note, error) {
	if c.coord.Phase() == AttemptingRelocalization {
		return core.Note{}, fmt.Errorf("creating note: %w", ErrRelocalizing)
	}
	n := core.Note{
		ID:          core.NewID(),
		Text:        d.Text,
		Color:       d.Color.OrDefault(),
		Position:    d.Position,
		Orientation: c.orientation(d),
		CreatedAt:   c.now(),
	}
	c.ws.notes[n.ID] = n
	c.materialize(ctx, n)

	if _, err := c.SaveMap(ctx); err != nil {
		if c.ws.current == nil {
			return n, fmt.Errorf("saving note %s: %w: %w", n.ID, core.ErrNoActiveSpace, err)
		}
		c.logger.Debug("saving note against existing map", "note", n.ID, "reason", err)
	}

	if _, err := c.svc.CreateAnchor(ctx, core.AnchorFromNote(n, c.ws.current.ID)); err != nil {
		return n, fmt.Errorf("saving note %s: %w", n.ID, err)
	}
	c.emit(core.Event{Type: core.EventNoteSaved, ID: n.ID})
	return n, nil
}

// UpdateText changes only the text of a note.
func (c *Controller) UpdateText(ctx context.Context, id, text string) (core.Note, error) {
	n, ok := c.ws.notes[id]
	if !ok {
		return core.Note{}, fmt.Errorf("note %s: %w", id, core.ErrNotFound)
	}
	n.Text = text
	return n, c.update(ctx, n, core.TextAttr(text))
}

// UpdateColor changes only the color of a note.
func (c *Controller) UpdateColor(ctx context.Context, id string, color core.Color) (core.Note, error) {
	n, ok := c.ws.notes[id]
	if !ok {
		return core.Note{}, fmt.Errorf("note %s: %w", id, core.ErrNotFound)
	}
	n.Color = color.OrDefault()
	return n, c.update(ctx, n, core.ColorAttr(n.Color))
}

// DeleteNote removes a note from memory, the scene and the store. Deleting
// an unknown note is not an error.
func (c *Controller) DeleteNote(ctx context.Context, id string) error {
	delete(c.ws.notes, id)
	if err := c.scene.Remove(ctx, id); err != nil {
		c.logger.Warn("scene failed to remove note", "note", id, "error", err)
	}
	if err := c.svc.DeleteAnchor(ctx, id); err != nil {
		return fmt.Errorf("deleting note %s: %w", id, err)
	}
	c.emit(core.Event{Type: core.EventNoteDeleted, ID: id})
	c.refreshMap(ctx)
	return nil
}

// Reset wipes every note, Space and anchor and restarts tracking from a
// blank state. In-memory state is cleared even if the store fails.
func (c *Controller) Reset(ctx context.Context) error {
	c.dematerializeAll(ctx)

	var errs []error
	if err := c.svc.ClearAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("clearing store: %w", err))
	}
	c.ws.current = nil
	c.coord.disarm()

	if err := c.tracker.Reset(ctx); err != nil {
		errs = append(errs, fmt.Errorf("resetting tracker: %w", err))
	}
	c.ws.machine.Reset()

	c.logger.Info("session reset")
	c.emit(core.Event{Type: core.EventReset})
	return errors.Join(errs...)
}

// Background makes the latest map durable before the host may suspend or
// terminate the process.
func (c *Controller) Background(ctx context.Context) (core.Space, error) {
	return c.SaveMap(ctx)
}

func (c *Controller) update(ctx context.Context, n core.Note, attr core.Attribute) error {
	c.ws.notes[n.ID] = n
	c.materialize(ctx, n)

	if c.ws.current == nil {
		return fmt.Errorf("updating note %s: %w", n.ID, core.ErrNoActiveSpace)
	}
	if _, err := c.svc.UpdateAnchor(ctx, core.AnchorFromNote(n, c.ws.current.ID), attr); err != nil {
		return fmt.Errorf("updating note %s: %w", n.ID, err)
	}
	c.emit(core.Event{Type: core.EventNoteSaved, ID: n.ID})
	c.refreshMap(ctx)
	return nil
}

// refreshMap saves the map if tracking allows it. Failures are reported on
// the event stream but never fail the operation that triggered them.
func (c *Controller) refreshMap(ctx context.Context) {
	if c.ws.current == nil || !c.ws.machine.CanCaptureMap() {
		return
	}
	if _, err := c.SaveMap(ctx); err != nil {
		c.logger.Warn("opportunistic map save failed", "space", c.ws.current.ID, "error", err)
		c.emit(core.Event{Type: core.EventError, ID: c.ws.current.ID, Err: err})
	}
}

func (c *Controller) orientation(d NoteDraft) geom.Quat {
	switch {
	case d.Orientation != nil:
		return geom.Canonical(*d.Orientation)
	case d.SurfaceNormal != nil:
		return geom.OrientationFromSurfaceNormal(*d.SurfaceNormal)
	}
	if cam, ok := c.ws.machine.Camera(); ok {
		return geom.OrientationFacingCamera(d.Position, cam)
	}
	return geom.Identity()
}

func (c *Controller) materialize(ctx context.Context, n core.Note) {
	if err := c.scene.Materialize(ctx, n); err != nil {
		c.logger.Warn("scene refused note", "note", n.ID, "error", err)
	}
}

func (c *Controller) dematerializeAll(ctx context.Context) {
	for id := range c.ws.notes {
		if err := c.scene.Remove(ctx, id); err != nil {
			c.logger.Warn("scene failed to remove note", "note", id, "error", err)
		}
	}
	clear(c.ws.notes)
}
