package session

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/tracking"
)

// Phase is the restore progress of the Coordinator.
type Phase int

const (
	// Idle: nothing to restore, or the restore was abandoned.
	Idle Phase = iota
	// AttemptingRelocalization: a saved map was handed to the tracker and
	// the coordinator waits for it to be recognized.
	AttemptingRelocalization
	// Restored: the saved notes were reloaded into the scene.
	Restored
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case AttemptingRelocalization:
		return "attempting-relocalization"
	case Restored:
		return "restored"
	default:
		return "unknown"
	}
}

// Coordinator brings back the most recent Space on start and reloads its
// notes once relocalization succeeds. It runs inside the session loop.
type Coordinator struct {
	svc     *core.Service
	tracker core.Tracker
	scene   core.Scene
	ws      *workspace
	logger  *slog.Logger
	emit    func(core.Event)
	phase   Phase
}

// Phase returns the current restore phase.
func (c *Coordinator) Phase() Phase { return c.phase }

// Restore loads the most recent Space and hands its map to the tracker.
// With no saved Space the tracker starts fresh and the phase stays Idle.
// A storage or map failure also ends in a fresh start; the returned error
// only reports what went wrong.
func (c *Coordinator) Restore(ctx context.Context) (Phase, error) {
	c.phase = Idle
	c.ws.current = nil

	sp, err := c.svc.LoadMostRecentSpace(ctx)
	if errors.Is(err, core.ErrNotFound) {
		c.logger.Info("no saved space, starting fresh")
		return c.phase, c.startFresh(ctx)
	}
	if err != nil {
		c.logger.Warn("could not load saved space, starting fresh", "error", err)
		return c.phase, errors.Join(fmt.Errorf("restoring space: %w", err), c.startFresh(ctx))
	}

	if err := c.tracker.Run(ctx, sp.Map); err != nil {
		c.logger.Warn("tracker rejected saved map, starting fresh", "space", sp.ID, "error", err)
		return c.phase, errors.Join(fmt.Errorf("restoring space %s: %w", sp.ID, err), c.startFresh(ctx))
	}

	c.ws.current = &sp
	c.phase = AttemptingRelocalization
	c.logger.Info("waiting for relocalization", "space", sp.ID, "map_bytes", len(sp.Map))
	c.emit(core.Event{Type: core.EventRelocalizing, ID: sp.ID})
	return c.phase, nil
}

// HandleSignal reacts to a tracking signal. Only RelocalizationSucceeded
// during AttemptingRelocalization does anything: the current Space's
// anchors are loaded, projected to notes and materialized, and the phase
// becomes Restored. Later signals are ignored until Restore runs again.
//
// If the anchors cannot be loaded the phase is left unchanged, so the next
// independent relocalization retries. Notes already in memory are not
// materialized twice.
func (c *Coordinator) HandleSignal(ctx context.Context, sig tracking.Signal) ([]core.Note, error) {
	if sig != tracking.RelocalizationSucceeded || c.phase != AttemptingRelocalization || c.ws.current == nil {
		return nil, nil
	}
	spaceID := c.ws.current.ID

	anchors, err := c.svc.LoadAnchors(ctx, spaceID)
	if err != nil {
		c.logger.Error("failed to reload notes", "space", spaceID, "error", err)
		return nil, fmt.Errorf("reloading notes of space %s: %w", spaceID, err)
	}
	slices.SortFunc(anchors, func(a, b core.Anchor) int {
		if n := a.CreatedAt.Compare(b.CreatedAt); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})

	notes := make([]core.Note, 0, len(anchors))
	for _, a := range anchors {
		if _, ok := c.ws.notes[a.ID]; ok {
			continue
		}
		n := core.NoteFromAnchor(a)
		c.ws.notes[n.ID] = n
		if err := c.scene.Materialize(ctx, n); err != nil {
			c.logger.Warn("scene refused note", "note", n.ID, "error", err)
		}
		notes = append(notes, n)
	}

	c.phase = Restored
	c.logger.Info("notes restored", "space", spaceID, "count", len(notes))
	c.emit(core.Event{Type: core.EventNotesRestored, ID: spaceID, Detail: fmt.Sprintf("%d notes", len(notes))})
	return notes, nil
}

// disarm drops any pending restore, e.g. after a full reset.
func (c *Coordinator) disarm() {
	c.phase = Idle
}

// abandon gives up a pending restore after the tracker failed. The session
// continues as a fresh, unmapped one; the saved Space stays in the store
// for the next Restore.
func (c *Coordinator) abandon(reason string) {
	if c.phase != AttemptingRelocalization {
		return
	}
	id := ""
	if c.ws.current != nil {
		id = c.ws.current.ID
	}
	c.ws.current = nil
	c.phase = Idle
	c.logger.Warn("relocalization abandoned, continuing fresh", "space", id, "reason", reason)
}

func (c *Coordinator) startFresh(ctx context.Context) error {
	if err := c.tracker.Run(ctx, nil); err != nil {
		return fmt.Errorf("starting tracker: %w", err)
	}
	return nil
}
