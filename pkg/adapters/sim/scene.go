package sim

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/loci/pkg/core"
)

// Scene implements core.Scene by recording what is currently materialized.
type Scene struct {
	mu     sync.Mutex
	notes  map[string]core.Note
	placed int
	err    error
}

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{notes: make(map[string]core.Note)}
}

// Fail makes subsequent calls return err (nil clears it).
func (s *Scene) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Scene) Materialize(ctx context.Context, n core.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.notes[n.ID] = n
	s.placed++
	return nil
}

func (s *Scene) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.notes, id)
	return nil
}

// Notes returns the materialized notes ordered by id.
func (s *Scene) Notes() []core.Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Note, 0, len(s.notes))
	for _, id := range slices.Sorted(maps.Keys(s.notes)) {
		out = append(out, s.notes[id])
	}
	return out
}

// Placed returns how many Materialize calls succeeded.
func (s *Scene) Placed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.placed
}

var _ core.Scene = (*Scene)(nil)
