// Package memory provides an in-process core.SpaceStore. It backs tests and
// the simulated session, and serves as the reference behaviour the other
// engines are checked against.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/aretw0/loci/pkg/core"
)

// Store implements core.SpaceStore in memory.
type Store struct {
	mu      sync.RWMutex
	spaces  map[string]core.Space
	anchors map[string]core.Anchor
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		spaces:  make(map[string]core.Space),
		anchors: make(map[string]core.Anchor),
	}
}

func (s *Store) Initialize(ctx context.Context) error { return nil }
func (s *Store) Close() error                         { return nil }

func (s *Store) SaveSpace(ctx context.Context, sp core.Space) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spaces[sp.ID] = copySpace(sp)
	return nil
}

func (s *Store) LoadAllSpaces(ctx context.Context) ([]core.Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Space, 0, len(s.spaces))
	for _, sp := range s.spaces {
		out = append(out, copySpace(sp))
	}
	return out, nil
}

func (s *Store) LoadMostRecentSpace(ctx context.Context) (core.Space, error) {
	spaces, _ := s.LoadAllSpaces(ctx)
	sp, ok := core.MostRecent(spaces)
	if !ok {
		return core.Space{}, core.ErrNotFound
	}
	return sp, nil
}

func (s *Store) LoadSpace(ctx context.Context, id string) (core.Space, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sp, ok := s.spaces[id]
	if !ok {
		return core.Space{}, core.ErrNotFound
	}
	return copySpace(sp), nil
}

func (s *Store) SaveAnchor(ctx context.Context, a core.Anchor) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.spaces[a.SpaceID]; !ok {
		return fmt.Errorf("anchor %s references unknown space %q", a.ID, a.SpaceID)
	}
	a.Metadata = a.Metadata.Clone()
	s.anchors[a.ID] = a
	return nil
}

func (s *Store) LoadAnchor(ctx context.Context, id string) (core.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.anchors[id]
	if !ok {
		return core.Anchor{}, core.ErrNotFound
	}
	a.Metadata = a.Metadata.Clone()
	return a, nil
}

func (s *Store) LoadAnchors(ctx context.Context, spaceID string) ([]core.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Anchor
	for _, a := range s.anchors {
		if a.SpaceID == spaceID {
			a.Metadata = a.Metadata.Clone()
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) DeleteAnchor(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.anchors, id)
	return nil
}

func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.spaces)
	clear(s.anchors)
	return nil
}

// SpaceIDs returns the stored space ids in sorted order.
func (s *Store) SpaceIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.spaces))
}

func copySpace(sp core.Space) core.Space {
	sp.Map = slices.Clone(sp.Map)
	return sp
}

var _ core.SpaceStore = (*Store)(nil)
