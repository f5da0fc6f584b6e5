package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service applies the persistence contract on top of a SpaceStore:
// timestamps, referential checks, update-or-create semantics and error
// classification. Every caller in the session goes through it.
type Service struct {
	store SpaceStore
	now   func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a new Service.
func NewService(store SpaceStore, opts ...ServiceOption) *Service {
	s := &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewID returns a fresh identifier for a space or note.
func NewID() string {
	return uuid.NewString()
}

// Store returns the underlying store.
func (s *Service) Store() SpaceStore {
	return s.store
}

// CreateSpace persists a new space holding the given map. CreatedAt and
// UpdatedAt are equal on creation.
func (s *Service) CreateSpace(ctx context.Context, worldMap []byte) (Space, error) {
	now := s.now()
	sp := Space{
		ID:        NewID(),
		Map:       worldMap,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.SaveSpace(ctx, sp); err != nil {
		return Space{}, storageErr("save space", sp.ID, err)
	}
	return sp, nil
}

// RefreshSpace replaces the map of an existing space in place. UpdatedAt
// strictly increases even if the clock has not moved.
func (s *Service) RefreshSpace(ctx context.Context, sp Space, worldMap []byte) (Space, error) {
	if sp.ID == "" {
		return Space{}, errors.New("space ID cannot be empty")
	}
	next := sp
	next.Map = worldMap
	next.UpdatedAt = s.after(sp.UpdatedAt)
	if err := s.store.SaveSpace(ctx, next); err != nil {
		return Space{}, storageErr("save space", sp.ID, err)
	}
	return next, nil
}

// SaveSpace upserts a space as given.
func (s *Service) SaveSpace(ctx context.Context, sp Space) error {
	if sp.ID == "" {
		return errors.New("space ID cannot be empty")
	}
	return storageErr("save space", sp.ID, s.store.SaveSpace(ctx, sp))
}

// LoadSpace retrieves a space.
func (s *Service) LoadSpace(ctx context.Context, id string) (Space, error) {
	sp, err := s.store.LoadSpace(ctx, id)
	return sp, storageErr("load space", id, err)
}

// LoadAllSpaces retrieves every space.
func (s *Service) LoadAllSpaces(ctx context.Context) ([]Space, error) {
	spaces, err := s.store.LoadAllSpaces(ctx)
	return spaces, storageErr("load spaces", "", err)
}

// LoadMostRecentSpace retrieves the most recently updated space.
func (s *Service) LoadMostRecentSpace(ctx context.Context) (Space, error) {
	sp, err := s.store.LoadMostRecentSpace(ctx)
	return sp, storageErr("load most recent space", "", err)
}

// CreateAnchor persists a new anchor. The owning space must already exist.
func (s *Service) CreateAnchor(ctx context.Context, a Anchor) (Anchor, error) {
	if a.ID == "" {
		return Anchor{}, errors.New("anchor ID cannot be empty")
	}
	if a.SpaceID == "" {
		return Anchor{}, ErrNoActiveSpace
	}
	if _, err := s.store.LoadSpace(ctx, a.SpaceID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Anchor{}, ErrNoActiveSpace
		}
		return Anchor{}, storageErr("load space", a.SpaceID, err)
	}

	now := s.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	if a.UpdatedAt.Before(a.CreatedAt) {
		a.UpdatedAt = a.CreatedAt
	}
	if a.Metadata.Kind == "" {
		a.Metadata.Kind = KindNote
	}
	a.Metadata.Color = a.Metadata.Color.OrDefault()

	if err := s.store.SaveAnchor(ctx, a); err != nil {
		return Anchor{}, storageErr("save anchor", a.ID, err)
	}
	return a, nil
}

// UpdateAnchor applies attrs to the stored anchor with draft.ID, keeping
// its CreatedAt, SpaceID and pose. If no such anchor exists, draft (with
// attrs applied) is created instead.
func (s *Service) UpdateAnchor(ctx context.Context, draft Anchor, attrs ...Attribute) (Anchor, error) {
	existing, err := s.store.LoadAnchor(ctx, draft.ID)
	if errors.Is(err, ErrNotFound) {
		draft.Metadata = draft.Metadata.With(attrs...)
		return s.CreateAnchor(ctx, draft)
	}
	if err != nil {
		return Anchor{}, storageErr("load anchor", draft.ID, err)
	}

	updated := existing
	updated.Metadata = existing.Metadata.With(attrs...)
	updated.UpdatedAt = s.after(existing.UpdatedAt)
	if err := s.store.SaveAnchor(ctx, updated); err != nil {
		return Anchor{}, storageErr("save anchor", updated.ID, err)
	}
	return updated, nil
}

// LoadAnchor retrieves an anchor.
func (s *Service) LoadAnchor(ctx context.Context, id string) (Anchor, error) {
	a, err := s.store.LoadAnchor(ctx, id)
	return a, storageErr("load anchor", id, err)
}

// LoadAnchors retrieves every anchor of a space.
func (s *Service) LoadAnchors(ctx context.Context, spaceID string) ([]Anchor, error) {
	anchors, err := s.store.LoadAnchors(ctx, spaceID)
	return anchors, storageErr("load anchors", spaceID, err)
}

// DeleteAnchor removes an anchor; a missing anchor is not an error.
func (s *Service) DeleteAnchor(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("anchor ID cannot be empty")
	}
	err := s.store.DeleteAnchor(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return storageErr("delete anchor", id, err)
}

// ClearAll deletes every space and anchor.
func (s *Service) ClearAll(ctx context.Context) error {
	return storageErr("clear", "", s.store.ClearAll(ctx))
}

// after returns the current time, or a point just past prev if the clock
// has not advanced beyond it.
func (s *Service) after(prev time.Time) time.Time {
	now := s.now()
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}
