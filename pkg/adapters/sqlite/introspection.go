package sqlite

import (
	"context"

	"github.com/aretw0/introspection"
)

// StoreState exposes internal state for observability.
type StoreState struct {
	Path     string `json:"path"`
	ReadOnly bool   `json:"read_only"`
	Open     bool   `json:"open"`
	Spaces   int    `json:"spaces"`
	Anchors  int    `json:"anchors"`
}

// State implements introspection.Introspectable. Row counts are left at
// zero when the database is closed or cannot be queried.
func (s *Store) State() any {
	state := StoreState{
		Path:     s.config.Path,
		ReadOnly: s.config.ReadOnly,
		Open:     s.db != nil,
	}
	if s.db == nil {
		return state
	}

	ctx := context.Background()
	_ = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM spaces`).Scan(&state.Spaces)
	_ = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM anchors`).Scan(&state.Anchors)
	return state
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "sqlite-store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
