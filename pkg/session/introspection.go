package session

import (
	"github.com/aretw0/introspection"
)

// SessionState exposes internal state for observability.
type SessionState struct {
	Running        bool   `json:"running"`
	Phase          string `json:"phase"`
	TrackingState  string `json:"tracking_state"`
	SpaceID        string `json:"space_id,omitempty"`
	Notes          int    `json:"notes"`
	InboxQueued    int    `json:"inbox_queued"`
	EventsBuffered int    `json:"events_buffered"`
	LastError      string `json:"last_error,omitempty"`
	Service        any    `json:"service"`
}

// State implements introspection.Introspectable.
func (s *Session) State() any {
	snap := s.snapshot.Load()

	s.mu.Lock()
	running := s.started
	s.mu.Unlock()
	select {
	case <-s.done:
		running = false
	default:
	}

	state := SessionState{
		Running:        running,
		Phase:          snap.Phase.String(),
		TrackingState:  snap.TrackingState.String(),
		SpaceID:        snap.SpaceID,
		Notes:          len(snap.Notes),
		InboxQueued:    len(s.inbox),
		EventsBuffered: len(s.events),
		Service:        s.svc.State(),
	}
	if snap.LastError != nil {
		state.LastError = snap.LastError.Error()
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Session) ComponentType() string {
	return "session"
}

var _ introspection.Introspectable = (*Session)(nil)
var _ introspection.Component = (*Session)(nil)
