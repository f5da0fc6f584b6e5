// Package session ties tracking, persistence and the scene together.
//
// A Session is a single-goroutine actor. Every mutation of notes, of the
// current Space marker and of the tracking state machine runs inside its
// loop, in arrival order. Tracker callbacks hand over immutable
// tracking.Event values through Deliver; user operations post commands and
// wait for the reply. Nothing outside the loop touches session state.
//
// Two collaborators run inside the loop:
//
//   - Coordinator restores the most recent Space on start and reloads its
//     notes once the tracker reports a successful relocalization.
//   - Controller persists note edits and keeps the Space's map fresh.
//
// Usage:
//
//	s := session.New(store, tracker, scene, session.WithLogger(logger))
//	if err := s.Start(ctx); err != nil {
//		return err
//	}
//	defer s.Stop(context.Background())
//
//	tracker.Attach(s.Deliver)
//	note, err := s.CreateNote(ctx, session.NoteDraft{Text: "milk", Position: hit})
package session
