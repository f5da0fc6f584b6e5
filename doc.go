// Package loci is the Composition Root for the loci application.
//
// It connects the spatial note session (Domain Layer) with the storage
// engines (Persistence Layer) using the Hexagonal Architecture pattern.
//
// Philosophy:
//
// Notes are placed in the physical world relative to a captured map of the
// environment. A note is only worth keeping if it can be shown in the same
// spot later, so every note is bound to the map it was placed in, and saved
// notes only reappear once the tracking subsystem has recognized that map
// again (relocalization).
//
// Features:
//
//   - **Hexagonal Architecture**: The session sees storage, tracking and rendering through ports.
//   - **Relocalization Gated**: Saved notes appear only after the saved map is recognized.
//   - **Single Writer**: One goroutine owns all session state; callers talk to it through commands.
//   - **Pluggable Storage**: Filesystem (YAML records), SQLite and in-memory engines via `core.SpaceStore`.
//
// Usage:
//
//	sess, store, err := loci.New(ctx, "./notes", tracker, scene,
//		loci.WithAdapter("sqlite"),
//		loci.WithLogger(logger),
//	)
//	defer store.Close()
//
//	tracker.Attach(sess.Deliver)
//	err = sess.Start(ctx)
//	note, err := sess.CreateNote(ctx, loci.NoteDraft{Text: "buy milk"})
package loci
