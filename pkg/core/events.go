package core

import (
	"fmt"
	"time"
)

// EventType names an observable session change.
type EventType string

const (
	EventTrackingChanged EventType = "TRACKING_CHANGED"
	EventRelocalizing    EventType = "RELOCALIZING"
	EventNotesRestored   EventType = "NOTES_RESTORED"
	EventSpaceCreated    EventType = "SPACE_CREATED"
	EventSpaceUpdated    EventType = "SPACE_UPDATED"
	EventNoteSaved       EventType = "NOTE_SAVED"
	EventNoteDeleted     EventType = "NOTE_DELETED"
	EventReset           EventType = "RESET"
	EventError           EventType = "ERROR"
)

// Event is a value published by the session for the UI layer. ID is the
// space or note the event is about, if any; Detail is a short free-form
// qualifier such as a tracking state name.
type Event struct {
	Type      EventType
	ID        string
	Detail    string
	Err       error
	Timestamp time.Time
}

// String implements fmt.Stringer.
func (e Event) String() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s %s: %v", e.Type, e.ID, e.Err)
	case e.Detail != "":
		return fmt.Sprintf("%s %s (%s)", e.Type, e.ID, e.Detail)
	default:
		return fmt.Sprintf("%s %s", e.Type, e.ID)
	}
}

// ChangeKind is the type of change observed in a store.
type ChangeKind string

const (
	ChangeCreate ChangeKind = "CREATE"
	ChangeModify ChangeKind = "MODIFY"
	ChangeDelete ChangeKind = "DELETE"
)

// Collection names the record collections of a store.
type Collection string

const (
	CollectionSpaces  Collection = "spaces"
	CollectionAnchors Collection = "anchors"
)

// Change is a record-level change observed in a store.
type Change struct {
	Kind       ChangeKind
	Collection Collection
	ID         string
	Timestamp  int64 // Unix timestamp
}

// String implements fmt.Stringer.
func (c Change) String() string {
	return fmt.Sprintf("%s %s/%s", c.Kind, c.Collection, c.ID)
}
