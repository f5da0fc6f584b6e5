package tracking

import "github.com/aretw0/loci/pkg/geom"

// Event is an immutable report from the tracking subsystem. Callbacks copy
// whatever they need out of subsystem-owned frames into one of these values
// before handing it to the session.
type Event interface {
	trackingEvent()
}

// StateChanged reports a new tracking quality.
type StateChanged struct {
	State State
}

// PlaneDetected reports a newly detected supporting surface.
type PlaneDetected struct {
	ID string
}

// PlaneRemoved reports that a surface was merged away or lost.
type PlaneRemoved struct {
	ID string
}

// FrameUpdated carries the camera position of the latest frame.
type FrameUpdated struct {
	Camera geom.Vec3
}

// SessionFailed reports that the subsystem stopped with an error.
type SessionFailed struct {
	Reason string
}

// SessionReset reports that the subsystem discarded its map and restarted.
type SessionReset struct{}

func (StateChanged) trackingEvent()  {}
func (PlaneDetected) trackingEvent() {}
func (PlaneRemoved) trackingEvent()  {}
func (FrameUpdated) trackingEvent()  {}
func (SessionFailed) trackingEvent() {}
func (SessionReset) trackingEvent()  {}

// Signal is an edge produced by a transition.
type Signal int

const (
	// RelocalizationSucceeded fires when Normal is entered while a
	// relocalization attempt is pending.
	RelocalizationSucceeded Signal = iota + 1
	// RelocalizationStarted fires when Relocalizing is entered from any
	// other state.
	RelocalizationStarted
	// StateTransition fires on every change of State.
	StateTransition
	// RelocalizationFailed fires when the session fails while a
	// relocalization attempt is pending. The attempt is closed.
	RelocalizationFailed
)

func (s Signal) String() string {
	switch s {
	case RelocalizationSucceeded:
		return "relocalization-succeeded"
	case RelocalizationStarted:
		return "relocalization-started"
	case StateTransition:
		return "state-transition"
	case RelocalizationFailed:
		return "relocalization-failed"
	default:
		return "unknown"
	}
}
