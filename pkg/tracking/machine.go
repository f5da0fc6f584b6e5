package tracking

import (
	"fmt"

	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/geom"
)

// Machine is the tracking state machine. It is not safe for concurrent use;
// the session owns it and applies events from a single goroutine.
type Machine struct {
	state      State
	attempting bool
	planes     map[string]struct{}
	camera     geom.Vec3
	hasCamera  bool
}

// NewMachine returns a machine in NotAvailable.
func NewMachine() *Machine {
	return &Machine{
		state:  NotAvailable,
		planes: make(map[string]struct{}),
	}
}

// State returns the current tracking state.
func (m *Machine) State() State { return m.state }

// AttemptingRelocalization reports whether a relocalization attempt is
// pending (Relocalizing was entered and neither Normal nor a session
// failure has been seen since).
func (m *Machine) AttemptingRelocalization() bool { return m.attempting }

// Planes returns the number of currently detected surfaces.
func (m *Machine) Planes() int { return len(m.planes) }

// Camera returns the last reported camera position.
func (m *Machine) Camera() (geom.Vec3, bool) { return m.camera, m.hasCamera }

// CanCaptureMap reports whether the subsystem can produce a reliable map
// right now: tracking is Normal and at least one surface is known.
func (m *Machine) CanCaptureMap() bool {
	return m.state == Normal && len(m.planes) > 0
}

// CheckCapture returns nil when CanCaptureMap holds, otherwise an error
// wrapping core.ErrMapUnavailable that says why.
func (m *Machine) CheckCapture() error {
	if m.CanCaptureMap() {
		return nil
	}
	return fmt.Errorf("%w: tracking is %s with %d detected surfaces", core.ErrMapUnavailable, m.state, len(m.planes))
}

// Apply feeds one event into the machine and returns the signals the
// resulting transition produced, in order.
func (m *Machine) Apply(ev Event) []Signal {
	switch e := ev.(type) {
	case StateChanged:
		return m.transition(e.State)
	case PlaneDetected:
		if e.ID != "" {
			m.planes[e.ID] = struct{}{}
		}
	case PlaneRemoved:
		delete(m.planes, e.ID)
	case FrameUpdated:
		if geom.IsFiniteVec3(e.Camera) {
			m.camera = e.Camera
			m.hasCamera = true
		}
	case SessionFailed:
		failed := m.attempting
		m.attempting = false
		signals := m.transition(NotAvailable)
		if failed {
			signals = append(signals, RelocalizationFailed)
		}
		return signals
	case SessionReset:
		m.Reset()
		return m.transition(Initializing)
	}
	return nil
}

// Reset forgets surfaces, camera and any pending relocalization attempt.
// The state itself is left for the next report to set.
func (m *Machine) Reset() {
	clear(m.planes)
	m.attempting = false
	m.hasCamera = false
	m.camera = geom.Vec3{}
}

func (m *Machine) transition(next State) []Signal {
	if next == m.state {
		return nil
	}
	m.state = next

	signals := []Signal{StateTransition}
	switch next {
	case Relocalizing:
		if !m.attempting {
			signals = append(signals, RelocalizationStarted)
		}
		m.attempting = true
	case Normal:
		if m.attempting {
			m.attempting = false
			signals = append(signals, RelocalizationSucceeded)
		}
	}
	return signals
}
