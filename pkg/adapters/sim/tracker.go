// Package sim provides in-process stand-ins for the external tracking
// subsystem and scene layer. They drive the session in tests and in the
// CLI's simulate command.
package sim

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/geom"
	"github.com/aretw0/loci/pkg/tracking"
)

// mapMagic prefixes every map this tracker produces; anything else is
// rejected as unreadable, like a real subsystem rejecting a foreign map.
var mapMagic = []byte("sim-map/")

// ErrUnreadableMap is returned by Run for a prior map the tracker did not
// produce.
var ErrUnreadableMap = errors.New("sim: unreadable world map")

// Tracker implements core.Tracker. Events are pushed to the attached sink
// only from the scripting helpers, never from inside Run, CaptureMap or
// Reset, so a sink that feeds the session inbox cannot deadlock.
type Tracker struct {
	mu         sync.Mutex
	sink       func(tracking.Event)
	priors     [][]byte
	captures   int
	resets     int
	captureErr error
	runErr     error
}

// NewTracker returns a tracker with no sink attached.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Attach sets the function receiving emitted events, typically
// Session.Deliver.
func (t *Tracker) Attach(sink func(tracking.Event)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = sink
}

// FailCapture makes subsequent CaptureMap calls return err (nil clears it).
func (t *Tracker) FailCapture(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.captureErr = err
}

// FailRun makes subsequent Run calls return err (nil clears it).
func (t *Tracker) FailRun(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.runErr = err
}

func (t *Tracker) Run(ctx context.Context, prior []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.priors = append(t.priors, slices.Clone(prior))
	if t.runErr != nil {
		return t.runErr
	}
	if len(prior) > 0 && !bytes.HasPrefix(prior, mapMagic) {
		return ErrUnreadableMap
	}
	return nil
}

func (t *Tracker) CaptureMap(ctx context.Context) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.captureErr != nil {
		return nil, t.captureErr
	}
	t.captures++
	return fmt.Appendf(slices.Clone(mapMagic), "%d", t.captures), nil
}

func (t *Tracker) Reset(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.resets++
	return nil
}

// Priors returns the prior maps passed to Run, in call order. A fresh
// start appears as a nil entry.
func (t *Tracker) Priors() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return slices.Clone(t.priors)
}

// Captures returns the number of successful map captures.
func (t *Tracker) Captures() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.captures
}

// Resets returns the number of Reset calls.
func (t *Tracker) Resets() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.resets
}

// Emit pushes events to the sink in order.
func (t *Tracker) Emit(events ...tracking.Event) {
	t.mu.Lock()
	sink := t.sink
	t.mu.Unlock()
	if sink == nil {
		return
	}
	for _, ev := range events {
		sink(ev)
	}
}

// Stabilize reports a fresh session reaching normal tracking with one
// detected floor plane and a camera at standing height.
func (t *Tracker) Stabilize() {
	t.Emit(
		tracking.StateChanged{State: tracking.Initializing},
		tracking.FrameUpdated{Camera: geom.Vec3{0, 1.6, 0}},
		tracking.PlaneDetected{ID: "floor"},
		tracking.StateChanged{State: tracking.Normal},
	)
}

// Relocalize reports a successful relocalization against the prior map.
func (t *Tracker) Relocalize() {
	t.Emit(
		tracking.StateChanged{State: tracking.Relocalizing},
		tracking.PlaneDetected{ID: "floor"},
		tracking.StateChanged{State: tracking.Normal},
	)
}

// Shake reports a brief loss of tracking from excessive motion.
func (t *Tracker) Shake() {
	t.Emit(
		tracking.StateChanged{State: tracking.ExcessiveMotion},
		tracking.StateChanged{State: tracking.Normal},
	)
}

var _ core.Tracker = (*Tracker)(nil)
