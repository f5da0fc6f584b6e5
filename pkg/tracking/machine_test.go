package tracking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/geom"
	"github.com/aretw0/loci/pkg/tracking"
)

func feed(m *tracking.Machine, states ...tracking.State) []tracking.Signal {
	var all []tracking.Signal
	for _, s := range states {
		all = append(all, m.Apply(tracking.StateChanged{State: s})...)
	}
	return all
}

func count(signals []tracking.Signal, want tracking.Signal) int {
	n := 0
	for _, s := range signals {
		if s == want {
			n++
		}
	}
	return n
}

func TestMachine_InitialState(t *testing.T) {
	m := tracking.NewMachine()
	assert.Equal(t, tracking.NotAvailable, m.State())
	assert.False(t, m.AttemptingRelocalization())
	assert.False(t, m.CanCaptureMap())
}

func TestMachine_RelocalizationEdge(t *testing.T) {
	t.Run("relocalizing then normal fires once", func(t *testing.T) {
		m := tracking.NewMachine()
		feed(m, tracking.Normal)

		signals := feed(m, tracking.Relocalizing, tracking.Normal)
		assert.Equal(t, 1, count(signals, tracking.RelocalizationSucceeded))
		assert.False(t, m.AttemptingRelocalization())

		// A repeated Normal report is not a transition.
		assert.Empty(t, feed(m, tracking.Normal))
	})

	t.Run("excessive motion then normal fires nothing", func(t *testing.T) {
		m := tracking.NewMachine()
		feed(m, tracking.Normal)

		signals := feed(m, tracking.ExcessiveMotion, tracking.Normal)
		assert.Zero(t, count(signals, tracking.RelocalizationSucceeded))
	})

	t.Run("flag is sticky across other limited states", func(t *testing.T) {
		m := tracking.NewMachine()
		signals := feed(m, tracking.Initializing, tracking.Relocalizing, tracking.InsufficientFeatures, tracking.ExcessiveMotion)
		assert.Equal(t, 1, count(signals, tracking.RelocalizationStarted))
		assert.True(t, m.AttemptingRelocalization())

		signals = feed(m, tracking.Normal)
		assert.Equal(t, 1, count(signals, tracking.RelocalizationSucceeded))
	})

	t.Run("independent attempts each fire", func(t *testing.T) {
		m := tracking.NewMachine()
		signals := feed(m, tracking.Relocalizing, tracking.Normal, tracking.Relocalizing, tracking.Normal)
		assert.Equal(t, 2, count(signals, tracking.RelocalizationSucceeded))
	})

	t.Run("bouncing through relocalizing starts one attempt", func(t *testing.T) {
		m := tracking.NewMachine()
		signals := feed(m, tracking.Relocalizing, tracking.ExcessiveMotion, tracking.Relocalizing, tracking.Normal)
		assert.Equal(t, 1, count(signals, tracking.RelocalizationStarted))
		assert.Equal(t, 1, count(signals, tracking.RelocalizationSucceeded))
	})
}

func TestMachine_AllStatesReachable(t *testing.T) {
	m := tracking.NewMachine()
	states := []tracking.State{
		tracking.Initializing,
		tracking.ExcessiveMotion,
		tracking.InsufficientFeatures,
		tracking.Relocalizing,
		tracking.Normal,
		tracking.NotAvailable,
		tracking.Normal,
	}
	for _, s := range states {
		m.Apply(tracking.StateChanged{State: s})
		assert.Equal(t, s, m.State())
	}
}

func TestMachine_CanCaptureMap(t *testing.T) {
	m := tracking.NewMachine()
	feed(m, tracking.Normal)
	assert.False(t, m.CanCaptureMap(), "no surfaces yet")

	err := m.CheckCapture()
	require.ErrorIs(t, err, core.ErrMapUnavailable)
	assert.Contains(t, err.Error(), "normal with 0 detected surfaces")

	m.Apply(tracking.PlaneDetected{ID: "floor"})
	assert.True(t, m.CanCaptureMap())
	assert.NoError(t, m.CheckCapture())

	feed(m, tracking.ExcessiveMotion)
	assert.False(t, m.CanCaptureMap())

	feed(m, tracking.Normal)
	m.Apply(tracking.PlaneRemoved{ID: "floor"})
	assert.False(t, m.CanCaptureMap())
}

func TestMachine_FailureAndReset(t *testing.T) {
	m := tracking.NewMachine()
	feed(m, tracking.Relocalizing)
	m.Apply(tracking.PlaneDetected{ID: "p"})
	m.Apply(tracking.FrameUpdated{Camera: geom.Vec3{1, 2, 3}})

	m.Apply(tracking.SessionFailed{Reason: "camera denied"})
	assert.Equal(t, tracking.NotAvailable, m.State())

	signals := m.Apply(tracking.SessionReset{})
	assert.Equal(t, tracking.Initializing, m.State())
	assert.Equal(t, []tracking.Signal{tracking.StateTransition}, signals)
	assert.Zero(t, m.Planes())
	assert.False(t, m.AttemptingRelocalization())
	_, ok := m.Camera()
	assert.False(t, ok)

	// After the reset a plain recovery is not a relocalization.
	assert.Zero(t, count(feed(m, tracking.Normal), tracking.RelocalizationSucceeded))
}

func TestMachine_FailureClosesAttempt(t *testing.T) {
	m := tracking.NewMachine()
	feed(m, tracking.Initializing, tracking.Relocalizing)
	require.True(t, m.AttemptingRelocalization())

	signals := m.Apply(tracking.SessionFailed{Reason: "camera denied"})
	assert.Equal(t, []tracking.Signal{tracking.StateTransition, tracking.RelocalizationFailed}, signals)
	assert.False(t, m.AttemptingRelocalization())

	// Recovering on its own is not the outcome of the failed attempt.
	assert.Zero(t, count(feed(m, tracking.Initializing, tracking.Normal), tracking.RelocalizationSucceeded))

	// A failure with nothing pending closes nothing.
	signals = m.Apply(tracking.SessionFailed{Reason: "again"})
	assert.Zero(t, count(signals, tracking.RelocalizationFailed))
}

func TestMachine_Camera(t *testing.T) {
	m := tracking.NewMachine()
	m.Apply(tracking.FrameUpdated{Camera: geom.Vec3{0, 1.6, 0}})
	cam, ok := m.Camera()
	require.True(t, ok)
	assert.Equal(t, geom.Vec3{0, 1.6, 0}, cam)
}

func TestLimitedAndParse(t *testing.T) {
	assert.Equal(t, tracking.ExcessiveMotion, tracking.Limited("excessiveMotion"))
	assert.Equal(t, tracking.InsufficientFeatures, tracking.Limited("insufficient_features"))
	assert.Equal(t, tracking.Relocalizing, tracking.Limited("relocalizing"))
	assert.Equal(t, tracking.Initializing, tracking.Limited("whatever"))

	for _, s := range []tracking.State{tracking.NotAvailable, tracking.Normal, tracking.Relocalizing} {
		got, ok := tracking.ParseState(s.String())
		assert.True(t, ok)
		assert.Equal(t, s, got)
		assert.Equal(t, s != tracking.NotAvailable && s != tracking.Normal, s.Limited())
	}
	_, ok := tracking.ParseState("bogus")
	assert.False(t, ok)
}
