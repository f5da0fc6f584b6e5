package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/loci/pkg/core"
	"github.com/aretw0/loci/pkg/tracking"
)

var (
	// ErrStopped is returned by operations posted to a session whose loop
	// has exited.
	ErrStopped = errors.New("session stopped")
	// ErrNotStarted is returned by operations posted before Start.
	ErrNotStarted = errors.New("session not started")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("session already started")
	// ErrTrackingFailed is reported when the tracker gives up.
	ErrTrackingFailed = errors.New("tracking failed")
	// ErrRelocalizing is returned by CreateNote while a saved Space waits
	// to be recognized. Poses taken before that are in a different frame.
	ErrRelocalizing = errors.New("relocalization pending")
)

// workspace is the state owned by the session loop. Only code running
// inside the loop may touch it.
type workspace struct {
	machine *tracking.Machine
	current *core.Space
	notes   map[string]core.Note
	lastErr error
}

// Snapshot is the observable state of a session.
type Snapshot struct {
	Notes          []core.Note
	TrackingState  tracking.State
	HasActiveSpace bool
	SpaceID        string
	// IsRelocalizing is true while a saved Space waits to be recognized.
	IsRelocalizing bool
	Phase          Phase
	LastError      error
}

type envelope struct {
	ctx context.Context
	cmd func(context.Context)
	ev  tracking.Event
}

// Session serializes tracking events and user operations on one goroutine.
type Session struct {
	logger  *slog.Logger
	svc     *core.Service
	tracker core.Tracker
	scene   core.Scene

	ws    *workspace
	coord *Coordinator
	ctrl  *Controller

	inbox    chan envelope
	events   chan core.Event
	done     chan struct{}
	snapshot atomic.Pointer[Snapshot]

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
}

// New assembles a session around a store, a tracker and a scene. A nil
// scene discards materialization.
func New(store core.SpaceStore, tracker core.Tracker, scene core.Scene, opts ...Option) *Session {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if scene == nil {
		scene = nopScene{}
	}
	logger := o.logger.With("component", "session")

	s := &Session{
		logger:  logger,
		svc:     core.NewService(store, core.WithClock(o.clock)),
		tracker: tracker,
		scene:   scene,
		ws: &workspace{
			machine: tracking.NewMachine(),
			notes:   make(map[string]core.Note),
		},
		inbox:  make(chan envelope, o.inboxBuffer),
		events: make(chan core.Event, o.eventBuffer),
		done:   make(chan struct{}),
	}
	s.coord = &Coordinator{
		svc:     s.svc,
		tracker: tracker,
		scene:   scene,
		ws:      s.ws,
		logger:  logger.With("role", "coordinator"),
		emit:    s.emit,
	}
	s.ctrl = &Controller{
		svc:     s.svc,
		tracker: tracker,
		scene:   scene,
		ws:      s.ws,
		coord:   s.coord,
		logger:  logger.With("role", "controller"),
		emit:    s.emit,
		now:     o.clock,
	}
	s.publish()
	return s
}

// Start launches the session loop. The first thing the loop does is
// restore the most recent Space; a failed restore is reported on the
// event stream and does not fail Start.
func (s *Session) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return ErrAlreadyStarted
	}
	s.started = true

	// Deliver drops events until started is set, and started is set under
	// the same lock, so the restore is the first message in the inbox.
	s.inbox <- envelope{ctx: context.WithoutCancel(ctx), cmd: s.restore}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	lifecycle.Go(runCtx, s.run, lifecycle.WithErrorHandler(func(err error) {
		s.logger.Error("session loop failed", "error", err)
	}))
	return nil
}

// Stop ends the loop and waits for it to exit. Queued work is dropped.
func (s *Session) Stop(ctx context.Context) error {
	s.mu.Lock()
	started, cancel := s.started, s.cancel
	s.mu.Unlock()
	if !started {
		return nil
	}
	cancel()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deliver hands a tracking event to the loop. It blocks while the inbox is
// full. Events delivered before Start or after the session has stopped are
// dropped.
func (s *Session) Deliver(ev tracking.Event) {
	if ev == nil {
		return
	}
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		s.logger.Debug("session not started, dropping tracking event", "event", fmt.Sprintf("%T", ev))
		return
	}
	select {
	case s.inbox <- envelope{ev: ev}:
	case <-s.done:
	}
}

// Events returns the observable event stream. It is closed when the loop
// exits. Events that do not fit the buffer are dropped.
func (s *Session) Events() <-chan core.Event {
	return s.events
}

// Snapshot returns the state published after the last processed message.
func (s *Session) Snapshot() Snapshot {
	snap := *s.snapshot.Load()
	snap.Notes = slices.Clone(snap.Notes)
	return snap
}

// Done is closed when the loop has exited.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Restore drops the notes in memory and restores the most recent Space
// again, as on start.
func (s *Session) Restore(ctx context.Context) (Phase, error) {
	return call(ctx, s, func(ctx context.Context) (Phase, error) {
		s.ctrl.dematerializeAll(ctx)
		return s.coord.Restore(ctx)
	})
}

// Flush waits until everything queued before it has been processed.
func (s *Session) Flush(ctx context.Context) error {
	return s.do(ctx, func(context.Context) {})
}

// SaveMap captures and persists the current map.
func (s *Session) SaveMap(ctx context.Context) (core.Space, error) {
	return call(ctx, s, s.ctrl.SaveMap)
}

// CreateNote places and persists a new note.
func (s *Session) CreateNote(ctx context.Context, d NoteDraft) (core.Note, error) {
	return call(ctx, s, func(ctx context.Context) (core.Note, error) {
		return s.ctrl.CreateNote(ctx, d)
	})
}

// UpdateText changes the text of a note.
func (s *Session) UpdateText(ctx context.Context, id, text string) (core.Note, error) {
	return call(ctx, s, func(ctx context.Context) (core.Note, error) {
		return s.ctrl.UpdateText(ctx, id, text)
	})
}

// UpdateColor changes the color of a note.
func (s *Session) UpdateColor(ctx context.Context, id string, color core.Color) (core.Note, error) {
	return call(ctx, s, func(ctx context.Context) (core.Note, error) {
		return s.ctrl.UpdateColor(ctx, id, color)
	})
}

// DeleteNote removes a note everywhere.
func (s *Session) DeleteNote(ctx context.Context, id string) error {
	_, err := call(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.ctrl.DeleteNote(ctx, id)
	})
	return err
}

// Reset wipes all persisted state and restarts tracking.
func (s *Session) Reset(ctx context.Context) error {
	_, err := call(ctx, s, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.ctrl.Reset(ctx)
	})
	return err
}

// Background saves the map before the host suspends the process.
func (s *Session) Background(ctx context.Context) (core.Space, error) {
	return call(ctx, s, s.ctrl.Background)
}

// call runs fn on the loop and returns its result. A failing fn is
// reported on the event stream as well. Once enqueued, fn runs to
// completion even if ctx is cancelled.
func call[T any](ctx context.Context, s *Session, fn func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	if derr := s.do(ctx, func(ctx context.Context) {
		out, err = fn(ctx)
		if err != nil {
			s.report(err)
		}
	}); derr != nil {
		var zero T
		return zero, derr
	}
	return out, err
}

func (s *Session) do(ctx context.Context, fn func(context.Context)) error {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	reply := make(chan struct{})
	env := envelope{
		ctx: context.WithoutCancel(ctx),
		cmd: func(ctx context.Context) {
			defer close(reply)
			fn(ctx)
		},
	}

	select {
	case s.inbox <- env:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-reply:
		return nil
	case <-s.done:
		select {
		case <-reply:
			return nil
		default:
			return ErrStopped
		}
	}
}

func (s *Session) run(ctx context.Context) error {
	defer close(s.done)
	defer close(s.events)
	defer s.logger.Debug("session loop exited")

	s.logger.Debug("session loop started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-s.inbox:
			if env.ev != nil {
				s.handleTracking(ctx, env.ev)
			} else {
				env.cmd(env.ctx)
			}
			s.publish()
		}
	}
}

func (s *Session) restore(ctx context.Context) {
	if _, err := s.coord.Restore(ctx); err != nil {
		s.report(err)
	}
}

func (s *Session) handleTracking(ctx context.Context, ev tracking.Event) {
	from := s.ws.machine.State()
	for _, sig := range s.ws.machine.Apply(ev) {
		switch sig {
		case tracking.StateTransition:
			to := s.ws.machine.State()
			s.logger.Debug("tracking changed", "from", from, "to", to)
			s.emit(core.Event{Type: core.EventTrackingChanged, Detail: to.String()})
		case tracking.RelocalizationStarted:
			s.logger.Info("relocalization started")
		case tracking.RelocalizationFailed:
			s.logger.Info("relocalization failed")
		case tracking.RelocalizationSucceeded:
			s.logger.Info("relocalization succeeded")
			if _, err := s.coord.HandleSignal(ctx, sig); err != nil {
				s.report(err)
			}
		}
	}

	if f, ok := ev.(tracking.SessionFailed); ok {
		s.coord.abandon(f.Reason)
		s.report(fmt.Errorf("%w: %s", ErrTrackingFailed, f.Reason))
	}
}

// emit publishes without blocking the loop.
func (s *Session) emit(e core.Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = s.ctrl.now()
	}
	select {
	case s.events <- e:
	default:
		s.logger.Warn("event buffer full, dropping event", "event", e.String())
	}
}

func (s *Session) report(err error) {
	s.ws.lastErr = err
	s.logger.Error("operation failed", "error", err)
	s.emit(core.Event{Type: core.EventError, Err: err})
}

func (s *Session) publish() {
	notes := make([]core.Note, 0, len(s.ws.notes))
	for _, n := range s.ws.notes {
		notes = append(notes, n)
	}
	slices.SortFunc(notes, func(a, b core.Note) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	snap := &Snapshot{
		Notes:          notes,
		TrackingState:  s.ws.machine.State(),
		HasActiveSpace: s.ws.current != nil,
		IsRelocalizing: s.coord.Phase() == AttemptingRelocalization,
		Phase:          s.coord.Phase(),
		LastError:      s.ws.lastErr,
	}
	if s.ws.current != nil {
		snap.SpaceID = s.ws.current.ID
	}
	s.snapshot.Store(snap)
}

type nopScene struct{}

func (nopScene) Materialize(context.Context, core.Note) error { return nil }
func (nopScene) Remove(context.Context, string) error         { return nil }
