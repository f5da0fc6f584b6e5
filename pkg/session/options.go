package session

import (
	"log/slog"
	"time"
)

const (
	defaultInboxBuffer = 128
	defaultEventBuffer = 100
)

type options struct {
	logger      *slog.Logger
	inboxBuffer int
	eventBuffer int
	clock       func() time.Time
}

// Option configures a Session.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		inboxBuffer: defaultInboxBuffer,
		eventBuffer: defaultEventBuffer,
		clock:       func() time.Time { return time.Now().UTC() },
	}
}

// WithLogger sets the logger for the session.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithInboxBuffer sets how many commands and tracking events may queue
// before Deliver blocks. Zero means default (128).
func WithInboxBuffer(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.inboxBuffer = size
		}
	}
}

// WithEventBuffer sets the size of the observable event buffer. Events that
// do not fit are dropped and logged. Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(o *options) {
		if size > 0 {
			o.eventBuffer = size
		}
	}
}

// WithClock replaces the wall clock used for timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}
