package platform

import (
	"log/slog"

	"github.com/aretw0/loci/internal/config"
	"github.com/aretw0/loci/pkg/core"
)

// options holds the internal configuration for opening a store and a session.
type options struct {
	store        core.SpaceStore
	logger       *slog.Logger
	adapter      string
	systemDir    string
	readOnly     bool
	devSafety    bool
	forceTemp    bool
	mustExist    bool
	errorHandler func(error)
	inboxBuffer  int
	eventBuffer  int
}

// Option defines a functional option for the platform factory.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		adapter:   config.AdapterFS,
		devSafety: true,
	}
}

// WithLogger sets the logger handed to the store and the session.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStore injects a ready store (e.g. a test double). The adapter
// selection and path resolution are skipped.
func WithStore(store core.SpaceStore) Option {
	return func(o *options) {
		o.store = store
	}
}

// WithAdapter selects the storage engine by name: "fs", "sqlite" or
// "memory". Defaults to "fs".
func WithAdapter(name string) Option {
	return func(o *options) {
		o.adapter = name
	}
}

// WithSystemDir sets the hidden directory of the fs store (default ".loci").
func WithSystemDir(name string) Option {
	return func(o *options) {
		o.systemDir = name
	}
}

// WithReadOnly opens the store in read-only mode. Writes return
// core.ErrReadOnly and the dev sandbox is bypassed.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or
// `go test`. By default the store is re-rooted under the temp dir.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithForceTemp forces the store into the temp dir sandbox.
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithMustExist makes opening fail when the store location is missing.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithWatcherErrorHandler registers a callback for errors of the fs
// store's watch loop, which are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.errorHandler = fn
	}
}

// WithSessionBuffers sets the session inbox and event buffer sizes. Zero
// keeps the session default.
func WithSessionBuffers(inbox, events int) Option {
	return func(o *options) {
		o.inboxBuffer = inbox
		o.eventBuffer = events
	}
}

// FromConfig translates a loaded configuration into options.
func FromConfig(cfg *config.Config) []Option {
	opts := []Option{
		WithAdapter(cfg.Store.Adapter),
		WithReadOnly(cfg.Store.ReadOnly),
		WithDevSafety(cfg.Store.DevSafetyEnabled()),
		WithSessionBuffers(cfg.Session.InboxBuffer, cfg.Session.EventBuffer),
	}
	if cfg.Store.SystemDir != "" {
		opts = append(opts, WithSystemDir(cfg.Store.SystemDir))
	}
	return opts
}
