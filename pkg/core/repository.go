package core

import "context"

// SpaceStore is the persistence port for spaces and anchors. Adhering to
// this interface keeps the session independent of the storage engine
// (filesystem, SQLite, memory).
//
// Missing records are reported as ErrNotFound. Implementations make a
// successful write durable before returning.
type SpaceStore interface {
	// SaveSpace upserts a space by ID.
	SaveSpace(ctx context.Context, s Space) error
	// LoadAllSpaces returns every stored space, in no particular order.
	LoadAllSpaces(ctx context.Context) ([]Space, error)
	// LoadMostRecentSpace returns the space with the greatest UpdatedAt,
	// ties broken by smallest ID.
	LoadMostRecentSpace(ctx context.Context) (Space, error)
	// LoadSpace retrieves a space by its ID.
	LoadSpace(ctx context.Context, id string) (Space, error)

	// SaveAnchor upserts an anchor by ID.
	SaveAnchor(ctx context.Context, a Anchor) error
	// LoadAnchor retrieves an anchor by its ID.
	LoadAnchor(ctx context.Context, id string) (Anchor, error)
	// LoadAnchors returns all anchors of a space, in no particular order.
	LoadAnchors(ctx context.Context, spaceID string) ([]Anchor, error)
	// DeleteAnchor removes an anchor. Deleting a missing ID is not an error.
	DeleteAnchor(ctx context.Context, id string) error

	// ClearAll deletes every space and anchor.
	ClearAll(ctx context.Context) error

	// Initialize ensures the underlying storage is ready (directories, schema).
	Initialize(ctx context.Context) error
	// Close releases any resources held by the store.
	Close() error
}

// Watchable is implemented by stores that can report changes made outside
// the running process.
type Watchable interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

// Tracker is the port to the live tracking subsystem. Its state reports
// arrive separately as tracking events; these are the commands the core
// issues.
type Tracker interface {
	// Run starts (or restarts) tracking. A non-nil prior map asks the
	// subsystem to relocalize against it.
	Run(ctx context.Context, prior []byte) error
	// CaptureMap serializes the current environment map.
	CaptureMap(ctx context.Context) ([]byte, error)
	// Reset discards the internal map and restarts from a blank state.
	Reset(ctx context.Context) error
}

// Scene is the port to the rendering layer. The core does not wait on
// rendering beyond the call returning.
type Scene interface {
	Materialize(ctx context.Context, n Note) error
	Remove(ctx context.Context, id string) error
}
