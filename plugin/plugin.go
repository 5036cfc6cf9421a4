// Package plugin defines the interface dynamically loaded filter and
// north-bound plugins satisfy to reach the storage engine's Append and
// Fetch operations, without depending on the engine's concrete types.
package plugin

import "context"

// Engine is the subset of readings.Store a plugin is allowed to call.
// Filters call Append to feed transformed data back into the pipeline;
// north plugins call Fetch to drain it. Neither gets access to Retrieve,
// purge, or the raw database handle.
type Engine interface {
	Append(ctx context.Context, payload []byte) (inserted, skipped int, err error)
	Fetch(ctx context.Context, startID int64, blockSize int) (ReadingSet, error)
}

// ReadingSet mirrors readings.ReadingSet's shape without importing it, so a
// plugin binary can be built without linking the storage engine package
// directly.
type ReadingSet struct {
	Count int
	Rows  []map[string]any
}

// Plugin is the shape every dynamically loaded filter or north plugin
// exposes. Init is called once with the engine handle before any readings
// flow; Shutdown is called once at process teardown.
type Plugin interface {
	Name() string
	Init(engine Engine, config map[string]any) error
	Shutdown() error
}

// Filter is a Plugin that additionally transforms a reading payload before
// it reaches the engine (or before it is forwarded further down a filter
// pipeline).
type Filter interface {
	Plugin
	Process(payload []byte) ([]byte, error)
}
