package plugin

import (
	"context"

	"github.com/foglamp-io/storage-sqlite/readings"
)

// EngineAdapter satisfies Engine by delegating to a *readings.Store,
// translating its ReadingSet into plugin.ReadingSet so plugin binaries
// never need to import the readings package's concrete types.
type EngineAdapter struct {
	Store *readings.Store
}

// Append implements Engine.
func (a EngineAdapter) Append(ctx context.Context, payload []byte) (int, int, error) {
	return a.Store.Append(ctx, payload)
}

// Fetch implements Engine.
func (a EngineAdapter) Fetch(ctx context.Context, startID int64, blockSize int) (ReadingSet, error) {
	set, err := a.Store.Fetch(ctx, startID, blockSize)
	if err != nil {
		return ReadingSet{}, err
	}
	return ReadingSet{Count: set.Count, Rows: set.Rows}, nil
}
