package north

import (
	"context"

	"github.com/foglamp-io/storage-sqlite/readings"
)

// StoreAdapter satisfies Fetcher by delegating to a *readings.Store,
// translating its ReadingSet into the decoupled Result shape this package
// uses so north stays a thin external collaborator rather than reaching
// into the engine's internals.
type StoreAdapter struct {
	Store *readings.Store
}

// Fetch implements Fetcher.
func (a StoreAdapter) Fetch(ctx context.Context, startID int64, blockSize int) (Result, error) {
	set, err := a.Store.Fetch(ctx, startID, blockSize)
	if err != nil {
		return Result{}, err
	}
	return Result{Count: set.Count, Rows: set.Rows}, nil
}
