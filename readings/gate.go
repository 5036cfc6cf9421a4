package readings

import (
	"sync"
	"sync/atomic"
	"time"
)

// gate is the single-writer / many-reader coordination primitive shared by
// the reading store and the purge loop. It mirrors the storage engine's
// db_mutex + writers_active counter: writes are fully serialized by mu, and
// writersActive lets a purge block yield to an append that is already under
// way even before that append manages to acquire mu.
type gate struct {
	writersActive atomic.Int32
	mu            sync.Mutex
	cond          *sync.Cond
}

func newGate() *gate {
	g := &gate{}
	g.cond = sync.NewCond(&g.mu)
	return g
}

// runWrite executes fn under the exclusive write lock, tracking
// writersActive around it the way append and common-table delete do.
func (g *gate) runWrite(fn func() error) error {
	g.writersActive.Add(1)
	g.mu.Lock()
	defer g.mu.Unlock()
	err := fn()
	g.writersActive.Add(-1)
	g.cond.Broadcast()
	return err
}

// awaitDrain blocks, polling, until no writer is active. Used before the
// purge binary-search phase begins so the row-count snapshot is stable.
func (g *gate) awaitDrain() {
	for g.writersActive.Load() > 0 {
		time.Sleep(time.Millisecond)
	}
}

// purgeBlock executes fn (one purge DELETE) under the write lock, first
// yielding to any writer that is already mid-flight. Unlike runWrite it does
// not itself count as a writer, so an append cannot be made to wait on it
// through writersActive — only through mu, which fn holds while running.
func (g *gate) purgeBlock(fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for g.writersActive.Load() > 0 {
		g.cond.Wait()
	}
	return fn()
}
