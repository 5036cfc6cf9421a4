package readings

import "time"

// StoreConfig configures the readings storage engine.
type StoreConfig struct {
	// Path is the SQLite database file, typically "<data dir>/foglamp.sqlite".
	Path string

	// CacheSize is the SQLite page cache size in KB (default: 2000 = 2MB).
	CacheSize int

	// JournalMode sets the SQLite journal mode (default: WAL, so readers
	// are never blocked behind an in-flight write).
	JournalMode string

	// Synchronous sets the synchronous flag (default: NORMAL).
	Synchronous string

	// BusyTimeoutMS is the SQLite-level busy timeout in milliseconds,
	// applied in addition to this package's own retry loop.
	BusyTimeoutMS int

	// MaxConnections bounds the reader connection pool. Writes are
	// serialized in-process regardless of this value.
	MaxConnections int

	// MaxBusyRetries bounds the linear backoff retry loop for
	// SQLITE_BUSY / SQLITE_LOCKED.
	MaxBusyRetries int

	// RetryBackoff is the per-attempt backoff multiplier: attempt N sleeps
	// N * RetryBackoff.
	RetryBackoff time.Duration

	// MinPurgeBlockSize / MaxPurgeBlockSize / PurgeBlockGranularity bound
	// the adaptive purge block sizer.
	MinPurgeBlockSize     int
	MaxPurgeBlockSize     int
	PurgeBlockGranularity int

	// TargetPurgeBlockDuration is the delete-time-per-block the adaptive
	// controller aims for.
	TargetPurgeBlockDuration time.Duration

	// RecalcEveryBlocks controls how often the adaptive controller
	// recomputes the block size.
	RecalcEveryBlocks int

	// SlowBlockThreshold and SlowBlockSleepBase implement the purge loop's
	// yield-to-readers pause after a slow delete block: a block taking
	// longer than SlowBlockThreshold sleeps SlowBlockSleepBase plus one
	// millisecond per 10ms of block duration.
	SlowBlockThreshold time.Duration
	SlowBlockSleepBase time.Duration

	// CompressReadings enables snappy compression of the reading JSON
	// column before insert.
	CompressReadings bool
}

// DefaultStoreConfig returns the engine's default configuration.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Path:                     "foglamp.sqlite",
		CacheSize:                2000,
		JournalMode:              "WAL",
		Synchronous:              "NORMAL",
		BusyTimeoutMS:            5000,
		MaxConnections:           10,
		MaxBusyRetries:           40,
		RetryBackoff:             100 * time.Millisecond,
		MinPurgeBlockSize:        20,
		MaxPurgeBlockSize:        1500,
		PurgeBlockGranularity:    5,
		TargetPurgeBlockDuration: 70 * time.Millisecond,
		RecalcEveryBlocks:        30,
		SlowBlockThreshold:       150 * time.Millisecond,
		SlowBlockSleepBase:       100 * time.Millisecond,
		CompressReadings:         false,
	}
}
