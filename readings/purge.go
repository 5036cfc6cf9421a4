package readings

import (
	"context"
	"database/sql"
	"math"
	"strconv"
	"time"

	"github.com/foglamp-io/storage-sqlite/ferrors"
)

// rowidBounds snapshots MIN(rowid)/MAX(rowid), capping the amount of work a
// purge cycle will do regardless of concurrent appends. ok is false for an
// empty table.
func (s *Store) rowidBounds(ctx context.Context) (min, max int64, ok bool, err error) {
	var nmin, nmax sql.NullInt64
	row := s.db.QueryRowContext(ctx, "SELECT MIN(rowid), MAX(rowid) FROM readings")
	if scanErr := row.Scan(&nmin, &nmax); scanErr != nil {
		return 0, 0, false, ferrors.Wrap(ferrors.DatabaseError, "purge", scanErr)
	}
	if !nmin.Valid || !nmax.Valid {
		return 0, 0, false, nil
	}
	return nmin.Int64, nmax.Int64, true, nil
}

// deriveAgeHours computes the age-hours value used when the caller passes
// age_hours == 0: the age of the oldest row's user_ts, expressed in units of
// 360 seconds rather than the 3600 the name implies. This is a deliberate
// preserved quirk of the original engine (documented, not a rounding bug in
// this port) and the divisor must stay exactly 360.
func (s *Store) deriveAgeHours(ctx context.Context) (int64, error) {
	var seconds sql.NullInt64
	row := s.db.QueryRowContext(ctx,
		"SELECT CAST(strftime('%s','now') - strftime('%s', MIN(user_ts)) AS INTEGER) FROM readings")
	if err := row.Scan(&seconds); err != nil {
		return 0, ferrors.Wrap(ferrors.DatabaseError, "purge", err)
	}
	if !seconds.Valid {
		return 0, nil
	}
	return seconds.Int64 / 360, nil
}

// binarySearchLocator searches [L,U] for the largest m for which found(m)
// reports true, using the same probe-and-narrow loop for both the
// age-driven and size-driven purge predicates. It terminates either when
// the probed midpoint repeats or after the ⌈log2(U-L+1)⌉+1 bound, whichever
// comes first, and returns the last probed midpoint as R (matching the
// original engine's locator, which does not separately track the last
// successful probe). For a predicate that is true up to a boundary and false
// after it, R is therefore either the last true m or the first false m
// after it.
func binarySearchLocator(l, u int64, found func(m int64) (bool, error)) (int64, error) {
	if l > u {
		return l - 1, nil
	}
	maxIterations := int(math.Ceil(math.Log2(float64(u-l+1)))) + 1
	prevM := int64(math.MinInt64)
	m := prevM
	for iter := 0; iter < maxIterations; iter++ {
		newM := l + (u-l)/2
		if newM == m {
			break
		}
		m = newM
		ok, err := found(m)
		if err != nil {
			return 0, err
		}
		if ok {
			l = m + 1
		} else {
			u = m - 1
		}
		if l > u {
			break
		}
	}
	return m, nil
}

// deleteLoop drives the block-by-block delete from just above minRowid up
// to and including R, yielding to any in-flight writer before each block
// and pausing after a slow block to let readers interleave.
func (s *Store) deleteLoop(ctx context.Context, minRowid, r int64) (deleted int64, err error) {
	cursor := minRowid
	for cursor < r {
		blockSize := int64(s.sizer.Size())
		next := cursor + blockSize
		if next > r {
			next = r
		}

		var affected int64
		start := time.Now()
		blockErr := s.gate.purgeBlock(func() error {
			return execWithRetry(ctx, s.cfg, s.log, &s.busyRetries, func() error {
				res, execErr := s.db.ExecContext(ctx, "DELETE FROM readings WHERE rowid <= ?", next)
				if execErr != nil {
					return execErr
				}
				n, _ := res.RowsAffected()
				affected = n
				return nil
			})
		})
		duration := time.Since(start)
		if blockErr != nil {
			return deleted, ferrors.Wrap(ferrors.DatabaseError, "purge", blockErr)
		}

		deleted += affected
		s.sizer.Observe(duration)

		if duration > s.cfg.SlowBlockThreshold {
			sleep := s.cfg.SlowBlockSleepBase + time.Duration(duration.Microseconds()/10000)*time.Millisecond
			time.Sleep(sleep)
		}

		cursor = next
	}
	return deleted, nil
}

// PurgeByAge removes readings older than ageHours, or (if ageHours is 0)
// older than a derived age based on the oldest row currently stored. flags
// bit RetainUnsent forbids purging any row with id > sentID.
func (s *Store) PurgeByAge(ctx context.Context, ageHours int64, flags PurgeFlags, sentID int64) (*PurgeResult, error) {
	s.gate.awaitDrain()

	minRowid, maxRowid, ok, err := s.rowidBounds(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &PurgeResult{}, nil
	}

	if ageHours == 0 {
		ageHours, err = s.deriveAgeHours(ctx)
		if err != nil {
			return nil, err
		}
	}
	modifier := "-" + strconv.FormatInt(ageHours, 10) + " hours"

	upper := maxRowid
	retainUnsent := flags&RetainUnsent != 0
	if retainUnsent && sentID < upper {
		upper = sentID
	}

	r, err := binarySearchLocator(minRowid, upper, func(m int64) (bool, error) {
		var id int64
		row := s.db.QueryRowContext(ctx,
			"SELECT id FROM readings WHERE rowid = ? AND user_ts < datetime('now', ?)", m, modifier)
		switch scanErr := row.Scan(&id); {
		case isNoRows(scanErr):
			return false, nil
		case scanErr != nil:
			return false, ferrors.Wrap(ferrors.DatabaseError, "purge", scanErr)
		default:
			return true, nil
		}
	})
	if err != nil {
		return nil, err
	}

	return s.finishPurge(ctx, minRowid, maxRowid, r, retainUnsent, sentID)
}

// PurgeBySize removes the oldest readings until at most targetSize rows
// remain, honoring the same retain-unsent constraint as PurgeByAge.
func (s *Store) PurgeBySize(ctx context.Context, targetSize int64, flags PurgeFlags, sentID int64) (*PurgeResult, error) {
	s.gate.awaitDrain()

	minRowid, maxRowid, ok, err := s.rowidBounds(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &PurgeResult{}, nil
	}

	upper := maxRowid
	retainUnsent := flags&RetainUnsent != 0
	if retainUnsent && sentID < upper {
		upper = sentID
	}

	// Unlike the age predicate (true for small rowids, false for large ones),
	// "remaining <= targetSize" is true for large rowids. binarySearchLocator
	// finds the rightmost m where its predicate holds, so search on the
	// complement ("remaining still above target") to get the same
	// decreasing-true shape, then the answer is one past that boundary.
	beforeR, err := binarySearchLocator(minRowid-1, upper, func(m int64) (bool, error) {
		remaining := maxRowid - m
		return remaining > targetSize, nil
	})
	if err != nil {
		return nil, err
	}
	r := beforeR + 1
	if r > upper {
		r = upper
	}

	return s.finishPurge(ctx, minRowid, maxRowid, r, retainUnsent, sentID)
}

func (s *Store) finishPurge(ctx context.Context, minRowid, maxRowid, r int64, retainUnsent bool, sentID int64) (*PurgeResult, error) {
	var unsentPurged int64
	if !retainUnsent && sentID > 0 && r > sentID {
		unsentPurged = r - sentID
	}

	deleted, err := s.deleteLoop(ctx, minRowid, r)
	if err != nil {
		return nil, err
	}

	return &PurgeResult{
		Removed:           deleted,
		UnsentPurged:      unsentPurged,
		UnsentRetained:    maxRowid - r,
		ReadingsRemaining: maxRowid - minRowid - deleted,
	}, nil
}
