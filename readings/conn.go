package readings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	// pure-Go SQLite driver, no cgo
	_ "modernc.org/sqlite"

	"github.com/foglamp-io/storage-sqlite/ferrors"
)

// openDB opens the SQLite database at cfg.Path with the engine's pragma
// tuning baked into the DSN, the same way the connection is built for
// every process that touches the readings table.
func openDB(cfg StoreConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("%s?_cache_size=%d&_journal_mode=%s&_synchronous=%s&_busy_timeout=%d",
		cfg.Path, cfg.CacheSize, cfg.JournalMode, cfg.Synchronous, cfg.BusyTimeoutMS)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.DatabaseError, "open", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections)

	return db, nil
}

// isBusyOrLocked reports whether err came back from SQLite because the
// database was momentarily busy or locked, as opposed to a real failure.
func isBusyOrLocked(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "busy")
}

// execWithRetry runs fn, retrying with linear backoff while SQLite reports
// the database as busy or locked, up to cfg.MaxBusyRetries attempts. Every
// other write path in this package funnels through here so a momentarily
// contended database degrades to added latency instead of a hard failure.
func execWithRetry(ctx context.Context, cfg StoreConfig, log *slog.Logger, retries *atomic.Int64, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxBusyRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isBusyOrLocked(lastErr) {
			return lastErr
		}
		if retries != nil {
			retries.Add(1)
		}
		if log != nil {
			log.Debug("database busy, retrying", "attempt", attempt, "err", lastErr)
		}
		backoff := time.Duration(attempt) * cfg.RetryBackoff
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return ferrors.New(ferrors.BusyExhausted, "write", fmt.Sprintf(
		"database still busy after %d attempts: %s", cfg.MaxBusyRetries, errStr(lastErr)))
}

func errStr(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// isNoRows reports whether err is sql.ErrNoRows or wraps it.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
