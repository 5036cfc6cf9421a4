package readings

import (
	"database/sql"
	"fmt"

	"github.com/foglamp-io/storage-sqlite/ferrors"
)

// readingsSchema creates the readings table and its two supporting indexes
// if they do not already exist. id is the monotonically-assigned primary key
// the purge locator and fetch cursor both rely on; ts defaults to the
// insertion time, user_ts is caller-supplied (or the literal "now()").
const readingsSchema = `
CREATE TABLE IF NOT EXISTS readings (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	asset_code TEXT NOT NULL,
	read_key  TEXT,
	reading   TEXT NOT NULL DEFAULT '{}',
	user_ts   DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f','now')),
	ts        DATETIME NOT NULL DEFAULT (strftime('%Y-%m-%d %H:%M:%f','now'))
);
CREATE INDEX IF NOT EXISTS readings_ix1 ON readings(asset_code);
CREATE INDEX IF NOT EXISTS readings_ix2 ON readings(user_ts);
`

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(readingsSchema); err != nil {
		return ferrors.Wrap(ferrors.DatabaseError, "initSchema", fmt.Errorf("create readings schema: %w", err))
	}
	return nil
}
