package readings

import (
	"context"

	"github.com/foglamp-io/storage-sqlite/ferrors"
	"github.com/foglamp-io/storage-sqlite/query"
)

// DeleteWhere runs a DSL-driven DELETE against any table reachable through
// the storage-client façade, not just readings — the generic counterpart to
// Append/Retrieve used by the scheduler and audit-log tables. It is guarded
// by the same write gate as every reading write so a batch delete cannot
// interleave with a purge block. It returns the number of rows deleted; on
// failure the count is -1 and the error is set.
func (s *Store) DeleteWhere(ctx context.Context, table string, dslJSON []byte) (int64, error) {
	if table == "" {
		return -1, ferrors.New(ferrors.ShapeError, "deleteRows", "a table name is required")
	}
	doc, err := query.ParseDocument(dslJSON)
	if err != nil {
		return -1, err
	}
	if doc.Where == nil {
		return -1, ferrors.New(ferrors.ShapeError, "deleteRows", "delete requires a where clause")
	}

	sqlText, args, err := query.CompileDelete(table, doc)
	if err != nil {
		return -1, err
	}

	var affected int64
	writeErr := s.gate.runWrite(func() error {
		return execWithRetry(ctx, s.cfg, s.log, &s.busyRetries, func() error {
			res, execErr := s.db.ExecContext(ctx, sqlText, args...)
			if execErr != nil {
				return execErr
			}
			n, _ := res.RowsAffected()
			affected = n
			return nil
		})
	})
	if writeErr != nil {
		return -1, ferrors.Wrap(ferrors.DatabaseError, "deleteRows", writeErr)
	}
	return affected, nil
}
