package readings

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/foglamp-io/storage-sqlite/datetime"
	"github.com/foglamp-io/storage-sqlite/ferrors"
	"github.com/foglamp-io/storage-sqlite/query"
)

// Notifier is fed one asset code per successful append so a caller (the
// notify package's websocket hub, typically) can push a change event to any
// process subscribed to that asset.
type Notifier interface {
	NotifyAppended(assetCode string)
}

// Stats reports a snapshot of the engine's runtime counters. The HTTP
// façade in storageclient does not serve it.
type Stats struct {
	BusyRetries      int64
	CurrentBlockSize int
}

// Store is the readings storage engine: a SQLite database handle guarded by
// a single-writer gate, with an adaptive purge block sizer layered on top.
type Store struct {
	db       *sql.DB
	gate     *gate
	cfg      StoreConfig
	log      *slog.Logger
	sizer    BlockSizer
	notifier Notifier

	busyRetries atomic.Int64
}

// Open creates (if necessary) and opens the readings database at cfg.Path,
// applying the schema and returning a ready Store. A nil logger falls back
// to slog's default logger.
func Open(cfg StoreConfig, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{
		db:    db,
		gate:  newGate(),
		cfg:   cfg,
		log:   log,
		sizer: NewAdaptiveBlockSizer(cfg),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// SetNotifier installs the asset-append notifier. Not required for the
// engine to function; a nil notifier is a silent no-op.
func (s *Store) SetNotifier(n Notifier) {
	s.notifier = n
}

// Stats returns a snapshot of the engine's runtime counters.
func (s *Store) Stats() Stats {
	return Stats{
		BusyRetries:      s.busyRetries.Load(),
		CurrentBlockSize: s.sizer.Size(),
	}
}

// Append parses payload as a readings envelope, skips elements with an
// unparseable user_ts (logging each), and inserts the remainder in a single
// statement. It returns the number of rows inserted and the number of
// elements skipped; on failure inserted is -1 and err is set.
func (s *Store) Append(ctx context.Context, payload []byte) (inserted, skipped int, err error) {
	parsed, err := query.ParseAppendPayload(payload)
	if err != nil {
		return -1, 0, err
	}

	rows := make([]query.InsertRow, 0, len(parsed.Readings))
	seen := make(map[string]bool, len(parsed.Readings))
	assetCodes := make([]string, 0, len(parsed.Readings))
	for _, r := range parsed.Readings {
		val, isNow, verr := datetime.ValidateUserTs(r.UserTs)
		if verr != nil {
			s.log.Warn("appendReadings: skipping element with invalid user_ts",
				"asset_code", r.AssetCode, "err", verr)
			skipped++
			continue
		}
		reading := r.Reading
		if s.cfg.CompressReadings {
			reading = compressReading(reading, true)
		}
		rows = append(rows, query.InsertRow{
			IsNow: isNow, UserTs: val, AssetCode: r.AssetCode,
			ReadKey: r.ReadKey, HasKey: r.HasKey, Reading: reading,
		})
		if !seen[r.AssetCode] {
			seen[r.AssetCode] = true
			assetCodes = append(assetCodes, r.AssetCode)
		}
	}
	if len(rows) == 0 {
		return 0, skipped, nil
	}

	sqlText, args, cerr := query.CompileAppendReadings(rows)
	if cerr != nil {
		return -1, skipped, cerr
	}

	writeErr := s.gate.runWrite(func() error {
		return execWithRetry(ctx, s.cfg, s.log, &s.busyRetries, func() error {
			res, execErr := s.db.ExecContext(ctx, sqlText, args...)
			if execErr != nil {
				return execErr
			}
			n, _ := res.RowsAffected()
			inserted = int(n)
			return nil
		})
	})
	if writeErr != nil {
		return -1, skipped, ferrors.Wrap(ferrors.DatabaseError, "appendReadings", writeErr)
	}

	if s.notifier != nil {
		for _, code := range assetCodes {
			s.notifier.NotifyAppended(code)
		}
	}
	return inserted, skipped, nil
}

// Fetch returns up to blockSize rows with id >= startID, ordered ascending
// by id, with timestamps UTC-formatted. Used by north-bound streaming.
func (s *Store) Fetch(ctx context.Context, startID int64, blockSize int) (*ReadingSet, error) {
	if blockSize <= 0 {
		return &ReadingSet{Rows: []map[string]any{}}, nil
	}
	doc := &query.Document{
		Return: []query.ReturnColumn{
			{Column: "id"},
			{Column: "asset_code"},
			{Column: "read_key"},
			{Column: "reading"},
			{Column: "user_ts", Timezone: "utc"},
			{Column: "ts", Timezone: "utc"},
		},
		Where: &query.Where{Column: "id", Condition: ">=", Value: query.Value{Kind: query.ValueInt, Int: startID}},
		Sort:  []query.SortSpec{{Column: "id", Direction: "ASC"}},
		Limit: &blockSize,
	}
	sqlText, args, err := query.CompileRetrieveReadings(doc)
	if err != nil {
		return nil, err
	}
	return s.runSelect(ctx, sqlText, args)
}

// Retrieve compiles and executes a JSON query DSL document against the
// readings table, with localtime formatting applied by default.
func (s *Store) Retrieve(ctx context.Context, dslJSON []byte) (*ReadingSet, error) {
	doc, err := query.ParseDocument(dslJSON)
	if err != nil {
		return nil, err
	}
	sqlText, args, err := query.CompileRetrieveReadings(doc)
	if err != nil {
		return nil, err
	}
	return s.runSelect(ctx, sqlText, args)
}

func (s *Store) runSelect(ctx context.Context, sqlText string, args []any) (*ReadingSet, error) {
	var rows *sql.Rows
	err := execWithRetry(ctx, s.cfg, s.log, &s.busyRetries, func() error {
		var queryErr error
		rows, queryErr = s.db.QueryContext(ctx, sqlText, args...)
		return queryErr
	})
	if err != nil {
		return nil, ferrors.Wrap(ferrors.DatabaseError, "retrieve", err)
	}
	defer rows.Close()

	formatter := datetime.NewRowFormatter(true, s.log)
	set, err := scanRows(rows, formatter)
	if err != nil {
		return nil, ferrors.Wrap(ferrors.DatabaseError, "retrieve", err)
	}
	return set, nil
}

// scanRows drains rows into a ReadingSet, classifying each column value the
// way the storage engine's result-set mapper does: integers and floats pass
// through as JSON numbers, text that parses as a JSON object or array is
// embedded structured, any other text is a string (formatted first if it is
// a datetime column the compiler left untouched), and NULL becomes "".
func scanRows(rows *sql.Rows, formatter *datetime.RowFormatter) (*ReadingSet, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}
	metas := make([]datetime.ColumnMeta, len(cols))
	for i, ct := range colTypes {
		metas[i] = datetime.ColumnMeta{Name: cols[i], DatabaseType: ct.DatabaseTypeName()}
	}

	set := &ReadingSet{Rows: make([]map[string]any, 0)}
	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, name := range cols {
			if name == "reading" {
				if decompressed, ok := asReadingBytes(vals[i]); ok {
					vals[i] = decompressed
				}
			}
			row[name] = classifyValue(vals[i], metas[i], formatter)
		}
		set.Rows = append(set.Rows, row)
		set.Count++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}

// asReadingBytes decompresses the reading column's raw value if it carries
// the compressed-block marker, leaving plain-JSON rows (written before
// CompressReadings was enabled, or with it left off) untouched.
func asReadingBytes(raw any) (string, bool) {
	var b []byte
	switch v := raw.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return "", false
	}
	if len(b) == 0 || b[0] != compressedPrefix {
		return "", false
	}
	decompressed, err := decompressReading(b)
	if err != nil {
		return "", false
	}
	return string(decompressed), true
}

func classifyValue(raw any, meta datetime.ColumnMeta, formatter *datetime.RowFormatter) any {
	switch v := raw.(type) {
	case nil:
		return ""
	case int64:
		return v
	case float64:
		return v
	case []byte:
		return classifyString(string(v), meta, formatter)
	case string:
		return classifyString(v, meta, formatter)
	default:
		return v
	}
}

func classifyString(s string, meta datetime.ColumnMeta, formatter *datetime.RowFormatter) any {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		dec := json.NewDecoder(strings.NewReader(trimmed))
		dec.UseNumber()
		var parsed any
		if err := dec.Decode(&parsed); err == nil {
			return parsed
		}
	}
	return formatter.Format(meta, s)
}
