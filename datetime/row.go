package datetime

import "log/slog"

// ColumnMeta is the subset of *sql.ColumnType information the formatter
// needs: its result name and the type SQLite declared it with.
type ColumnMeta struct {
	Name         string
	DatabaseType string // e.g. "DATETIME", "TEXT", "" if unknown
}

// RowFormatter applies default datetime formatting to a decoded result row,
// column by column, the way the storage engine's result-set mapper does at
// scan time for columns the query compiler left untouched.
type RowFormatter struct {
	ForReadings bool
	Log         *slog.Logger
}

// NewRowFormatter returns a formatter. A nil logger falls back to slog's
// default logger.
func NewRowFormatter(forReadings bool, log *slog.Logger) *RowFormatter {
	if log == nil {
		log = slog.Default()
	}
	return &RowFormatter{ForReadings: forReadings, Log: log}
}

// Format returns the formatted text for one column value. Any failure to
// classify the column is logged and the raw text is returned unchanged —
// the formatter never fails the read.
func (f *RowFormatter) Format(col ColumnMeta, raw string) string {
	if raw == "" {
		return raw
	}
	if f.ForReadings && col.Name == "user_ts" && len(raw) == FullFormLength {
		return FormatUserTsFull(raw)
	}
	if col.DatabaseType == "" {
		f.Log.Debug("column type metadata unavailable, using raw value", "op", "retrieve", "column", col.Name)
		return raw
	}
	if col.DatabaseType == "DATETIME" {
		return FormatGenericDatetime(raw)
	}
	return raw
}
