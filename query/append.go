package query

import (
	"encoding/json"

	"github.com/foglamp-io/storage-sqlite/ferrors"
	"github.com/foglamp-io/storage-sqlite/sqlbuffer"
)

// sqliteNow is the expression substituted for the literal "now()" user_ts
// value: the database's own current time, to insert precision.
const sqliteNow = "strftime('%Y-%m-%d %H:%M:%f','now')"

// AppendPayload is the parsed shape of an append request body:
// {"readings":[{asset_code, user_ts, read_key?, reading}, ...]}.
type AppendPayload struct {
	Readings []RawReading
}

// RawReading is one element of an append payload before user_ts validation.
type RawReading struct {
	AssetCode string
	UserTs    string
	ReadKey   string
	HasKey    bool
	Reading   json.RawMessage
}

// ParseAppendPayload parses the JSON append envelope.
func ParseAppendPayload(data []byte) (*AppendPayload, error) {
	var doc struct {
		Readings []struct {
			AssetCode string          `json:"asset_code"`
			UserTs    string          `json:"user_ts"`
			ReadKey   *string         `json:"read_key"`
			Reading   json.RawMessage `json:"reading"`
		} `json:"readings"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, ferrors.Wrap(ferrors.ParseError, "appendReadings", err)
	}
	if doc.Readings == nil {
		return nil, ferrors.New(ferrors.ShapeError, "appendReadings", "payload is missing a readings array")
	}

	out := &AppendPayload{Readings: make([]RawReading, 0, len(doc.Readings))}
	for _, r := range doc.Readings {
		if r.AssetCode == "" {
			return nil, ferrors.New(ferrors.ShapeError, "appendReadings", "each reading requires an asset_code")
		}
		rr := RawReading{AssetCode: r.AssetCode, UserTs: r.UserTs, Reading: r.Reading}
		// The Python storage-client convention passes the literal string
		// "None" when a reading carries no read_key.
		if r.ReadKey != nil && *r.ReadKey != "None" {
			rr.ReadKey = *r.ReadKey
			rr.HasKey = true
		}
		out.Readings = append(out.Readings, rr)
	}
	return out, nil
}

// InsertRow is one validated row ready to be compiled into an INSERT
// statement. IsNow selects the database's current time rather than a bound
// literal.
type InsertRow struct {
	IsNow     bool
	UserTs    string
	AssetCode string
	ReadKey   string
	HasKey    bool
	Reading   json.RawMessage
}

// CompileAppendReadings builds a single multi-row INSERT statement for the
// given already-validated rows.
func CompileAppendReadings(rows []InsertRow) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, ferrors.New(ferrors.ShapeError, "appendReadings", "no rows to insert")
	}
	buf := sqlbuffer.New()
	buf.AppendString("INSERT INTO readings (user_ts, asset_code, read_key, reading) VALUES ")
	args := make([]any, 0, len(rows)*4)

	for i, r := range rows {
		if i > 0 {
			buf.AppendString(", ")
		}
		buf.AppendString("(")
		if r.IsNow {
			buf.AppendString(sqliteNow)
		} else {
			buf.AppendString("?")
			args = append(args, r.UserTs)
		}
		buf.AppendString(", ?, ")
		args = append(args, r.AssetCode)
		buf.AppendString("?, ")
		if r.HasKey {
			args = append(args, r.ReadKey)
		} else {
			args = append(args, nil)
		}
		buf.AppendString("?)")
		args = append(args, string(r.Reading))
	}

	return buf.Coalesce(), args, nil
}
