// Package datetime validates the user_ts forms the readings table accepts
// and applies the engine's default column formatting to result-set values
// the query compiler did not already format at compile time.
package datetime

import (
	"regexp"
	"strings"

	"github.com/foglamp-io/storage-sqlite/ferrors"
)

// NowLiteral is the sentinel value that selects the database's current time.
const NowLiteral = "now()"

// userTsPattern matches "YYYY-MM-DD HH:MM:SS[.ffffff][±HH:MM]".
var userTsPattern = regexp.MustCompile(
	`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(\.\d{1,6})?([+-]\d{2}:\d{2})?$`)

// ValidateUserTs checks that s is either the literal "now()" or a
// recognised user_ts form. It returns isNow=true for the literal, or the
// value unchanged (stored verbatim) otherwise.
func ValidateUserTs(s string) (value string, isNow bool, err error) {
	if s == NowLiteral {
		return "", true, nil
	}
	if !userTsPattern.MatchString(s) {
		return "", false, ferrors.New(ferrors.DateError, "appendReadings", "invalid date |"+s+"|")
	}
	return s, false, nil
}

// FullFormLength is the exact length of a user_ts value carrying six
// fractional digits and a timezone offset, e.g. "2019-01-11 15:45:01.123456+01:00".
const FullFormLength = 32

// FormatUserTsFull reformats a full-precision user_ts value: the first 19
// characters (the whole-second prefix, with no timezone conversion),
// followed by everything from the decimal point onward, including any
// trailing timezone offset. This differs from the readings projection SQL
// the query compiler emits, which keeps only seven characters from the
// decimal point and so drops the offset.
func FormatUserTsFull(raw string) string {
	dot := strings.IndexByte(raw, '.')
	if dot < 0 || dot < 19 {
		return raw
	}
	return raw[:19] + raw[dot:]
}

// FormatGenericDatetime reformats a stored DATETIME column value to
// millisecond precision ("%Y-%m-%d %H:%M:%f" in SQLite strftime terms).
func FormatGenericDatetime(raw string) string {
	dot := strings.IndexByte(raw, '.')
	if dot < 0 {
		if len(raw) >= 19 {
			return raw[:19] + ".000"
		}
		return raw
	}
	frac := raw[dot+1:]
	for len(frac) < 3 {
		frac += "0"
	}
	return raw[:dot] + "." + frac[:3]
}
