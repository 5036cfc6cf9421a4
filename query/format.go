package query

import "strings"

// The literal strftime patterns applied by default to the readings table's
// timestamp columns. The %-directives below are the actual strftime format
// string SQLite receives, not a printf-escaped intermediate — there is no
// separate printf pass involved, resolving the ambiguity noted for the
// original engine.
const (
	dateFullSeconds = "%Y-%m-%d %H:%M:%S"
	dateFullMillis  = "%Y-%m-%d %H:%M:%f"
)

// readingsUserTsExpr returns the SQL expression that formats readings.user_ts
// to whole seconds and appends the seven characters starting at its decimal
// point (the point and up to six fractional digits). A trailing timezone
// offset in the stored value is not carried into the result.
func readingsUserTsExpr(timezone string) string {
	tz := "localtime"
	if timezone != "" {
		tz = timezone
	}
	return "strftime('" + dateFullSeconds + "', user_ts, '" + tz + "') || substr(user_ts, instr(user_ts,'.'), 7)"
}

// readingsTsExpr returns the SQL expression that formats readings.ts to
// millisecond precision.
func readingsTsExpr(timezone string) string {
	tz := "localtime"
	if timezone != "" {
		tz = timezone
	}
	return "strftime('" + dateFullMillis + "', ts, '" + tz + "')"
}

// validTimezone reports whether tz is an accepted explicit timezone override.
func validTimezone(tz string) bool {
	return tz == "" || tz == "utc" || tz == "localtime"
}

// dateFormatTokens maps a small set of common human date-format tokens to
// their strftime equivalent. Tokens are replaced in list order.
var dateFormatTokens = []struct {
	token    string
	strftime string
}{
	{"YYYY", "%Y"},
	{"MM", "%m"},
	{"DD", "%d"},
	{"HH24", "%H"},
	{"HH12", "%I"},
	{"MI", "%M"},
	{"SS", "%S"},
}

// translateDateFormat converts a human-readable date format string (as used
// by the "format" property of a group/timebucket/return clause) into a
// strftime pattern. It reports false if the format contains no recognised
// token, in which case the caller falls back to the JulianDay-based default.
func translateDateFormat(format string) (string, bool) {
	if format == "" {
		return "", false
	}
	out := format
	matched := false
	for _, tok := range dateFormatTokens {
		if strings.Contains(out, tok.token) {
			matched = true
			out = strings.ReplaceAll(out, tok.token, tok.strftime)
		}
	}
	if !matched {
		return "", false
	}
	return out, true
}
