package query

import (
	"strconv"

	"github.com/foglamp-io/storage-sqlite/ferrors"
	"github.com/foglamp-io/storage-sqlite/sqlbuffer"
)

// readingsTable is the fixed table name the readings-aware compile entry
// points target.
const readingsTable = "readings"

type compiler struct {
	table       string
	forReadings bool
	sql         *sqlbuffer.Buffer
	args        []any
	constraints []string // json_type(...) IS NOT NULL fragments accumulated from projections
}

func newCompiler(table string, forReadings bool) *compiler {
	return &compiler{table: table, forReadings: forReadings, sql: sqlbuffer.New()}
}

func (c *compiler) bind(v any) string {
	c.args = append(c.args, v)
	return "?"
}

// CompileRetrieve translates dsl into a SELECT statement against table.
func CompileRetrieve(table string, doc *Document) (string, []any, error) {
	return newCompiler(table, false).compileSelect(doc)
}

// CompileRetrieveReadings translates dsl into a SELECT statement against the
// readings table, applying default datetime formatting to bare user_ts/ts
// projections.
func CompileRetrieveReadings(doc *Document) (string, []any, error) {
	return newCompiler(readingsTable, true).compileSelect(doc)
}

// CompileDelete translates dsl into a DELETE statement against table. dsl
// must carry a "where" clause; deleting an entire table via this path is
// rejected the way the original engine's deleteRows requires a condition.
func CompileDelete(table string, doc *Document) (string, []any, error) {
	if doc == nil || doc.Where == nil {
		return "", nil, ferrors.New(ferrors.ShapeError, "deleteRows", "delete requires a where clause")
	}
	c := newCompiler(table, false)
	c.sql.AppendString("DELETE FROM ").AppendString(table)
	c.sql.AppendString(" WHERE ")
	if err := c.compileWhere(doc.Where); err != nil {
		return "", nil, err
	}
	return c.sql.Coalesce(), c.args, nil
}

func (c *compiler) compileSelect(doc *Document) (string, []any, error) {
	if doc == nil {
		doc = &Document{}
	}
	if doc.Timebucket != nil && doc.Sort != nil {
		return "", nil, ferrors.New(ferrors.ShapeError, "query modifiers",
			"sort and timebucket modifiers can not be used in the same payload")
	}

	c.sql.AppendString("SELECT ")
	if doc.Modifier != "" {
		c.sql.AppendString(doc.Modifier).AppendString(" ")
	}

	if err := c.compileProjection(doc); err != nil {
		return "", nil, err
	}

	c.sql.AppendString(" FROM ").AppendString(c.table)

	whereSQL, whereErr := c.buildWhereSQL(doc)
	if whereErr != nil {
		return "", nil, whereErr
	}
	if whereSQL != "" {
		c.sql.AppendString(" WHERE ").AppendString(whereSQL)
	}

	if err := c.compileGroupOrderLimit(doc); err != nil {
		return "", nil, err
	}

	return c.sql.Coalesce(), c.args, nil
}

// buildWhereSQL combines the explicit where clause, any json_type IS NOT
// NULL constraints gathered from projections/aggregates, and the no-op
// asset_code predicate injected to steer the planner onto the asset index
// when an aggregate has no where clause of its own.
func (c *compiler) buildWhereSQL(doc *Document) (string, error) {
	parts := make([]string, 0, 2)

	if doc.Where != nil {
		sub := newCompiler(c.table, c.forReadings)
		if err := sub.compileWhere(doc.Where); err != nil {
			return "", err
		}
		parts = append(parts, sub.sql.Coalesce())
		c.args = append(c.args, sub.args...)
	} else if len(doc.Aggregate) > 0 && c.forReadings {
		parts = append(parts, "asset_code = asset_code")
	}

	for _, constraint := range c.constraints {
		parts = append(parts, constraint)
	}

	if len(parts) == 0 {
		return "", nil
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += " AND " + p
	}
	return out, nil
}

func (c *compiler) compileProjection(doc *Document) error {
	switch {
	case len(doc.Aggregate) > 0:
		return c.compileAggregateProjection(doc)
	case len(doc.Return) > 0:
		return c.compileReturnProjection(doc.Return)
	case c.forReadings:
		return c.compileDefaultReadingsProjection()
	default:
		c.sql.AppendString("*")
		return nil
	}
}

// compileDefaultReadingsProjection emits the readings table's default
// column list: an empty DSL is "all rows, default projection", and that
// default always applies localtime formatting to user_ts/ts rather than
// returning their raw stored values.
func (c *compiler) compileDefaultReadingsProjection() error {
	c.sql.AppendString("id, asset_code, read_key, reading, ").
		AppendString(readingsUserTsExpr("")).AppendString(" AS \"user_ts\", ").
		AppendString(readingsTsExpr("")).AppendString(" AS \"ts\"")
	return nil
}

func (c *compiler) compileReturnProjection(cols []ReturnColumn) error {
	for i, rc := range cols {
		if i > 0 {
			c.sql.AppendString(", ")
		}
		if err := c.compileReturnColumn(rc); err != nil {
			return err
		}
	}
	return nil
}

func (c *compiler) compileReturnColumn(rc ReturnColumn) error {
	if rc.JSON != nil {
		expr := jsonExtractExpr(rc.JSON)
		c.constraints = append(c.constraints, jsonTypeConstraint(rc.JSON))
		c.sql.AppendString(expr).AppendString(" AS ").AppendString(quoteIdent(aliasOr(rc.Alias, rc.Column)))
		return nil
	}

	if !validTimezone(rc.Timezone) {
		return ferrors.New(ferrors.ShapeError, "retrieve", "invalid timezone, must be \"utc\" or \"localtime\"")
	}

	// Explicit format/alias means the caller took control; emit the column
	// (optionally date-formatted) and stop applying implicit defaults.
	if rc.Format != "" {
		formatted, ok := translateDateFormat(rc.Format)
		if ok {
			c.sql.AppendString("strftime('").AppendString(formatted).AppendString("', ").
				AppendString(rc.Column).AppendString(")")
		} else {
			c.sql.AppendString(rc.Column)
		}
		c.sql.AppendString(" AS ").AppendString(quoteIdent(aliasOr(rc.Alias, rc.Column)))
		return nil
	}

	if c.forReadings && rc.Column == "user_ts" && rc.Alias == "" {
		c.sql.AppendString(readingsUserTsExpr(rc.Timezone)).AppendString(" AS \"user_ts\"")
		return nil
	}
	if c.forReadings && rc.Column == "ts" && rc.Alias == "" {
		c.sql.AppendString(readingsTsExpr(rc.Timezone)).AppendString(" AS \"ts\"")
		return nil
	}

	c.sql.AppendString(rc.Column)
	if rc.Alias != "" {
		c.sql.AppendString(" AS ").AppendString(quoteIdent(rc.Alias))
	}
	return nil
}

func aliasOr(alias, fallback string) string {
	if alias != "" {
		return alias
	}
	return fallback
}

func jsonExtractExpr(jf *JSONField) string {
	path := "$." + joinDots(jf.Properties)
	return "json_extract(" + jf.Column + ", '" + path + "')"
}

func jsonTypeConstraint(jf *JSONField) string {
	path := "$." + joinDots(jf.Properties)
	return "json_type(" + jf.Column + ", '" + path + "') IS NOT NULL"
}

func joinDots(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += "."
		}
		out += p
	}
	return out
}

func (c *compiler) compileAggregateProjection(doc *Document) error {
	for i, agg := range doc.Aggregate {
		if i > 0 {
			c.sql.AppendString(", ")
		}
		c.sql.AppendString(agg.Operation).AppendString("(")
		switch {
		case agg.JSON != nil:
			c.sql.AppendString(jsonExtractExpr(agg.JSON))
			c.constraints = append(c.constraints, jsonTypeConstraint(agg.JSON))
		case agg.Column == "*":
			// Faster to count ROWID than *.
			c.sql.AppendString("ROWID")
		case c.forReadings && agg.Column == "user_ts":
			c.sql.AppendString(readingsUserTsExpr(""))
		default:
			c.sql.AppendString(quoteIdent(agg.Column))
		}
		c.sql.AppendString(") AS ").AppendString(quoteIdent(aggregateAlias(agg)))
	}

	if doc.Group != nil {
		c.sql.AppendString(", ")
		if err := c.appendGroupExpr(doc.Group); err != nil {
			return err
		}
	}
	if doc.Timebucket != nil {
		c.sql.AppendString(", ")
		c.appendTimebucketExpr(doc.Timebucket)
	}
	return nil
}

func aggregateAlias(agg Aggregate) string {
	if agg.Alias != "" {
		return agg.Alias
	}
	col := agg.Column
	if col == "" && agg.JSON != nil {
		col = agg.JSON.Column
	}
	return agg.Operation + "_" + col
}

func (c *compiler) appendGroupExpr(g *GroupBy) error {
	if g.Format != "" {
		formatted, ok := translateDateFormat(g.Format)
		if ok {
			c.sql.AppendString("strftime('").AppendString(formatted).AppendString("', ").
				AppendString(g.Column).AppendString(")")
		} else {
			c.sql.AppendString(g.Column)
		}
	} else {
		c.sql.AppendString(g.Column)
	}
	c.sql.AppendString(" AS ").AppendString(quoteIdent(aliasOr(g.Alias, g.Column)))
	return nil
}

// appendTimebucketExpr appends the Julian-day bucket expression used both in
// the projection list and (identically) in the GROUP BY clause.
func (c *compiler) appendTimebucketExpr(tb *Timebucket) {
	c.sql.AppendString(timebucketExpr(tb)).AppendString(" AS ").AppendString(quoteIdent(aliasOr(tb.Alias, "timestamp")))
}

func timebucketExpr(tb *Timebucket) string {
	if tb.Format != "" {
		if formatted, ok := translateDateFormat(tb.Format); ok {
			inner := "strftime('" + formatted + "', "
			if tb.Size != "" {
				inner += juliandayBucket(tb) + ")"
			} else {
				inner += tb.Timestamp + ")"
			}
			return inner
		}
	}
	if tb.Size != "" {
		return "datetime(" + juliandayBucket(tb) + ")"
	}
	return "datetime(strftime('%J', " + tb.Timestamp + "))"
}

func juliandayBucket(tb *Timebucket) string {
	return tb.Size + " * round(strftime('%J', " + tb.Timestamp + ") / " + tb.Size + ", 6)"
}

func (c *compiler) compileGroupOrderLimit(doc *Document) error {
	if doc.Group != nil {
		c.sql.AppendString(" GROUP BY ")
		if doc.Group.Format != "" {
			if formatted, ok := translateDateFormat(doc.Group.Format); ok {
				c.sql.AppendString("strftime('").AppendString(formatted).AppendString("', ").
					AppendString(doc.Group.Column).AppendString(")")
			} else {
				c.sql.AppendString(doc.Group.Column)
			}
		} else {
			c.sql.AppendString(doc.Group.Column)
		}
	}

	if len(doc.Sort) > 0 {
		c.sql.AppendString(" ORDER BY ")
		for i, s := range doc.Sort {
			if i > 0 {
				c.sql.AppendString(", ")
			}
			c.sql.AppendString(s.Column).AppendString(" ").AppendString(s.Direction)
		}
	}

	if doc.Timebucket != nil {
		if doc.Group != nil {
			c.sql.AppendString(", ")
		} else {
			c.sql.AppendString(" GROUP BY ")
		}
		bucket := timebucketExpr(doc.Timebucket)
		c.sql.AppendString(bucket)
		c.sql.AppendString(" ORDER BY ").AppendString(bucket).AppendString(" DESC")
	}

	if doc.Limit != nil {
		c.sql.AppendString(" LIMIT ").AppendString(strconv.Itoa(*doc.Limit))
	} else if doc.Skip != nil {
		c.sql.AppendString(" LIMIT -1")
	}

	if doc.Skip != nil {
		c.sql.AppendString(" OFFSET ").AppendString(strconv.Itoa(*doc.Skip))
	}
	return nil
}

// compileWhere recursively emits a where node and its and/or continuation
// into c.sql, binding scalar values as parameters.
func (c *compiler) compileWhere(w *Where) error {
	c.sql.AppendString(w.Column).AppendString(" ")

	switch w.Condition {
	case "older", "newer":
		op := "<"
		if w.Condition == "newer" {
			op = ">"
		}
		tz := ""
		if c.forReadings {
			tz = "localtime"
		}
		modifier := "-" + strconv.FormatInt(w.Value.Int, 10) + " seconds"
		c.sql.AppendString(op).AppendString(" datetime('now', ").AppendString(c.bind(modifier))
		if tz != "" {
			c.sql.AppendString(", ").AppendString(c.bind(tz))
		}
		c.sql.AppendString(")")

	case "in", "not in":
		c.sql.AppendString(w.Condition).AppendString(" (")
		for i, v := range w.Value.Array {
			if i > 0 {
				c.sql.AppendString(", ")
			}
			c.sql.AppendString(c.bind(valueToArg(v)))
		}
		c.sql.AppendString(")")

	default:
		c.sql.AppendString(w.Condition).AppendString(" ").AppendString(c.bind(valueToArg(w.Value)))
	}

	if w.And != nil {
		c.sql.AppendString(" AND ")
		if err := c.compileWhere(w.And); err != nil {
			return err
		}
	}
	if w.Or != nil {
		c.sql.AppendString(" OR ")
		if err := c.compileWhere(w.Or); err != nil {
			return err
		}
	}
	return nil
}

func valueToArg(v Value) any {
	switch v.Kind {
	case ValueInt:
		return v.Int
	case ValueFloat:
		return v.Float
	default:
		return v.Str
	}
}
