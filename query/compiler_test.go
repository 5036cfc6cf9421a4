package query

import (
	"strings"
	"testing"
)

func mustParse(t *testing.T, js string) *Document {
	t.Helper()
	doc, err := ParseDocument([]byte(js))
	if err != nil {
		t.Fatalf("ParseDocument(%s): %v", js, err)
	}
	return doc
}

func TestCompileRetrieveEmptyDSL(t *testing.T) {
	doc := mustParse(t, `{}`)
	sql, args, err := CompileRetrieveReadings(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "id, asset_code, read_key, reading,") {
		t.Fatalf("unexpected sql, missing default column list: %s", sql)
	}
	if !strings.Contains(sql, `AS "user_ts"`) || !strings.Contains(sql, `AS "ts"`) {
		t.Fatalf("unexpected sql, missing formatted user_ts/ts: %s", sql)
	}
	if !strings.Contains(sql, "'localtime'") {
		t.Fatalf("unexpected sql, default projection must apply localtime formatting: %s", sql)
	}
	if !strings.Contains(sql, " FROM readings") {
		t.Fatalf("unexpected sql: %s", sql)
	}
	if len(args) != 0 {
		t.Fatalf("expected no args, got %v", args)
	}
}

func TestCompileRetrieveEmptyDSLNonReadingsTableUsesStar(t *testing.T) {
	doc := mustParse(t, `{}`)
	sql, _, err := CompileRetrieve("assets", doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "SELECT * FROM assets") {
		t.Fatalf("unexpected sql: %s", sql)
	}
}

func TestCompileRetrieveWhereNewer(t *testing.T) {
	doc := mustParse(t, `{"where":{"column":"user_ts","condition":"newer","value":30}}`)
	sql, args, err := CompileRetrieveReadings(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "user_ts > datetime('now', ?, ?)") {
		t.Fatalf("unexpected sql: %s", sql)
	}
	if len(args) != 2 || args[0] != "-30 seconds" || args[1] != "localtime" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestCompileAggregateCountStar(t *testing.T) {
	doc := mustParse(t, `{"aggregate":{"operation":"count","column":"*"}}`)
	sql, _, err := CompileRetrieveReadings(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "count(ROWID) AS \"count_*\"") {
		t.Fatalf("unexpected sql: %s", sql)
	}
	if !strings.Contains(sql, "WHERE asset_code = asset_code") {
		t.Fatalf("expected asset_code no-op predicate, got: %s", sql)
	}
}

func TestCompileWhereIn(t *testing.T) {
	doc := mustParse(t, `{"where":{"column":"asset_code","condition":"in","value":["a","b"]}}`)
	sql, args, err := CompileRetrieve("readings", doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "asset_code in (?, ?)") {
		t.Fatalf("unexpected sql: %s", sql)
	}
	if len(args) != 2 || args[0] != "a" || args[1] != "b" {
		t.Fatalf("unexpected args: %v", args)
	}
}

func TestCompileLimitSkip(t *testing.T) {
	doc := mustParse(t, `{"limit":3,"skip":4,"sort":{"column":"id"}}`)
	sql, _, err := CompileRetrieveReadings(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "ORDER BY id ASC LIMIT 3 OFFSET 4") {
		t.Fatalf("unexpected sql: %s", sql)
	}
}

func TestCompileSkipWithoutLimit(t *testing.T) {
	doc := mustParse(t, `{"skip":2}`)
	sql, _, err := CompileRetrieveReadings(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "LIMIT -1 OFFSET 2") {
		t.Fatalf("unexpected sql: %s", sql)
	}
}

func TestCompileTimebucketAndSortRejected(t *testing.T) {
	_, err := ParseDocument([]byte(`{"sort":{"column":"id"},"timebucket":{"timestamp":"user_ts"}}`))
	if err == nil {
		t.Fatal("expected error combining sort and timebucket")
	}
}

func TestCompileJSONProjection(t *testing.T) {
	doc := mustParse(t, `{"return":[{"json":{"column":"reading","properties":["x","y"]}}]}`)
	sql, _, err := CompileRetrieveReadings(doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "json_extract(reading, '$.x.y')") {
		t.Fatalf("unexpected sql: %s", sql)
	}
	if !strings.Contains(sql, "json_type(reading, '$.x.y') IS NOT NULL") {
		t.Fatalf("unexpected sql: %s", sql)
	}
}

func TestCompileDeleteRequiresWhere(t *testing.T) {
	doc := mustParse(t, `{"where":{"column":"id","condition":"<","value":10}}`)
	sql, args, err := CompileDelete("readings", doc)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "DELETE FROM readings WHERE id < ?") {
		t.Fatalf("unexpected sql: %s", sql)
	}
	if len(args) != 1 || args[0] != int64(10) {
		t.Fatalf("unexpected args: %v", args)
	}
	if _, _, err := CompileDelete("readings", mustParse(t, `{}`)); err == nil {
		t.Fatal("expected error for delete without a where clause")
	}
}

func TestCompileAppendReadings(t *testing.T) {
	rows := []InsertRow{
		{UserTs: "2024-01-02 03:04:05.678901+00:00", AssetCode: "a", Reading: []byte(`{"v":1}`)},
		{IsNow: true, AssetCode: "b", HasKey: true, ReadKey: "k1", Reading: []byte(`{"v":2}`)},
	}
	sql, args, err := CompileAppendReadings(rows)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sql, "INSERT INTO readings (user_ts, asset_code, read_key, reading) VALUES") {
		t.Fatalf("unexpected sql: %s", sql)
	}
	if !strings.Contains(sql, sqliteNow) {
		t.Fatalf("expected now() substitution: %s", sql)
	}
	if len(args) != 7 {
		t.Fatalf("expected 7 bound args, got %d: %v", len(args), args)
	}
}
