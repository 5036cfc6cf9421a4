package readings

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultStoreConfig()
	cfg.Path = filepath.Join(dir, "readings.sqlite")

	s, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAppendRetrieveRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"readings":[{"asset_code":"a","user_ts":"2024-01-02 03:04:05.678901+00:00","reading":{"v":1}}]}`)
	inserted, skipped, err := s.Append(ctx, payload)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if inserted != 1 || skipped != 0 {
		t.Fatalf("inserted=%d skipped=%d, want 1,0", inserted, skipped)
	}

	set, err := s.Retrieve(ctx, []byte(`{}`))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if set.Count != 1 {
		t.Fatalf("count = %d, want 1", set.Count)
	}
	row := set.Rows[0]
	reading, ok := row["reading"].(map[string]any)
	if !ok {
		t.Fatalf("reading not embedded as object: %#v", row["reading"])
	}
	if v, _ := reading["v"].(json.Number); v.String() != "1" {
		t.Fatalf("reading.v = %v, want 1", reading["v"])
	}

	// The default projection must apply the readings table's localtime
	// formatting rather than passing the raw stored value through: the raw
	// form carries a "+00:00" offset suffix and is 32 characters long, the
	// formatted form drops the offset and keeps the microsecond fraction.
	userTs, ok := row["user_ts"].(string)
	if !ok {
		t.Fatalf("user_ts not returned as string: %#v", row["user_ts"])
	}
	if strings.HasSuffix(userTs, "+00:00") {
		t.Fatalf("user_ts = %q, still carries the raw timezone offset: default projection did not format it", userTs)
	}
	if !strings.Contains(userTs, ".678901") {
		t.Fatalf("user_ts = %q, lost its microsecond fraction", userTs)
	}
	if len(userTs) != 26 {
		t.Fatalf("user_ts = %q, want 26 chars (YYYY-MM-DD HH:MM:SS.ffffff)", userTs)
	}
}

func TestAppendSkipsInvalidUserTs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"readings":[
		{"asset_code":"a","user_ts":"not-a-date","reading":{"v":1}},
		{"asset_code":"a","user_ts":"now()","reading":{"v":2}}
	]}`)
	inserted, skipped, err := s.Append(ctx, payload)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if inserted != 1 {
		t.Fatalf("inserted = %d, want 1", inserted)
	}
	if skipped != 1 {
		t.Fatalf("skipped = %d, want 1", skipped)
	}
}

func TestFetchOrdersAscendingById(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		payload := []byte(`{"readings":[{"asset_code":"a","user_ts":"now()","reading":{"v":` +
			jsonInt(i) + `}}]}`)
		if _, _, err := s.Append(ctx, payload); err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
	}

	set, err := s.Fetch(ctx, 1, 100)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if set.Count != 5 {
		t.Fatalf("count = %d, want 5", set.Count)
	}
	var prevID int64
	for i, row := range set.Rows {
		id, ok := row["id"].(int64)
		if !ok {
			t.Fatalf("row %d: id not int64: %#v", i, row["id"])
		}
		if id <= prevID {
			t.Fatalf("row %d: id %d not strictly increasing after %d", i, id, prevID)
		}
		prevID = id
	}
}

func TestFetchRespectsBlockSize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, _, err := s.Append(ctx, []byte(`{"readings":[{"asset_code":"a","user_ts":"now()","reading":{}}]}`)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	set, err := s.Fetch(ctx, 1, 3)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if set.Count != 3 {
		t.Fatalf("count = %d, want 3", set.Count)
	}
}

func TestRetrieveWhereNewer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	payload := []byte(`{"readings":[
		{"asset_code":"a","user_ts":"now()","reading":{}},
		{"asset_code":"a","user_ts":"now()","reading":{}}
	]}`)
	if _, _, err := s.Append(ctx, payload); err != nil {
		t.Fatalf("Append: %v", err)
	}

	set, err := s.Retrieve(ctx, []byte(`{"where":{"column":"user_ts","condition":"newer","value":30}}`))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if set.Count != 2 {
		t.Fatalf("count = %d, want 2", set.Count)
	}
}

func TestRetrieveAggregateCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s.Append(ctx, []byte(`{"readings":[{"asset_code":"a","user_ts":"now()","reading":{}}]}`))
	}
	for i := 0; i < 2; i++ {
		s.Append(ctx, []byte(`{"readings":[{"asset_code":"b","user_ts":"now()","reading":{}}]}`))
	}

	set, err := s.Retrieve(ctx, []byte(`{"aggregate":{"operation":"count","column":"*"}}`))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if set.Count != 1 {
		t.Fatalf("count = %d, want 1 aggregate row", set.Count)
	}
	got := set.Rows[0]["count_*"]
	n, ok := got.(int64)
	if !ok || n != 5 {
		t.Fatalf("count_* = %#v, want 5", got)
	}
}

func jsonInt(n int) string {
	b, _ := json.Marshal(n)
	return string(b)
}
