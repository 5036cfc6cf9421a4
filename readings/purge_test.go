package readings

import (
	"context"
	"testing"
)

func appendN(t *testing.T, s *Store, n int, userTs string) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		ts := userTs
		if ts == "" {
			ts = "now()"
		}
		payload := []byte(`{"readings":[{"asset_code":"a","user_ts":"` + ts + `","reading":{}}]}`)
		if _, _, err := s.Append(ctx, payload); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
}

func TestPurgeByAgeIdempotentOnEmptyTable(t *testing.T) {
	s := newTestStore(t)
	res, err := s.PurgeByAge(context.Background(), 0, 0, 0)
	if err != nil {
		t.Fatalf("PurgeByAge: %v", err)
	}
	if res.Removed != 0 || res.UnsentPurged != 0 || res.UnsentRetained != 0 || res.ReadingsRemaining != 0 {
		t.Fatalf("expected all-zero result on empty table, got %+v", res)
	}

	// running it again must not change anything or error
	res2, err := s.PurgeByAge(context.Background(), 0, 0, 0)
	if err != nil {
		t.Fatalf("PurgeByAge (second): %v", err)
	}
	if *res != *res2 {
		t.Fatalf("purge on empty table is not idempotent: %+v vs %+v", res, res2)
	}
}

func TestPurgeByAgeRemovesOldRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendN(t, s, 5, "2000-01-01 00:00:00")
	appendN(t, s, 5, "")

	res, err := s.PurgeByAge(ctx, 1, 0, 0)
	if err != nil {
		t.Fatalf("PurgeByAge: %v", err)
	}
	if res.Removed < 5 {
		t.Fatalf("Removed = %d, want at least 5 old rows purged", res.Removed)
	}

	set, err := s.Fetch(ctx, 1, 100)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if set.Count > 5 {
		t.Fatalf("expected at most the 5 recent rows to remain, got %d", set.Count)
	}
}

func TestPurgeRetainsUnsentRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendN(t, s, 10, "2000-01-01 00:00:00")

	res, err := s.PurgeByAge(ctx, 1, RetainUnsent, 5)
	if err != nil {
		t.Fatalf("PurgeByAge: %v", err)
	}
	if res.Removed > 5 {
		t.Fatalf("Removed = %d, want at most 5 with sentID=5 retained", res.Removed)
	}

	set, err := s.Fetch(ctx, 6, 100)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if set.Count < 5 {
		t.Fatalf("expected rows 6..10 to survive retain-unsent purge, got %d rows", set.Count)
	}
}

func TestPurgeBySizeTargetsRemainingCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendN(t, s, 20, "")

	res, err := s.PurgeBySize(ctx, 5, 0, 0)
	if err != nil {
		t.Fatalf("PurgeBySize: %v", err)
	}
	if res.Removed <= 0 {
		t.Fatalf("expected some rows removed, got %d", res.Removed)
	}

	set, err := s.Fetch(ctx, 1, 1000)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if set.Count > 6 {
		t.Fatalf("expected roughly 5 rows remaining, got %d", set.Count)
	}
}

func TestPurgeNeverExceedsMaxRowidSnapshot(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendN(t, s, 5, "2000-01-01 00:00:00")

	_, maxRowid, ok, err := s.rowidBounds(ctx)
	if err != nil || !ok {
		t.Fatalf("rowidBounds: ok=%v err=%v", ok, err)
	}

	res, err := s.PurgeByAge(ctx, 1, 0, 0)
	if err != nil {
		t.Fatalf("PurgeByAge: %v", err)
	}
	if res.UnsentRetained < 0 {
		t.Fatalf("UnsentRetained went negative: %d (maxRowid snapshot %d)", res.UnsentRetained, maxRowid)
	}
}
