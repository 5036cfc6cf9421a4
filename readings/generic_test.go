package readings

import (
	"context"
	"testing"
)

func TestDeleteWhereRequiresWhereClause(t *testing.T) {
	s := newTestStore(t)
	_, err := s.DeleteWhere(context.Background(), "readings", []byte(`{}`))
	if err == nil {
		t.Fatal("expected error for delete without a where clause")
	}
}

func TestDeleteWhereRemovesMatchingRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendN(t, s, 3, "")
	if _, _, err := s.Append(ctx, []byte(`{"readings":[{"asset_code":"other","user_ts":"now()","reading":{}}]}`)); err != nil {
		t.Fatalf("Append: %v", err)
	}

	affected, err := s.DeleteWhere(ctx, "readings", []byte(`{"where":{"column":"asset_code","condition":"=","value":"a"}}`))
	if err != nil {
		t.Fatalf("DeleteWhere: %v", err)
	}
	if affected != 3 {
		t.Fatalf("affected = %d, want 3", affected)
	}

	set, err := s.Retrieve(ctx, []byte(`{}`))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if set.Count != 1 {
		t.Fatalf("count = %d, want 1 remaining row", set.Count)
	}
}
