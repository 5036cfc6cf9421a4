package sqlbuffer

import "testing"

func TestEmptyBuffer(t *testing.T) {
	buf := New()
	if !buf.IsEmpty() {
		t.Fatal("new buffer should be empty")
	}
	if buf.Coalesce() != "" {
		t.Fatal("empty buffer should coalesce to empty string")
	}
}

func TestAppendFragments(t *testing.T) {
	buf := New()
	buf.AppendString("SELECT * FROM readings WHERE id > ").
		AppendInt(42).
		AppendString(" AND value < ").
		AppendFloat(3.5).
		AppendByte(';')

	if buf.IsEmpty() {
		t.Fatal("buffer with fragments should not be empty")
	}

	got := buf.Coalesce()
	want := "SELECT * FROM readings WHERE id > 42 AND value < 3.5;"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAppendIntNegative(t *testing.T) {
	buf := New()
	buf.AppendInt(-7)
	if buf.Coalesce() != "-7" {
		t.Fatalf("got %q", buf.Coalesce())
	}
}
