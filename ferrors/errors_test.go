package ferrors

import (
	"errors"
	"testing"
)

func TestWrapUnwrapsUnderlyingError(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(DatabaseError, "append", cause)

	if !errors.Is(err, cause) {
		t.Fatal("errors.Is did not find the wrapped cause")
	}
	if err.Kind != DatabaseError {
		t.Fatalf("Kind = %v, want DatabaseError", err.Kind)
	}
}

func TestNewUsesExcerptInMessage(t *testing.T) {
	err := New(ParseError, "retrieve", "unexpected token")
	if got := err.Error(); got != "retrieve: parse: unexpected token" {
		t.Fatalf("Error() = %q", got)
	}
}

func TestExcerptTrimsLongStrings(t *testing.T) {
	long := "0123456789abcdef"
	got := Excerpt(long, 8)
	if got != "01234567..." {
		t.Fatalf("Excerpt() = %q", got)
	}
	if Excerpt("short", 8) != "short" {
		t.Fatal("Excerpt should not trim strings within bounds")
	}
}

func TestKindStringMatchesTaxonomy(t *testing.T) {
	cases := map[Kind]string{
		Internal:      "internal",
		ParseError:    "parse",
		ShapeError:    "shape",
		DateError:     "date",
		DatabaseError: "database",
		BusyExhausted: "busy_exhausted",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
