package storageclient

import "testing"

func TestAdminAuthAcceptsCorrectKey(t *testing.T) {
	auth, err := NewAdminAuth("s3cret")
	if err != nil {
		t.Fatalf("NewAdminAuth: %v", err)
	}
	if !auth.Check("Bearer s3cret") {
		t.Fatal("expected correct key to be accepted")
	}
}

func TestAdminAuthRejectsWrongKey(t *testing.T) {
	auth, err := NewAdminAuth("s3cret")
	if err != nil {
		t.Fatalf("NewAdminAuth: %v", err)
	}
	if auth.Check("Bearer wrong") {
		t.Fatal("expected wrong key to be rejected")
	}
	if auth.Check("s3cret") {
		t.Fatal("expected missing Bearer prefix to be rejected")
	}
}
