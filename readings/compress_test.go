package readings

import (
	"context"
	"testing"
)

func TestCompressReadingRoundTrip(t *testing.T) {
	raw := []byte(`{"temperature":21.5,"humidity":40}`)
	compressed := compressReading(raw, true)
	if len(compressed) == 0 || compressed[0] != compressedPrefix {
		t.Fatalf("compressed value missing marker byte: %v", compressed)
	}
	decompressed, err := decompressReading(compressed)
	if err != nil {
		t.Fatalf("decompressReading: %v", err)
	}
	if string(decompressed) != string(raw) {
		t.Fatalf("round trip mismatch: got %s, want %s", decompressed, raw)
	}
}

func TestCompressReadingDisabledPassesThrough(t *testing.T) {
	raw := []byte(`{"v":1}`)
	out := compressReading(raw, false)
	if string(out) != string(raw) {
		t.Fatalf("disabled compression modified payload: got %s, want %s", out, raw)
	}
}

func TestDecompressReadingLeavesPlainJSONAlone(t *testing.T) {
	raw := []byte(`{"v":1}`)
	out, err := decompressReading(raw)
	if err != nil {
		t.Fatalf("decompressReading: %v", err)
	}
	if string(out) != string(raw) {
		t.Fatalf("plain JSON changed: got %s, want %s", out, raw)
	}
}

func TestAppendAndRetrieveWithCompressionEnabled(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultStoreConfig()
	cfg.Path = dir + "/compressed.sqlite"
	cfg.CompressReadings = true

	s, err := Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	ctx := context.Background()
	payload := []byte(`{"readings":[{"asset_code":"a","user_ts":"now()","reading":{"v":42}}]}`)
	if _, _, err := s.Append(ctx, payload); err != nil {
		t.Fatalf("Append: %v", err)
	}

	set, err := s.Retrieve(ctx, []byte(`{}`))
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if set.Count != 1 {
		t.Fatalf("count = %d, want 1", set.Count)
	}
	reading, ok := set.Rows[0]["reading"].(map[string]any)
	if !ok {
		t.Fatalf("reading not decompressed to an object: %#v", set.Rows[0]["reading"])
	}
	if v := reading["v"]; v == nil {
		t.Fatalf("missing field v in decompressed reading: %#v", reading)
	}
}
