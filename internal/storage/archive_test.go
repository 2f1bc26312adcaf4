package storage

import (
	"bytes"
	"strings"
	"testing"
)

func TestLogKey(t *testing.T) {
	got := LogKey("U1234", "5678")
	if got != "logs/U1234/5678.txt.zst" {
		t.Errorf("LogKey = %q", got)
	}
}

func TestCompressRoundTrip(t *testing.T) {
	raw := []byte(strings.Repeat("2024/01/15(月)\n10:00\tたろう\tおはよう\n", 200))

	compressed := compress(raw)
	if len(compressed) >= len(raw) {
		t.Errorf("compressed size %d not smaller than raw %d", len(compressed), len(raw))
	}

	got, err := decompress(compressed)
	if err != nil {
		t.Fatalf("decompress: %v", err)
	}
	if !bytes.Equal(got, raw) {
		t.Error("round trip changed the log")
	}
}

func TestDecompressRejectsGarbage(t *testing.T) {
	if _, err := decompress([]byte("not zstd at all")); err == nil {
		t.Error("expected error decoding non-zstd data")
	}
}
