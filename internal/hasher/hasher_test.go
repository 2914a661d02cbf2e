package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

// TestHashFile tests that the digest matches a direct SHA-256 of the contents.
func TestHashFile(t *testing.T) {
	t.Parallel()

	data := []byte("not actually a jpeg but the hasher does not care")
	path := writeFile(t, t.TempDir(), "a.jpg", data)

	got, err := HashFile(context.Background(), path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}

	sum := sha256.Sum256(data)
	if want := hex.EncodeToString(sum[:]); got != want {
		t.Errorf("HashFile = %s, want %s", got, want)
	}
}

// TestHashFileIgnoresName tests that identical bytes hash identically under
// different names.
func TestHashFileIgnoresName(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := []byte("same bytes")
	a := writeFile(t, dir, "one.jpg", data)
	b := writeFile(t, dir, "two.png", data)

	ha, err := HashFile(context.Background(), a)
	if err != nil {
		t.Fatalf("HashFile(a): %v", err)
	}
	hb, err := HashFile(context.Background(), b)
	if err != nil {
		t.Fatalf("HashFile(b): %v", err)
	}
	if ha != hb {
		t.Errorf("digests differ: %s vs %s", ha, hb)
	}
}

// TestHashFileMissing tests the error path for a nonexistent file.
func TestHashFileMissing(t *testing.T) {
	t.Parallel()

	if _, err := HashFile(context.Background(), filepath.Join(t.TempDir(), "nope.jpg")); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestCopyAndHash tests the single-pass copy+digest against HashFile.
func TestCopyAndHash(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := make([]byte, 3*chunkSize+17)
	for i := range data {
		data[i] = byte(i % 251)
	}
	src := writeFile(t, dir, "src.mp4", data)
	dst := filepath.Join(dir, "dst.mp4")

	digest, n, err := CopyAndHash(context.Background(), src, dst)
	if err != nil {
		t.Fatalf("CopyAndHash: %v", err)
	}
	if n != int64(len(data)) {
		t.Errorf("written = %d, want %d", n, len(data))
	}

	want, err := HashFile(context.Background(), src)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if digest != want {
		t.Errorf("digest = %s, want %s", digest, want)
	}

	copied, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read copy: %v", err)
	}
	if len(copied) != len(data) {
		t.Errorf("copy length = %d, want %d", len(copied), len(data))
	}
}

// TestCopyAndHashRefusesExisting tests that an existing destination is never
// overwritten.
func TestCopyAndHashRefusesExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "src.jpg", []byte("source"))
	dst := writeFile(t, dir, "dst.jpg", []byte("already here"))

	if _, _, err := CopyAndHash(context.Background(), src, dst); err == nil {
		t.Fatal("expected error for existing destination")
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read dst: %v", err)
	}
	if string(data) != "already here" {
		t.Errorf("destination was overwritten: %q", data)
	}
}

// TestCopyAndHashCancelled tests that cancellation removes the partial copy.
func TestCopyAndHashCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := writeFile(t, dir, "src.mp4", make([]byte, 2*chunkSize))
	dst := filepath.Join(dir, "dst.mp4")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := CopyAndHash(ctx, src, dst); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if _, err := os.Stat(dst); !os.IsNotExist(err) {
		t.Errorf("partial copy left behind: stat err = %v", err)
	}
}
