package extract

import (
	"context"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photo-librarian/internal/exiftool"
	"photo-librarian/internal/mediakinds"
)

// TestParseMetadataTime tests the timestamp shapes seen in real files.
func TestParseMetadataTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{name: "exiftool form", raw: "2024:03:15 14:30:00", want: "2024:03:15 14:30:00"},
		{name: "exiftool with zone", raw: "2024:03:15 14:30:00-05:00", want: "2024:03:15 14:30:00"},
		{name: "ffprobe creation_time", raw: "2024-03-15T14:30:00.000000Z", want: "2024:03:15 14:30:00"},
		{name: "rfc3339", raw: "2024-03-15T14:30:00Z", want: "2024:03:15 14:30:00"},
		{name: "zero date", raw: "0000:00:00 00:00:00", wantErr: true},
		{name: "garbage", raw: "last tuesday", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseMetadataTime(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseMetadataTime(%q) = %v, want error", tt.raw, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMetadataTime(%q): %v", tt.raw, err)
			}
			if got.Format(TimestampLayout) != tt.want {
				t.Errorf("parseMetadataTime(%q) = %s, want %s", tt.raw, got.Format(TimestampLayout), tt.want)
			}
		})
	}
}

// TestCaptureTimeModTimeFallback tests that non-media files fall back to
// filesystem mtime without touching any external tool.
func TestCaptureTimeModTimeFallback(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	mtime := time.Date(2023, 7, 4, 10, 0, 0, 0, time.Local)
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}

	e := New(exiftool.NewRunner(time.Second))
	ct, err := e.CaptureTime(context.Background(), path, mediakinds.KindOther)
	if err != nil {
		t.Fatalf("CaptureTime: %v", err)
	}
	if ct.Source != SourceModTime {
		t.Errorf("Source = %s, want %s", ct.Source, SourceModTime)
	}
	if ct.Canonical() != "2023:07:04 10:00:00" {
		t.Errorf("Canonical = %s", ct.Canonical())
	}
}

func writeTestImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()

	switch filepath.Ext(path) {
	case ".png":
		err = png.Encode(f, img)
	default:
		err = jpeg.Encode(f, img, nil)
	}
	if err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
}

// TestDimensions tests decoding encoded dimensions from real image data.
func TestDimensions(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tests := []struct {
		name string
		w, h int
	}{
		{name: "wide.png", w: 64, h: 48},
		{name: "tall.jpg", w: 32, h: 96},
	}

	for _, tt := range tests {
		tt := tt
		path := filepath.Join(dir, tt.name)
		writeTestImage(t, path, tt.w, tt.h)

		w, h, err := Dimensions(path)
		if err != nil {
			t.Fatalf("Dimensions(%s): %v", tt.name, err)
		}
		if w != tt.w || h != tt.h {
			t.Errorf("Dimensions(%s) = %dx%d, want %dx%d", tt.name, w, h, tt.w, tt.h)
		}
	}
}

// TestDimensionsUnknownFormat tests that undecodable formats report zero
// dimensions without error.
func TestDimensionsUnknownFormat(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "shot.cr2")
	if err := os.WriteFile(path, []byte("raw sensor data, not decodable"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w, h, err := Dimensions(path)
	if err != nil {
		t.Fatalf("Dimensions: %v", err)
	}
	if w != 0 || h != 0 {
		t.Errorf("Dimensions = %dx%d, want 0x0", w, h)
	}
}

// TestOrientationDefaults tests that files without EXIF report upright.
func TestOrientationDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	jpg := filepath.Join(dir, "plain.jpg")
	writeTestImage(t, jpg, 16, 16)

	if got := Orientation(jpg); got != 1 {
		t.Errorf("Orientation(jpeg without exif) = %d, want 1", got)
	}
	if got := Orientation(filepath.Join(dir, "missing.jpg")); got != 1 {
		t.Errorf("Orientation(missing file) = %d, want 1", got)
	}
	if got := Orientation(filepath.Join(dir, "clip.mp4")); got != 1 {
		t.Errorf("Orientation(non-image ext) = %d, want 1", got)
	}
}
