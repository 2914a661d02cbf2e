package orient

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"photo-librarian/internal/exiftool"
	"photo-librarian/internal/mediakinds"
)

// TestNormalizeSkipsNonPhotos tests that videos and unknown files are never
// touched.
func TestNormalizeSkipsNonPhotos(t *testing.T) {
	t.Parallel()

	n := New(exiftool.NewRunner(time.Second))
	dir := t.TempDir()

	for _, tt := range []struct {
		name string
		kind mediakinds.Kind
	}{
		{name: "clip.mp4", kind: mediakinds.KindVideo},
		{name: "notes.txt", kind: mediakinds.KindOther},
		{name: "shot.cr2", kind: mediakinds.KindPhoto}, // photo, but no transform path
	} {
		path := filepath.Join(dir, tt.name)
		if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", tt.name, err)
		}

		out, err := n.Normalize(context.Background(), path, tt.kind)
		if err != nil {
			t.Fatalf("Normalize(%s): %v", tt.name, err)
		}
		if out.Result != ResultNoop || out.Changed {
			t.Errorf("Normalize(%s) = %+v, want noop unchanged", tt.name, out)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("failed to read back %s: %v", tt.name, err)
		}
		if string(data) != "payload" {
			t.Errorf("%s was modified", tt.name)
		}
	}
}

// TestJpegtranArgsCoverAllRotations tests that every non-upright orientation
// has a transform.
func TestJpegtranArgsCoverAllRotations(t *testing.T) {
	t.Parallel()

	for orientation := 2; orientation <= 8; orientation++ {
		if _, ok := jpegtranArgs[orientation]; !ok {
			t.Errorf("no jpegtran transform for orientation %d", orientation)
		}
	}
	if _, ok := jpegtranArgs[1]; ok {
		t.Error("orientation 1 must not have a transform")
	}
}

// TestBakePNGRotates tests the re-encode path on a marked corner pixel.
func TestBakePNGRotates(t *testing.T) {
	t.Parallel()

	// 4x2 image with a red pixel at the top-left.
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	red := color.RGBA{R: 255, A: 255}
	img.Set(0, 0, red)

	path := filepath.Join(t.TempDir(), "rot.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	f.Close()

	// Orientation 6 = raster stored rotated 90° CCW; baking turns it CW.
	n := New(exiftool.NewRunner(time.Second))
	if err := n.bakePNG(path, 6); err != nil {
		t.Fatalf("bakePNG: %v", err)
	}

	rf, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to reopen: %v", err)
	}
	defer rf.Close()
	baked, err := png.Decode(rf)
	if err != nil {
		t.Fatalf("failed to decode baked image: %v", err)
	}

	b := baked.Bounds()
	if b.Dx() != 2 || b.Dy() != 4 {
		t.Fatalf("baked dimensions = %dx%d, want 2x4", b.Dx(), b.Dy())
	}
	// 90° CW moves (0,0) to the top-right corner.
	r, _, _, _ := baked.At(b.Max.X-1, 0).RGBA()
	if r>>8 != 255 {
		t.Errorf("marker pixel not at top-right after bake, red = %d", r>>8)
	}
}

// TestBakePNGRejectsUnknownOrientation tests the guard on bad tag values.
func TestBakePNGRejectsUnknownOrientation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "x.png")
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	f.Close()

	n := New(exiftool.NewRunner(time.Second))
	if err := n.bakePNG(path, 9); err == nil {
		t.Error("expected error for orientation 9")
	}
}

// TestEncodedDimensions tests raw encoded size reading for the MCU check.
func TestEncodedDimensions(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "d.png")
	img := image.NewRGBA(image.Rect(0, 0, 48, 32))
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	f.Close()

	w, h, err := encodedDimensions(path)
	if err != nil {
		t.Fatalf("encodedDimensions: %v", err)
	}
	if w != 48 || h != 32 {
		t.Errorf("encodedDimensions = %dx%d, want 48x32", w, h)
	}
}
