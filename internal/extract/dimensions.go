package extract

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/rwcarlsen/goexif/exif"

	"photo-librarian/internal/logging"
)

// Dimensions returns the display width and height of an image. EXIF
// orientations 5 through 8 rotate the raster by 90 degrees, so for those the
// encoded dimensions are swapped. Formats the decoders don't know (RAW,
// video) return 0, 0 with no error.
func Dimensions(path string) (width, height int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		if err == image.ErrFormat {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	width, height = cfg.Width, cfg.Height
	if orientationSwapsAxes(path) {
		width, height = height, width
	}
	return width, height, nil
}

// Orientation returns the EXIF orientation tag for a JPEG or TIFF file.
// Files without the tag, and formats goexif cannot parse, report 1 (upright).
func Orientation(path string) int {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".tif" && ext != ".tiff" {
		return 1
	}

	f, err := os.Open(path)
	if err != nil {
		return 1
	}
	defer f.Close()

	x, err := exif.Decode(f)
	if err != nil {
		return 1
	}
	tag, err := x.Get(exif.Orientation)
	if err != nil {
		return 1
	}
	orient, err := tag.Int(0)
	if err != nil || orient < 1 || orient > 8 {
		logging.Debug("Bad orientation tag in %s: %v", path, err)
		return 1
	}
	return orient
}

func orientationSwapsAxes(path string) bool {
	orient := Orientation(path)
	return orient >= 5 && orient <= 8
}
