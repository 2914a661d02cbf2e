package orient

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"photo-librarian/internal/exiftool"
	"photo-librarian/internal/logging"
	"photo-librarian/internal/mediakinds"
	"photo-librarian/internal/metrics"
)

// Result classifies what normalization did to a file.
type Result string

const (
	// ResultNoop means the file carried no orientation tag; nothing touched.
	ResultNoop Result = "noop"
	// ResultBaked means pixels were rewritten upright and the tag reset.
	ResultBaked Result = "baked"
	// ResultStripped means pixels were already upright; only the tag was reset.
	ResultStripped Result = "stripped"
	// ResultSkipped means rotation was needed but could not be done safely.
	ResultSkipped Result = "skipped"
)

// Outcome reports the result and whether file bytes changed. Changed tells
// the caller its content hash and cached dimensions are stale.
type Outcome struct {
	Result  Result
	Changed bool
}

// jpegtranArgs maps EXIF orientation values 2-8 to the lossless transform
// that makes the raster upright.
var jpegtranArgs = map[int][]string{
	2: {"-flip", "horizontal"},
	3: {"-rotate", "180"},
	4: {"-flip", "vertical"},
	5: {"-transpose"},
	6: {"-rotate", "90"},
	7: {"-transverse"},
	8: {"-rotate", "270"},
}

// Normalizer rewrites files so the stored raster is upright and the
// orientation tag is gone.
type Normalizer struct {
	runner *exiftool.Runner
}

// New creates a Normalizer backed by runner.
func New(runner *exiftool.Runner) *Normalizer {
	return &Normalizer{runner: runner}
}

// Normalize makes path display upright without the orientation tag. It only
// ever transforms losslessly-safe formats; anything it cannot handle safely
// is skipped, never an error that would fail the surrounding import. The
// file is modified in place.
func (n *Normalizer) Normalize(ctx context.Context, path string, kind mediakinds.Kind) (Outcome, error) {
	if kind != mediakinds.KindPhoto {
		return n.done(ResultNoop, false), nil
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg", ".png":
	default:
		// TIFF/WebP/HEIC and RAW stay untouched; no lossless transform path.
		return n.done(ResultNoop, false), nil
	}

	orientation, present, err := n.runner.ReadOrientation(ctx, path)
	if err != nil {
		logging.Warn("Orientation read failed for %s, leaving as-is: %v", path, err)
		return n.done(ResultSkipped, false), nil
	}
	if !present {
		return n.done(ResultNoop, false), nil
	}
	if orientation == 1 {
		if err := n.runner.StripOrientation(ctx, path); err != nil {
			logging.Warn("Orientation strip failed for %s: %v", path, err)
			return n.done(ResultSkipped, false), nil
		}
		return n.done(ResultStripped, true), nil
	}

	var bakeErr error
	if ext == ".png" {
		bakeErr = n.bakePNG(path, orientation)
	} else {
		var safe bool
		safe, bakeErr = n.bakeJPEG(ctx, path, orientation)
		if bakeErr == nil && !safe {
			logging.Info("Skipping lossless transform of %s: edges not aligned to the MCU grid", path)
			return n.done(ResultSkipped, false), nil
		}
	}
	if bakeErr != nil {
		logging.Warn("Rotation failed for %s, leaving as-is: %v", path, bakeErr)
		return n.done(ResultSkipped, false), nil
	}

	if err := n.runner.StripOrientation(ctx, path); err != nil {
		// Pixels are upright but the tag still says rotated. Surface it; a
		// double-rotated display is worse than a failed import.
		return n.done(ResultSkipped, true), fmt.Errorf("rotated %s but failed to reset orientation tag: %w", path, err)
	}
	return n.done(ResultBaked, true), nil
}

// bakeJPEG rotates via jpegtran. Returns safe=false when the dimensions rule
// out a lossless transform for this orientation.
func (n *Normalizer) bakeJPEG(ctx context.Context, path string, orientation int) (safe bool, err error) {
	w, h, err := encodedDimensions(path)
	if err != nil {
		return false, err
	}
	mcuW, mcuH, err := mcuSize(path)
	if err != nil {
		// Unreadable frame header; assume the coarsest grid.
		logging.Debug("MCU read failed for %s, assuming 16x16: %v", path, err)
		mcuW, mcuH = 16, 16
	}
	if !transformSafe(orientation, w, h, mcuW, mcuH) {
		return false, nil
	}

	args, ok := jpegtranArgs[orientation]
	if !ok {
		return false, fmt.Errorf("unexpected orientation %d", orientation)
	}

	tmp := path + ".rotate.tmp"
	if err := n.runner.JpegtranTransform(ctx, path, tmp, args...); err != nil {
		os.Remove(tmp)
		return true, err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return true, fmt.Errorf("failed to replace %s with rotated copy: %w", path, err)
	}
	return true, nil
}

// bakePNG re-encodes through imaging. PNG is lossless, so a decode-rotate-
// encode cycle never degrades pixels.
func (n *Normalizer) bakePNG(path string, orientation int) error {
	img, err := imaging.Open(path)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}

	var upright image.Image
	switch orientation {
	case 2:
		upright = imaging.FlipH(img)
	case 3:
		upright = imaging.Rotate180(img)
	case 4:
		upright = imaging.FlipV(img)
	case 5:
		upright = imaging.Transpose(img)
	case 6:
		upright = imaging.Rotate270(img)
	case 7:
		upright = imaging.Transverse(img)
	case 8:
		upright = imaging.Rotate90(img)
	default:
		return fmt.Errorf("unexpected orientation %d", orientation)
	}

	tmp := path + ".rotate.tmp"
	if err := imaging.Save(upright, tmp, imaging.PNGCompressionLevel(6)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s with rotated copy: %w", path, err)
	}
	return nil
}

func (n *Normalizer) done(result Result, changed bool) Outcome {
	metrics.NormalizationsTotal.WithLabelValues(string(result)).Inc()
	return Outcome{Result: result, Changed: changed}
}

func encodedDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}
