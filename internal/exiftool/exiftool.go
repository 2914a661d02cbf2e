package exiftool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DateTags are the metadata fields read and written for capture time, in
// priority order.
var DateTags = []string{"DateTimeOriginal", "CreateDate", "ModifyDate"}

// ReadDates returns the capture-time tags present in the file, keyed by tag
// name. Absent tags are simply missing from the map.
func (r *Runner) ReadDates(ctx context.Context, path string) (map[string]string, error) {
	args := make([]string, 0, len(DateTags)+2)
	for _, tag := range DateTags {
		args = append(args, "-"+tag)
	}
	args = append(args, "-j", path)

	out, err := r.Run(ctx, "exiftool", args...)
	if err != nil {
		return nil, err
	}

	// exiftool -j emits a one-element array of tag objects.
	var records []map[string]any
	if err := json.Unmarshal(out, &records); err != nil {
		return nil, fmt.Errorf("failed to parse exiftool output for %s: %w", path, err)
	}
	if len(records) == 0 {
		return map[string]string{}, nil
	}

	dates := make(map[string]string, len(DateTags))
	for _, tag := range DateTags {
		if v, ok := records[0][tag].(string); ok && v != "" {
			dates[tag] = v
		}
	}
	return dates, nil
}

// WriteDates sets all three capture-time tags to value, modifying the file in
// place. value must already be in "YYYY:MM:DD HH:MM:SS" form.
func (r *Runner) WriteDates(ctx context.Context, path, value string) error {
	args := make([]string, 0, len(DateTags)+2)
	args = append(args, "-overwrite_original")
	for _, tag := range DateTags {
		args = append(args, fmt.Sprintf("-%s=%s", tag, value))
	}
	args = append(args, path)

	_, err := r.Run(ctx, "exiftool", args...)
	return err
}

// ReadOrientation returns the numeric EXIF Orientation tag and whether the
// tag is present at all.
func (r *Runner) ReadOrientation(ctx context.Context, path string) (int, bool, error) {
	out, err := r.Run(ctx, "exiftool", "-Orientation", "-n", "-j", path)
	if err != nil {
		return 0, false, err
	}

	var records []map[string]any
	if err := json.Unmarshal(out, &records); err != nil {
		return 0, false, fmt.Errorf("failed to parse exiftool output for %s: %w", path, err)
	}
	if len(records) == 0 {
		return 0, false, nil
	}
	v, ok := records[0]["Orientation"].(float64)
	if !ok {
		return 0, false, nil
	}
	return int(v), true, nil
}

// StripOrientation resets the Orientation tag to 1 (upright) in place, so
// viewers stop re-rotating pixels that are already correct.
func (r *Runner) StripOrientation(ctx context.Context, path string) error {
	_, err := r.Run(ctx, "exiftool", "-overwrite_original", "-Orientation=1", "-n", path)
	return err
}

// ffprobeFormat mirrors the slice of ffprobe JSON output we care about.
type ffprobeFormat struct {
	Format struct {
		Tags map[string]string `json:"tags"`
	} `json:"format"`
}

// VideoCreationTime returns the container-level creation_time tag, or "" when
// the container carries none.
func (r *Runner) VideoCreationTime(ctx context.Context, path string) (string, error) {
	out, err := r.Run(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_entries", "format_tags=creation_time",
		path,
	)
	if err != nil {
		return "", err
	}

	var probe ffprobeFormat
	if err := json.Unmarshal(out, &probe); err != nil {
		return "", fmt.Errorf("failed to parse ffprobe output for %s: %w", path, err)
	}
	for key, value := range probe.Format.Tags {
		if strings.EqualFold(key, "creation_time") {
			return value, nil
		}
	}
	return "", nil
}

// JpegtranTransform runs jpegtran with transform and writes the result to
// dst. "-copy all" preserves every marker segment and "-perfect" makes
// jpegtran fail instead of trimming edge blocks, keeping the operation
// lossless.
func (r *Runner) JpegtranTransform(ctx context.Context, src, dst string, transform ...string) error {
	args := []string{"-copy", "all", "-perfect"}
	args = append(args, transform...)
	args = append(args, "-outfile", dst, src)

	_, err := r.Run(ctx, "jpegtran", args...)
	return err
}
