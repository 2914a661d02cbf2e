package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"photo-librarian/internal/exiftool"
	"photo-librarian/internal/logging"
	"photo-librarian/internal/mediakinds"
)

// TimestampLayout is the canonical capture-time form used in metadata tags
// and in library paths derived from it.
const TimestampLayout = "2006:01:02 15:04:05"

// Source records where a capture time came from.
type Source string

const (
	// SourceExif means the time came from an embedded metadata tag.
	SourceExif Source = "exif"
	// SourceContainer means the time came from the video container.
	SourceContainer Source = "container"
	// SourceModTime means no embedded time existed; filesystem mtime was used.
	SourceModTime Source = "mtime"
)

// CaptureTime is a resolved capture time and its provenance.
type CaptureTime struct {
	Time   time.Time
	Source Source
}

// Canonical returns the time in TimestampLayout form.
func (c CaptureTime) Canonical() string {
	return c.Time.Format(TimestampLayout)
}

// Extractor resolves capture times from file metadata.
type Extractor struct {
	runner *exiftool.Runner
}

// New creates an Extractor backed by runner.
func New(runner *exiftool.Runner) *Extractor {
	return &Extractor{runner: runner}
}

// CaptureTime resolves the capture time for path. Photos consult embedded
// tags in priority order, videos the container creation time; when no
// embedded time exists the file's modification time is used. A tool failure
// is an error, not a fallback: callers must be able to tell "this file has no
// date" from "we could not read it".
func (e *Extractor) CaptureTime(ctx context.Context, path string, kind mediakinds.Kind) (CaptureTime, error) {
	switch kind {
	case mediakinds.KindPhoto:
		dates, err := e.runner.ReadDates(ctx, path)
		if err != nil {
			return CaptureTime{}, err
		}
		for _, tag := range exiftool.DateTags {
			raw, ok := dates[tag]
			if !ok {
				continue
			}
			ts, perr := parseMetadataTime(raw)
			if perr != nil {
				logging.Debug("Unparseable %s %q in %s: %v", tag, raw, path, perr)
				continue
			}
			return CaptureTime{Time: ts, Source: SourceExif}, nil
		}

	case mediakinds.KindVideo:
		raw, err := e.runner.VideoCreationTime(ctx, path)
		if err != nil {
			return CaptureTime{}, err
		}
		if raw != "" {
			ts, perr := parseMetadataTime(raw)
			if perr == nil {
				return CaptureTime{Time: ts, Source: SourceContainer}, nil
			}
			logging.Debug("Unparseable creation_time %q in %s: %v", raw, path, perr)
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return CaptureTime{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	return CaptureTime{Time: info.ModTime(), Source: SourceModTime}, nil
}

// metadataLayouts covers the shapes capture times actually show up in:
// exiftool's colon-date form with optional zone or subseconds, and the
// RFC 3339 variants video containers carry.
var metadataLayouts = []string{
	TimestampLayout,
	"2006:01:02 15:04:05-07:00",
	"2006:01:02 15:04:05Z",
	"2006:01:02 15:04:05.000",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.000000Z",
}

func parseMetadataTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	// Cameras write all-zero dates for unset clocks; treat them as absent.
	if strings.HasPrefix(raw, "0000") {
		return time.Time{}, fmt.Errorf("zero date %q", raw)
	}
	for _, layout := range metadataLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", raw)
}
