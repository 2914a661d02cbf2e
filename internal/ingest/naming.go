package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// hashPrefixLen is how much of the content hash goes into the canonical
// basename.
const hashPrefixLen = 8

// canonicalDir returns the library-relative directory for a capture time:
// YYYY/YYYY-MM-DD.
func canonicalDir(taken time.Time) string {
	return filepath.Join(taken.Format("2006"), taken.Format("2006-01-02"))
}

// canonicalName returns the basename img_YYYYMMDD_<hash8><ext>. n > 0 adds a
// _N suffix for the rare distinct-content name collision.
func canonicalName(taken time.Time, hash, ext string, n int) string {
	base := fmt.Sprintf("img_%s_%s", taken.Format("20060102"), hash[:hashPrefixLen])
	if n > 0 {
		base = fmt.Sprintf("%s_%d", base, n)
	}
	return base + strings.ToLower(ext)
}

// canonicalPath returns the full library-relative path for attempt n.
func canonicalPath(taken time.Time, hash, ext string, n int) string {
	return filepath.Join(canonicalDir(taken), canonicalName(taken, hash, ext, n))
}
