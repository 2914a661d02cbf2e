package ingest

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"photo-librarian/internal/exiftool"
)

// textPatterns is the last-resort mapping from tool diagnostics to reasons.
// Checked in order; structured signals always win over these.
var textPatterns = []struct {
	substr string
	reason Reason
}{
	{"not a valid", ReasonCorrupted},
	{"corrupt", ReasonCorrupted},
	{"invalid data", ReasonCorrupted},
	{"moov atom", ReasonCorrupted},
	{"permission", ReasonPermission},
	{"denied", ReasonPermission},
	{"timeout", ReasonTimeout},
}

// classify maps a transaction failure to a taxonomy reason plus a diagnostic.
// Structured signals (ToolError kinds, errno sentinels, context state) are
// consulted first; stderr text patterns only when nothing structural matched.
func classify(err error) (Reason, string) {
	if err == nil {
		return ReasonUnsupportedFormat, ""
	}

	if te, ok := exiftool.AsToolError(err); ok {
		switch te.Kind {
		case exiftool.KindMissing:
			return ReasonMissingTool, te.Tool + " is not installed"
		case exiftool.KindTimeout:
			return ReasonTimeout, te.Tool + " exceeded its deadline"
		}
		if reason, ok := matchText(te.Stderr); ok {
			return reason, te.Stderr
		}
		if strings.Contains(strings.ToLower(te.Stderr), "not found") {
			return ReasonMissingTool, te.Stderr
		}
		return ReasonUnsupportedFormat, te.Error()
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout, err.Error()
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermission, err.Error()
	case errors.Is(err, fs.ErrNotExist):
		// The source vanished mid-transaction; its bytes are gone, same as
		// unreadable.
		return ReasonCorrupted, err.Error()
	}

	if reason, ok := matchText(err.Error()); ok {
		return reason, err.Error()
	}
	return ReasonUnsupportedFormat, err.Error()
}

func matchText(diagnostic string) (Reason, bool) {
	lower := strings.ToLower(diagnostic)
	for _, p := range textPatterns {
		if strings.Contains(lower, p.substr) {
			return p.reason, true
		}
	}
	return "", false
}
