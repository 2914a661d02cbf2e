package memory

import (
	"os"
	"runtime/debug"
	"strconv"

	"photo-librarian/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The rest is reserved for exiftool/ffprobe/jpegtran subprocesses and
// goroutine stacks.
const DefaultMemoryRatio = 0.85

// ConfigureFromEnv sets GOMEMLIMIT from the container memory limit. Call
// early in main(), before significant allocations.
//
// Environment variables:
//   - GOMEMLIMIT: if set, this takes precedence (standard Go env var)
//   - MEMORY_LIMIT: container memory limit in bytes (e.g. from the
//     Kubernetes Downward API)
//   - MEMORY_RATIO: share of MEMORY_LIMIT for the Go heap (default: 0.85)
func ConfigureFromEnv() {
	if goMemLimit := os.Getenv("GOMEMLIMIT"); goMemLimit != "" {
		logging.Info("GOMEMLIMIT set via environment: %s", goMemLimit)
		return
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return
	}

	memLimit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil || memLimit <= 0 {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", memLimitStr, err)
		return
	}

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv("MEMORY_RATIO"); ratioStr != "" {
		parsed, err := strconv.ParseFloat(ratioStr, 64)
		if err == nil && parsed > 0 && parsed <= 1.0 {
			ratio = parsed
		} else {
			logging.Warn("Invalid MEMORY_RATIO %q, using default %.2f", ratioStr, DefaultMemoryRatio)
		}
	}

	goMemLimit := int64(float64(memLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		formatBytes(goMemLimit), ratio*100, formatBytes(memLimit))
}

// formatBytes formats bytes into a human-readable string
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
