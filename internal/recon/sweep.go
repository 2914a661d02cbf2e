package recon

import (
	"os"
	"path/filepath"
	"sort"

	"photo-librarian/internal/logging"
)

// sweepEmptyDirs removes empty directories under root, bottom-up. Removing a
// directory can empty its parent, so the sweep repeats until a pass removes
// nothing, bounded by maxSweepPasses. The root itself and hidden working
// directories are never removed.
func sweepEmptyDirs(root string) {
	for pass := 0; pass < maxSweepPasses; pass++ {
		var empty []string
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil || !d.IsDir() || path == root {
				return nil
			}
			if isWorkingDir(d.Name()) {
				return filepath.SkipDir
			}
			entries, readErr := os.ReadDir(path)
			if readErr == nil && len(entries) == 0 {
				empty = append(empty, path)
			}
			return nil
		})
		if err != nil {
			logging.Warn("Empty-directory sweep failed: %v", err)
			return
		}
		if len(empty) == 0 {
			return
		}

		// Deepest first, so nested empties fall within one pass.
		sort.Slice(empty, func(i, j int) bool { return len(empty[i]) > len(empty[j]) })
		for _, dir := range empty {
			if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
				logging.Debug("Failed to remove empty directory %s: %v", dir, err)
			}
		}
	}
}
