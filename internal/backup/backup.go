package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"photo-librarian/internal/logging"
	"photo-librarian/internal/metrics"
)

const (
	snapshotPrefix = "photo_library_"
	snapshotExt    = ".db"
	timestampForm  = "20060102_150405"
)

// Source produces a consistent copy of the index at a destination path. The
// index itself implements this; snapshotting goes through the open database
// handle so writes still sitting in the WAL are included.
type Source interface {
	SnapshotTo(ctx context.Context, dst string) error
}

// Rotator snapshots the index database and keeps at most retention copies,
// pruning oldest first.
type Rotator struct {
	dir       string
	retention int
}

// New creates a Rotator writing into dir. retention must be positive.
func New(dir string, retention int) (*Rotator, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("backup retention must be positive, got %d", retention)
	}
	return &Rotator{dir: dir, retention: retention}, nil
}

// Snapshot writes a copy of src into the backup directory and prunes old
// snapshots past the retention limit. Returns the snapshot path. A snapshot
// failure is the caller's to handle; destructive operations must not proceed
// on a failed backup.
func (r *Rotator) Snapshot(ctx context.Context, src Source) (string, error) {
	dst, err := r.freshName()
	if err != nil {
		metrics.BackupSnapshotsTotal.WithLabelValues("failed").Inc()
		return "", err
	}

	if err := src.SnapshotTo(ctx, dst); err != nil {
		os.Remove(dst)
		metrics.BackupSnapshotsTotal.WithLabelValues("failed").Inc()
		return "", fmt.Errorf("failed to snapshot index: %w", err)
	}

	metrics.BackupSnapshotsTotal.WithLabelValues("created").Inc()
	logging.Info("Index snapshot written: %s", dst)

	if err := r.prune(); err != nil {
		// The snapshot itself succeeded; pruning trouble shouldn't block the
		// caller's destructive operation.
		logging.Warn("Snapshot pruning failed: %v", err)
	}
	return dst, nil
}

// freshName picks an unused snapshot path. Two snapshots in the same second
// get numeric suffixes.
func (r *Rotator) freshName() (string, error) {
	stamp := time.Now().Format(timestampForm)
	for n := 0; n < 100; n++ {
		name := snapshotPrefix + stamp + snapshotExt
		if n > 0 {
			name = fmt.Sprintf("%s%s_%d%s", snapshotPrefix, stamp, n, snapshotExt)
		}
		dst := filepath.Join(r.dir, name)
		if _, err := os.Stat(dst); os.IsNotExist(err) {
			return dst, nil
		}
	}
	return "", fmt.Errorf("no free snapshot name for stamp %s", stamp)
}

// List returns existing snapshot paths, oldest first.
func (r *Rotator) List() ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var snapshots []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotExt) {
			continue
		}
		snapshots = append(snapshots, filepath.Join(r.dir, name))
	}
	// Timestamped names sort chronologically.
	sort.Strings(snapshots)
	return snapshots, nil
}

func (r *Rotator) prune() error {
	snapshots, err := r.List()
	if err != nil {
		return err
	}
	for len(snapshots) > r.retention {
		victim := snapshots[0]
		if err := os.Remove(victim); err != nil {
			return fmt.Errorf("failed to prune snapshot %s: %w", victim, err)
		}
		metrics.BackupSnapshotsTotal.WithLabelValues("pruned").Inc()
		logging.Debug("Pruned snapshot %s", victim)
		snapshots = snapshots[1:]
	}
	return nil
}
