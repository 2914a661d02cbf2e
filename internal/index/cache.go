package index

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"photo-librarian/internal/metrics"
)

// CachedHash looks up a memoized digest for the (path, mtime, size) identity.
// Any change to the file invalidates the key naturally, since mtime or size
// will differ.
func (i *Index) CachedHash(ctx context.Context, path string, mtimeNs, size int64) (hash string, ok bool, err error) {
	defer func(start time.Time) { track("cached_hash", start, err) }(time.Now())

	err = i.db.QueryRowContext(ctx, `
		SELECT content_hash FROM hash_cache
		WHERE file_path = ? AND mtime_ns = ? AND file_size = ?`,
		path, mtimeNs, size).Scan(&hash)
	if err == sql.ErrNoRows {
		metrics.HashCacheLookups.WithLabelValues("miss").Inc()
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query hash cache: %w", err)
	}
	metrics.HashCacheLookups.WithLabelValues("hit").Inc()
	return hash, true, nil
}

// StoreHash memoizes a digest for the (path, mtime, size) identity, replacing
// any stale entry for the same path.
func (i *Index) StoreHash(ctx context.Context, path string, mtimeNs, size int64, hash string) (err error) {
	defer func(start time.Time) { track("store_hash", start, err) }(time.Now())

	// One entry per path: a changed file's old identities are useless.
	_, err = i.db.ExecContext(ctx, `DELETE FROM hash_cache WHERE file_path = ?`, path)
	if err != nil {
		return fmt.Errorf("failed to clear stale cache entries: %w", err)
	}
	_, err = i.db.ExecContext(ctx, `
		INSERT INTO hash_cache (file_path, mtime_ns, file_size, content_hash)
		VALUES (?, ?, ?, ?)`,
		path, mtimeNs, size, hash)
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}
	return nil
}

// PruneHashCache drops entries older than maxAge and returns how many were
// removed.
func (i *Index) PruneHashCache(ctx context.Context, maxAge time.Duration) (pruned int64, err error) {
	defer func(start time.Time) { track("prune_hash_cache", start, err) }(time.Now())

	cutoff := time.Now().Add(-maxAge).Unix()
	res, err := i.db.ExecContext(ctx, `DELETE FROM hash_cache WHERE cached_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune hash cache: %w", err)
	}
	pruned, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read pruned count: %w", err)
	}
	return pruned, nil
}
