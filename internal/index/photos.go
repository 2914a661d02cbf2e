package index

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const photoColumns = `id, original_filename, current_path, date_taken, date_source,
	content_hash, file_size, file_type, width, height, rating, imported_at`

func scanPhoto(row interface{ Scan(...any) error }) (*Photo, error) {
	var p Photo
	var importedAt int64
	err := row.Scan(
		&p.ID, &p.OriginalFilename, &p.CurrentPath, &p.DateTaken, &p.DateSource,
		&p.ContentHash, &p.FileSize, &p.FileType, &p.Width, &p.Height, &p.Rating,
		&importedAt,
	)
	if err != nil {
		return nil, err
	}
	p.ImportedAt = time.Unix(importedAt, 0).UTC()
	return &p, nil
}

// InsertPhoto adds a record and returns its id. A content hash or path
// already present returns ErrIdentityConflict; this is the commit point of an
// ingestion transaction.
func (i *Index) InsertPhoto(ctx context.Context, p *Photo) (id int64, err error) {
	defer func(start time.Time) { track("insert_photo", start, err) }(time.Now())

	res, err := i.db.ExecContext(ctx, `
		INSERT INTO photos (original_filename, current_path, date_taken, date_source,
			content_hash, file_size, file_type, width, height, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.OriginalFilename, p.CurrentPath, p.DateTaken, p.DateSource,
		p.ContentHash, p.FileSize, p.FileType, p.Width, p.Height, p.Rating,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: hash %s", ErrIdentityConflict, p.ContentHash)
		}
		return 0, fmt.Errorf("failed to insert photo: %w", err)
	}

	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read inserted id: %w", err)
	}
	p.ID = id
	return id, nil
}

// GetByID returns the record with the given id, or ErrNotFound.
func (i *Index) GetByID(ctx context.Context, id int64) (p *Photo, err error) {
	defer func(start time.Time) { track("get_by_id", start, err) }(time.Now())

	p, err = scanPhoto(i.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query photo %d: %w", id, err)
	}
	return p, nil
}

// GetByHash returns the record with the given content hash, or ErrNotFound.
func (i *Index) GetByHash(ctx context.Context, hash string) (p *Photo, err error) {
	defer func(start time.Time) { track("get_by_hash", start, err) }(time.Now())

	p, err = scanPhoto(i.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE content_hash = ?`, hash))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query photo by hash: %w", err)
	}
	return p, nil
}

// GetByPath returns the record at the given library-relative path, or
// ErrNotFound.
func (i *Index) GetByPath(ctx context.Context, path string) (p *Photo, err error) {
	defer func(start time.Time) { track("get_by_path", start, err) }(time.Now())

	p, err = scanPhoto(i.db.QueryRowContext(ctx,
		`SELECT `+photoColumns+` FROM photos WHERE current_path = ?`, path))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query photo by path: %w", err)
	}
	return p, nil
}

// HasHash reports whether any record carries the given content hash. This is
// the cheap pre-check ingestion runs before staging a copy.
func (i *Index) HasHash(ctx context.Context, hash string) (exists bool, err error) {
	defer func(start time.Time) { track("has_hash", start, err) }(time.Now())

	err = i.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM photos WHERE content_hash = ?)`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check hash: %w", err)
	}
	return exists, nil
}

// UpdatePath moves a record to a new library-relative path. A path collision
// returns ErrIdentityConflict.
func (i *Index) UpdatePath(ctx context.Context, id int64, newPath string) (err error) {
	defer func(start time.Time) { track("update_path", start, err) }(time.Now())

	res, err := i.db.ExecContext(ctx,
		`UPDATE photos SET current_path = ? WHERE id = ?`, newPath, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: path %s", ErrIdentityConflict, newPath)
		}
		return fmt.Errorf("failed to update path for photo %d: %w", id, err)
	}
	return requireRow(res, id)
}

// UpdateRating sets the 0-5 star rating.
func (i *Index) UpdateRating(ctx context.Context, id int64, rating int) (err error) {
	defer func(start time.Time) { track("update_rating", start, err) }(time.Now())

	if rating < 0 || rating > 5 {
		return fmt.Errorf("rating %d out of range 0-5", rating)
	}
	res, err := i.db.ExecContext(ctx,
		`UPDATE photos SET rating = ? WHERE id = ?`, rating, id)
	if err != nil {
		return fmt.Errorf("failed to update rating for photo %d: %w", id, err)
	}
	return requireRow(res, id)
}

// UpdateContent refreshes hash, size, and dimensions after the stored bytes
// were rewritten (orientation bake, metadata write). A hash collision with
// another record returns ErrIdentityConflict: the rewrite converged on bytes
// the library already holds.
func (i *Index) UpdateContent(ctx context.Context, id int64, hash string, size int64, width, height int) (err error) {
	defer func(start time.Time) { track("update_content", start, err) }(time.Now())

	res, err := i.db.ExecContext(ctx,
		`UPDATE photos SET content_hash = ?, file_size = ?, width = ?, height = ? WHERE id = ?`,
		hash, size, width, height, id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: hash %s", ErrIdentityConflict, hash)
		}
		return fmt.Errorf("failed to update content for photo %d: %w", id, err)
	}
	return requireRow(res, id)
}

// DeletePhoto removes a record outright, bypassing trash. Ingestion uses it
// to undo an insert whose commit rename failed; user-facing deletes go
// through SoftDelete.
func (i *Index) DeletePhoto(ctx context.Context, id int64) (err error) {
	defer func(start time.Time) { track("delete_photo", start, err) }(time.Now())

	res, err := i.db.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete photo %d: %w", id, err)
	}
	return requireRow(res, id)
}

// List returns records matching opts, newest capture first.
func (i *Index) List(ctx context.Context, opts ListOptions) (photos []*Photo, err error) {
	defer func(start time.Time) { track("list", start, err) }(time.Now())

	var conds []string
	var args []any
	if opts.FileType != "" {
		conds = append(conds, "file_type = ?")
		args = append(args, opts.FileType)
	}
	if opts.DateFrom != "" {
		conds = append(conds, "date_taken >= ?")
		args = append(args, opts.DateFrom)
	}
	if opts.DateTo != "" {
		conds = append(conds, "date_taken <= ?")
		args = append(args, opts.DateTo)
	}

	query := `SELECT ` + photoColumns + ` FROM photos`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date_taken DESC, id DESC LIMIT ? OFFSET ?"

	limit := opts.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit, opts.Offset)

	rows, err := i.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list photos: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, scanErr := scanPhoto(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan photo: %w", scanErr)
		}
		photos = append(photos, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate photos: %w", err)
	}
	return photos, nil
}

// AllPaths returns every library-relative path in the index, keyed to record
// ids. Verification uses it to diff the index against the filesystem.
func (i *Index) AllPaths(ctx context.Context) (paths map[string]int64, err error) {
	defer func(start time.Time) { track("all_paths", start, err) }(time.Now())

	rows, err := i.db.QueryContext(ctx, `SELECT id, current_path FROM photos`)
	if err != nil {
		return nil, fmt.Errorf("failed to list paths: %w", err)
	}
	defer rows.Close()

	paths = make(map[string]int64)
	for rows.Next() {
		var id int64
		var path string
		if scanErr := rows.Scan(&id, &path); scanErr != nil {
			return nil, fmt.Errorf("failed to scan path: %w", scanErr)
		}
		paths[path] = id
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate paths: %w", err)
	}
	return paths, nil
}

// GetStats returns record counts and total stored bytes.
func (i *Index) GetStats(ctx context.Context) (stats *Stats, err error) {
	defer func(start time.Time) { track("stats", start, err) }(time.Now())

	stats = &Stats{}
	err = i.db.QueryRowContext(ctx, `
		SELECT
			COUNT(CASE WHEN file_type = 'photo' THEN 1 END),
			COUNT(CASE WHEN file_type = 'video' THEN 1 END),
			COUNT(CASE WHEN file_type NOT IN ('photo', 'video') THEN 1 END),
			COALESCE(SUM(file_size), 0)
		FROM photos
	`).Scan(&stats.Photos, &stats.Videos, &stats.Other, &stats.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to compute stats: %w", err)
	}

	err = i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM deleted_photos`).Scan(&stats.Trashed)
	if err != nil {
		return nil, fmt.Errorf("failed to count trash: %w", err)
	}
	return stats, nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("photo %d: %w", id, ErrNotFound)
	}
	return nil
}
