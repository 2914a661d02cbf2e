package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SoftDelete moves a record into the trash table, storing its full JSON
// snapshot so a later restore rebuilds the row exactly. trashFilename is the
// name the file was parked under in the trash directory. Returns the trash
// row id.
func (i *Index) SoftDelete(ctx context.Context, id int64, trashFilename string) (trashID int64, err error) {
	defer func(start time.Time) { track("soft_delete", start, err) }(time.Now())

	p, err := i.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}

	snapshot, err := json.Marshal(p)
	if err != nil {
		return 0, fmt.Errorf("failed to encode snapshot for photo %d: %w", id, err)
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin delete transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO deleted_photos (original_path, trash_filename, photo_data)
		VALUES (?, ?, ?)`,
		p.CurrentPath, trashFilename, string(snapshot))
	if err != nil {
		return 0, rollback(tx, fmt.Errorf("failed to insert trash row: %w", err))
	}
	trashID, err = res.LastInsertId()
	if err != nil {
		return 0, rollback(tx, fmt.Errorf("failed to read trash row id: %w", err))
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM photos WHERE id = ?`, id); err != nil {
		return 0, rollback(tx, fmt.Errorf("failed to delete photo %d: %w", id, err))
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return trashID, nil
}

// GetTrash returns the trash row with the given id, or ErrNotFound.
func (i *Index) GetTrash(ctx context.Context, trashID int64) (d *DeletedPhoto, err error) {
	defer func(start time.Time) { track("get_trash", start, err) }(time.Now())

	d = &DeletedPhoto{}
	var deletedAt int64
	var snapshot string
	err = i.db.QueryRowContext(ctx, `
		SELECT id, original_path, trash_filename, deleted_at, photo_data
		FROM deleted_photos WHERE id = ?`, trashID).
		Scan(&d.ID, &d.OriginalPath, &d.TrashFilename, &deletedAt, &snapshot)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trash row %d: %w", trashID, err)
	}

	d.DeletedAt = time.Unix(deletedAt, 0).UTC()
	if err = json.Unmarshal([]byte(snapshot), &d.Snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for trash row %d: %w", trashID, err)
	}
	return d, nil
}

// ListTrash returns all trash rows, most recently deleted first.
func (i *Index) ListTrash(ctx context.Context) (deleted []*DeletedPhoto, err error) {
	defer func(start time.Time) { track("list_trash", start, err) }(time.Now())

	rows, err := i.db.QueryContext(ctx, `
		SELECT id, original_path, trash_filename, deleted_at, photo_data
		FROM deleted_photos ORDER BY deleted_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list trash: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		d := &DeletedPhoto{}
		var deletedAt int64
		var snapshot string
		if scanErr := rows.Scan(&d.ID, &d.OriginalPath, &d.TrashFilename, &deletedAt, &snapshot); scanErr != nil {
			return nil, fmt.Errorf("failed to scan trash row: %w", scanErr)
		}
		d.DeletedAt = time.Unix(deletedAt, 0).UTC()
		if jsonErr := json.Unmarshal([]byte(snapshot), &d.Snapshot); jsonErr != nil {
			return nil, fmt.Errorf("failed to decode snapshot for trash row %d: %w", d.ID, jsonErr)
		}
		deleted = append(deleted, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trash: %w", err)
	}
	return deleted, nil
}

// Restore moves a trash row back into photos at restoredPath. If another
// record took the identity in the meantime, returns ErrIdentityConflict and
// leaves the trash row in place.
func (i *Index) Restore(ctx context.Context, trashID int64, restoredPath string) (p *Photo, err error) {
	defer func(start time.Time) { track("restore", start, err) }(time.Now())

	d, err := i.GetTrash(ctx, trashID)
	if err != nil {
		return nil, err
	}

	tx, err := i.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin restore transaction: %w", err)
	}

	restored := d.Snapshot
	restored.CurrentPath = restoredPath
	res, err := tx.ExecContext(ctx, `
		INSERT INTO photos (original_filename, current_path, date_taken, date_source,
			content_hash, file_size, file_type, width, height, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		restored.OriginalFilename, restored.CurrentPath, restored.DateTaken, restored.DateSource,
		restored.ContentHash, restored.FileSize, restored.FileType, restored.Width,
		restored.Height, restored.Rating,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, rollback(tx, fmt.Errorf("%w: cannot restore trash row %d", ErrIdentityConflict, trashID))
		}
		return nil, rollback(tx, fmt.Errorf("failed to restore trash row %d: %w", trashID, err))
	}

	restored.ID, err = res.LastInsertId()
	if err != nil {
		return nil, rollback(tx, fmt.Errorf("failed to read restored id: %w", err))
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM deleted_photos WHERE id = ?`, trashID); err != nil {
		return nil, rollback(tx, fmt.Errorf("failed to remove trash row %d: %w", trashID, err))
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit restore: %w", err)
	}
	return &restored, nil
}

// Purge permanently removes a trash row. The caller deletes the parked file.
func (i *Index) Purge(ctx context.Context, trashID int64) (err error) {
	defer func(start time.Time) { track("purge", start, err) }(time.Now())

	res, err := i.db.ExecContext(ctx, `DELETE FROM deleted_photos WHERE id = ?`, trashID)
	if err != nil {
		return fmt.Errorf("failed to purge trash row %d: %w", trashID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("trash row %d: %w", trashID, ErrNotFound)
	}
	return nil
}

func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil {
		return errors.Join(err, fmt.Errorf("rollback also failed: %w", rbErr))
	}
	return err
}
