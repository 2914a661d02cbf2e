package health

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photo-librarian/internal/logging"
)

// State classifies the condition of an index database file.
type State string

const (
	// StateHealthy means the file opens, passes integrity check, and carries
	// exactly the expected schema.
	StateHealthy State = "healthy"
	// StateMissing means no file exists at the path.
	StateMissing State = "missing"
	// StateCorrupted means the file exists but is not a usable index.
	StateCorrupted State = "corrupted"
	// StateDrift means the schema differs from the expected column set.
	StateDrift State = "drift"
)

// Action is the recommended response to a report.
type Action string

const (
	// ActionProceed means the index is usable as-is.
	ActionProceed Action = "proceed"
	// ActionMigrate means opening the index will bring the schema up to date.
	ActionMigrate Action = "migrate"
	// ActionRebuild means the index must be recreated; records in the old
	// file are not recoverable by this service.
	ActionRebuild Action = "rebuild"
	// ActionChooseDifferent means the file is not a library index at all.
	// Rebuilding would clobber someone else's data; the operator should
	// point the service at a different library or remove the file.
	ActionChooseDifferent Action = "choose-different"
)

// Report is the result of checking one index file.
type Report struct {
	Path           string   `json:"path"`
	State          State    `json:"state"`
	Action         Action   `json:"action"`
	MissingColumns []string `json:"missingColumns,omitempty"`
	ExtraColumns   []string `json:"extraColumns,omitempty"`
	Detail         string   `json:"detail,omitempty"`
}

// expectedColumns is the full photos schema. The open-time migrations can
// add any of them to an older index.
var expectedColumns = []string{
	"id", "original_filename", "current_path", "date_taken", "date_source",
	"content_hash", "file_size", "file_type", "width", "height", "rating",
	"imported_at",
}

// Check inspects the index file at path without modifying it.
func Check(ctx context.Context, path string) (*Report, error) {
	report := &Report{Path: path}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			report.State = StateMissing
			report.Action = ActionRebuild
			report.Detail = "no index file; a new one will be created"
			return report, nil
		}
		return nil, fmt.Errorf("failed to stat index: %w", err)
	}

	// mode=ro keeps the check side-effect free: no WAL files, no schema
	// creation against a foreign database.
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open index for checking: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logging.Warn("failed to close health check connection: %v", closeErr)
		}
	}()

	var integrity string
	if err := db.QueryRowContext(ctx, `PRAGMA integrity_check`).Scan(&integrity); err != nil {
		// Not readable as sqlite at all; this is some other kind of file.
		report.State = StateCorrupted
		report.Action = ActionChooseDifferent
		report.Detail = fmt.Sprintf("integrity check failed to run: %v", err)
		return report, nil
	}
	if integrity != "ok" {
		report.State = StateCorrupted
		report.Action = ActionRebuild
		report.Detail = "integrity check reported: " + integrity
		return report, nil
	}

	columns, err := tableColumns(ctx, db, "photos")
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		// A valid sqlite database that was never a library index.
		report.State = StateCorrupted
		report.Action = ActionChooseDifferent
		report.Detail = "photos table is absent; not a library index"
		return report, nil
	}

	expected := make(map[string]bool, len(expectedColumns))
	for _, c := range expectedColumns {
		expected[c] = true
	}
	for _, c := range expectedColumns {
		if !columns[c] {
			report.MissingColumns = append(report.MissingColumns, c)
		}
	}
	for c := range columns {
		if !expected[c] {
			report.ExtraColumns = append(report.ExtraColumns, c)
		}
	}

	if len(report.MissingColumns) == 0 && len(report.ExtraColumns) == 0 {
		report.State = StateHealthy
		report.Action = ActionProceed
		return report, nil
	}

	report.State = StateDrift
	report.Action = driftAction(report.MissingColumns)
	return report, nil
}

// driftAction decides what drift means. Every missing expected column is
// addable by the open-time migrations, so missing columns always mean
// migrate. Extra columns alone never block use: an index written by a newer
// build still has everything this one reads.
func driftAction(missing []string) Action {
	if len(missing) == 0 {
		return ActionProceed
	}
	return ActionMigrate
}

func tableColumns(ctx context.Context, db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s schema: %w", table, err)
	}
	defer rows.Close()

	columns := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s schema: %w", table, err)
	}
	return columns, nil
}
