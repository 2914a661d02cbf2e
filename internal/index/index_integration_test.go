package index

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(context.Background(), filepath.Join(t.TempDir(), "photo_library.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		if err := idx.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})
	return idx
}

func testPhoto(hash, path string) *Photo {
	return &Photo{
		OriginalFilename: "IMG_1234.JPG",
		CurrentPath:      path,
		DateTaken:        "2024:03:15 14:30:00",
		DateSource:       "exif",
		ContentHash:      hash,
		FileSize:         2048,
		FileType:         "photo",
		Width:            4032,
		Height:           3024,
	}
}

// TestInsertAndGet tests the basic insert/lookup round trip.
func TestInsertAndGet(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	p := testPhoto("aaaa1111", "2024/2024-03-15/img_20240315_aaaa1111.jpg")
	id, err := idx.InsertPhoto(ctx, p)
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}
	if id == 0 {
		t.Fatal("InsertPhoto returned id 0")
	}

	byID, err := idx.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byID.ContentHash != p.ContentHash || byID.CurrentPath != p.CurrentPath {
		t.Errorf("GetByID = %+v", byID)
	}
	if byID.ImportedAt.IsZero() {
		t.Error("ImportedAt not set")
	}

	byHash, err := idx.GetByHash(ctx, p.ContentHash)
	if err != nil {
		t.Fatalf("GetByHash: %v", err)
	}
	if byHash.ID != id {
		t.Errorf("GetByHash.ID = %d, want %d", byHash.ID, id)
	}

	byPath, err := idx.GetByPath(ctx, p.CurrentPath)
	if err != nil {
		t.Fatalf("GetByPath: %v", err)
	}
	if byPath.ID != id {
		t.Errorf("GetByPath.ID = %d, want %d", byPath.ID, id)
	}
}

// TestInsertDuplicateHash tests that a duplicate content hash surfaces the
// identity conflict sentinel.
func TestInsertDuplicateHash(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	if _, err := idx.InsertPhoto(ctx, testPhoto("bbbb2222", "2024/2024-03-15/a.jpg")); err != nil {
		t.Fatalf("first InsertPhoto: %v", err)
	}

	_, err := idx.InsertPhoto(ctx, testPhoto("bbbb2222", "2024/2024-03-15/b.jpg"))
	if !errors.Is(err, ErrIdentityConflict) {
		t.Errorf("duplicate hash err = %v, want ErrIdentityConflict", err)
	}
}

// TestInsertDuplicatePath tests the conflict sentinel for path collisions.
func TestInsertDuplicatePath(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	if _, err := idx.InsertPhoto(ctx, testPhoto("cccc3333", "2024/2024-03-15/same.jpg")); err != nil {
		t.Fatalf("first InsertPhoto: %v", err)
	}

	_, err := idx.InsertPhoto(ctx, testPhoto("dddd4444", "2024/2024-03-15/same.jpg"))
	if !errors.Is(err, ErrIdentityConflict) {
		t.Errorf("duplicate path err = %v, want ErrIdentityConflict", err)
	}
}

// TestGetMissing tests the not-found sentinel on every lookup.
func TestGetMissing(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	if _, err := idx.GetByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID err = %v, want ErrNotFound", err)
	}
	if _, err := idx.GetByHash(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByHash err = %v, want ErrNotFound", err)
	}
	if _, err := idx.GetByPath(ctx, "nope.jpg"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByPath err = %v, want ErrNotFound", err)
	}
}

// TestHasHash tests the cheap pre-stage duplicate check.
func TestHasHash(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	if _, err := idx.InsertPhoto(ctx, testPhoto("eeee5555", "2024/2024-03-15/e.jpg")); err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}

	exists, err := idx.HasHash(ctx, "eeee5555")
	if err != nil {
		t.Fatalf("HasHash: %v", err)
	}
	if !exists {
		t.Error("HasHash = false for present hash")
	}

	exists, err = idx.HasHash(ctx, "absent")
	if err != nil {
		t.Fatalf("HasHash: %v", err)
	}
	if exists {
		t.Error("HasHash = true for absent hash")
	}
}

// TestUpdateContentConflict tests that a rewrite converging on existing bytes
// is reported as an identity conflict.
func TestUpdateContentConflict(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	if _, err := idx.InsertPhoto(ctx, testPhoto("ffff6666", "2024/2024-03-15/f.jpg")); err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}
	id, err := idx.InsertPhoto(ctx, testPhoto("0000aaaa", "2024/2024-03-15/g.jpg"))
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}

	err = idx.UpdateContent(ctx, id, "ffff6666", 1024, 100, 100)
	if !errors.Is(err, ErrIdentityConflict) {
		t.Errorf("UpdateContent err = %v, want ErrIdentityConflict", err)
	}
}

// TestListFilters tests type and date filtering with ordering.
func TestListFilters(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	seed := []*Photo{
		testPhoto("1111aaaa", "2024/2024-01-01/a.jpg"),
		testPhoto("2222bbbb", "2024/2024-06-01/b.jpg"),
		testPhoto("3333cccc", "2024/2024-12-01/c.mp4"),
	}
	seed[0].DateTaken = "2024:01:01 08:00:00"
	seed[1].DateTaken = "2024:06:01 08:00:00"
	seed[2].DateTaken = "2024:12:01 08:00:00"
	seed[2].FileType = "video"
	for _, p := range seed {
		if _, err := idx.InsertPhoto(ctx, p); err != nil {
			t.Fatalf("InsertPhoto: %v", err)
		}
	}

	all, err := idx.List(ctx, ListOptions{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List returned %d records, want 3", len(all))
	}
	if all[0].ContentHash != "3333cccc" {
		t.Errorf("List[0] = %s, want newest first", all[0].ContentHash)
	}

	videos, err := idx.List(ctx, ListOptions{FileType: "video"})
	if err != nil {
		t.Fatalf("List videos: %v", err)
	}
	if len(videos) != 1 || videos[0].FileType != "video" {
		t.Errorf("List videos = %+v", videos)
	}

	ranged, err := idx.List(ctx, ListOptions{
		DateFrom: "2024:03:01 00:00:00",
		DateTo:   "2024:09:01 00:00:00",
	})
	if err != nil {
		t.Fatalf("List ranged: %v", err)
	}
	if len(ranged) != 1 || ranged[0].ContentHash != "2222bbbb" {
		t.Errorf("List ranged = %+v", ranged)
	}
}

// TestSoftDeleteAndRestore tests the full trash round trip.
func TestSoftDeleteAndRestore(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	p := testPhoto("4444dddd", "2024/2024-03-15/d.jpg")
	p.Rating = 4
	id, err := idx.InsertPhoto(ctx, p)
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}

	trashID, err := idx.SoftDelete(ctx, id, "4444dddd_d.jpg")
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	if _, err := idx.GetByID(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("photo still present after soft delete: %v", err)
	}

	trash, err := idx.ListTrash(ctx)
	if err != nil {
		t.Fatalf("ListTrash: %v", err)
	}
	if len(trash) != 1 || trash[0].Snapshot.Rating != 4 {
		t.Fatalf("ListTrash = %+v", trash)
	}

	restored, err := idx.Restore(ctx, trashID, p.CurrentPath)
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if restored.ContentHash != "4444dddd" || restored.Rating != 4 {
		t.Errorf("restored = %+v", restored)
	}

	trash, err = idx.ListTrash(ctx)
	if err != nil {
		t.Fatalf("ListTrash after restore: %v", err)
	}
	if len(trash) != 0 {
		t.Errorf("trash not emptied after restore: %+v", trash)
	}
}

// TestRestoreConflictKeepsTrashRow tests that a blocked restore leaves the
// trash row intact.
func TestRestoreConflictKeepsTrashRow(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	id, err := idx.InsertPhoto(ctx, testPhoto("5555eeee", "2024/2024-03-15/e.jpg"))
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}
	trashID, err := idx.SoftDelete(ctx, id, "5555eeee_e.jpg")
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	// Same bytes arrive again while the original sits in trash.
	if _, err := idx.InsertPhoto(ctx, testPhoto("5555eeee", "2024/2024-03-15/e2.jpg")); err != nil {
		t.Fatalf("re-InsertPhoto: %v", err)
	}

	if _, err := idx.Restore(ctx, trashID, "2024/2024-03-15/e.jpg"); !errors.Is(err, ErrIdentityConflict) {
		t.Fatalf("Restore err = %v, want ErrIdentityConflict", err)
	}
	if _, err := idx.GetTrash(ctx, trashID); err != nil {
		t.Errorf("trash row gone after failed restore: %v", err)
	}
}

// TestPurge tests permanent removal from trash.
func TestPurge(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	id, err := idx.InsertPhoto(ctx, testPhoto("6666ffff", "2024/2024-03-15/p.jpg"))
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}
	trashID, err := idx.SoftDelete(ctx, id, "6666ffff_p.jpg")
	if err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	if err := idx.Purge(ctx, trashID); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if _, err := idx.GetTrash(ctx, trashID); !errors.Is(err, ErrNotFound) {
		t.Errorf("trash row still present after purge: %v", err)
	}
	if err := idx.Purge(ctx, trashID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double purge err = %v, want ErrNotFound", err)
	}
}

// TestHashCache tests memoization hit, miss, and invalidation.
func TestHashCache(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	if _, ok, err := idx.CachedHash(ctx, "/in/a.jpg", 100, 2048); err != nil || ok {
		t.Fatalf("CachedHash on empty cache = ok=%v err=%v", ok, err)
	}

	if err := idx.StoreHash(ctx, "/in/a.jpg", 100, 2048, "aaaa1111"); err != nil {
		t.Fatalf("StoreHash: %v", err)
	}

	hash, ok, err := idx.CachedHash(ctx, "/in/a.jpg", 100, 2048)
	if err != nil {
		t.Fatalf("CachedHash: %v", err)
	}
	if !ok || hash != "aaaa1111" {
		t.Errorf("CachedHash = %q ok=%v", hash, ok)
	}

	// Changed mtime misses.
	if _, ok, err := idx.CachedHash(ctx, "/in/a.jpg", 200, 2048); err != nil || ok {
		t.Errorf("CachedHash with new mtime = ok=%v err=%v, want miss", ok, err)
	}

	// Storing under the new identity replaces the stale entry.
	if err := idx.StoreHash(ctx, "/in/a.jpg", 200, 4096, "bbbb2222"); err != nil {
		t.Fatalf("StoreHash replace: %v", err)
	}
	if _, ok, _ := idx.CachedHash(ctx, "/in/a.jpg", 100, 2048); ok {
		t.Error("stale cache entry survived replacement")
	}
}

// TestPruneHashCache tests age-based cache eviction.
func TestPruneHashCache(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	if err := idx.StoreHash(ctx, "/in/old.jpg", 1, 1, "old11111"); err != nil {
		t.Fatalf("StoreHash: %v", err)
	}

	// Entries just written are newer than any positive cutoff.
	pruned, err := idx.PruneHashCache(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PruneHashCache: %v", err)
	}
	if pruned != 0 {
		t.Errorf("pruned = %d, want 0", pruned)
	}

	// A negative age puts the cutoff in the future and evicts everything.
	pruned, err = idx.PruneHashCache(ctx, -time.Hour)
	if err != nil {
		t.Fatalf("PruneHashCache: %v", err)
	}
	if pruned != 1 {
		t.Errorf("pruned = %d, want 1", pruned)
	}
}

// TestGetStats tests counts and byte totals.
func TestGetStats(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	video := testPhoto("7777aaaa", "2024/2024-03-15/v.mp4")
	video.FileType = "video"
	video.FileSize = 1 << 20
	for _, p := range []*Photo{testPhoto("8888bbbb", "2024/2024-03-15/s.jpg"), video} {
		if _, err := idx.InsertPhoto(ctx, p); err != nil {
			t.Fatalf("InsertPhoto: %v", err)
		}
	}

	stats, err := idx.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Photos != 1 || stats.Videos != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if want := int64(2048 + 1<<20); stats.TotalBytes != want {
		t.Errorf("TotalBytes = %d, want %d", stats.TotalBytes, want)
	}
}

// TestAllPaths tests the reconciliation path listing.
func TestAllPaths(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	id, err := idx.InsertPhoto(ctx, testPhoto("9999cccc", "2024/2024-03-15/x.jpg"))
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}

	paths, err := idx.AllPaths(ctx)
	if err != nil {
		t.Fatalf("AllPaths: %v", err)
	}
	if paths["2024/2024-03-15/x.jpg"] != id {
		t.Errorf("AllPaths = %+v", paths)
	}
}

// TestSnapshotToIncludesOpenWrites tests that a snapshot taken through the
// live handle carries rows that may still sit in the WAL, which a raw file
// copy of the database file would miss.
func TestSnapshotToIncludesOpenWrites(t *testing.T) {
	t.Parallel()

	idx := openTestIndex(t)
	ctx := context.Background()

	id, err := idx.InsertPhoto(ctx, testPhoto("feed0001", "2024/2024-03-15/w.jpg"))
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}

	snap := filepath.Join(t.TempDir(), "snapshot.db")
	if err := idx.SnapshotTo(ctx, snap); err != nil {
		t.Fatalf("SnapshotTo: %v", err)
	}

	// The copy must stand alone while the source stays open.
	restored, err := Open(ctx, snap)
	if err != nil {
		t.Fatalf("Open snapshot: %v", err)
	}
	defer restored.Close()

	p, err := restored.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID on snapshot: %v", err)
	}
	if p.ContentHash != "feed0001" {
		t.Errorf("snapshot record = %+v", p)
	}

	// An occupied destination is an error, never an overwrite.
	if err := idx.SnapshotTo(ctx, snap); err == nil {
		t.Error("SnapshotTo over existing file succeeded")
	}
}

// TestOpenMigratesSparseSchema tests that opening an index missing most of
// the photos columns adds all of them, backfills placeholder identities for
// existing rows, and enforces hash uniqueness afterwards.
func TestOpenMigratesSparseSchema(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "sparse.db")
	ctx := context.Background()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	stmts := []string{
		`CREATE TABLE photos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			original_filename TEXT NOT NULL,
			current_path TEXT NOT NULL UNIQUE,
			date_taken TEXT,
			file_type TEXT NOT NULL
		)`,
		`INSERT INTO photos (original_filename, current_path, date_taken, file_type)
			VALUES ('OLD.JPG', '2020/2020-01-01/old.jpg', '2020:01:01 10:00:00', 'photo')`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close seed db: %v", err)
	}

	idx, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer idx.Close()

	legacy, err := idx.GetByPath(ctx, "2020/2020-01-01/old.jpg")
	if err != nil {
		t.Fatalf("GetByPath on legacy row: %v", err)
	}
	if legacy.ContentHash != "unhashed-1" || legacy.DateSource != "exif" {
		t.Errorf("legacy row after migration = %+v", legacy)
	}

	if _, err := idx.InsertPhoto(ctx, testPhoto("cafe0002", "2024/2024-03-15/n.jpg")); err != nil {
		t.Fatalf("InsertPhoto after migration: %v", err)
	}
	_, err = idx.InsertPhoto(ctx, testPhoto("cafe0002", "2024/2024-03-15/n2.jpg"))
	if !errors.Is(err, ErrIdentityConflict) {
		t.Errorf("duplicate hash after migration err = %v, want ErrIdentityConflict", err)
	}
}

// TestMigrationsIdempotent tests that reopening an existing index re-runs
// schema setup without error or data loss.
func TestMigrationsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "photo_library.db")
	ctx := context.Background()

	idx, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, err := idx.InsertPhoto(ctx, testPhoto("abcd9876", "2024/2024-03-15/m.jpg"))
	if err != nil {
		t.Fatalf("InsertPhoto: %v", err)
	}
	if err := idx.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	p, err := reopened.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID after reopen: %v", err)
	}
	if p.ContentHash != "abcd9876" {
		t.Errorf("record lost across reopen: %+v", p)
	}
}
