package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"photo-librarian/internal/config"
	"photo-librarian/internal/exiftool"
	"photo-librarian/internal/extract"
	"photo-librarian/internal/filesystem"
	"photo-librarian/internal/hasher"
	"photo-librarian/internal/index"
	"photo-librarian/internal/logging"
	"photo-librarian/internal/mediakinds"
	"photo-librarian/internal/metrics"
	"photo-librarian/internal/orient"
)

// TimeSource resolves capture times for staged files.
type TimeSource interface {
	CaptureTime(ctx context.Context, path string, kind mediakinds.Kind) (extract.CaptureTime, error)
}

// Normalizer makes staged files display upright.
type Normalizer interface {
	Normalize(ctx context.Context, path string, kind mediakinds.Kind) (orient.Outcome, error)
}

// DateWriter embeds a capture time into a staged file's metadata.
type DateWriter interface {
	WriteDates(ctx context.Context, path, value string) error
}

// Transactor runs the per-file ingestion transaction: every file either ends
// fully in the library (bytes at the canonical path, row in the index) or
// leaves no trace beyond its untouched source.
type Transactor struct {
	lib    *config.Library
	idx    *index.Index
	times  TimeSource
	norm   Normalizer
	writer DateWriter
}

// New wires a Transactor with the real tool-backed pipeline stages.
func New(lib *config.Library, idx *index.Index, runner *exiftool.Runner) *Transactor {
	return &Transactor{
		lib:    lib,
		idx:    idx,
		times:  extract.New(runner),
		norm:   orient.New(runner),
		writer: runner,
	}
}

// NewWithStages wires a Transactor with explicit pipeline stages.
func NewWithStages(lib *config.Library, idx *index.Index, times TimeSource, norm Normalizer, writer DateWriter) *Transactor {
	return &Transactor{lib: lib, idx: idx, times: times, norm: norm, writer: writer}
}

// Ingest runs the full transaction for one source file. It never deletes or
// modifies the source; commit and rollback act only on staged artifacts and
// the index.
func (t *Transactor) Ingest(ctx context.Context, srcPath string) Outcome {
	start := time.Now()
	o := t.ingest(ctx, srcPath)
	metrics.IngestTransactionDuration.Observe(time.Since(start).Seconds())
	metrics.IngestFilesTotal.WithLabelValues(string(o.Status)).Inc()

	switch o.Status {
	case StatusImported:
		logging.Ingest("imported %s -> %s (%s)", o.SourcePath, o.LibraryPath, o.ContentHash)
	case StatusDuplicate:
		logging.Ingest("duplicate %s (%s, %s)", o.SourcePath, o.Reason, o.ContentHash)
	case StatusRejected:
		metrics.IngestRejectionsTotal.WithLabelValues(string(o.Reason)).Inc()
		logging.Ingest("rejected %s (%s): %s", o.SourcePath, o.Reason, o.Detail)
	}
	return o
}

func (t *Transactor) ingest(ctx context.Context, srcPath string) Outcome {
	o := Outcome{SourcePath: srcPath}
	ext := filepath.Ext(srcPath)

	if !mediakinds.IsMedia(ext) {
		o.Status = StatusRejected
		o.Reason = ReasonUnsupportedFormat
		o.Detail = fmt.Sprintf("extension %q is not a known media format", ext)
		return o
	}
	kind := mediakinds.ForExt(ext)

	info, err := filesystem.Stat(srcPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return t.reject(o, err)
	}

	// Pre-stage identity check, cache-assisted so rescans of large sources
	// stay cheap.
	srcHash, cached, err := t.idx.CachedHash(ctx, srcPath, info.ModTime().UnixNano(), info.Size())
	if err != nil {
		logging.Warn("Hash cache lookup failed for %s: %v", srcPath, err)
	}
	if !cached {
		srcHash, err = hasher.HashFile(ctx, srcPath)
		if err != nil {
			return t.reject(o, err)
		}
		if err := t.idx.StoreHash(ctx, srcPath, info.ModTime().UnixNano(), info.Size(), srcHash); err != nil {
			logging.Warn("Hash cache store failed for %s: %v", srcPath, err)
		}
	}
	o.ContentHash = srcHash

	exists, err := t.idx.HasHash(ctx, srcHash)
	if err != nil {
		return t.reject(o, err)
	}
	if exists {
		o.Status = StatusDuplicate
		o.Reason = ReasonDuplicatePreexisting
		return o
	}

	// Stage. From here on every failure path must remove the staged copy.
	staged := filepath.Join(t.lib.StagingDir, uuid.NewString()+strings.ToLower(ext))
	copyHash, written, err := hasher.CopyAndHash(ctx, srcPath, staged)
	if err != nil {
		return t.reject(o, err)
	}
	metrics.IngestBytesCopied.Add(float64(written))

	if copyHash != srcHash {
		t.rollback(staged)
		o.Status = StatusRejected
		o.Reason = ReasonCorrupted
		o.Detail = "file contents changed while being copied"
		return o
	}

	normed, err := t.norm.Normalize(ctx, staged, kind)
	if err != nil {
		t.rollback(staged)
		return t.reject(o, err)
	}
	bytesChanged := normed.Changed

	taken, err := t.times.CaptureTime(ctx, staged, kind)
	if err != nil {
		t.rollback(staged)
		return t.reject(o, err)
	}

	// Files without an embedded date get the resolved time written back, so
	// the stored copy is self-describing.
	if taken.Source == extract.SourceModTime && kind != mediakinds.KindOther {
		if err := t.writer.WriteDates(ctx, staged, taken.Canonical()); err != nil {
			t.rollback(staged)
			return t.reject(o, err)
		}
		bytesChanged = true
	}

	finalHash, size := srcHash, written
	if bytesChanged {
		finalHash, err = hasher.HashFile(ctx, staged)
		if err != nil {
			t.rollback(staged)
			return t.reject(o, err)
		}
		st, statErr := os.Stat(staged)
		if statErr != nil {
			t.rollback(staged)
			return t.reject(o, statErr)
		}
		size = st.Size()

		exists, err = t.idx.HasHash(ctx, finalHash)
		if err != nil {
			t.rollback(staged)
			return t.reject(o, err)
		}
		if exists {
			// Normalization converged these bytes onto a record we already
			// hold.
			t.rollback(staged)
			o.Status = StatusDuplicate
			o.Reason = ReasonDuplicatePostNormalization
			o.ContentHash = finalHash
			return o
		}
	}
	o.ContentHash = finalHash

	width, height, err := extract.Dimensions(staged)
	if err != nil {
		logging.Debug("Dimension read failed for %s: %v", staged, err)
		width, height = 0, 0
	}

	return t.commit(ctx, o, commitArgs{
		staged: staged,
		kind:   kind,
		taken:  taken,
		hash:   finalHash,
		size:   size,
		width:  width,
		height: height,
		ext:    ext,
	})
}

type commitArgs struct {
	staged string
	kind   mediakinds.Kind
	taken  extract.CaptureTime
	hash   string
	size   int64
	width  int
	height int
	ext    string
}

// commit inserts the index row and renames the staged copy into its
// canonical path. The insert is the transaction's commit point; the _N
// suffix loop absorbs name collisions between distinct content.
func (t *Transactor) commit(ctx context.Context, o Outcome, a commitArgs) Outcome {
	for n := 0; n < 100; n++ {
		rel := canonicalPath(a.taken.Time, a.hash, a.ext, n)
		abs := t.lib.Abs(rel)

		if _, err := os.Stat(abs); err == nil {
			continue
		}

		p := &index.Photo{
			OriginalFilename: filepath.Base(o.SourcePath),
			CurrentPath:      rel,
			DateTaken:        a.taken.Canonical(),
			DateSource:       string(a.taken.Source),
			ContentHash:      a.hash,
			FileSize:         a.size,
			FileType:         string(a.kind),
			Width:            a.width,
			Height:           a.height,
		}

		id, err := t.idx.InsertPhoto(ctx, p)
		if errors.Is(err, index.ErrIdentityConflict) {
			exists, hashErr := t.idx.HasHash(ctx, a.hash)
			if hashErr == nil && exists {
				// A concurrent transaction won the identity race.
				t.rollback(a.staged)
				o.Status = StatusDuplicate
				o.Reason = ReasonDuplicatePostNormalization
				return o
			}
			// Path collision with distinct content; try the next suffix.
			continue
		}
		if err != nil {
			t.rollback(a.staged)
			return t.reject(o, err)
		}

		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err == nil {
			err = os.Rename(a.staged, abs)
		} else {
			err = fmt.Errorf("failed to create %s: %w", filepath.Dir(abs), err)
		}
		if err != nil {
			// The one failure mode after the commit point: undo the row so
			// the index never references bytes that aren't there.
			if delErr := t.idx.DeletePhoto(ctx, id); delErr != nil {
				logging.Error("Failed to undo insert %d after rename failure: %v", id, delErr)
			}
			t.rollback(a.staged)
			return t.reject(o, err)
		}

		o.Status = StatusImported
		o.LibraryPath = rel
		o.PhotoID = id
		return o
	}

	t.rollback(a.staged)
	o.Status = StatusRejected
	o.Reason = ReasonUnsupportedFormat
	o.Detail = "exhausted canonical name suffixes"
	return o
}

// reject classifies err into the rejection taxonomy.
func (t *Transactor) reject(o Outcome, err error) Outcome {
	o.Status = StatusRejected
	o.Reason, o.Detail = classify(err)
	return o
}

// rollback removes a staged artifact. Sources and index rows are never
// touched here.
func (t *Transactor) rollback(staged string) {
	metrics.IngestRollbacksTotal.Inc()
	if err := os.Remove(staged); err != nil && !os.IsNotExist(err) {
		logging.Error("Failed to remove staged file %s: %v", staged, err)
	}
}
