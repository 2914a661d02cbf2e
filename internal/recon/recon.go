package recon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"photo-librarian/internal/config"
	"photo-librarian/internal/hasher"
	"photo-librarian/internal/index"
	"photo-librarian/internal/ingest"
	"photo-librarian/internal/logging"
	"photo-librarian/internal/mediakinds"
	"photo-librarian/internal/memory"
	"photo-librarian/internal/metrics"
	"photo-librarian/internal/workers"
)

// ErrBatchRunning means a reconciliation batch is already in progress; only
// one runs at a time.
var ErrBatchRunning = errors.New("a reconciliation batch is already running")

// maxSweepPasses bounds the empty-directory domino sweep.
const maxSweepPasses = 10

// Scanner walks a source root and drives the ingestion transaction over
// every media file it finds, then consumes fully-ingested source subtrees.
type Scanner struct {
	lib *config.Library
	idx *index.Index
	tr  *ingest.Transactor
	mem *memory.Monitor

	mu     sync.Mutex
	active bool

	smu       sync.RWMutex
	summaries map[string]*ingest.BatchSummary
}

// New creates a Scanner.
func New(lib *config.Library, idx *index.Index, tr *ingest.Transactor) *Scanner {
	return &Scanner{
		lib:       lib,
		idx:       idx,
		tr:        tr,
		summaries: make(map[string]*ingest.BatchSummary),
	}
}

// SetMemoryMonitor installs a backpressure monitor; batch work pauses while
// the monitor reports critical memory usage. Optional.
func (s *Scanner) SetMemoryMonitor(m *memory.Monitor) {
	s.mem = m
}

// Running reports whether a batch is currently in progress.
func (s *Scanner) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// tryStart acquires the single-batch guard.
func (s *Scanner) tryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false
	}
	s.active = true
	return true
}

func (s *Scanner) finish() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// Summary returns a copy of the report for a finished or running batch. The
// copy is safe to read and marshal while the batch goroutine keeps counting.
func (s *Scanner) Summary(batchID string) (*ingest.BatchSummary, bool) {
	s.smu.RLock()
	defer s.smu.RUnlock()
	summary, ok := s.summaries[batchID]
	if !ok {
		return nil, false
	}
	snap := *summary
	snap.Rejections = append([]ingest.Rejection(nil), summary.Rejections...)
	return &snap, true
}

// Start enumerates sourceRoot and begins ingesting in the background. It
// returns the batch id and a channel of per-file progress events; the
// channel closes when the batch ends. Only one batch runs at a time.
func (s *Scanner) Start(ctx context.Context, sourceRoot string) (string, <-chan ingest.Progress, error) {
	if !s.tryStart() {
		return "", nil, ErrBatchRunning
	}

	info, err := os.Stat(sourceRoot)
	if err != nil || !info.IsDir() {
		s.finish()
		if err == nil {
			err = fmt.Errorf("%s is not a directory", sourceRoot)
		}
		return "", nil, fmt.Errorf("unusable source root: %w", err)
	}

	// Fresh enumeration per batch; never a cached listing.
	files, err := s.enumerate(sourceRoot)
	if err != nil {
		s.finish()
		return "", nil, fmt.Errorf("failed to enumerate %s: %w", sourceRoot, err)
	}

	batchID := uuid.NewString()
	summary := &ingest.BatchSummary{
		BatchID:    batchID,
		SourceRoot: sourceRoot,
		Started:    time.Now(),
		Total:      len(files),
	}
	s.smu.Lock()
	s.summaries[batchID] = summary
	s.smu.Unlock()

	events := make(chan ingest.Progress, 16)
	go s.run(ctx, sourceRoot, files, summary, events)
	return batchID, events, nil
}

// enumerate lists every media file under root. Hidden working directories
// are skipped, and when root is the library itself, canonical date subtrees
// are skipped entirely.
func (s *Scanner) enumerate(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			logging.Warn("Enumeration error at %s: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if isWorkingDir(d.Name()) {
				return filepath.SkipDir
			}
			if rel, relErr := filepath.Rel(s.lib.Root, path); relErr == nil && isCanonicalDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if mediakinds.IsMedia(filepath.Ext(path)) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func (s *Scanner) run(ctx context.Context, sourceRoot string, files []string, summary *ingest.BatchSummary, events chan<- ingest.Progress) {
	defer close(events)
	defer s.finish()

	metrics.ReconBatchesTotal.Inc()
	metrics.ReconIsRunning.Set(1)
	defer metrics.ReconIsRunning.Set(0)
	start := time.Now()
	defer func() { metrics.ReconLastRunDuration.Set(time.Since(start).Seconds()) }()

	logging.Info("Batch %s: %d media files under %s", summary.BatchID, len(files), sourceRoot)
	s.prewarmHashes(ctx, files)

	tally := newTally(sourceRoot, files)

	for _, path := range files {
		// Cancelable between files; the in-flight file always drains.
		if ctx.Err() != nil {
			logging.Warn("Batch %s canceled mid-run", summary.BatchID)
			break
		}
		if s.mem != nil && !s.mem.WaitIfPaused() {
			logging.Warn("Batch %s stopped by memory monitor shutdown", summary.BatchID)
			break
		}

		outcome := s.tr.Ingest(ctx, path)
		tally.record(path, outcome)

		// Concurrent report requests read the summary; mutate under the lock
		// and build the progress event from the same consistent view.
		s.smu.Lock()
		summary.Add(outcome)
		progress := ingest.Progress{
			BatchID:    summary.BatchID,
			Current:    path,
			Outcome:    outcome,
			Processed:  summary.Processed,
			Imported:   summary.Imported,
			Duplicates: summary.Duplicates,
			Rejected:   summary.Rejected,
			Total:      len(files),
		}
		s.smu.Unlock()

		events <- progress
	}

	s.consumeSources(sourceRoot, tally)
	sweepEmptyDirs(sourceRoot)

	s.smu.Lock()
	summary.Finished = time.Now()
	final := *summary
	s.smu.Unlock()
	logging.Ingest("batch %s finished: %d processed, %d imported, %d duplicates, %d rejected",
		final.BatchID, final.Processed, final.Imported, final.Duplicates, final.Rejected)
}

// prewarmHashes computes digests for upcoming files concurrently so the
// sequential ingest loop hits the hash cache instead of re-reading each file.
func (s *Scanner) prewarmHashes(ctx context.Context, files []string) {
	pool := workers.ForIO(8)
	sem := make(chan struct{}, pool)
	var wg sync.WaitGroup

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			if s.mem != nil && !s.mem.WaitIfPaused() {
				return
			}
			info, err := os.Stat(path)
			if err != nil {
				return
			}
			if _, ok, _ := s.idx.CachedHash(ctx, path, info.ModTime().UnixNano(), info.Size()); ok {
				return
			}
			hash, err := hasher.HashFile(ctx, path)
			if err != nil {
				return
			}
			if err := s.idx.StoreHash(ctx, path, info.ModTime().UnixNano(), info.Size(), hash); err != nil {
				logging.Debug("Prewarm cache store failed for %s: %v", path, err)
			}
		}(path)
	}
	wg.Wait()
}

// consumeSources removes fully-ingested sources. Imported and duplicate
// files are always removed; rejected sources always survive in place. A
// subtree is removed wholesale (hidden files and all) only when every one of
// its media files was consumed and none was rejected. Subtrees with no media
// are untouched.
func (s *Scanner) consumeSources(sourceRoot string, t *tally) {
	for subtree, counts := range t.bySubtree {
		if counts.media == 0 || counts.processed < counts.media {
			continue
		}

		if subtree == sourceRoot || counts.rejected > 0 {
			// Loose files under the root, or a subtree holding rejected
			// sources: remove only the consumed files, never the container.
			for _, path := range counts.consumed {
				if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
					logging.Warn("Failed to remove consumed source %s: %v", path, err)
				}
			}
			continue
		}

		if err := os.RemoveAll(subtree); err != nil {
			logging.Warn("Failed to remove consumed subtree %s: %v", subtree, err)
			continue
		}
		metrics.ReconSubtreesRemoved.Inc()
		logging.Ingest("consumed source subtree %s (%d files)", subtree, counts.media)
	}
}

// tally tracks per-subtree outcomes. A subtree is an immediate child
// directory of the source root; files directly under the root tally against
// the root itself.
type tally struct {
	sourceRoot string
	bySubtree  map[string]*subtreeCounts
}

type subtreeCounts struct {
	media     int
	processed int
	rejected  int
	consumed  []string
}

func newTally(sourceRoot string, files []string) *tally {
	t := &tally{sourceRoot: sourceRoot, bySubtree: make(map[string]*subtreeCounts)}
	for _, path := range files {
		counts := t.counts(path)
		counts.media++
	}
	return t
}

func (t *tally) counts(path string) *subtreeCounts {
	subtree := t.sourceRoot
	if rel, err := filepath.Rel(t.sourceRoot, path); err == nil {
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) > 1 {
			subtree = filepath.Join(t.sourceRoot, parts[0])
		}
	}
	counts, ok := t.bySubtree[subtree]
	if !ok {
		counts = &subtreeCounts{}
		t.bySubtree[subtree] = counts
	}
	return counts
}

func (t *tally) record(path string, o ingest.Outcome) {
	counts := t.counts(path)
	counts.processed++
	switch o.Status {
	case ingest.StatusRejected:
		counts.rejected++
	case ingest.StatusImported, ingest.StatusDuplicate:
		counts.consumed = append(counts.consumed, path)
	}
}

// isCanonicalDir reports whether a library-relative path has the canonical
// YYYY or YYYY/YYYY-MM-DD shape.
func isCanonicalDir(rel string) bool {
	parts := strings.Split(filepath.ToSlash(rel), "/")
	switch len(parts) {
	case 1:
		return isYear(parts[0])
	case 2:
		return isYear(parts[0]) && isDay(parts[1]) && strings.HasPrefix(parts[1], parts[0])
	}
	return false
}

func isYear(s string) bool {
	if len(s) != 4 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isDay(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

func isWorkingDir(name string) bool {
	return strings.HasPrefix(name, ".")
}
