package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"photo-librarian/internal/backup"
	"photo-librarian/internal/config"
	"photo-librarian/internal/health"
	"photo-librarian/internal/index"
)

const defaultTimeout = 30 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	lib, err := resolveLibrary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	ok := false
	switch command {
	case "check":
		ok = runCheck(ctx, lib)
	case "backup":
		ok = runBackup(ctx, lib)
	case "stats":
		ok = runStats(ctx, lib)
	case "verify":
		ok = runVerify(ctx, lib)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", command)
		printUsage()
	}
	if !ok {
		os.Exit(1)
	}
}

// resolveLibrary finds the active library from LIBRARY_ROOT or the saved
// state file, mirroring the server's resolution order.
func resolveLibrary() (*config.Library, error) {
	root := os.Getenv("LIBRARY_ROOT")
	if root == "" {
		statePath := os.Getenv("STATE_FILE")
		if statePath == "" {
			home, err := os.UserHomeDir()
			if err == nil {
				statePath = home + "/.photo-librarian.toml"
			} else {
				statePath = ".photo-librarian.toml"
			}
		}
		state, err := config.LoadState(statePath)
		if err == nil && state.LibraryRoot != "" {
			root = state.LibraryRoot
		}
	}
	if root == "" {
		return nil, fmt.Errorf("LIBRARY_ROOT is not set and no saved library state exists")
	}
	return config.NewLibrary(root)
}

func printUsage() {
	fmt.Println("Photo Librarian Index Maintenance")
	fmt.Println("")
	fmt.Println("Usage: libcheck <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  check   - Inspect the index file and print its health report")
	fmt.Println("  backup  - Take an index snapshot now")
	fmt.Println("  stats   - Print library record counts")
	fmt.Println("  verify  - Report index records whose files are missing on disk")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Println("  LIBRARY_ROOT - Library root directory (falls back to the saved state file)")
	fmt.Println("  STATE_FILE   - State file path (default: ~/.photo-librarian.toml)")
}

func runCheck(ctx context.Context, lib *config.Library) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	report, err := health.Check(ctx, lib.IndexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: health check failed: %v\n", err)
		return false
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	fmt.Println(string(out))
	// A missing index is created on open; an existing unusable file, or a
	// file that is not a library index at all, warrants a failing exit.
	switch report.Action {
	case health.ActionChooseDifferent:
		return false
	case health.ActionRebuild:
		return report.State == health.StateMissing
	}
	return true
}

func runBackup(ctx context.Context, lib *config.Library) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	retention := config.DefaultBackupRetention
	rotator, err := backup.New(lib.BackupDir, retention)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}

	// Snapshots go through an open handle so WAL contents are included.
	idx, err := index.Open(ctx, lib.IndexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open index: %v\n", err)
		return false
	}
	defer idx.Close()

	name, err := rotator.Snapshot(ctx, idx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: snapshot failed: %v\n", err)
		return false
	}
	fmt.Printf("Snapshot written: %s\n", name)
	return true
}

// verifyReport is the output of the verify command.
type verifyReport struct {
	Records int           `json:"records"`
	Missing []missingFile `json:"missing"`
}

type missingFile struct {
	ID   int64  `json:"id"`
	Path string `json:"path"`
}

// runVerify diffs the index against the filesystem: every record's file must
// exist at its canonical path. Exits non-zero when any file is gone.
func runVerify(ctx context.Context, lib *config.Library) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	idx, err := index.Open(ctx, lib.IndexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open index: %v\n", err)
		return false
	}
	defer idx.Close()

	paths, err := idx.AllPaths(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}

	report := verifyReport{Records: len(paths), Missing: []missingFile{}}
	for rel, id := range paths {
		if _, err := os.Stat(lib.Abs(rel)); os.IsNotExist(err) {
			report.Missing = append(report.Missing, missingFile{ID: id, Path: rel})
		}
	}
	sort.Slice(report.Missing, func(i, j int) bool {
		return report.Missing[i].Path < report.Missing[j].Path
	})

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	fmt.Println(string(out))
	return len(report.Missing) == 0
}

func runStats(ctx context.Context, lib *config.Library) bool {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	idx, err := index.Open(ctx, lib.IndexPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to open index: %v\n", err)
		return false
	}
	defer idx.Close()

	stats, err := idx.GetStats(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}

	out, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	fmt.Println(string(out))
	return true
}
