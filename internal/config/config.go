package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"photo-librarian/internal/logging"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultPort            = "8080"
	DefaultMetricsPort     = "9090"
	DefaultBackupRetention = 20
	DefaultToolTimeout     = 30 * time.Second
)

// Library describes one photo library on disk. All components receive a
// *Library explicitly; there is no package-level current library.
type Library struct {
	// Root is the absolute path of the canonical library tree
	// (<Root>/YYYY/YYYY-MM-DD/<basename>).
	Root string

	// IndexPath is the SQLite index file.
	IndexPath string

	// StagingDir holds in-flight ingestion copies until commit.
	StagingDir string

	// TrashDir quarantines soft-deleted files until purge or restore.
	TrashDir string

	// BackupDir holds index snapshots.
	BackupDir string
}

// NewLibrary derives a Library from a root directory. The dot-directories are
// siblings of the canonical tree so a reconciliation walk can skip them by
// the hidden-name rule alone.
func NewLibrary(root string) (*Library, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve library root: %w", err)
	}

	return &Library{
		Root:       abs,
		IndexPath:  filepath.Join(abs, ".index", "photo_library.db"),
		StagingDir: filepath.Join(abs, ".staging"),
		TrashDir:   filepath.Join(abs, ".trash"),
		BackupDir:  filepath.Join(abs, ".backups"),
	}, nil
}

// EnsureDirs creates the library's working directories and verifies the index
// directory is writable. The canonical tree itself is created lazily per
// date folder during ingestion.
func (l *Library) EnsureDirs() error {
	for _, dir := range []string{filepath.Dir(l.IndexPath), l.StagingDir, l.TrashDir, l.BackupDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return testWriteAccess(filepath.Dir(l.IndexPath))
}

// Abs resolves a library-relative path to an absolute one.
func (l *Library) Abs(rel string) string {
	return filepath.Join(l.Root, rel)
}

// Rel converts an absolute path under the library root to a relative one.
func (l *Library) Rel(abs string) (string, error) {
	rel, err := filepath.Rel(l.Root, abs)
	if err != nil {
		return "", fmt.Errorf("path %s is not under library root: %w", abs, err)
	}
	return rel, nil
}

// Config holds all service configuration.
type Config struct {
	Library         *Library
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	BackupRetention int
	// ToolTimeout bounds every external tool invocation (exiftool, ffprobe,
	// jpegtran).
	ToolTimeout time.Duration
	// StatePath is the TOML file remembering the active library between runs.
	StatePath string
}

// Load reads configuration from environment variables, falling back to the
// saved library state when LIBRARY_ROOT is unset.
func Load() (*Config, error) {
	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	statePath := getEnv("STATE_FILE", defaultStatePath())

	root := os.Getenv("LIBRARY_ROOT")
	if root == "" {
		state, err := LoadState(statePath)
		if err == nil && state.LibraryRoot != "" {
			root = state.LibraryRoot
			logging.Info("  LIBRARY_ROOT:      %s (from state file)", root)
		}
	} else {
		logging.Info("  LIBRARY_ROOT:      %s", root)
	}
	if root == "" {
		return nil, fmt.Errorf("LIBRARY_ROOT is not set and no saved library state exists at %s", statePath)
	}

	port := getEnv("PORT", DefaultPort)
	metricsPort := getEnv("METRICS_PORT", DefaultMetricsPort)
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	retention := getEnvInt("BACKUP_RETENTION", DefaultBackupRetention)
	toolTimeout := getEnvDuration("TOOL_TIMEOUT", DefaultToolTimeout)

	logging.Info("  PORT:              %s", port)
	logging.Info("  METRICS_PORT:      %s", metricsPort)
	logging.Info("  METRICS_ENABLED:   %v", metricsEnabled)
	logging.Info("  BACKUP_RETENTION:  %d", retention)
	logging.Info("  TOOL_TIMEOUT:      %s", toolTimeout)
	logging.Info("  LOG_LEVEL:         %s", logging.GetLevel())

	lib, err := NewLibrary(root)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(lib.Root)
	if err != nil {
		return nil, fmt.Errorf("library root is not accessible: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("library root %s is not a directory", lib.Root)
	}

	if err := lib.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("library setup failed: %w", err)
	}

	return &Config{
		Library:         lib,
		Port:            port,
		MetricsPort:     metricsPort,
		MetricsEnabled:  metricsEnabled,
		BackupRetention: retention,
		ToolTimeout:     toolTimeout,
		StatePath:       statePath,
	}, nil
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".photo-librarian.toml"
	}
	return filepath.Join(home, ".photo-librarian.toml")
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write-test file %s: %v", testFile, err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logging.Warn("  Invalid %s=%q, using default %v", key, v, fallback)
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logging.Warn("  Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		logging.Warn("  Invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
