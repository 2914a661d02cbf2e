// Package filesystem wraps basic file operations with retry logic for NFS
// stale file handle errors. Photo libraries and ingestion sources commonly
// live on NAS mounts, where a re-exported directory can briefly return
// ESTALE until the handle is re-resolved.
package filesystem

import (
	"errors"
	"os"
	"syscall"
	"time"

	"photo-librarian/internal/logging"
	"photo-librarian/internal/metrics"
)

// RetryConfig configures retry behavior for filesystem operations
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns sensible defaults for NFS retry behavior
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isStaleError checks if an error is an NFS stale file handle error
func isStaleError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}
	return false
}

// retry runs op until it succeeds, fails with a non-stale error, or exhausts
// the configured attempts. Only ESTALE is retried.
func retry(name, path string, config RetryConfig, op func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := op()
		if err == nil {
			if attempt > 0 {
				logging.Info("NFS %s succeeded on retry %d for %s", name, attempt, path)
				metrics.FilesystemRetrySuccess.WithLabelValues(name).Inc()
			}
			return nil
		}

		lastErr = err

		if !isStaleError(err) {
			return err
		}
		metrics.FilesystemStaleErrors.WithLabelValues(name).Inc()

		// Don't sleep after the last attempt
		if attempt < config.MaxRetries {
			logging.Debug("NFS %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				name, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("NFS %s failed after %d retries for %s: %v", name, config.MaxRetries, path, lastErr)
	metrics.FilesystemRetryFailures.WithLabelValues(name).Inc()
	return lastErr
}

// Stat performs os.Stat with retry logic for NFS stale file handle errors
func Stat(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := retry("stat", path, config, func() error {
		var err error
		info, err = os.Stat(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// Open performs os.Open with retry logic for NFS stale file handle errors
func Open(path string, config RetryConfig) (*os.File, error) {
	var file *os.File
	err := retry("open", path, config, func() error {
		var err error
		file, err = os.Open(path)
		return err
	})
	if err != nil {
		return nil, err
	}
	return file, nil
}
