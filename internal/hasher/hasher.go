package hasher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"photo-librarian/internal/filesystem"
	"photo-librarian/internal/logging"
)

// chunkSize is the read granularity for hashing. Between chunks the context is
// checked so a cancelled batch stops mid-file instead of finishing a multi-GB
// video.
const chunkSize = 1 << 20

// HashFile computes the SHA-256 digest of the file's full contents and returns
// it as a lowercase hex string.
func HashFile(ctx context.Context, path string) (string, error) {
	f, err := filesystem.Open(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", fmt.Errorf("failed to open %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := copyChunked(ctx, h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// CopyAndHash copies src to dst and computes the SHA-256 digest of the bytes
// written in a single pass. dst is fsynced before close so a crash cannot
// leave a torn staged copy that later passes verification. On any error the
// partial dst is removed.
func CopyAndHash(ctx context.Context, src, dst string) (digest string, written int64, err error) {
	in, err := filesystem.Open(src, filesystem.DefaultRetryConfig())
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create %s: %w", dst, err)
	}

	cleanup := func() {
		out.Close()
		if rmErr := os.Remove(dst); rmErr != nil && !os.IsNotExist(rmErr) {
			logging.Warn("Failed to remove partial copy %s: %v", dst, rmErr)
		}
	}

	h := sha256.New()
	written, err = copyChunked(ctx, io.MultiWriter(out, h), in)
	if err != nil {
		cleanup()
		return "", 0, fmt.Errorf("failed to copy %s: %w", src, err)
	}

	if err := out.Sync(); err != nil {
		cleanup()
		return "", 0, fmt.Errorf("failed to sync %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return "", 0, fmt.Errorf("failed to close %s: %w", dst, err)
	}

	return hex.EncodeToString(h.Sum(nil)), written, nil
}

func copyChunked(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := src.Read(buf)
		if n > 0 {
			if _, werr := dst.Write(buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
	}
}
