// Package hasher computes content digests for identity and verification.
//
// The digest is SHA-256 over the complete file contents, hex-encoded. File
// names, timestamps, and filesystem location never influence it, so the same
// bytes hash identically regardless of where they live.
package hasher
