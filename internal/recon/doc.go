// Package recon reconciles a source directory against the library: every
// media file is driven through the ingestion transaction, fully-consumed
// source subtrees are removed, and rejected sources are always retained.
package recon
