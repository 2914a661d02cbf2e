// Package ingest implements the per-file ingestion transaction: hash,
// stage, normalize, extract, and finally commit into the library under a
// date-and-hash canonical name. Failures roll back to nothing; sources are
// never modified or deleted.
package ingest
