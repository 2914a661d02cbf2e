// Package index is the sqlite-backed library index: the authoritative record
// of every file the library holds, keyed by content hash. It also carries the
// trash table for soft deletes and a digest memoization cache.
package index
