// Package backup snapshots the index database before destructive operations
// and rotates old snapshots out.
package backup
