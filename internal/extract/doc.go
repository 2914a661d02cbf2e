// Package extract resolves capture times and display dimensions from media
// file metadata.
package extract
