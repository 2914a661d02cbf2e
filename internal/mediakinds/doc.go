// Package mediakinds defines which file extensions the library manages and
// how they map to media kinds and MIME types.
package mediakinds
