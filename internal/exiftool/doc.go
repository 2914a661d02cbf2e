// Package exiftool wraps the external media tools (exiftool, ffprobe,
// jpegtran) behind a Runner that enforces per-invocation deadlines and
// classifies failures structurally instead of by message text.
package exiftool
