// Package handlers implements the HTTP API: batch ingestion with streamed
// progress, library records and trash, health reports, and probes.
package handlers
