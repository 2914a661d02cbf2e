// Package health inspects index database files before use and classifies
// them as usable, migratable, beyond recovery, or not a library index at
// all.
package health
