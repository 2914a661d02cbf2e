// Package logging provides leveled logging controlled by the DEBUG and
// LOG_LEVEL environment variables, plus an always-on ingestion audit channel.
package logging
