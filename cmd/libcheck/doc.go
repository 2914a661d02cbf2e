// Command libcheck is an offline maintenance tool for the photo library
// index. It resolves the active library the same way the server does
// (LIBRARY_ROOT, then the saved state file) and offers three commands:
//
//	libcheck check   - print the index health report as JSON; exits
//	                   non-zero when an existing index would need a rebuild
//	libcheck backup  - take an index snapshot into the library's backup
//	                   directory, pruning the oldest past retention
//	libcheck stats   - print record counts and stored bytes as JSON
//	libcheck verify  - diff the index against the filesystem and report
//	                   records whose files are missing on disk
//
// The tool opens the index directly and is meant to run while the server is
// stopped, or read-only checks while it runs.
package main
