// Package startup provides startup and shutdown logging plus build
// information.
//
// Configuration itself lives in [photo-librarian/internal/config]; this
// package covers the lifecycle around it: the banner, system information,
// external tool probes, the pre-open index health report, route listing,
// and the structured shutdown log.
//
// # Build Information
//
// Build-time variables are injected via ldflags and exposed via [GetBuildInfo]:
//   - Version: Application version
//   - Commit: Git commit hash
//   - BuildTime: Build timestamp
//   - GoVersion: Go compiler version
//
// # Lifecycle Logging
//
//   - [LogToolCheck]: exiftool/ffprobe/jpegtran availability
//   - [LogHealthReport]: pre-open index health check result
//   - [LogIndexInit]: index open timing
//   - [LogHTTPRoutes]: registered HTTP routes (debug level)
//   - [LogServerStarted]: server endpoints and startup duration
//   - [LogShutdownInitiated]: graceful shutdown start
//   - [LogShutdownComplete]: shutdown completion
package startup
