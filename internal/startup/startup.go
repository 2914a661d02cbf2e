package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"strings"
	"time"

	"photo-librarian/internal/health"
	"photo-librarian/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// PrintBanner prints the startup banner with build information.
func PrintBanner() {
	banner := `
------------------------------------------------------------
    ____  __          __          __    _ __                    _
   / __ \/ /_  ____  / /_ ____   / /   (_) /_  _________ ______(_)___ _____
  / /_/ / __ \/ __ \/ __// __ \ / /   / / __ \/ ___/ __ '/ ___/ / __ '/ __ \
 / ____/ / / / /_/ / /_ / /_/ // /___/ / /_/ / /  / /_/ / /  / / /_/ / / / /
/_/   /_/ /_/\____/\__/ \____//_____/_/_.___/_/   \__,_/_/  /_/\__,_/_/ /_/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

// LogSystemInfo logs runtime and host details.
func LogSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

// externalTools are the binaries ingestion shells out to. Exiftool is
// required for metadata work; the others degrade specific features.
var externalTools = []struct {
	name string
	role string
}{
	{"exiftool", "metadata extraction and write-back"},
	{"ffprobe", "video capture-time extraction"},
	{"jpegtran", "lossless JPEG orientation baking"},
}

// LogToolCheck probes the external tools on PATH and logs availability.
// A missing tool is a warning; affected files are rejected at ingest time.
func LogToolCheck() {
	logging.Info("------------------------------------------------------------")
	logging.Info("EXTERNAL TOOLS")
	logging.Info("------------------------------------------------------------")

	for _, tool := range externalTools {
		path, err := exec.LookPath(tool.name)
		if err != nil {
			logging.Warn("  [!!] %-9s not found (%s unavailable)", tool.name, tool.role)
			continue
		}
		logging.Info("  [OK] %-9s %s", tool.name, path)
		logToolVersion(tool.name)
	}
	logging.Info("")
}

func logToolVersion(name string) {
	if !logging.IsDebugEnabled() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	arg := "-version"
	if name == "exiftool" {
		arg = "-ver"
	}
	output, err := exec.CommandContext(ctx, name, arg).Output()
	if err != nil {
		logging.Debug("    version check failed: %v", err)
		return
	}
	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("    version: %s", strings.TrimSpace(lines[0]))
	}
}

// LogHealthReport logs the pre-open index health check and the action taken.
func LogHealthReport(report *health.Report) {
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEX HEALTH CHECK")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Path:   %s", report.Path)
	logging.Info("  State:  %s", report.State)
	logging.Info("  Action: %s", report.Action)

	if len(report.MissingColumns) > 0 {
		logging.Warn("  Missing columns: %s", strings.Join(report.MissingColumns, ", "))
	}
	if len(report.ExtraColumns) > 0 {
		logging.Warn("  Extra columns:   %s", strings.Join(report.ExtraColumns, ", "))
	}
	if report.Detail != "" {
		logging.Info("  Detail: %s", report.Detail)
	}

	switch report.Action {
	case health.ActionMigrate:
		logging.Info("  Schema will be migrated on open")
	case health.ActionRebuild:
		if report.State == health.StateMissing {
			logging.Info("  A fresh index will be created")
		} else {
			logging.Warn("  Index is unusable; it will be set aside and rebuilt empty")
			logging.Warn("  Run a reconciliation batch over the library to repopulate it")
		}
	case health.ActionChooseDifferent:
		logging.Error("  The file at the index path is not a library index")
		logging.Error("  Point the service at a different library or remove the file")
	}
	logging.Info("")
}

// LogIndexInit logs index initialization
func LogIndexInit(duration time.Duration) {
	logging.Info("------------------------------------------------------------")
	logging.Info("INDEX INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Index opened in %v", duration)
	logging.Info("")
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		// Group routes by prefix for cleaner output
		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	LibraryRoot     string
	StartupDuration time.Duration
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("  Library root:    %s", config.LibraryRoot)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}
