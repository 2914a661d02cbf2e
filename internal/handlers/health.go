package handlers

import (
	"net/http"
	"runtime"
	"time"

	"photo-librarian/internal/health"
	"photo-librarian/internal/index"
)

// LibraryHealthResponse is the payload for GET /api/health/library.
type LibraryHealthResponse struct {
	Report *health.Report `json:"report"`
	Stats  *index.Stats   `json:"stats,omitempty"`
}

// LibraryHealth inspects the index file and reports its condition with
// library statistics.
func (h *Handlers) LibraryHealth(w http.ResponseWriter, r *http.Request) {
	report, err := health.Check(r.Context(), h.cfg.Library.IndexPath)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := LibraryHealthResponse{Report: report}
	if report.Action == health.ActionProceed || report.Action == health.ActionMigrate {
		if stats, statsErr := h.idx.GetStats(r.Context()); statsErr == nil {
			resp.Stats = stats
		}
	}
	writeJSON(w, resp)
}

// LibraryStats returns record counts and stored bytes.
func (h *Handlers) LibraryStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.idx.GetStats(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// HealthzResponse is the payload for GET /healthz.
type HealthzResponse struct {
	Status       string `json:"status"`
	Uptime       string `json:"uptime"`
	BatchRunning bool   `json:"batchRunning"`
	GoVersion    string `json:"goVersion"`
	NumGoroutine int    `json:"numGoroutine"`
}

// Healthz reports overall service health.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthzResponse{
		Status:       "healthy",
		Uptime:       time.Since(h.started).Round(time.Second).String(),
		BatchRunning: h.scanner.Running(),
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
	})
}

// Livez is the liveness probe.
func (h *Handlers) Livez(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// Readyz reports readiness: the index must answer queries.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if _, err := h.idx.GetStats(r.Context()); err != nil {
		writeJSONError(w, "index unavailable: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
