package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"photo-librarian/internal/backup"
	"photo-librarian/internal/config"
	"photo-librarian/internal/index"
	"photo-librarian/internal/recon"
)

// Handlers carries the service dependencies for all HTTP endpoints.
type Handlers struct {
	cfg     *config.Config
	idx     *index.Index
	scanner *recon.Scanner
	rotator *backup.Rotator
	started time.Time
}

// New creates the handler set.
func New(cfg *config.Config, idx *index.Index, scanner *recon.Scanner, rotator *backup.Rotator) *Handlers {
	return &Handlers{
		cfg:     cfg,
		idx:     idx,
		scanner: scanner,
		rotator: rotator,
		started: time.Now(),
	}
}

// Register attaches all routes to the router.
func (h *Handlers) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/ingest/start", h.StartBatch).Methods(http.MethodPost)
	api.HandleFunc("/ingest/report/{batch}", h.BatchReport).Methods(http.MethodGet)

	api.HandleFunc("/health/library", h.LibraryHealth).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.LibraryStats).Methods(http.MethodGet)

	api.HandleFunc("/records", h.ListRecords).Methods(http.MethodGet)
	api.HandleFunc("/records/{id:[0-9]+}", h.GetRecord).Methods(http.MethodGet)
	api.HandleFunc("/records/{id:[0-9]+}", h.DeleteRecord).Methods(http.MethodDelete)
	api.HandleFunc("/records/{id:[0-9]+}/rating", h.SetRating).Methods(http.MethodPut)

	api.HandleFunc("/trash", h.ListTrash).Methods(http.MethodGet)
	api.HandleFunc("/trash/{id:[0-9]+}/restore", h.RestoreRecord).Methods(http.MethodPost)
	api.HandleFunc("/trash/{id:[0-9]+}", h.PurgeRecord).Methods(http.MethodDelete)

	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.Livez).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readyz).Methods(http.MethodGet)

	if h.cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
}
