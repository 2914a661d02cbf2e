package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gorilla/mux"

	"photo-librarian/internal/ingest"
	"photo-librarian/internal/logging"
	"photo-librarian/internal/recon"
)

// StartBatchRequest is the body for POST /api/ingest/start.
type StartBatchRequest struct {
	SourceRoot string `json:"sourceRoot"`
}

// StartBatch starts a reconciliation batch and streams per-file progress as
// server-sent events. The stream opens with "started", emits "progress" per
// file, and terminates with exactly one of "completed" or "failed".
func (h *Handlers) StartBatch(w http.ResponseWriter, r *http.Request) {
	var req StartBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.SourceRoot == "" || !filepath.IsAbs(req.SourceRoot) {
		writeJSONError(w, "sourceRoot must be an absolute path", http.StatusBadRequest)
		return
	}

	// The batch outlives this request only if the client disconnects; it
	// keeps the request context so closing the stream cancels cleanly
	// between files.
	batchID, events, err := h.scanner.Start(r.Context(), req.SourceRoot)
	if err != nil {
		if errors.Is(err, recon.ErrBatchRunning) {
			writeJSONError(w, err.Error(), http.StatusConflict)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	total := 0
	if summary, ok := h.scanner.Summary(batchID); ok {
		total = summary.Total
	}
	fmt.Fprintf(w, "event: started\ndata: {\"batchId\":%q,\"totalEstimate\":%d}\n\n", batchID, total)
	flusher.Flush()

	for progress := range events {
		data, err := json.Marshal(progress)
		if err != nil {
			logging.Error("failed to encode progress event: %v", err)
			continue
		}
		fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
		flusher.Flush()
	}

	summary, ok := h.scanner.Summary(batchID)
	if !ok {
		fmt.Fprintf(w, "event: failed\ndata: {\"fatalReason\":\"batch summary lost\"}\n\n")
		flusher.Flush()
		return
	}
	data, err := json.Marshal(summary)
	if err != nil {
		fmt.Fprintf(w, "event: failed\ndata: {\"fatalReason\":%q}\n\n", err.Error())
		flusher.Flush()
		return
	}
	fmt.Fprintf(w, "event: completed\ndata: %s\n\n", data)
	flusher.Flush()
}

// BatchReportResponse is the payload for GET /api/ingest/report/{batch}.
type BatchReportResponse struct {
	Summary            *ingest.BatchSummary                 `json:"summary"`
	RejectionsByReason map[ingest.Reason][]ingest.Rejection `json:"rejectionsByReason"`
}

// BatchReport returns the summary for a finished or running batch, with
// rejections grouped by taxonomy reason.
func (h *Handlers) BatchReport(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["batch"]
	summary, ok := h.scanner.Summary(batchID)
	if !ok {
		writeJSONError(w, "unknown batch", http.StatusNotFound)
		return
	}
	writeJSON(w, BatchReportResponse{
		Summary:            summary,
		RejectionsByReason: ingest.GroupRejections(summary.Rejections),
	})
}
