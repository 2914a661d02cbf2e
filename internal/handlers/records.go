package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gorilla/mux"

	"photo-librarian/internal/index"
	"photo-librarian/internal/logging"
)

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

// ListRecords returns library records, filterable by type and capture-date
// range.
func (h *Handlers) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := index.ListOptions{
		FileType: q.Get("type"),
		DateFrom: q.Get("from"),
		DateTo:   q.Get("to"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			opts.Offset = n
		}
	}

	records, err := h.idx.List(r.Context(), opts)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*index.Photo{}
	}
	writeJSON(w, records)
}

// GetRecord returns a single record.
func (h *Handlers) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, "invalid id", http.StatusBadRequest)
		return
	}

	p, err := h.idx.GetByID(r.Context(), id)
	if errors.Is(err, index.ErrNotFound) {
		writeJSONError(w, "record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, p)
}

// SetRatingRequest is the body for PUT /api/records/{id}/rating.
type SetRatingRequest struct {
	Rating int `json:"rating"`
}

// SetRating updates a record's star rating.
func (h *Handlers) SetRating(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req SetRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.idx.UpdateRating(r.Context(), id, req.Rating); err != nil {
		if errors.Is(err, index.ErrNotFound) {
			writeJSONError(w, "record not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

// DeleteRecord soft-deletes a record: the index is snapshotted, the file is
// parked in the trash directory, and the row moves to the trash table. A
// failed snapshot blocks the delete unless force=true.
func (h *Handlers) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSONError(w, "invalid id", http.StatusBadRequest)
		return
	}
	force := r.URL.Query().Get("force") == "true"

	p, err := h.idx.GetByID(r.Context(), id)
	if errors.Is(err, index.ErrNotFound) {
		writeJSONError(w, "record not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if _, err := h.rotator.Snapshot(r.Context(), h.idx); err != nil {
		if !force {
			writeJSONError(w, fmt.Sprintf("index snapshot failed, refusing to delete (use force=true to override): %v", err),
				http.StatusInternalServerError)
			return
		}
		logging.Warn("Deleting record %d despite failed snapshot: %v", id, err)
	}

	trashName := fmt.Sprintf("%d_%s", id, filepath.Base(p.CurrentPath))
	src := h.cfg.Library.Abs(p.CurrentPath)
	dst := filepath.Join(h.cfg.Library.TrashDir, trashName)

	if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
		writeJSONError(w, fmt.Sprintf("failed to move file to trash: %v", err), http.StatusInternalServerError)
		return
	}

	trashID, err := h.idx.SoftDelete(r.Context(), id, trashName)
	if err != nil {
		// Put the file back so disk and index stay in step.
		if rbErr := os.Rename(dst, src); rbErr != nil && !os.IsNotExist(rbErr) {
			logging.Error("Failed to return %s from trash after index error: %v", trashName, rbErr)
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, map[string]any{"status": "deleted", "trashId": trashID})
}

// ListTrash returns soft-deleted records.
func (h *Handlers) ListTrash(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.idx.ListTrash(r.Context())
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if deleted == nil {
		deleted = []*index.DeletedPhoto{}
	}
	writeJSON(w, deleted)
}

// RestoreRecord moves a trashed record and its file back into the library.
func (h *Handlers) RestoreRecord(w http.ResponseWriter, r *http.Request) {
	trashID, err := pathID(r)
	if err != nil {
		writeJSONError(w, "invalid id", http.StatusBadRequest)
		return
	}

	d, err := h.idx.GetTrash(r.Context(), trashID)
	if errors.Is(err, index.ErrNotFound) {
		writeJSONError(w, "trash entry not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	restoredPath := d.OriginalPath
	if _, statErr := os.Stat(h.cfg.Library.Abs(restoredPath)); statErr == nil {
		writeJSONError(w, "original path is occupied", http.StatusConflict)
		return
	}

	src := filepath.Join(h.cfg.Library.TrashDir, d.TrashFilename)
	dst := h.cfg.Library.Abs(restoredPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := os.Rename(src, dst); err != nil {
		writeJSONError(w, fmt.Sprintf("failed to move file out of trash: %v", err), http.StatusInternalServerError)
		return
	}

	p, err := h.idx.Restore(r.Context(), trashID, restoredPath)
	if err != nil {
		if rbErr := os.Rename(dst, src); rbErr != nil {
			logging.Error("Failed to re-park %s after restore error: %v", d.TrashFilename, rbErr)
		}
		if errors.Is(err, index.ErrIdentityConflict) {
			writeJSONError(w, "identical content already in library", http.StatusConflict)
			return
		}
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, p)
}

// PurgeRecord permanently deletes a trashed record and its parked file.
func (h *Handlers) PurgeRecord(w http.ResponseWriter, r *http.Request) {
	trashID, err := pathID(r)
	if err != nil {
		writeJSONError(w, "invalid id", http.StatusBadRequest)
		return
	}

	d, err := h.idx.GetTrash(r.Context(), trashID)
	if errors.Is(err, index.ErrNotFound) {
		writeJSONError(w, "trash entry not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	if err := h.idx.Purge(r.Context(), trashID); err != nil {
		writeJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	parked := filepath.Join(h.cfg.Library.TrashDir, d.TrashFilename)
	if err := os.Remove(parked); err != nil && !os.IsNotExist(err) {
		logging.Warn("Failed to remove parked file %s: %v", parked, err)
	}
	writeJSON(w, map[string]string{"status": "purged"})
}
