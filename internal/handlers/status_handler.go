package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/photosync/photosort/internal/models"
	"github.com/photosync/photosort/internal/repository"
	"github.com/photosync/photosort/internal/services"
)

// StatusSource provides the progress of the current sort run
type StatusSource interface {
	GetStatus() services.SortStatus
}

// StatusHandler serves run progress and, when a manifest is configured,
// recorded runs.
type StatusHandler struct {
	sorter   StatusSource
	manifest repository.ManifestRepo
}

// NewStatusHandler creates a new StatusHandler. manifest may be nil.
func NewStatusHandler(sorter StatusSource, manifest repository.ManifestRepo) *StatusHandler {
	return &StatusHandler{
		sorter:   sorter,
		manifest: manifest,
	}
}

// RunDetails is a recorded run with its per-status file counts
type RunDetails struct {
	*models.SortRun
	Counts map[models.FileStatus]int `json:"counts"`
}

// GetStatus returns the live sort status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sorter.GetStatus())
}

// GetRun returns a recorded run
func (h *StatusHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.manifest == nil {
		writeError(w, http.StatusNotFound, "manifest not enabled")
		return
	}

	id := chi.URLParam(r, "id")
	run, err := h.manifest.GetRun(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	counts, err := h.manifest.CountByStatus(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, RunDetails{SortRun: run, Counts: counts})
}

// ListRunFiles returns the manifest entries of a run, optionally filtered
// by ?status=
func (h *StatusHandler) ListRunFiles(w http.ResponseWriter, r *http.Request) {
	if h.manifest == nil {
		writeError(w, http.StatusNotFound, "manifest not enabled")
		return
	}

	entries, err := h.manifest.ListFiles(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := make([]*models.ManifestEntry, 0, len(entries))
		for _, e := range entries {
			if string(e.Status) == status {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, models.ErrorResponse{Error: msg})
}
