package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FairForge/recoverd/internal/artifact"
	"github.com/FairForge/recoverd/internal/backup"
	"github.com/FairForge/recoverd/internal/catalog"
	"github.com/FairForge/recoverd/internal/component"
	"github.com/FairForge/recoverd/internal/restore"
)

type createBackupRequest struct {
	Kind       string   `json:"kind"`
	Components []string `json:"components"`
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	var req createBackupRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
	}

	point, err := s.svc.CreateBackup(r.Context(), req.Kind, req.Components)
	if err != nil {
		status, kind := classifyError(err)
		writeError(w, status, kind, err)
		return
	}
	writeJSON(w, http.StatusCreated, point)
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	filter := catalog.Filter{
		Kind:   r.URL.Query().Get("kind"),
		Status: r.URL.Query().Get("status"),
	}
	if after := r.URL.Query().Get("after"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		filter.After = t
	}
	if before := r.URL.Query().Get("before"); before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		filter.Before = t
	}

	points := s.svc.ListRecoveryPoints(r.Context(), filter)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"recovery_points": points,
		"count":           len(points),
	})
}

func (s *Server) handleGetBackup(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	point, err := s.svc.GetRecoveryPoint(r.Context(), id)
	if err != nil {
		status, kind := classifyError(err)
		writeError(w, status, kind, err)
		return
	}
	writeJSON(w, http.StatusOK, point)
}

type restoreRequest struct {
	Components []string `json:"components"`
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req restoreRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
	}

	result, err := s.svc.Restore(r.Context(), id, req.Components)
	if err != nil {
		status, kind := classifyError(err)
		writeError(w, status, kind, err)
		return
	}

	status := http.StatusOK
	if !result.Success {
		// Partial restores surface per-component results with a
		// non-2xx status so CI tooling can branch on outcome.
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

func (s *Server) handleHealthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GetHealthStatus(r.Context()))
}

func (s *Server) handleRunTest(w http.ResponseWriter, r *http.Request) {
	report := s.svc.RunTest(r.Context())
	status := http.StatusOK
	if !report.Success {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, report)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.GenerateReport(r.Context()))
}

// classifyError maps the error taxonomy onto HTTP statuses.
func classifyError(err error) (int, string) {
	var notFound catalog.NotFoundError
	var integrity restore.IntegrityError
	var missing restore.MissingComponentError
	var compFailure component.ComponentFailure
	var unknown component.UnknownComponentError
	var unavailable artifact.StoreUnavailableError

	switch {
	case errors.Is(err, backup.ErrBackupInProgress):
		return http.StatusConflict, "backup_in_progress"
	case errors.As(err, &notFound):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &integrity):
		return http.StatusConflict, "integrity_failure"
	case errors.As(err, &missing):
		return http.StatusBadRequest, "missing_component"
	case errors.As(err, &unknown):
		return http.StatusBadRequest, "unknown_component"
	case errors.As(err, &compFailure):
		return http.StatusInternalServerError, "component_failure"
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, "store_unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
