package api

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/ConfabulousDev/lovelog/internal/db"
	"github.com/ConfabulousDev/lovelog/internal/logger"
	"github.com/ConfabulousDev/lovelog/internal/models"
	"github.com/ConfabulousDev/lovelog/internal/storage"
	"github.com/ConfabulousDev/lovelog/internal/validation"
	"github.com/go-chi/chi/v5"
)

// DiagnosisListResponse is the body of GET /api/v1/users/{lineUserID}/diagnoses
type DiagnosisListResponse struct {
	Diagnoses []models.DiagnosisSummary `json:"diagnoses"`
	Total     int                       `json:"total"`
}

// requireAPIKey accepts "Authorization: Bearer <key>" matching apiKey.
func requireAPIKey(apiKey string) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
				respondError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) handleGetDiagnosis(w http.ResponseWriter, r *http.Request) {
	id, err := validation.ParseDiagnosisID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid diagnosis ID")
		return
	}

	d, err := s.cfg.DB.GetDiagnosis(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrDiagnosisNotFound) {
			respondError(w, http.StatusNotFound, "Diagnosis not found")
			return
		}
		logger.Ctx(r.Context()).Error("failed to get diagnosis", "error", err, "diagnosis_id", id)
		respondError(w, http.StatusInternalServerError, "Failed to get diagnosis")
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// handleDeleteDiagnosis removes the row, then its archived log. A missing
// object is not an error.
func (s *Server) handleDeleteDiagnosis(w http.ResponseWriter, r *http.Request) {
	log := logger.Ctx(r.Context())

	id, err := validation.ParseDiagnosisID(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid diagnosis ID")
		return
	}

	logKey, err := s.cfg.DB.DeleteDiagnosis(r.Context(), id)
	if err != nil {
		if errors.Is(err, db.ErrDiagnosisNotFound) {
			respondError(w, http.StatusNotFound, "Diagnosis not found")
			return
		}
		log.Error("failed to delete diagnosis", "error", err, "diagnosis_id", id)
		respondError(w, http.StatusInternalServerError, "Failed to delete diagnosis")
		return
	}

	if logKey != nil && s.cfg.Storage != nil {
		if err := s.cfg.Storage.Delete(r.Context(), *logKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			log.Warn("diagnosis deleted but archived log remains", "error", err, "key", *logKey)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListDiagnoses(w http.ResponseWriter, r *http.Request) {
	log := logger.Ctx(r.Context())

	lineUserID := chi.URLParam(r, "lineUserID")
	if err := validation.ValidateLineUserID(lineUserID); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := validation.ParseListLimit(r.URL.Query().Get("limit"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := s.cfg.DB.ListDiagnosesByUser(r.Context(), lineUserID, limit)
	if err != nil {
		log.Error("failed to list diagnoses", "error", err, "line_user", logger.UserID(lineUserID))
		respondError(w, http.StatusInternalServerError, "Failed to list diagnoses")
		return
	}
	total, err := s.cfg.DB.CountDiagnosesByUser(r.Context(), lineUserID)
	if err != nil {
		log.Error("failed to count diagnoses", "error", err, "line_user", logger.UserID(lineUserID))
		respondError(w, http.StatusInternalServerError, "Failed to list diagnoses")
		return
	}

	respondJSON(w, http.StatusOK, DiagnosisListResponse{Diagnoses: list, Total: total})
}
