package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/digestmail/digestmail/internal/config"
	"github.com/digestmail/digestmail/internal/database"
	"github.com/digestmail/digestmail/internal/logger"
	"github.com/digestmail/digestmail/internal/middleware"
	"github.com/digestmail/digestmail/internal/model"
	"github.com/digestmail/digestmail/internal/service"
)

// RunLister lists persisted merge runs. Implemented by repository.RunRepository.
type RunLister interface {
	ListRuns(ctx context.Context, limit int) ([]*model.Run, error)
}

// Handler holds all HTTP handlers
type Handler struct {
	db       *database.Postgres
	rdb      *database.Redis
	log      *logger.Logger
	cfg      *config.Config
	compose  *service.ComposeService
	progress service.ProgressStore
	runs     RunLister
}

// New creates a new Handler instance. db, rdb and runs may be nil when the
// corresponding backends are disabled.
func New(db *database.Postgres, rdb *database.Redis, log *logger.Logger, cfg *config.Config, compose *service.ComposeService, progress service.ProgressStore, runs RunLister) *Handler {
	return &Handler{
		db:       db,
		rdb:      rdb,
		log:      log,
		cfg:      cfg,
		compose:  compose,
		progress: progress,
		runs:     runs,
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    code,
			"message": message,
		},
	})
}

// writeServiceError renders a service error as its user-facing text
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	kind := service.KindOf(err)

	status := http.StatusInternalServerError
	switch kind {
	case service.KindInvalid, service.KindRecipient:
		status = http.StatusBadRequest
	case service.KindConflict:
		status = http.StatusConflict
	case service.KindSetup, service.KindTransport:
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.log.Error().
			Err(err).
			Str("kind", kind.String()).
			Str("request_id", middleware.GetRequestID(r.Context())).
			Msg("request failed")
	}
	writeError(w, status, kind.String(), service.Describe(err))
}

func readJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("request body is empty")
	}
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}
