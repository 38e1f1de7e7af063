package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/digestmail/digestmail/internal/middleware"
	"github.com/digestmail/digestmail/internal/model"
	"github.com/digestmail/digestmail/internal/repository"
	"github.com/digestmail/digestmail/internal/service"
)

// SendResponse acknowledges a started send
type SendResponse struct {
	RunID   string `json:"runId"`
	Message string `json:"message"`
}

// ProgressResponse is the latest state of a run
type ProgressResponse struct {
	RunID     string    `json:"runId"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Sent      int       `json:"sent"`
	Failed    int       `json:"failed"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Send starts a merge run in the background
func (h *Handler) Send(w http.ResponseWriter, r *http.Request) {
	// the run outlives the request but keeps its values for logging
	ctx := context.WithoutCancel(r.Context())

	runID, err := h.compose.StartSend(ctx, service.SendOptions{
		Progress: service.StoreReporter(h.progress, h.log),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.log.Info().
		Str("run_id", runID).
		Str("request_id", middleware.GetRequestID(r.Context())).
		Msg("send started")

	writeJSON(w, http.StatusAccepted, SendResponse{RunID: runID, Message: "Sending emails..."})
}

// GetRunProgress returns the latest progress of a run
func (h *Handler) GetRunProgress(w http.ResponseWriter, r *http.Request) {
	p, err := h.progress.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "Run not found")
			return
		}
		h.log.Error().Err(err).Msg("failed to read run progress")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to read run progress")
		return
	}
	writeJSON(w, http.StatusOK, progressResponse(p))
}

func progressResponse(p *model.Progress) ProgressResponse {
	return ProgressResponse{
		RunID:     p.RunID,
		Status:    string(p.Status),
		Total:     p.Total,
		Sent:      p.Sent,
		Failed:    p.Failed,
		Percent:   p.Percent(),
		Message:   p.Message,
		UpdatedAt: p.UpdatedAt,
	}
}

// ListRuns returns the most recent persisted runs
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "history_disabled", "Run history is not enabled")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 200 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 200")
			return
		}
		limit = n
	}

	runs, err := h.runs.ListRuns(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list runs")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to list runs")
		return
	}
	if runs == nil {
		runs = []*model.Run{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}
