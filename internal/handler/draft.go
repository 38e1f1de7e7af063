package handler

import (
	"net/http"

	"github.com/digestmail/digestmail/internal/model"
)

// ImageResponse describes one registered image
type ImageResponse struct {
	ID           string `json:"id"`
	Path         string `json:"path"`
	ContentIndex int    `json:"contentIndex"`
	Placeholder  string `json:"placeholder"`
}

// DraftResponse is the current editing session
type DraftResponse struct {
	Subject string          `json:"subject"`
	Body    string          `json:"body"`
	Images  []ImageResponse `json:"images"`
	Sending bool            `json:"sending"`
}

// UpdateDraftRequest replaces the subject and body
type UpdateDraftRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// PreviewRequest names the sample recipient of a preview
type PreviewRequest struct {
	FullName string `json:"fullName"`
}

// PreviewResponse is a rendered preview
type PreviewResponse struct {
	HTML       string   `json:"html"`
	UsedImages []string `json:"usedImages"`
}

func (h *Handler) draftResponse() DraftResponse {
	snap := h.compose.Snapshot()
	resp := DraftResponse{
		Subject: snap.Subject,
		Body:    snap.Body,
		Images:  make([]ImageResponse, 0, snap.Images.Len()),
		Sending: h.compose.Sending(),
	}
	for i, e := range snap.Images.Entries() {
		resp.Images = append(resp.Images, ImageResponse{
			ID:           e.ID,
			Path:         e.Path,
			ContentIndex: i + 1,
			Placeholder:  model.Placeholder(e.ID),
		})
	}
	return resp
}

// GetDraft returns the editing session
func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.draftResponse())
}

// UpdateDraft replaces the subject and body of the session
func (h *Handler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	var req UpdateDraftRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	h.compose.Update(req.Subject, req.Body)
	writeJSON(w, http.StatusOK, h.draftResponse())
}

// SaveDraft persists the session to the template and settings files
func (h *Handler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.compose.Save(); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Content saved successfully!"})
}

// LoadDraft replaces the session with the saved one
func (h *Handler) LoadDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.compose.Load(); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Content loaded successfully!",
		"draft":   h.draftResponse(),
	})
}

// ResetDraft starts an empty session
func (h *Handler) ResetDraft(w http.ResponseWriter, r *http.Request) {
	h.compose.Reset()
	writeJSON(w, http.StatusOK, h.draftResponse())
}

// Preview renders the session for a sample recipient
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	doc, err := h.compose.Preview(req.FullName)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	used := doc.Used
	if used == nil {
		used = []string{}
	}
	writeJSON(w, http.StatusOK, PreviewResponse{HTML: doc.HTML, UsedImages: used})
}
