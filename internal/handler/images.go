package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/digestmail/digestmail/internal/email"
	"github.com/digestmail/digestmail/internal/model"
)

var allowedImageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
}

// UploadResponse lists the identifiers assigned to uploaded images
type UploadResponse struct {
	Images  []ImageResponse `json:"images"`
	Message string          `json:"message"`
}

// UploadImages stores every file of the "images" form field, in order, and
// appends a placeholder for each to the body.
func (h *Handler) UploadImages(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.Server.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.Server.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid multipart upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["images"]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "No images uploaded")
		return
	}
	for _, fh := range files {
		if !allowedImageExts[strings.ToLower(filepath.Ext(fh.Filename))] {
			writeError(w, http.StatusBadRequest, "invalid_request", "Unsupported image type: "+fh.Filename)
			return
		}
	}

	resp := UploadResponse{Images: make([]ImageResponse, 0, len(files))}
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "Failed to read upload: "+fh.Filename)
			return
		}
		id, err := h.compose.AddImage(fh.Filename, f)
		f.Close()
		if err != nil {
			h.writeServiceError(w, r, err)
			return
		}
		resp.Images = append(resp.Images, ImageResponse{ID: id, Placeholder: model.Placeholder(id)})
	}

	// fill in paths and content indices from the registry
	snap := h.compose.Snapshot()
	for i := range resp.Images {
		resp.Images[i].Path, _ = snap.Images.Get(resp.Images[i].ID)
		resp.Images[i].ContentIndex, _ = snap.Images.ContentIndex(resp.Images[i].ID)
	}
	resp.Message = "Images uploaded"
	writeJSON(w, http.StatusCreated, resp)
}

// GetImage serves the content of a registered image
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	data, path, err := h.compose.ImageContent(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", email.ContentTypeFor(path))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// InsertImage appends the placeholder of a registered image to the body
func (h *Handler) InsertImage(w http.ResponseWriter, r *http.Request) {
	if err := h.compose.InsertImage(r.PathValue("id")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.draftResponse())
}
