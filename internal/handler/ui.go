package handler

import (
	_ "embed"
	"net/http"
)

//go:embed static/index.html
var indexPage []byte

// Index serves the compose page
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexPage)
}
