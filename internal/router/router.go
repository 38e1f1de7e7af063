package router

import (
	"net/http"

	"github.com/digestmail/digestmail/internal/auth"
	"github.com/digestmail/digestmail/internal/handler"
	"github.com/digestmail/digestmail/internal/middleware"
)

// New creates and configures the HTTP router
func New(h *handler.Handler, mw *middleware.Middleware, tokenSvc *auth.TokenService, allowedOrigins []string) http.Handler {
	mux := http.NewServeMux()

	// Health check endpoints (no auth required)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)

	// Compose page
	mux.HandleFunc("GET /{$}", h.Index)

	// API v1 routes
	mux.HandleFunc("GET /api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"message":"Digest Mail API v1","version":"` + handler.Version + `"}`))
	})

	// Protected routes (require auth when a token secret is configured)
	authMw := mw.Auth(tokenSvc)

	// Draft routes
	mux.Handle("GET /api/v1/draft", authMw(http.HandlerFunc(h.GetDraft)))
	mux.Handle("PUT /api/v1/draft", authMw(http.HandlerFunc(h.UpdateDraft)))
	mux.Handle("POST /api/v1/draft/save", authMw(http.HandlerFunc(h.SaveDraft)))
	mux.Handle("POST /api/v1/draft/load", authMw(http.HandlerFunc(h.LoadDraft)))
	mux.Handle("POST /api/v1/draft/reset", authMw(http.HandlerFunc(h.ResetDraft)))

	// Image routes
	mux.Handle("POST /api/v1/images", authMw(http.HandlerFunc(h.UploadImages)))
	mux.Handle("GET /api/v1/images/{id}", authMw(http.HandlerFunc(h.GetImage)))
	mux.Handle("POST /api/v1/images/{id}/insert", authMw(http.HandlerFunc(h.InsertImage)))

	mux.Handle("POST /api/v1/preview", authMw(http.HandlerFunc(h.Preview)))

	// Send and run routes
	mux.Handle("POST /api/v1/send", authMw(http.HandlerFunc(h.Send)))
	mux.Handle("GET /api/v1/runs", authMw(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", authMw(http.HandlerFunc(h.GetRunProgress)))

	// Apply middleware stack
	var handler http.Handler = mux

	handler = mw.CORS(allowedOrigins)(handler)

	// Security headers
	handler = mw.SecurityHeaders(handler)

	// Request logging
	handler = mw.Logger(handler)

	// Timing
	handler = mw.Timing(handler)

	// Request ID
	handler = mw.RequestID(handler)

	// Panic recovery (outermost)
	handler = mw.Recover(handler)

	return handler
}
