package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/digestmail/digestmail/internal/auth"
	"github.com/digestmail/digestmail/internal/config"
	"github.com/digestmail/digestmail/internal/logger"
	"github.com/digestmail/digestmail/internal/middleware"
)

func newMiddleware() *middleware.Middleware {
	return middleware.New(logger.Nop(), &config.Config{})
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	mw := newMiddleware()

	t.Run("generates an id", func(t *testing.T) {
		t.Parallel()

		var seen string
		h := mw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.GetRequestID(r.Context())
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.NotEmpty(t, seen)
		require.Equal(t, seen, rec.Header().Get("X-Request-ID"))
	})

	t.Run("keeps an incoming id", func(t *testing.T) {
		t.Parallel()

		var seen string
		h := mw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = middleware.GetRequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "abc-123")
		h.ServeHTTP(httptest.NewRecorder(), req)

		require.Equal(t, "abc-123", seen)
	})
}

func TestRecover(t *testing.T) {
	t.Parallel()

	h := newMiddleware().Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Contains(t, rec.Body.String(), "internal_error")
}

func TestCORS(t *testing.T) {
	t.Parallel()

	h := newMiddleware().CORS([]string{"http://localhost:8501"})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("allowed origin preflight", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodOptions, "/api/v1/draft", nil)
		req.Header.Set("Origin", "http://localhost:8501")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "http://localhost:8501", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origins get no headers", func(t *testing.T) {
		t.Parallel()

		req := httptest.NewRequest(http.MethodGet, "/api/v1/draft", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusTeapot, rec.Code)
		require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestAuth(t *testing.T) {
	t.Parallel()

	tokens := auth.NewTokenService(config.SecurityConfig{TokenSecret: "s3cret"})
	var subject interface{}
	h := newMiddleware().Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = r.Context().Value(middleware.SubjectKey)
	}))

	t.Run("missing token", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "token_invalid")
	})

	t.Run("cookie token", func(t *testing.T) {
		tok, _, err := tokens.Issue("editor")
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: "digestmail_token", Value: tok})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "editor", subject)
	})
}
