package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medialib/internal/domain"
	"medialib/internal/domain/models"
	"medialib/internal/httputil"
)

type stubVerifier struct {
	tokens map[string]string // token -> user id
}

func (s *stubVerifier) VerifyToken(token string) (*models.IdentityClaims, error) {
	id, ok := s.tokens[token]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return &models.IdentityClaims{ID: id}, nil
}

func (s *stubVerifier) Close() error { return nil }

func echoUser() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(httputil.GetUserID(r)))
	})
}

func TestAuthMiddleware(t *testing.T) {
	handler := AuthMiddleware(&stubVerifier{tokens: map[string]string{"good": "alice"}})(echoUser())

	tests := []struct {
		name       string
		method     string
		path       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{"valid token", http.MethodGet, "/api/folders", "Bearer good", http.StatusOK, "alice"},
		{"lowercase scheme", http.MethodGet, "/api/folders", "bearer good", http.StatusOK, "alice"},
		{"missing header", http.MethodGet, "/api/folders", "", http.StatusUnauthorized, ""},
		{"wrong scheme", http.MethodGet, "/api/folders", "Basic good", http.StatusUnauthorized, ""},
		{"empty token", http.MethodGet, "/api/folders", "Bearer ", http.StatusUnauthorized, ""},
		{"invalid token", http.MethodGet, "/api/folders", "Bearer bad", http.StatusUnauthorized, ""},
		{"health is public", http.MethodGet, "/health", "", http.StatusOK, ""},
		{"blobs are public", http.MethodGet, "/blobs/image/x.jpg", "", http.StatusOK, ""},
		{"preflight passes", http.MethodOptions, "/api/folders", "", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, w.Body.String())
			} else {
				assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	handler := Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/assets", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, logs.String(), "panic recovered")
	assert.Contains(t, logs.String(), "boom")
}

func TestRequestLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondError(w, http.StatusNotFound, "folder not found")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/folders/x", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	line := logs.String()
	assert.Contains(t, line, `"level":"WARN"`)
	assert.Contains(t, line, `"status":404`)
	assert.True(t, strings.Contains(line, `"path":"/api/folders/x"`))

	logs.Reset()
	quiet := RequestLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))(echoUser())
	w = httptest.NewRecorder()
	quiet.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = httputil.RequestID(r)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestRecovery_LogsRequestID(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	handler := RequestID()(Recovery(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	assert.Contains(t, logs.String(), `"request_id":"req-42"`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id":"req-42"`)
	assert.Contains(t, w.Body.String(), `"instance":"/"`)
}
