package httputil

import (
	"context"
	"net/http"
)

type ctxKey int

const (
	userIDKey ctxKey = iota
	requestIDKey
)

// WithUserID returns r carrying the authenticated owner id
func WithUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), userIDKey, userID))
}

// GetUserID returns the owner id, or "" for anonymous requests
func GetUserID(r *http.Request) string {
	return UserIDFromContext(r.Context())
}

// UserIDFromContext is GetUserID for code that only holds a context
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// WithRequestID returns r carrying a correlation id for log lines
func WithRequestID(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), requestIDKey, id))
}

// RequestID returns the correlation id, or ""
func RequestID(r *http.Request) string {
	id, _ := r.Context().Value(requestIDKey).(string)
	return id
}
