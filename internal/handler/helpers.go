package handler

import (
	"errors"
	"net/http"

	"medialib/internal/domain"
	"medialib/internal/httputil"
)

// handleError converts domain errors to RFC 7807 responses
func handleError(w http.ResponseWriter, err error) {
	status := domain.StatusCode(err)

	var conflictErr *domain.ConflictError
	var upstreamErr *domain.UpstreamUnavailableError

	switch {
	case errors.As(err, &conflictErr):
		httputil.RespondErrorWithExtras(w, status, conflictErr.Error(), map[string]interface{}{
			"resource_type": conflictErr.ResourceType,
			"resource_id":   conflictErr.ResourceID,
		})
	case errors.As(err, &upstreamErr):
		httputil.RespondErrorWithExtras(w, status, upstreamErr.Message, map[string]interface{}{
			"upstream": upstreamErr.Upstream,
		})
	case errors.Is(err, domain.ErrCorruption):
		httputil.RespondError(w, status, err.Error())
	case status >= http.StatusInternalServerError:
		httputil.RespondError(w, status, "internal server error")
	default:
		httputil.RespondError(w, status, err.Error())
	}
}

// HandleCreateConflict handles conflicts during creation by returning the existing resource with 409
// If the error is a ConflictError, it calls fetchFn with the existing resource's id
func HandleCreateConflict[T any](w http.ResponseWriter, err error, fetchFn func(id string) (*T, error)) {
	var conflictErr *domain.ConflictError
	if errors.As(err, &conflictErr) && conflictErr.ResourceID != "" {
		existing, fetchErr := fetchFn(conflictErr.ResourceID)
		if fetchErr != nil {
			handleError(w, err)
			return
		}

		httputil.RespondJSON(w, http.StatusConflict, existing)
		return
	}

	handleError(w, err)
}

// PathParam reads a required path value, responding 400 when it is empty
func PathParam(w http.ResponseWriter, r *http.Request, name, label string) (string, bool) {
	value := r.PathValue(name)
	if value == "" {
		httputil.RespondError(w, http.StatusBadRequest, label+" is required")
		return "", false
	}
	return value, true
}

// scopeParam maps the root scope spellings ("", "null", "root") to nil
func scopeParam(value string) *string {
	switch value {
	case "", "null", "root":
		return nil
	}
	return &value
}

// respondBadBody answers a JSON decode failure with 413 or 400
func respondBadBody(w http.ResponseWriter, err error) {
	if httputil.IsBodyTooLarge(err) {
		httputil.RespondError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	httputil.RespondError(w, http.StatusBadRequest, "Invalid request body")
}
