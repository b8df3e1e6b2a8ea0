package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"

	"medialib/internal/httputil"
)

// Recovery turns a handler panic into a 500 problem carrying the request id,
// so a client report can be matched to the logged stack.
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				requestID := httputil.RequestID(r)
				logger.Error("panic recovered",
					"error", fmt.Sprint(rec),
					"method", r.Method,
					"path", r.URL.Path,
					"user_id", httputil.GetUserID(r),
					"request_id", requestID,
					"stack", string(debug.Stack()),
				)

				problem := httputil.NewProblem(http.StatusInternalServerError, "internal server error")
				problem.Instance = r.URL.Path
				if requestID != "" {
					problem.Extra = map[string]interface{}{"request_id": requestID}
				}
				httputil.RespondProblem(w, problem)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
