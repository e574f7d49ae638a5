// Package middleware provides shared HTTP middleware
package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	perr "alertrecon/internal/platform/errors"
	"alertrecon/internal/platform/logger"
)

// RecoverJSON converts panics into a 500 JSON envelope instead of a dropped connection
func RecoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.C(r.Context()).Error().
					Interface("panic", rec).
					Bytes("stack", debug.Stack()).
					Msg("panic recovered")

				wire := perr.WireFrom(perr.PanicErrf("internal error"))
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(map[string]any{
					"status": http.StatusInternalServerError,
					"error":  wire,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
