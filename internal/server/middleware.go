package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/slackmirror/slackmirror/internal/mirror"
	"github.com/slackmirror/slackmirror/internal/tenant"
	"github.com/slackmirror/slackmirror/internal/webhook"
)

// withRecovery is the last-resort boundary: panics become a generic 500 and
// never leak internals to the caller.
func (s *Server) withRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("handler panicked", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps typed errors to HTTP status codes. Unknown errors become a
// generic 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"
	switch {
	case errors.Is(err, tenant.ErrUnknownTenant):
		status = http.StatusBadRequest
		message = "unknown tenant"
	case errors.Is(err, webhook.ErrBadSignature):
		status = http.StatusForbidden
		message = "invalid signature"
	case errors.Is(err, webhook.ErrMalformedPayload):
		status = http.StatusBadRequest
		message = "invalid JSON payload"
	case errors.Is(err, mirror.ErrUpstreamUnavailable):
		status = http.StatusServiceUnavailable
		message = "upstream unavailable"
	default:
		s.logger.Error("unhandled error", "error", err)
	}
	writeJSON(w, status, map[string]any{"error": message})
}

// writeLookupError is writeError for the read-side organization routes,
// where a missing tenant is a 404 on the resource rather than a bad request.
func (s *Server) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, tenant.ErrUnknownTenant) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown organization"})
		return
	}
	s.writeError(w, err)
}
