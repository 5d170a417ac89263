package gateway

import (
	"crypto/subtle"
	"net/http"
)

// APIKeyHeader carries the shared secret.
const APIKeyHeader = "Api-Key"

// requireAPIKey rejects requests whose Api-Key header does not match the
// configured secret. The comparison takes the same time for every key of
// a given length.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get(APIKeyHeader)
		if subtle.ConstantTimeCompare([]byte(got), s.apiKey) != 1 {
			route := r.URL.Path
			s.metrics.RecordAuthRejection(r.Context(), route)
			s.logger.Warn("Rejected request with invalid API key",
				"route", route,
				"key_present", got != "")
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}
