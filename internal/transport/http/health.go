package http

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the backing store can serve requests.
type Pinger func(ctx context.Context) error

const healthTimeout = 2 * time.Second

// HealthHandler answers 200 while the store responds to ping, 503 otherwise.
// A nil ping reports liveness only.
func HealthHandler(ping Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
			defer cancel()
			if err := ping(ctx); err != nil {
				writeError(w, http.StatusServiceUnavailable, codeUnavailable, "store unavailable")
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
