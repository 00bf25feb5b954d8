// Package requestid assigns every request a correlation ID and echoes it
// back in the response. The ID threads through logs and audit events so a
// single check can be traced across the HTTP layer, the service, and the
// audit trail.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"tridcheck/pkg/requestcontext"
)

// Header is the request/response header carrying the correlation ID.
const Header = "X-Request-ID"

// maxLen caps caller-supplied IDs so log lines stay bounded.
const maxLen = 64

// Middleware reuses a caller-supplied X-Request-ID when present and sane,
// generates a fresh UUID otherwise, and sets the header on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(Header)
		if requestID == "" || len(requestID) > maxLen {
			requestID = uuid.NewString()
		}

		w.Header().Set(Header, requestID)
		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
