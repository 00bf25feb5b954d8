package testutil

import (
	"net/http"
	"time"

	"tridcheck/pkg/requestcontext"
)

// WithRequestID stamps a request ID on the request context, simulating what
// the requestid middleware does in the full chain.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	ctx := requestcontext.WithRequestID(req.Context(), requestID)
	return req.WithContext(ctx)
}

// WithClientIP records client metadata on the request context, simulating the
// metadata middleware. User-Agent defaults to a test marker.
func WithClientIP(req *http.Request, ip string) *http.Request {
	ctx := requestcontext.WithClientMetadata(req.Context(), ip, "testutil/1.0")
	return req.WithContext(ctx)
}

// WithFrozenTime pins the request timestamp so time-sensitive assertions are
// deterministic.
func WithFrozenTime(req *http.Request, at time.Time) *http.Request {
	ctx := requestcontext.WithTime(req.Context(), at)
	return req.WithContext(ctx)
}
