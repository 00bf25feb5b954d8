// Package httpapi assembles the HTTP surface: request plumbing middleware,
// operational endpoints, and the versioned compliance API.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"tridcheck/internal/compliance/handler"
	"tridcheck/internal/platform/metrics"
	"tridcheck/internal/ratelimit"
	id "tridcheck/pkg/domain"
	"tridcheck/pkg/platform/httputil"
	"tridcheck/pkg/platform/middleware/metadata"
	"tridcheck/pkg/platform/middleware/requestid"
	"tridcheck/pkg/platform/middleware/requesttime"
	"tridcheck/pkg/platform/middleware/version"
)

// Deps carries everything the router mounts. RateLimit and HTTPMetrics may be
// nil; the router then serves without them.
type Deps struct {
	Compliance      *handler.Handler
	HTTPMetrics     *metrics.HTTP
	RateLimit       *ratelimit.Middleware
	ScheduleVersion string
}

// NewRouter wires the middleware chain and mounts all endpoints. Order
// matters: request ID and client metadata must be in the context before the
// metrics middleware and the rate limiter read them.
func NewRouter(deps Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Middleware)
	}

	r.Get("/healthz", handleHealth(deps.ScheduleVersion))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(version.ExtractVersion(id.APIVersionV1))

		v1.Group(func(g chi.Router) {
			if deps.RateLimit != nil {
				g.Use(deps.RateLimit.Limit(ratelimit.ClassCheck))
			}
			deps.Compliance.RegisterChecks(g)
		})

		v1.Group(func(g chi.Router) {
			if deps.RateLimit != nil {
				g.Use(deps.RateLimit.Limit(ratelimit.ClassRead))
			}
			deps.Compliance.RegisterReads(g)
		})
	})

	return r
}

type healthResponse struct {
	Status          string `json:"status"`
	ScheduleVersion string `json:"schedule_version,omitempty"`
}

func handleHealth(scheduleVersion string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, healthResponse{
			Status:          "ok",
			ScheduleVersion: scheduleVersion,
		})
	}
}
