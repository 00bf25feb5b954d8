package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/service"
	"tridcheck/internal/compliance/tolerance"
	"tridcheck/pkg/platform/httputil"
	"tridcheck/pkg/requestcontext"
)

// Service defines the interface for compliance operations.
type Service interface {
	Check(ctx context.Context, input models.CheckInput) (*service.CheckResult, error)
	Classify(ctx context.Context, fees []service.FeeToClassify) (*service.ClassifyResult, error)
	ScheduleDocument(ctx context.Context) tolerance.Document
}

// Handler wires compliance endpoints to the compliance service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a compliance handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts all compliance endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	h.RegisterChecks(r)
	h.RegisterReads(r)
}

// RegisterChecks mounts the endpoints that execute comparisons. The router
// applies the check-class rate limit to this group.
func (h *Handler) RegisterChecks(r chi.Router) {
	r.Post("/compliance/check", h.HandleCheck)
	r.Post("/compliance/classify", h.HandleClassify)
}

// RegisterReads mounts the read-only endpoints.
func (h *Handler) RegisterReads(r chi.Router) {
	r.Get("/compliance/schedule", h.HandleSchedule)
}

// HandleCheck handles POST /v1/compliance/check requests.
func (h *Handler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	req, ok := httputil.DecodeAndPrepare[CheckRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Check(ctx, req.ParsedInput())
	if err != nil {
		h.logger.WarnContext(ctx, "compliance check failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "compliance check served",
		"request_id", requestID,
		"api_version", requestcontext.APIVersion(ctx),
		"check_id", result.CheckID,
		"is_compliant", result.Report.IsCompliant,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	httputil.WriteJSON(w, http.StatusOK, FromCheckResult(result))
}

// HandleClassify handles POST /v1/compliance/classify requests.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ClassifyRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	result, err := h.service.Classify(ctx, req.ParsedFees())
	if err != nil {
		h.logger.WarnContext(ctx, "fee classification failed",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FromClassifyResult(result))
}

// HandleSchedule handles GET /v1/compliance/schedule requests.
func (h *Handler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	doc := h.service.ScheduleDocument(r.Context())
	httputil.WriteJSON(w, http.StatusOK, doc)
}
