// Package service orchestrates compliance checks: it runs the engine,
// records the fail-closed audit trail, and reports metrics. Handlers and
// the MCP server both sit on top of this layer.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tridcheck/internal/compliance/engine"
	"tridcheck/internal/compliance/metrics"
	"tridcheck/internal/compliance/models"
	"tridcheck/internal/compliance/ports"
	"tridcheck/internal/compliance/tolerance"
	id "tridcheck/pkg/domain"
	dErrors "tridcheck/pkg/domain-errors"
	"tridcheck/pkg/platform/audit"
	"tridcheck/pkg/requestcontext"
)

var tracer trace.Tracer = otel.Tracer("tridcheck/internal/compliance")

// CheckResult pairs a compliance report with the check ID assigned to it.
type CheckResult struct {
	CheckID id.CheckID
	Report  *models.ComplianceReport
}

// FeeToClassify names one fee line for bucket resolution.
type FeeToClassify struct {
	Name     string
	Category models.FeeCategory
}

// ClassifyResult carries resolved buckets and the schedule that produced them.
type ClassifyResult struct {
	ScheduleVersion string
	Classified      []models.ClassifiedFee
}

// Service runs compliance checks and classification lookups.
type Service struct {
	engine  *engine.Engine
	logger  *slog.Logger
	publish ports.CompliancePublisher
	ops     ports.OpsTracker
	metrics *metrics.Metrics
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithCompliancePublisher enables the fail-closed audit trail. Without a
// publisher, checks complete but leave no compliance record; only wire
// this as nil in tests.
func WithCompliancePublisher(publisher ports.CompliancePublisher) Option {
	return func(s *Service) {
		s.publish = publisher
	}
}

func WithOpsTracker(tracker ports.OpsTracker) Option {
	return func(s *Service) {
		s.ops = tracker
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service around a configured engine.
func New(eng *engine.Engine, opts ...Option) *Service {
	s := &Service{engine: eng}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.metrics.SetScheduleVersion(eng.ScheduleVersion())
	return s
}

// ScheduleVersion returns the version of the tolerance schedule in use.
func (s *Service) ScheduleVersion() string {
	return s.engine.ScheduleVersion()
}

// Check runs a full compliance comparison and records it in the audit
// trail. The report is released only after the compliance event has been
// durably accepted; an audit failure fails the check.
func (s *Service) Check(ctx context.Context, input models.CheckInput) (*CheckResult, error) {
	ctx, span := tracer.Start(ctx, "compliance.check")
	defer span.End()

	start := time.Now()
	checkID := id.NewCheckID()
	span.SetAttributes(attribute.String("check_id", checkID.String()))

	report, err := s.engine.Check(input)
	if err != nil {
		s.metrics.IncrementCheckOutcome("error")
		span.RecordError(err)
		s.logger.WarnContext(ctx, "compliance check rejected",
			"check_id", checkID,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}

	outcome := "not_compliant"
	if report.IsCompliant {
		outcome = "compliant"
	}

	// Fail closed: the report must not reach the caller unless the audit
	// trail has accepted the event.
	if s.publish != nil {
		event := audit.ComplianceEvent{
			CheckID:         checkID,
			Action:          string(audit.EventCheckCompleted),
			Outcome:         outcome,
			ScheduleVersion: report.ScheduleVersion,
			ViolationCount:  len(report.Violations),
			RequestID:       requestcontext.RequestID(ctx),
		}
		if input.LoanReference != "" {
			event.LoanRefHash = audit.HashReference(input.LoanReference)
			event.Subject = event.LoanRefHash[:12]
		}
		if err := s.publish.Emit(ctx, event); err != nil {
			s.metrics.IncrementCheckOutcome("error")
			span.RecordError(err)
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "audit trail unavailable, check not recorded")
		}
	}

	duration := time.Since(start)
	s.metrics.ObserveCheckLatency(duration)
	s.metrics.IncrementCheckOutcome(outcome)
	for violationType, n := range countViolations(report.Violations) {
		s.metrics.CountViolations(string(violationType), n)
	}

	s.logger.InfoContext(ctx, "compliance check completed",
		"check_id", checkID,
		"outcome", outcome,
		"violations", len(report.Violations),
		"warnings", len(report.Warnings),
		"schedule_version", report.ScheduleVersion,
		"duration_ms", duration.Milliseconds(),
		"request_id", requestcontext.RequestID(ctx),
	)

	return &CheckResult{CheckID: checkID, Report: report}, nil
}

// Classify resolves the tolerance bucket for each fee without running a
// check. Fails atomically: one unknown category rejects the whole request.
func (s *Service) Classify(ctx context.Context, fees []FeeToClassify) (*ClassifyResult, error) {
	ctx, span := tracer.Start(ctx, "compliance.classify")
	defer span.End()

	if len(fees) == 0 {
		s.metrics.IncrementClassifyOutcome("error")
		return nil, dErrors.New(dErrors.CodeValidation, "at least one fee is required")
	}

	classifier := s.engine.Classifier()
	classified := make([]models.ClassifiedFee, 0, len(fees))
	for _, fee := range fees {
		bucket, err := classifier.ClassifyNamed(fee.Category, fee.Name)
		if err != nil {
			s.metrics.IncrementClassifyOutcome("error")
			span.RecordError(err)
			return nil, err
		}
		classified = append(classified, models.ClassifiedFee{
			Name:     fee.Name,
			Category: fee.Category,
			Bucket:   bucket,
		})
	}

	s.metrics.IncrementClassifyOutcome("ok")
	s.trackOps(ctx, audit.OpsEvent{
		Subject: s.engine.ScheduleVersion(),
		Action:  string(audit.EventFeesClassified),
	})

	return &ClassifyResult{
		ScheduleVersion: s.engine.ScheduleVersion(),
		Classified:      classified,
	}, nil
}

// ScheduleDocument returns the active tolerance schedule for inspection.
func (s *Service) ScheduleDocument(ctx context.Context) tolerance.Document {
	s.trackOps(ctx, audit.OpsEvent{
		Subject: s.engine.ScheduleVersion(),
		Action:  string(audit.EventScheduleServed),
	})
	return s.engine.Schedule().Document()
}

func (s *Service) trackOps(ctx context.Context, event audit.OpsEvent) {
	if s.ops == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	s.ops.Track(ctx, event)
}

func countViolations(violations []models.Violation) map[models.ViolationType]int {
	counts := make(map[models.ViolationType]int)
	for _, v := range violations {
		counts[v.Type]++
	}
	return counts
}
