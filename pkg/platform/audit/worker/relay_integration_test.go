//go:build integration

package worker_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tridcheck/internal/platform/kafka/admin"
	kafkaconsumer "tridcheck/internal/platform/kafka/consumer"
	"tridcheck/internal/platform/kafka/producer"
	platformpostgres "tridcheck/internal/platform/postgres"
	id "tridcheck/pkg/domain"
	audit "tridcheck/pkg/platform/audit"
	auditconsumer "tridcheck/pkg/platform/audit/consumer"
	auditpostgres "tridcheck/pkg/platform/audit/store/postgres"
	"tridcheck/pkg/platform/audit/worker"
	"tridcheck/pkg/testutil/containers"
)

// =============================================================================
// Audit Pipeline Integration Suite
// =============================================================================
// Justification for integration tests: the outbox pattern's guarantees only
// hold end to end. Tests run the full path (store append, relay drain,
// Redpanda, consumer group, table materialization) against real containers
// and verify that outbox entries are deleted only after delivery and that
// malformed entries cannot wedge the relay.

const pipelineWait = 60 * time.Second

type PipelineSuite struct {
	suite.Suite
	pg       *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *auditpostgres.Store
	logger   *slog.Logger
}

func TestPipelineSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PipelineSuite))
}

func (s *PipelineSuite) SetupSuite() {
	ctx := context.Background()
	mgr := containers.GetManager()
	s.pg = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())

	s.Require().NoError(platformpostgres.EnsureSchema(ctx, s.pg.DB))
	s.Require().NoError(admin.EnsureTopics(ctx, s.redpanda.Brokers, 1,
		audit.TopicCompliance, audit.TopicSecurity, audit.TopicOps))

	s.store = auditpostgres.New(s.pg.DB)
	s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *PipelineSuite) SetupTest() {
	err := s.pg.TruncateAll(context.Background(),
		"outbox", "audit_events", "audit_compliance", "audit_security", "audit_ops")
	s.Require().NoError(err)
}

func (s *PipelineSuite) TestOutboxEventsReachProjections() {
	ctx := context.Background()
	runCtx, cancel := context.WithCancel(ctx)

	prod, err := producer.New(s.redpanda.Brokers)
	s.Require().NoError(err)
	defer prod.Close()
	s.Require().NoError(prod.Ping(ctx))

	relay := worker.NewRelay(s.pg.DB, prod, s.logger,
		worker.WithPollInterval(100*time.Millisecond))

	events := auditconsumer.NewEventsHandler(s.store, s.logger)
	router := auditconsumer.NewRouter(s.logger, nil)
	router.Register(audit.TopicCompliance, auditconsumer.Tee{events, auditconsumer.NewComplianceHandler(s.store, s.logger)})
	router.Register(audit.TopicSecurity, auditconsumer.Tee{events, auditconsumer.NewSecurityHandler(s.store, s.logger)})
	router.Register(audit.TopicOps, auditconsumer.Tee{events, auditconsumer.NewOpsHandler(s.store, s.logger)})

	cons, err := kafkaconsumer.New(s.redpanda.Brokers, "pipeline-"+uuid.NewString(),
		[]string{audit.TopicCompliance, audit.TopicSecurity, audit.TopicOps}, router, s.logger)
	s.Require().NoError(err)
	defer cons.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_ = relay.Run(runCtx)
	}()
	go func() {
		defer wg.Done()
		_ = cons.Run(runCtx)
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	checkID := id.NewCheckID()
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp:       time.Now().UTC(),
		CheckID:         checkID,
		Subject:         "closing disclosure comparison",
		Action:          string(audit.EventCheckCompleted),
		Outcome:         "not_compliant",
		LoanRefHash:     "e29b77",
		ScheduleVersion: "2026.01",
		ViolationCount:  2,
		RequestID:       "req-pipe-1",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		Subject:   "203.0.113.20",
		Action:    string(audit.EventRateLimitExceeded),
		Reason:    "window_exhausted",
		RequestID: "req-pipe-2",
		IP:        "203.0.113.20",
		Severity:  "warning",
	}))
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		Subject:   "2026.01",
		Action:    string(audit.EventScheduleLoaded),
		RequestID: "req-pipe-3",
	}))

	// Unified table, via the compliance check trail.
	s.Require().Eventually(func() bool {
		got, err := s.store.ListByCheck(ctx, checkID)
		return err == nil && len(got) == 1
	}, pipelineWait, 250*time.Millisecond, "compliance event should reach audit_events")

	got, err := s.store.ListByCheck(ctx, checkID)
	s.Require().NoError(err)
	s.Equal(string(audit.EventCheckCompleted), got[0].Action)
	s.Equal("not_compliant", got[0].Outcome)
	s.Equal(2, got[0].ViolationCount)
	s.Equal("2026.01", got[0].ScheduleVersion)
	s.Equal(audit.CategoryCompliance, got[0].Category)

	// Per-category projections.
	s.Require().Eventually(func() bool {
		var n int
		err := s.pg.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM audit_compliance WHERE check_id = $1`,
			uuid.UUID(checkID)).Scan(&n)
		return err == nil && n == 1
	}, pipelineWait, 250*time.Millisecond, "compliance projection")

	s.Require().Eventually(func() bool {
		var n int
		err := s.pg.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM audit_security WHERE request_id = 'req-pipe-2' AND ip = '203.0.113.20' AND severity = 'warning'`).Scan(&n)
		return err == nil && n >= 1
	}, pipelineWait, 250*time.Millisecond, "security projection with IP and severity")

	s.Require().Eventually(func() bool {
		var n int
		err := s.pg.DB.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM audit_ops WHERE request_id = 'req-pipe-3'`).Scan(&n)
		return err == nil && n >= 1
	}, pipelineWait, 250*time.Millisecond, "ops projection")

	// Entries leave the outbox only after the broker acknowledged them.
	s.Require().Eventually(func() bool {
		var n int
		err := s.pg.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n)
		return err == nil && n == 0
	}, pipelineWait, 250*time.Millisecond, "outbox drained")
}

func (s *PipelineSuite) TestRelayDropsMalformedEntries() {
	ctx := context.Background()
	runCtx, cancel := context.WithCancel(ctx)

	_, err := s.pg.DB.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, 'audit', $2, 'bogus_event', $3, NOW())
	`, uuid.New(), uuid.NewString(), []byte(`{"ID":"not-a-uuid","Category":"compliance"}`))
	s.Require().NoError(err)

	prod, err := producer.New(s.redpanda.Brokers)
	s.Require().NoError(err)
	defer prod.Close()

	relay := worker.NewRelay(s.pg.DB, prod, s.logger,
		worker.WithPollInterval(100*time.Millisecond))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = relay.Run(runCtx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	s.Require().Eventually(func() bool {
		var n int
		err := s.pg.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`).Scan(&n)
		return err == nil && n == 0
	}, pipelineWait, 100*time.Millisecond, "malformed entry should be dropped, not retried forever")
}
