//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	platformpostgres "tridcheck/internal/platform/postgres"
	id "tridcheck/pkg/domain"
	audit "tridcheck/pkg/platform/audit"
	auditpostgres "tridcheck/pkg/platform/audit/store/postgres"
	txcontext "tridcheck/pkg/platform/tx"
	"tridcheck/pkg/testutil/containers"
)

// =============================================================================
// Postgres Audit Store Integration Suite
// =============================================================================
// Justification for integration tests: the store leans on postgres behavior
// (JSONB payloads, ON CONFLICT DO NOTHING idempotency, timestamp ordering)
// that sqlmock cannot verify. Tests run against a real instance and cover
// the outbox staging format, unified event materialization, and the
// per-category projection tables.

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *auditpostgres.Store
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.pg = mgr.GetPostgres(s.T())
	s.Require().NoError(platformpostgres.EnsureSchema(context.Background(), s.pg.DB))
	s.store = auditpostgres.New(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.pg.TruncateAll(context.Background(),
		"outbox", "audit_events", "audit_compliance", "audit_security", "audit_ops")
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) complianceEvent(checkID id.CheckID) audit.Event {
	return audit.Event{
		Category:        audit.CategoryCompliance,
		Timestamp:       time.Now().UTC(),
		CheckID:         checkID,
		Subject:         "closing disclosure comparison",
		Action:          string(audit.EventCheckCompleted),
		Outcome:         "not_compliant",
		LoanRefHash:     "4f8a0b2c",
		ScheduleVersion: "2026.01",
		ViolationCount:  2,
		RequestID:       "req-pg-1",
	}
}

func (s *PostgresStoreSuite) TestAppendStagesOutboxEntry() {
	ctx := context.Background()
	checkID := id.NewCheckID()
	s.Require().NoError(s.store.Append(ctx, s.complianceEvent(checkID)))

	var (
		aggregateType string
		aggregateID   string
		eventType     string
		rawPayload    []byte
	)
	row := s.pg.DB.QueryRowContext(ctx,
		`SELECT aggregate_type, aggregate_id, event_type, payload FROM outbox`)
	s.Require().NoError(row.Scan(&aggregateType, &aggregateID, &eventType, &rawPayload))

	s.Equal("check", aggregateType)
	s.Equal(checkID.String(), aggregateID)
	s.Equal(string(audit.EventCheckCompleted), eventType)

	var payload struct {
		ID       string `json:"ID"`
		Category string `json:"Category"`
		CheckID  string `json:"CheckID"`
		Outcome  string `json:"Outcome"`
	}
	s.Require().NoError(json.Unmarshal(rawPayload, &payload))
	_, err := uuid.Parse(payload.ID)
	s.Require().NoError(err, "payload carries the event ID used as the Kafka key")
	s.Equal(string(audit.CategoryCompliance), payload.Category)
	s.Equal(checkID.String(), payload.CheckID)
	s.Equal("not_compliant", payload.Outcome)
}

func (s *PostgresStoreSuite) TestAppendWithoutCheckIDUsesAuditAggregate() {
	ctx := context.Background()
	s.Require().NoError(s.store.Append(ctx, audit.Event{
		Timestamp: time.Now().UTC(),
		Subject:   "203.0.113.9",
		Action:    string(audit.EventRateLimitExceeded),
		Reason:    "window_exhausted",
		IP:        "203.0.113.9",
		Severity:  "warning",
	}))

	var aggregateType string
	row := s.pg.DB.QueryRowContext(ctx, `SELECT aggregate_type FROM outbox`)
	s.Require().NoError(row.Scan(&aggregateType))
	s.Equal("audit", aggregateType)
}

func (s *PostgresStoreSuite) TestAppendWithIDIsIdempotent() {
	ctx := context.Background()
	checkID := id.NewCheckID()
	eventID := uuid.New()
	event := s.complianceEvent(checkID)

	s.Require().NoError(s.store.AppendWithID(ctx, eventID, event))
	s.Require().NoError(s.store.AppendWithID(ctx, eventID, event), "redelivery must not error")

	events, err := s.store.ListByCheck(ctx, checkID)
	s.Require().NoError(err)
	s.Require().Len(events, 1, "duplicate event IDs collapse to one row")
	s.Equal(string(audit.EventCheckCompleted), events[0].Action)
	s.Equal("not_compliant", events[0].Outcome)
	s.Equal(2, events[0].ViolationCount)
	s.Equal(audit.CategoryCompliance, events[0].Category)
}

func (s *PostgresStoreSuite) TestListByCheckFiltersAndOrdersNewestFirst() {
	ctx := context.Background()
	checkA := id.NewCheckID()
	checkB := id.NewCheckID()
	base := time.Now().UTC().Truncate(time.Millisecond)

	older := s.complianceEvent(checkA)
	older.Timestamp = base.Add(-2 * time.Minute)
	newer := s.complianceEvent(checkA)
	newer.Timestamp = base.Add(-1 * time.Minute)
	newer.Outcome = "compliant"
	newer.ViolationCount = 0
	other := s.complianceEvent(checkB)

	s.Require().NoError(s.store.AppendWithID(ctx, uuid.New(), older))
	s.Require().NoError(s.store.AppendWithID(ctx, uuid.New(), newer))
	s.Require().NoError(s.store.AppendWithID(ctx, uuid.New(), other))

	events, err := s.store.ListByCheck(ctx, checkA)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal("compliant", events[0].Outcome, "newest event first")
	s.Equal("not_compliant", events[1].Outcome)
	s.True(events[0].Timestamp.After(events[1].Timestamp))
}

func (s *PostgresStoreSuite) TestListRecentHonorsLimit() {
	ctx := context.Background()
	base := time.Now().UTC().Truncate(time.Millisecond)

	for i := range 3 {
		event := s.complianceEvent(id.NewCheckID())
		event.Timestamp = base.Add(time.Duration(i) * time.Second)
		s.Require().NoError(s.store.AppendWithID(ctx, uuid.New(), event))
	}

	events, err := s.store.ListRecent(ctx, 2)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.True(events[0].Timestamp.After(events[1].Timestamp))
}

func (s *PostgresStoreSuite) TestSecurityFieldsSurviveRoundTrip() {
	ctx := context.Background()
	s.Require().NoError(s.store.AppendWithID(ctx, uuid.New(), audit.Event{
		Category:  audit.CategorySecurity,
		Timestamp: time.Now().UTC(),
		Subject:   "203.0.113.10",
		Action:    string(audit.EventRateLimitExceeded),
		Reason:    "window_exhausted",
		RequestID: "req-pg-2",
		IP:        "203.0.113.10",
		Severity:  "warning",
	}))

	events, err := s.store.ListAll(ctx)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("203.0.113.10", events[0].IP)
	s.Equal("warning", events[0].Severity)
	s.True(events[0].CheckID.IsZero())
}

// Append joins a caller-owned transaction when one rides the context, so the
// outbox entry commits or rolls back atomically with the business write.
func (s *PostgresStoreSuite) TestAppendJoinsCallerTransaction() {
	ctx := context.Background()

	tx, err := s.pg.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(txcontext.WithTx(ctx, tx), s.complianceEvent(id.NewCheckID())))
	s.Require().NoError(tx.Rollback())

	var n int
	row := s.pg.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`)
	s.Require().NoError(row.Scan(&n))
	s.Equal(0, n, "rollback discards the staged entry")

	tx, err = s.pg.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Append(txcontext.WithTx(ctx, tx), s.complianceEvent(id.NewCheckID())))
	s.Require().NoError(tx.Commit())

	row = s.pg.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM outbox`)
	s.Require().NoError(row.Scan(&n))
	s.Equal(1, n, "commit stages the entry")
}

func (s *PostgresStoreSuite) TestCategoryProjectionsAreIdempotent() {
	ctx := context.Background()
	now := time.Now().UTC()

	complianceID := uuid.New()
	compliance := audit.ComplianceRecord{
		Timestamp:       now,
		CheckID:         id.NewCheckID(),
		Subject:         "closing disclosure comparison",
		Action:          string(audit.EventCheckCompleted),
		Outcome:         "compliant",
		LoanRefHash:     "77aa00",
		ScheduleVersion: "2026.01",
		RequestID:       "req-pg-3",
	}
	s.Require().NoError(s.store.AppendCompliance(ctx, complianceID, compliance))
	s.Require().NoError(s.store.AppendCompliance(ctx, complianceID, compliance))

	securityID := uuid.New()
	security := audit.SecurityRecord{
		Timestamp: now,
		Subject:   "203.0.113.11",
		Action:    string(audit.EventRateLimitExceeded),
		Reason:    "window_exhausted",
		IP:        "203.0.113.11",
		RequestID: "req-pg-4",
		Severity:  "warning",
	}
	s.Require().NoError(s.store.AppendSecurity(ctx, securityID, security))
	s.Require().NoError(s.store.AppendSecurity(ctx, securityID, security))

	opsID := uuid.New()
	ops := audit.OpsRecord{
		Timestamp: now,
		Subject:   "2026.01",
		Action:    string(audit.EventScheduleLoaded),
		RequestID: "req-pg-5",
	}
	s.Require().NoError(s.store.AppendOps(ctx, opsID, ops))
	s.Require().NoError(s.store.AppendOps(ctx, opsID, ops))

	for _, tc := range []struct {
		table string
		want  int
	}{
		{"audit_compliance", 1},
		{"audit_security", 1},
		{"audit_ops", 1},
	} {
		var n int
		row := s.pg.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+tc.table)
		s.Require().NoError(row.Scan(&n))
		s.Equal(tc.want, n, "table %s", tc.table)
	}

	var severity, ip string
	row := s.pg.DB.QueryRowContext(ctx, `SELECT severity, ip FROM audit_security`)
	s.Require().NoError(row.Scan(&severity, &ip))
	s.Equal("warning", severity)
	s.Equal("203.0.113.11", ip)
}
