// Command auditworker runs the audit streaming pipeline: the outbox relay
// publishes staged events from postgres to Kafka, and a consumer group
// materializes them into the per-category audit_compliance, audit_security,
// and audit_ops tables. The HTTP server and MCP server stay functional
// without this worker; events simply accumulate in the outbox until it runs.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"tridcheck/internal/platform/config"
	"tridcheck/internal/platform/kafka/admin"
	kafkaconsumer "tridcheck/internal/platform/kafka/consumer"
	"tridcheck/internal/platform/kafka/producer"
	"tridcheck/internal/platform/logger"
	"tridcheck/internal/platform/postgres"
	audit "tridcheck/pkg/platform/audit"
	auditconsumer "tridcheck/pkg/platform/audit/consumer"
	auditpostgres "tridcheck/pkg/platform/audit/store/postgres"
	"tridcheck/pkg/platform/audit/worker"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("audit worker exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("TRIDCHECK_KAFKA_BROKERS is required")
	}

	db, err := postgres.Open(cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	if db == nil {
		return fmt.Errorf("TRIDCHECK_POSTGRES_DSN is required")
	}
	defer db.Close()
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}

	topics := []string{audit.TopicCompliance, audit.TopicSecurity, audit.TopicOps}
	if err := admin.EnsureTopics(ctx, cfg.Kafka.Brokers, cfg.Kafka.Partitions, topics...); err != nil {
		return err
	}
	log.Info("audit topics ready", "topics", topics, "partitions", cfg.Kafka.Partitions)

	prod, err := producer.New(cfg.Kafka.Brokers)
	if err != nil {
		return err
	}
	defer prod.Close()
	if err := prod.Ping(ctx); err != nil {
		return fmt.Errorf("kafka ping: %w", err)
	}

	relay := worker.NewRelay(db, prod, log)

	// Every topic fills the unified audit_events table plus its
	// per-category projection.
	store := auditpostgres.New(db)
	events := auditconsumer.NewEventsHandler(store, log)
	router := auditconsumer.NewRouter(log, nil)
	router.Register(audit.TopicCompliance, auditconsumer.Tee{events, auditconsumer.NewComplianceHandler(store, log)})
	router.Register(audit.TopicSecurity, auditconsumer.Tee{events, auditconsumer.NewSecurityHandler(store, log)})
	router.Register(audit.TopicOps, auditconsumer.Tee{events, auditconsumer.NewOpsHandler(store, log)})

	cons, err := kafkaconsumer.New(cfg.Kafka.Brokers, cfg.Kafka.ConsumerGroup, topics, router, log)
	if err != nil {
		return err
	}
	defer cons.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("outbox relay started")
		return ignoreCanceled(relay.Run(gctx))
	})
	g.Go(func() error {
		log.Info("audit consumer started", "group", cfg.Kafka.ConsumerGroup)
		return ignoreCanceled(cons.Run(gctx))
	})

	return g.Wait()
}

// ignoreCanceled maps context cancellation onto a clean shutdown.
func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
