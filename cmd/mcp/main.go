// Command mcp exposes the compliance engine over the Model Context Protocol
// so agent runtimes can run tolerance checks without the HTTP API. The only
// transport is stdio; stdout carries the protocol stream, so all logging
// goes to stderr.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"tridcheck/internal/compliance/engine"
	"tridcheck/internal/compliance/service"
	"tridcheck/internal/compliance/tolerance"
	tridmcp "tridcheck/internal/mcp"
	"tridcheck/internal/platform/config"
	"tridcheck/internal/platform/logger"
	"tridcheck/internal/platform/postgres"
	"tridcheck/pkg/platform/audit"
	compliancepub "tridcheck/pkg/platform/audit/publishers/compliance"
	opspub "tridcheck/pkg/platform/audit/publishers/ops"
	auditmemory "tridcheck/pkg/platform/audit/store/memory"
	auditpostgres "tridcheck/pkg/platform/audit/store/postgres"
)

func main() {
	transport := flag.String("transport", "stdio", "MCP transport (only stdio is supported)")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.NewWithWriter(os.Stderr, cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, *transport); err != nil {
		log.Error("mcp server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger, transport string) error {
	if transport != "stdio" {
		return fmt.Errorf("transport %q is not supported, only stdio", transport)
	}

	schedule, err := loadSchedule(cfg.Schedule.Path)
	if err != nil {
		return err
	}
	eng, err := engine.NewEngine(schedule)
	if err != nil {
		return err
	}
	log.Info("tolerance schedule loaded", "version", eng.ScheduleVersion())

	// Same audit pipeline as the HTTP server: checks performed over MCP are
	// recorded fail-closed, in postgres when a DSN is configured.
	var auditStore audit.Store
	db, err := postgres.Open(cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		auditStore = auditpostgres.New(db)
	} else {
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("audit store is in-memory; set TRIDCHECK_POSTGRES_DSN for durability")
	}

	compliancePub := compliancepub.New(auditStore, compliancepub.WithLogger(log))
	opsTracker := opspub.New(auditStore,
		opspub.WithLogger(log),
		opspub.WithSampler(opspub.NewSampler(cfg.Audit.OpsSampleRate)),
	)
	defer func() {
		if err := opsTracker.Close(); err != nil {
			log.Warn("ops tracker close", "error", err)
		}
		if err := compliancePub.Close(); err != nil {
			log.Warn("compliance publisher close", "error", err)
		}
	}()

	svc := service.New(eng,
		service.WithLogger(log),
		service.WithCompliancePublisher(compliancePub),
		service.WithOpsTracker(opsTracker),
	)

	srv := tridmcp.New(svc, log)
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func loadSchedule(path string) (*tolerance.Schedule, error) {
	if path == "" {
		return tolerance.LoadDefault()
	}
	return tolerance.LoadFromFile(path)
}
