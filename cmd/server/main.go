package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"tridcheck/internal/compliance/engine"
	"tridcheck/internal/compliance/handler"
	compliancemetrics "tridcheck/internal/compliance/metrics"
	"tridcheck/internal/compliance/service"
	"tridcheck/internal/compliance/tolerance"
	httpapi "tridcheck/internal/http"
	"tridcheck/internal/platform/config"
	"tridcheck/internal/platform/httpserver"
	"tridcheck/internal/platform/logger"
	"tridcheck/internal/platform/metrics"
	"tridcheck/internal/platform/postgres"
	platformredis "tridcheck/internal/platform/redis"
	"tridcheck/internal/ratelimit"
	"tridcheck/pkg/platform/audit"
	compliancepub "tridcheck/pkg/platform/audit/publishers/compliance"
	opspub "tridcheck/pkg/platform/audit/publishers/ops"
	securitypub "tridcheck/pkg/platform/audit/publishers/security"
	auditmemory "tridcheck/pkg/platform/audit/store/memory"
	auditpostgres "tridcheck/pkg/platform/audit/store/postgres"
)

// main wires configuration, the tolerance engine, the audit pipeline, and the
// HTTP surface, then runs the server until SIGINT/SIGTERM. Business logic
// lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	schedule, err := loadSchedule(cfg.Schedule.Path)
	if err != nil {
		return err
	}

	eng, err := engine.NewEngine(schedule)
	if err != nil {
		return err
	}
	log.Info("tolerance schedule loaded",
		"version", eng.ScheduleVersion(),
		"source", scheduleSource(cfg.Schedule.Path),
	)

	// Audit store: postgres when a DSN is configured, in-memory otherwise.
	// The compliance publisher is fail-closed either way.
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
		log.Info("audit store ready", "backend", "postgres")
	} else {
		auditStore = auditmemory.NewInMemoryStore()
		log.Warn("audit store ready", "backend", "memory",
			"note", "events are lost on restart; set TRIDCHECK_POSTGRES_DSN for durability")
	}

	compliancePub := compliancepub.New(auditStore,
		compliancepub.WithLogger(log),
		compliancepub.WithMetrics(compliancepub.NewMetrics()),
	)
	securityPub := securitypub.New(auditStore,
		securitypub.WithLogger(log),
		securitypub.WithCapacity(cfg.Audit.SecurityBufferSize),
	)
	opsTracker := opspub.New(auditStore,
		opspub.WithLogger(log),
		opspub.WithMetrics(opspub.NewMetrics()),
		opspub.WithSampler(opspub.NewSampler(cfg.Audit.OpsSampleRate)),
	)
	defer func() {
		// Drain order: ops queue first, then the security buffer, then the
		// synchronous compliance publisher.
		if err := opsTracker.Close(); err != nil {
			log.Warn("ops tracker close", "error", err)
		}
		if err := securityPub.Close(); err != nil {
			log.Warn("security publisher close", "error", err)
		}
		if err := compliancePub.Close(); err != nil {
			log.Warn("compliance publisher close", "error", err)
		}
	}()

	opsTracker.Track(ctx, audit.OpsEvent{
		Subject: eng.ScheduleVersion(),
		Action:  string(audit.EventScheduleLoaded),
	})

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var rlStore ratelimit.Store
	if redisClient != nil {
		rlStore = ratelimit.NewRedisStore(redisClient.Client)
		log.Info("rate limit store ready", "backend", "redis")
	} else {
		rlStore = ratelimit.NewMemoryStore()
		log.Info("rate limit store ready", "backend", "memory")
	}
	limiter := ratelimit.New(rlStore,
		ratelimit.Limits{
			CheckPerWindow: cfg.RateLimit.CheckPerWindow,
			ReadPerWindow:  cfg.RateLimit.ReadPerWindow,
			Window:         cfg.RateLimit.Window,
		},
		log,
		ratelimit.WithDisabled(!cfg.RateLimit.Enabled),
		ratelimit.WithSecurityPublisher(securityPub),
		ratelimit.WithMetrics(ratelimit.NewMetrics()),
	)

	svc := service.New(eng,
		service.WithLogger(log),
		service.WithCompliancePublisher(compliancePub),
		service.WithOpsTracker(opsTracker),
		service.WithMetrics(compliancemetrics.New()),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Compliance:      handler.New(svc, log),
		HTTPMetrics:     metrics.NewHTTP(),
		RateLimit:       limiter,
		ScheduleVersion: eng.ScheduleVersion(),
	})

	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting tridcheck server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
		return httpserver.Shutdown(srv, cfg.Server.ShutdownTimeout)
	})

	return g.Wait()
}

func loadSchedule(path string) (*tolerance.Schedule, error) {
	if path == "" {
		return tolerance.LoadDefault()
	}
	return tolerance.LoadFromFile(path)
}

func scheduleSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}
