package main

import (
	"context"
	"fmt"
	"log/slog"

	"telehealth-platform/internal/analysis"
	"telehealth-platform/internal/audit"
	"telehealth-platform/internal/config"
	"telehealth-platform/internal/httpapi"
	"telehealth-platform/internal/notify"
	"telehealth-platform/internal/observability/metrics"
	"telehealth-platform/internal/pending"
	"telehealth-platform/internal/reconcile"
	"telehealth-platform/internal/reporting"
	"telehealth-platform/internal/scheduler"
	"telehealth-platform/internal/vapi"
	"telehealth-platform/pkg/utils"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// components holds everything main needs to serve and shut down.
type components struct {
	handlers httpapi.Handlers
	timer    *scheduler.Timer
	worker   *scheduler.AsynqWorker
	closers  []func()
}

func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// build wires the reconciler from config. Explicit construction, no globals.
func build(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.ReconcileMetrics) (_ *components, err error) {
	app := &components{}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	var (
		store    analysis.Store
		lister   analysis.Lister
		auditLog audit.Repository
	)
	switch cfg.Storage.Backend {
	case config.BackendPostgres:
		var pool *pgxpool.Pool
		pool, err = utils.OpenPostgres(ctx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		app.closers = append(app.closers, pool.Close)
		repo := analysis.NewPostgresRepo(pool)
		store, lister = repo, repo
		auditLog = audit.NewPostgresRepo(pool)
	default:
		log.Warn("using in-memory analysis storage; results are lost on restart")
		repo := analysis.NewMemoryRepo()
		store, lister = repo, repo
		auditLog = audit.NewMemoryRepo()
	}

	redisCfg := utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	var rdb *redis.Client
	if cfg.NeedsRedis() {
		rdb, err = utils.OpenRedis(ctx, redisCfg)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		app.closers = append(app.closers, func() { _ = rdb.Close() })
	}

	var registry pending.Registry
	if cfg.Registry.Backend == config.BackendRedis {
		registry = pending.NewRedisRegistry(rdb, cfg.Registry.KeyPrefix)
	} else {
		registry = pending.NewMemoryRegistry()
	}

	var sched scheduler.Scheduler
	if cfg.Scheduler.Backend == config.BackendAsynq {
		producer := scheduler.NewAsynq(utils.AsynqRedisOpt(redisCfg), cfg.Scheduler.Queue)
		app.closers = append(app.closers, func() { _ = producer.Close() })
		sched = producer
	} else {
		app.timer = scheduler.NewTimer(log)
		sched = app.timer
	}

	client, err := vapi.New(vapi.Config{
		BaseURL: cfg.Vapi.BaseURL,
		APIKey:  cfg.Vapi.APIKey,
		Timeout: cfg.Vapi.Timeout,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("vapi client: %w", err)
	}

	sinks := notify.Multi{notify.Log{Logger: log}}
	if cfg.Notify.RedisChannel != "" {
		sinks = append(sinks, notify.NewRedis(rdb, cfg.Notify.RedisChannel))
	}
	if cfg.Notify.VendorPatchBack {
		sinks = append(sinks, notify.NewVendorMetadata(client))
	}

	svc := reconcile.NewService(reconcile.Deps{
		Registry:  registry,
		Scheduler: sched,
		Vendor:    client,
		Processor: analysis.NewProcessor(store, sinks, log),
		Auditor:   audit.NewService(auditLog),
		Metrics:   m,
		Logger:    log,
		Policy: reconcile.Policy{
			CompletionInitialDelay:  cfg.Reconcile.CompletionInitialDelay,
			CompletionMaxDelay:      cfg.Reconcile.CompletionMaxDelay,
			CompletionErrorMaxDelay: cfg.Reconcile.CompletionErrorMaxDelay,
			AnalysisInitialDelay:    cfg.Reconcile.AnalysisInitialDelay,
			AnalysisMaxDelay:        cfg.Reconcile.AnalysisMaxDelay,
			MaxRetries:              cfg.Reconcile.MaxRetries,
		},
	})
	if app.timer != nil {
		app.timer.Bind(svc)
	} else {
		app.worker = scheduler.NewAsynqWorker(utils.AsynqRedisOpt(redisCfg), cfg.Scheduler.Queue, cfg.Scheduler.Concurrency, svc, log)
	}

	app.handlers = httpapi.Handlers{
		Intake:        svc,
		Reporting:     reporting.NewService(lister),
		Metrics:       m,
		WebhookSecret: cfg.Vapi.WebhookSecret,
	}
	return app, nil
}
