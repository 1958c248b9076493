package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/fieldops/fieldops/internal/app"
	jobmetrics "github.com/fieldops/fieldops/internal/jobs"
	"github.com/fieldops/fieldops/internal/platform/db"
	"github.com/fieldops/fieldops/internal/roles"
	"github.com/fieldops/fieldops/internal/users"
	"github.com/fieldops/fieldops/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, MaxConnLifetime: cfg.PGMaxConnLife})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	roleAudit := jobs.NewRoleAuditJob(
		roles.NewRepository(pool, logger),
		users.NewRepository(pool, logger),
		logger,
		jobmetrics.NewMetrics(nil),
	)

	auditTask, err := jobs.NewRoleAuditTask("cron")
	if err != nil {
		logger.Error("build role audit task", slog.Any("error", err))
		os.Exit(1)
	}

	var cron []jobs.CronRegistration
	if cfg.RoleAuditCron != "" {
		cron = append(cron, jobs.CronRegistration{
			Spec:    cfg.RoleAuditCron,
			Task:    auditTask,
			Options: []asynq.Option{asynq.MaxRetry(3), asynq.Queue(jobs.QueueDefault)},
		})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskRoleAudit, Handler: roleAudit.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
