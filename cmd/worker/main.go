package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/librarium/librarium/internal/app"
	"github.com/librarium/librarium/internal/backup"
	"github.com/librarium/librarium/internal/catalog"
	jobmetrics "github.com/librarium/librarium/internal/jobs"
	"github.com/librarium/librarium/internal/loans"
	"github.com/librarium/librarium/internal/notifications"
	"github.com/librarium/librarium/internal/observability"
	"github.com/librarium/librarium/internal/platform/cache"
	"github.com/librarium/librarium/internal/platform/db"
	"github.com/librarium/librarium/internal/profiles"
	"github.com/librarium/librarium/internal/siteconfig"
	"github.com/librarium/librarium/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	jobMetrics := jobmetrics.NewMetrics(metrics.Registerer())

	catalogRepo := catalog.NewRepository(pool)
	loansRepo := loans.NewRepository(pool)
	profilesService := profiles.NewService(profiles.NewRepository(pool))
	configService := siteconfig.NewService(siteconfig.NewRepository(pool), cfg.Location())

	boardCache := loans.NewBoardCache(redisClient, 30*time.Second)
	loansService := loans.NewService(logger, loansRepo, catalogRepo, profilesService, configService, boardCache)

	notifRepo := notifications.NewRepository(pool)
	mailer := notifications.NewSMTPMailer()
	notifService := notifications.NewService(logger, notifRepo, loansService, catalogRepo, profilesService, configService, mailer, metrics)

	backupRepo := backup.NewRepository(pool)
	dumper := backup.ExecDumper{DSN: cfg.PGDSN, MediaDir: cfg.MediaDir}
	backupService := backup.NewService(logger, backupRepo, dumper, cfg.BackupDir)

	scanJob := jobs.NewNotifyScanJob(notifService, logger, jobMetrics)
	receiptJob := jobs.NewReceiptJob(notifService, logger)
	backupJob := jobs.NewBackupJob(backupService, logger, jobMetrics)

	backupTask, err := jobs.NewBackupTask(jobs.BackupPayload{IncludeDB: true, IncludeMedia: true})
	if err != nil {
		logger.Error("build backup task", slog.Any("error", err))
		os.Exit(1)
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskNotifyScan, Handler: scanJob.Handle},
			{Type: jobs.TaskNotifyReceipt, Handler: receiptJob.Handle},
			{Type: jobs.TaskBackupRun, Handler: backupJob.Handle},
		},
		Cron: []jobs.CronRegistration{
			{Spec: "0 7 * * *", Task: jobs.NewNotifyScanTask(), Options: []asynq.Option{asynq.MaxRetry(3)}},
			{Spec: "30 2 * * *", Task: backupTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
		},
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
