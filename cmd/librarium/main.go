package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/librarium/librarium/cmd/librarium/cli"
	"github.com/librarium/librarium/internal/app"
	"github.com/librarium/librarium/internal/backup"
	"github.com/librarium/librarium/internal/catalog"
	"github.com/librarium/librarium/internal/csvio"
	"github.com/librarium/librarium/internal/labels"
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
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 2 && os.Args[1] == "jobs" {
		if err := runJobsCommand(ctx, cfg, os.Args[2:]); err != nil {
			logger.Error("jobs command", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	catalogRepo := catalog.NewRepository(dbpool)
	loansRepo := loans.NewRepository(dbpool)
	catalogService := catalog.NewService(catalogRepo, loansRepo)
	catalogHandler := catalog.NewHandler(logger, catalogService)

	profilesRepo := profiles.NewRepository(dbpool)
	profilesService := profiles.NewService(profilesRepo)
	profilesHandler := profiles.NewHandler(logger, profilesService)

	configRepo := siteconfig.NewRepository(dbpool)
	configService := siteconfig.NewService(configRepo, cfg.Location())
	configHandler := siteconfig.NewHandler(logger, configService)

	boardCache := loans.NewBoardCache(redisClient, 30*time.Second)
	loansService := loans.NewService(logger, loansRepo, catalogRepo, profilesService, configService, boardCache)
	loansHandler := loans.NewHandler(logger, loansService)

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	loansService.SetReceipts(jobs.ReceiptEnqueuer{Client: jobClient, Logger: logger})

	notifRepo := notifications.NewRepository(dbpool)
	mailer := notifications.NewSMTPMailer()
	notifService := notifications.NewService(logger, notifRepo, loansService, catalogRepo, profilesService, configService, mailer, metrics)
	notifHandler := notifications.NewHandler(logger, notifService)

	labelsRepo := labels.NewRepository(dbpool)
	gotenberg := labels.NewGotenbergClient(cfg.GotenbergURL)
	if err := gotenberg.Ping(ctx); err != nil {
		logger.Warn("gotenberg ping", slog.Any("error", err))
	}
	labelsService := labels.NewService(logger, labelsRepo, catalogRepo, gotenberg, cfg.MediaDir)
	labelsHandler := labels.NewHandler(logger, labelsService)

	csvService := csvio.NewService(logger, catalogService)
	csvHandler := csvio.NewHandler(logger, csvService)

	backupRepo := backup.NewRepository(dbpool)
	dumper := backup.ExecDumper{DSN: cfg.PGDSN, MediaDir: cfg.MediaDir}
	backupService := backup.NewService(logger, backupRepo, dumper, cfg.BackupDir)
	backupHandler := backup.NewHandler(logger, backupService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		Metrics:             metrics,
		CatalogHandler:      catalogHandler,
		ProfilesHandler:     profilesHandler,
		LoansHandler:        loansHandler,
		NotificationHandler: notifHandler,
		LabelsHandler:       labelsHandler,
		CSVHandler:          csvHandler,
		ConfigHandler:       configHandler,
		BackupHandler:       backupHandler,
		JobHandler:          jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

// runJobsCommand handles "librarium jobs trigger <name>" and
// "librarium jobs stats" without starting the server.
func runJobsCommand(ctx context.Context, cfg *app.Config, args []string) error {
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer jobsCLI.Close()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return fmt.Errorf("usage: librarium jobs trigger <task>")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s id=%s\n", info.Type, info.ID)
		return nil
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
		return nil
	default:
		return fmt.Errorf("unknown jobs command %q", args[0])
	}
}
