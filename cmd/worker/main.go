package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/app"
	"github.com/sekolah/dashboard/internal/auth"
	jobmetrics "github.com/sekolah/dashboard/internal/jobs"
	"github.com/sekolah/dashboard/internal/platform/db"
	"github.com/sekolah/dashboard/internal/seed"
	"github.com/sekolah/dashboard/internal/users"
	"github.com/sekolah/dashboard/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: int32(cfg.WorkerConcurrency) + 1})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo)
	// The sweep never revokes sessions or writes audit rows, so it runs
	// without either collaborator.
	usersService := users.NewService(users.NewRepository(pool), access.NewRegistry(), nil, nil, logger)

	processors := &jobs.Processors{
		Sessions: authService,
		Bans:     usersService,
		Seeder:   seed.NewSeeder(authRepo, authService, cfg.SeedPassword, logger),
		Metrics:  jobmetrics.NewMetrics(prometheus.DefaultRegisterer),
		Logger:   logger,
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    processors.Handlers(),
		Cron: []jobs.CronRegistration{
			{Spec: cfg.SessionPurgeCron, Task: jobs.NewSessionPurgeTask()},
			{Spec: cfg.BanSweepCron, Task: jobs.NewBanSweepTask()},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.WorkerMetricsAddr != "" {
		metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: promhttp.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("worker metrics server", slog.Any("error", err))
			}
		}()
		defer func() { _ = metricsServer.Close() }()
	}

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
