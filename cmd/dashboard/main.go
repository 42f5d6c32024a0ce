package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/sekolah/dashboard/cmd/dashboard/cli"
	"github.com/sekolah/dashboard/internal/access"
	"github.com/sekolah/dashboard/internal/app"
	"github.com/sekolah/dashboard/internal/auth"
	"github.com/sekolah/dashboard/internal/dashboard"
	"github.com/sekolah/dashboard/internal/guard"
	"github.com/sekolah/dashboard/internal/observability"
	"github.com/sekolah/dashboard/internal/platform/cache"
	"github.com/sekolah/dashboard/internal/platform/db"
	"github.com/sekolah/dashboard/internal/seed"
	"github.com/sekolah/dashboard/internal/shared"
	"github.com/sekolah/dashboard/internal/users"
	"github.com/sekolah/dashboard/internal/view"
	"github.com/sekolah/dashboard/jobs"
)

const usage = `usage: dashboard [command]

commands:
  serve                 start the HTTP server (default)
  seed [-json]          create or re-role the test accounts
  jobs trigger <type>   enqueue session:purge, users:ban-sweep or seed:users
  jobs stats            print default queue depth
`

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

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	switch command {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "seed":
		os.Exit(runSeed(ctx, cfg, logger, args))
	case "jobs":
		err = runJobs(ctx, cfg, args)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error(command, slog.Any("error", err))
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, "", 0)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer closeRedis(redisClient, logger)

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	metrics := observability.NewMetrics()
	registry := access.NewRegistry()

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	resolver := auth.NewResolver(authRepo, logger)
	routeGuard := guard.New(guard.DefaultPolicy(), resolver, logger, guard.NewMetrics(metrics.Registerer()))

	auditLogger := shared.NewAuditLogger(dbpool)
	usersService := users.NewService(users.NewRepository(dbpool), registry, sessionManager, auditLogger, logger)

	seeder := seed.NewSeeder(authRepo, authService, cfg.SeedPassword, logger)
	if cfg.SeedAllowed() {
		logger.Warn("seed endpoint enabled", slog.String("path", "/api/seed"))
	}

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Registry:         registry,
		Guard:            routeGuard,
		AuthHandler:      auth.NewHandler(logger, authService, resolver, templates, sessionManager, csrfManager),
		DashboardHandler: dashboard.NewHandler(logger, templates, csrfManager, registry, usersService, resolver),
		UsersHandler:     users.NewHandler(logger, usersService, templates, csrfManager),
		SeedHandler:      seed.NewHandler(seeder, cfg.SeedAllowed()),
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("base_url", cfg.AppBaseURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func runSeed(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: 2})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		return 1
	}
	defer dbpool.Close()

	authRepo := auth.NewRepository(dbpool)
	seeder := seed.NewSeeder(authRepo, auth.NewService(authRepo), cfg.SeedPassword, logger)
	return cli.SeedCommand(ctx, seeder, cli.SeedOptions{JSONOutput: *jsonOutput})
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	jobsCLI := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() { _ = jobsCLI.Close() }()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("jobs trigger: task type required")
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("enqueued %s as %s on %s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
	return nil
}

func closeRedis(client *redis.Client, logger *slog.Logger) {
	if client == nil {
		return
	}
	if err := client.Close(); err != nil {
		logger.Warn("redis close", slog.Any("error", err))
	}
}
