package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/shopdesk/backoffice/internal/account"
	"github.com/shopdesk/backoffice/internal/app"
	"github.com/shopdesk/backoffice/internal/audit"
	audithttp "github.com/shopdesk/backoffice/internal/audit/http"
	"github.com/shopdesk/backoffice/internal/auth"
	"github.com/shopdesk/backoffice/internal/catalog"
	"github.com/shopdesk/backoffice/internal/observability"
	"github.com/shopdesk/backoffice/internal/platform/cache"
	"github.com/shopdesk/backoffice/internal/platform/db"
	"github.com/shopdesk/backoffice/internal/shared"
	"github.com/shopdesk/backoffice/jobs"
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
	slog.SetDefault(logger)

	telemetry, err := app.NewTelemetry(ctx, cfg, logger)
	if err != nil {
		logger.Error("init telemetry", slog.Any("error", err))
		os.Exit(1)
	}

	pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	objects, err := app.NewStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("init object storage", slog.Any("error", err))
		os.Exit(1)
	}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("asynq client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("asynq inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	sessionManager := shared.NewSessionManager(redisClient, "backoffice_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewService(auth.NewRepository(pool), tokens)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	catalogService := catalog.NewService(
		catalog.NewRepository(pool),
		catalog.NewCache(redisClient, cfg.CatalogCacheTTL),
		auditLogger,
		logger,
	)
	workflow := catalog.NewWorkflow(catalogService, objects, jobClient, logger,
		catalog.WorkflowConfig{Bucket: cfg.ProductImageBucket},
		func(from, to catalog.State) { metrics.Transition(string(from), string(to)) },
	)
	catalogHandler := catalog.NewHandler(logger, catalogService, workflow, objects, idempotency, catalog.HandlerConfig{
		Bucket:         cfg.ProductImageBucket,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	accountService := account.NewService(account.NewRepository(pool), objects, auditLogger, jobClient, logger, account.Config{
		Bucket: cfg.AvatarBucket,
	})
	accountHandler := account.NewHandler(logger, accountService)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		Tokens:         tokens,
		AuthHandler:    authHandler,
		CatalogHandler: catalogHandler,
		AccountHandler: accountHandler,
		AuditHandler:   audithttp.NewHandler(logger, audit.NewService(audit.NewRepository(pool))),
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		logger.Warn("telemetry shutdown", slog.Any("error", err))
	}
}
