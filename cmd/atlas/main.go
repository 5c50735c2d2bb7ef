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
	"golang.org/x/sync/errgroup"

	"github.com/atlas-auth/atlas-auth/internal/accounts"
	"github.com/atlas-auth/atlas-auth/internal/app"
	"github.com/atlas-auth/atlas-auth/internal/audit"
	audithttp "github.com/atlas-auth/atlas-auth/internal/audit/http"
	"github.com/atlas-auth/atlas-auth/internal/authz"
	"github.com/atlas-auth/atlas-auth/internal/observability"
	"github.com/atlas-auth/atlas-auth/internal/platform/cache"
	"github.com/atlas-auth/atlas-auth/internal/platform/db"
	"github.com/atlas-auth/atlas-auth/internal/token"
	"github.com/atlas-auth/atlas-auth/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
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

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	tokens := token.NewService(cfg.TokenSecret, cfg.TokenTTL)
	recorder := audit.NewAsynqRecorder(asynqClient, jobs.QueueDefault)

	repo := accounts.NewCachedRepository(accounts.NewRepository(pool), redisClient, cfg.UserCacheTTL, logger)
	hasher := accounts.NewBcryptHasher(0)
	service := accounts.NewService(repo, hasher, tokens, recorder, logger)
	handler := accounts.NewHandler(logger, service)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		AccountsHandler: handler,
		AuditHandler:    audithttp.NewHandler(logger, audit.NewStore(pool)),
		AuthMiddleware: authz.Middleware{
			Tokens:    tokens,
			Users:     repo,
			Logger:    logger,
			AdminRole: cfg.AdministrativeRole(),
		},
		JobsHandler: jobs.NewHandler(asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr}), logger),
		Metrics:     metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("listening", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}
