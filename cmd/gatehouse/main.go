package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harborline/gatehouse/internal/app"
	"github.com/harborline/gatehouse/internal/audit"
	"github.com/harborline/gatehouse/internal/gatehouse"
	"github.com/harborline/gatehouse/internal/guard"
	"github.com/harborline/gatehouse/internal/observability"
	"github.com/harborline/gatehouse/internal/platform/cache"
	"github.com/harborline/gatehouse/internal/platform/db"
	"github.com/harborline/gatehouse/internal/ratelimit"
	"github.com/harborline/gatehouse/jobs"
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

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	store := ratelimit.NewPGStore(pool)
	limiter := ratelimit.NewLimiter(store)

	var prefilter guard.Prefilter
	if cfg.PrefilterEnabled {
		redisClient, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			// The durable limiter is authoritative; start without the
			// advisory gate rather than refusing to serve.
			logger.Warn("redis unavailable, prefilter disabled", slog.Any("error", err))
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
			prefilter = ratelimit.NewPrefilter(redisClient)
		}
	}

	metrics := observability.NewMetrics()
	recorder := audit.NewRecorder(pool)
	auditService := audit.NewService(audit.NewPGRepository(pool))

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	queueClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init queue client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Warn("queue client close", slog.Any("error", err))
		}
	}()
	jobsHandler := jobs.NewHandler(asynq.NewInspector(redisOpts), logger)

	g, err := guard.New(guard.Config{
		Limiter:   limiter,
		Prefilter: prefilter,
		Recorder:  recorder,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("init guard", slog.Any("error", err))
		os.Exit(1)
	}

	handler := gatehouse.NewHandler(g, store, auditService, queueClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		GuardHandler: handler,
		JobsHandler:  jobsHandler,
		Pool:         pool,
		Metrics:      metrics,
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
