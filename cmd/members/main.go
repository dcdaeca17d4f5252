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

	"github.com/clubs-council/members-service/internal/app"
	"github.com/clubs-council/members-service/internal/certificates"
	"github.com/clubs-council/members-service/internal/directory"
	"github.com/clubs-council/members-service/internal/members"
	"github.com/clubs-council/members-service/internal/platform/cache"
	"github.com/clubs-council/members-service/internal/platform/db"
	"github.com/clubs-council/members-service/internal/shared"
	"github.com/clubs-council/members-service/jobs"
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

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	userDirectory := directory.NewUserClient(cfg.GatewayURL, cfg.DirectoryTimeout)
	clubDirectory := directory.NewClubClient(cfg.GatewayURL, cfg.DirectoryTimeout, redisClient, cfg.ClubCacheTTL, logger)
	auditLogger := shared.NewAuditLogger(pool)

	membersRepo := members.NewRepository(pool)
	membersService := members.NewService(membersRepo, userDirectory, clubDirectory, auditLogger, logger, cfg.InterCommunicationSecret)
	membersHandler := members.NewHandler(logger, membersService)

	certificatesRepo := certificates.NewRepository(pool)
	certificatesService := certificates.NewService(
		certificatesRepo,
		membersRepo,
		clubDirectory,
		jobs.NewMailEnqueuer(jobClient),
		auditLogger,
		logger,
	)
	certificatesHandler := certificates.NewHandler(logger, certificatesService)

	router := app.NewRouter(app.RouterParams{
		Logger:              logger,
		Config:              cfg,
		MembersHandler:      membersHandler,
		CertificatesHandler: certificatesHandler,
		JobsHandler:         jobs.NewHandler(inspector, jobClient, logger),
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
