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
	"github.com/redis/go-redis/v9"

	"github.com/draftgate/draftgate/internal/app"
	"github.com/draftgate/draftgate/internal/attachments"
	"github.com/draftgate/draftgate/internal/auth"
	"github.com/draftgate/draftgate/internal/comments"
	"github.com/draftgate/draftgate/internal/notifications"
	"github.com/draftgate/draftgate/internal/observability"
	"github.com/draftgate/draftgate/internal/platform/blob"
	"github.com/draftgate/draftgate/internal/platform/db"
	"github.com/draftgate/draftgate/internal/profiles"
	"github.com/draftgate/draftgate/internal/rbac"
	"github.com/draftgate/draftgate/internal/requests"
	"github.com/draftgate/draftgate/internal/shared"
	"github.com/draftgate/draftgate/jobs"
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "draftgate_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	store, err := blob.NewStore(cfg.BlobDir)
	if err != nil {
		logger.Error("open blob store", slog.Any("error", err))
		os.Exit(1)
	}
	signer := blob.NewSigner(cfg.BlobSigningSecret, cfg.BlobSignatureTTL)

	auditLogger := shared.NewAuditLogger(dbpool)

	rbacRepo := rbac.NewRepository(dbpool)
	rbacService := rbac.NewService(rbacRepo, auditLogger)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}
	rolesHandler := rbac.NewHandler(logger, rbacService)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	profilesRepo := profiles.NewRepository(dbpool)
	profilesService := profiles.NewService(profilesRepo)
	profilesHandler := profiles.NewHandler(logger, profilesService)

	requestsRepo := requests.NewRepository(dbpool)
	requestsService := requests.NewService(requestsRepo, auditLogger)
	requestsHandler := requests.NewHandler(logger, requestsService, rbacMiddleware)

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

	commentsRepo := comments.NewRepository(dbpool)
	commentsService := comments.NewService(commentsRepo, jobClient, logger)
	commentsHandler := comments.NewHandler(logger, commentsService)

	notificationsRepo := notifications.NewRepository(dbpool)
	notificationsService := notifications.NewService(notificationsRepo)
	notificationsHandler := notifications.NewHandler(logger, notificationsService)

	attachmentsRepo := attachments.NewRepository(dbpool)
	attachmentsService := attachments.NewService(attachmentsRepo, store, signer, logger)
	attachmentsHandler := attachments.NewHandler(logger, attachmentsService)

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:               logger,
		Config:               cfg,
		SessionManager:       sessionManager,
		CSRFManager:          csrfManager,
		AuthHandler:          authHandler,
		ProfilesHandler:      profilesHandler,
		RequestsHandler:      requestsHandler,
		CommentsHandler:      commentsHandler,
		NotificationsHandler: notificationsHandler,
		AttachmentsHandler:   attachmentsHandler,
		RolesHandler:         rolesHandler,
		JobHandler:           jobHandler,
		Pool:                 dbpool,
		RBACMiddleware:       rbacMiddleware,
		Metrics:              metrics,
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
