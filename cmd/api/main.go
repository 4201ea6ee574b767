package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/vintalabs/notification-store/internal/config"
	"github.com/vintalabs/notification-store/internal/handler"
	notificationHandler "github.com/vintalabs/notification-store/internal/handler/notification"
	"github.com/vintalabs/notification-store/internal/middleware"
	"github.com/vintalabs/notification-store/internal/repository/sqlstore"
	"github.com/vintalabs/notification-store/internal/router"
	notificationService "github.com/vintalabs/notification-store/internal/service/notification"
	"github.com/vintalabs/notification-store/pkg/auth"
	"github.com/vintalabs/notification-store/pkg/logger"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	appLogger := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Log.Pretty,
	})

	db, err := sqlstore.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	store, err := sqlstore.New(db, sqlstore.ModelConfig{
		UserKey:            sqlstore.UserKeyKind(cfg.Store.UserKeyType),
		UsersTable:         cfg.Store.UsersTable,
		UsersPKColumn:      cfg.Store.UsersPKColumn,
		UsersEmailColumn:   cfg.Store.UsersEmailColumn,
		NotificationsTable: cfg.Store.NotificationsTable,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("invalid store configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := store.EnsureSchema(ctx); err != nil {
		cancel()
		log.Fatal().Err(err).Msg("failed to bootstrap schema")
	}
	cancel()

	notificationSvc := notificationService.NewService(store, appLogger)

	tokenSvc := auth.NewTokenService(cfg.JWT.Secret, time.Duration(cfg.JWT.ExpiryHours)*time.Hour)
	authMiddleware := middleware.NewAuthMiddleware(tokenSvc)

	if err := notificationHandler.RegisterValidations(); err != nil {
		log.Fatal().Err(err).Msg("failed to register validations")
	}

	h := handler.NewHandler(db)
	notificationH := notificationHandler.NewHandler(notificationSvc)

	r := router.NewRouter(authMiddleware, notificationH, h, router.RouterConfig{
		RateLimitRPS:   cfg.RateLimit.RPS,
		RateLimitBurst: cfg.RateLimit.Burst,
		MetricsPrefix:  "notification_store",
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.TimeoutSeconds) * time.Second,
	}

	go func() {
		appLogger.Info("server starting", map[string]interface{}{"port": cfg.Server.Port})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}

	appLogger.Info("server stopped")
}
