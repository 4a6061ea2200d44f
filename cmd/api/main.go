package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"AOTF-backend/internal/auth"
	"AOTF-backend/internal/config"
	"AOTF-backend/internal/database"
	"AOTF-backend/internal/logging"
	"AOTF-backend/internal/matching"
	"AOTF-backend/internal/middleware"
	"AOTF-backend/internal/notify"
	"AOTF-backend/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	auth.SetSecretKey(cfg.SecretKey)

	db, err := database.NewDBInstance(cfg.DB, logger.Named("database"))
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("closing database", zap.Error(err))
		}
	}()

	if err := db.EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		return err
	}

	var publisher notify.Publisher = notify.NewLogPublisher(logger.Named("notify"))
	if cfg.RabbitMQURL != "" {
		amqpPublisher, err := notify.NewAMQPPublisher(cfg.RabbitMQURL, cfg.NotificationQueue, logger.Named("notify"))
		if err != nil {
			return err
		}
		defer func() { _ = amqpPublisher.Close() }()
		publisher = amqpPublisher
	}

	engine := matching.NewEngine(
		matching.NewGormStore(db),
		matching.WithLogger(logger.Named("matching")),
		matching.WithPublisher(publisher),
		matching.WithMaxRetries(cfg.MatchingMaxRetries),
	)

	rateLimit, redisClient, err := middleware.NewRateLimiter(cfg.RedisURL, cfg.RateLimitPerSecond)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	srv := server.NewServer(&server.MyServer{
		Config:    cfg,
		DB:        db,
		Engine:    engine,
		Logger:    logger,
		RateLimit: rateLimit,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}
