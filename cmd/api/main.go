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

	"taxdesk/internal/config"
	"taxdesk/internal/database"
	"taxdesk/internal/logger"
	"taxdesk/internal/server"
	"taxdesk/internal/services"
	"taxdesk/internal/util"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	cleanupInterval = 5 * time.Minute
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "taxdesk: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.App.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	if !cfg.App.Debug {
		if err := cfg.ValidateForProduction(); err != nil {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
	}

	log.Info("starting",
		zap.String("name", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.Bool("debug", cfg.App.Debug),
		zap.String("host", cfg.App.Host),
		zap.String("port", cfg.App.Port))

	if err := database.Init(&cfg.Database, logger.Named(log, "database")); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() {
		log.Info("closing database connections")
		if err := database.Close(); err != nil {
			log.Warn("error closing database", zap.Error(err))
		}
	}()
	db := database.GetDB()

	emailSvc := services.NewEmailService(&cfg.Email, log)
	smsSvc := services.NewSMSService(&cfg.SMS, log)
	notifier := services.NewQueryNotifier(emailSvc, smsSvc, cfg.Email.NotifyTo, log)
	log.Info("notification channels",
		zap.Bool("email", emailSvc.IsEnabled()),
		zap.Bool("sms", cfg.SMS.Enabled),
		zap.String("sms_provider", cfg.SMS.Provider))

	limiter := util.NewRateLimiter(cfg.Intake.SubmissionsPerMinute)
	querySvc := services.NewQueryService(db, notifier, limiter, log)
	authSvc := services.NewAuthService(db, util.NewTokenManager(&cfg.Auth), log)
	healthSvc := services.NewHealthService(db, cfg.App.Name)

	srv := server.New(cfg, querySvc, authSvc, healthSvc, log)

	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		ErrorLog:     zap.NewStdLog(log.Named("http")),
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		ticker := time.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				limiter.Cleanup()
			}
		}
	}()

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received, starting graceful shutdown")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("error during graceful shutdown", zap.Error(err))
		if errors.Is(err, context.DeadlineExceeded) {
			_ = httpServer.Close()
		}
	}

	// let in-flight notifications finish before the database closes
	querySvc.Wait()

	log.Info("server shutdown complete")
	return nil
}
