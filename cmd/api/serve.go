package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ekuphumuleni-api/internal/delivery/http/middleware"
	v1 "ekuphumuleni-api/internal/delivery/http/v1"
	"ekuphumuleni-api/internal/usecase"
	"ekuphumuleni-api/pkg/email"
	"ekuphumuleni-api/pkg/logger"
	"ekuphumuleni-api/pkg/redis"
	"ekuphumuleni-api/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

// Long enough for an in-flight dispatch to finish within the SMTP timeouts.
const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, cleanup, err := bootstrap()
	if err != nil {
		return err
	}
	defer cleanup()

	log := logger.Log
	log.Info("Starting contact API", "port", cfg.Port, "env", cfg.Environment)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Mail
	smtpConfig := cfg.MailSMTP()
	if !smtpConfig.IsConfigured() {
		log.Warn("SMTP not fully configured - contact submissions will fail until SMTP_HOST, SMTP_USER and SMTP_PASSWORD are set")
	}
	transport := email.NewSMTPTransport(smtpConfig, log.With("component", "smtp"))
	composer, err := email.NewComposer(cfg.Composer())
	if err != nil {
		return err
	}

	// Rate limit store
	var (
		rateStore middleware.RateStore
		pinger    usecase.Pinger
	)
	if cfg.RedisURL != "" {
		client, err := redis.Connect(parent, redis.Config{URL: cfg.RedisURL, Password: cfg.RedisPassword})
		if err != nil {
			log.Warn("Redis unavailable, rate limiting in memory", "error", err)
		} else {
			defer client.Close()
			rateStore = middleware.NewRedisRateStore(client)
			pinger = redis.HealthCheck(client)
		}
	} else {
		log.Info("REDIS_URL not set, rate limiting in memory")
	}

	securityLog, err := security.InitSecurityLogger("ekuphumuleni-api", cfg.Environment)
	if err != nil {
		return fmt.Errorf("security logger: %w", err)
	}
	defer securityLog.Sync()

	contactUC := usecase.NewContactUsecase(usecase.ContactConfig{
		SMTP:            smtpConfig,
		FallbackContact: cfg.ContactFallbackEmail,
	}, transport, composer, log)
	healthUC := usecase.NewHealthUsecase(smtpConfig, pinger)

	router := v1.NewRouter(v1.RouterDeps{
		ContactUC: contactUC,
		HealthUC:  healthUC,
		RateStore: rateStore,
		Config:    cfg,
		Logger:    log,
		Security:  securityLog,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Covers verify plus two sends at their socket timeouts.
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		return err
	}

	log.Info("Server exiting")
	return nil
}
