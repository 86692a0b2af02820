package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mailflow/internal/breaker"
	"mailflow/internal/config"
	"mailflow/internal/db"
	"mailflow/internal/deferral"
	"mailflow/internal/metrics"
	"mailflow/internal/notify"
	"mailflow/internal/orchestrator"
	"mailflow/internal/quota"
	"mailflow/internal/ratelimit"
	"mailflow/internal/reconcile"
	"mailflow/internal/sendwindow"
	"mailflow/internal/transport"
)

func main() {

	// ------------------------------------------------
	// Logger
	// ------------------------------------------------
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// ------------------------------------------------
	// Config
	// ------------------------------------------------
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ------------------------------------------------
	// Root Context + Shutdown
	// ------------------------------------------------
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	// ------------------------------------------------
	// Database
	// ------------------------------------------------
	store, err := db.New(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer store.Close()

	// ------------------------------------------------
	// Metrics
	// ------------------------------------------------
	metrics.Init()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())

	metricsServer := &http.Server{
		Addr:    ":" + cfg.MetricsPort,
		Handler: metricsMux,
	}

	go func() {
		logger.Info("metrics server started", zap.String("port", cfg.MetricsPort))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// ------------------------------------------------
	// Account Limits Seed
	// ------------------------------------------------
	if err := store.EnsureAccountLimits(ctx, cfg.DailySendLimit); err != nil {
		logger.Fatal("failed to seed account limits", zap.Error(err))
	}

	// ------------------------------------------------
	// Business Hours Window
	// ------------------------------------------------
	window, err := sendwindow.New(cfg.BusinessTZ, cfg.BusinessHoursStart, cfg.BusinessHoursEnd)
	if err != nil {
		logger.Fatal("invalid business hours config", zap.Error(err))
	}

	// ------------------------------------------------
	// Defer Notifications
	// ------------------------------------------------
	var notifier deferral.Notifier = notify.Nop{}
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQP(cfg.AMQPURL, logger)
		if err != nil {
			logger.Fatal("amqp connection failed", zap.Error(err))
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
	}

	// ------------------------------------------------
	// Orchestrator
	// ------------------------------------------------
	smtp := transport.NewSMTP(
		cfg.SMTPHost,
		cfg.SMTPPort,
		cfg.SMTPUser,
		cfg.SMTPPassword,
		cfg.SMTPFrom,
		cfg.SendPace,
	)

	orch := orchestrator.New(
		store,
		deferral.NewLedger(store, notifier, logger),
		ratelimit.New(store, cfg.HourlySendLimit, logger),
		quota.New(store),
		breaker.New(cfg.BreakerTripThreshold),
		smtp,
		window,
		orchestrator.Config{
			SendTimeout:            cfg.SendTimeout,
			StaleProcessingAfter:   cfg.StaleProcessingAfter,
			QuotaSyncInterval:      cfg.QuotaSyncInterval,
			BreakerResumeDelay:     cfg.BreakerResumeDelay,
			TransportDisabledRetry: cfg.TransportDisabledRetry,
		},
		logger,
	)

	reconciler := reconcile.New(store, cfg.StaleProcessingAfter, logger)

	// ------------------------------------------------
	// Schedules
	// ------------------------------------------------
	c := cron.New()

	_, err = c.AddFunc(cfg.TickSchedule, func() {
		if err := orch.Tick(ctx); err != nil {
			logger.Error("tick failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("invalid tick schedule", zap.Error(err))
	}

	_, err = c.AddFunc(cfg.ReconcileSchedule, func() {
		if err := reconciler.Run(ctx); err != nil {
			logger.Error("reconcile failed", zap.Error(err))
		}
	})
	if err != nil {
		logger.Fatal("invalid reconcile schedule", zap.Error(err))
	}

	c.Start()
	logger.Info("worker started",
		zap.String("tick_schedule", cfg.TickSchedule),
		zap.String("reconcile_schedule", cfg.ReconcileSchedule),
	)

	// ------------------------------------------------
	// Wait for shutdown
	// ------------------------------------------------
	<-ctx.Done()

	logger.Info("shutting down worker...")
	<-c.Stop().Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics server shutdown error", zap.Error(err))
	}

	logger.Info("worker shutdown complete")
}
