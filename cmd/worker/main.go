package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jwalitptl/care-portal/internal/app"
	"github.com/jwalitptl/care-portal/internal/config"
	"github.com/jwalitptl/care-portal/internal/email"
	"github.com/jwalitptl/care-portal/internal/worker"
	"github.com/jwalitptl/care-portal/pkg/logger"
	"github.com/jwalitptl/care-portal/pkg/messaging/redis"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

const metricsAddr = ":9091"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewZap(cfg.Log.Level, cfg.Log.Console)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if cfg.Database.Driver == config.DriverMemory {
		log.Fatal("the outbox worker needs a shared database; the memory driver is process-local")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	startCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	store, closeStore, err := app.OpenStore(startCtx, cfg.Database)
	if err != nil {
		cancel()
		log.Fatal("failed to open store", zap.Error(err))
	}
	defer closeStore()

	broker, err := redis.NewRedisBroker(startCtx, redis.Config{
		URL:          cfg.Redis.URL,
		MaxRetries:   cfg.Redis.MaxRetries,
		RetryBackoff: cfg.Redis.RetryBackoff,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
	}, log)
	cancel()
	if err != nil {
		log.Fatal("failed to connect to Redis", zap.Error(err))
	}
	defer broker.Close()

	mailer := email.NewNoopService()
	if cfg.SMTP.Enabled {
		mailer = email.NewSMTPService(email.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}

	m := metrics.New("care_portal_worker")
	processor, err := worker.NewOutboxProcessor(store.Outbox, broker, mailer, worker.OutboxProcessorConfig{
		BatchSize:     cfg.Outbox.BatchSize,
		PollInterval:  cfg.Outbox.PollInterval,
		RetryAttempts: cfg.Outbox.RetryAttempts,
		RetryDelay:    cfg.Outbox.RetryDelay,
		Channel:       cfg.Redis.Channel,
	}, log, m)
	if err != nil {
		log.Fatal("failed to build outbox processor", zap.Error(err))
	}

	metricsSrv := &http.Server{Addr: metricsAddr, Handler: m.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()

	processor.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("worker exited")
}
