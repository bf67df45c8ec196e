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

	"github.com/jwalitptl/care-portal/internal/app"
	"github.com/jwalitptl/care-portal/internal/config"
	"github.com/jwalitptl/care-portal/pkg/logger"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Console:    cfg.Log.Console,
	})
	logger.SetGlobal(log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, closeStore, err := app.OpenStore(ctx, cfg.Database)
	cancel()
	if err != nil {
		log.Fatal(err, "failed to open store", "driver", cfg.Database.Driver)
	}
	defer closeStore()

	a, err := app.New(cfg, store, log, metrics.New("care_portal"))
	if err != nil {
		log.Fatal(err, "failed to build application")
	}

	if cfg.Admin.Password != "" {
		_, created, err := a.Auth.EnsureAdmin(context.Background(), cfg.Admin.Email, cfg.Admin.Password, cfg.Admin.FirstName, cfg.Admin.LastName)
		if err != nil {
			log.Fatal(err, "failed to ensure admin account")
		}
		if created {
			log.Info("bootstrap admin created", "email", cfg.Admin.Email)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.Engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}
