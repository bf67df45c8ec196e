// Command createadmin seeds the bootstrap admin account. It is safe to run
// repeatedly.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
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

	email := flag.String("email", cfg.Admin.Email, "admin email")
	password := flag.String("password", cfg.Admin.Password, "admin password")
	flag.Parse()

	log := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stderr,
		Console:    true,
	})

	if *password == "" {
		log.Fatal(nil, "an admin password is required (-password or PORTAL_ADMIN_PASSWORD)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, closeStore, err := app.OpenStore(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to open store")
	}
	defer closeStore()

	a, err := app.New(cfg, store, log, metrics.New("care_portal_createadmin"))
	if err != nil {
		log.Fatal(err, "failed to build application")
	}

	acc, created, err := a.Auth.EnsureAdmin(ctx, *email, *password, cfg.Admin.FirstName, cfg.Admin.LastName)
	if err != nil {
		log.Fatal(err, "failed to create admin")
	}
	if created {
		log.Info("admin created", "email", acc.Email, "id", acc.ID.String())
		return
	}
	log.Info("admin already exists", "email", acc.Email)
}
