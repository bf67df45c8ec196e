// Package app wires repositories, services, handlers and the router into a
// runnable HTTP API.
package app

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/care-portal/internal/config"
	accountHandler "github.com/jwalitptl/care-portal/internal/handler/account"
	adminHandler "github.com/jwalitptl/care-portal/internal/handler/admin"
	appointmentHandler "github.com/jwalitptl/care-portal/internal/handler/appointment"
	authHandler "github.com/jwalitptl/care-portal/internal/handler/auth"
	doctorHandler "github.com/jwalitptl/care-portal/internal/handler/doctor"
	"github.com/jwalitptl/care-portal/internal/handler/health"
	noteHandler "github.com/jwalitptl/care-portal/internal/handler/note"
	notificationHandler "github.com/jwalitptl/care-portal/internal/handler/notification"
	prescriptionHandler "github.com/jwalitptl/care-portal/internal/handler/prescription"
	"github.com/jwalitptl/care-portal/internal/middleware"
	"github.com/jwalitptl/care-portal/internal/repository"
	"github.com/jwalitptl/care-portal/internal/router"
	accountService "github.com/jwalitptl/care-portal/internal/service/account"
	appointmentService "github.com/jwalitptl/care-portal/internal/service/appointment"
	"github.com/jwalitptl/care-portal/internal/service/audit"
	authService "github.com/jwalitptl/care-portal/internal/service/auth"
	noteService "github.com/jwalitptl/care-portal/internal/service/note"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	prescriptionService "github.com/jwalitptl/care-portal/internal/service/prescription"
	"github.com/jwalitptl/care-portal/internal/service/rbac"
	"github.com/jwalitptl/care-portal/pkg/auth"
	"github.com/jwalitptl/care-portal/pkg/logger"
	"github.com/jwalitptl/care-portal/pkg/metrics"
	"github.com/jwalitptl/care-portal/pkg/security"
)

// App is the assembled API. Auth is exposed so callers can seed the admin
// account before serving.
type App struct {
	Engine *gin.Engine
	Auth   *authService.Service
}

func New(cfg *config.Config, store *repository.Store, log *logger.Logger, m *metrics.Metrics) (*App, error) {
	auditor := audit.NewService(log)
	gate := rbac.NewGate(m, auditor)
	notifier := notification.NewService(store.Notifications, store.Accounts, gate, log)

	jwtSvc := auth.NewJWTService(auth.Config{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: cfg.JWT.Expiry,
	})
	hasher := security.NewBcryptHasher(cfg.Security.BcryptCost, cfg.Security.MinPasswordLength)

	authSvc, err := authService.NewService(store.Accounts, hasher, jwtSvc, notifier, auditor, authService.Options{
		IdentityCacheTTL: cfg.JWT.IdentityCacheTTL,
		Metrics:          m,
		Logger:           log,
	})
	if err != nil {
		return nil, err
	}

	accountSvc := accountService.NewService(store.Accounts, store.Stats, gate, notifier, authSvc, auditor, m, log)
	links := appointmentService.NewRoomLinkGenerator(cfg.Video.BaseURL, cfg.Video.RoomPrefix)
	appointmentSvc := appointmentService.NewService(store.Appointments, store.Accounts, gate, notifier, links, auditor, m, log)
	prescriptionSvc := prescriptionService.NewService(store.Prescriptions, store.Appointments, gate, notifier, auditor, log)
	noteSvc := noteService.NewService(store.Notes, store.Accounts, store.Appointments, gate, auditor)

	authMiddleware := middleware.NewAuthMiddleware(authSvc, gate)

	r := router.NewRouter(
		authMiddleware,
		router.Handlers{
			Auth:         authHandler.NewHandler(authSvc),
			Health:       health.NewHandler(store.Health, m),
			Account:      accountHandler.NewHandler(accountSvc),
			Admin:        adminHandler.NewHandler(accountSvc, authMiddleware),
			Doctor:       doctorHandler.NewHandler(accountSvc),
			Appointment:  appointmentHandler.NewHandler(appointmentSvc),
			Prescription: prescriptionHandler.NewHandler(prescriptionSvc),
			Notification: notificationHandler.NewHandler(notifier),
			Note:         noteHandler.NewHandler(noteSvc),
		},
		log,
		m,
		router.RouterConfig{
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			CORSConfig:       middleware.DefaultCORSConfig(cfg.CORS.AllowedOrigins),
			RequestTimeout:   cfg.Server.RequestTimeout,
			MaxBodyBytes:     cfg.Server.MaxBodyBytes,
		},
	)
	r.Setup()

	return &App{
		Engine: r.Engine(),
		Auth:   authSvc,
	}, nil
}
