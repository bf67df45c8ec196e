package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/care-portal/internal/middleware"
	apperrors "github.com/jwalitptl/care-portal/pkg/errors"
	"github.com/jwalitptl/care-portal/pkg/httputil"
	"github.com/jwalitptl/care-portal/pkg/logger"
	"github.com/jwalitptl/care-portal/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// AuthHandler mounts routes on both the public and the authenticated group.
type AuthHandler interface {
	RegisterRoutes(public, authenticated *gin.RouterGroup)
}

type HealthHandler interface {
	RegisterRoutes(gin.IRoutes)
}

type Handlers struct {
	Auth         AuthHandler
	Health       HealthHandler
	Account      Handler
	Admin        Handler
	Doctor       Handler
	Appointment  Handler
	Prescription Handler
	Notification Handler
	Note         Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
	CORSConfig       middleware.CORSConfig
	RequestTimeout   time.Duration
	MaxBodyBytes     int64
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	handlers Handlers,
	log *logger.Logger,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.RegisterValidators()

	engine := gin.New()
	engine.NoRoute(func(c *gin.Context) {
		httputil.RespondWithError(c, apperrors.NotFound("route", nil))
	})

	engine.Use(
		middleware.Recovery(log),
		middleware.RequestID(log),
		middleware.Logger(log),
		middleware.Metrics(m),
		middleware.SecurityHeaders(),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(limiter.RateLimit())
	}
	if config.MaxBodyBytes > 0 {
		engine.Use(middleware.SizeLimit(config.MaxBodyBytes))
	}
	if config.RequestTimeout > 0 {
		engine.Use(middleware.Timeout(config.RequestTimeout))
	}

	return &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
	}
}

func (r *Router) Setup() {
	api := r.engine.Group("/api/v1")

	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(api)
	}

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	r.handlers.Auth.RegisterRoutes(api, protected)

	for _, h := range []Handler{
		r.handlers.Account,
		r.handlers.Admin,
		r.handlers.Doctor,
		r.handlers.Appointment,
		r.handlers.Prescription,
		r.handlers.Notification,
		r.handlers.Note,
	} {
		if h != nil {
			h.RegisterRoutes(protected)
		}
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
