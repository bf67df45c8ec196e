package auth

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/auth"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

type Handler struct {
	svc *auth.Service
}

func NewHandler(svc *auth.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public auth routes on public and /auth/me on the
// authenticated group.
func (h *Handler) RegisterRoutes(public, authenticated *gin.RouterGroup) {
	auth := public.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/register-doctor", h.RegisterDoctor)
		auth.POST("/login", h.Login)
	}
	authenticated.GET("/auth/me", h.Me)
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.Bind(c, &req) {
		return
	}

	account, err := h.svc.RegisterPatient(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, account)
}

func (h *Handler) RegisterDoctor(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.Bind(c, &req) {
		return
	}

	account, err := h.svc.RegisterDoctor(c.Request.Context(), &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, account)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.Bind(c, &req) {
		return
	}

	resp, err := h.svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, resp)
}

func (h *Handler) Me(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}

	account, err := h.svc.FetchAccount(c.Request.Context(), identity.AccountID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, account)
}
