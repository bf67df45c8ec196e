package admin

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/middleware"
	"github.com/jwalitptl/care-portal/internal/service/account"
	"github.com/jwalitptl/care-portal/internal/service/rbac"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

type Handler struct {
	svc  *account.Service
	auth *middleware.AuthMiddleware
}

func NewHandler(svc *account.Service, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		svc:  svc,
		auth: auth,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	admin := r.Group("/admin")
	{
		admin.GET("/patients", h.auth.RequirePermission(rbac.PermissionPatientList), h.ListPatients)
		admin.DELETE("/users/:id", h.auth.RequirePermission(rbac.PermissionAccountDelete), h.DeleteUser)
		admin.GET("/stats", h.auth.RequirePermission(rbac.PermissionStatsRead), h.Stats)
	}
}

func (h *Handler) ListPatients(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}

	patients, err := h.svc.ListPatients(c.Request.Context(), identity)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patients)
}

func (h *Handler) DeleteUser(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), identity, id); err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, gin.H{"id": id, "deleted": true})
}

func (h *Handler) Stats(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), identity)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, stats)
}
