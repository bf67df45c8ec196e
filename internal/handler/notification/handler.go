package notification

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/service/notification"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

type Handler struct {
	svc notification.Service
}

func NewHandler(svc notification.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes shares the :id wildcard between both routes; on the list
// route it names the owning account.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notifications := r.Group("/notifications")
	{
		notifications.GET("/:id", h.List)
		notifications.PUT("/:id/read", h.MarkRead)
	}
}

func (h *Handler) List(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	userID, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	list, err := h.svc.ListForUser(c.Request.Context(), identity, userID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) MarkRead(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	n, err := h.svc.MarkRead(c.Request.Context(), identity, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, n)
}
