package account

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/account"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

type Handler struct {
	svc *account.Service
}

func NewHandler(svc *account.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	accounts := r.Group("/accounts")
	{
		accounts.GET("/:id", h.Get)
		accounts.PUT("/:id", h.Update)
	}
}

func (h *Handler) Get(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	acc, err := h.svc.Get(c.Request.Context(), identity, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, acc)
}

func (h *Handler) Update(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req model.UpdateProfileRequest
	if !handler.Bind(c, &req) {
		return
	}

	acc, err := h.svc.UpdateProfile(c.Request.Context(), identity, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, acc)
}
