package prescription

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/prescription"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

type Handler struct {
	svc *prescription.Service
}

func NewHandler(svc *prescription.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	prescriptions := r.Group("/prescriptions")
	{
		prescriptions.POST("", h.Issue)
		prescriptions.GET("/patient/:patientId", h.ListByPatient)
		prescriptions.GET("/appointment/:appointmentId", h.GetByAppointment)
	}
}

func (h *Handler) Issue(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	var req model.IssuePrescriptionRequest
	if !handler.Bind(c, &req) {
		return
	}

	rx, err := h.svc.Issue(c.Request.Context(), identity, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, rx)
}

func (h *Handler) ListByPatient(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	patientID, ok := handler.UUIDParam(c, "patientId")
	if !ok {
		return
	}

	list, err := h.svc.ListByPatient(c.Request.Context(), identity, patientID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) GetByAppointment(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	appointmentID, ok := handler.UUIDParam(c, "appointmentId")
	if !ok {
		return
	}

	rx, err := h.svc.GetByAppointment(c.Request.Context(), identity, appointmentID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, rx)
}
