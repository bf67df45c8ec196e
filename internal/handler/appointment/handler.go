package appointment

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/appointment"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

type Handler struct {
	svc *appointment.Service
}

func NewHandler(svc *appointment.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", h.Create)
		appointments.GET("", h.ListAll)
		appointments.GET("/patient/:patientId", h.ListByPatient)
		appointments.GET("/doctor/:doctorId", h.ListByDoctor)
		appointments.GET("/:id", h.Get)
		appointments.PUT("/:id", h.Reschedule)
		appointments.PUT("/:id/status", h.UpdateStatus)
		appointments.PUT("/:id/cancel", h.Cancel)
		appointments.POST("/:id/video-link", h.GenerateVideoLink)
		appointments.GET("/:id/video-link", h.GetVideoLink)
	}
}

func (h *Handler) Create(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	var req model.CreateAppointmentRequest
	if !handler.Bind(c, &req) {
		return
	}

	appt, err := h.svc.Create(c.Request.Context(), identity, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, appt)
}

// ListAll and the per-participant listings accept an optional ?status=.
func (h *Handler) ListAll(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}

	list, err := h.svc.ListAll(c.Request.Context(), identity, c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
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

	list, err := h.svc.ListByPatient(c.Request.Context(), identity, patientID, c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
}

func (h *Handler) ListByDoctor(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	doctorID, ok := handler.UUIDParam(c, "doctorId")
	if !ok {
		return
	}

	list, err := h.svc.ListByDoctor(c.Request.Context(), identity, doctorID, c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, list)
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

	appt, err := h.svc.Get(c.Request.Context(), identity, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) Reschedule(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req model.RescheduleRequest
	if !handler.Bind(c, &req) {
		return
	}

	appt, err := h.svc.Reschedule(c.Request.Context(), identity, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) UpdateStatus(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req model.UpdateAppointmentStatusRequest
	if !handler.Bind(c, &req) {
		return
	}

	appt, err := h.svc.UpdateStatus(c.Request.Context(), identity, id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) Cancel(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	appt, err := h.svc.Cancel(c.Request.Context(), identity, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appt)
}

func (h *Handler) GenerateVideoLink(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	link, err := h.svc.GenerateVideoLink(c.Request.Context(), identity, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, link)
}

func (h *Handler) GetVideoLink(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}

	link, err := h.svc.FetchVideoLink(c.Request.Context(), identity, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, link)
}
