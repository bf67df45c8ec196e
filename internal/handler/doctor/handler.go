package doctor

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
	doctors := r.Group("/doctors")
	{
		doctors.GET("", h.List)
		doctors.GET("/approved", h.ListApproved)
		doctors.GET("/:id", h.Get)
		doctors.PUT("/:id/status", h.SetStatus)
	}
	r.GET("/patients/doctor/:doctorId", h.Patients)
}

// List accepts an optional ?status= filter.
func (h *Handler) List(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}

	doctors, err := h.svc.ListDoctors(c.Request.Context(), identity, c.Query("status"))
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) ListApproved(c *gin.Context) {
	doctors, err := h.svc.ListApprovedDoctors(c.Request.Context())
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
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

	doc, err := h.svc.GetDoctor(c.Request.Context(), identity, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doc)
}

func (h *Handler) SetStatus(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	id, ok := handler.UUIDParam(c, "id")
	if !ok {
		return
	}
	var req model.SetDoctorStatusRequest
	if !handler.Bind(c, &req) {
		return
	}

	doc, err := h.svc.SetDoctorStatus(c.Request.Context(), identity, id, req.Status)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doc)
}

func (h *Handler) Patients(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	doctorID, ok := handler.UUIDParam(c, "doctorId")
	if !ok {
		return
	}

	patients, err := h.svc.PatientsOfDoctor(c.Request.Context(), identity, doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, patients)
}
