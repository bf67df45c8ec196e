package note

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/care-portal/internal/handler"
	"github.com/jwalitptl/care-portal/internal/model"
	"github.com/jwalitptl/care-portal/internal/service/note"
	"github.com/jwalitptl/care-portal/pkg/httputil"
)

type Handler struct {
	svc *note.Service
}

func NewHandler(svc *note.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	notes := r.Group("/notes")
	{
		notes.POST("", h.Create)
		notes.GET("", h.List)
		notes.GET("/:id", h.Get)
		notes.PUT("/:id", h.Update)
		notes.DELETE("/:id", h.Delete)
	}
}

func (h *Handler) Create(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	var req model.CreateNoteRequest
	if !handler.Bind(c, &req) {
		return
	}

	n, err := h.svc.Create(c.Request.Context(), identity, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithCreated(c, n)
}

// List accepts optional doctor_id and patient_id query filters.
func (h *Handler) List(c *gin.Context) {
	identity, ok := handler.Identity(c)
	if !ok {
		return
	}
	doctorID, ok := handler.UUIDQuery(c, "doctor_id")
	if !ok {
		return
	}
	patientID, ok := handler.UUIDQuery(c, "patient_id")
	if !ok {
		return
	}

	list, err := h.svc.List(c.Request.Context(), identity, model.NoteFilter{DoctorID: doctorID, PatientID: patientID})
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

	n, err := h.svc.Get(c.Request.Context(), identity, id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, n)
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
	var req model.UpdateNoteRequest
	if !handler.Bind(c, &req) {
		return
	}

	n, err := h.svc.Update(c.Request.Context(), identity, id, &req)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, n)
}

func (h *Handler) Delete(c *gin.Context) {
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
