package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"proctor/internal/enrollment/models"
	pmodels "proctor/internal/proctoring/models"
	id "proctor/pkg/domain"
	"proctor/pkg/platform/httputil"
	"proctor/pkg/platform/middleware/admin"
	"proctor/pkg/requestcontext"
)

type Service interface {
	Descriptor(ctx context.Context, userID id.UserID) (*models.Enrollment, error)
	Enroll(ctx context.Context, userID id.UserID, descriptor pmodels.Embedding) (*models.Enrollment, error)
	Override(ctx context.Context, userID id.UserID, descriptor pmodels.Embedding, actor string) (*models.Enrollment, error)
	Remove(ctx context.Context, userID id.UserID, actor string) error
}

// Handler serves face descriptor enrollment.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/me/face-descriptor", h.handleGetDescriptor)
	r.Post("/me/face-descriptor", h.handleEnroll)
}

func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/users/{userID}/face-descriptor", h.handleOverride)
	r.Delete("/admin/users/{userID}/face-descriptor", h.handleRemove)
}

func (h *Handler) handleGetDescriptor(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	e, err := h.service.Descriptor(ctx, userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewDescriptorResponse(e))
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.DescriptorRequest](w, r, h.logger)
	if !ok {
		return
	}
	e, err := h.service.Enroll(ctx, userID, req.Descriptor)
	if err != nil {
		h.logger.WarnContext(ctx, "face descriptor enrollment failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, models.NewDescriptorResponse(e))
}

func (h *Handler) pathUserID(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.UserID{}, false
	}
	return userID, true
}

func (h *Handler) handleOverride(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.DescriptorRequest](w, r, h.logger)
	if !ok {
		return
	}
	e, err := h.service.Override(ctx, userID, req.Descriptor, admin.ActorID(ctx))
	if err != nil {
		h.logger.ErrorContext(ctx, "face descriptor override failed",
			"request_id", requestcontext.RequestID(ctx),
			"user_id", userID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewDescriptorResponse(e))
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.pathUserID(w, r)
	if !ok {
		return
	}
	if err := h.service.Remove(ctx, userID, admin.ActorID(ctx)); err != nil {
		httputil.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
