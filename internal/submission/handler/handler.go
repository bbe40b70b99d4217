package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"proctor/internal/submission/models"
	id "proctor/pkg/domain"
	"proctor/pkg/platform/httputil"
	"proctor/pkg/platform/middleware/device"
	"proctor/pkg/requestcontext"
)

type Service interface {
	Submit(ctx context.Context, userID id.UserID, testID id.TestID, req *models.SubmitRequest, dev device.Info) (*models.Submission, bool, error)
	Get(ctx context.Context, userID id.UserID, testID id.TestID, attemptID id.AttemptID) (*models.Submission, error)
}

// Handler serves attempt submission.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/tests/{testID}/submissions", h.handleSubmit)
	r.Get("/tests/{testID}/submissions/{attemptID}", h.handleGet)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	testID, err := id.ParseTestID(chi.URLParam(r, "testID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.SubmitRequest](w, r, h.logger)
	if !ok {
		return
	}

	sub, created, err := h.service.Submit(ctx, userID, testID, req, device.FromContext(r))
	if err != nil {
		h.logger.WarnContext(ctx, "submission failed",
			"request_id", requestcontext.RequestID(ctx),
			"test_id", testID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	httputil.WriteJSON(w, status, models.NewSubmissionResponse(sub))
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	testID, err := id.ParseTestID(chi.URLParam(r, "testID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	attemptID, err := id.ParseAttemptID(chi.URLParam(r, "attemptID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	sub, err := h.service.Get(ctx, userID, testID, attemptID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.NewSubmissionResponse(sub))
}
