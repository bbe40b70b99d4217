package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"proctor/internal/exam/models"
	id "proctor/pkg/domain"
	"proctor/pkg/platform/httputil"
	"proctor/pkg/platform/middleware/admin"
	"proctor/pkg/requestcontext"
)

// Service defines the test configuration and OTP operations.
type Service interface {
	Policy(ctx context.Context, testID id.TestID) (*models.PolicyResponse, error)
	Upsert(ctx context.Context, testID id.TestID, req *models.UpsertTestRequest) (*models.Test, error)
	IssueOTP(ctx context.Context, testID id.TestID) (*models.IssueOTPResponse, error)
	VerifyOTP(ctx context.Context, userID id.UserID, testID id.TestID, otp string) (bool, error)
}

// Handler serves test policy and bypass code endpoints.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the student routes. The router must already require auth.
func (h *Handler) Register(r chi.Router) {
	r.Get("/tests/{testID}/policy", h.handleGetPolicy)
	r.Post("/tests/{testID}/otp/verify", h.handleVerifyOTP)
}

// RegisterAdmin mounts the instructor routes behind the admin token.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Put("/admin/tests/{testID}", h.handleUpsertTest)
	r.Post("/admin/tests/{testID}/otp", h.handleIssueOTP)
}

func (h *Handler) testID(w http.ResponseWriter, r *http.Request) (id.TestID, bool) {
	testID, err := id.ParseTestID(chi.URLParam(r, "testID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.TestID{}, false
	}
	return testID, true
}

func (h *Handler) handleGetPolicy(w http.ResponseWriter, r *http.Request) {
	testID, ok := h.testID(w, r)
	if !ok {
		return
	}
	res, err := h.service.Policy(r.Context(), testID)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to get test policy",
			"request_id", requestcontext.RequestID(r.Context()),
			"test_id", testID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, err := httputil.RequireUserID(ctx, h.logger)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	testID, ok := h.testID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.VerifyOTPRequest](w, r, h.logger)
	if !ok {
		return
	}

	valid, err := h.service.VerifyOTP(ctx, userID, testID, req.OTP)
	if err != nil {
		h.logger.WarnContext(ctx, "OTP verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"test_id", testID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, models.VerifyOTPResponse{Valid: valid})
}

func (h *Handler) handleUpsertTest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	testID, ok := h.testID(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[models.UpsertTestRequest](w, r, h.logger)
	if !ok {
		return
	}
	t, err := h.service.Upsert(ctx, testID, req)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to save test",
			"request_id", requestcontext.RequestID(ctx),
			"test_id", testID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "test saved",
		"test_id", testID.String(),
		"actor", admin.ActorID(ctx),
		"event", "admin_test_upserted",
		"log_type", "audit",
	)
	httputil.WriteJSON(w, http.StatusOK, models.TestResponse{
		TestID:             t.ID.String(),
		Title:              t.Title,
		AllowedTabSwitches: t.AllowedTabSwitches,
		Practice:           t.Practice,
		UpdatedAt:          t.UpdatedAt,
	})
}

func (h *Handler) handleIssueOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	testID, ok := h.testID(w, r)
	if !ok {
		return
	}
	res, err := h.service.IssueOTP(ctx, testID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue OTP",
			"request_id", requestcontext.RequestID(ctx),
			"test_id", testID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "OTP issued",
		"test_id", testID.String(),
		"actor", admin.ActorID(ctx),
		"event", "admin_otp_issued",
		"log_type", "audit",
	)
	httputil.WriteJSON(w, http.StatusCreated, res)
}
