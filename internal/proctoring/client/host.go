package client

import (
	"context"
	"slices"
	"sync"

	"proctor/internal/proctoring/models"
	"proctor/pkg/domain"
)

// SubmissionHost is a monitor.Host that keeps the latest violation flush and
// posts it when the monitor decides to submit.
type SubmissionHost struct {
	client    *Client
	testID    domain.TestID
	attemptID domain.AttemptID
	digest    func() string
	onExit    func(ctx context.Context)

	mu       sync.Mutex
	count    int
	ledger   []models.Violation
	receipt  *Receipt
	onReport func(models.Report)
}

type HostOption func(*SubmissionHost)

// WithResponsesDigest supplies the digest of the student's answers at submit time.
func WithResponsesDigest(fn func() string) HostOption {
	return func(h *SubmissionHost) {
		h.digest = fn
	}
}

// WithExitHook runs after every programmatic fullscreen exit.
func WithExitHook(fn func(ctx context.Context)) HostOption {
	return func(h *SubmissionHost) {
		h.onExit = fn
	}
}

// WithReportHook observes every violation flush.
func WithReportHook(fn func(models.Report)) HostOption {
	return func(h *SubmissionHost) {
		h.onReport = fn
	}
}

// NewSubmissionHost starts from the count and ledger of a resumed attempt.
func NewSubmissionHost(c *Client, testID domain.TestID, attemptID domain.AttemptID, initialCount int, initial []models.Violation, opts ...HostOption) *SubmissionHost {
	h := &SubmissionHost{
		client:    c,
		testID:    testID,
		attemptID: attemptID,
		count:     initialCount,
		ledger:    slices.Clone(initial),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *SubmissionHost) OnViolation(_ context.Context, r models.Report) {
	h.mu.Lock()
	h.count = r.ViolationCount
	h.ledger = slices.Clone(r.Violations)
	hook := h.onReport
	h.mu.Unlock()
	if hook != nil {
		hook(r)
	}
}

// OnSubmit posts the attempt with the full ledger. Errors reach the monitor,
// which shows the generic submission error.
func (h *SubmissionHost) OnSubmit(ctx context.Context, cancelledDueToViolation bool) error {
	_, err := h.SubmitAttempt(ctx, cancelledDueToViolation, cancelledDueToViolation)
	return err
}

func (h *SubmissionHost) OnExitFullscreen(ctx context.Context) {
	if h.onExit != nil {
		h.onExit(ctx)
	}
}

// SubmitAttempt posts the attempt. The host calls it directly for a normal
// submission with cancelled == false.
func (h *SubmissionHost) SubmitAttempt(ctx context.Context, cancelled, auto bool) (Receipt, error) {
	h.mu.Lock()
	sub := Submission{
		AttemptID:               h.attemptID.String(),
		ViolationCount:          h.count,
		Violations:              slices.Clone(h.ledger),
		CancelledDueToViolation: cancelled,
		AutoSubmit:              auto,
	}
	h.mu.Unlock()
	if h.digest != nil {
		sub.ResponsesDigest = h.digest()
	}

	receipt, err := h.client.Submit(ctx, h.testID, sub)
	if err != nil {
		return Receipt{}, err
	}
	h.mu.Lock()
	h.receipt = &receipt
	h.mu.Unlock()
	return receipt, nil
}

// Receipt returns the last successful submission receipt.
func (h *SubmissionHost) Receipt() (Receipt, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.receipt == nil {
		return Receipt{}, false
	}
	return *h.receipt, true
}
