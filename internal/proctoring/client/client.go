// Package client adapts the proctoring API to the monitor's ports.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"proctor/internal/proctoring/models"
	"proctor/pkg/domain"
	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/platform/circuit"
	"proctor/pkg/platform/httputil"
)

const (
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

// Client calls the proctoring API with the student's bearer token. All calls
// share one circuit breaker; an open circuit fails fast with CodeUnavailable.
type Client struct {
	baseURL *url.URL
	token   string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}
	if token == "" {
		return nil, fmt.Errorf("API token is required")
	}
	c := &Client{
		baseURL: u,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: circuit.New("proctoring-api"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type errorEnvelope struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// do sends a JSON request and decodes a 2xx JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.breaker.Allow() {
		return dErrors.New(dErrors.CodeUnavailable, "proctoring API unavailable, circuit open")
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "encoding request")
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, body)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.failure(ctx, method, path, err)
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "proctoring API request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		c.failure(ctx, method, path, fmt.Errorf("status %d", resp.StatusCode))
	} else {
		c.success()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "decoding response")
	}
	return nil
}

func statusError(resp *http.Response) error {
	code := httputil.HTTPStatusToDomainCode(resp.StatusCode)
	var env errorEnvelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if json.Unmarshal(raw, &env) == nil && env.ErrorDescription != "" {
		return dErrors.New(code, env.ErrorDescription)
	}
	return dErrors.New(code, fmt.Sprintf("proctoring API returned %d", resp.StatusCode))
}

func (c *Client) failure(ctx context.Context, method, path string, err error) {
	change := c.breaker.RecordFailure()
	if c.logger == nil {
		return
	}
	c.logger.WarnContext(ctx, "proctoring API call failed",
		"method", method,
		"path", path,
		"error", err,
	)
	if change.Opened {
		c.logger.WarnContext(ctx, "circuit opened", "breaker", c.breaker.Name())
	}
}

func (c *Client) success() {
	if change := c.breaker.RecordSuccess(); change.Closed && c.logger != nil {
		c.logger.Info("circuit closed", "breaker", c.breaker.Name())
	}
}

type descriptorBody struct {
	Descriptor []float32 `json:"descriptor"`
}

// FetchDescriptor implements identity.DescriptorSource.
func (c *Client) FetchDescriptor(ctx context.Context) (models.Embedding, error) {
	var res descriptorBody
	if err := c.do(ctx, http.MethodGet, "/me/face-descriptor", nil, &res); err != nil {
		return nil, err
	}
	return models.Embedding(res.Descriptor), nil
}

// EnrollDescriptor saves the student's reference descriptor. The server accepts
// it once; later attempts fail with CodeConflict.
func (c *Client) EnrollDescriptor(ctx context.Context, descriptor models.Embedding) error {
	return c.do(ctx, http.MethodPost, "/me/face-descriptor", descriptorBody{Descriptor: descriptor}, nil)
}

type verifyOTPRequest struct {
	OTP string `json:"otp"`
}

type verifyOTPResponse struct {
	Valid bool `json:"valid"`
}

// VerifyOTP implements bypass.OTPVerifier. A lockout surfaces as CodeTooManyRequests.
func (c *Client) VerifyOTP(ctx context.Context, testID domain.TestID, otp string) (bool, error) {
	var res verifyOTPResponse
	path := "/tests/" + testID.String() + "/otp/verify"
	if err := c.do(ctx, http.MethodPost, path, verifyOTPRequest{OTP: otp}, &res); err != nil {
		return false, err
	}
	return res.Valid, nil
}

// TestPolicy is the per-test configuration the monitor starts from.
type TestPolicy struct {
	Title           string
	Policy          models.Policy
	Practice        bool
	BypassAvailable bool
}

type policyResponse struct {
	Title              string `json:"title"`
	AllowedTabSwitches *int   `json:"allowedTabSwitches"`
	Practice           bool   `json:"practice"`
	BypassAvailable    bool   `json:"bypassAvailable"`
}

// FetchPolicy loads the tolerance for testID. A missing field means the default.
func (c *Client) FetchPolicy(ctx context.Context, testID domain.TestID) (TestPolicy, error) {
	var res policyResponse
	if err := c.do(ctx, http.MethodGet, "/tests/"+testID.String()+"/policy", nil, &res); err != nil {
		return TestPolicy{}, err
	}
	policy, err := models.PolicyFromTest(res.AllowedTabSwitches)
	if err != nil {
		return TestPolicy{}, err
	}
	return TestPolicy{
		Title:           res.Title,
		Policy:          policy,
		Practice:        res.Practice,
		BypassAvailable: res.BypassAvailable,
	}, nil
}

// Submission is the payload of one attempt.
type Submission struct {
	AttemptID               string             `json:"attemptId"`
	ResponsesDigest         string             `json:"responsesDigest,omitempty"`
	ViolationCount          int                `json:"violationCount"`
	Violations              []models.Violation `json:"violations"`
	CancelledDueToViolation bool               `json:"cancelledDueToViolation"`
	AutoSubmit              bool               `json:"autoSubmit"`
}

// Receipt is the server's stored view of a submission.
type Receipt struct {
	AttemptID      string    `json:"attemptId"`
	ViolationCount int       `json:"violationCount"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// Submit posts an attempt. Posting the same attempt again returns the stored receipt.
func (c *Client) Submit(ctx context.Context, testID domain.TestID, sub Submission) (Receipt, error) {
	if sub.Violations == nil {
		sub.Violations = []models.Violation{}
	}
	var res Receipt
	if err := c.do(ctx, http.MethodPost, "/tests/"+testID.String()+"/submissions", sub, &res); err != nil {
		return Receipt{}, err
	}
	return res, nil
}
