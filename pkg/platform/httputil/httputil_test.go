package httputil

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "proctor/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "domain error",
			err:    dErrors.New(dErrors.CodeTooManyRequests, "too many OTP attempts"),
			status: http.StatusTooManyRequests,
			body:   `{"error":"too_many_requests","error_description":"too many OTP attempts"}`,
		},
		{
			name:   "wrapped domain error",
			err:    fmt.Errorf("saving: %w", dErrors.New(dErrors.CodeConflict, "already enrolled")),
			status: http.StatusConflict,
			body:   `{"error":"conflict","error_description":"already enrolled"}`,
		},
		{
			name:   "plain error is opaque",
			err:    errors.New("pq: connection reset"),
			status: http.StatusInternalServerError,
			body:   `{"error":"internal_error"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)
			assert.Equal(t, tt.status, w.Code)
			assert.JSONEq(t, tt.body, w.Body.String())
		})
	}
}

func TestStatusMappingRoundTrips(t *testing.T) {
	for _, code := range []dErrors.Code{
		dErrors.CodeNotFound, dErrors.CodeConflict, dErrors.CodeUnauthorized, dErrors.CodeForbidden,
		dErrors.CodePolicyViolation, dErrors.CodeTooManyRequests, dErrors.CodeUnavailable,
	} {
		assert.Equal(t, code, HTTPStatusToDomainCode(DomainCodeToHTTPStatus(code)), code)
	}
}

type otpRequest struct {
	OTP string `json:"otp"`
}

func (r *otpRequest) Normalize() { r.OTP = strings.TrimSpace(r.OTP) }

func (r *otpRequest) Validate() error {
	if len(r.OTP) != 6 {
		return errors.New("otp must be 6 digits")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	decode := func(body string) (*otpRequest, *httptest.ResponseRecorder, bool) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		req, ok := DecodeAndPrepare[otpRequest](w, r, slog.Default())
		return req, w, ok
	}

	req, _, ok := decode(`{"otp":" 123456 "}`)
	require.True(t, ok)
	assert.Equal(t, "123456", req.OTP)

	_, w, ok := decode(`{"otp":"12"}`)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation_error")

	_, w, ok = decode(`{"otp":"123456","extra":true}`)
	assert.False(t, ok)
	assert.Contains(t, w.Body.String(), "bad_request")

	_, _, ok = decode(`not json`)
	assert.False(t, ok)
}
