package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadiness(t *testing.T) {
	h := New()
	r := chi.NewRouter()
	h.Register(r)

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := get("/health/ready")
	assert.Equal(t, http.StatusOK, rec.Code)

	h.RegisterCheck("catalog", func(context.Context) error { return nil })
	h.RegisterCheck("signing_key", func(context.Context) error { return errors.New("not configured") })

	rec = get("/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var res ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "not_ready", res.Status)
	assert.Equal(t, "up", res.Checks["catalog"])
	assert.Equal(t, "down: not configured", res.Checks["signing_key"])

	rec = get("/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}
