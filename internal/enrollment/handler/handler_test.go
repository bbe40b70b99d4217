package handler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proctor/internal/enrollment/handler"
	"proctor/internal/enrollment/models"
	"proctor/internal/enrollment/service"
	"proctor/internal/enrollment/store"
	id "proctor/pkg/domain"
	"proctor/pkg/requestcontext"
)

func descriptorJSON(first float32) string {
	d := make([]float32, 128)
	d[0] = first
	b, _ := json.Marshal(models.DescriptorRequest{Descriptor: d})
	return string(b)
}

func newRouter(t *testing.T, userID id.UserID) *chi.Mux {
	t.Helper()
	svc, err := service.New(store.NewInMemoryStore())
	require.NoError(t, err)
	h := handler.New(svc, slog.New(slog.DiscardHandler))

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(requestcontext.WithUserID(r.Context(), userID)))
			})
		})
		h.Register(r)
	})
	h.RegisterAdmin(r)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestEnrollmentFlow(t *testing.T) {
	userID := id.UserID(uuid.New())
	r := newRouter(t, userID)

	rec := serve(r, http.MethodGet, "/me/face-descriptor", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(r, http.MethodPost, "/me/face-descriptor", descriptorJSON(0.25))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = serve(r, http.MethodPost, "/me/face-descriptor", descriptorJSON(0.5))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(r, http.MethodGet, "/me/face-descriptor", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var res models.DescriptorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Len(t, res.Descriptor, 128)
	assert.InDelta(t, 0.25, res.Descriptor[0], 1e-6)
	assert.Equal(t, models.SourceSelf, res.Source)

	adminPath := "/admin/users/" + userID.String() + "/face-descriptor"
	rec = serve(r, http.MethodPut, adminPath, descriptorJSON(0.75))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, models.SourceAdmin, res.Source)

	rec = serve(r, http.MethodDelete, adminPath, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = serve(r, http.MethodDelete, adminPath, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEnrollmentRejects(t *testing.T) {
	r := newRouter(t, id.UserID(uuid.New()))

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{"short descriptor", http.MethodPost, "/me/face-descriptor", `{"descriptor":[0.1,0.2]}`, http.StatusBadRequest},
		{"missing descriptor", http.MethodPost, "/me/face-descriptor", `{}`, http.StatusBadRequest},
		{"not json", http.MethodPost, "/me/face-descriptor", `descriptor`, http.StatusBadRequest},
		{"bad user id", http.MethodPut, "/admin/users/nope/face-descriptor", descriptorJSON(0.1), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(r, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
