package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/suite"

	id "proctor/pkg/domain"
	"proctor/pkg/requestcontext"
)

type stubValidator struct {
	claims *JWTClaims
	err    error
	seen   string
}

func (v *stubValidator) ValidateToken(token string) (*JWTClaims, error) {
	v.seen = token
	return v.claims, v.err
}

type AuthMiddlewareSuite struct {
	suite.Suite
	validator *stubValidator
	reached   bool
	userID    id.UserID
	role      string
	handler   http.Handler
}

func TestAuthMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(AuthMiddlewareSuite))
}

func (s *AuthMiddlewareSuite) SetupTest() {
	s.validator = &stubValidator{}
	s.reached = false
	s.handler = RequireAuth(s.validator, slog.Default())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.reached = true
		s.userID = requestcontext.UserID(r.Context())
		s.role = requestcontext.Role(r.Context())
	}))
}

func (s *AuthMiddlewareSuite) serve(header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me/face-descriptor", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, req)
	return w
}

func (s *AuthMiddlewareSuite) TestValidToken() {
	s.validator.claims = &JWTClaims{UserID: "4f7c1c7e-3a57-4d7b-9b5e-4a1f0e2d9c11", Role: "student"}

	w := s.serve("Bearer good")

	s.Equal(http.StatusOK, w.Code)
	s.True(s.reached)
	s.Equal("good", s.validator.seen)
	s.Equal("4f7c1c7e-3a57-4d7b-9b5e-4a1f0e2d9c11", s.userID.String())
	s.Equal("student", s.role)
}

func (s *AuthMiddlewareSuite) TestRejections() {
	s.Run("missing header", func() {
		s.SetupTest()
		w := s.serve("")
		s.Equal(http.StatusUnauthorized, w.Code)
		s.False(s.reached)
	})

	s.Run("wrong scheme", func() {
		s.SetupTest()
		w := s.serve("Basic abc")
		s.Equal(http.StatusUnauthorized, w.Code)
		s.Empty(s.validator.seen)
	})

	s.Run("invalid token", func() {
		s.SetupTest()
		s.validator.err = errors.New("expired")
		w := s.serve("Bearer stale")
		s.Equal(http.StatusUnauthorized, w.Code)
		s.JSONEq(`{"error":"unauthorized","error_description":"Invalid or expired token"}`, w.Body.String())
	})

	s.Run("malformed subject", func() {
		s.SetupTest()
		s.validator.claims = &JWTClaims{UserID: "not-a-uuid"}
		w := s.serve("Bearer odd")
		s.Equal(http.StatusUnauthorized, w.Code)
		s.False(s.reached)
	})
}
