package httptransport_test

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"
	"golang.org/x/crypto/bcrypt"

	enrollmenthandler "proctor/internal/enrollment/handler"
	enrollmentservice "proctor/internal/enrollment/service"
	enrollmentstore "proctor/internal/enrollment/store"
	examhandler "proctor/internal/exam/handler"
	"proctor/internal/exam/lockout"
	exammetrics "proctor/internal/exam/metrics"
	"proctor/internal/exam/models"
	examservice "proctor/internal/exam/service"
	examstore "proctor/internal/exam/store"
	jwttoken "proctor/internal/jwt_token"
	"proctor/internal/platform/health"
	submissionhandler "proctor/internal/submission/handler"
	submissionservice "proctor/internal/submission/service"
	submissionstore "proctor/internal/submission/store"
	httptransport "proctor/internal/transport/http"
	id "proctor/pkg/domain"
)

const adminToken = "s3cret-admin"

type RouterSuite struct {
	suite.Suite
	router http.Handler
	token  string
	testID id.TestID
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterSuite))
}

func (s *RouterSuite) SetupTest() {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	reg := prometheus.NewRegistry()

	tests := examstore.NewInMemoryTestStore()
	s.testID = id.NewTestID()
	allowed := 2
	s.Require().NoError(tests.Save(ctx, &models.Test{ID: s.testID, Title: "Compilers", AllowedTabSwitches: &allowed}))
	limiter, err := lockout.New(lockout.NewInMemoryStore())
	s.Require().NoError(err)
	exams, err := examservice.New(tests, limiter, examservice.WithBcryptCost(bcrypt.MinCost), examservice.WithMetrics(exammetrics.New(reg)))
	s.Require().NoError(err)
	enrollment, err := enrollmentservice.New(enrollmentstore.NewInMemoryStore())
	s.Require().NoError(err)
	submissions, err := submissionservice.New(submissionstore.NewInMemoryStore())
	s.Require().NoError(err)

	jwt := jwttoken.NewJWTService("router-test-key", "http://proctor.test", "proctor-client", time.Hour)
	s.token, _, err = jwt.GenerateAccessToken(ctx, id.UserID(uuid.New()), jwttoken.RoleStudent)
	s.Require().NoError(err)

	examH := examhandler.New(exams, logger)
	enrollmentH := enrollmenthandler.New(enrollment, logger)
	s.router = httptransport.NewRouter(httptransport.Config{
		Logger:       logger,
		Tokens:       jwt,
		AdminToken:   adminToken,
		MaxBodyBytes: 16 * 1024,
		Gatherer:     reg,
		Health:       health.New(),
		Student:      []httptransport.RouteRegistrar{examH, enrollmentH, submissionhandler.New(submissions, logger)},
		Admin:        []httptransport.AdminRouteRegistrar{examH, enrollmentH},
	})
}

func (s *RouterSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *RouterSuite) bearer() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.token}
}

func (s *RouterSuite) TestOperationalEndpoints() {
	rec := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.NotEmpty(rec.Header().Get("X-Request-ID"))

	rec = s.do(http.MethodGet, "/metrics", "", nil)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *RouterSuite) TestStudentRoutesRequireToken() {
	policy := "/tests/" + s.testID.String() + "/policy"

	rec := s.do(http.MethodGet, policy, "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, policy, "", map[string]string{"Authorization": "Bearer forged"})
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, policy, "", s.bearer())
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"allowedTabSwitches":2`)
}

func (s *RouterSuite) TestAdminRoutesRequireAdminToken() {
	path := "/admin/tests/" + s.testID.String() + "/otp"

	rec := s.do(http.MethodPost, path, "", s.bearer())
	s.Equal(http.StatusUnauthorized, rec.Code, "a student token is not an admin token")

	rec = s.do(http.MethodPost, path, "", map[string]string{"X-Admin-Token": adminToken})
	s.Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodGet, "/tests/"+s.testID.String()+"/policy", "", s.bearer())
	s.Contains(rec.Body.String(), `"bypassAvailable":true`)
}

func (s *RouterSuite) TestRejectsNonJSONBodies() {
	headers := s.bearer()
	headers["Content-Type"] = "text/plain"
	rec := s.do(http.MethodPost, "/tests/"+s.testID.String()+"/otp/verify", `otp=123456`, headers)
	s.Equal(http.StatusUnsupportedMediaType, rec.Code)
}

func (s *RouterSuite) TestBodyLimit() {
	big := `{"descriptor":[` + strings.Repeat("0.1,", 8000) + `0.1]}`
	rec := s.do(http.MethodPost, "/me/face-descriptor", big, s.bearer())
	s.Equal(http.StatusBadRequest, rec.Code)
}
