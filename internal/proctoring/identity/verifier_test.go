package identity_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"proctor/internal/proctoring/identity"
	"proctor/internal/proctoring/identity/mocks"
	"proctor/internal/proctoring/metrics"
	"proctor/internal/proctoring/models"
	"proctor/internal/proctoring/tracer"
)

func descriptor(first float32) models.Embedding {
	d := make(models.Embedding, identity.DescriptorLength)
	d[0] = first
	return d
}

type VerifierSuite struct {
	suite.Suite
	ctrl        *gomock.Controller
	descriptors *mocks.MockDescriptorSource
	frames      *mocks.MockFrameSource
	detector    *mocks.MockFaceDetector
	metrics     *metrics.Metrics
	spans       *tracer.Recorder
	statuses    []models.VerificationStatus
	verifier    *identity.Verifier
	frame       identity.Frame
}

func TestVerifierSuite(t *testing.T) {
	suite.Run(t, new(VerifierSuite))
}

func (s *VerifierSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.descriptors = mocks.NewMockDescriptorSource(s.ctrl)
	s.frames = mocks.NewMockFrameSource(s.ctrl)
	s.detector = mocks.NewMockFaceDetector(s.ctrl)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.spans = tracer.NewRecorder()
	s.statuses = nil
	s.frame = identity.Frame{Width: 640, Height: 480}
	s.verifier = identity.New(s.descriptors, s.frames, s.detector,
		identity.WithMetrics(s.metrics),
		identity.WithTracer(s.spans),
		identity.WithStatusHook(func(st models.VerificationStatus) { s.statuses = append(s.statuses, st) }),
	)
}

func (s *VerifierSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *VerifierSuite) expectReference() {
	s.descriptors.EXPECT().FetchDescriptor(gomock.Any()).Return(descriptor(0), nil)
}

func (s *VerifierSuite) TestLadderFallsThroughToLowResolution() {
	s.expectReference()
	s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(s.frame, nil).Times(3)
	gomock.InOrder(
		s.detector.EXPECT().DetectSingleFace(gomock.Any(), s.frame, identity.DetectOptions{InputSize: 512, ScoreThreshold: 0.3}).Return(nil, nil),
		s.detector.EXPECT().DetectSingleFace(gomock.Any(), s.frame, identity.DetectOptions{InputSize: 608, ScoreThreshold: 0.3}).Return(nil, errors.New("backend crashed")),
		s.detector.EXPECT().DetectSingleFace(gomock.Any(), s.frame, identity.DetectOptions{InputSize: 320, ScoreThreshold: 0.2}).
			Return(&identity.Detection{Score: 0.4, Descriptor: descriptor(0.55)}, nil),
	)

	res, err := s.verifier.CaptureAndVerify(context.Background())

	s.Require().NoError(err)
	s.Equal(models.VerificationSuccess, res.Status)
	s.InDelta(0.55, res.Distance, 1e-6)
	s.Equal(1, res.Attempts)
	s.Equal([]models.VerificationStatus{models.VerificationVerifying, models.VerificationSuccess}, s.statuses)
	s.Len(s.spans.Named(tracer.SpanDetectAttempt), 3)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.VerificationAttempts.WithLabelValues("success")))
}

func (s *VerifierSuite) TestFirstSuccessStopsLadder() {
	s.expectReference()
	s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(s.frame, nil).Times(1)
	s.detector.EXPECT().DetectSingleFace(gomock.Any(), s.frame, identity.DefaultLadder[0]).
		Return(&identity.Detection{Score: 0.9, Descriptor: descriptor(0.1)}, nil)

	res, err := s.verifier.CaptureAndVerify(context.Background())
	s.Require().NoError(err)
	s.Equal(models.VerificationSuccess, res.Status)
}

func (s *VerifierSuite) TestNoFaceAcrossLadder() {
	s.expectReference()
	s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(s.frame, nil).Times(3)
	s.detector.EXPECT().DetectSingleFace(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil).Times(3)

	res, err := s.verifier.CaptureAndVerify(context.Background())

	s.Require().NoError(err)
	s.Equal(models.VerificationFailed, res.Status)
	s.Equal(identity.MsgNoFace, res.Message)
}

func (s *VerifierSuite) TestMismatch() {
	s.Run("distance exactly at the threshold is not a match", func() {
		s.SetupTest()
		s.expectReference()
		s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(s.frame, nil)
		s.detector.EXPECT().DetectSingleFace(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&identity.Detection{Descriptor: descriptor(0.6)}, nil)

		res, err := s.verifier.CaptureAndVerify(context.Background())
		s.Require().NoError(err)
		s.Equal(models.VerificationFailed, res.Status)
		s.Equal(identity.MsgMismatch, res.Message)
		s.InDelta(0.6, res.Distance, 1e-6)
		s.NotEqual(identity.MsgNoFace, res.Message)
	})

	s.Run("length mismatch is reported as a mismatch", func() {
		s.SetupTest()
		s.expectReference()
		s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(s.frame, nil)
		s.detector.EXPECT().DetectSingleFace(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&identity.Detection{Descriptor: models.Embedding{0.1, 0.2}}, nil)

		res, err := s.verifier.CaptureAndVerify(context.Background())
		s.Require().NoError(err)
		s.Equal(identity.MsgMismatch, res.Message)
	})
}

func (s *VerifierSuite) TestStricterThreshold() {
	v := identity.New(s.descriptors, s.frames, s.detector, identity.WithMatchThreshold(0.4))
	s.expectReference()
	s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(s.frame, nil)
	s.detector.EXPECT().DetectSingleFace(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&identity.Detection{Descriptor: descriptor(0.5)}, nil)

	res, err := v.CaptureAndVerify(context.Background())
	s.Require().NoError(err)
	s.Equal(models.VerificationFailed, res.Status)
}

func (s *VerifierSuite) TestReferenceFetchedOnce() {
	s.expectReference()
	s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(s.frame, nil).Times(2)
	s.detector.EXPECT().DetectSingleFace(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&identity.Detection{Descriptor: descriptor(0.9)}, nil).Times(2)

	_, err := s.verifier.CaptureAndVerify(context.Background())
	s.Require().NoError(err)
	res, err := s.verifier.CaptureAndVerify(context.Background())
	s.Require().NoError(err)
	s.Equal(2, res.Attempts)
}

func (s *VerifierSuite) TestMissingReference() {
	s.descriptors.EXPECT().FetchDescriptor(gomock.Any()).Return(nil, errors.New("404"))

	res, err := s.verifier.CaptureAndVerify(context.Background())

	s.Require().NoError(err)
	s.Equal(identity.MsgNoReference, res.Message)
	s.False(s.verifier.HasReference())
}

func (s *VerifierSuite) TestFrameCaptureFailuresReportNoFace() {
	s.expectReference()
	s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(identity.Frame{}, errors.New("no stream")).Times(3)

	res, err := s.verifier.CaptureAndVerify(context.Background())
	s.Require().NoError(err)
	s.Equal(models.VerificationFailed, res.Status)
	s.Equal(identity.MsgNoFace, res.Message)
}

func (s *VerifierSuite) TestTransientCaptureFailureIsSwallowed() {
	s.expectReference()
	gomock.InOrder(
		s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(identity.Frame{}, errors.New("track muted")),
		s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(s.frame, nil),
	)
	s.detector.EXPECT().DetectSingleFace(gomock.Any(), s.frame, identity.DetectOptions{InputSize: 608, ScoreThreshold: 0.3}).
		Return(&identity.Detection{Score: 0.9, Descriptor: descriptor(0.2)}, nil)

	res, err := s.verifier.CaptureAndVerify(context.Background())
	s.Require().NoError(err)
	s.Equal(models.VerificationSuccess, res.Status)
}

func (s *VerifierSuite) TestReentrantCaptureIsRejected() {
	s.expectReference()
	entered := make(chan struct{})
	release := make(chan struct{})
	s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(s.frame, nil)
	s.detector.EXPECT().DetectSingleFace(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, identity.Frame, identity.DetectOptions) (*identity.Detection, error) {
			close(entered)
			<-release
			return &identity.Detection{Descriptor: descriptor(0.2)}, nil
		})

	done := make(chan models.VerificationResult)
	go func() {
		res, _ := s.verifier.CaptureAndVerify(context.Background())
		done <- res
	}()
	<-entered

	res, err := s.verifier.CaptureAndVerify(context.Background())
	s.ErrorIs(err, identity.ErrInProgress)
	s.Equal(models.VerificationVerifying, res.Status)

	close(release)
	s.Equal(models.VerificationSuccess, (<-done).Status)
}

func (s *VerifierSuite) TestLockAndReset() {
	s.expectReference()
	s.frames.EXPECT().CaptureFrame(gomock.Any()).Return(s.frame, nil)
	s.detector.EXPECT().DetectSingleFace(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&identity.Detection{Descriptor: descriptor(0.1)}, nil)
	_, err := s.verifier.CaptureAndVerify(context.Background())
	s.Require().NoError(err)

	s.verifier.Lock()
	res, err := s.verifier.CaptureAndVerify(context.Background())
	s.ErrorIs(err, identity.ErrLocked)
	s.Equal(models.VerificationSuccess, res.Status, "status never regresses once locked")

	s.verifier.Reset()
	s.Equal(models.VerificationPending, s.verifier.Status())
	s.True(s.verifier.HasReference())
}

func TestEuclideanDistance(t *testing.T) {
	d, err := identity.EuclideanDistance(models.Embedding{0, 3}, models.Embedding{4, 0})
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)

	_, err = identity.EuclideanDistance(models.Embedding{1}, models.Embedding{1, 2})
	assert.Error(t, err)

	_, err = identity.EuclideanDistance(nil, nil)
	assert.Error(t, err)
}

func TestValidateDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		input   models.Embedding
		wantErr bool
	}{
		{name: "valid", input: descriptor(0.3)},
		{name: "too short", input: models.Embedding{0.1}, wantErr: true},
		{name: "nan", input: func() models.Embedding { d := descriptor(0); d[5] = float32(math.NaN()); return d }(), wantErr: true},
		{name: "inf", input: func() models.Embedding { d := descriptor(0); d[7] = float32(math.Inf(1)); return d }(), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := identity.ValidateDescriptor(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}
