package identity

import (
	"context"

	"proctor/internal/proctoring/models"
)

// Frame is one still captured from the live camera preview.
type Frame struct {
	Width  int
	Height int
	Pixels []byte
}

// DetectOptions configures one pass of the face detector.
type DetectOptions struct {
	InputSize      int
	ScoreThreshold float64
}

// Detection is a single detected face with its descriptor.
type Detection struct {
	Score      float64
	Descriptor models.Embedding
}

// DescriptorSource fetches the enrolled reference embedding for the signed-in student.
type DescriptorSource interface {
	FetchDescriptor(ctx context.Context) (models.Embedding, error)
}

// FrameSource grabs the current frame of the camera preview.
type FrameSource interface {
	CaptureFrame(ctx context.Context) (Frame, error)
}

// FaceDetector finds at most one face in a frame. A nil Detection with a nil
// error means no face scored above opts.ScoreThreshold.
type FaceDetector interface {
	DetectSingleFace(ctx context.Context, frame Frame, opts DetectOptions) (*Detection, error)
}
