package sim

import (
	"context"
	"errors"

	"proctor/internal/proctoring/identity"
	"proctor/internal/proctoring/models"
	"proctor/pkg/domain"
)

var (
	errNoPreview = errors.New("camera preview is not attached")
	errNoFace    = errors.New("detector backend failed")
)

// Faces is a scriptable identity.FaceDetector. Each ladder pass is looked up by
// input size; a missing entry means no face.
type Faces struct {
	ByInputSize map[int]float32
	// Fail makes the listed input sizes raise detector errors instead of returning nothing.
	Fail  map[int]bool
	Calls []identity.DetectOptions
}

func (f *Faces) DetectSingleFace(_ context.Context, _ identity.Frame, opts identity.DetectOptions) (*identity.Detection, error) {
	f.Calls = append(f.Calls, opts)
	if f.Fail[opts.InputSize] {
		return nil, errNoFace
	}
	offset, ok := f.ByInputSize[opts.InputSize]
	if !ok {
		return nil, nil
	}
	return &identity.Detection{Score: 0.8, Descriptor: Descriptor(offset)}, nil
}

// Descriptor builds a valid descriptor whose distance to Descriptor(0) is offset.
func Descriptor(offset float32) models.Embedding {
	d := make(models.Embedding, identity.DescriptorLength)
	d[0] = offset
	return d
}

// Descriptors serves a fixed reference embedding.
type Descriptors struct {
	Reference models.Embedding
	Err       error
	Fetches   int
}

func (d *Descriptors) FetchDescriptor(context.Context) (models.Embedding, error) {
	d.Fetches++
	if d.Err != nil {
		return nil, d.Err
	}
	return d.Reference.Clone(), nil
}

// OTP accepts exactly one code.
type OTP struct {
	Code string
	Err  error
}

func (o *OTP) VerifyOTP(_ context.Context, _ domain.TestID, otp string) (bool, error) {
	if o.Err != nil {
		return false, o.Err
	}
	return otp == o.Code, nil
}
