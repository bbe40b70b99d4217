package validation

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "proctor/pkg/domain-errors"
)

type sample struct {
	AttemptID  string    `validate:"required,uuid"`
	Title      string    `validate:"notblank,max=10"`
	Count      int       `validate:"min=0"`
	Mode       string    `validate:"omitempty,oneof=text json"`
	OTP        string    `validate:"omitempty,len=6,digits"`
	Descriptor []float32 `validate:"omitempty,len=3,dive,finite"`
}

func TestValidate(t *testing.T) {
	valid := sample{AttemptID: "6f1c2a34-9a4e-4c1e-8f43-1f2d3c4b5a69", Title: "Quiz"}

	tests := []struct {
		name string
		mut  func(*sample)
		want string
	}{
		{"valid", func(*sample) {}, ""},
		{"missing attempt", func(s *sample) { s.AttemptID = "" }, "attempt_id is required"},
		{"bad uuid", func(s *sample) { s.AttemptID = "nope" }, "attempt_id must be a valid uuid"},
		{"blank title", func(s *sample) { s.Title = "   " }, "title must not be blank"},
		{"long title", func(s *sample) { s.Title = "Compilers final exam" }, "title must be at most 10"},
		{"negative count", func(s *sample) { s.Count = -1 }, "count must be at least 0"},
		{"unknown mode", func(s *sample) { s.Mode = "xml" }, "mode must be one of [text json]"},
		{"six digit otp", func(s *sample) { s.OTP = "042917" }, ""},
		{"otp with letters", func(s *sample) { s.OTP = "12ab56" }, "otp must contain only digits"},
		{"signed otp", func(s *sample) { s.OTP = "-12345" }, "otp must contain only digits"},
		{"short otp", func(s *sample) { s.OTP = "1234" }, "otp must be exactly 6 characters"},
		{"finite descriptor", func(s *sample) { s.Descriptor = []float32{0.1, -0.2, 0.3} }, ""},
		{"short descriptor", func(s *sample) { s.Descriptor = []float32{0.1} }, "descriptor must have 3 values"},
		{"nan in descriptor", func(s *sample) { s.Descriptor = []float32{0, float32(math.NaN()), 1} }, "descriptor values must be finite"},
		{"inf in descriptor", func(s *sample) { s.Descriptor = []float32{0, 1, float32(math.Inf(-1))} }, "descriptor values must be finite"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mut(&req)
			err := Validate(req)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestErrorMessageForNonValidatorErrors(t *testing.T) {
	assert.Equal(t, "invalid request body", ErrorMessage(errors.New("boom")))
}
