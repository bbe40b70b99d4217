package identity

import (
	"fmt"
	"math"

	"proctor/internal/proctoring/models"
)

// DescriptorLength is the size of every face descriptor the detector produces.
const DescriptorLength = 128

// EuclideanDistance returns the L2 distance between two descriptors of equal length.
func EuclideanDistance(a, b models.Embedding) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("descriptor length mismatch: %d != %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("empty descriptor")
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), nil
}

// ValidateDescriptor rejects descriptors a detector could not have produced.
func ValidateDescriptor(d models.Embedding) error {
	if len(d) != DescriptorLength {
		return fmt.Errorf("descriptor must have %d values, got %d", DescriptorLength, len(d))
	}
	for i, v := range d {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("descriptor value %d is not finite", i)
		}
	}
	return nil
}
