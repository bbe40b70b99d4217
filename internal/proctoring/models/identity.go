package models

// VerificationStatus is the state of the identity check.
type VerificationStatus string

const (
	VerificationPending   VerificationStatus = "pending"
	VerificationVerifying VerificationStatus = "verifying"
	VerificationSuccess   VerificationStatus = "success"
	VerificationFailed    VerificationStatus = "failed"
)

// Embedding is a fixed-length face descriptor. It is never the source image.
type Embedding []float32

// Clone returns an independent copy so callers cannot mutate held references.
func (e Embedding) Clone() Embedding {
	if e == nil {
		return nil
	}
	out := make(Embedding, len(e))
	copy(out, e)
	return out
}

// VerificationResult is the outcome of one captureAndVerify call.
type VerificationResult struct {
	Status   VerificationStatus `json:"status"`
	Distance float64            `json:"distance,omitempty"`
	Attempts int                `json:"attempts"`
	Message  string             `json:"message,omitempty"`
}
