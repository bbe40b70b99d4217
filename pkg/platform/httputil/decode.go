package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "proctor/pkg/domain-errors"
	"proctor/pkg/requestcontext"
)

// Validatable is implemented by request DTOs that check themselves.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request DTOs that canonicalize input (trim, lowercase).
type Normalizable interface {
	Normalize()
}

// DecodeAndPrepare decodes a JSON body into T, then runs Normalize and
// Validate when T implements them. On failure it writes the error response
// and returns false.
//
//	req, ok := httputil.DecodeAndPrepare[models.VerifyOTPRequest](w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req T
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}

	if n, ok := any(&req).(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := any(&req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			logger.WarnContext(ctx, "invalid request",
				"error", err,
				"request_id", requestID,
			)
			var domainErr *dErrors.Error
			if !errors.As(err, &domainErr) {
				err = dErrors.New(dErrors.CodeValidation, err.Error())
			}
			WriteError(w, err)
			return nil, false
		}
	}
	return &req, true
}
