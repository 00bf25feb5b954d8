// Package httputil centralizes JSON response writing and request decoding
// so handlers stay thin and error mapping lives in exactly one place.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "tridcheck/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies. Fee lists are small; anything past
// this is a malformed or hostile payload.
const maxBodyBytes = 1 << 20

// Validatable is implemented by request types that validate and parse
// themselves after JSON decoding.
type Validatable interface {
	Validate() error
}

// errorResponse is the wire shape for all error responses.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to an HTTP status and wire code and writes
// the JSON error body. Messages for 5xx responses are never surfaced to the
// caller; everything else includes the domain error message as
// error_description.
func WriteError(w http.ResponseWriter, err error) {
	status, wireCode := statusFor(dErrors.CodeOf(err))

	resp := errorResponse{Error: wireCode}
	if status < http.StatusInternalServerError {
		resp.ErrorDescription = messageOf(err)
	}
	WriteJSON(w, status, resp)
}

func statusFor(code dErrors.Code) (int, string) {
	switch code {
	case dErrors.CodeBadRequest:
		return http.StatusBadRequest, "bad_request"
	case dErrors.CodeValidation:
		return http.StatusBadRequest, "validation_failed"
	case dErrors.CodeInvalidInput:
		return http.StatusBadRequest, "invalid_input"
	case dErrors.CodeUnknownFeeCategory:
		return http.StatusUnprocessableEntity, "unknown_fee_category"
	case dErrors.CodeInvalidAmount:
		return http.StatusUnprocessableEntity, "invalid_amount"
	case dErrors.CodeInvalidDateOrdering:
		return http.StatusUnprocessableEntity, "invalid_date_ordering"
	case dErrors.CodeNotFound:
		return http.StatusNotFound, "not_found"
	case dErrors.CodeConflict:
		return http.StatusConflict, "conflict"
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized, "unauthorized"
	case dErrors.CodeForbidden:
		return http.StatusForbidden, "forbidden"
	case dErrors.CodeUnavailable:
		return http.StatusServiceUnavailable, "service_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// messageOf returns the domain error message without its cause chain, so
// infrastructure details never leak into response bodies.
func messageOf(err error) string {
	var d *dErrors.Error
	if errors.As(err, &d) {
		return d.Message()
	}
	return err.Error()
}

// DecodeAndPrepare decodes the request body into T and runs its validation.
// On failure it writes the error response and logs the rejection; callers
// check the bool and return immediately when false.
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req := new(T)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(req); err != nil {
		if logger != nil {
			logger.InfoContext(ctx, "request body rejected",
				"request_id", requestID,
				"error", err.Error(),
			)
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body is not valid JSON"))
		return nil, false
	}

	if v, ok := any(req).(Validatable); ok {
		if err := v.Validate(); err != nil {
			if logger != nil {
				logger.InfoContext(ctx, "request validation failed",
					"request_id", requestID,
					"error", err.Error(),
				)
			}
			WriteError(w, err)
			return nil, false
		}
	}

	return req, true
}
