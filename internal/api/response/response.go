// internal/api/response/response.go
package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/backlab/simcore/internal/core"
)

// Meta carries response metadata.
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
}

// SuccessResponse wraps every successful payload in a data/meta envelope.
type SuccessResponse struct {
	Data any  `json:"data"`
	Meta Meta `json:"meta"`
}

// ErrorDetail is the wire form of a typed domain error.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Cause   string `json:"cause,omitempty"`
}

// ErrorResponse wraps an error detail.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// JSON writes data in the success envelope.
func JSON(w http.ResponseWriter, status int, data any) {
	writeBody(w, status, SuccessResponse{
		Data: data,
		Meta: Meta{Timestamp: time.Now().UTC()},
	})
}

// Error writes err in the error envelope. Typed domain errors expose their
// code, message, and cause; anything else is reported as an opaque internal
// error so wrapped details never leak to callers.
func Error(w http.ResponseWriter, status int, err error) {
	writeBody(w, status, ErrorResponse{Error: detailFrom(err)})
}

func detailFrom(err error) ErrorDetail {
	var domainErr *core.Error
	if !errors.As(err, &domainErr) {
		return ErrorDetail{
			Code:    "INTERNAL_ERROR",
			Message: "an internal error occurred",
		}
	}

	detail := ErrorDetail{Code: domainErr.Code, Message: domainErr.Message}
	if domainErr.Cause != nil {
		detail.Cause = domainErr.Cause.Error()
	}
	return detail
}

func writeBody(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
