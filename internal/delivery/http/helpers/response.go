package helpers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"gymcheckin/internal/domain"
)

// Error codes carried in APIError.Code.
const (
	ErrCodeBadRequest    = "bad_request"
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeNotFound      = "not_found"
	ErrCodeConflict      = "conflict"
	ErrCodeUnprocessable = "unprocessable"
	ErrCodeInternalError = "internal_error"
)

// APIError is the error object of the response envelope.
// swagger:model APIError
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// APIResponse is the envelope of every JSON response. Exactly one of Data and
// Error is set.
// swagger:model APIResponse
type APIResponse struct {
	Data  any       `json:"data"`
	Error *APIError `json:"error"`
}

type errorMapping struct {
	target error
	status int
	code   string
}

// domainErrors maps attendance and detection errors to HTTP. Order matters:
// the first match wins.
var domainErrors = []errorMapping{
	{domain.ErrUnknownMember, http.StatusUnprocessableEntity, ErrCodeUnprocessable},
	{domain.ErrAlreadyPresent, http.StatusConflict, ErrCodeConflict},
	{domain.ErrNotPresent, http.StatusConflict, ErrCodeConflict},
	{domain.ErrSessionActive, http.StatusConflict, ErrCodeConflict},
	{domain.ErrSessionClosed, http.StatusConflict, ErrCodeConflict},
	{domain.ErrConflict, http.StatusConflict, ErrCodeConflict},
	{domain.ErrPermissionDenied, http.StatusUnprocessableEntity, ErrCodeUnprocessable},
	{domain.ErrDeviceUnavailable, http.StatusUnprocessableEntity, ErrCodeUnprocessable},
	{domain.ErrNoDecoderAvailable, http.StatusUnprocessableEntity, ErrCodeUnprocessable},
	{domain.ErrInvalidInput, http.StatusBadRequest, ErrCodeBadRequest},
	{domain.ErrMalformedEvent, http.StatusBadRequest, ErrCodeBadRequest},
	{domain.ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
}

// ErrorStatus returns the status and code for a known domain error. ok is
// false for anything else, which callers report as an internal error.
func ErrorStatus(err error) (status int, code string, ok bool) {
	for _, m := range domainErrors {
		if errors.Is(err, m.target) {
			return m.status, m.code, true
		}
	}
	return http.StatusInternalServerError, ErrCodeInternalError, false
}

// WriteDomainError writes err with its mapped status. Unknown errors are
// written as a bare 500 without their message; it reports false for them so
// the caller can log the cause.
func WriteDomainError(w http.ResponseWriter, err error) bool {
	status, code, ok := ErrorStatus(err)
	if !ok {
		WriteJSONError(w, status, code, "internal error")
		return false
	}
	WriteJSONError(w, status, code, err.Error())
	return true
}

// WriteJSONSuccess writes data in the envelope with statusCode.
func WriteJSONSuccess(w http.ResponseWriter, statusCode int, data any) {
	writeEnvelope(w, statusCode, APIResponse{Data: data})
}

// WriteJSONError writes an error envelope with statusCode.
func WriteJSONError(w http.ResponseWriter, statusCode int, code, message string) {
	writeEnvelope(w, statusCode, APIResponse{Error: &APIError{Code: code, Message: message}})
}

func writeEnvelope(w http.ResponseWriter, statusCode int, body APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(body)
}

// SetAttachment marks the response as a download named filename.
func SetAttachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}
