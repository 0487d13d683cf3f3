package errors

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Success bool        `json:"success"`
	Reason  string      `json:"reason"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeURLTooLong        = "URL_TOO_LONG"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeGone              = "GONE"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeUnavailable       = "SERVICE_UNAVAILABLE"
	ErrCodeCreationFailed    = "CREATION_FAILED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

func WriteError(w http.ResponseWriter, status int, code, reason string, details interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(ErrorResponse{
		Success: false,
		Reason:  reason,
		Details: details,
		Code:    code,
	})
}
