package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/cloudvault/internal/common"
)

// envelope is the body of every JSON response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

func fail(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeJSON(w, status, envelope{Success: false, Message: err.Error(), Error: code})
}

// statusFor maps a service error onto an HTTP status and a stable error
// code. Anything unrecognised is reported as an unavailable dependency.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		return http.StatusBadRequest, "InvalidArgument"
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, common.ErrForbidden):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, common.ErrSharingDisabled):
		return http.StatusForbidden, "SharingDisabled"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, common.ErrLinkInvalid):
		return http.StatusGone, "LinkInvalid"
	case errors.Is(err, common.ErrQuotaExceeded):
		return http.StatusInsufficientStorage, "QuotaExceeded"
	case errors.Is(err, common.ErrCorruptHierarchy):
		return http.StatusInternalServerError, "CorruptHierarchy"
	}
	return http.StatusServiceUnavailable, "DependencyUnavailable"
}
