package server

import (
	"errors"
	"net/http"

	"github.com/Ashenafi-pixel/jackpot-royale/persist"
	"github.com/Ashenafi-pixel/jackpot-royale/session"
)

// APIError is the standard error response.
type APIError struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeError(w http.ResponseWriter, code int, errMsg, codeStr string) {
	writeJSON(w, code, APIError{
		Error:   errMsg,
		Code:    codeStr,
		Message: errMsg,
	})
}

// statusOf maps engine errors to an HTTP status and error code.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, session.ErrSpinInProgress):
		return http.StatusConflict, "SPIN_IN_PROGRESS"
	case errors.Is(err, session.ErrInsufficientCredits):
		return http.StatusUnprocessableEntity, "INSUFFICIENT_CREDITS"
	case errors.Is(err, session.ErrInvalidStake):
		return http.StatusBadRequest, "INVALID_STAKE"
	case errors.Is(err, session.ErrInvalidUsername):
		return http.StatusBadRequest, "INVALID_USERNAME"
	case errors.Is(err, persist.ErrQueueFull), errors.Is(err, persist.ErrClosed):
		return http.StatusServiceUnavailable, "STORE_BUSY"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func writeServiceError(w http.ResponseWriter, err error) {
	code, codeStr := statusOf(err)
	msg := err.Error()
	if code == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, code, msg, codeStr)
}
