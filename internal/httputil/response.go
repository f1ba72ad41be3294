package httputil

import (
	"encoding/json"
	"net/http"
	"strings"

	apperrors "github.com/openclaw/completion-gateway/internal/errors"
)

func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Envelope is the body shape of every pipeline response.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// WriteResult writes {"status": <StatusName>, "message": message} with the given status code.
func WriteResult(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, Envelope{
		Status:  StatusName(status),
		Message: message,
	})
}

// WriteError writes an error as a pipeline envelope. Unclassified errors
// become 500 with their message.
func WriteError(w http.ResponseWriter, err error) {
	status, message := Classify(err)
	WriteResult(w, status, message)
}

// Classify maps an error to the HTTP status and caller-facing message.
func Classify(err error) (int, string) {
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		return http.StatusInternalServerError, err.Error()
	}
	return StatusFromCode(appErr.Code), appErr.Message
}

// StatusName renders a status code as its name without spaces
// ("Too Many Requests" → "TooManyRequests").
func StatusName(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "Unknown"
	}
	return strings.ReplaceAll(text, " ", "")
}

// StatusFromCode maps ErrorCode to HTTP status code
func StatusFromCode(code apperrors.ErrorCode) int {
	switch code {
	// 400 Bad Request
	case apperrors.ErrCodeBadRequest,
		apperrors.ErrCodeValidation,
		apperrors.ErrCodeInvalidInput,
		apperrors.ErrCodeMissingRequired:
		return http.StatusBadRequest

	// 403 Forbidden
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden

	// 405 Method Not Allowed
	case apperrors.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed

	// 429 Too Many Requests
	case apperrors.ErrCodeRateLimitExceeded,
		apperrors.ErrCodeQuotaExceeded:
		return http.StatusTooManyRequests

	// 500 Internal Server Error, upstream failures included
	case apperrors.ErrCodeInternal,
		apperrors.ErrCodeDatabase,
		apperrors.ErrCodeExternal:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}
