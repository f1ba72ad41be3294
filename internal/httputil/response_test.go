package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/openclaw/completion-gateway/internal/errors"
)

func TestStatusName(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{http.StatusOK, "OK"},
		{http.StatusBadRequest, "BadRequest"},
		{http.StatusForbidden, "Forbidden"},
		{http.StatusMethodNotAllowed, "MethodNotAllowed"},
		{http.StatusTooManyRequests, "TooManyRequests"},
		{http.StatusInternalServerError, "InternalServerError"},
		{799, "Unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, StatusName(tc.status))
		})
	}
}

func TestStatusFromCode(t *testing.T) {
	tests := []struct {
		code     apperrors.ErrorCode
		expected int
	}{
		{apperrors.ErrCodeBadRequest, http.StatusBadRequest},
		{apperrors.ErrCodeMissingRequired, http.StatusBadRequest},
		{apperrors.ErrCodeForbidden, http.StatusForbidden},
		{apperrors.ErrCodeMethodNotAllowed, http.StatusMethodNotAllowed},
		{apperrors.ErrCodeQuotaExceeded, http.StatusTooManyRequests},
		{apperrors.ErrCodeRateLimitExceeded, http.StatusTooManyRequests},
		{apperrors.ErrCodeExternal, http.StatusInternalServerError},
		{apperrors.ErrCodeDatabase, http.StatusInternalServerError},
		{apperrors.ErrorCode("SOMETHING_ELSE"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(string(tc.code), func(t *testing.T) {
			assert.Equal(t, tc.expected, StatusFromCode(tc.code))
		})
	}
}

func TestWriteError(t *testing.T) {
	t.Run("writes protocol error envelope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, apperrors.QuotaExceeded())

		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "TooManyRequests", body.Status)
		assert.Equal(t, "daily limit", body.Message)
	})

	t.Run("unclassified error becomes 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		WriteError(rec, errors.New("boom"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body Envelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "InternalServerError", body.Status)
		assert.Equal(t, "boom", body.Message)
	})
}
