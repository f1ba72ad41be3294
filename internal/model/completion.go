package model

import (
	"strings"

	apperrors "github.com/openclaw/completion-gateway/internal/errors"
)

// CompletionRequest is the caller payload of get-info-from-ai. Temperature
// and MaxTokens are pointers so an absent field can be told from zero.
type CompletionRequest struct {
	SessionID   string   `json:"id_session"`
	Text        string   `json:"text"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

const (
	DefaultTemperature = 0.9
	DefaultMaxTokens   = 1000
	MaxTemperature     = 2.0
)

// EffectiveTemperature returns the requested temperature or the default.
func (r *CompletionRequest) EffectiveTemperature() float64 {
	if r.Temperature == nil {
		return DefaultTemperature
	}
	return *r.Temperature
}

// EffectiveMaxTokens returns the requested token limit or the default.
func (r *CompletionRequest) EffectiveMaxTokens() int {
	if r.MaxTokens == nil {
		return DefaultMaxTokens
	}
	return *r.MaxTokens
}

// Validate checks the payload in the order the caller sees failures: text,
// then session id, then the generation options.
func (r *CompletionRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return apperrors.BadRequest("empty text")
	}
	if strings.TrimSpace(r.SessionID) == "" {
		return apperrors.BadRequest("empty sid")
	}
	if t := r.EffectiveTemperature(); t < 0 || t > MaxTemperature {
		return apperrors.ValidationError("temperature must be between 0 and 2")
	}
	if r.EffectiveMaxTokens() <= 0 {
		return apperrors.ValidationError("max_tokens must be positive")
	}
	return nil
}
