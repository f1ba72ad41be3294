package middleware

import (
	"context"

	"github.com/openclaw/completion-gateway/internal/token"
)

type contextKey string

const (
	SessionTokenContextKey contextKey = "session_token"
	RequestIDContextKey    contextKey = "request_id"
)

// GetSessionToken returns the token verified by the auth stage, or nil.
func GetSessionToken(ctx context.Context) *token.SessionToken {
	if tok, ok := ctx.Value(SessionTokenContextKey).(*token.SessionToken); ok {
		return tok
	}
	return nil
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDContextKey).(string); ok {
		return id
	}
	return ""
}
