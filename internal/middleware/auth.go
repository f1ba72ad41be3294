package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/completion-gateway/internal/audit"
	apperrors "github.com/openclaw/completion-gateway/internal/errors"
	"github.com/openclaw/completion-gateway/internal/httputil"
	"github.com/openclaw/completion-gateway/internal/metrics"
	"github.com/openclaw/completion-gateway/internal/model"
	"github.com/openclaw/completion-gateway/internal/ratelimit"
	"github.com/openclaw/completion-gateway/internal/token"
)

const TokenRoute = "/get-token"

type TokenService interface {
	Issue(callerKey string) (*token.Issued, error)
	Verify(tokenText string) (*token.SessionToken, error)
}

// AuthStage is the first pipeline stage. It answers get-token itself and
// lets every other request through only with a valid bearer token.
type AuthStage struct {
	tokens     TokenService
	limiter    ratelimit.Limiter
	issueLimit int
}

// NewAuthStage builds the stage. A nil limiter or a non-positive limit
// disables issuance throttling.
func NewAuthStage(tokens TokenService, limiter ratelimit.Limiter, issueLimit int) *AuthStage {
	return &AuthStage{tokens: tokens, limiter: limiter, issueLimit: issueLimit}
}

func (m *AuthStage) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeResult(w, http.StatusBadRequest, "Request error")
			return
		}

		if strings.EqualFold(r.URL.Path, TokenRoute) {
			m.issue(w, r)
			return
		}

		tok, err := m.tokens.Verify(extractBearer(r.Header.Get("Authorization")))
		if err != nil {
			metrics.TokensIssued.WithLabelValues("rejected").Inc()
			audit.LogFromRequest(r, audit.Event{
				Type:      audit.EventAuthFailure,
				RequestID: GetRequestID(r.Context()),
				Details:   map[string]interface{}{"reason": reason(err), "path": r.URL.Path},
			})
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), SessionTokenContextKey, tok)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthStage) issue(w http.ResponseWriter, r *http.Request) {
	if !m.allowIssue(w, r) {
		return
	}

	var req model.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperrors.BadRequest("Invalid request body"))
		return
	}
	if strings.TrimSpace(req.Token) == "" {
		writeError(w, apperrors.MissingRequired("token"))
		return
	}

	issued, err := m.tokens.Issue(req.Token)
	if err != nil {
		metrics.TokensIssued.WithLabelValues("denied").Inc()
		audit.LogFromRequest(r, audit.Event{
			Type:      audit.EventTokenDenied,
			CallerKey: req.Token,
			RequestID: GetRequestID(r.Context()),
			Details:   map[string]interface{}{"reason": reason(err)},
		})
		writeError(w, err)
		return
	}

	metrics.TokensIssued.WithLabelValues("issued").Inc()
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventTokenIssued,
		CallerKey: req.Token,
		RequestID: GetRequestID(r.Context()),
		Details:   map[string]interface{}{"token_id": issued.Claims.ID},
	})

	httputil.WriteJSON(w, http.StatusOK, model.AuthData{
		Token:   issued.Token,
		Expired: issued.Claims.ExpiresAt,
	})
}

func (m *AuthStage) allowIssue(w http.ResponseWriter, r *http.Request) bool {
	if m.limiter == nil || m.issueLimit <= 0 {
		return true
	}

	ip := audit.ClientIP(r)
	allowed, remaining, resetAt := m.limiter.Check(r.Context(), "token:"+ip, m.issueLimit)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.issueLimit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

	if allowed {
		return true
	}

	secondsLeft := resetAt - time.Now().Unix()
	if secondsLeft < 1 {
		secondsLeft = 1
	}
	w.Header().Set("Retry-After", fmt.Sprintf("%d", secondsLeft))

	log.Warn().Str("ip", ip).Msg("token issuance rate limit exceeded")
	audit.LogFromRequest(r, audit.Event{
		Type:      audit.EventRateLimitExceed,
		RequestID: GetRequestID(r.Context()),
		Details:   map[string]interface{}{"limit": m.issueLimit},
	})
	writeError(w, apperrors.RateLimitExceeded())
	return false
}

// extractBearer picks the longest space-separated segment of the header, so
// both "Bearer <jwt>" and a bare "<jwt>" work.
func extractBearer(header string) string {
	longest := ""
	for _, part := range strings.Fields(header) {
		if len(part) > len(longest) {
			longest = part
		}
	}
	return longest
}

func reason(err error) string {
	if appErr, ok := apperrors.AsAppError(err); ok {
		return appErr.Message
	}
	return err.Error()
}
