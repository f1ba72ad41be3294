package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/openclaw/completion-gateway/internal/config"
	apperrors "github.com/openclaw/completion-gateway/internal/errors"
	"github.com/openclaw/completion-gateway/internal/httputil"
	"github.com/openclaw/completion-gateway/internal/llm"
	"github.com/openclaw/completion-gateway/internal/metrics"
	"github.com/openclaw/completion-gateway/internal/middleware"
	"github.com/openclaw/completion-gateway/internal/model"
	"github.com/openclaw/completion-gateway/internal/repository"
)

type Completer interface {
	URL() string
	NewRequest(history []model.ConversationTurn, text string, temperature float64, maxTokens int) *llm.CompletionRequest
	Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.Completion, error)
}

// CompletionHandler is the second pipeline stage. Every request it sees
// leaves exactly one audit row behind, whatever the outcome.
type CompletionHandler struct {
	store     repository.SessionStore
	completer Completer
	now       func() time.Time
}

func NewCompletionHandler(store repository.SessionStore, completer Completer) *CompletionHandler {
	return &CompletionHandler{store: store, completer: completer, now: time.Now}
}

// exchange is the state of one request as it moves through the stage.
type exchange struct {
	entry   *model.AuditLogEntry
	action  string
	tokenID string
	message string
	err     error
}

func (h *CompletionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := middleware.GetRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	x := &exchange{
		entry:  &model.AuditLogEntry{RequestID: requestID, Timestamp: h.now().UTC()},
		action: "unknown",
	}
	if tok := middleware.GetSessionToken(ctx); tok != nil {
		x.tokenID = tok.ID
	}
	defer h.finish(ctx, w, x)

	route := ParseRoute(r.URL.Path)
	if route.ID != "" {
		ctx = context.WithValue(ctx, RouteIDContextKey, route.ID)
		log.Debug().Str("requestId", requestID).Str("id", route.ID).Msg("route id")
	}
	if !route.Known() {
		x.err = apperrors.MethodNotAllowed("Unknown action")
		return
	}
	x.action = route.Action

	x.message, x.err = h.getInfoFromAI(ctx, r, x.entry)
}

func (h *CompletionHandler) getInfoFromAI(ctx context.Context, r *http.Request, entry *model.AuditLogEntry) (string, error) {
	entry.URI = h.completer.URL()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return "", apperrors.BadRequest("Invalid request body")
	}
	var req model.CompletionRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return "", apperrors.BadRequest("Invalid request body")
	}
	if err := req.Validate(); err != nil {
		return "", err
	}
	entry.Request = string(body)
	entry.SessionID = req.SessionID

	accepted, err := h.store.CheckQuota(ctx, req.SessionID)
	if err != nil {
		return "", err
	}
	if !accepted {
		return "", apperrors.QuotaExceeded()
	}

	records, err := h.store.FetchHistory(ctx, req.SessionID)
	if err != nil {
		return "", err
	}
	history := RebuildHistory(req.SessionID, records)

	upstream := h.completer.NewRequest(history, req.Text, req.EffectiveTemperature(), req.EffectiveMaxTokens())

	start := time.Now()
	completion, err := h.completer.Complete(ctx, upstream)
	latencyLabel := "error"
	if completion != nil {
		if completion.Status != 0 {
			latencyLabel = strconv.Itoa(completion.Status)
		}
		if completion.Raw != "" {
			entry.Response = completion.Raw
		}
	}
	metrics.UpstreamLatency.WithLabelValues(latencyLabel).Observe(time.Since(start).Seconds())

	if err != nil {
		return "", err
	}
	return completion.Text, nil
}

// finish runs once per request: it turns a panic into a 500, writes the
// caller response and then the audit row.
func (h *CompletionHandler) finish(ctx context.Context, w http.ResponseWriter, x *exchange) {
	if p := recover(); p != nil {
		log.Error().Str("requestId", x.entry.RequestID).Interface("panic", p).Msg("completion stage panicked")
		x.err = apperrors.Internal(fmt.Sprint(p))
	}

	status, message := http.StatusOK, x.message
	if x.err != nil {
		status, message = httputil.Classify(x.err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(x.err).Str("requestId", x.entry.RequestID).Str("sessionId", x.entry.SessionID).Str("tokenId", x.tokenID).Msg("completion failed")
		}
		if x.entry.Response == "" {
			x.entry.Response = strings.TrimRight(apperrors.FullMessage(x.err), "\n")
		}
	}
	x.entry.Status = status

	httputil.WriteResult(w, status, message)
	metrics.RequestsTotal.WithLabelValues(x.action, strconv.Itoa(status)).Inc()

	h.writeAudit(ctx, x.entry)
}

func (h *CompletionHandler) writeAudit(ctx context.Context, entry *model.AuditLogEntry) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.AuditWriteTimeout)
	defer cancel()

	if err := h.store.WriteAudit(ctx, entry); err != nil {
		metrics.AuditWriteFailures.Inc()
		log.Error().Err(err).
			Str("requestId", entry.RequestID).
			Str("sessionId", entry.SessionID).
			Int("status", entry.Status).
			Msg("failed to write audit entry")
	}
}
