package handler

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/completion-gateway/internal/llm"
	"github.com/openclaw/completion-gateway/internal/metrics"
	"github.com/openclaw/completion-gateway/internal/model"
)

var errNoAlternatives = errors.New("response has no alternatives")

// RebuildHistory turns persisted exchanges into conversation turns, two per
// record in record order. A record that cannot be decoded is skipped whole so
// user and assistant turns stay paired.
func RebuildHistory(sessionID string, records []model.HistoryRecord) []model.ConversationTurn {
	turns := make([]model.ConversationTurn, 0, 2*len(records))
	for i, rec := range records {
		user, assistant, err := decodeRecord(rec)
		if err != nil {
			metrics.SkippedHistoryRecords.Inc()
			log.Warn().Err(err).Str("sessionId", sessionID).Int("record", i).Msg("skipping malformed history record")
			continue
		}
		turns = append(turns, user, assistant)
	}
	return turns
}

func decodeRecord(rec model.HistoryRecord) (user, assistant model.ConversationTurn, err error) {
	var req model.CompletionRequest
	if err = rec.Request.Decode(&req); err != nil {
		return user, assistant, fmt.Errorf("decode request: %w", err)
	}

	var resp llm.CompletionResponse
	if err = rec.Response.Decode(&resp); err != nil {
		return user, assistant, fmt.Errorf("decode response: %w", err)
	}
	alt, ok := resp.LastAlternative()
	if !ok {
		return user, assistant, errNoAlternatives
	}

	user = model.ConversationTurn{Role: model.RoleUser, Text: req.Text}
	assistant = model.ConversationTurn{Role: model.RoleAssistant, Text: alt.Message.Text}
	return user, assistant, nil
}
