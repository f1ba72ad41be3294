package model

import (
	"bytes"
	"encoding/json"
)

// JSONText holds a JSON document that may arrive either as a JSON string
// containing the document or as the embedded document itself.
type JSONText string

func (t *JSONText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = JSONText(s)
		return nil
	}
	*t = JSONText(data)
	return nil
}

func (t JSONText) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(t))
}

// Decode unmarshals the held document into v.
func (t JSONText) Decode(v any) error {
	return json.Unmarshal([]byte(t), v)
}

// HistoryRecord is one persisted exchange: the caller request as received
// and the raw upstream response.
type HistoryRecord struct {
	Request  JSONText `json:"request"`
	Response JSONText `json:"response"`
}

// ConversationTurn is one message of the rebuilt conversation.
type ConversationTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
