package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	apperrors "github.com/openclaw/completion-gateway/internal/errors"
	"github.com/openclaw/completion-gateway/internal/model"
)

type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type CompletionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	// MaxTokens is sent as a decimal string.
	MaxTokens string `json:"maxTokens"`
}

type CompletionRequest struct {
	ModelURI          string            `json:"modelUri"`
	CompletionOptions CompletionOptions `json:"completionOptions"`
	Messages          []Message         `json:"messages"`
}

type Alternative struct {
	Message Message `json:"message"`
	Status  string  `json:"status"`
}

type Usage struct {
	InputTextTokens  string `json:"inputTextTokens"`
	CompletionTokens string `json:"completionTokens"`
	TotalTokens      string `json:"totalTokens"`
}

type CompletionResult struct {
	Alternatives []Alternative `json:"alternatives"`
	Usage        *Usage        `json:"usage,omitempty"`
	ModelVersion string        `json:"modelVersion"`
}

type UpstreamError struct {
	GRPCCode   int      `json:"grpcCode"`
	HTTPCode   int      `json:"httpCode"`
	Message    string   `json:"message"`
	HTTPStatus string   `json:"httpStatus"`
	Details    []string `json:"details"`
}

type CompletionResponse struct {
	Result *CompletionResult `json:"result,omitempty"`
	Error  *UpstreamError    `json:"error,omitempty"`
}

// LastAlternative returns the final alternative of the result.
func (r *CompletionResponse) LastAlternative() (Alternative, bool) {
	if r == nil || r.Result == nil || len(r.Result.Alternatives) == 0 {
		return Alternative{}, false
	}
	return r.Result.Alternatives[len(r.Result.Alternatives)-1], true
}

// Completion is the outcome of one completion call. Raw and Status are set
// whenever the upstream replied, including failed calls.
type Completion struct {
	Text   string
	Raw    string
	Status int
	Usage  *Usage
}

// Completer sends conversations to the completion endpoint.
type Completer struct {
	client   *Client
	url      string
	folderID string
	model    string
}

func NewCompleter(client *Client, url, folderID, modelName string) *Completer {
	return &Completer{client: client, url: url, folderID: folderID, model: modelName}
}

// URL is the completion endpoint, as recorded in audit entries.
func (c *Completer) URL() string {
	return normalizeURL(c.url)
}

func (c *Completer) ModelURI() string {
	return fmt.Sprintf("gpt://%s/%s", c.folderID, c.model)
}

// NewRequest builds the upstream payload: history first, then the caller turn.
func (c *Completer) NewRequest(history []model.ConversationTurn, text string, temperature float64, maxTokens int) *CompletionRequest {
	messages := make([]Message, 0, len(history)+1)
	for _, turn := range history {
		messages = append(messages, Message{Role: turn.Role, Text: turn.Text})
	}
	messages = append(messages, Message{Role: model.RoleUser, Text: text})

	return &CompletionRequest{
		ModelURI: c.ModelURI(),
		CompletionOptions: CompletionOptions{
			Stream:      false,
			Temperature: temperature,
			MaxTokens:   strconv.Itoa(maxTokens),
		},
		Messages: messages,
	}
}

// Complete makes one call without retries. On failure the returned
// Completion still carries whatever the upstream sent back.
func (c *Completer) Complete(ctx context.Context, req *CompletionRequest) (*Completion, error) {
	result, _ := Call[CompletionResponse](ctx, c.client, c.url, req, http.MethodPost, CallOptions{SuppressError: true})

	completion := &Completion{Raw: result.RawText(), Status: result.Status}
	if result.Err != nil {
		return completion, apperrors.External("model", result.Err)
	}
	if result.Value == nil {
		return completion, apperrors.External("model", errors.New("empty reply"))
	}
	if upstream := result.Value.Error; upstream != nil {
		return completion, apperrors.External("model", fmt.Errorf("%d %s: %s", upstream.HTTPCode, upstream.HTTPStatus, upstream.Message))
	}

	alt, ok := result.Value.LastAlternative()
	if !ok {
		return completion, apperrors.External("model", errors.New("reply has no alternatives"))
	}

	completion.Text = alt.Message.Text
	if result.Value.Result != nil {
		completion.Usage = result.Value.Result.Usage
	}
	return completion, nil
}
