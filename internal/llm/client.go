// Package llm is the outbound side of the gateway: a generic JSON caller and
// the completion API built on it.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultTimeout = 30 * time.Second

var duplicateSlashRe = regexp.MustCompile(`/{2,}`)

// StatusError is a non-2xx reply. Body is the raw response text.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned %d %s: %s", e.Status, http.StatusText(e.Status), e.Body)
}

// Result is what one call captured. Value is nil for 204 replies and for
// failed calls.
type Result[T any] struct {
	Status int
	Raw    []byte
	Value  *T
	Err    error
}

// RawText is the captured body as text.
func (r *Result[T]) RawText() string {
	return string(r.Raw)
}

type CallOptions struct {
	// SuppressError returns failures inside the Result instead of as the
	// error return value.
	SuppressError bool
}

// Client holds the pooled transport, the default headers sent with every
// request and the per-call deadline.
type Client struct {
	http    *http.Client
	timeout time.Duration

	mu      sync.RWMutex
	headers http.Header
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: timeout,
		headers: make(http.Header),
	}
}

// SetHeader sets a default header, replacing any previous value.
func (c *Client) SetHeader(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.headers.Set(key, value)
}

func (c *Client) applyHeaders(req *http.Request) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for k, v := range c.headers {
		req.Header[k] = append([]string(nil), v...)
	}
}

// normalizeURL collapses repeated slashes after the scheme separator.
func normalizeURL(raw string) string {
	scheme, rest, found := strings.Cut(strings.TrimSpace(raw), "://")
	if !found {
		return duplicateSlashRe.ReplaceAllString(scheme, "/")
	}
	return strings.TrimSpace(scheme) + "://" + duplicateSlashRe.ReplaceAllString(strings.TrimSpace(rest), "/")
}

func resolveMethod(method string, body any) string {
	if method != "" {
		return strings.ToUpper(method)
	}
	if body == nil {
		return http.MethodGet
	}
	return http.MethodPost
}

// Call sends body to url and decodes the reply into T. A string T receives
// the body text and a []byte T the raw bytes; any other T is JSON decoded.
//
// The deadline is the client timeout and does not follow ctx cancellation,
// only its values.
func Call[T any](ctx context.Context, c *Client, url string, body any, method string, opts CallOptions) (*Result[T], error) {
	result := &Result[T]{}
	result.Err = c.do(ctx, result, url, body, method)

	if result.Err != nil && !opts.SuppressError {
		return nil, result.Err
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, result interface{ capture(int, []byte) error }, url string, body any, method string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	url = normalizeURL(url)
	method = resolveMethod(method, body)

	var reader io.Reader
	if method != http.MethodGet && body != nil {
		payload, err := encodeBody(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.applyHeaders(req)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	log.Debug().Str("url", url).Str("method", method).Msg("calling upstream")

	resp, err := c.http.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		log.Error().Err(err).Str("url", url).Dur("elapsed", elapsed).Msg("upstream request error")
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read upstream response: %w", err)
	}

	log.Info().
		Str("url", url).
		Str("method", method).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Msg("upstream call finished")

	return result.capture(resp.StatusCode, raw)
}

func encodeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		return json.Marshal(v)
	}
}

func (r *Result[T]) capture(status int, raw []byte) error {
	r.Status = status
	r.Raw = raw

	if status < 200 || status >= 300 {
		return &StatusError{Status: status, Body: string(raw)}
	}
	if status == http.StatusNoContent {
		return nil
	}

	var value T
	switch v := any(&value).(type) {
	case *string:
		*v = string(raw)
	case *[]byte:
		*v = raw
	default:
		if err := json.Unmarshal(raw, &value); err != nil {
			return fmt.Errorf("decode upstream response: %w", err)
		}
	}
	r.Value = &value
	return nil
}
