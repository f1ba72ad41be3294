package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in, out string
	}{
		{"https://host//v1///completion", "https://host/v1/completion"},
		{" https://host/v1/completion ", "https://host/v1/completion"},
		{"http://host:8080//a//b/", "http://host:8080/a/b/"},
		{"host//path", "host/path"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.out, normalizeURL(tc.in))
		})
	}
}

func TestResolveMethod(t *testing.T) {
	assert.Equal(t, http.MethodGet, resolveMethod("", nil))
	assert.Equal(t, http.MethodPost, resolveMethod("", map[string]string{}))
	assert.Equal(t, http.MethodPut, resolveMethod("put", nil))
}

type echo struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Body        string `json:"body"`
	ContentType string `json:"contentType"`
	Auth        string `json:"auth"`
	Folder      string `json:"folder"`
}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(echo{
			Method:      r.Method,
			Path:        r.URL.Path,
			Body:        string(body),
			ContentType: r.Header.Get("Content-Type"),
			Auth:        r.Header.Get("Authorization"),
			Folder:      r.Header.Get("x-folder-id"),
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCall(t *testing.T) {
	t.Run("posts json with default headers", func(t *testing.T) {
		srv := echoServer(t)
		c := NewClient(time.Second)
		c.SetHeader("Authorization", "Api-Key k")
		c.SetHeader("x-folder-id", "f1")

		res, err := Call[echo](context.Background(), c, srv.URL+"//v1//completion", map[string]int{"a": 1}, "", CallOptions{})
		require.NoError(t, err)
		require.NotNil(t, res.Value)

		assert.Equal(t, http.StatusOK, res.Status)
		assert.Equal(t, http.MethodPost, res.Value.Method)
		assert.Equal(t, "/v1/completion", res.Value.Path)
		assert.JSONEq(t, `{"a":1}`, res.Value.Body)
		assert.Equal(t, "application/json", res.Value.ContentType)
		assert.Equal(t, "Api-Key k", res.Value.Auth)
		assert.Equal(t, "f1", res.Value.Folder)
	})

	t.Run("get sends no body", func(t *testing.T) {
		srv := echoServer(t)
		c := NewClient(time.Second)

		res, err := Call[echo](context.Background(), c, srv.URL, map[string]int{"a": 1}, http.MethodGet, CallOptions{})
		require.NoError(t, err)

		assert.Equal(t, http.MethodGet, res.Value.Method)
		assert.Empty(t, res.Value.Body)
		assert.Empty(t, res.Value.ContentType)
	})

	t.Run("string target receives raw text", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("plain text"))
		}))
		defer srv.Close()

		res, err := Call[string](context.Background(), NewClient(time.Second), srv.URL, nil, "", CallOptions{})
		require.NoError(t, err)
		require.NotNil(t, res.Value)
		assert.Equal(t, "plain text", *res.Value)
	})

	t.Run("byte target receives raw bytes", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte{0x01, 0x02})
		}))
		defer srv.Close()

		res, err := Call[[]byte](context.Background(), NewClient(time.Second), srv.URL, nil, "", CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, []byte{0x01, 0x02}, *res.Value)
	})

	t.Run("204 yields no value and no error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		res, err := Call[echo](context.Background(), NewClient(time.Second), srv.URL, nil, "", CallOptions{})
		require.NoError(t, err)
		assert.Nil(t, res.Value)
		assert.NoError(t, res.Err)
		assert.Equal(t, http.StatusNoContent, res.Status)
	})

	t.Run("non-2xx raises with status and body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":"down"}`))
		}))
		defer srv.Close()

		res, err := Call[echo](context.Background(), NewClient(time.Second), srv.URL, nil, "", CallOptions{})
		require.Error(t, err)
		assert.Nil(t, res)

		var statusErr *StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusBadGateway, statusErr.Status)
		assert.Equal(t, `{"error":"down"}`, statusErr.Body)
	})

	t.Run("suppressed error is returned in the result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte("slow down"))
		}))
		defer srv.Close()

		res, err := Call[echo](context.Background(), NewClient(time.Second), srv.URL, nil, "", CallOptions{SuppressError: true})
		require.NoError(t, err)
		require.NotNil(t, res)
		assert.Error(t, res.Err)
		assert.Nil(t, res.Value)
		assert.Equal(t, "slow down", res.RawText())
		assert.Equal(t, http.StatusTooManyRequests, res.Status)
	})

	t.Run("undecodable body is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("not json"))
		}))
		defer srv.Close()

		_, err := Call[echo](context.Background(), NewClient(time.Second), srv.URL, nil, "", CallOptions{})
		assert.Error(t, err)
	})

	t.Run("deadline applies", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(release)

		_, err := Call[echo](context.Background(), NewClient(50*time.Millisecond), srv.URL, nil, "", CallOptions{})
		assert.Error(t, err)
	})

	t.Run("caller cancellation does not abort the call", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(20 * time.Millisecond)
			_, _ = w.Write([]byte("done"))
		}))
		defer srv.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res, err := Call[string](ctx, NewClient(time.Second), srv.URL, nil, "", CallOptions{})
		require.NoError(t, err)
		assert.Equal(t, "done", *res.Value)
	})
}
