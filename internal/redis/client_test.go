package redis

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewClient(t *testing.T) {
	t.Run("rejects malformed url", func(t *testing.T) {
		_, err := NewClient("not-a-redis-url")
		assert.Error(t, err)
	})

	t.Run("fails when the server is unreachable", func(t *testing.T) {
		_, err := NewClient("redis://127.0.0.1:1/0?dial_timeout=50ms&max_retries=-1")
		assert.Error(t, err)
	})
}
