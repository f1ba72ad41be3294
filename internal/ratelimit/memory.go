package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/openclaw/completion-gateway/internal/config"
)

const entryTTL = 5 * time.Minute

type entry struct {
	timestamps []time.Time
	lastAccess time.Time
}

// Memory is a process-local Limiter.
type Memory struct {
	mu          sync.Mutex
	store       map[string]*entry
	lastCleanup time.Time
	now         func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		store:       make(map[string]*entry),
		lastCleanup: time.Now(),
		now:         time.Now,
	}
}

func (m *Memory) cleanup(now time.Time) {
	if now.Sub(m.lastCleanup) < config.RateLimitCleanupInterval {
		return
	}
	m.lastCleanup = now

	for key, e := range m.store {
		if now.Sub(e.lastAccess) > entryTTL {
			delete(m.store, key)
		}
	}

	if len(m.store) > config.RateLimitMaxEntries {
		oldest := make([]string, 0, len(m.store)/5)
		for key := range m.store {
			oldest = append(oldest, key)
			if len(oldest) >= len(m.store)/5 {
				break
			}
		}
		for _, key := range oldest {
			delete(m.store, key)
		}
	}
}

func (m *Memory) Check(_ context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.cleanup(now)
	windowStart := now.Add(-config.RateLimitWindow)

	e, exists := m.store[key]
	if !exists {
		e = &entry{}
		m.store[key] = e
	}
	e.lastAccess = now

	filtered := e.timestamps[:0]
	for _, ts := range e.timestamps {
		if ts.After(windowStart) {
			filtered = append(filtered, ts)
		}
	}
	e.timestamps = filtered

	if len(e.timestamps) > 0 {
		resetAt = e.timestamps[0].Add(config.RateLimitWindow).Unix()
	} else {
		resetAt = now.Add(config.RateLimitWindow).Unix()
	}

	if len(e.timestamps) >= limit {
		return false, 0, resetAt
	}

	e.timestamps = append(e.timestamps, now)
	return true, limit - len(e.timestamps), resetAt
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.store)
}
