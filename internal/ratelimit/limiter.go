// Package ratelimit counts attempts per key in a sliding one-minute window.
package ratelimit

import "context"

// Limiter records one attempt for key and reports whether it fits in limit.
// resetAt is the Unix second at which a slot frees up.
type Limiter interface {
	Check(ctx context.Context, key string, limit int) (allowed bool, remaining int, resetAt int64)
}
