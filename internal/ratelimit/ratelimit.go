// Package ratelimit implements fixed-window request limiting keyed by an
// opaque identifier. The identifier is the chat session id; multiple
// sessions from one client each get their own window. That is a known
// limitation carried over deliberately, not an oversight.
package ratelimit

import "context"

// Limiter counts a request against the identifier's current window and
// reports whether it is still allowed. Check itself increments, so callers
// must call it at most once per request.
type Limiter interface {
	Check(ctx context.Context, identifier string) (bool, error)
	Reset(ctx context.Context, identifier string) error
}
