package guard

import (
	"context"
	"sync"
	"time"

	"github.com/vyakaran/platform/internal/domain"
)

// IdempotencyGuard deduplicates requests by idempotency key. Keys expire after
// ttl. Expired keys are swept at most once per ttl, so the map stays within
// about two ttl windows of traffic without scanning it on every request.
type IdempotencyGuard struct {
	mu        sync.Mutex
	seen      map[string]time.Time
	ttl       time.Duration
	nextSweep time.Time
	now       func() time.Time
}

// NewIdempotencyGuard creates a new in-memory idempotency guard.
func NewIdempotencyGuard(ttl time.Duration) *IdempotencyGuard {
	return &IdempotencyGuard{
		seen: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Check returns whether the given key has already been processed and claims it if not.
func (ig *IdempotencyGuard) Check(_ context.Context, key string) domain.GuardResult {
	if key == "" {
		return domain.GuardResult{Allowed: true}
	}

	ig.mu.Lock()
	defer ig.mu.Unlock()

	now := ig.now()
	if seenAt, ok := ig.seen[key]; ok && (ig.ttl <= 0 || now.Sub(seenAt) < ig.ttl) {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "duplicate request: idempotency key already processed",
			Guard:   "idempotency",
		}
	}

	ig.seen[key] = now
	ig.sweep(now)
	return domain.GuardResult{Allowed: true}
}

// Remove releases a key so the request can be retried (used when it failed).
func (ig *IdempotencyGuard) Remove(key string) {
	ig.mu.Lock()
	defer ig.mu.Unlock()
	delete(ig.seen, key)
}

func (ig *IdempotencyGuard) sweep(now time.Time) {
	if ig.ttl <= 0 || now.Before(ig.nextSweep) {
		return
	}
	ig.nextSweep = now.Add(ig.ttl)
	for k, seenAt := range ig.seen {
		if now.Sub(seenAt) >= ig.ttl {
			delete(ig.seen, k)
		}
	}
}
