// Package ratelimit implements the two coexisting limiters of spec section
// 4.3: a global per-key sliding-window limiter (read vs mutation buckets)
// and a per-endpoint tiered limiter with first-match-wins rules.
//
// Grounded on teacher middleware/ratelimit.go's slidingWindow/mutex-guarded
// map pattern, generalized into the two-limiter design and the exact
// header/Retry-After semantics spec 4.3 requires.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/arcwave/relaycore/clock"
)

// Bucket discriminates the global limiter's two buckets by HTTP method.
type Bucket string

const (
	BucketRead     Bucket = "read"
	BucketMutation Bucket = "mutation"
)

// BucketForMethod classifies method into read or mutation.
func BucketForMethod(method string) Bucket {
	switch method {
	case "GET", "HEAD", "OPTIONS":
		return BucketRead
	default:
		return BucketMutation
	}
}

// Result carries the headers and outcome of a single rate-limit check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetUnix  int64
	RetryAfter int // seconds, only meaningful when !Allowed
}

type window struct {
	mu         sync.Mutex
	timestamps []time.Time
	lastSeen   time.Time
}

// GlobalLimiter is the per-client-key, per-bucket sliding-window limiter.
type GlobalLimiter struct {
	clock         clock.Clock
	maxRead       int
	maxMutation   int
	windowMs      int64
	mu            sync.Mutex
	windows       map[string]*window
}

// NewGlobalLimiter builds a limiter with the given per-window maximums.
func NewGlobalLimiter(maxRead, maxMutation int, windowMs int64, c clock.Clock) *GlobalLimiter {
	if c == nil {
		c = clock.Real()
	}
	return &GlobalLimiter{
		clock:       c,
		maxRead:     maxRead,
		maxMutation: maxMutation,
		windowMs:    windowMs,
		windows:     make(map[string]*window),
	}
}

func (g *GlobalLimiter) limitFor(b Bucket) int {
	if b == BucketRead {
		return g.maxRead
	}
	return g.maxMutation
}

// Check prunes expired timestamps, decides allow/deny, and — on allow —
// records now. Key is the client identity (wallet or IP); bucket
// discriminates read vs mutation.
func (g *GlobalLimiter) Check(key string, b Bucket) Result {
	limit := g.limitFor(b)
	windowDur := time.Duration(g.windowMs) * time.Millisecond

	w := g.windowFor(key, b)
	w.mu.Lock()
	defer w.mu.Unlock()

	now := g.clock.Now()
	w.lastSeen = now
	cutoff := now.Add(-windowDur)

	pruned := w.timestamps[:0]
	for _, t := range w.timestamps {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	w.timestamps = pruned

	resetAt := now.Add(windowDur)
	if len(w.timestamps) > 0 {
		resetAt = w.timestamps[0].Add(windowDur)
	}

	if len(w.timestamps) >= limit {
		retryAfter := int(math.Ceil(resetAt.Sub(now).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Result{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetUnix:  resetAt.Unix(),
			RetryAfter: retryAfter,
		}
	}

	w.timestamps = append(w.timestamps, now)
	remaining := limit - len(w.timestamps)
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: remaining,
		ResetUnix: resetAt.Unix(),
	}
}

func (g *GlobalLimiter) windowFor(key string, b Bucket) *window {
	g.mu.Lock()
	defer g.mu.Unlock()
	fullKey := key + "|" + string(b)
	w, ok := g.windows[fullKey]
	if !ok {
		w = &window{timestamps: make([]time.Time, 0, 8), lastSeen: g.clock.Now()}
		g.windows[fullKey] = w
	}
	return w
}

// Sweep drops buckets with no activity within maxWindow, per spec 4.3's
// "sweep drops buckets with no activity within the maximum configured
// window" rule. Call periodically; it does not itself start a timer.
func (g *GlobalLimiter) Sweep(maxWindow time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	cutoff := g.clock.Now().Add(-maxWindow)
	for key, w := range g.windows {
		w.mu.Lock()
		stale := w.lastSeen.Before(cutoff)
		w.mu.Unlock()
		if stale {
			delete(g.windows, key)
		}
	}
}
