package ratelimit

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/arcwave/relaycore/clock"
)

// Tier is a caller's access tier for the per-endpoint limiter.
type Tier string

const (
	TierPublic Tier = "public"
	TierUser   Tier = "user"
	TierAdmin  Tier = "admin"
)

// TierFor derives the caller's tier per spec 4.3: admin if authenticated
// and role=admin, user if authenticated, public otherwise.
func TierFor(authenticated bool, isAdmin bool) Tier {
	switch {
	case authenticated && isAdmin:
		return TierAdmin
	case authenticated:
		return TierUser
	default:
		return TierPublic
	}
}

// TierLimits maps each tier to an optional request-per-window cap. A zero
// value means "no limit configured for this tier" and the default limits
// apply instead.
type TierLimits struct {
	Public int
	User   int
	Admin  int
}

func (t TierLimits) forTier(tier Tier) (limit int, ok bool) {
	switch tier {
	case TierPublic:
		return t.Public, t.Public > 0
	case TierUser:
		return t.User, t.User > 0
	case TierAdmin:
		return t.Admin, t.Admin > 0
	}
	return 0, false
}

// Rule is a first-match-wins endpoint rule. Method may be "*"; Path ending
// in "/*" is a prefix match, otherwise an exact match.
type Rule struct {
	Method string
	Path   string
	Limits TierLimits
}

func (r Rule) matches(method, path string) bool {
	if r.Method != "*" && !strings.EqualFold(r.Method, method) {
		return false
	}
	if strings.HasSuffix(r.Path, "/*") {
		return strings.HasPrefix(path, strings.TrimSuffix(r.Path, "*"))
	}
	return r.Path == path
}

// EndpointLimiter implements the per-endpoint tiered limiter of spec 4.3.
type EndpointLimiter struct {
	clock        clock.Clock
	rules        []Rule
	defaults     TierLimits
	windowMs     int64
	mu           sync.Mutex
	buckets      map[string]*window
}

// NewEndpointLimiter builds a limiter with first-match-wins rules and a
// default tier-limit fallback applied when no rule matches.
func NewEndpointLimiter(rules []Rule, defaults TierLimits, windowMs int64, c clock.Clock) *EndpointLimiter {
	if c == nil {
		c = clock.Real()
	}
	return &EndpointLimiter{
		clock:    c,
		rules:    rules,
		defaults: defaults,
		windowMs: windowMs,
		buckets:  make(map[string]*window),
	}
}

// Check evaluates the tiered limiter for (method, path, tier). discriminator
// additionally separates read/mutation buckets when falling back to
// defaults, per spec 4.3 ("the bucket discriminated by read-vs-mutation").
func (e *EndpointLimiter) Check(key, method, path string, tier Tier, discriminator Bucket) Result {
	ruleIdx := -1
	for i, r := range e.rules {
		if r.matches(method, path) {
			ruleIdx = i
			break
		}
	}

	var limit int
	var bucketKey string
	if ruleIdx >= 0 {
		l, ok := e.rules[ruleIdx].Limits.forTier(tier)
		if !ok {
			l, _ = e.defaults.forTier(tier)
		}
		limit = l
		bucketKey = key + "|rule" + strconv.Itoa(ruleIdx) + "|" + string(tier)
	} else {
		l, _ := e.defaults.forTier(tier)
		limit = l
		bucketKey = key + "|default|" + string(tier) + "|" + string(discriminator)
	}

	if limit <= 0 {
		// No limit configured for this tier at all: allow unconditionally.
		return Result{Allowed: true, Limit: 0, Remaining: 0, ResetUnix: 0}
	}

	return e.check(bucketKey, limit)
}

func (e *EndpointLimiter) check(bucketKey string, limit int) Result {
	windowDur := time.Duration(e.windowMs) * time.Millisecond

	e.mu.Lock()
	w, ok := e.buckets[bucketKey]
	if !ok {
		w = &window{timestamps: make([]time.Time, 0, 8)}
		e.buckets[bucketKey] = w
	}
	e.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	now := e.clock.Now()
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
		retryAfter := int(resetAt.Sub(now).Seconds()) + 1
		if retryAfter < 1 {
			retryAfter = 1
		}
		return Result{Allowed: false, Limit: limit, Remaining: 0, ResetUnix: resetAt.Unix(), RetryAfter: retryAfter}
	}

	w.timestamps = append(w.timestamps, now)
	return Result{Allowed: true, Limit: limit, Remaining: limit - len(w.timestamps), ResetUnix: resetAt.Unix()}
}

// Sweep drops stale buckets, mirroring GlobalLimiter.Sweep.
func (e *EndpointLimiter) Sweep(maxWindow time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cutoff := e.clock.Now().Add(-maxWindow)
	for key, w := range e.buckets {
		w.mu.Lock()
		stale := w.lastSeen.Before(cutoff)
		w.mu.Unlock()
		if stale {
			delete(e.buckets, key)
		}
	}
}
