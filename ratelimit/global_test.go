package ratelimit

import (
	"testing"
	"time"

	"github.com/arcwave/relaycore/clock"
)

// TestGlobalLimiterThirdGetIsRejected covers scenario 3: a limiter
// configured for maxRead=2, maxMutation=1, windowMs=1000. Three GET
// requests from the same key; the third must be denied with
// Retry-After >= 1 and Remaining == 0.
func TestGlobalLimiterThirdGetIsRejected(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	limiter := NewGlobalLimiter(2, 1, 1000, fake)

	first := limiter.Check("client-1", BucketRead)
	second := limiter.Check("client-1", BucketRead)
	third := limiter.Check("client-1", BucketRead)

	if !first.Allowed || !second.Allowed {
		t.Fatalf("expected first two GETs to be allowed, got %+v, %+v", first, second)
	}
	if third.Allowed {
		t.Fatalf("expected third GET to be denied, got %+v", third)
	}
	if third.RetryAfter < 1 {
		t.Fatalf("expected RetryAfter >= 1, got %d", third.RetryAfter)
	}
	if third.Remaining != 0 {
		t.Fatalf("expected Remaining == 0 on denial, got %d", third.Remaining)
	}
}

// TestGlobalLimiterBucketsAreIndependent covers that read and mutation
// buckets are tracked independently per key.
func TestGlobalLimiterBucketsAreIndependent(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	limiter := NewGlobalLimiter(2, 1, 1000, fake)

	if r := limiter.Check("client-1", BucketMutation); !r.Allowed {
		t.Fatalf("expected first mutation to be allowed, got %+v", r)
	}
	if r := limiter.Check("client-1", BucketMutation); r.Allowed {
		t.Fatalf("expected second mutation to be denied, got %+v", r)
	}
	if r := limiter.Check("client-1", BucketRead); !r.Allowed {
		t.Fatalf("expected read bucket to be unaffected by mutation bucket, got %+v", r)
	}
}

// TestGlobalLimiterWindowSlidesOpen covers the round-trip/invariant
// property: once the window elapses, a previously denied key becomes
// allowed again without manual reset.
func TestGlobalLimiterWindowSlidesOpen(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	limiter := NewGlobalLimiter(1, 1, 1000, fake)

	if r := limiter.Check("client-1", BucketRead); !r.Allowed {
		t.Fatalf("expected first GET to be allowed, got %+v", r)
	}
	if r := limiter.Check("client-1", BucketRead); r.Allowed {
		t.Fatalf("expected second GET within window to be denied, got %+v", r)
	}

	fake.Advance(1100 * time.Millisecond)

	if r := limiter.Check("client-1", BucketRead); !r.Allowed {
		t.Fatalf("expected GET after window elapsed to be allowed, got %+v", r)
	}
}

// TestGlobalLimiterSweepDropsStaleBuckets covers the sweep invariant:
// a bucket untouched longer than the configured maximum window is
// dropped, freeing memory for abandoned keys.
func TestGlobalLimiterSweepDropsStaleBuckets(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	limiter := NewGlobalLimiter(1, 1, 1000, fake)

	limiter.Check("stale-client", BucketRead)
	fake.Advance(10 * time.Minute)
	limiter.Sweep(5 * time.Minute)

	limiter.mu.Lock()
	_, exists := limiter.windows["stale-client|read"]
	limiter.mu.Unlock()
	if exists {
		t.Fatalf("expected stale bucket to be swept")
	}
}
