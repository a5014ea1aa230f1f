package fallback

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arcwave/relaycore/clock"
)

func (r *Registry) consecutiveFailures(provider string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(provider).consecutiveFailures
}

// TestFallbackOnTransientThenSuccess covers scenario 4: anthropic fails
// with a transient error, openai succeeds, and anthropic's health record
// shows one recorded failure while remaining available.
func TestFallbackOnTransientThenSuccess(t *testing.T) {
	fake := clock.NewFake(time.Unix(1_000, 0))
	reg := NewRegistry(fake, nil)

	var usedProvider string
	invoke := func(ctx context.Context, provider string) error {
		if provider == "anthropic" {
			return errors.New("rate limit exceeded")
		}
		usedProvider = provider
		return nil
	}

	err := CompleteWithFallback(context.Background(), reg, Chain{"anthropic", "openai"}, invoke)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if usedProvider != "openai" {
		t.Fatalf("expected openai to be used, got %q", usedProvider)
	}
	if got := reg.consecutiveFailures("anthropic"); got != 1 {
		t.Fatalf("expected anthropic consecutiveFailures=1, got %d", got)
	}
	if !reg.IsAvailable("anthropic") {
		t.Fatalf("expected anthropic to still be available after a single failure")
	}
}

// TestCooldownEntryAndExpiry covers scenario 5: three consecutive
// transient failures enter cooling; after the cooldown elapses,
// availability and the failure counter both reset.
func TestCooldownEntryAndExpiry(t *testing.T) {
	fake := clock.NewFake(time.Unix(1_000_000, 0))
	reg := NewRegistry(fake, nil)

	for i := 0; i < 3; i++ {
		reg.RecordFailure("anthropic")
	}
	if reg.IsAvailable("anthropic") {
		t.Fatalf("expected anthropic to be unavailable after three consecutive failures")
	}

	fake.Advance(61 * time.Second)

	if !reg.IsAvailable("anthropic") {
		t.Fatalf("expected anthropic to be available after cooldown elapsed")
	}
	if got := reg.consecutiveFailures("anthropic"); got != 0 {
		t.Fatalf("expected consecutiveFailures reset to 0, got %d", got)
	}
	if got := reg.StateOf("anthropic"); got != StateHealthy {
		t.Fatalf("expected state healthy after cooldown expiry, got %q", got)
	}
}

// TestCompleteWithFallbackExhaustion covers the full-exhaustion path: every
// provider in the chain fails and the aggregated error names each cause.
func TestCompleteWithFallbackExhaustion(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	reg := NewRegistry(fake, nil)

	invoke := func(ctx context.Context, provider string) error {
		return errors.New(provider + " unavailable")
	}

	err := CompleteWithFallback(context.Background(), reg, Chain{"anthropic", "openai"}, invoke)
	if err == nil {
		t.Fatalf("expected an exhausted error")
	}
	ex, ok := err.(*ExhaustedError)
	if !ok {
		t.Fatalf("expected *ExhaustedError, got %T", err)
	}
	if len(ex.Causes) != 2 {
		t.Fatalf("expected two causes, got %d", len(ex.Causes))
	}
}

// TestCompleteWithFallbackSkipsCoolingProvider covers skip-and-continue
// when a provider is already in cooldown at the start of the attempt.
func TestCompleteWithFallbackSkipsCoolingProvider(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	reg := NewRegistry(fake, nil)
	for i := 0; i < 3; i++ {
		reg.RecordFailure("anthropic")
	}

	var attempted []string
	invoke := func(ctx context.Context, provider string) error {
		attempted = append(attempted, provider)
		return nil
	}

	if err := CompleteWithFallback(context.Background(), reg, Chain{"anthropic", "openai"}, invoke); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(attempted) != 1 || attempted[0] != "openai" {
		t.Fatalf("expected only openai to be attempted, got %v", attempted)
	}
}
