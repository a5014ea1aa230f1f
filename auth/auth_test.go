package auth

import (
	"testing"
	"time"

	"github.com/arcwave/relaycore/clock"
)

// TestTimingSafeEqualRoundTrip covers the round-trip property: a key
// always compares equal to itself, and never equal to a differing key
// regardless of the two strings' relative lengths.
func TestTimingSafeEqualRoundTrip(t *testing.T) {
	cases := []string{"", "a", "short-key", "a-much-longer-api-key-value-123456789"}
	for _, s := range cases {
		if !TimingSafeEqual(s, s) {
			t.Fatalf("expected %q to equal itself", s)
		}
	}

	mismatches := [][2]string{
		{"short-key", "short-key2"},
		{"short-key", "short-ke"},
		{"", "nonempty"},
		{"aaaa", "aaab"},
	}
	for _, m := range mismatches {
		if TimingSafeEqual(m[0], m[1]) {
			t.Fatalf("expected %q and %q to compare unequal", m[0], m[1])
		}
	}
}

func TestIsPublicPath(t *testing.T) {
	if !IsPublicPath("/api/health") {
		t.Fatalf("expected /api/health to be a public path")
	}
	if IsPublicPath("/v1/completions") {
		t.Fatalf("expected /v1/completions not to be a public path")
	}
}

func TestValidateAcceptsCurrentKey(t *testing.T) {
	cfg := NewConfig("current-key", "0.0.0.0", nil, nil)
	if !cfg.Validate("current-key") {
		t.Fatalf("expected the current key to validate")
	}
	if cfg.Validate("wrong-key") {
		t.Fatalf("expected a wrong key to fail validation")
	}
}

func TestValidateAcceptsPreviousKeyDuringGracePeriod(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	cfg := NewConfig("current-key", "0.0.0.0", nil, fake)

	newKey, err := cfg.RotateAPIKey(time.Hour)
	if err != nil {
		t.Fatalf("rotate failed: %v", err)
	}

	if !cfg.Validate(newKey) {
		t.Fatalf("expected the newly rotated key to validate")
	}
	if !cfg.Validate("current-key") {
		t.Fatalf("expected the previous key to still validate during its grace period")
	}

	fake.Advance(2 * time.Hour)
	if cfg.Validate("current-key") {
		t.Fatalf("expected the previous key to stop validating once its grace period elapses")
	}
	if !cfg.Validate(newKey) {
		t.Fatalf("expected the current key to keep validating after the old grace period elapses")
	}
}
