package pricing

import "testing"

// TestEstimateCostZeroTokensIsZero covers the universal invariant:
// estimateCost(model, 0, 0) == 0 for every model in the table, priced
// or not.
func TestEstimateCostZeroTokensIsZero(t *testing.T) {
	for _, row := range Table {
		if got := EstimateCost(row.Model, 0, 0); got != 0 {
			t.Fatalf("expected zero-token cost 0 for %s, got %v", row.Model, got)
		}
	}
}

// TestEstimateCostZeroPricedModelIsAlwaysZero covers the universal
// invariant that zero-priced (local) models cost 0 regardless of token
// counts.
func TestEstimateCostZeroPricedModelIsAlwaysZero(t *testing.T) {
	for _, row := range Table {
		if row.InputPer1M != 0 || row.OutputPer1M != 0 {
			continue
		}
		if got := EstimateCost(row.Model, 1_000_000, 1_000_000); got != 0 {
			t.Fatalf("expected zero-priced model %s to always cost 0, got %v", row.Model, got)
		}
	}
}

// TestEstimateCostUnknownModelIsZero covers the unknown-model fallback.
func TestEstimateCostUnknownModelIsZero(t *testing.T) {
	if got := EstimateCost("no-such-model", 1000, 1000); got != 0 {
		t.Fatalf("expected unknown model to cost 0, got %v", got)
	}
}

// TestEstimateCostKnownModel covers a straightforward priced calculation.
func TestEstimateCostKnownModel(t *testing.T) {
	got := EstimateCost("claude-haiku-4", 1_000_000, 1_000_000)
	want := 0.80 + 4.00
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// TestTableModelsAreUnique covers the table invariant that model
// identifiers are unique.
func TestTableModelsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for _, row := range Table {
		if seen[row.Model] {
			t.Fatalf("duplicate model identifier %s", row.Model)
		}
		seen[row.Model] = true
	}
}

// TestTableInvariants covers non-negative pricing and in-range capability
// tiers for every row.
func TestTableInvariants(t *testing.T) {
	for _, row := range Table {
		if row.InputPer1M < 0 || row.OutputPer1M < 0 {
			t.Fatalf("%s has a negative price", row.Model)
		}
		if row.CapabilityTier < 1 || row.CapabilityTier > 4 {
			t.Fatalf("%s has an out-of-range capability tier %d", row.Model, row.CapabilityTier)
		}
	}
}
