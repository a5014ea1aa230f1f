package modelrouter

import (
	"testing"

	"github.com/arcwave/relaycore/complexity"
	"github.com/arcwave/relaycore/pricing"
)

type alwaysAvailable struct{}

func (alwaysAvailable) IsAvailable(pricing.Provider) bool { return true }

func registryWithAllModels() *Registry {
	reg := NewRegistry()
	for _, row := range pricing.Table {
		reg.Register(row.Model)
	}
	return reg
}

// TestSelectModelPrefersCheaperForLowerTierFloor covers scenario 6's
// router half: with both tiers registered, the router returns a cheaper
// (or equal) model for a simple prompt than for a complex one.
func TestSelectModelPrefersCheaperForLowerTierFloor(t *testing.T) {
	reg := registryWithAllModels()

	simple := complexity.Estimate("list files")
	harder := complexity.Estimate("Refactor the authentication system, migrate to JWT, and optimize database queries")

	simpleSel, ok := SelectModel(reg, alwaysAvailable{}, Constraints{MinTier: complexity.TierFloor(simple.Level)})
	if !ok {
		t.Fatalf("expected a candidate for the simple prompt")
	}
	complexSel, ok := SelectModel(reg, alwaysAvailable{}, Constraints{MinTier: complexity.TierFloor(harder.Level)})
	if !ok {
		t.Fatalf("expected a candidate for the complex prompt")
	}

	if simpleSel.Row.OutputPer1M > complexSel.Row.OutputPer1M {
		t.Fatalf("expected simple prompt's model (%v) to be no more expensive than complex's (%v)",
			simpleSel.Row.OutputPer1M, complexSel.Row.OutputPer1M)
	}
}

// TestSelectModelDegradesWithWarningWhenNoneSatisfy covers the
// never-return-no-candidate invariant: an impossible constraint still
// yields a model, with a warning attached.
func TestSelectModelDegradesWithWarningWhenNoneSatisfy(t *testing.T) {
	reg := registryWithAllModels()

	sel, ok := SelectModel(reg, alwaysAvailable{}, Constraints{RequireThinking: true, MaxOutputPricePer1M: 0.0001})
	if !ok {
		t.Fatalf("expected a degraded candidate rather than no candidate")
	}
	if sel.Warning == "" {
		t.Fatalf("expected a warning when degrading past an unsatisfiable constraint")
	}
}

// TestSelectModelLocalOnlyRestrictsToOllama covers local-only mode: only
// ollama-provider rows are eligible candidates.
func TestSelectModelLocalOnlyRestrictsToOllama(t *testing.T) {
	reg := registryWithAllModels()

	sel, ok := SelectModel(reg, alwaysAvailable{}, Constraints{LocalOnly: true})
	if !ok {
		t.Fatalf("expected a local-only candidate")
	}
	if sel.Row.Provider != pricing.Ollama {
		t.Fatalf("expected local-only mode to select an ollama model, got %s", sel.Row.Provider)
	}
}

// TestSelectModelNoneRegisteredReturnsFalse covers the only path where
// SelectModel genuinely has nothing to offer: an empty registry.
func TestSelectModelNoneRegisteredReturnsFalse(t *testing.T) {
	reg := NewRegistry()
	_, ok := SelectModel(reg, alwaysAvailable{}, Constraints{})
	if ok {
		t.Fatalf("expected no candidate from an empty registry")
	}
}

// TestChainForLevelMapping covers the complexity-to-chain preset mapping.
func TestChainForLevelMapping(t *testing.T) {
	cases := []struct {
		level     complexity.Level
		localOnly bool
		want      ChainName
	}{
		{complexity.LevelExpert, false, ChainHighCapability},
		{complexity.LevelComplex, false, ChainBalanced},
		{complexity.LevelSimple, false, ChainCostOptimized},
		{complexity.LevelModerate, false, ChainCostOptimized},
		{complexity.LevelExpert, true, ChainLocal},
	}
	for _, tc := range cases {
		got := ChainForLevel(tc.level, tc.localOnly)
		if got != tc.want {
			t.Fatalf("ChainForLevel(%s, %v) = %s, want %s", tc.level, tc.localOnly, got, tc.want)
		}
	}
}
