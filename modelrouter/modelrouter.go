// Package modelrouter implements the candidate-filtering model selection of
// spec section 4.4: selectModel's filter-then-cheapest-sort rule and the
// fallback-chain-for-complexity mapping.
//
// Grounded on teacher provider/provider.go's Registry (keyed map, not a
// singleton — matching spec 9's explicit design note) for the registry
// shape, and the pricing package's Row/Table for candidate data.
package modelrouter

import (
	"sort"

	"github.com/arcwave/relaycore/complexity"
	"github.com/arcwave/relaycore/pricing"
)

// Availability reports whether a provider is currently usable, independent
// of static registration — the fallback package's health state feeds this.
type Availability interface {
	IsAvailable(provider pricing.Provider) bool
}

// Constraints narrows the candidate set for a single selection call.
type Constraints struct {
	MinTier           int
	RequireTools       bool
	RequireThinking    bool
	RequireSubagents   bool
	RequireWebSearch   bool
	MaxOutputPricePer1M float64 // 0 means unconstrained
	PreferredProvider  pricing.Provider // "" means no preference
	LocalOnly          bool
}

// Registry is the set of model identifiers this deployment has registered,
// independent of the global pricing.Table (a deployment need not enable
// every known model).
type Registry struct {
	registered map[string]bool
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{registered: make(map[string]bool)}
}

// Register marks a model identifier as usable by this deployment.
func (r *Registry) Register(model string) {
	r.registered[model] = true
}

// IsRegistered reports whether a model has been registered.
func (r *Registry) IsRegistered(model string) bool {
	return r.registered[model]
}

// Selection is the result of selectModel: the chosen row plus whether a
// warning should accompany it (emitted when falling back to the cheapest
// global candidate rather than a constraint-satisfying one).
type Selection struct {
	Row     pricing.Row
	Warning string
}

// SelectModel implements spec 4.4's candidate filtering: registered, not
// cooling (per avail), meets capability tier/feature constraints, within
// price cap, respects local-only mode, and narrows to the preferred provider
// when that leaves at least one candidate — then picks
// the cheapest by output price per million tokens. If no candidate survives
// filtering, it falls back to the cheapest registered model overall (any
// provider, any tier) and attaches a warning, per the spec's "never return
// no-candidate; degrade with a warning" invariant.
func SelectModel(reg *Registry, avail Availability, c Constraints) (Selection, bool) {
	var candidates []pricing.Row
	for _, row := range pricing.Table {
		if !reg.IsRegistered(row.Model) {
			continue
		}
		if avail != nil && !avail.IsAvailable(row.Provider) {
			continue
		}
		if c.LocalOnly && row.Provider != pricing.Ollama {
			continue
		}
		// Tiers are strongest-first (1 best); MinTier is the weakest
		// acceptable tier, so a higher tier number than MinTier fails.
		if c.MinTier != 0 && row.CapabilityTier > c.MinTier {
			continue
		}
		if c.RequireTools && !row.SupportsTools {
			continue
		}
		if c.RequireThinking && !row.SupportsThinking {
			continue
		}
		if c.RequireSubagents && !row.SupportsSubagents {
			continue
		}
		if c.RequireWebSearch && !row.SupportsWebSearch {
			continue
		}
		if c.MaxOutputPricePer1M > 0 && row.OutputPer1M > c.MaxOutputPricePer1M {
			continue
		}
		candidates = append(candidates, row)
	}

	if !c.LocalOnly && c.PreferredProvider != "" {
		var preferred []pricing.Row
		for _, row := range candidates {
			if row.Provider == c.PreferredProvider {
				preferred = append(preferred, row)
			}
		}
		if len(preferred) > 0 {
			candidates = preferred
		}
	}

	if len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].OutputPer1M < candidates[j].OutputPer1M
		})
		return Selection{Row: candidates[0]}, true
	}

	// Degrade: cheapest registered model overall, any constraint.
	var fallback []pricing.Row
	for _, row := range pricing.Table {
		if !reg.IsRegistered(row.Model) {
			continue
		}
		if avail != nil && !avail.IsAvailable(row.Provider) {
			continue
		}
		fallback = append(fallback, row)
	}
	if len(fallback) == 0 {
		return Selection{}, false
	}
	sort.Slice(fallback, func(i, j int) bool {
		return fallback[i].OutputPer1M < fallback[j].OutputPer1M
	})
	return Selection{
		Row:     fallback[0],
		Warning: "no candidate satisfied constraints; degraded to cheapest available model",
	}, true
}

// ChainName is a named fallback-chain preset.
type ChainName string

const (
	ChainHighCapability ChainName = "high-capability"
	ChainBalanced       ChainName = "balanced"
	ChainCostOptimized  ChainName = "cost-optimized"
	ChainLocal          ChainName = "local"
	ChainCloud          ChainName = "cloud"
)

// ChainForLevel maps a complexity.Level to the fallback chain preset that
// should service it, per spec 4.4. localOnly always yields the local chain
// regardless of complexity; the cloud chain is never returned here.
func ChainForLevel(level complexity.Level, localOnly bool) ChainName {
	if localOnly {
		return ChainLocal
	}
	switch level {
	case complexity.LevelExpert:
		return ChainHighCapability
	case complexity.LevelComplex:
		return ChainBalanced
	default:
		return ChainCostOptimized
	}
}
