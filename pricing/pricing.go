// Package pricing holds the compile-time ModelPricing table described by
// spec section 3: immutable rows keyed by unique model identifier,
// restricted to the three providers the core's candidate set covers
// (anthropic, openai, ollama).
//
// Grounded on teacher provider/pricing.go's ModelPricing/PricingConfig/
// CalculateCost, restructured to the spec's exact row schema (capability
// tier, context/output token caps, tool/thinking/subagent/web-search/cloud
// flags) and narrowed provider set.
package pricing

import "math"

// Provider is the closed set of provider tags carried by a pricing row.
type Provider string

const (
	Anthropic Provider = "anthropic"
	OpenAI    Provider = "openai"
	Ollama    Provider = "ollama"
)

// Row is an immutable pricing-table entry, per spec section 3.
type Row struct {
	Model       string
	Provider    Provider
	DisplayName string

	InputPer1M  float64
	OutputPer1M float64

	MaxContextTokens int
	MaxOutputTokens  int

	// CapabilityTier is 1..4, 1 strongest.
	CapabilityTier int

	SupportsTools      bool
	SupportsThinking   bool
	SupportsSubagents  bool
	SupportsWebSearch  bool
	SupportsCloud      bool
}

// Table is the compile-time pricing table. Model identifiers are unique;
// output prices are non-negative; capability tiers lie in [1,4] — these
// invariants are exercised by the package's tests, not enforced at
// runtime, since the table is a Go literal, not user input.
var Table = []Row{
	{
		Model: "claude-opus-4", Provider: Anthropic, DisplayName: "Claude Opus 4",
		InputPer1M: 15.00, OutputPer1M: 75.00,
		MaxContextTokens: 200_000, MaxOutputTokens: 8_192,
		CapabilityTier: 1,
		SupportsTools: true, SupportsThinking: true, SupportsSubagents: true, SupportsWebSearch: true, SupportsCloud: true,
	},
	{
		Model: "claude-sonnet-4", Provider: Anthropic, DisplayName: "Claude Sonnet 4",
		InputPer1M: 3.00, OutputPer1M: 15.00,
		MaxContextTokens: 200_000, MaxOutputTokens: 8_192,
		CapabilityTier: 2,
		SupportsTools: true, SupportsThinking: true, SupportsSubagents: true, SupportsWebSearch: true, SupportsCloud: true,
	},
	{
		Model: "claude-haiku-4", Provider: Anthropic, DisplayName: "Claude Haiku 4",
		InputPer1M: 0.80, OutputPer1M: 4.00,
		MaxContextTokens: 200_000, MaxOutputTokens: 8_192,
		CapabilityTier: 3,
		SupportsTools: true, SupportsThinking: false, SupportsSubagents: false, SupportsWebSearch: true, SupportsCloud: true,
	},
	{
		Model: "gpt-4o", Provider: OpenAI, DisplayName: "GPT-4o",
		InputPer1M: 2.50, OutputPer1M: 10.00,
		MaxContextTokens: 128_000, MaxOutputTokens: 16_384,
		CapabilityTier: 2,
		SupportsTools: true, SupportsThinking: false, SupportsSubagents: false, SupportsWebSearch: true, SupportsCloud: true,
	},
	{
		Model: "gpt-4o-mini", Provider: OpenAI, DisplayName: "GPT-4o mini",
		InputPer1M: 0.15, OutputPer1M: 0.60,
		MaxContextTokens: 128_000, MaxOutputTokens: 16_384,
		CapabilityTier: 4,
		SupportsTools: true, SupportsThinking: false, SupportsSubagents: false, SupportsWebSearch: false, SupportsCloud: true,
	},
	{
		Model: "o1", Provider: OpenAI, DisplayName: "o1",
		InputPer1M: 15.00, OutputPer1M: 60.00,
		MaxContextTokens: 200_000, MaxOutputTokens: 100_000,
		CapabilityTier: 1,
		SupportsTools: false, SupportsThinking: true, SupportsSubagents: false, SupportsWebSearch: false, SupportsCloud: true,
	},
	{
		Model: "llama3.1:70b", Provider: Ollama, DisplayName: "Llama 3.1 70B (local)",
		InputPer1M: 0, OutputPer1M: 0,
		MaxContextTokens: 128_000, MaxOutputTokens: 4_096,
		CapabilityTier: 2,
		SupportsTools: true, SupportsThinking: false, SupportsSubagents: false, SupportsWebSearch: false, SupportsCloud: false,
	},
	{
		Model: "llama3.1:8b", Provider: Ollama, DisplayName: "Llama 3.1 8B (local)",
		InputPer1M: 0, OutputPer1M: 0,
		MaxContextTokens: 128_000, MaxOutputTokens: 4_096,
		CapabilityTier: 3,
		SupportsTools: true, SupportsThinking: false, SupportsSubagents: false, SupportsWebSearch: false, SupportsCloud: false,
	},
	{
		Model: "qwen2.5:3b", Provider: Ollama, DisplayName: "Qwen2.5 3B (local)",
		InputPer1M: 0, OutputPer1M: 0,
		MaxContextTokens: 32_000, MaxOutputTokens: 4_096,
		CapabilityTier: 4,
		SupportsTools: false, SupportsThinking: false, SupportsSubagents: false, SupportsWebSearch: false, SupportsCloud: false,
	},
}

// ByModel indexes Table by model identifier for O(1) lookup.
var ByModel = func() map[string]Row {
	m := make(map[string]Row, len(Table))
	for _, r := range Table {
		m[r.Model] = r
	}
	return m
}()

// Get looks up a row by model identifier.
func Get(model string) (Row, bool) {
	r, ok := ByModel[model]
	return r, ok
}

// EstimateCost computes the cost in USD for in/out token counts against a
// model, rounded to 8 decimal places for precision. Unknown models and
// zero-priced rows both yield 0, satisfying the universal invariant that
// estimateCost(prompt)==0 whenever inputTokens=outputTokens=0 and the
// per-model invariant that zero-priced models cost 0 for any token count.
func EstimateCost(model string, inputTokens, outputTokens int) float64 {
	row, ok := Get(model)
	if !ok {
		return 0
	}
	inputCost := (float64(inputTokens) / 1_000_000.0) * row.InputPer1M
	outputCost := (float64(outputTokens) / 1_000_000.0) * row.OutputPer1M
	total := inputCost + outputCost
	return math.Round(total*1e8) / 1e8
}
